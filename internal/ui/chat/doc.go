// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package chat provides the chat view for the nexora TUI.

The view is a thin Bubble Tea front end over session.Controller. It owns no
conversation state: every frame is drawn from the last Update the controller
published, and user intents (submit, abort, model switch) are forwarded to
the controller.

# Key Components

## Model (model.go)

  - Transcript viewport with tail following
  - Single-line input, blurred and ignored while a turn is in flight
  - Spinner shown until the first fragment arrives
  - Status bar with the selected model, turn state and last error

## Update loop (update.go)

A listen command blocks on the controller subscription and turns each
session.Update into a SessionUpdateMsg. Fragment updates are throttled by
a rate limiter (streaming.go); a trailing tick guarantees the final state
is drawn.

# Keys

	Enter      send the typed message
	Esc        stop the streaming reply
	Tab/S-Tab  cycle the model for the next turn
	C-l        clear the error shown in the status bar
	PgUp/PgDn  scroll the transcript
	C-c        quit

# Usage

	ctrl := session.NewController(session.Options{Transport: t, Selector: sel})
	view := chat.New(ctrl, chat.Options{MaxFPS: 30})
	defer view.Close()
	_, err := tea.NewProgram(view, tea.WithAltScreen()).Run()
*/
package chat
