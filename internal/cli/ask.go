// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// ask.go - One-shot question command for the nexora CLI.
//
// Command: ask
// Short:   Stream one reply to stdout
//
// Examples:
//   nexora ask "What is Go?"
//   nexora ask -m grok-2-latest "Tell me a joke"
//   echo "Summarize this" | nexora ask
//
// Exit codes:
//   0  reply streamed completely
//   5  backend unreachable or stream broken
//   1  any other failure (HTTP error, aborted)

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nexora-labs/nexora-tui/internal/session"
)

func newAskCommand(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "ask <message>",
		Short: "Send one message and stream the reply to stdout",
		Example: `  nexora ask "What is Go?"
  nexora ask -m grok-2-latest "Tell me a joke"
  echo "Summarize this" | nexora ask`,
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			if text == "" && !a.isTerminal() {
				data, err := io.ReadAll(a.In)
				if err != nil {
					return NewCommandError("ask", "read", "could not read stdin", err)
				}
				text = string(data)
			}
			if strings.TrimSpace(text) == "" {
				return ErrMissingArgument("message", `nexora ask "What is Go?"`)
			}
			return a.runAsk(cmd.Context(), text)
		},
	}
}

// runAsk streams a single turn. Ctrl+C aborts it.
func (a *App) runAsk(ctx context.Context, text string) error {
	backend, err := NewBackend(a.cfg, a.logger.Logger)
	if err != nil {
		return err
	}
	ctrl, err := a.newController(backend)
	if err != nil {
		return err
	}
	defer ctrl.Close()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	updates, unsubscribe := ctrl.Subscribe()
	defer unsubscribe()

	if err := ctrl.Submit(ctx, text); err != nil {
		return err
	}

	wrote := false
	for u := range updates {
		switch u.Kind {
		case session.UpdateFragment:
			fmt.Fprint(a.Out, u.Fragment)
			wrote = true
		case session.UpdateFinished:
			fmt.Fprintln(a.Out)
			return nil
		case session.UpdateFailed:
			if wrote {
				fmt.Fprintln(a.Out)
			}
			return u.Err
		case session.UpdateAborted:
			if wrote {
				fmt.Fprintln(a.Out)
			}
			return session.ErrAborted
		}
	}
	return session.ErrClosed
}
