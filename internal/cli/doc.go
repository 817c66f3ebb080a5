// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli provides the nexora command tree.
//
// Commands are built with cobra around a shared App that loads configuration,
// initializes logging and constructs the configured backend before any
// command runs.
//
// # Key Types
//
//   - App: Streams, global flags and loaded configuration
//   - Backend: The relay or Ollama transport selected by backend.kind
//   - ChatCLI: liner-backed line editing and history for line-mode chat
//
// # Usage
//
//	func main() {
//	    os.Exit(cli.Execute())
//	}
//
// # Commands Overview
//
//   - (none): Full-screen chat, or line mode when not on a terminal
//   - chat: Interactive chat session (--plain for line mode)
//   - ask: Stream one reply to stdout
//   - models: List selectable models (--remote for Ollama installs)
//   - status: Show configuration and ping the backend
//   - config: show, path, init, get, set, keys
//
// Exit codes: 0 success, 1 general failure, 2 usage, 3 config, 5 network.
package cli
