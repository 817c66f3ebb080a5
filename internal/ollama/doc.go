// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ollama provides a chat backend talking directly to a local Ollama
// server.
//
// The Client implements transport.Transport: each turn is sent to /api/chat
// as a single user message with streaming enabled, and the NDJSON response
// is reduced to the raw assistant text so the session sees the same byte
// stream it would get from the relay.
//
// # Key Types
//
//   - Client: HTTP client for Ollama API communication
//   - StreamReader: Line-by-line parser for NDJSON chat responses
//   - ModelInfo: Locally installed model reported by /api/tags
//
// # Usage
//
//	client := ollama.NewClient()
//	if err := client.CheckRunning(ctx); err != nil {
//	    return err
//	}
//	stream, err := client.SendTurn(ctx, "Hello", "llama3.2")
//	if err != nil {
//	    return err
//	}
//	defer stream.Close()
package ollama
