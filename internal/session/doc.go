// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session runs chat turns against a transport and owns the transcript.
//
// A Controller accepts one submission at a time. Each accepted turn appends a
// user Turn and an empty assistant Turn, streams the backend response through
// a stream.Reader, and grows the assistant Turn one fragment at a time. Every
// change is published as an Update to subscribers; publishing never blocks
// the decode loop.
//
// # Key Types
//
//   - Controller: Turn state machine (Idle, Sending, Streaming, Failed)
//   - Update: Snapshot published after every observable change
//   - ValidationError: Rejected submission (empty input or busy)
//
// # Usage
//
//	ctrl := session.NewController(session.Options{
//	    Transport: transport.NewRelayClient(transport.DefaultRelayConfig()),
//	    Selector:  model.NewSelector(model.DefaultCatalog()),
//	})
//	defer ctrl.Close()
//
//	updates, unsubscribe := ctrl.Subscribe()
//	defer unsubscribe()
//
//	if err := ctrl.Submit(ctx, "hello"); err != nil {
//	    // session.IsValidation(err)
//	}
//	for u := range updates {
//	    render(u.Turns)
//	    if !u.Busy {
//	        break
//	    }
//	}
//
// # Concurrency
//
// All transcript mutations happen under the controller mutex. Abort and Close
// are safe to call from any goroutine in any state.
package session
