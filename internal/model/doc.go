// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for chat turns, the session
// transcript, and the catalog of selectable models.
//
// # Key Types
//
//   - Turn: One message authored by the user or the assistant
//   - Transcript: Ordered history of Turns with replace-last semantics
//   - Catalog: Closed, ordered set of models a session may use
//   - Selector: Holds the active model and rejects ids outside the catalog
//
// # Usage
//
// Build a transcript and amend the streaming assistant turn:
//
//	var t model.Transcript
//	t.Append(model.NewUserTurn("hello"))
//	t.Append(model.NewAssistantTurn())
//	last, _ := t.Last()
//	err := t.ReplaceLast(last.WithContent("Hi"))
//
// Select a model:
//
//	sel := model.NewSelector(model.DefaultCatalog())
//	if err := sel.Select("gpt-4o"); err != nil {
//	    // errors.Is(err, model.ErrInvalidModel)
//	}
//
// Transcript has no internal locking; callers that share one across
// goroutines must serialize access themselves.
package model
