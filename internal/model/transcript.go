// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for chat turns and models.
package model

import "errors"

// ErrInvalidState is returned by ReplaceLast when there is no in-progress
// assistant turn to replace.
var ErrInvalidState = errors.New("transcript: no in-progress assistant turn")

// =============================================================================
// TRANSCRIPT TYPE
// =============================================================================

// Transcript is the ordered history of turns for one session.
//
// It only grows. The single exception is the streaming assistant turn at the
// tail, which ReplaceLast swaps out as text arrives. The zero value is an
// empty transcript ready to use.
type Transcript struct {
	turns []Turn
}

// NewTranscript creates an empty transcript.
func NewTranscript() *Transcript {
	return &Transcript{turns: make([]Turn, 0, 16)}
}

// Append adds a turn to the end of the transcript.
func (t *Transcript) Append(turn Turn) {
	t.turns = append(t.turns, turn)
}

// ReplaceLast swaps the final turn for turn.
//
// Only legal while the final turn is an in-progress assistant turn, and the
// replacement must itself be an assistant turn. Replacing with a finalized
// turn freezes it; any further ReplaceLast then fails.
func (t *Transcript) ReplaceLast(turn Turn) error {
	if len(t.turns) == 0 {
		return ErrInvalidState
	}
	last := t.turns[len(t.turns)-1]
	if !last.InProgress() || turn.Role != RoleAssistant {
		return ErrInvalidState
	}
	t.turns[len(t.turns)-1] = turn
	return nil
}

// Turns returns a copy of every turn in order.
func (t *Transcript) Turns() []Turn {
	out := make([]Turn, len(t.turns))
	copy(out, t.turns)
	return out
}

// Last returns the most recent turn, if any.
func (t *Transcript) Last() (Turn, bool) {
	if len(t.turns) == 0 {
		return Turn{}, false
	}
	return t.turns[len(t.turns)-1], true
}

// Len returns the number of turns.
func (t *Transcript) Len() int {
	return len(t.turns)
}

// IsEmpty returns true if there are no turns.
func (t *Transcript) IsEmpty() bool {
	return len(t.turns) == 0
}
