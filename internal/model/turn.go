// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for chat turns and models.
package model

import (
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the author of a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	default:
		return string(r)
	}
}

// =============================================================================
// TURN TYPE
// =============================================================================

// Turn is a single message in the transcript.
//
// Turns are values. The in-flight assistant turn is never mutated in place;
// each fragment produces a new Turn that replaces the previous one, so a
// snapshot taken earlier keeps its old content.
type Turn struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`

	// Streaming is true while the assistant turn is still receiving text.
	Streaming bool `json:"-"`
}

// NewUserTurn creates a completed user turn.
func NewUserTurn(content string) Turn {
	return Turn{
		ID:        newTurnID(),
		Role:      RoleUser,
		Content:   content,
		CreatedAt: time.Now(),
	}
}

// NewAssistantTurn creates the empty placeholder for a streaming reply.
func NewAssistantTurn() Turn {
	return Turn{
		ID:        newTurnID(),
		Role:      RoleAssistant,
		CreatedAt: time.Now(),
		Streaming: true,
	}
}

// WithContent returns a copy of the turn carrying content.
func (t Turn) WithContent(content string) Turn {
	t.Content = content
	return t
}

// Appended returns a copy of the turn with fragment added to its content.
func (t Turn) Appended(fragment string) Turn {
	t.Content += fragment
	return t
}

// Finalized returns a copy of the turn with streaming switched off.
func (t Turn) Finalized() Turn {
	t.Streaming = false
	return t
}

// InProgress reports whether t is an assistant turn still being streamed.
func (t Turn) InProgress() bool {
	return t.Role == RoleAssistant && t.Streaming
}

// IsEmpty returns true if the turn has no content.
func (t Turn) IsEmpty() bool {
	return len(t.Content) == 0
}

// Preview returns a truncated preview of the turn content.
// Uses rune-based truncation to handle Unicode correctly.
func (t Turn) Preview(maxLen int) string {
	runes := []rune(t.Content)
	if len(runes) <= maxLen {
		return t.Content
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}

func newTurnID() string {
	return "turn_" + uuid.NewString()
}
