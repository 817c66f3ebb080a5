// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"github.com/nexora-labs/nexora-tui/internal/session"
)

// =============================================================================
// SESSION MESSAGES
// =============================================================================

// SessionUpdateMsg carries one controller notification into the Bubble Tea loop.
type SessionUpdateMsg struct {
	Update session.Update
}

// SessionClosedMsg signals that the controller subscription has ended.
type SessionClosedMsg struct{}

// =============================================================================
// RENDERING MESSAGES
// =============================================================================

// redrawTickMsg triggers the trailing redraw of a throttled burst.
type redrawTickMsg struct{}
