// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package styles provides the visual styling system for the nexora TUI.
//
// All colors use Lip Gloss AdaptiveColor so light and dark terminals are
// handled automatically.
//
// # Key Types
//
//   - Theme: Every style used by the chat view
//   - SpinnerConfig: Frames and rate for the busy indicator
//
// # Usage
//
//	theme := styles.NewTheme()
//	label := theme.UserLabel.Render("You")
package styles
