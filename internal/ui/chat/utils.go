// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"errors"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"

	"github.com/nexora-labs/nexora-tui/internal/transport"
)

// =============================================================================
// FORMATTING UTILITIES
// =============================================================================

// formatTimestamp formats a timestamp for display next to a turn label.
//   - Today: just time (e.g., "15:04")
//   - Older: date and time (e.g., "Jan 2 15:04")
func formatTimestamp(t, now time.Time) string {
	if t.Year() == now.Year() && t.YearDay() == now.YearDay() {
		return t.Format("15:04")
	}
	return t.Format("Jan 2 15:04")
}

// formatError renders an error for the status bar.
func formatError(err error) string {
	if err == nil {
		return ""
	}
	var httpErr *transport.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Error()
	}
	var tErr *transport.Error
	if errors.As(err, &tErr) {
		if tErr.Err == nil {
			return "connection failed"
		}
		return "connection failed: " + tErr.Err.Error()
	}
	return err.Error()
}

// =============================================================================
// TEXT UTILITIES
// =============================================================================

// calculateContentWidth returns the wrap width for message bodies.
// Returns a minimum of 3 for extremely narrow terminals.
func calculateContentWidth(totalWidth, margin int) int {
	contentWidth := totalWidth - margin
	if contentWidth < 3 {
		contentWidth = 3
	}
	return contentWidth
}

// wrapText wraps text to a display width, preserving existing line breaks
// and breaking long lines at spaces where possible. Width is measured in
// terminal cells so CJK and emoji wrap correctly.
func wrapText(text string, maxWidth int) string {
	if maxWidth <= 0 {
		return text
	}

	var result strings.Builder
	for i, line := range strings.Split(text, "\n") {
		if i > 0 {
			result.WriteString("\n")
		}
		for runewidth.StringWidth(line) > maxWidth {
			head := runewidth.Truncate(line, maxWidth, "")
			if head == "" {
				// A single rune wider than the line.
				r := []rune(line)
				head = string(r[:1])
			}
			if line[len(head)] != ' ' {
				if cut := strings.LastIndexByte(head, ' '); cut > 0 {
					head = head[:cut]
				}
			}
			result.WriteString(head)
			result.WriteString("\n")
			line = strings.TrimLeft(line[len(head):], " ")
		}
		result.WriteString(line)
	}
	return result.String()
}

// truncateWidth shortens s to at most width cells, marking the cut with an ellipsis.
func truncateWidth(s string, width int) string {
	if width <= 0 {
		return ""
	}
	s = strings.ReplaceAll(s, "\n", " ")
	if runewidth.StringWidth(s) <= width {
		return s
	}
	return runewidth.Truncate(s, width, "…")
}
