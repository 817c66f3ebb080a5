// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/nexora-labs/nexora-tui/internal/model"
	"github.com/nexora-labs/nexora-tui/internal/session"
)

// streamCursor trails the in-flight reply.
const streamCursor = "▌"

// =============================================================================
// MAIN VIEW
// =============================================================================

// View renders the chat interface.
func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		m.viewport.View(),
		m.renderInput(),
		m.renderStatusBar(),
		m.renderHelp(),
	)
}

// =============================================================================
// HEADER
// =============================================================================

func (m Model) renderHeader() string {
	title := m.theme.HeaderBrand.Render("nexora")
	if m.backend != "" {
		title += m.theme.Timestamp.Render("  " + truncateWidth(m.backend, m.width-12))
	}
	return m.theme.Header.Width(m.width).Render(title)
}

// =============================================================================
// TRANSCRIPT
// =============================================================================

func (m Model) renderTranscript() string {
	if len(m.turns) == 0 {
		return m.theme.Placeholder.Render("  Ask anything. Tab switches model.")
	}

	width := calculateContentWidth(m.width, contentMargin)
	now := m.now()

	blocks := make([]string, 0, len(m.turns))
	for _, turn := range m.turns {
		blocks = append(blocks, m.renderTurn(turn, width, now))
	}
	return strings.Join(blocks, "\n\n")
}

func (m Model) renderTurn(turn model.Turn, width int, now time.Time) string {
	var label string
	if turn.Role == model.RoleUser {
		label = m.theme.UserLabel.Render(turn.Role.DisplayName())
	} else {
		label = m.theme.AssistantLabel.Render(turn.Role.DisplayName())
	}
	if m.showTimestamps && !turn.CreatedAt.IsZero() {
		label += " " + m.theme.Timestamp.Render(formatTimestamp(turn.CreatedAt, now))
	}

	var body string
	switch {
	case turn.InProgress() && turn.Content == "":
		body = "  " + m.spinner.View()
	case turn.InProgress():
		body = m.theme.Content.Render(wrapText(turn.Content, width)) + m.theme.Cursor.Render(streamCursor)
	case turn.Content == "" && turn.Role == model.RoleAssistant:
		body = m.theme.Placeholder.Render("(no reply)")
	default:
		body = m.theme.Content.Render(wrapText(turn.Content, width))
	}
	return label + "\n" + body
}

// =============================================================================
// INPUT
// =============================================================================

func (m Model) renderInput() string {
	var line string
	if m.busy {
		line = m.spinner.View() + " " + m.theme.Placeholder.Render("receiving reply, Esc to stop")
	} else {
		line = m.input.View()
	}
	return m.theme.InputContainer.Width(m.width).Render(line)
}

// =============================================================================
// STATUS BAR
// =============================================================================

func (m Model) renderStatusBar() string {
	left := m.theme.StatusModel.Render(m.modelInfo.Label()) + m.renderState()

	avail := m.width - lipgloss.Width(left) - 1
	var msg string
	switch {
	case m.lastErr != nil:
		msg = m.theme.ErrorText.Render(" " + truncateWidth(formatError(m.lastErr), avail-1))
	case m.notice != "":
		msg = m.theme.ShortcutDesc.Render(" " + truncateWidth(m.notice, avail-1))
	}

	return m.theme.StatusBar.Width(m.width).Render(left + msg)
}

func (m Model) renderState() string {
	switch {
	case m.busy && m.state == session.StateSending:
		return m.theme.StatusBusy.Render("sending")
	case m.busy:
		return m.theme.StatusBusy.Render("streaming")
	case m.lastErr != nil:
		return m.theme.StatusError.Render("error")
	default:
		return m.theme.StatusReady.Render("ready")
	}
}

// =============================================================================
// HELP
// =============================================================================

func (m Model) renderHelp() string {
	if m.busy {
		return m.help.ShortHelpView(m.keys.busyHelp())
	}
	return m.help.ShortHelpView(m.keys.ShortHelp())
}
