// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nexora-labs/nexora-tui/internal/session"
)

// =============================================================================
// UPDATE
// =============================================================================

// Update handles messages and updates the model state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.handleResize(msg)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case SessionUpdateMsg:
		return m.handleSessionUpdate(msg.Update)

	case SessionClosedMsg:
		return m, tea.Quit

	case redrawTickMsg:
		m.throttle.Fire()
		m.refreshViewport()
		return m, nil

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		if m.isWaitingForFirstFragment() {
			m.refreshViewport()
		}
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// =============================================================================
// RESIZE
// =============================================================================

func (m *Model) handleResize(msg tea.WindowSizeMsg) {
	m.width = msg.Width
	m.height = msg.Height
	m.theme.SetSize(msg.Width, msg.Height)

	vh := msg.Height - chromeHeight
	if vh < 1 {
		vh = 1
	}
	if !m.ready {
		m.viewport = viewport.New(msg.Width, vh)
		m.ready = true
	} else {
		m.viewport.Width = msg.Width
		m.viewport.Height = vh
	}
	m.input.Width = msg.Width - len(m.input.Prompt) - 3
	m.help.Width = msg.Width
	m.refreshViewport()
}

// =============================================================================
// KEYS
// =============================================================================

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.ctrl.Abort()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Abort):
		if m.busy {
			m.ctrl.Abort()
		} else {
			m.notice = ""
		}
		return m, nil

	case key.Matches(msg, m.keys.NextModel):
		m.modelInfo = m.lookupModel(m.ctrl.CycleModel(1))
		return m, nil

	case key.Matches(msg, m.keys.PrevModel):
		m.modelInfo = m.lookupModel(m.ctrl.CycleModel(-1))
		return m, nil

	case key.Matches(msg, m.keys.ClearError):
		m.ctrl.ClearErr()
		m.lastErr = nil
		m.notice = ""
		return m, nil

	case key.Matches(msg, m.keys.PageUp):
		m.viewport.ViewUp()
		return m, nil

	case key.Matches(msg, m.keys.PageDown):
		m.viewport.ViewDown()
		return m, nil

	case key.Matches(msg, m.keys.Submit):
		return m.submit()
	}

	// Input is disabled while a turn is in flight.
	if m.busy {
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	if m.busy {
		return m, nil
	}
	if err := m.ctrl.Submit(m.ctx, m.input.Value()); err != nil {
		m.notice = err.Error()
		return m, nil
	}
	m.input.Reset()
	m.notice = ""
	return m, nil
}

// =============================================================================
// SESSION UPDATES
// =============================================================================

func (m Model) handleSessionUpdate(u session.Update) (tea.Model, tea.Cmd) {
	cmds := []tea.Cmd{m.listen()}

	m.turns = u.Turns
	m.state = u.State
	m.busy = u.Busy
	m.modelInfo = m.lookupModel(u.Model)

	switch u.Kind {
	case session.UpdateStarted:
		m.lastErr = nil
		m.input.Blur()
		m.refreshViewport()
		m.viewport.GotoBottom()
		cmds = append(cmds, m.spinner.Tick)

	case session.UpdateFragment:
		ok, cmd := m.throttle.Allow()
		if ok {
			m.refreshViewport()
		}
		cmds = append(cmds, cmd)

	case session.UpdateFinished, session.UpdateAborted, session.UpdateFailed:
		if u.Kind == session.UpdateFailed {
			m.lastErr = u.Err
		}
		m.refreshViewport()
		cmds = append(cmds, m.input.Focus())
	}

	return m, tea.Batch(cmds...)
}

// refreshViewport rebuilds the transcript content, following the tail
// when the view was already scrolled to the bottom.
func (m *Model) refreshViewport() {
	if !m.ready {
		return
	}
	follow := m.viewport.AtBottom()
	m.viewport.SetContent(m.renderTranscript())
	if follow {
		m.viewport.GotoBottom()
	}
}

// isWaitingForFirstFragment reports whether the in-flight reply is still empty.
func (m Model) isWaitingForFirstFragment() bool {
	if len(m.turns) == 0 {
		return false
	}
	last := m.turns[len(m.turns)-1]
	return last.InProgress() && last.Content == ""
}
