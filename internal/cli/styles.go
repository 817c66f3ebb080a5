// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// styles.go - Shared styling for nexora CLI output.
//
// Command output (status, models, config) uses lipgloss styles built on the
// TUI palette. Streamed replies in plain mode are colored through a termenv
// Output so that fragments can be written unbuffered.

package cli

import (
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/nexora-labs/nexora-tui/internal/ui/styles"
)

// init configures lipgloss color profile based on terminal capabilities.
func init() {
	lipgloss.SetColorProfile(GetColorProfile())
}

// =============================================================================
// SHARED STYLES FOR ALL CLI COMMANDS
// =============================================================================

var (
	// TitleStyle is used for command titles and headers
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(styles.Cyan)

	// LabelStyle is used for field labels
	LabelStyle = lipgloss.NewStyle().
			Foreground(styles.TextSecondary).
			Width(16)

	// ValueStyle is used for regular values
	ValueStyle = lipgloss.NewStyle().
			Foreground(styles.TextPrimary)

	// SuccessStyle is used for OK statuses
	SuccessStyle = lipgloss.NewStyle().
			Foreground(styles.Emerald).
			Bold(true)

	// ErrorStyle is used for error messages and failures
	ErrorStyle = lipgloss.NewStyle().
			Foreground(styles.Rose).
			Bold(true)

	// WarningStyle is used for aborted turns and cautions
	WarningStyle = lipgloss.NewStyle().
			Foreground(styles.Amber)

	// DimStyle is used for secondary information and hints
	DimStyle = lipgloss.NewStyle().
			Foreground(styles.TextMuted)

	// HighlightStyle marks the selected model in listings
	HighlightStyle = lipgloss.NewStyle().
			Foreground(styles.Purple).
			Bold(true)
)

// RenderStatus renders a status indicator with appropriate color.
func RenderStatus(ok bool) string {
	if ok {
		return SuccessStyle.Render("[OK]")
	}
	return ErrorStyle.Render("[FAIL]")
}

// RenderLabel renders a label with consistent width.
func RenderLabel(label string) string {
	return LabelStyle.Render(label)
}

// =============================================================================
// STREAM PAINTER
// =============================================================================

// painter colors line-mode chat output.
type painter struct {
	out *termenv.Output
}

func newPainter(w io.Writer) *painter {
	return &painter{out: termenv.NewOutput(w, termenv.WithProfile(GetColorProfile()))}
}

func (p *painter) prompt(s string) string {
	return p.out.String(s).Foreground(p.out.Color("#22D3EE")).Bold().String()
}

func (p *painter) speaker(s string) string {
	return p.out.String(s).Foreground(p.out.Color("#A78BFA")).Bold().String()
}

func (p *painter) reply(s string) string {
	return p.out.String(s).String()
}

func (p *painter) failure(s string) string {
	return p.out.String(s).Foreground(p.out.Color("#FB7185")).String()
}

func (p *painter) notice(s string) string {
	return p.out.String(s).Foreground(p.out.Color("#FBBF24")).String()
}

func (p *painter) dim(s string) string {
	return p.out.String(s).Faint().String()
}
