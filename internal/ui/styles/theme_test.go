// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"testing"
	"time"
)

func TestGetLayoutMode(t *testing.T) {
	tests := []struct {
		width int
		want  LayoutMode
	}{
		{40, LayoutNarrow},
		{59, LayoutNarrow},
		{60, LayoutMedium},
		{99, LayoutMedium},
		{100, LayoutWide},
	}

	theme := NewTheme()
	for _, tt := range tests {
		theme.SetSize(tt.width, 24)
		if got := theme.GetLayoutMode(); got != tt.want {
			t.Errorf("GetLayoutMode() at width %d = %v, want %v", tt.width, got, tt.want)
		}
	}
}

func TestSpinnerConfig(t *testing.T) {
	if got := LineSpinner.Duration(); got != 100*time.Millisecond {
		t.Errorf("LineSpinner.Duration() = %v", got)
	}
	if got := (SpinnerConfig{}).Duration(); got != time.Second {
		t.Errorf("zero FPS Duration() = %v, want 1s", got)
	}

	s := DotsSpinner.Bubble()
	if len(s.Frames) != len(DotsSpinner.Frames) {
		t.Errorf("Bubble() frames = %d, want %d", len(s.Frames), len(DotsSpinner.Frames))
	}
	if s.FPS != DotsSpinner.Duration() {
		t.Errorf("Bubble() FPS = %v", s.FPS)
	}
}

func TestNewTheme_RendersLabels(t *testing.T) {
	theme := NewTheme()
	if theme.UserLabel.Render("You") == "" {
		t.Error("UserLabel rendered empty")
	}
	if theme.AssistantLabel.Render("Assistant") == "" {
		t.Error("AssistantLabel rendered empty")
	}
}
