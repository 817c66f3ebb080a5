// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/time/rate"
)

// =============================================================================
// REDRAW THROTTLE
// =============================================================================

// DefaultMaxFPS caps viewport rebuilds during streaming.
const DefaultMaxFPS = 30

// redrawThrottle limits how often fragment updates rebuild the viewport.
// A refused redraw arms a single trailing tick so the latest content is
// always drawn once the burst ends.
//
// It is only touched from the Bubble Tea update loop.
type redrawThrottle struct {
	limiter  *rate.Limiter
	interval time.Duration
	pending  bool
}

func newRedrawThrottle(maxFPS int) *redrawThrottle {
	if maxFPS <= 0 {
		maxFPS = DefaultMaxFPS
	}
	return &redrawThrottle{
		limiter:  rate.NewLimiter(rate.Limit(maxFPS), 1),
		interval: time.Second / time.Duration(maxFPS),
	}
}

// Allow reports whether a redraw may happen now. When it may not, the
// returned command (possibly nil if a tick is already armed) schedules
// the trailing redraw.
func (r *redrawThrottle) Allow() (bool, tea.Cmd) {
	if r.pending {
		return false, nil
	}
	if r.limiter.Allow() {
		return true, nil
	}
	r.pending = true
	return false, tea.Tick(r.interval, func(time.Time) tea.Msg {
		return redrawTickMsg{}
	})
}

// Fire clears the armed tick.
func (r *redrawThrottle) Fire() {
	r.pending = false
}

// Pending reports whether a trailing redraw is armed.
func (r *redrawThrottle) Pending() bool {
	return r.pending
}

// Interval returns the minimum spacing between redraws.
func (r *redrawThrottle) Interval() time.Duration {
	return r.interval
}
