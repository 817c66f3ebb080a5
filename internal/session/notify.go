// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"sync"
	"time"

	"github.com/nexora-labs/nexora-tui/internal/model"
)

// =============================================================================
// UPDATES
// =============================================================================

// UpdateKind identifies what changed.
type UpdateKind int

const (
	// UpdateStarted: a submission was accepted and the turns were appended.
	UpdateStarted UpdateKind = iota
	// UpdateFragment: the assistant Turn grew by Fragment.
	UpdateFragment
	// UpdateFinished: the stream ended normally.
	UpdateFinished
	// UpdateFailed: the turn ended with Err.
	UpdateFailed
	// UpdateAborted: the turn was stopped by Abort or Close.
	UpdateAborted
	// UpdateModelChanged: the selected model changed to Model.
	UpdateModelChanged
)

func (k UpdateKind) String() string {
	switch k {
	case UpdateStarted:
		return "started"
	case UpdateFragment:
		return "fragment"
	case UpdateFinished:
		return "finished"
	case UpdateFailed:
		return "failed"
	case UpdateAborted:
		return "aborted"
	case UpdateModelChanged:
		return "model_changed"
	default:
		return "unknown"
	}
}

// Update is a snapshot of the controller after one change.
type Update struct {
	Kind  UpdateKind
	State State
	Busy  bool

	// Fragment is the decoded text appended by an UpdateFragment.
	Fragment string

	// Turns is a copy of the full transcript after the change.
	Turns []model.Turn

	// Err is set on UpdateFailed.
	Err error

	// Model is the selected model at the time of the change.
	Model model.ID

	At time.Time
}

// Terminal reports whether the update ends a turn.
func (u Update) Terminal() bool {
	return u.Kind == UpdateFinished || u.Kind == UpdateFailed || u.Kind == UpdateAborted
}

// =============================================================================
// SUBSCRIBERS
// =============================================================================

// subscriber delivers updates in order through an unbounded queue so a slow
// reader never blocks the publisher.
type subscriber struct {
	mu     sync.Mutex
	queue  []Update
	signal chan struct{}
	out    chan Update
	done   chan struct{}
	once   sync.Once
}

func newSubscriber() *subscriber {
	s := &subscriber{
		signal: make(chan struct{}, 1),
		out:    make(chan Update),
		done:   make(chan struct{}),
	}
	go s.pump()
	return s
}

// publish enqueues u without blocking.
func (s *subscriber) publish(u Update) {
	s.mu.Lock()
	s.queue = append(s.queue, u)
	s.mu.Unlock()

	select {
	case s.signal <- struct{}{}:
	default:
	}
}

// stop ends the pump; queued updates not yet received are dropped.
func (s *subscriber) stop() {
	s.once.Do(func() { close(s.done) })
}

func (s *subscriber) pump() {
	defer close(s.out)
	for {
		select {
		case <-s.done:
			return
		case <-s.signal:
		}

		for {
			s.mu.Lock()
			if len(s.queue) == 0 {
				s.queue = nil
				s.mu.Unlock()
				break
			}
			u := s.queue[0]
			s.queue[0] = Update{}
			s.queue = s.queue[1:]
			s.mu.Unlock()

			select {
			case s.out <- u:
			case <-s.done:
				return
			}
		}
	}
}
