// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nexora-labs/nexora-tui/internal/model"
	"github.com/nexora-labs/nexora-tui/internal/session"
	"github.com/nexora-labs/nexora-tui/internal/ui/styles"
)

// =============================================================================
// LAYOUT
// =============================================================================

const (
	headerHeight = 1
	inputHeight  = 2 // top border + prompt line
	statusHeight = 1
	helpHeight   = 1

	// chromeHeight is every row not given to the transcript viewport.
	chromeHeight = headerHeight + inputHeight + statusHeight + helpHeight

	// contentMargin is the horizontal space reserved around turn bodies.
	contentMargin = 4
)

// =============================================================================
// CHAT MODEL
// =============================================================================

// Options configures a chat Model.
type Options struct {
	// Context is the parent of every turn submitted from the view.
	Context context.Context

	// Theme defaults to styles.NewTheme().
	Theme *styles.Theme

	// MaxFPS caps viewport rebuilds while a reply streams.
	MaxFPS int

	// ShowTimestamps adds the turn time next to each label.
	ShowTimestamps bool

	// Backend is shown in the header, usually the endpoint URL.
	Backend string
}

// Model is the Bubble Tea model for the chat view. It renders the
// controller's transcript and forwards user intents to it; it never
// mutates conversation state itself.
type Model struct {
	ctx  context.Context
	ctrl *session.Controller

	// Controller subscription
	updates     <-chan session.Update
	unsubscribe func()

	// Styling
	theme *styles.Theme
	keys  KeyMap

	// Dimensions
	width  int
	height int
	ready  bool

	// UI Components
	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model
	help     help.Model
	throttle *redrawThrottle

	// Last observed controller snapshot
	turns     []model.Turn
	state     session.State
	busy      bool
	lastErr   error
	modelInfo model.Info

	// notice is a transient message such as a rejected submission.
	notice string

	showTimestamps bool
	backend        string
	now            func() time.Time
}

// New creates a chat view bound to ctrl and subscribes to its updates.
// Call Close once the program has exited.
func New(ctrl *session.Controller, opts Options) Model {
	if opts.Context == nil {
		opts.Context = context.Background()
	}
	theme := opts.Theme
	if theme == nil {
		theme = styles.NewTheme()
	}

	input := textinput.New()
	input.Placeholder = "Type a message..."
	input.Prompt = "> "
	input.PromptStyle = theme.InputPrompt
	input.Focus()

	sp := spinner.New()
	sp.Spinner = styles.DotsSpinner.Bubble()
	sp.Style = theme.SpinnerStyle

	h := help.New()
	h.Styles.ShortKey = theme.ShortcutKey
	h.Styles.ShortDesc = theme.ShortcutDesc
	h.Styles.ShortSeparator = theme.ShortcutDesc

	updates, unsubscribe := ctrl.Subscribe()

	m := Model{
		ctx:            opts.Context,
		ctrl:           ctrl,
		updates:        updates,
		unsubscribe:    unsubscribe,
		theme:          theme,
		keys:           DefaultKeyMap(),
		input:          input,
		spinner:        sp,
		help:           h,
		throttle:       newRedrawThrottle(opts.MaxFPS),
		turns:          ctrl.Transcript(),
		state:          ctrl.State(),
		busy:           ctrl.Busy(),
		lastErr:        ctrl.Err(),
		showTimestamps: opts.ShowTimestamps,
		backend:        opts.Backend,
		now:            time.Now,
	}
	m.modelInfo = m.lookupModel(ctrl.Model())
	return m
}

// Init starts listening for controller updates.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.listen())
}

// Close ends the controller subscription.
func (m Model) Close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
}

// listen waits for the next controller update.
func (m Model) listen() tea.Cmd {
	ch := m.updates
	return func() tea.Msg {
		u, ok := <-ch
		if !ok {
			return SessionClosedMsg{}
		}
		return SessionUpdateMsg{Update: u}
	}
}

func (m Model) lookupModel(id model.ID) model.Info {
	if info, ok := model.Catalog(m.ctrl.Models()).Lookup(id); ok {
		return info
	}
	return model.Info{ID: id}
}

// =============================================================================
// ACCESSORS
// =============================================================================

// Turns returns the last transcript snapshot the view rendered from.
func (m Model) Turns() []model.Turn {
	return m.turns
}

// Busy reports whether the view believes a turn is in flight.
func (m Model) Busy() bool {
	return m.busy
}

// LastError returns the error shown in the status bar, if any.
func (m Model) LastError() error {
	return m.lastErr
}

// Notice returns the transient status message.
func (m Model) Notice() string {
	return m.notice
}

// CurrentModel returns the model shown in the status bar.
func (m Model) CurrentModel() model.Info {
	return m.modelInfo
}

// InputValue returns the text currently typed.
func (m Model) InputValue() string {
	return m.input.Value()
}
