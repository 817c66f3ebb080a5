// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nexora-labs/nexora-tui/internal/model"
	"github.com/nexora-labs/nexora-tui/internal/stream"
	"github.com/nexora-labs/nexora-tui/internal/transport"
)

// =============================================================================
// STATE
// =============================================================================

// State is the controller's position in the turn lifecycle.
type State int

const (
	StateIdle State = iota
	StateSending
	StateStreaming
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSending:
		return "sending"
	case StateStreaming:
		return "streaming"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Busy reports whether a turn is in flight in this state.
func (s State) Busy() bool {
	return s == StateSending || s == StateStreaming
}

// =============================================================================
// CONTROLLER
// =============================================================================

// Options configures a Controller.
type Options struct {
	// Transport opens the response stream for each turn (required)
	Transport transport.Transport

	// Selector holds the active model (default: DefaultCatalog selector)
	Selector *model.Selector

	// Logger receives one entry per finished turn (default: no-op)
	Logger *zap.Logger
}

// Controller runs turns one at a time and owns the transcript.
type Controller struct {
	transport transport.Transport
	selector  *model.Selector
	logger    *zap.Logger

	mu         sync.Mutex
	transcript model.Transcript
	state      State
	lastErr    error
	active     *turn
	seq        uint64
	subs       map[uint64]*subscriber
	subSeq     uint64
	closed     bool

	wg sync.WaitGroup
}

// turn is the bookkeeping for one in-flight submission.
type turn struct {
	seq       uint64
	ctx       context.Context
	cancel    context.CancelFunc
	message   string
	model     model.ID
	started   time.Time
	fragments int
	bytes     int
}

// NewController creates an idle controller with an empty transcript.
func NewController(opts Options) *Controller {
	if opts.Selector == nil {
		opts.Selector = model.NewSelector(model.DefaultCatalog())
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Controller{
		transport: opts.Transport,
		selector:  opts.Selector,
		logger:    opts.Logger,
		subs:      make(map[uint64]*subscriber),
	}
}

// =============================================================================
// SUBMISSION
// =============================================================================

// Submit starts a turn for text and returns once it is accepted. The response
// streams in the background; its outcome arrives as a terminal Update.
func (c *Controller) Submit(ctx context.Context, text string) error {
	t, err := c.begin(ctx, text)
	if err != nil {
		return err
	}

	go c.execute(t)
	return nil
}

// Run is Submit that waits for the turn to end. It returns nil on success,
// *transport.HTTPError, *transport.Error or ErrAborted.
func (c *Controller) Run(ctx context.Context, text string) error {
	t, err := c.begin(ctx, text)
	if err != nil {
		return err
	}

	return c.execute(t)
}

// begin validates the submission and appends the user and placeholder turns.
func (c *Controller) begin(ctx context.Context, text string) (*turn, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyInput
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClosed
	}
	if c.state != StateIdle {
		return nil, ErrBusy
	}

	c.seq++
	turnCtx, cancel := context.WithCancel(ctx)
	t := &turn{
		seq:     c.seq,
		ctx:     turnCtx,
		cancel:  cancel,
		message: text,
		model:   c.selector.Current(),
		started: time.Now(),
	}

	c.transcript.Append(model.NewUserTurn(text))
	c.transcript.Append(model.NewAssistantTurn())
	c.state = StateSending
	c.lastErr = nil
	c.active = t
	c.wg.Add(1)

	c.publishLocked(Update{Kind: UpdateStarted})
	return t, nil
}

// execute drives one turn to a terminal outcome.
func (c *Controller) execute(t *turn) error {
	defer c.wg.Done()
	defer c.reset(t)

	body, err := c.transport.SendTurn(t.ctx, t.message, t.model)
	if err != nil {
		return c.finish(t, classify("open", err))
	}
	defer body.Close()

	if !c.transition(t, StateStreaming) {
		return ErrAborted
	}

	reader := stream.NewReader(body)
	for {
		fragment, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return c.finish(t, nil)
		}
		if err != nil {
			return c.finish(t, classify("read", err))
		}
		if fragment == "" {
			continue
		}
		if !c.apply(t, fragment) {
			return ErrAborted
		}
	}
}

// reset ends t if it is somehow still active when execute returns, so busy
// never outlives the turn (including when execute panics).
func (c *Controller) reset(t *turn) {
	t.cancel()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == t {
		c.endLocked(t, UpdateFailed, &transport.Error{Op: "read", Err: errors.New("turn ended unexpectedly")})
	}
}

// transition moves the active turn to state. It reports false once the turn
// is no longer active.
func (c *Controller) transition(t *turn, state State) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active != t {
		return false
	}
	c.state = state
	return true
}

// apply appends fragment to the in-progress assistant Turn.
func (c *Controller) apply(t *turn, fragment string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active != t {
		return false
	}

	last, _ := c.transcript.Last()
	if err := c.transcript.ReplaceLast(last.Appended(fragment)); err != nil {
		c.logger.Error("dropping fragment", zap.Error(err))
		return true
	}
	t.fragments++
	t.bytes += len(fragment)

	c.publishLocked(Update{Kind: UpdateFragment, Fragment: fragment})
	return true
}

// finish ends the active turn with outcome and returns the value Run reports.
func (c *Controller) finish(t *turn, outcome error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active != t {
		return ErrAborted
	}

	// A cancelled parent context is an abort, not a network failure.
	if outcome != nil && errors.Is(t.ctx.Err(), context.Canceled) {
		c.endLocked(t, UpdateAborted, ErrAborted)
		return ErrAborted
	}

	if outcome != nil {
		c.endLocked(t, UpdateFailed, outcome)
		return outcome
	}
	c.endLocked(t, UpdateFinished, nil)
	return nil
}

// endLocked finalizes the assistant Turn, publishes the terminal update and
// returns to Idle.
func (c *Controller) endLocked(t *turn, kind UpdateKind, outcome error) {
	if last, ok := c.transcript.Last(); ok && last.InProgress() {
		_ = c.transcript.ReplaceLast(last.Finalized())
	}

	c.active = nil
	t.cancel()

	if kind == UpdateFailed {
		// Failed is only observable in the update; the controller is
		// immediately ready for the next submission.
		c.state = StateFailed
		c.lastErr = outcome
		c.publishLocked(Update{Kind: kind, Err: outcome})
		c.state = StateIdle
	} else {
		c.state = StateIdle
		c.publishLocked(Update{Kind: kind})
	}

	c.logTurn(t, kind, outcome)
}

// =============================================================================
// CANCELLATION
// =============================================================================

// Abort stops the in-flight turn, keeping whatever text already streamed.
// It does nothing when idle.
func (c *Controller) Abort() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active == nil {
		return
	}
	c.endLocked(c.active, UpdateAborted, ErrAborted)
}

// Close aborts any in-flight turn, waits for it to unwind and stops all
// subscriptions. Later submissions fail with ErrClosed.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	if c.active != nil {
		c.endLocked(c.active, UpdateAborted, ErrAborted)
	}
	c.mu.Unlock()

	c.wg.Wait()

	c.mu.Lock()
	subs := c.subs
	c.subs = make(map[uint64]*subscriber)
	c.mu.Unlock()

	for _, s := range subs {
		s.stop()
	}
	return nil
}

// =============================================================================
// OBSERVATION
// =============================================================================

// Subscribe returns a channel receiving every Update published from now on,
// in order. The channel is closed by the returned cancel func or by Close.
func (c *Controller) Subscribe() (<-chan Update, func()) {
	s := newSubscriber()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		s.stop()
		return s.out, func() {}
	}
	c.subSeq++
	id := c.subSeq
	c.subs[id] = s
	c.mu.Unlock()

	return s.out, func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
		s.stop()
	}
}

// publishLocked stamps u with the current state and fans it out.
func (c *Controller) publishLocked(u Update) {
	u.State = c.state
	u.Busy = c.state.Busy()
	u.Turns = c.transcript.Turns()
	u.Model = c.selector.Current()
	u.At = time.Now()

	for _, s := range c.subs {
		s.publish(u)
	}
}

// Transcript returns a copy of all turns.
func (c *Controller) Transcript() []model.Turn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transcript.Turns()
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Busy reports whether a turn is in flight.
func (c *Controller) Busy() bool {
	return c.State().Busy()
}

// Err returns the failure of the most recent turn, cleared by the next submission.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// ClearErr forgets the last failure.
func (c *Controller) ClearErr() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastErr = nil
}

// =============================================================================
// MODEL SELECTION
// =============================================================================

// Model returns the selected model id.
func (c *Controller) Model() model.ID {
	return c.selector.Current()
}

// Models returns the selectable models in display order.
func (c *Controller) Models() []model.Info {
	return c.selector.Catalog()
}

// Select changes the model used by the next turn. An in-flight turn keeps
// the model it was sent with.
func (c *Controller) Select(id model.ID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	prev := c.selector.Current()
	if err := c.selector.Select(id); err != nil {
		return err
	}
	if prev != id {
		c.publishLocked(Update{Kind: UpdateModelChanged})
	}
	return nil
}

// CycleModel selects the model step positions away in the catalog.
func (c *Controller) CycleModel(step int) model.ID {
	c.mu.Lock()
	defer c.mu.Unlock()

	prev := c.selector.Current()
	next := c.selector.Next(step)
	if next != prev {
		c.publishLocked(Update{Kind: UpdateModelChanged})
	}
	return next
}

// =============================================================================
// HELPERS
// =============================================================================

// classify maps a transport failure onto the two reported error kinds.
func classify(op string, err error) error {
	if _, ok := transport.IsHTTPError(err); ok {
		return err
	}
	if transport.IsTransportError(err) {
		return err
	}
	return &transport.Error{Op: op, Err: err}
}

func (c *Controller) logTurn(t *turn, kind UpdateKind, outcome error) {
	fields := []zap.Field{
		zap.String("model", string(t.model)),
		zap.String("outcome", kind.String()),
		zap.Int("fragments", t.fragments),
		zap.Int("bytes", t.bytes),
		zap.Duration("duration", time.Since(t.started)),
	}
	if httpErr, ok := transport.IsHTTPError(outcome); ok {
		fields = append(fields, zap.Int("status", httpErr.StatusCode))
	}

	if kind == UpdateFailed {
		c.logger.Warn("turn failed", append(fields, zap.Error(outcome))...)
		return
	}
	c.logger.Info("turn finished", fields...)
}
