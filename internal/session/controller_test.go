// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"io"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/nexora-labs/nexora-tui/internal/model"
	"github.com/nexora-labs/nexora-tui/internal/transport"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// =============================================================================
// FAKES
// =============================================================================

type sendCall struct {
	message string
	model   model.ID
}

// fakeTransport records calls and delegates to open.
type fakeTransport struct {
	mu    sync.Mutex
	calls []sendCall
	open  func(ctx context.Context) (transport.ByteStream, error)
}

func (f *fakeTransport) SendTurn(ctx context.Context, message string, id model.ID) (transport.ByteStream, error) {
	f.mu.Lock()
	f.calls = append(f.calls, sendCall{message: message, model: id})
	f.mu.Unlock()
	return f.open(ctx)
}

func (f *fakeTransport) Calls() []sendCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sendCall(nil), f.calls...)
}

// sliceStream replays fixed chunks, then err (or io.EOF).
type sliceStream struct {
	chunks [][]byte
	err    error
}

func (s *sliceStream) Next() ([]byte, error) {
	if len(s.chunks) == 0 {
		if s.err != nil {
			return nil, s.err
		}
		return nil, io.EOF
	}
	c := s.chunks[0]
	s.chunks = s.chunks[1:]
	return c, nil
}

func (s *sliceStream) Close() error { return nil }

func chunksOf(parts ...string) [][]byte {
	out := make([][]byte, len(parts))
	for i, p := range parts {
		out[i] = []byte(p)
	}
	return out
}

func replay(chunks [][]byte, err error) *fakeTransport {
	return &fakeTransport{open: func(context.Context) (transport.ByteStream, error) {
		return &sliceStream{chunks: append([][]byte(nil), chunks...), err: err}, nil
	}}
}

// pipeStream is fed by the test one chunk at a time and honours cancellation.
type pipeStream struct {
	ctx    context.Context
	ch     chan []byte
	closed chan struct{}
	once   sync.Once
}

func (s *pipeStream) Next() ([]byte, error) {
	select {
	case <-s.ctx.Done():
		return nil, &transport.Error{Op: "read", Err: s.ctx.Err()}
	case c, ok := <-s.ch:
		if !ok {
			return nil, io.EOF
		}
		return c, nil
	}
}

func (s *pipeStream) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}

// piped returns a transport whose single stream is driven through the
// returned channel. The stream is delivered on opened once SendTurn runs.
func piped() (*fakeTransport, chan []byte, chan *pipeStream) {
	ch := make(chan []byte)
	opened := make(chan *pipeStream, 1)
	f := &fakeTransport{open: func(ctx context.Context) (transport.ByteStream, error) {
		s := &pipeStream{ctx: ctx, ch: ch, closed: make(chan struct{})}
		opened <- s
		return s, nil
	}}
	return f, ch, opened
}

func newTestController(t *testing.T, tr transport.Transport) *Controller {
	t.Helper()
	c := NewController(Options{Transport: tr})
	t.Cleanup(func() { c.Close() })
	return c
}

// collect reads updates until a terminal one arrives.
func collect(t *testing.T, updates <-chan Update) []Update {
	t.Helper()
	var got []Update
	timeout := time.After(5 * time.Second)
	for {
		select {
		case u, ok := <-updates:
			if !ok {
				return got
			}
			got = append(got, u)
			if u.Terminal() {
				return got
			}
		case <-timeout:
			t.Fatalf("timed out waiting for terminal update; got %d updates", len(got))
			return got
		}
	}
}

// next reads a single update.
func next(t *testing.T, updates <-chan Update) Update {
	t.Helper()
	select {
	case u := <-updates:
		return u
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for update")
		return Update{}
	}
}

var ignoreTurnMeta = cmpopts.IgnoreFields(model.Turn{}, "ID", "CreatedAt")

func user(content string) model.Turn {
	return model.Turn{Role: model.RoleUser, Content: content}
}

func assistant(content string, streaming bool) model.Turn {
	return model.Turn{Role: model.RoleAssistant, Content: content, Streaming: streaming}
}

// =============================================================================
// SCENARIOS
// =============================================================================

func TestController_StreamsReply(t *testing.T) {
	tr := replay(chunksOf("Hi", " there"), nil)
	c := newTestController(t, tr)
	updates, unsubscribe := c.Subscribe()
	defer unsubscribe()

	require.NoError(t, c.Run(context.Background(), "hello"))

	got := collect(t, updates)
	require.Len(t, got, 4)

	wantTurns := [][]model.Turn{
		{user("hello"), assistant("", true)},
		{user("hello"), assistant("Hi", true)},
		{user("hello"), assistant("Hi there", true)},
		{user("hello"), assistant("Hi there", false)},
	}
	wantKinds := []UpdateKind{UpdateStarted, UpdateFragment, UpdateFragment, UpdateFinished}
	wantBusy := []bool{true, true, true, false}

	for i, u := range got {
		assert.Equal(t, wantKinds[i], u.Kind, "update %d kind", i)
		assert.Equal(t, wantBusy[i], u.Busy, "update %d busy", i)
		if diff := cmp.Diff(wantTurns[i], u.Turns, ignoreTurnMeta); diff != "" {
			t.Errorf("update %d turns mismatch (-want +got):\n%s", i, diff)
		}
	}
	assert.Equal(t, "Hi", got[1].Fragment)
	assert.Equal(t, " there", got[2].Fragment)
	assert.Equal(t, StateStreaming, got[1].State)

	assert.False(t, c.Busy())
	assert.Equal(t, StateIdle, c.State())
	assert.NoError(t, c.Err())
	if diff := cmp.Diff([]model.Turn{user("hello"), assistant("Hi there", false)}, c.Transcript(), ignoreTurnMeta); diff != "" {
		t.Errorf("final transcript mismatch (-want +got):\n%s", diff)
	}

	calls := tr.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, sendCall{message: "hello", model: "gpt-3.5-turbo"}, calls[0])
}

func TestController_HTTPErrorBeforeStreaming(t *testing.T) {
	tr := &fakeTransport{open: func(context.Context) (transport.ByteStream, error) {
		return nil, &transport.HTTPError{StatusCode: 500, Status: "500 Internal Server Error"}
	}}
	c := newTestController(t, tr)
	updates, unsubscribe := c.Subscribe()
	defer unsubscribe()

	err := c.Run(context.Background(), "hello")
	httpErr, ok := transport.IsHTTPError(err)
	require.True(t, ok, "expected HTTPError, got %v", err)
	assert.Equal(t, 500, httpErr.StatusCode)

	got := collect(t, updates)
	require.Len(t, got, 2)
	assert.Equal(t, UpdateFailed, got[1].Kind)
	assert.Equal(t, StateFailed, got[1].State)
	assert.False(t, got[1].Busy)
	assert.Equal(t, err, got[1].Err)

	assert.False(t, c.Busy())
	assert.Equal(t, StateIdle, c.State())
	assert.Equal(t, err, c.Err())
	if diff := cmp.Diff([]model.Turn{user("hello"), assistant("", false)}, c.Transcript(), ignoreTurnMeta); diff != "" {
		t.Errorf("transcript mismatch (-want +got):\n%s", diff)
	}
}

func TestController_TransportErrorKeepsPartial(t *testing.T) {
	reset := errors.New("connection reset by peer")
	c := newTestController(t, replay(chunksOf("par", "tial"), &transport.Error{Op: "read", Err: reset}))

	err := c.Run(context.Background(), "hello")
	require.Error(t, err)
	assert.True(t, transport.IsTransportError(err))
	assert.ErrorIs(t, err, reset)

	assert.False(t, c.Busy())
	if diff := cmp.Diff([]model.Turn{user("hello"), assistant("partial", false)}, c.Transcript(), ignoreTurnMeta); diff != "" {
		t.Errorf("transcript mismatch (-want +got):\n%s", diff)
	}
}

func TestController_UntypedErrorsAreTransportErrors(t *testing.T) {
	refused := errors.New("dial tcp: connection refused")
	c := newTestController(t, &fakeTransport{open: func(context.Context) (transport.ByteStream, error) {
		return nil, refused
	}})

	err := c.Run(context.Background(), "hello")
	var tErr *transport.Error
	require.True(t, errors.As(err, &tErr), "got %T", err)
	assert.Equal(t, "open", tErr.Op)
	assert.ErrorIs(t, err, refused)

	c2 := newTestController(t, replay(chunksOf("a"), errors.New("unexpected EOF")))
	err = c2.Run(context.Background(), "hello")
	require.True(t, errors.As(err, &tErr))
	assert.Equal(t, "read", tErr.Op)
}

// =============================================================================
// GUARDS
// =============================================================================

func TestController_RejectsEmptyInput(t *testing.T) {
	tr := replay(nil, nil)
	c := newTestController(t, tr)

	for _, input := range []string{"", "   ", "\n\t "} {
		err := c.Submit(context.Background(), input)
		assert.ErrorIs(t, err, ErrEmptyInput, "input %q", input)
		assert.True(t, IsValidation(err))

		err = c.Run(context.Background(), input)
		assert.ErrorIs(t, err, ErrEmptyInput)
	}

	assert.Empty(t, c.Transcript())
	assert.Empty(t, tr.Calls())
	assert.Equal(t, StateIdle, c.State())
}

func TestController_SendsInputVerbatim(t *testing.T) {
	tr := replay(nil, nil)
	c := newTestController(t, tr)

	require.NoError(t, c.Run(context.Background(), "  padded  "))
	assert.Equal(t, "  padded  ", tr.Calls()[0].message)
	assert.Equal(t, "  padded  ", c.Transcript()[0].Content)
}

func TestController_SingleInFlight(t *testing.T) {
	tr, ch, opened := piped()
	c := newTestController(t, tr)
	updates, unsubscribe := c.Subscribe()
	defer unsubscribe()

	require.NoError(t, c.Submit(context.Background(), "first"))
	assert.True(t, c.Busy())
	<-opened

	ch <- []byte("partial")
	assert.Equal(t, UpdateStarted, next(t, updates).Kind)
	assert.Equal(t, UpdateFragment, next(t, updates).Kind)

	err := c.Submit(context.Background(), "second")
	assert.ErrorIs(t, err, ErrBusy)
	assert.True(t, IsValidation(err))
	assert.ErrorIs(t, c.Run(context.Background(), "third"), ErrBusy)

	if diff := cmp.Diff([]model.Turn{user("first"), assistant("partial", true)}, c.Transcript(), ignoreTurnMeta); diff != "" {
		t.Errorf("busy submissions altered transcript (-want +got):\n%s", diff)
	}
	assert.Len(t, tr.Calls(), 1)

	close(ch)
	final := collect(t, updates)
	assert.Equal(t, UpdateFinished, final[len(final)-1].Kind)
	assert.False(t, c.Busy())
}

func TestController_ResetInvariant(t *testing.T) {
	outcomes := []struct {
		name string
		open func(context.Context) (transport.ByteStream, error)
	}{
		{"success", func(context.Context) (transport.ByteStream, error) {
			return &sliceStream{chunks: chunksOf("ok")}, nil
		}},
		{"http error", func(context.Context) (transport.ByteStream, error) {
			return nil, &transport.HTTPError{StatusCode: 502}
		}},
		{"transport error", func(context.Context) (transport.ByteStream, error) {
			return &sliceStream{err: &transport.Error{Op: "read", Err: io.ErrUnexpectedEOF}}, nil
		}},
	}

	for _, tt := range outcomes {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestController(t, &fakeTransport{open: tt.open})

			_ = c.Run(context.Background(), "one")
			assert.False(t, c.Busy())
			assert.Equal(t, StateIdle, c.State())

			_ = c.Run(context.Background(), "two")
			assert.Len(t, c.Transcript(), 4, "second submission must be accepted")
		})
	}
}

// =============================================================================
// ABORT
// =============================================================================

func TestController_Abort(t *testing.T) {
	tr, ch, opened := piped()
	c := newTestController(t, tr)
	updates, unsubscribe := c.Subscribe()
	defer unsubscribe()

	require.NoError(t, c.Submit(context.Background(), "hello"))
	s := <-opened
	ch <- []byte("Hi")

	assert.Equal(t, UpdateStarted, next(t, updates).Kind)
	assert.Equal(t, UpdateFragment, next(t, updates).Kind)

	c.Abort()

	u := next(t, updates)
	assert.Equal(t, UpdateAborted, u.Kind)
	assert.False(t, u.Busy)
	assert.Equal(t, StateIdle, c.State())
	assert.NoError(t, c.Err())
	if diff := cmp.Diff([]model.Turn{user("hello"), assistant("Hi", false)}, c.Transcript(), ignoreTurnMeta); diff != "" {
		t.Errorf("transcript mismatch (-want +got):\n%s", diff)
	}

	select {
	case <-s.closed:
	case <-time.After(5 * time.Second):
		t.Fatal("stream was not released after abort")
	}
	assert.Error(t, s.ctx.Err(), "request context should be cancelled")
}

func TestController_AbortWhenIdleIsNoop(t *testing.T) {
	c := newTestController(t, replay(chunksOf("x"), nil))
	updates, unsubscribe := c.Subscribe()
	defer unsubscribe()

	c.Abort()
	require.NoError(t, c.Run(context.Background(), "hello"))
	c.Abort()

	got := collect(t, updates)
	assert.Equal(t, UpdateStarted, got[0].Kind)
	assert.Equal(t, UpdateFinished, got[len(got)-1].Kind)
	assert.Equal(t, "x", c.Transcript()[1].Content)
}

func TestController_AbortThenResubmit(t *testing.T) {
	tr, ch, opened := piped()
	c := newTestController(t, tr)

	require.NoError(t, c.Submit(context.Background(), "first"))
	<-opened
	c.Abort()

	// the next turn uses a fresh stream
	tr.mu.Lock()
	tr.open = func(context.Context) (transport.ByteStream, error) {
		return &sliceStream{chunks: chunksOf("second reply")}, nil
	}
	tr.mu.Unlock()

	require.NoError(t, c.Run(context.Background(), "second"))
	close(ch)

	want := []model.Turn{
		user("first"), assistant("", false),
		user("second"), assistant("second reply", false),
	}
	if diff := cmp.Diff(want, c.Transcript(), ignoreTurnMeta); diff != "" {
		t.Errorf("transcript mismatch (-want +got):\n%s", diff)
	}
}

func TestController_RunReturnsAbortedOnParentCancel(t *testing.T) {
	tr, _, opened := piped()
	c := newTestController(t, tr)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx, "hello") }()

	<-opened
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrAborted)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.False(t, c.Busy())
	assert.NoError(t, c.Err())
}

func TestController_Close(t *testing.T) {
	tr, _, opened := piped()
	c := NewController(Options{Transport: tr})
	updates, _ := c.Subscribe()

	require.NoError(t, c.Submit(context.Background(), "hello"))
	<-opened

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	assert.False(t, c.Busy())
	assert.ErrorIs(t, c.Submit(context.Background(), "again"), ErrClosed)

	// channel closes once the pump stops
	for range updates {
	}

	late, unsubscribe := c.Subscribe()
	unsubscribe()
	_, ok := <-late
	assert.False(t, ok)
}

// =============================================================================
// ORDERING
// =============================================================================

func TestController_FragmentsApplyInOrder(t *testing.T) {
	text := "Ordering ✓ across splits: naïve café, 日本語, emoji 🚀🎉, done."
	raw := []byte(text)
	rng := rand.New(rand.NewSource(7))

	for iter := 0; iter < 50; iter++ {
		var chunks [][]byte
		rest := raw
		for len(rest) > 0 {
			n := 1 + rng.Intn(5)
			if n > len(rest) {
				n = len(rest)
			}
			chunks = append(chunks, rest[:n])
			rest = rest[n:]
		}

		c := NewController(Options{Transport: replay(chunks, nil)})
		updates, unsubscribe := c.Subscribe()
		require.NoError(t, c.Run(context.Background(), "go"))

		var joined strings.Builder
		prev := ""
		for _, u := range collect(t, updates) {
			content := u.Turns[len(u.Turns)-1].Content
			require.True(t, strings.HasPrefix(content, prev), "assistant content must only grow")
			prev = content

			if u.Kind == UpdateFragment {
				require.NotEmpty(t, u.Fragment)
				joined.WriteString(u.Fragment)
			}
		}

		require.Equal(t, text, joined.String(), "iteration %d", iter)
		require.Equal(t, text, c.Transcript()[1].Content, "iteration %d", iter)

		unsubscribe()
		c.Close()
	}
}

func TestController_PartialCharacterChunkPublishesNothing(t *testing.T) {
	euro := []byte("€")
	c := newTestController(t, replay([][]byte{euro[:1], euro[1:2], euro[2:]}, nil))
	updates, unsubscribe := c.Subscribe()
	defer unsubscribe()

	require.NoError(t, c.Run(context.Background(), "price"))

	var fragments []string
	for _, u := range collect(t, updates) {
		if u.Kind == UpdateFragment {
			fragments = append(fragments, u.Fragment)
		}
	}
	assert.Equal(t, []string{"€"}, fragments)
}

func TestController_SlowSubscriberDoesNotBlock(t *testing.T) {
	chunks := make([][]byte, 500)
	for i := range chunks {
		chunks[i] = []byte("x")
	}
	c := newTestController(t, replay(chunks, nil))
	_, unsubscribe := c.Subscribe() // never read
	defer unsubscribe()

	done := make(chan error, 1)
	go func() { done <- c.Run(context.Background(), "go") }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("decode loop blocked on a slow subscriber")
	}
	assert.Len(t, c.Transcript()[1].Content, 500)
}

// =============================================================================
// MODEL SELECTION
// =============================================================================

func TestController_ModelGuard(t *testing.T) {
	tr := replay(nil, nil)
	c := newTestController(t, tr)
	updates, unsubscribe := c.Subscribe()
	defer unsubscribe()

	assert.Equal(t, model.ID("gpt-3.5-turbo"), c.Model())

	err := c.Select("gpt-99")
	assert.True(t, model.IsInvalidModel(err))
	assert.Equal(t, model.ID("gpt-3.5-turbo"), c.Model())

	require.NoError(t, c.Select("grok-2-latest"))
	u := next(t, updates)
	assert.Equal(t, UpdateModelChanged, u.Kind)
	assert.Equal(t, model.ID("grok-2-latest"), u.Model)

	require.NoError(t, c.Run(context.Background(), "hello"))
	assert.Equal(t, model.ID("grok-2-latest"), tr.Calls()[0].model)
}

func TestController_CycleModel(t *testing.T) {
	c := newTestController(t, replay(nil, nil))
	ids := model.DefaultCatalog().IDs()

	assert.Equal(t, ids[1], c.CycleModel(1))
	assert.Equal(t, ids[0], c.CycleModel(-1))
	assert.Equal(t, ids[len(ids)-1], c.CycleModel(-1))
	assert.Len(t, c.Models(), len(ids))
}

func TestController_SelectDuringTurnAffectsNextTurn(t *testing.T) {
	tr, ch, opened := piped()
	c := newTestController(t, tr)

	require.NoError(t, c.Submit(context.Background(), "first"))
	<-opened
	require.NoError(t, c.Select("gpt-4o"))
	close(ch)

	require.Eventually(t, func() bool { return !c.Busy() }, 5*time.Second, 5*time.Millisecond)
	assert.Equal(t, model.ID("gpt-3.5-turbo"), tr.Calls()[0].model)
}

func TestStateBusy(t *testing.T) {
	tests := []struct {
		state State
		busy  bool
		name  string
	}{
		{StateIdle, false, "idle"},
		{StateSending, true, "sending"},
		{StateStreaming, true, "streaming"},
		{StateFailed, false, "failed"},
	}
	for _, tt := range tests {
		if got := tt.state.Busy(); got != tt.busy {
			t.Errorf("%v.Busy() = %v, want %v", tt.state, got, tt.busy)
		}
		if got := tt.state.String(); got != tt.name {
			t.Errorf("String() = %q, want %q", got, tt.name)
		}
	}
}
