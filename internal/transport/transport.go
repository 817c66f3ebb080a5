// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/nexora-labs/nexora-tui/internal/model"
)

// DefaultChunkSize is the read buffer used when adapting a response body.
const DefaultChunkSize = 4096

// =============================================================================
// INTERFACES
// =============================================================================

// Transport sends one chat turn and returns the streaming response body.
//
// Implementations return *HTTPError when the backend rejects the request
// before streaming and *Error for network failures. Cancelling ctx must
// release the underlying connection.
type Transport interface {
	SendTurn(ctx context.Context, message string, model model.ID) (ByteStream, error)
}

// ByteStream is an incrementally delivered response body.
//
// Next returns the next chunk in arrival order and io.EOF once the backend
// has finished. Chunks are owned by the caller.
type ByteStream interface {
	Next() ([]byte, error)
	Close() error
}

// Pinger is implemented by transports that can check backend health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// =============================================================================
// ERROR TYPES
// =============================================================================

// ErrNoBody is the cause reported when a response carries no readable body.
var ErrNoBody = errors.New("response has no readable body")

// HTTPError is a non-success response received before streaming started.
type HTTPError struct {
	StatusCode int
	Status     string
	// Detail is the backend's error message, when it sent one
	Detail string
}

func (e *HTTPError) Error() string {
	status := e.Status
	if status == "" {
		status = fmt.Sprintf("%d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	if e.Detail != "" {
		return "backend returned " + status + ": " + e.Detail
	}
	return "backend returned " + status
}

// Error is a network or body read failure.
type Error struct {
	// Op is the phase that failed: "request", "open" or "read"
	Op  string
	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return "transport " + e.Op + ": " + e.Err.Error()
	}
	return "transport " + e.Op + " failed"
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsHTTPError checks if an error is a status failure and returns it.
func IsHTTPError(err error) (*HTTPError, bool) {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr, true
	}
	return nil, false
}

// IsTransportError checks if an error is a network or read failure.
func IsTransportError(err error) bool {
	var tErr *Error
	return errors.As(err, &tErr)
}

// =============================================================================
// READER STREAM
// =============================================================================

// readerStream adapts an io.ReadCloser to ByteStream.
type readerStream struct {
	rc  io.ReadCloser
	buf []byte
	err error
}

// NewReaderStream wraps rc, yielding chunks of at most size bytes.
// A non-positive size uses DefaultChunkSize.
func NewReaderStream(rc io.ReadCloser, size int) ByteStream {
	if size <= 0 {
		size = DefaultChunkSize
	}
	return &readerStream{rc: rc, buf: make([]byte, size)}
}

// Next reads the next chunk. Data returned together with an error is
// delivered first; the error surfaces on the following call. Read failures
// other than io.EOF are reported as *Error with Op "read".
func (s *readerStream) Next() ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	for {
		n, err := s.rc.Read(s.buf)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				err = &Error{Op: "read", Err: err}
			}
			s.err = err
		}
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, s.buf[:n])
			return chunk, nil
		}
		if err != nil {
			return nil, err
		}
	}
}

func (s *readerStream) Close() error {
	return s.rc.Close()
}
