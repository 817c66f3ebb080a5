// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import "errors"

// ValidationError is a submission the controller refused. The transcript
// and state are unchanged.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// Sentinel errors for easy checking.
var (
	ErrEmptyInput = &ValidationError{Reason: "message is empty"}
	ErrBusy       = &ValidationError{Reason: "a response is still streaming"}

	// ErrAborted is the outcome of a turn stopped by Abort or Close.
	ErrAborted = errors.New("turn aborted")

	// ErrClosed is returned by Submit and Run after Close.
	ErrClosed = errors.New("session closed")
)

// IsValidation checks if an error is a rejected submission.
func IsValidation(err error) bool {
	var vErr *ValidationError
	return errors.As(err, &vErr)
}
