// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrEmptyPrompt is returned before any request is made.
	ErrEmptyPrompt = errors.New("prompt is empty")

	// ErrStalledConnection means no bytes arrived within the heartbeat
	// interval.
	ErrStalledConnection = errors.New("connection stalled")

	// ErrDeadlineExceeded means the per-chunk deadline elapsed.
	ErrDeadlineExceeded = errors.New("response deadline exceeded")

	// ErrStreamClosed means the server ended the body without a done record.
	ErrStreamClosed = errors.New("stream closed before completion")

	// ErrUserCancelled marks a stream stopped on request. It never reaches
	// callers of Stream: cancellation is reported as a successful partial
	// result.
	ErrUserCancelled = errors.New("cancelled by user")

	// ErrSuperseded is the cancellation cause when a newer stream starts.
	ErrSuperseded = fmt.Errorf("%w: superseded by a newer request", ErrUserCancelled)
)

// FatalStreamError is an error record received before any content.
type FatalStreamError struct {
	Message string
}

// Error implements the error interface.
func (e *FatalStreamError) Error() string {
	return "stream error: " + e.Message
}

// TimeoutError reports a stall or deadline with a hint for the user.
type TimeoutError struct {
	// Kind is ErrStalledConnection or ErrDeadlineExceeded.
	Kind  error
	After time.Duration
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%v after %v: %s", e.Kind, e.After.Round(time.Second), e.Suggestion())
}

// Unwrap exposes Kind to errors.Is.
func (e *TimeoutError) Unwrap() error {
	return e.Kind
}

// Suggestion is the user-facing remedy.
func (e *TimeoutError) Suggestion() string {
	if errors.Is(e.Kind, ErrStalledConnection) {
		return "the server stopped sending data; check your connection or try a shorter prompt"
	}
	return "the response took too long; try a shorter prompt or split the request"
}
