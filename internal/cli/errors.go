// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/jeranaias/chatcore/internal/api"
	"github.com/jeranaias/chatcore/internal/config"
	"github.com/jeranaias/chatcore/internal/stream"
)

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	ExitSuccess      = 0
	ExitGeneralError = 1
	ExitUsageError   = 2
	ExitConfigError  = 3
	ExitAuthError    = 4
	ExitNetworkError = 5
	ExitNotFound     = 7
	ExitTimeout      = 8
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// UsageError is a malformed command line.
type UsageError struct {
	Reason string
	Usage  string
}

// NewUsageError creates a UsageError.
func NewUsageError(reason string) error {
	return &UsageError{Reason: reason}
}

func (e *UsageError) Error() string {
	if e.Usage != "" {
		return e.Reason + "\nUsage: " + e.Usage
	}
	return e.Reason
}

// ErrMissingArgument reports a required positional that was not given.
func ErrMissingArgument(name, usage string) error {
	return &UsageError{Reason: "missing " + name, Usage: usage}
}

// ExitCode maps err to the process exit status.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var ue *UsageError
	var ve config.ValidateErrors
	var te *stream.TimeoutError
	switch {
	case errors.As(err, &ue):
		return ExitUsageError
	case errors.As(err, &ve), errors.Is(err, config.ErrUnknownKey):
		return ExitConfigError
	case api.IsUnauthorized(err):
		return ExitAuthError
	case api.IsNotFound(err):
		return ExitNotFound
	case errors.As(err, &te), errors.Is(err, context.DeadlineExceeded):
		return ExitTimeout
	}

	var tr *api.TransportError
	if errors.As(err, &tr) {
		return ExitNetworkError
	}
	return ExitGeneralError
}

// DisplayError writes err for the user. In JSON mode it writes a failed
// JSONResponse instead.
func DisplayError(w io.Writer, command string, err error, jsonMode bool) {
	if jsonMode {
		_ = NewJSONErrorResponse(command, err).Write(w)
		return
	}
	msg := err.Error()
	var tr *api.TransportError
	var fe *stream.FatalStreamError
	if errors.As(err, &tr) || errors.As(err, &fe) {
		msg = stream.Describe(err)
	}
	fmt.Fprintf(w, "%s %s\n", ErrorStyle.Render("[Error]"), msg)
	if api.IsUnauthorized(err) {
		fmt.Fprintf(w, "%s run 'chatcore login' to store a token\n", DimStyle.Render("hint:"))
	}
}
