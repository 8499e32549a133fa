// Package errors provides error handling for voyagent.
//
// This package re-exports github.com/cockroachdb/errors, providing:
//   - Stack traces for debugging
//   - Error wrapping and context
//   - PII-safe error formatting
//
// Usage:
//
//	// Create new error
//	err := errors.New("something went wrong")
//
//	// Wrap with context
//	if err := doSomething(); err != nil {
//	    return errors.Wrap(err, "failed to do something")
//	}
//
//	// Check errors
//	if errors.Is(err, errors.ErrValidation) {
//	    // handle bad input
//	}
//
// For full documentation see: https://pkg.go.dev/github.com/cockroachdb/errors
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
)

// User-facing messages and details
var (
	WithHint    = crdb.WithHint
	WithHintf   = crdb.WithHintf
	WithDetail  = crdb.WithDetail
	WithDetailf = crdb.WithDetailf
)

// Error inspection
var (
	Is        = crdb.Is
	IsAny     = crdb.IsAny
	As        = crdb.As
	Unwrap    = crdb.Unwrap
	UnwrapAll = crdb.UnwrapAll
)

// Sentinel errors for the research job lifecycle. These map the failure
// taxonomy of the coordinator onto errors.Is-checkable values:
//
//   - ErrValidation: bad preferences, fails synchronously before any network call
//   - ErrNetwork: channel drop or open failure, retried per backoff policy
//   - ErrProtocol: malformed live-channel message, logged and dropped
//   - ErrBackend: the server reported the job failed, terminal
//   - ErrStall: idle timeout on an open channel, treated like ErrNetwork
//
// Wrap these with errors.Wrap() to add context while preserving the type.
var (
	// ErrValidation indicates the submitted preferences were invalid
	ErrValidation = New("invalid preferences")

	// ErrNetwork indicates a transport-level failure (connect, read, HTTP round-trip)
	ErrNetwork = New("network failure")

	// ErrProtocol indicates a malformed or unrecognized live-channel message
	ErrProtocol = New("protocol error")

	// ErrBackend indicates the research backend reported a terminal failure
	ErrBackend = New("backend failure")

	// ErrStall indicates no message arrived within the idle timeout
	ErrStall = New("connection stalled")

	// ErrNotFound indicates the requested job does not exist on the backend
	ErrNotFound = New("job not found")
)

// IsValidation checks if an error is or wraps ErrValidation
func IsValidation(err error) bool {
	return err != nil && Is(err, ErrValidation)
}

// IsNetwork checks if an error is or wraps ErrNetwork or ErrStall.
// Stalls are a network condition from the caller's point of view.
func IsNetwork(err error) bool {
	return err != nil && (Is(err, ErrNetwork) || Is(err, ErrStall))
}

// IsBackend checks if an error is or wraps ErrBackend
func IsBackend(err error) bool {
	return err != nil && Is(err, ErrBackend)
}

// IsNotFound checks if an error is or wraps ErrNotFound
func IsNotFound(err error) bool {
	return err != nil && Is(err, ErrNotFound)
}

// NewValidationError creates a validation error with a formatted message
func NewValidationError(format string, args ...interface{}) error {
	return Wrap(ErrValidation, Newf(format, args...).Error())
}

// WrapNetwork wraps an error as a network error with context
func WrapNetwork(err error, context string) error {
	return Wrap(Wrap(ErrNetwork, err.Error()), context)
}

// NewBackendError creates a backend error carrying the server-provided message
func NewBackendError(format string, args ...interface{}) error {
	return Wrap(ErrBackend, Newf(format, args...).Error())
}
