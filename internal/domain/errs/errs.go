// Package errs defines the engine's error taxonomy.
//
// Skips (duplicate, cap, no_points) are not errors and never appear here.
// Everything else falls into one of three classes: configuration errors
// (the engine is not in an awardable state), transient storage errors (safe
// to retry with the same source key) and invariant violations (bugs).
package errs

import (
	"errors"
	"fmt"
)

// Class sentinels. Use errors.Is against these.
var (
	ErrConfiguration = errors.New("configuration error")
	ErrTransient     = errors.New("transient storage error")
	ErrInvariant     = errors.New("invariant violation")
	ErrNotFound      = errors.New("not found")
	ErrInvalidInput  = errors.New("invalid input")
	ErrConflict      = errors.New("conflict")
)

// Configuration errors.
var (
	ErrNoActiveSeason        = fmt.Errorf("%w: no active season", ErrConfiguration)
	ErrMultipleActiveSeasons = fmt.Errorf("%w: more than one active season", ErrConfiguration)
)

// InvariantError describes a violated data invariant.
type InvariantError struct {
	Entity string
	Detail string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("invariant violation on %s: %s", e.Entity, e.Detail)
}

// Unwrap ties InvariantError to ErrInvariant.
func (e *InvariantError) Unwrap() error { return ErrInvariant }

// Invariant builds an InvariantError.
func Invariant(entity, format string, args ...any) error {
	return &InvariantError{Entity: entity, Detail: fmt.Sprintf(format, args...)}
}

type transientError struct {
	err error
}

func (e *transientError) Error() string   { return "transient: " + e.err.Error() }
func (e *transientError) Unwrap() []error { return []error{ErrTransient, e.err} }

// Transient marks err as retryable. nil stays nil.
func Transient(err error) error {
	if err == nil || errors.Is(err, ErrTransient) {
		return err
	}
	return &transientError{err: err}
}

// Invalid wraps a validation failure.
func Invalid(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidInput, err)
}

// IsTransient reports whether err may be retried.
func IsTransient(err error) bool { return errors.Is(err, ErrTransient) }

// IsConfiguration reports whether err is a configuration error.
func IsConfiguration(err error) bool { return errors.Is(err, ErrConfiguration) }

// IsInvariant reports whether err is an invariant violation.
func IsInvariant(err error) bool { return errors.Is(err, ErrInvariant) }

// Class returns a short label for metrics and logs.
func Class(err error) string {
	switch {
	case err == nil:
		return ""
	case IsConfiguration(err):
		return "configuration"
	case IsInvariant(err):
		return "invariant"
	case IsTransient(err):
		return "transient"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrConflict):
		return "conflict"
	}
	return "internal"
}
