// Package errors defines the error categories shared by every layer. Use cases
// wrap one of the sentinels and the HTTP layer maps the category to a status.
package errors

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnavailable marks failures of a dependency (database, KMS) that may
	// succeed when the call is repeated.
	ErrUnavailable = errors.New("unavailable")
)

// New returns a new error category or leaf error with message.
func New(message string) error {
	return errors.New(message)
}

// Wrap prefixes err with message, keeping err in the chain. Wrap(nil, ...) is nil.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf is Wrap with a formatted message.
func Wrapf(err error, format string, args ...any) error {
	return Wrap(err, fmt.Sprintf(format, args...))
}

// Is is errors.Is, re-exported so callers need a single errors import.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// Retryable reports whether err belongs to the ErrUnavailable category.
func Retryable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}
