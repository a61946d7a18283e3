// Package common provides shared utilities and types used across the application.
package common

import (
	"errors"
	"fmt"
)

// Common application errors.
var (
	// Pipeline errors.
	ErrDuplicate      = errors.New("document already processed")
	ErrRateLimited    = errors.New("classification rate limit exceeded")
	ErrCircuitOpen    = errors.New("classification circuit open")
	ErrServiceFailure = errors.New("classification service failure")
	ErrUnparseable    = errors.New("unparseable classification response")

	// Database errors.
	ErrNotFound = errors.New("not found")

	// Configuration errors.
	ErrMissingConfig = errors.New("missing configuration")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// ParseError wraps ErrUnparseable with the diagnostic payload needed for
// offline inspection of a malformed service response.
type ParseError struct {
	Reason  string
	Raw     string
	Cleaned string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("unparseable classification response: %s", e.Reason)
}

func (e *ParseError) Unwrap() error {
	return ErrUnparseable
}

// NewParseError creates a ParseError carrying both the original and the
// cleaned response text.
func NewParseError(reason, raw, cleaned string) error {
	return &ParseError{Reason: reason, Raw: raw, Cleaned: cleaned}
}

// IsTransient reports whether an error should defer the remaining batch to
// the next cycle instead of counting against the document.
func IsTransient(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrCircuitOpen)
}
