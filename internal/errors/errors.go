// Package errors defines the application error taxonomy and re-exports the
// standard library helpers so callers need a single errors import.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for conditions callers branch on with errors.Is.
var (
	// ErrNotFound indicates a lookup by hash or id matched no rows.
	ErrNotFound = errors.New("not found")
	// ErrConflict indicates a duplicate hash on a strict insert.
	ErrConflict = errors.New("already exists")
)

// New returns an error with the given text. Wraps the standard library.
func New(text string) error { return errors.New(text) }

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool { return errors.Is(err, target) }

// As finds the first error in err's chain matching target.
func As(err error, target any) bool { return errors.As(err, target) }

// ValidationError carries one or more reasons why input was rejected.
// It maps to HTTP 400 and is never retried.
type ValidationError struct {
	Message string
	Details []string
}

func (e *ValidationError) Error() string {
	if len(e.Details) == 0 {
		return e.Message
	}
	return e.Message + ": " + strings.Join(e.Details, "; ")
}

// NewValidation creates a ValidationError with the given message and details.
func NewValidation(message string, details ...string) *ValidationError {
	return &ValidationError{Message: message, Details: details}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// TransientStoreError wraps a storage failure that is safe for the caller to
// retry, such as a lock or busy condition. Maps to HTTP 503.
type TransientStoreError struct {
	Err error
}

func (e *TransientStoreError) Error() string {
	return fmt.Sprintf("transient store error: %v", e.Err)
}

func (e *TransientStoreError) Unwrap() error { return e.Err }

// IsTransientStore reports whether err is a TransientStoreError.
func IsTransientStore(err error) bool {
	var te *TransientStoreError
	return errors.As(err, &te)
}

// TransportError wraps an outbound delivery failure: an SMS that could not
// be sent, or an HTTP call to the server that did not succeed. Notification
// failures degrade to a logged alert status; collector failures are retried.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("transport error: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ConnectionError wraps a push-channel establishment failure. The collector
// retries these with bounded backoff before treating them as fatal.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection error: %v", e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }
