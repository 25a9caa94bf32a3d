// Package coreerr replaces the string-sniffed error handling the teacher's
// handler layer relies on (strings.Contains(err.Error(), "not found")) with
// typed, errors.Is/As-compatible error kinds, per the taxonomy in the error
// handling design: Validation, NotFound, Transient (Retryable), Fatal.
// Conflict is deliberately not an error here — it is a diagnosis value
// returned alongside a nil error, since conflict-check failures are
// expected outcomes, not exceptions.
package coreerr

import (
	"errors"
	"fmt"
)

// NotFoundError means a referenced entity does not exist.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.ID)
}

func NotFound(entity, id string) error {
	return &NotFoundError{Entity: entity, ID: id}
}

// ValidationError means the caller passed malformed or semantically
// impossible input (bad date, non-positive duration, illegal status
// transition).
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func Validation(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// RetryableError means the repository hit a transient failure (serialization
// conflict, lock timeout) that has already exhausted its automatic retries.
type RetryableError struct {
	Cause error
}

func (e *RetryableError) Error() string { return fmt.Sprintf("retryable: %v", e.Cause) }
func (e *RetryableError) Unwrap() error { return e.Cause }

func Retryable(cause error) error {
	return &RetryableError{Cause: cause}
}

// FatalError means the repository is unreachable or an invariant was
// violated at commit time; the caller must not retry.
type FatalError struct {
	Cause error
}

func (e *FatalError) Error() string { return fmt.Sprintf("fatal: %v", e.Cause) }
func (e *FatalError) Unwrap() error { return e.Cause }

func Fatal(cause error) error {
	return &FatalError{Cause: cause}
}

// ErrTimeout means a booking request exceeded its soft deadline before
// committing.
var ErrTimeout = errors.New("scheduling: timed out before commit")

// ErrTooShort means a buffer advance_end fix would shorten an appointment past
// its allowed trim cap.
var ErrTooShort = errors.New("scheduling: buffer fix would shorten appointment below minimum duration")

// IsNotFound reports whether err is (or wraps) a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsRetryable reports whether err is (or wraps) a RetryableError.
func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}
