package model

import (
	"errors"
	"fmt"
)

// Sentinel errors for the moderation core. Callers discriminate with
// errors.Is so the command layer can relay a precise message instead of a
// generic failure.
var (
	ErrInvalidFormat        = errors.New("invalid format")
	ErrPermissionDenied     = errors.New("permission denied")
	ErrConflict             = errors.New("conflicting active case")
	ErrNotFound             = errors.New("not found")
	ErrRetryBudgetExhausted = errors.New("retry budget exhausted")
)

// ExternalError wraps a failure from the chat platform. Transient failures
// (rate limits, timeouts, 5xx) are retried by the scheduled action engine;
// permanent ones (missing permission, target gone) are not.
type ExternalError struct {
	Op        string
	Transient bool
	Err       error
}

func (e *ExternalError) Error() string {
	kind := "permanent"
	if e.Transient {
		kind = "transient"
	}
	return fmt.Sprintf("external %s failure in %s: %v", kind, e.Op, e.Err)
}

func (e *ExternalError) Unwrap() error {
	return e.Err
}

// NewTransientError marks a platform failure as retryable.
func NewTransientError(op string, err error) *ExternalError {
	return &ExternalError{Op: op, Transient: true, Err: err}
}

// NewPermanentError marks a platform failure as not worth retrying.
func NewPermanentError(op string, err error) *ExternalError {
	return &ExternalError{Op: op, Transient: false, Err: err}
}

// IsTransient reports whether err is a transient external failure.
func IsTransient(err error) bool {
	var ext *ExternalError
	return errors.As(err, &ext) && ext.Transient
}
