package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Error wraps an inference failure with the operation that produced it.
// Retryable distinguishes transient infrastructure failures (network,
// timeout, rate limit, overload) from fatal ones (authentication, request
// validation, contract violations). Only retryable errors are eligible for
// the orchestrator's retry policy.
type Error struct {
	// Op is the operation that failed (e.g., "complete").
	Op string
	// Err is the underlying error.
	Err error
	// Retryable is true for transient infrastructure failures.
	Retryable bool
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("llm %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates an Error with the given retryability.
func NewError(op string, err error, retryable bool) *Error {
	return &Error{Op: op, Err: err, Retryable: retryable}
}

// IsTransient reports whether err is a retryable inference failure.
// Context cancellation and deadline expiry are never transient: the
// orchestrator owns the timeout and must not retry past it.
func IsTransient(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var lerr *Error
	if errors.As(err, &lerr) {
		return lerr.Retryable
	}
	return false
}

// retryableStatus reports whether an HTTP status from a provider
// indicates a transient condition.
func retryableStatus(status int) bool {
	switch status {
	case 408, 429, 500, 502, 503, 504, 529:
		return true
	}
	return false
}

// retryableMessage reports whether a provider error message indicates
// a transient condition.
func retryableMessage(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "rate limit") ||
		strings.Contains(lower, "timeout") ||
		strings.Contains(lower, "timed out") ||
		strings.Contains(lower, "overloaded") ||
		strings.Contains(lower, "unavailable") ||
		strings.Contains(lower, "connection reset")
}
