package engine

import (
	"errors"
	"fmt"
)

// RuntimeError represents an error detected by the reducer loop.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// FlowID identifies the affected flow.
	FlowID string

	// Intent names the intent being processed, if any.
	Intent string
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeInvariantViolation indicates a reduction that would break a
	// state invariant, such as moving the lifecycle backwards.
	ErrCodeInvariantViolation RuntimeErrorCode = "INVARIANT_VIOLATION"

	// ErrCodeQueueClosed indicates an intent submitted after Stop.
	ErrCodeQueueClosed RuntimeErrorCode = "QUEUE_CLOSED"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	if e.FlowID != "" && e.Intent != "" {
		return fmt.Sprintf("%s: %s (flow=%s, intent=%s)", e.Code, e.Message, e.FlowID, e.Intent)
	}
	if e.FlowID != "" {
		return fmt.Sprintf("%s: %s (flow=%s)", e.Code, e.Message, e.FlowID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsInvariantError reports whether err is an invariant violation.
// Uses errors.As to handle wrapped errors.
func IsInvariantError(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeInvariantViolation
	}
	return false
}

// IsQueueClosedError reports whether err was caused by a stopped engine.
func IsQueueClosedError(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeQueueClosed
	}
	return false
}

// NewInvariantError creates a RuntimeError for an invariant violation.
func NewInvariantError(flowID, intent, msg string) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeInvariantViolation,
		Message: msg,
		FlowID:  flowID,
		Intent:  intent,
	}
}

// NewQueueClosedError creates a RuntimeError for a rejected submission.
func NewQueueClosedError(flowID, intent string) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeQueueClosed,
		Message: "engine stopped",
		FlowID:  flowID,
		Intent:  intent,
	}
}
