// internal/common/errors/errors.go
// Package errors provides the standardized error taxonomy for meeting
// lifecycle use cases and the distribution cronjob.
package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// ErrCodeConflict marks a transition that violates a lifecycle
	// invariant: duplicate active meeting, re-finalizing finalized minutes,
	// storing a second response. Never retryable.
	ErrCodeConflict ErrorCode = "CONFLICT"

	// ErrCodeValidation marks caller-supplied data violating a domain rule.
	// Never retryable.
	ErrCodeValidation ErrorCode = "VALIDATION_FAILED"

	// ErrCodeUpstreamUnavailable marks a synchronously required external
	// collaborator failing; the enclosing transaction is rolled back.
	ErrCodeUpstreamUnavailable ErrorCode = "UPSTREAM_UNAVAILABLE"

	// ErrCodeTransientDistribution is only meaningful inside the retry
	// cronjob: the row is left untouched for the next run.
	ErrCodeTransientDistribution ErrorCode = "TRANSIENT_DISTRIBUTION_FAILURE"

	// ErrCodeDataInconsistency marks persisted state that the lifecycle
	// should have made impossible, e.g. amending minutes that were never
	// finalized.
	ErrCodeDataInconsistency ErrorCode = "DATA_INCONSISTENCY"
)

// DomainError is a structured application error.
type DomainError struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Retryable bool      `json:"retryable"`
	Timestamp time.Time `json:"timestamp"`
	cause     error
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("DomainError[%s]: %s", e.Code, e.Message)
}

// Unwrap exposes the wrapped cause for errors.Is/errors.As chains.
func (e *DomainError) Unwrap() error {
	return e.cause
}

// NewConflictError creates a non-retryable lifecycle conflict error.
func NewConflictError(message, details string) *DomainError {
	return &DomainError{
		Code:      ErrCodeConflict,
		Message:   message,
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewValidationError creates a non-retryable domain validation error.
func NewValidationError(message, details string) *DomainError {
	return &DomainError{
		Code:      ErrCodeValidation,
		Message:   message,
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewUpstreamUnavailableError creates a retryable error for a failing
// external collaborator. The use case still aborts; retryability only
// informs the workflow engine's job retry budget.
func NewUpstreamUnavailableError(service string, err error) *DomainError {
	return &DomainError{
		Code:      ErrCodeUpstreamUnavailable,
		Message:   fmt.Sprintf("upstream service '%s' unavailable", service),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewTransientDistributionError creates the cronjob-internal retry marker.
func NewTransientDistributionError(err error) *DomainError {
	return &DomainError{
		Code:      ErrCodeTransientDistribution,
		Message:   "physical distribution failed, row left for next run",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewDataInconsistencyError creates a non-retryable error for persisted
// state the lifecycle should have prevented.
func NewDataInconsistencyError(message, details string) *DomainError {
	return &DomainError{
		Code:      ErrCodeDataInconsistency,
		Message:   message,
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// CodeOf extracts the ErrorCode from err, or the empty code when err is not
// a DomainError.
func CodeOf(err error) ErrorCode {
	var de *DomainError
	if stderrors.As(err, &de) {
		return de.Code
	}
	return ""
}

// IsConflict reports whether err is a lifecycle conflict.
func IsConflict(err error) bool {
	return CodeOf(err) == ErrCodeConflict
}

// IsValidation reports whether err is a domain validation failure.
func IsValidation(err error) bool {
	return CodeOf(err) == ErrCodeValidation
}

// IsUpstreamUnavailable reports whether err is an external collaborator
// failure.
func IsUpstreamUnavailable(err error) bool {
	return CodeOf(err) == ErrCodeUpstreamUnavailable
}

// IsRetryable reports whether err may succeed on a later attempt.
func IsRetryable(err error) bool {
	var de *DomainError
	if stderrors.As(err, &de) {
		return de.Retryable
	}
	return false
}

// GetRetryCount returns the workflow-engine retry budget per error code.
// Business rule violations are never retried; only upstream outages are.
func GetRetryCount(code ErrorCode) int32 {
	switch code {
	case ErrCodeUpstreamUnavailable:
		return 3
	default:
		return 0
	}
}
