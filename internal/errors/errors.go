// Package errors defines stable error codes for every failure mode in the
// assistant pipeline. Codes are part of the event wire contract, so they must
// never be renamed.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents stable error codes for all failure modes
type ErrorCode string

const (
	// ProviderUnavailable indicates the reasoning service is unreachable,
	// timed out, or returned a non-success status
	ProviderUnavailable ErrorCode = "PROVIDER_UNAVAILABLE"
	// MalformedResponse indicates the reasoning service returned a payload
	// that could not be parsed into the expected structure
	MalformedResponse ErrorCode = "MALFORMED_RESPONSE"
	// ValidationFailed indicates a plan failed pre-execution validation
	ValidationFailed ErrorCode = "VALIDATION_FAILED"
	// ExecutionFailed indicates a file operation failed during execution
	ExecutionFailed ErrorCode = "EXECUTION_FAILED"
	// IllegalTransition indicates a phase or plan status transition that the
	// state machine forbids; a caller contract violation
	IllegalTransition ErrorCode = "ILLEGAL_TRANSITION"
	// FileMissing indicates an operation targeted a file that does not exist
	FileMissing ErrorCode = "FILE_MISSING"
	// FileExists indicates a create targeted a file that already exists
	FileExists ErrorCode = "FILE_EXISTS"
	// RollbackIncomplete indicates some operations could not be rolled back
	RollbackIncomplete ErrorCode = "ROLLBACK_INCOMPLETE"
	// IndexMissing indicates the scan index for a project was not found
	IndexMissing ErrorCode = "INDEX_MISSING"
	// BudgetExceeded indicates a token or size budget was hit
	BudgetExceeded ErrorCode = "BUDGET_EXCEEDED"
	// NotFound indicates a conversation, plan, or execution does not exist
	NotFound ErrorCode = "NOT_FOUND"
	// InternalError indicates an unexpected error
	InternalError ErrorCode = "INTERNAL_ERROR"
)

// PipelineError is an error with a stable code and structured details.
type PipelineError struct {
	Code    ErrorCode              `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Cause   error                  `json:"-"`
}

// Error implements the error interface
func (e *PipelineError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped cause, if any
func (e *PipelineError) Unwrap() error {
	return e.Cause
}

// New creates a PipelineError with the given code and message.
func New(code ErrorCode, message string) *PipelineError {
	return &PipelineError{Code: code, Message: message}
}

// Newf creates a PipelineError with a formatted message.
func Newf(code ErrorCode, format string, args ...interface{}) *PipelineError {
	return &PipelineError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates a PipelineError wrapping an underlying cause.
func Wrap(code ErrorCode, message string, cause error) *PipelineError {
	return &PipelineError{Code: code, Message: message, Cause: cause}
}

// WithDetail attaches a detail key/value and returns the error for chaining.
func (e *PipelineError) WithDetail(key string, value interface{}) *PipelineError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// CodeOf extracts the error code from err, or InternalError if err carries none.
func CodeOf(err error) ErrorCode {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return InternalError
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}
