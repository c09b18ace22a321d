package regen

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes a per-operation failure.
type ErrorCode string

const (
	// ErrCodeUnresolvedReference: the input or tool names a body, face or
	// sketch region that is not live.
	ErrCodeUnresolvedReference ErrorCode = "UNRESOLVED_REFERENCE"

	// ErrCodeUpstreamFailed: a referenced body was not produced because the
	// operation that produces it failed.
	ErrCodeUpstreamFailed ErrorCode = "UPSTREAM_FAILED"

	// ErrCodeKernelError: the kernel rejected the operation.
	ErrCodeKernelError ErrorCode = "KERNEL_ERROR"

	// ErrCodeCycleDetected: the operation is part of a body dependency cycle.
	ErrCodeCycleDetected ErrorCode = "CYCLE_DETECTED"

	// ErrCodeInvalidDocument: the document or the record is malformed.
	ErrCodeInvalidDocument ErrorCode = "INVALID_DOCUMENT"

	// ErrCodeCancelled: the regeneration was cancelled before the operation
	// ran.
	ErrCodeCancelled ErrorCode = "CANCELLED"
)

// OpError is a failure of one operation during regeneration.
type OpError struct {
	// OpID identifies the failed operation. Empty for document-level
	// failures.
	OpID string

	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Err is the underlying cause, if any (e.g. a *kernel.Error).
	Err error
}

// Error implements the error interface.
func (e *OpError) Error() string {
	if e.OpID != "" {
		return fmt.Sprintf("%s: %s (op=%s)", e.Code, e.Message, e.OpID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *OpError) Unwrap() error {
	return e.Err
}

// Failure returns the result entry for e.
func (e *OpError) Failure() Failure {
	return Failure{OpID: e.OpID, Code: e.Code, Message: e.Message}
}

// CodeOf returns the code of the first OpError in err's chain.
func CodeOf(err error) (ErrorCode, bool) {
	var oe *OpError
	if errors.As(err, &oe) {
		return oe.Code, true
	}
	return "", false
}

func opErrorf(opID string, code ErrorCode, format string, args ...any) *OpError {
	return &OpError{OpID: opID, Code: code, Message: fmt.Sprintf(format, args...)}
}

func kernelError(opID string, err error) *OpError {
	return &OpError{OpID: opID, Code: ErrCodeKernelError, Message: err.Error(), Err: err}
}
