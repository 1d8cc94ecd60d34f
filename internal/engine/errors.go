package engine

import (
	"errors"
	"fmt"
)

// InvocationError represents a request rejected before the pipeline
// runs. Once the pipeline starts, it is total: data problems render as
// MISSING markers or fallback text, never as errors.
type InvocationError struct {
	// Code identifies the rejection category.
	Code InvocationErrorCode

	// Function is the requested function name.
	Function string

	// Message is a human-readable description.
	Message string

	// Err is the underlying cause (schema violation, token rejection).
	Err error
}

// InvocationErrorCode categorizes invocation rejections.
type InvocationErrorCode string

const (
	// ErrCodeUnknownFunction indicates no spec is registered under the
	// requested name.
	ErrCodeUnknownFunction InvocationErrorCode = "UNKNOWN_FUNCTION"

	// ErrCodeInvalidArguments indicates the caller arguments violate
	// the declared parameter schema.
	ErrCodeInvalidArguments InvocationErrorCode = "INVALID_ARGUMENTS"

	// ErrCodeUnauthorized indicates the call token was rejected. The
	// wrapped error is the token.ValidationError.
	ErrCodeUnauthorized InvocationErrorCode = "UNAUTHORIZED"
)

// Error implements the error interface.
func (e *InvocationError) Error() string {
	if e.Function != "" {
		return fmt.Sprintf("%s: %s (function=%s)", e.Code, e.Message, e.Function)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause for errors.Is/As.
func (e *InvocationError) Unwrap() error {
	return e.Err
}

// IsInvocationError reports whether err is an InvocationError with the
// given code. Uses errors.As to handle wrapped errors.
func IsInvocationError(err error, code InvocationErrorCode) bool {
	var ie *InvocationError
	if errors.As(err, &ie) {
		return ie.Code == code
	}
	return false
}
