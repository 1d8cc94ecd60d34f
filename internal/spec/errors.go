package spec

import (
	"errors"
	"fmt"
)

// RegistrationError represents a spec rejected at registration time.
//
// Registration failures are fatal for the spec - the function is never
// made available, so an invalid pattern or schema can never surface at
// invocation time.
type RegistrationError struct {
	// Code identifies the error category.
	Code RegistrationErrorCode

	// Function is the spec name being registered.
	Function string

	// Message is a human-readable description.
	Message string

	// Err is the underlying cause (regexp or schema compile error).
	Err error
}

// RegistrationErrorCode categorizes registration errors.
type RegistrationErrorCode string

const (
	// ErrCodeDuplicateName indicates the function name is already taken.
	ErrCodeDuplicateName RegistrationErrorCode = "DUPLICATE_NAME"

	// ErrCodeEmptyPipeline indicates neither expressions nor attempts
	// were declared.
	ErrCodeEmptyPipeline RegistrationErrorCode = "EMPTY_PIPELINE"

	// ErrCodeBadPattern indicates an expression pattern failed to
	// compile.
	ErrCodeBadPattern RegistrationErrorCode = "BAD_PATTERN"

	// ErrCodeBadSchema indicates the parameter schema failed to
	// compile.
	ErrCodeBadSchema RegistrationErrorCode = "BAD_SCHEMA"

	// ErrCodeMissingName indicates the spec has no function name.
	ErrCodeMissingName RegistrationErrorCode = "MISSING_NAME"
)

// Error implements the error interface.
func (e *RegistrationError) Error() string {
	if e.Function != "" {
		return fmt.Sprintf("%s: %s (function=%s)", e.Code, e.Message, e.Function)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying compile error for errors.Is/As.
func (e *RegistrationError) Unwrap() error {
	return e.Err
}

// IsRegistrationError reports whether err is a RegistrationError with
// the given code. Uses errors.As to handle wrapped errors.
func IsRegistrationError(err error, code RegistrationErrorCode) bool {
	var re *RegistrationError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}
