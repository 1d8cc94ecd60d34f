package token

import (
	"errors"
	"fmt"
)

// ValidationError is an authorization rejection. It is always surfaced
// to the caller - token failures are never silently downgraded into a
// pipeline fallback.
type ValidationError struct {
	// Code identifies the rejection category.
	Code Code

	// Message is a human-readable description. It never echoes the
	// secret or the signature bytes.
	Message string
}

// Code categorizes token validation rejections.
type Code string

const (
	// CodeMalformed indicates the token could not be decoded at all.
	CodeMalformed Code = "MALFORMED"

	// CodeBadSignature indicates the signature does not match the
	// payload under the server secret.
	CodeBadSignature Code = "BAD_SIGNATURE"

	// CodeExpired indicates the token's validity window has passed.
	CodeExpired Code = "EXPIRED"

	// CodeWrongFunction indicates the token was issued for a different
	// function.
	CodeWrongFunction Code = "WRONG_FUNCTION"

	// CodeWrongSession indicates the token was issued for a different
	// session.
	CodeWrongSession Code = "WRONG_SESSION"
)

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("token %s: %s", e.Code, e.Message)
}

// IsValidationError reports whether err is a ValidationError with the
// given code. Uses errors.As to handle wrapped errors.
func IsValidationError(err error, code Code) bool {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Code == code
	}
	return false
}

func newValidationError(code Code, message string) *ValidationError {
	return &ValidationError{Code: code, Message: message}
}
