package models

import (
	"errors"
	"fmt"
)

// ErrorCode classifies protocol-level failures surfaced to tool callers.
type ErrorCode string

const (
	ErrCodeInvalidRequest ErrorCode = "invalid_request" // Missing/invalid user context or session
	ErrCodeInvalidParams  ErrorCode = "invalid_params"  // Malformed arguments, unconfirmed destructive call
	ErrCodeMethodNotFound ErrorCode = "method_not_found"
	ErrCodeNotFound       ErrorCode = "not_found" // Resource absent or not owned - never distinguished
	ErrCodeTransient      ErrorCode = "transient_external_failure"
	ErrCodeInternal       ErrorCode = "internal_error"
	ErrCodeDataIntegrity  ErrorCode = "data_integrity_failure"
)

// ProtocolError is a typed error carried across the dispatch boundary.
// Handler errors that are not already ProtocolErrors are mapped to
// internal_error before reaching the transport.
type ProtocolError struct {
	Code    ErrorCode
	Message string
	cause   error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ProtocolError) Unwrap() error {
	return e.cause
}

// NewProtocolError creates a typed error with an optional cause.
func NewProtocolError(code ErrorCode, cause error, format string, args ...interface{}) *ProtocolError {
	return &ProtocolError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		cause:   cause,
	}
}

func NewInvalidRequest(format string, args ...interface{}) *ProtocolError {
	return NewProtocolError(ErrCodeInvalidRequest, nil, format, args...)
}

func NewInvalidParams(format string, args ...interface{}) *ProtocolError {
	return NewProtocolError(ErrCodeInvalidParams, nil, format, args...)
}

func NewNotFound(format string, args ...interface{}) *ProtocolError {
	return NewProtocolError(ErrCodeNotFound, nil, format, args...)
}

func NewTransient(cause error, format string, args ...interface{}) *ProtocolError {
	return NewProtocolError(ErrCodeTransient, cause, format, args...)
}

func NewDataIntegrity(format string, args ...interface{}) *ProtocolError {
	return NewProtocolError(ErrCodeDataIntegrity, nil, format, args...)
}

// IsNotFound reports whether err is a not_found protocol error.
func IsNotFound(err error) bool {
	pe, ok := AsProtocolError(err)
	return ok && pe.Code == ErrCodeNotFound
}

// AsProtocolError unwraps err to a ProtocolError when one is in the chain.
func AsProtocolError(err error) (*ProtocolError, bool) {
	var pe *ProtocolError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// MapError returns err as a ProtocolError, wrapping unknown errors as
// internal_error. Typed protocol errors pass through verbatim.
func MapError(err error) *ProtocolError {
	if err == nil {
		return nil
	}
	if pe, ok := AsProtocolError(err); ok {
		return pe
	}
	return NewProtocolError(ErrCodeInternal, err, "%v", err)
}
