// Package errors provides structured error types for healthsync.
//
// Pipeline stages classify failures with these codes so the caller can tell
// a fatal authorization problem apart from an isolated endpoint or sink
// failure. Import as apperrors to avoid clashing with the standard library.
package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a unique error identifier for categorization.
type ErrorCode string

const (
	// CodeAuthRequired means no usable Fitbit token exists. Fatal for a run.
	CodeAuthRequired ErrorCode = "AUTH_REQUIRED"

	// CodeEndpointFetchExhausted means one endpoint used its whole retry budget.
	CodeEndpointFetchExhausted ErrorCode = "ENDPOINT_FETCH_EXHAUSTED"

	// CodeTransportError is a network-level failure (DNS, timeout, reset).
	CodeTransportError ErrorCode = "TRANSPORT_ERROR"

	// CodeSinkFailure means writing the row or the annotation failed.
	CodeSinkFailure ErrorCode = "SINK_FAILURE"

	CodeValidationError ErrorCode = "VALIDATION_ERROR"
	CodeStorageError    ErrorCode = "STORAGE_ERROR"
)

// HealthSyncError is the base error type for classified failures.
type HealthSyncError struct {
	Code      ErrorCode
	Message   string
	Cause     error
	Retryable bool
	Metadata  map[string]string
}

func (e *HealthSyncError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *HealthSyncError) Unwrap() error {
	return e.Cause
}

// Is reports whether target carries the same code, so wrapped instances
// still match the sentinels below.
func (e *HealthSyncError) Is(target error) bool {
	t, ok := target.(*HealthSyncError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// WithCause wraps an underlying error.
func (e *HealthSyncError) WithCause(cause error) *HealthSyncError {
	return &HealthSyncError{
		Code:      e.Code,
		Message:   e.Message,
		Cause:     cause,
		Retryable: e.Retryable,
		Metadata:  e.Metadata,
	}
}

// WithMessage replaces the message.
func (e *HealthSyncError) WithMessage(msg string) *HealthSyncError {
	return &HealthSyncError{
		Code:      e.Code,
		Message:   msg,
		Cause:     e.Cause,
		Retryable: e.Retryable,
		Metadata:  e.Metadata,
	}
}

// WithMetadata adds contextual metadata.
func (e *HealthSyncError) WithMetadata(key, value string) *HealthSyncError {
	meta := make(map[string]string, len(e.Metadata)+1)
	for k, v := range e.Metadata {
		meta[k] = v
	}
	meta[key] = value
	return &HealthSyncError{
		Code:      e.Code,
		Message:   e.Message,
		Cause:     e.Cause,
		Retryable: e.Retryable,
		Metadata:  meta,
	}
}

// Sentinels for errors.Is checks. Derive concrete errors with WithCause or
// WithMetadata rather than returning these directly.
var (
	ErrAuthRequired           = &HealthSyncError{Code: CodeAuthRequired, Message: "fitbit authorization required", Retryable: false}
	ErrEndpointFetchExhausted = &HealthSyncError{Code: CodeEndpointFetchExhausted, Message: "endpoint retry budget exhausted", Retryable: true}
	ErrTransport              = &HealthSyncError{Code: CodeTransportError, Message: "transport error", Retryable: true}
	ErrSinkFailure            = &HealthSyncError{Code: CodeSinkFailure, Message: "sink write failed", Retryable: true}
	ErrValidation             = &HealthSyncError{Code: CodeValidationError, Message: "validation error", Retryable: false}
	ErrStorage                = &HealthSyncError{Code: CodeStorageError, Message: "storage error", Retryable: true}
)

// AuthRequired builds the error returned when the token provider has no
// access. The authorization URL is kept in metadata so it can be logged.
func AuthRequired(authURL string) *HealthSyncError {
	return ErrAuthRequired.WithMetadata("authorization_url", authURL)
}

// AuthorizationURL extracts the authorization URL from an AuthRequired error.
func AuthorizationURL(err error) string {
	var hsErr *HealthSyncError
	if stderrors.As(err, &hsErr) && hsErr.Code == CodeAuthRequired {
		return hsErr.Metadata["authorization_url"]
	}
	return ""
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	var hsErr *HealthSyncError
	if stderrors.As(err, &hsErr) {
		return hsErr.Retryable
	}
	return false
}

// GetCode returns the error code if it's a HealthSyncError, empty otherwise.
func GetCode(err error) ErrorCode {
	var hsErr *HealthSyncError
	if stderrors.As(err, &hsErr) {
		return hsErr.Code
	}
	return ""
}
