package errors

import (
	"errors"
	"fmt"
)

// ErrorType defines the category of the error
type ErrorType string

const (
	ErrorTypeMalformedDestination ErrorType = "MALFORMED_DESTINATION_ERROR"
	ErrorTypeUnsupportedScheme    ErrorType = "UNSUPPORTED_SCHEME_ERROR"
	ErrorTypeExporter             ErrorType = "EXPORTER_ERROR"
	ErrorTypeEmitterClosed        ErrorType = "EMITTER_CLOSED_ERROR"
	ErrorTypeInternal             ErrorType = "INTERNAL_ERROR"
)

// AppError represents a structured error for the telemetry pipeline
type AppError struct {
	Type          ErrorType `json:"type"`
	Message       string    `json:"message"`
	ErrorCode     string    `json:"errorCode"`
	IsOperational bool      `json:"isOperational"`
	Recovery      string    `json:"recoverySuggestion,omitempty"`
	Err           error     `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying cause.
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches any AppError of the same Type, so sentinels like ErrEmitterClosed
// work with errors.Is.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Type == e.Type
}

// Code returns the application-specific error code
func (e *AppError) Code() string {
	return e.ErrorCode
}

// RecoverySuggestion returns the suggestion on how to recover from the error
func (e *AppError) RecoverySuggestion() string {
	return e.Recovery
}

// IsRecoverable reports whether the pipeline keeps running after this error.
// Destination problems leave the previous destination in place; everything
// else is fatal to the operation that produced it.
func (e *AppError) IsRecoverable() bool {
	switch e.Type {
	case ErrorTypeMalformedDestination, ErrorTypeUnsupportedScheme, ErrorTypeExporter:
		return true
	default:
		return false
	}
}

// ErrEmitterClosed is returned by emitters after Close.
var ErrEmitterClosed = &AppError{
	Type:      ErrorTypeEmitterClosed,
	Message:   "emitter is closed",
	ErrorCode: "EMITTER_CLOSED",
}

// NewMalformedDestinationError creates an error for a destination that is not a valid URL
func NewMalformedDestinationError(destination string, err error) *AppError {
	return &AppError{
		Type:          ErrorTypeMalformedDestination,
		Message:       fmt.Sprintf("malformed destination %q", destination),
		ErrorCode:     "DESTINATION_MALFORMED",
		IsOperational: true,
		Recovery:      "Use an absolute URL such as https://collector.example.com/v1/logs.",
		Err:           err,
	}
}

// NewUnsupportedSchemeError creates an error for a destination the exporters cannot ship to
func NewUnsupportedSchemeError(scheme string) *AppError {
	return &AppError{
		Type:          ErrorTypeUnsupportedScheme,
		Message:       fmt.Sprintf("unsupported destination scheme %q", scheme),
		ErrorCode:     "DESTINATION_SCHEME",
		IsOperational: true,
		Recovery:      "Use an http or https destination.",
	}
}

// NewExporterError creates an error for a failure to build an export pipeline
func NewExporterError(message string, err error) *AppError {
	return &AppError{
		Type:          ErrorTypeExporter,
		Message:       message,
		ErrorCode:     "EXPORTER_FAILED",
		IsOperational: true,
		Recovery:      "Check the destination and exporter headers.",
		Err:           err,
	}
}

// NewInternalError creates a new internal error
func NewInternalError(message string, err error) *AppError {
	return &AppError{
		Type:          ErrorTypeInternal,
		Message:       message,
		ErrorCode:     "INTERNAL_ERROR",
		IsOperational: false,
		Err:           err,
	}
}

// TypeOf returns the ErrorType of the first AppError in err's chain, or "".
func TypeOf(err error) ErrorType {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return ""
}
