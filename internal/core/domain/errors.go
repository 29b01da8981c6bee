// Package domain provides the core types of the advisor.
package domain

import (
	"fmt"
	"net/http"
)

// ErrorType represents the category of a transport failure.
type ErrorType string

const (
	// ErrorTypeConnection indicates the backend could not be reached.
	ErrorTypeConnection ErrorType = "connection"

	// ErrorTypeTimeout indicates the call exceeded its deadline.
	ErrorTypeTimeout ErrorType = "timeout"

	// ErrorTypeUpstream indicates the backend answered with a non-2xx status.
	ErrorTypeUpstream ErrorType = "upstream"

	// ErrorTypeMalformedStream indicates a streamed reply could not be decoded.
	ErrorTypeMalformedStream ErrorType = "malformed_stream"

	// ErrorTypeDecode indicates a single-shot reply could not be decoded.
	ErrorTypeDecode ErrorType = "decode"

	// ErrorTypeNotConfigured indicates no transport exists for a provider.
	ErrorTypeNotConfigured ErrorType = "not_configured"
)

// TransportError is returned by transports. The orchestrator never
// surfaces it to callers; it only drives the fallback chain and logging.
type TransportError struct {
	Type       ErrorType `json:"type"`
	Message    string    `json:"message"`
	StatusCode int       `json:"-"`
	Provider   Provider  `json:"-"`

	// Err is the underlying cause, if any.
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s (status %d): %s", e.Type, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap exposes the underlying cause.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether a single retry could plausibly succeed.
func (e *TransportError) IsRetryable() bool {
	switch e.Type {
	case ErrorTypeConnection:
		return true
	case ErrorTypeUpstream:
		return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
	default:
		return false
	}
}

// NewTransportError creates a new transport error.
func NewTransportError(errType ErrorType, message string) *TransportError {
	return &TransportError{
		Type:    errType,
		Message: message,
	}
}

// WithStatus adds an HTTP status code to the error.
func (e *TransportError) WithStatus(code int) *TransportError {
	e.StatusCode = code
	return e
}

// WithCause records the underlying error.
func (e *TransportError) WithCause(err error) *TransportError {
	e.Err = err
	return e
}

// WithProvider records which provider produced the error.
func (e *TransportError) WithProvider(p Provider) *TransportError {
	e.Provider = p
	return e
}
