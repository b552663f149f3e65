// Package errors provides structured error handling for the stream module.
// It defines the error taxonomy callers of start/stop can observe, sentinel
// errors for errors.Is matching, and the mapping onto HTTP status codes.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType classifies a StreamError
type ErrorType string

const (
	// ErrorTypeValidation indicates a request was rejected before reaching the engine
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeEngine indicates the external transcoding engine failed
	ErrorTypeEngine ErrorType = "engine"
	// ErrorTypeInternal indicates internal system errors
	ErrorTypeInternal ErrorType = "internal"
)

// Sentinel errors
var (
	// ErrInvalidProfile indicates a requested tier is not in the catalog
	ErrInvalidProfile = errors.New("invalid profile")

	// ErrInvalidSource indicates an empty source locator
	ErrInvalidSource = errors.New("invalid source")

	// ErrInvalidProtocol indicates a protocol other than dash or hls
	ErrInvalidProtocol = errors.New("invalid protocol")

	// ErrInvalidOutput indicates an output path outside the output directory
	ErrInvalidOutput = errors.New("invalid output path")

	// ErrEngineFailure indicates the transcoding engine reported an error.
	// The underlying engine error is kept unclassified.
	ErrEngineFailure = errors.New("engine failure")
)

// StreamError provides structured error information with context
type StreamError struct {
	Type    ErrorType              // Error classification
	Op      string                 // Operation that failed (e.g. "start", "stop")
	Err     error                  // Underlying error
	Details map[string]interface{} // Additional context
}

// Error implements the error interface
func (e *StreamError) Error() string {
	return fmt.Sprintf("%s error in %s: %v", e.Type, e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *StreamError) Unwrap() error {
	return e.Err
}

// New creates a new StreamError
func New(errType ErrorType, op string, err error) *StreamError {
	return &StreamError{
		Type:    errType,
		Op:      op,
		Err:     err,
		Details: make(map[string]interface{}),
	}
}

// WithDetail adds a key-value detail to the error
func (e *StreamError) WithDetail(key string, value interface{}) *StreamError {
	e.Details[key] = value
	return e
}

// ValidationError creates a validation error
func ValidationError(op string, err error) *StreamError {
	return New(ErrorTypeValidation, op, err)
}

// EngineError wraps an engine failure so that it matches both
// ErrEngineFailure and the underlying engine error.
func EngineError(op string, err error) *StreamError {
	return New(ErrorTypeEngine, op, fmt.Errorf("%w: %w", ErrEngineFailure, err))
}

// InternalError creates an internal system error
func InternalError(op string, err error) *StreamError {
	return New(ErrorTypeInternal, op, err)
}

// GetType extracts the error type from an error
func GetType(err error) ErrorType {
	var sErr *StreamError
	if errors.As(err, &sErr) {
		return sErr.Type
	}
	return ErrorTypeInternal
}

// GetDetails extracts error details
func GetDetails(err error) map[string]interface{} {
	var sErr *StreamError
	if errors.As(err, &sErr) {
		return sErr.Details
	}
	return nil
}

// HTTPStatus maps an error onto the status code the API responds with
func HTTPStatus(err error) int {
	switch GetType(err) {
	case ErrorTypeValidation:
		return http.StatusBadRequest
	case ErrorTypeEngine:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
