package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorType represents different categories of errors
type ErrorType string

const (
	ErrorTypeInvalidDistance ErrorType = "invalid_distance"
	ErrorTypeIncompleteShape ErrorType = "incomplete_shape"
	ErrorTypeImageNotReady   ErrorType = "image_not_ready"
	ErrorTypeExportFailure   ErrorType = "export_failure"
	ErrorTypeValidation      ErrorType = "validation"
	ErrorTypeNetwork         ErrorType = "network"
	ErrorTypeProcessing      ErrorType = "processing"
)

// Sentinels for errors.Is matching. Any *AppError of the same type matches.
var (
	ErrInvalidDistance = &AppError{Type: ErrorTypeInvalidDistance, Message: "invalid real-world distance"}
	ErrIncompleteShape = &AppError{Type: ErrorTypeIncompleteShape, Message: "not enough points"}
	ErrImageNotReady   = &AppError{Type: ErrorTypeImageNotReady, Message: "image not loaded"}
	ErrExportFailure   = &AppError{Type: ErrorTypeExportFailure, Message: "export failed"}
)

// AppError represents a structured application error
type AppError struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`
	Cause   error     `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *AppError of the same type.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Type == e.Type
}

// NewInvalidDistanceError creates an error for a rejected calibration distance
func NewInvalidDistanceError(input string, cause error) *AppError {
	return &AppError{
		Type:    ErrorTypeInvalidDistance,
		Message: "invalid real-world distance",
		Details: fmt.Sprintf("input %q", input),
		Cause:   cause,
	}
}

// NewIncompleteShapeError creates an error for a shape below its minimum point count
func NewIncompleteShapeError(kind string, have, need int) *AppError {
	return &AppError{
		Type:    ErrorTypeIncompleteShape,
		Message: fmt.Sprintf("%s needs %d points, got %d", kind, need, have),
	}
}

// NewImageNotReadyError creates an error for input received before the image loaded
func NewImageNotReadyError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeImageNotReady,
		Message: message,
	}
}

// NewExportError creates an error for a surface that could not be serialized
func NewExportError(message string, cause error) *AppError {
	return &AppError{
		Type:    ErrorTypeExportFailure,
		Message: message,
		Cause:   cause,
	}
}

// NewValidationError creates a new validation error
func NewValidationError(message string, cause error) *AppError {
	return &AppError{
		Type:    ErrorTypeValidation,
		Message: message,
		Cause:   cause,
	}
}

// NewNetworkError creates a new network error
func NewNetworkError(message string, cause error) *AppError {
	return &AppError{
		Type:    ErrorTypeNetwork,
		Message: message,
		Cause:   cause,
	}
}

// NewProcessingError creates a new processing error
func NewProcessingError(message string, cause error) *AppError {
	return &AppError{
		Type:    ErrorTypeProcessing,
		Message: message,
		Cause:   cause,
	}
}

// IsType checks if any error in the chain is of a specific type
func IsType(err error, errorType ErrorType) bool {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Type == errorType
	}
	return false
}
