package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks a request rejected before it reached the AI engine.
	ErrValidation = errors.New("validation failed")
	// ErrUnavailable marks an operation that has no local substitute and
	// could not be served by the AI engine.
	ErrUnavailable = errors.New("ai service unavailable")
)

// ValidationError reports a missing or malformed request field.
type ValidationError struct {
	Field   string
	Message string
}

// NewValidationError creates a validation error for field.
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Is lets errors.Is match ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// UnavailableError is returned by operations that refuse to fabricate a
// result when the AI engine fails.
type UnavailableError struct {
	Operation string
	Err       error
}

func (e *UnavailableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v (%v)", e.Operation, ErrUnavailable, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Operation, ErrUnavailable)
}

// Unwrap returns the underlying transport failure.
func (e *UnavailableError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match ErrUnavailable.
func (e *UnavailableError) Is(target error) bool {
	return target == ErrUnavailable
}

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsUnavailable reports whether err is an unavailable-service error.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}
