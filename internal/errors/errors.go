// Package errors defines the error taxonomy shared by the storage drivers and the
// projections built on top of them.
package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCategory represents the category of an error
type ErrorCategory string

const (
	// CategoryNotFound is a read of a key that does not exist
	CategoryNotFound ErrorCategory = "not_found"
	// CategoryBackend is a connection or I/O failure of the storage backend
	CategoryBackend ErrorCategory = "backend"
	// CategoryValidation is a malformed argument or stored value
	CategoryValidation ErrorCategory = "validation"
	// CategoryConfiguration is an invalid or unsupported configuration
	CategoryConfiguration ErrorCategory = "configuration"
)

// ErrNotFound is matched by every not-found error through errors.Is
var ErrNotFound = stderrors.New("key not found")

// CategorizedError represents an error with a category and machine readable code
type CategorizedError struct {
	Category ErrorCategory
	Code     string
	Message  string
	Details  map[string]interface{}
	Cause    error
}

// Error implements the error interface
func (e *CategorizedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause
func (e *CategorizedError) Unwrap() error {
	return e.Cause
}

// Is lets errors.Is(err, ErrNotFound) match not-found errors
func (e *CategorizedError) Is(target error) bool {
	return target == ErrNotFound && e.Category == CategoryNotFound
}

// NewNotFoundError creates a not found error for a storage key
func NewNotFoundError(key string) *CategorizedError {
	return &CategorizedError{
		Category: CategoryNotFound,
		Code:     "NOT_FOUND",
		Message:  fmt.Sprintf("key not found: %s", key),
		Details: map[string]interface{}{
			"key": key,
		},
	}
}

// NewBackendError wraps a failure of the storage backend during an operation
func NewBackendError(operation string, cause error) *CategorizedError {
	return &CategorizedError{
		Category: CategoryBackend,
		Code:     "BACKEND_ERROR",
		Message:  fmt.Sprintf("storage backend error during %s", operation),
		Cause:    cause,
		Details: map[string]interface{}{
			"operation": operation,
		},
	}
}

// NewValidationError creates a validation error
func NewValidationError(field string, reason string) *CategorizedError {
	return &CategorizedError{
		Category: CategoryValidation,
		Code:     "INVALID_VALUE",
		Message:  fmt.Sprintf("invalid value for '%s': %s", field, reason),
		Details: map[string]interface{}{
			"field":  field,
			"reason": reason,
		},
	}
}

// NewConfigurationError creates a configuration error
func NewConfigurationError(setting string, reason string) *CategorizedError {
	return &CategorizedError{
		Category: CategoryConfiguration,
		Code:     "INVALID_CONFIGURATION",
		Message:  fmt.Sprintf("invalid configuration '%s': %s", setting, reason),
		Details: map[string]interface{}{
			"setting": setting,
			"reason":  reason,
		},
	}
}

// CategoryOf returns the category of err, or "" when err is not categorized
func CategoryOf(err error) ErrorCategory {
	var catErr *CategorizedError
	if stderrors.As(err, &catErr) {
		return catErr.Category
	}
	return ""
}

// IsNotFound reports whether err denotes a missing key
func IsNotFound(err error) bool {
	return err != nil && stderrors.Is(err, ErrNotFound)
}

// IsBackend reports whether err is a storage backend failure
func IsBackend(err error) bool {
	return CategoryOf(err) == CategoryBackend
}

// IsRetryable determines if an error is retryable
func IsRetryable(err error) bool {
	return IsBackend(err)
}
