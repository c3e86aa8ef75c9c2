package shared

import (
	"errors"
	"fmt"
)

// Error codes shared by every bounded context
const (
	CodeNotFound                 = "NOT_FOUND"
	CodeInvalidState             = "INVALID_STATE"
	CodeQuantityExceedsAvailable = "QUANTITY_EXCEEDS_AVAILABLE"
	CodeDuplicateEntity          = "DUPLICATE_ENTITY"
	CodeValidation               = "VALIDATION_ERROR"
	CodeConcurrencyConflict      = "CONCURRENCY_CONFLICT"
)

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// Is reports whether target is a DomainError with the same code, so that
// errors.Is(err, shared.ErrNotFound) matches any not-found error.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Common domain errors
var (
	ErrNotFound                 = NewDomainError(CodeNotFound, "Resource not found")
	ErrInvalidState             = NewDomainError(CodeInvalidState, "Operation not allowed in current state")
	ErrQuantityExceedsAvailable = NewDomainError(CodeQuantityExceedsAvailable, "Quantity exceeds available balance")
	ErrDuplicateEntity          = NewDomainError(CodeDuplicateEntity, "Resource already exists")
	ErrValidation               = NewDomainError(CodeValidation, "Invalid input provided")
	ErrConcurrencyConflict      = NewDomainError(CodeConcurrencyConflict, "Resource was modified by another process")
)

// NotFound builds a NOT_FOUND error naming the missing entity
func NotFound(entity string, id any) *DomainError {
	return NewDomainError(CodeNotFound, fmt.Sprintf("%s %v not found", entity, id))
}

// InvalidState builds an INVALID_STATE error
func InvalidState(format string, args ...any) *DomainError {
	return NewDomainError(CodeInvalidState, fmt.Sprintf(format, args...))
}

// Validation builds a VALIDATION_ERROR error
func Validation(format string, args ...any) *DomainError {
	return NewDomainError(CodeValidation, fmt.Sprintf(format, args...))
}

// Duplicate builds a DUPLICATE_ENTITY error
func Duplicate(format string, args ...any) *DomainError {
	return NewDomainError(CodeDuplicateEntity, fmt.Sprintf(format, args...))
}

// QuantityExceeds builds a QUANTITY_EXCEEDS_AVAILABLE error carrying both quantities
func QuantityExceeds(requested, available int, what string) *DomainError {
	return NewDomainError(CodeQuantityExceedsAvailable,
		fmt.Sprintf("quantity requested (%d) exceeds available %s (%d)", requested, what, available))
}

// CodeOf returns the domain error code carried by err, or "" when err is not a DomainError
func CodeOf(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// IsNotFound reports whether err carries the NOT_FOUND code
func IsNotFound(err error) bool {
	return CodeOf(err) == CodeNotFound
}

// IsDuplicate reports whether err carries the DUPLICATE_ENTITY code
func IsDuplicate(err error) bool {
	return CodeOf(err) == CodeDuplicateEntity
}
