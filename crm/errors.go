/*
errors.go - Error types for the CRM engine

PURPOSE:
  All sentinel and structured errors in one place. Store implementations and
  handlers wrap these with context; callers test with errors.Is / errors.As.

ERROR CATEGORIES:
  1. Storage errors - record missing, backend failure (wrapped by stores)
  2. Validation errors - required form fields missing before a write
  3. Date errors - malformed date fields (treated as "no match" by classify.go)
*/
package crm

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNotFound is returned when a record id does not exist for the owner.
	ErrNotFound = errors.New("record not found")

	// ErrValidation is the root of every required-field failure.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidDate is returned by ParseDay for empty or malformed input.
	ErrInvalidDate = errors.New("invalid date")

	// ErrMissingPhone is returned when a message link is requested for a
	// customer without a usable phone number.
	ErrMissingPhone = errors.New("customer has no phone number")

	// ErrMissingOwner is returned when a query or write carries no owner.
	ErrMissingOwner = errors.New("owner id is required")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// FieldError names one invalid field.
type FieldError struct {
	Field   string
	Message string
}

// ValidationError lists every invalid field of a record.
type ValidationError struct {
	Record string
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = fmt.Sprintf("%s %s", f.Field, f.Message)
	}
	return fmt.Sprintf("invalid %s: %s", e.Record, strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func (e *ValidationError) add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

func (e *ValidationError) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidDate) ||
		errors.Is(err, ErrMissingPhone) ||
		errors.Is(err, ErrMissingOwner)
}
