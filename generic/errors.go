/*
errors.go - Centralized error types for the shift engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Every rejected mutation returns one of these; nothing is written when
  an error is returned.

ERROR CATEGORIES:
  1. Validation errors - Missing or malformed fields (caller fixes input)
  2. Conflict errors   - Duplicate (date, label), immutable field edits,
                         edits the current status forbids, stale versions
  3. Not-found errors  - Unknown shift or item id
  4. Store errors      - Database-level failures (everything else)

USAGE:
  var verr *generic.ValidationError
  if errors.As(err, &verr) {
      // verr.Fields lists every offending field
  }
  if generic.IsConflict(err) { ... 409 ... }

SEE ALSO:
  - shift/manager.go: Raises conflict and not-found errors
  - activity/factory.go: Item-level validation
  - api/handlers.go: Maps categories to HTTP status codes
*/
package generic

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is the category of every ValidationError.
	ErrValidation = errors.New("validation failed")

	// ErrConflict is the category of every ConflictError.
	ErrConflict = errors.New("conflict")

	// ErrNotFound is the category of every NotFoundError.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateShift is returned by stores when (date, shift label) already exists.
	ErrDuplicateShift = errors.New("duplicate shift for date and label")

	// ErrConcurrentModification is returned by stores when the stored version
	// no longer matches the version the update was based on.
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// ErrAppendOnly is returned when code attempts to rewrite audit history.
	ErrAppendOnly = errors.New("audit history is append-only")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError lists every field the caller must fix.
type ValidationError struct {
	Fields        []string
	RequiresNotes bool
	Message       string
}

func (e *ValidationError) Error() string {
	var parts []string
	if e.Message != "" {
		parts = append(parts, e.Message)
	}
	if len(e.Fields) > 0 {
		parts = append(parts, "missing or invalid fields: "+strings.Join(e.Fields, ", "))
	}
	if e.RequiresNotes {
		parts = append(parts, "notes are required when over/short is non-zero")
	}
	if len(parts) == 0 {
		return ErrValidation.Error()
	}
	return strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewValidationError builds a ValidationError for one field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: []string{field}, Message: message}
}

// ConflictReason names why a mutation conflicts with stored state.
type ConflictReason string

const (
	ConflictDuplicate    ConflictReason = "duplicate"
	ConflictImmutable    ConflictReason = "immutable_field"
	ConflictNotEditable  ConflictReason = "not_editable"
	ConflictTransition   ConflictReason = "invalid_transition"
	ConflictStaleVersion ConflictReason = "stale_version"
)

type ConflictError struct {
	Reason  ConflictReason
	Field   string
	Message string
	cause   error
}

func (e *ConflictError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("conflict (%s) on %s: %s", e.Reason, e.Field, e.Message)
	}
	return fmt.Sprintf("conflict (%s): %s", e.Reason, e.Message)
}

// Unwrap exposes both the category and the store-level cause, if any.
func (e *ConflictError) Unwrap() []error {
	if e.cause != nil {
		return []error{ErrConflict, e.cause}
	}
	return []error{ErrConflict}
}

func NewConflict(reason ConflictReason, field, message string) *ConflictError {
	return &ConflictError{Reason: reason, Field: field, Message: message}
}

// WrapConflict wraps a store-level error (ErrDuplicateShift, ErrConcurrentModification).
func WrapConflict(reason ConflictReason, cause error, message string) *ConflictError {
	return &ConflictError{Reason: reason, Message: message, cause: cause}
}

type NotFoundError struct {
	Kind string // "shift", "item"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation)
}

func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsRetryable returns true if the error might succeed once the caller reloads.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}
