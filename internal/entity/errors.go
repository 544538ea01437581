package entity

import (
	"errors"
	"fmt"
	"strings"
)

// FieldError pinpoints one offending field in one batch element.
type FieldError struct {
	// Index is the element's position in the submitted batch.
	Index int

	// Field names the offending field ("interval", "min_staff", ...).
	Field string

	// Reason is a human-readable description of the failure.
	Reason string
}

func (e FieldError) String() string {
	return fmt.Sprintf("[%d].%s: %s", e.Index, e.Field, e.Reason)
}

// ValidationError rejects an entire entity batch.
//
// Batch semantics are all-or-nothing: one ValidationError aborts the
// whole batch, no ids are consumed, and Fields identifies every offending
// element by position, not just the first.
type ValidationError struct {
	// Kind names the entity kind being validated ("slot", "task", "user").
	Kind string

	// Fields lists every validation failure found in the batch.
	Fields []FieldError
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return fmt.Sprintf("invalid %s batch", e.Kind)
	}
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.String()
	}
	return fmt.Sprintf("invalid %s batch: %s", e.Kind, strings.Join(parts, "; "))
}

// IsValidationError returns true if err is (or wraps) a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
