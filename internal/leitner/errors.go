package leitner

import (
	"errors"
	"fmt"
)

// ErrValidation is the sentinel every validation failure unwraps to,
// so callers can branch with errors.Is instead of matching messages.
var ErrValidation = errors.New("validation failed")

// ValidationError describes a value that failed validation and why.
// Validation runs before anything is persisted; a ValidationError
// always blocks the save.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }
