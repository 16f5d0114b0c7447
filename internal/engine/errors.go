package engine

import (
	"errors"
	"fmt"
)

// Sentinel failures the engine and its stores return. Callers match with
// errors.Is; the HTTP layer maps them to status codes.
var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")
	ErrForbidden  = errors.New("forbidden")
	ErrConflict   = errors.New("conflict")
	ErrStore      = errors.New("store failure")
)

// Invalid wraps ErrValidation with the offending field and reason.
func Invalid(field, reason string) error {
	return fmt.Errorf("%w: %s %s", ErrValidation, field, reason)
}
