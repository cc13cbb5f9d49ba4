package model

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned for missing documents, users, or job names.
	ErrNotFound = errors.New("not found")
	// ErrConflict signals a concurrent modification detected on save. Callers
	// either re-fetch and retry or abort that single document's processing.
	ErrConflict = errors.New("version conflict")
)

// ValidationError rejects an invalid mutation before it reaches the store.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
