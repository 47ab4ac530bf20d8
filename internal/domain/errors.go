package domain

import "errors"

var (
	// ErrValidation marks input that fails domain validation.
	ErrValidation = errors.New("validation error")
	// ErrNotFound marks a missing persistent entity.
	ErrNotFound = errors.New("not found")
	// ErrConflict marks an operation rejected by the current entity state.
	ErrConflict = errors.New("conflict")
)
