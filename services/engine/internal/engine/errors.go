// Package engine wires the predictors, policy generator, and outcome
// store into the assessment and recording operations.
package engine

import (
	"errors"
	"fmt"
)

// Sentinel error kinds. Callers classify failures with errors.Is and
// map them to transport status codes.
var (
	// ErrValidation marks malformed input. Never logged as an error.
	ErrValidation = errors.New("validation failed")

	// ErrStorage marks an outcome store failure.
	ErrStorage = errors.New("storage failed")

	// ErrNotReady marks an engine whose essential state is not yet
	// initialized.
	ErrNotReady = errors.New("engine not ready")

	// ErrTimeout marks a request that exceeded its deadline.
	ErrTimeout = errors.New("request timed out")

	// ErrInternal marks an unexpected failure.
	ErrInternal = errors.New("internal error")
)

// validationErr wraps a field-level validation failure.
func validationErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// storageErr wraps a store failure.
func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrStorage, op, err)
}
