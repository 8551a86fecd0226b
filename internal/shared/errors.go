package shared

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrMissingIdentity indicates a save was attempted without a required id.
	ErrMissingIdentity = errors.New("identity required")
	// ErrPersistenceFailure wraps store write failures surfaced to callers.
	ErrPersistenceFailure = errors.New("persistence failure")
)

// WrapPersistence tags a storage error so callers can match it with errors.Is.
func WrapPersistence(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %v", ErrPersistenceFailure, op, err)
}
