package services

import (
	"errors"
	"fmt"

	"familyledger/internal/repository"
)

var (
	// ErrInvalidInput marks requests rejected before any store access.
	ErrInvalidInput = errors.New("invalid input")
	// ErrRepository marks a failed store call. Callers must not treat the
	// result as an empty data set.
	ErrRepository = errors.New("repository failure")
	ErrMissingID  = errors.New("missing record id")
)

func invalid(err error) error {
	return fmt.Errorf("%w: %w", ErrInvalidInput, err)
}

// storeErr wraps a store failure. Missing records keep ErrNotFound as the
// outer error so callers can tell them apart from outages.
func storeErr(op string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%w: %s: %w", ErrRepository, op, err)
}
