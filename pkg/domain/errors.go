package domain

import "errors"

// Common domain errors
var (
	// ErrNotFound is returned when a requested entity does not exist or is
	// tombstoned.
	ErrNotFound = errors.New("resource not found")
	// ErrValidation is returned when input validation fails.
	ErrValidation = errors.New("validation error")
	// ErrAmountNotPositive is returned when a money amount must be > 0.
	ErrAmountNotPositive = errors.New("amount must be positive")
)
