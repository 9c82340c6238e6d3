package domain

import (
	"errors"
	"fmt"
)

// Domain errors. The HTTP layer maps each of them to a status code.
var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrConflict         = errors.New("already exists")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrForbidden        = errors.New("forbidden")
	ErrInsufficientRole = errors.New("insufficient role")
	ErrExpired          = errors.New("expired")
	ErrAlreadyProcessed = errors.New("already processed")
	ErrCurrencyMismatch = errors.New("currency mismatch")
)

// Invalid wraps ErrInvalidInput with the offending field.
func Invalid(field, msg string) error {
	return fmt.Errorf("%w: %s %s", ErrInvalidInput, field, msg)
}
