// Package common defines shared constants and sentinel errors used across
// gophvault layers. Callers should use errors.Is to match these values.
package common

import (
	"errors"
	"fmt"
)

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors.
	ErrorUnauthorized  = errors.New("unauthorized")
	ErrVersionConflict = errors.New("version conflict")

	// Input errors, always fixable by the caller.
	ErrInvalidInput = errors.New("invalid input")
	ErrValidation   = errors.New("validation error")

	// Cryptographic failures. A wrong master password and corrupted ciphertext
	// are reported identically; both match ErrDecryption.
	ErrDecryption          = errors.New("decryption failed")
	ErrWrongMasterPassword = fmt.Errorf("wrong master password: %w", ErrDecryption)

	// Backup archive checksum mismatch.
	ErrIntegrity = errors.New("integrity check failed")

	// Rejected 2FA code or recovery code.
	ErrInvalidCode = errors.New("invalid code")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

// ValidationError reports which field failed validation. It never carries
// the offending value.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s %s", e.Field, e.Reason)
}

// Is makes errors.Is(err, ErrValidation) true for any *ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NewValidationError is a shorthand for &ValidationError{...}.
func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
