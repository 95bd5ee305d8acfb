package model

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by stores when a row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a unique value is already taken.
	ErrConflict = errors.New("conflict")
	// ErrValidation is returned for malformed input.
	ErrValidation = errors.New("validation failed")

	ErrUsernameTaken = fmt.Errorf("username already taken: %w", ErrConflict)
	ErrEmailTaken    = fmt.Errorf("email already exists: %w", ErrConflict)

	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrAccountNotVerified = errors.New("account not verified")
)

// Token errors. Everything below ErrUnauthenticated is reported to clients as
// the same generic authentication failure.
var (
	ErrUnauthenticated  = errors.New("missing token")
	ErrInvalidToken     = errors.New("invalid token")
	ErrTokenMalformed   = fmt.Errorf("token is malformed: %w", ErrInvalidToken)
	ErrInvalidSignature = fmt.Errorf("token signature is invalid: %w", ErrInvalidToken)
	ErrTokenExpired     = errors.New("token expired")
	ErrTokenRevoked     = errors.New("token revoked")
)

// UnauthenticatedMessage is the only detail clients get about an
// authentication failure.
const UnauthenticatedMessage = "missing or invalid token"

// IsAuthError reports whether err belongs to the authentication failures
// that are never distinguished towards clients.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrUnauthenticated) ||
		errors.Is(err, ErrInvalidToken) ||
		errors.Is(err, ErrTokenExpired) ||
		errors.Is(err, ErrTokenRevoked)
}
