// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across repo/service layers.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized indicates failed authentication (bad credentials, bad token).
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates an authenticated caller lacks the required role or gym scope.
	ErrForbidden = errors.New("forbidden")

	// ErrInactive indicates the account exists but is deactivated.
	ErrInactive = errors.New("inactive user")

	// ErrRateLimited indicates temporary login lock due to rate limiting.
	ErrRateLimited = errors.New("rate limited")

	// ErrAlreadyExists indicates a unique constraint violation (e.g., email taken in a gym).
	ErrAlreadyExists = errors.New("already exists")

	// ErrValidation indicates malformed or incomplete input.
	ErrValidation = errors.New("validation")
)
