package auth

import "errors"

// Sentinel errors for authentication.
var (
	ErrMissingCredentials = errors.New("auth: missing credentials")
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrTokenExpired       = errors.New("auth: token expired")
	ErrTokenMalformed     = errors.New("auth: token malformed")
	ErrUnknownOrg         = errors.New("auth: unknown organization")

	// ErrNoSecret is returned when a JWT authenticator is built without a
	// signing secret.
	ErrNoSecret = errors.New("auth: signing secret is required")
)
