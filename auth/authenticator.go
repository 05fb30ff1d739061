package auth

import (
	"context"
	"net/http"
)

// Authenticator validates request credentials and returns an identity.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: rejected credentials wrap one of the package sentinels.
type Authenticator interface {
	// Name returns a unique identifier for this authenticator.
	Name() string

	// Supports reports whether h carries credentials this authenticator
	// understands.
	Supports(h http.Header) bool

	// Authenticate validates the credentials in h.
	Authenticate(ctx context.Context, h http.Header) (*Identity, error)
}
