package auth

import (
	"context"
	"time"

	"github.com/jonwraymond/ledgerops/workflow"
)

// AuthMethod names the credential an Identity was established from.
type AuthMethod string

const (
	AuthMethodJWT    AuthMethod = "jwt"
	AuthMethodAPIKey AuthMethod = "api_key"
)

// Identity is a caller acting for one organization.
type Identity struct {
	// Subject is the token subject or the API key's client name.
	Subject string

	// Org decides which status transitions the caller may request.
	Org workflow.Org

	// Role is optional and only carried for logging.
	Role string

	Method AuthMethod

	// ExpiresAt is zero for credentials that never expire.
	ExpiresAt time.Time
}

// IsExpired reports whether the credential is no longer valid at now.
func (id *Identity) IsExpired(now time.Time) bool {
	if id.ExpiresAt.IsZero() {
		return false
	}
	return !now.Before(id.ExpiresAt)
}

type identityKey struct{}

// WithIdentity attaches id to ctx.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext returns the identity attached by WithIdentity, or
// nil.
func IdentityFromContext(ctx context.Context) *Identity {
	if id, ok := ctx.Value(identityKey{}).(*Identity); ok {
		return id
	}
	return nil
}

// OrgFromContext returns the caller's organization, or "" for an
// unauthenticated context.
func OrgFromContext(ctx context.Context) workflow.Org {
	id := IdentityFromContext(ctx)
	if id == nil {
		return ""
	}
	return id.Org
}
