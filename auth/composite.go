package auth

import (
	"context"
	"net/http"
)

// CompositeAuthenticator delegates to the first authenticator that
// supports the request.
type CompositeAuthenticator struct {
	authenticators []Authenticator
}

// NewCompositeAuthenticator creates a composite authenticator. Nil
// entries are skipped.
func NewCompositeAuthenticator(auths ...Authenticator) *CompositeAuthenticator {
	c := &CompositeAuthenticator{}
	for _, a := range auths {
		if a != nil {
			c.authenticators = append(c.authenticators, a)
		}
	}
	return c
}

// Name returns "composite".
func (c *CompositeAuthenticator) Name() string {
	return "composite"
}

// Len returns the number of authenticators.
func (c *CompositeAuthenticator) Len() int {
	return len(c.authenticators)
}

// Supports reports whether any authenticator supports h.
func (c *CompositeAuthenticator) Supports(h http.Header) bool {
	for _, a := range c.authenticators {
		if a.Supports(h) {
			return true
		}
	}
	return false
}

// Authenticate runs the first authenticator that supports h. Credentials
// rejected by that authenticator are not offered to the others.
func (c *CompositeAuthenticator) Authenticate(ctx context.Context, h http.Header) (*Identity, error) {
	for _, a := range c.authenticators {
		if a.Supports(h) {
			return a.Authenticate(ctx, h)
		}
	}
	return nil, ErrMissingCredentials
}

var _ Authenticator = (*CompositeAuthenticator)(nil)
