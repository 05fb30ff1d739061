package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/jonwraymond/ledgerops/workflow"
)

// JWTConfig configures the JWT authenticator.
type JWTConfig struct {
	// Secret is the shared HS256 signing key. Required.
	Secret []byte

	// Issuer is the expected iss claim. Empty disables the check.
	Issuer string

	// Audience is the expected aud claim. Empty disables the check.
	Audience string

	// TTL is the lifetime of tokens minted by Issue.
	// Default: 1h
	TTL time.Duration

	// Leeway tolerates clock skew when checking exp, nbf and iat.
	Leeway time.Duration

	// Now returns the current time.
	// Default: time.Now
	Now func() time.Time
}

// orgClaims is the token payload. organizationId is accepted for tokens
// minted by older services.
type orgClaims struct {
	jwt.RegisteredClaims
	Organization   string `json:"organization,omitempty"`
	OrganizationID string `json:"organizationId,omitempty"`
	Role           string `json:"role,omitempty"`
}

func (c *orgClaims) org() string {
	if c.Organization != "" {
		return c.Organization
	}
	return c.OrganizationID
}

// JWTAuthenticator validates bearer tokens from the Authorization header.
type JWTAuthenticator struct {
	config JWTConfig
	parser *jwt.Parser
}

// NewJWTAuthenticator creates a JWT authenticator.
func NewJWTAuthenticator(config JWTConfig) (*JWTAuthenticator, error) {
	if len(config.Secret) == 0 {
		return nil, ErrNoSecret
	}
	if config.TTL <= 0 {
		config.TTL = time.Hour
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(config.Leeway),
		jwt.WithTimeFunc(config.Now),
	}
	if config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(config.Issuer))
	}
	if config.Audience != "" {
		opts = append(opts, jwt.WithAudience(config.Audience))
	}

	return &JWTAuthenticator{
		config: config,
		parser: jwt.NewParser(opts...),
	}, nil
}

// Name returns "jwt".
func (a *JWTAuthenticator) Name() string {
	return "jwt"
}

// Supports reports whether h carries a bearer token.
func (a *JWTAuthenticator) Supports(h http.Header) bool {
	return strings.HasPrefix(h.Get("Authorization"), "Bearer ")
}

// Authenticate validates the bearer token and returns the identity it
// names. The organization claim must name a known organization.
func (a *JWTAuthenticator) Authenticate(ctx context.Context, h http.Header) (*Identity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raw, ok := strings.CutPrefix(h.Get("Authorization"), "Bearer ")
	raw = strings.TrimSpace(raw)
	if !ok || raw == "" {
		return nil, ErrMissingCredentials
	}

	var claims orgClaims
	_, err := a.parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return a.config.Secret, nil
	})
	if err != nil {
		return nil, mapJWTError(err)
	}

	org, ok := workflow.ParseOrg(claims.org())
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownOrg, claims.org())
	}

	id := &Identity{
		Subject: claims.Subject,
		Org:     org,
		Role:    claims.Role,
		Method:  AuthMethodJWT,
	}
	if claims.ExpiresAt != nil {
		id.ExpiresAt = claims.ExpiresAt.Time
	}
	return id, nil
}

// Issue mints a token for subject acting for org.
func (a *JWTAuthenticator) Issue(subject string, org workflow.Org, role string) (string, error) {
	if _, ok := workflow.ParseOrg(string(org)); !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownOrg, org)
	}

	now := a.config.Now()
	claims := orgClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    a.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.config.TTL)),
		},
		Organization: string(org),
		Role:         role,
	}
	if a.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{a.config.Audience}
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.config.Secret)
	if err != nil {
		return "", fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, nil
}

// mapJWTError translates jwt library errors to package sentinels.
func mapJWTError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ErrTokenMalformed
	default:
		return fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}
}

var _ Authenticator = (*JWTAuthenticator)(nil)
