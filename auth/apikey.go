package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/jonwraymond/ledgerops/workflow"
)

// APIKeyHeader carries an API key.
const APIKeyHeader = "X-API-Key"

// APIKeyInfo describes a registered API key.
type APIKeyInfo struct {
	// ID names the key in logs. It is never the key itself.
	ID string

	// Org is the organization the key acts for.
	Org workflow.Org
}

// APIKeyAuthenticator validates keys from the X-API-Key header. Only
// SHA-256 hashes of keys are held.
type APIKeyAuthenticator struct {
	mu   sync.RWMutex
	keys map[string]APIKeyInfo // keyed by hash
}

// NewAPIKeyAuthenticator creates an authenticator with no keys.
func NewAPIKeyAuthenticator() *APIKeyAuthenticator {
	return &APIKeyAuthenticator{keys: make(map[string]APIKeyInfo)}
}

// Add registers key for info.Org.
func (a *APIKeyAuthenticator) Add(key string, info APIKeyInfo) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("%w: empty api key", ErrInvalidCredentials)
	}
	if _, ok := workflow.ParseOrg(string(info.Org)); !ok {
		return fmt.Errorf("%w: %q", ErrUnknownOrg, info.Org)
	}
	if info.ID == "" {
		info.ID = string(info.Org)
	}

	a.mu.Lock()
	a.keys[HashAPIKey(key)] = info
	a.mu.Unlock()
	return nil
}

// ParseAPIKey parses an "org=key" pair.
func ParseAPIKey(pair string) (string, APIKeyInfo, error) {
	org, key, ok := strings.Cut(pair, "=")
	if !ok || strings.TrimSpace(key) == "" {
		return "", APIKeyInfo{}, fmt.Errorf("%w: api key must be org=key", ErrInvalidCredentials)
	}
	parsed, known := workflow.ParseOrg(strings.TrimSpace(org))
	if !known {
		return "", APIKeyInfo{}, fmt.Errorf("%w: %q", ErrUnknownOrg, org)
	}
	return key, APIKeyInfo{Org: parsed}, nil
}

// Len returns the number of registered keys.
func (a *APIKeyAuthenticator) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.keys)
}

// Name returns "api_key".
func (a *APIKeyAuthenticator) Name() string {
	return "api_key"
}

// Supports reports whether h carries an API key.
func (a *APIKeyAuthenticator) Supports(h http.Header) bool {
	return h.Get(APIKeyHeader) != ""
}

// Authenticate looks up the key in h.
func (a *APIKeyAuthenticator) Authenticate(ctx context.Context, h http.Header) (*Identity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key := strings.TrimSpace(h.Get(APIKeyHeader))
	if key == "" {
		return nil, ErrMissingCredentials
	}

	hash := HashAPIKey(key)
	a.mu.RLock()
	info, ok := a.keys[hash]
	a.mu.RUnlock()
	if !ok {
		return nil, ErrInvalidCredentials
	}

	return &Identity{
		Subject: info.ID,
		Org:     info.Org,
		Method:  AuthMethodAPIKey,
	}, nil
}

// HashAPIKey hashes an API key using SHA-256 for storage.
func HashAPIKey(key string) string {
	hash := sha256.Sum256([]byte(key))
	return hex.EncodeToString(hash[:])
}

var _ Authenticator = (*APIKeyAuthenticator)(nil)
