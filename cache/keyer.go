package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Keyer derives cache keys from a ledger function call.
//
// Contract:
// - Determinism: the same function and arguments always yield the same key.
// - Concurrency: implementations must be safe for concurrent use.
type Keyer interface {
	Key(function string, args []string) (string, error)
}

// DefaultKeyer generates SHA-256 based cache keys.
type DefaultKeyer struct {
	namespace string
}

// NewDefaultKeyer creates a keyer whose keys start with namespace.
// An empty namespace defaults to "ledger".
func NewDefaultKeyer(namespace string) *DefaultKeyer {
	if namespace == "" {
		namespace = "ledger"
	}
	return &DefaultKeyer{namespace: namespace}
}

// Key returns <namespace>:<function>:<hash>, where hash is the first 16
// hex characters of SHA-256 over the JSON-encoded argument list. Arguments
// are hashed as a list so ("a,b") and ("a", "b") never collide.
func (k *DefaultKeyer) Key(function string, args []string) (string, error) {
	if function == "" {
		return "", ErrInvalidKey
	}
	if args == nil {
		args = []string{}
	}

	encoded, err := json.Marshal(args)
	if err != nil {
		return "", fmt.Errorf("cache: encode args: %w", err)
	}
	sum := sha256.Sum256(encoded)

	key := k.namespace + ":" + function + ":" + hex.EncodeToString(sum[:8])
	if err := ValidateKey(key); err != nil {
		return "", err
	}
	return key, nil
}

var _ Keyer = (*DefaultKeyer)(nil)
