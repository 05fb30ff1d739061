package cache

import (
	"context"
	"strings"
	"time"
	"unicode"

	"github.com/jonwraymond/ledgerops/fault"
)

// MaxKeyLength bounds cache keys in bytes.
const MaxKeyLength = 512

var (
	ErrNilCache   = fault.New(fault.KindValidation, "cache: nil cache")
	ErrInvalidKey = fault.New(fault.KindValidation, "cache: invalid key")
	ErrKeyTooLong = fault.New(fault.KindValidation, "cache: key longer than MaxKeyLength")
)

// Cache holds encoded ledger query results.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: a miss is (nil, false), never an error.
// - Ownership: returned slices are shared and must not be modified.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)

	// Set stores value until ttl elapses. A non-positive ttl stores nothing.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete drops key. Missing keys are not an error.
	Delete(ctx context.Context, key string) error
}

// ValidateKey rejects blank keys, keys over MaxKeyLength and keys holding
// control characters.
func ValidateKey(key string) error {
	switch {
	case strings.TrimSpace(key) == "":
		return ErrInvalidKey
	case len(key) > MaxKeyLength:
		return ErrKeyTooLong
	case strings.IndexFunc(key, unicode.IsControl) >= 0:
		return ErrInvalidKey
	}
	return nil
}
