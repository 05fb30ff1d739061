package cache

import "time"

// Policy decides which ledger queries are cached and for how long.
type Policy struct {
	// DefaultTTL applies to functions without an entry in Functions.
	// If zero, only functions listed in Functions are cached.
	DefaultTTL time.Duration

	// MaxTTL clamps every TTL. If zero, no maximum is enforced.
	MaxTTL time.Duration

	// Functions overrides the TTL per ledger function. A zero or negative
	// value disables caching for that function.
	Functions map[string]time.Duration
}

// DefaultPolicy caches record reads for 30 seconds and nothing else.
func DefaultPolicy() Policy {
	return Policy{
		MaxTTL: 5 * time.Minute,
		Functions: map[string]time.Duration{
			"GetRecord": 30 * time.Second,
		},
	}
}

// NoCachePolicy returns a policy that disables caching entirely.
func NoCachePolicy() Policy {
	return Policy{}
}

// EffectiveTTL returns the TTL for function after overrides and clamping.
// Zero means function is not cached.
func (p Policy) EffectiveTTL(function string) time.Duration {
	ttl, ok := p.Functions[function]
	if !ok {
		ttl = p.DefaultTTL
	}
	if ttl <= 0 {
		return 0
	}
	if p.MaxTTL > 0 && ttl > p.MaxTTL {
		ttl = p.MaxTTL
	}
	return ttl
}

// ShouldCache reports whether results of function are cached.
func (p Policy) ShouldCache(function string) bool {
	return p.EffectiveTTL(function) > 0
}
