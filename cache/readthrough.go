package cache

import (
	"context"

	"golang.org/x/sync/singleflight"

	"github.com/jonwraymond/ledgerops/observe"
)

// LoadFunc fetches a value from the ledger on a cache miss.
type LoadFunc func(ctx context.Context) ([]byte, error)

// ReadThrough serves ledger queries from a Cache, loading and storing
// misses. Concurrent misses for the same key share one load.
//
// Contract:
//   - Concurrency: safe for concurrent use.
//   - Errors: load errors are returned unchanged and never cached.
//   - Ownership: returned slices may be shared between callers and must
//     not be modified.
type ReadThrough struct {
	cache  Cache
	keyer  Keyer
	policy Policy
	logger observe.Logger
	group  singleflight.Group
}

// ReadThroughOption configures a ReadThrough.
type ReadThroughOption func(*ReadThrough)

// WithKeyer replaces the default "ledger" keyer.
func WithKeyer(k Keyer) ReadThroughOption {
	return func(r *ReadThrough) {
		if k != nil {
			r.keyer = k
		}
	}
}

// WithPolicy replaces DefaultPolicy.
func WithPolicy(p Policy) ReadThroughOption {
	return func(r *ReadThrough) {
		r.policy = p
	}
}

// WithLogger logs cache write failures to l.
func WithLogger(l observe.Logger) ReadThroughOption {
	return func(r *ReadThrough) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewReadThrough wraps c.
func NewReadThrough(c Cache, opts ...ReadThroughOption) (*ReadThrough, error) {
	if c == nil {
		return nil, ErrNilCache
	}
	r := &ReadThrough{
		cache:  c,
		keyer:  NewDefaultKeyer(""),
		policy: DefaultPolicy(),
		logger: observe.NopLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Get returns the cached result of function(args...), calling load on a
// miss. Functions the policy does not cache always call load.
func (r *ReadThrough) Get(ctx context.Context, function string, args []string, load LoadFunc) ([]byte, error) {
	ttl := r.policy.EffectiveTTL(function)
	if ttl <= 0 {
		return load(ctx)
	}

	key, err := r.keyer.Key(function, args)
	if err != nil {
		r.logger.Warn(ctx, "cache key rejected",
			observe.Field{Key: "function", Value: function},
			observe.Field{Key: "error", Value: err.Error()},
		)
		return load(ctx)
	}

	if cached, ok := r.cache.Get(ctx, key); ok {
		return cached, nil
	}

	v, err, _ := r.group.Do(key, func() (any, error) {
		value, err := load(ctx)
		if err != nil {
			return nil, err
		}
		if err := r.cache.Set(ctx, key, value, ttl); err != nil {
			r.logger.Warn(ctx, "cache write failed",
				observe.Field{Key: "function", Value: function},
				observe.Field{Key: "error", Value: err.Error()},
			)
		}
		return value, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// Invalidate drops the cached result of function(args...).
func (r *ReadThrough) Invalidate(ctx context.Context, function string, args []string) error {
	key, err := r.keyer.Key(function, args)
	if err != nil {
		return err
	}
	r.group.Forget(key)
	return r.cache.Delete(ctx, key)
}
