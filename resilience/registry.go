package resilience

import (
	"context"
	"sort"
	"sync"

	"github.com/jonwraymond/ledgerops/observe"
)

// Registry owns the circuit breakers, bulkheads and rate limiters of a
// process, one of each per dependency name, so every facade for a
// dependency shares its fate.
//
// Contract:
//   - Concurrency: safe for concurrent use.
//   - Ownership: instances live as long as the registry; the first
//     configuration for a name wins.
type Registry struct {
	logger          observe.Logger
	metrics         observe.Metrics
	breakerDefaults CircuitBreakerConfig
	bulkheadDefault BulkheadConfig
	limiterDefault  *RateLimiterConfig

	mu        sync.Mutex
	breakers  map[string]*CircuitBreaker
	bulkheads map[string]*Bulkhead
	limiters  map[string]*RateLimiter
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// NewRegistry creates an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		logger:    observe.NopLogger(),
		metrics:   observe.NopMetrics(),
		breakers:  make(map[string]*CircuitBreaker),
		bulkheads: make(map[string]*Bulkhead),
		limiters:  make(map[string]*RateLimiter),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// WithRegistryLogger logs breaker state changes to l.
func WithRegistryLogger(l observe.Logger) RegistryOption {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithRegistryMetrics records breaker state changes to m.
func WithRegistryMetrics(m observe.Metrics) RegistryOption {
	return func(r *Registry) {
		if m != nil {
			r.metrics = m
		}
	}
}

// WithBreakerDefaults sets the configuration of breakers created without
// an explicit one.
func WithBreakerDefaults(config CircuitBreakerConfig) RegistryOption {
	return func(r *Registry) {
		r.breakerDefaults = config
	}
}

// WithBulkheadDefaults sets the configuration of bulkheads created without
// an explicit one.
func WithBulkheadDefaults(config BulkheadConfig) RegistryOption {
	return func(r *Registry) {
		r.bulkheadDefault = config
	}
}

// WithRateLimiterDefaults sets the configuration of rate limiters created
// without an explicit one, and makes Facade rate limit every dependency.
func WithRateLimiterDefaults(config RateLimiterConfig) RegistryOption {
	return func(r *Registry) {
		r.limiterDefault = &config
	}
}

// CircuitBreaker returns the breaker for name, creating it from config
// (or the registry defaults) on first use. Later configs are ignored.
func (r *Registry) CircuitBreaker(name string, config ...CircuitBreakerConfig) *CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cb, ok := r.breakers[name]; ok {
		return cb
	}

	cfg := r.breakerDefaults
	if len(config) > 0 {
		cfg = config[0]
	}
	cfg.Name = name
	cfg.OnStateChange = r.onStateChange(name, cfg.OnStateChange)

	cb := NewCircuitBreaker(cfg)
	r.breakers[name] = cb
	return cb
}

// Bulkhead returns the bulkhead for name, creating it from config (or the
// registry defaults) on first use. Later configs are ignored.
func (r *Registry) Bulkhead(name string, config ...BulkheadConfig) *Bulkhead {
	r.mu.Lock()
	defer r.mu.Unlock()

	if b, ok := r.bulkheads[name]; ok {
		return b
	}

	cfg := r.bulkheadDefault
	if len(config) > 0 {
		cfg = config[0]
	}
	cfg.Name = name

	b := NewBulkhead(cfg)
	r.bulkheads[name] = b
	return b
}

// RateLimiter returns the rate limiter for name, creating it from config
// (or the registry defaults) on first use. Later configs are ignored.
func (r *Registry) RateLimiter(name string, config ...RateLimiterConfig) *RateLimiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rl, ok := r.limiters[name]; ok {
		return rl
	}

	var cfg RateLimiterConfig
	if r.limiterDefault != nil {
		cfg = *r.limiterDefault
	}
	if len(config) > 0 {
		cfg = config[0]
	}
	cfg.Name = name

	rl := NewRateLimiter(cfg)
	r.limiters[name] = rl
	return rl
}

// Facade returns a facade for dependency that uses the registry's breaker
// and bulkhead of the same name, plus its rate limiter when limiter
// defaults are set. opts are applied after the shared components and may
// replace them.
func (r *Registry) Facade(dependency string, opts ...FacadeOption) *Facade {
	base := []FacadeOption{
		WithCircuitBreaker(r.CircuitBreaker(dependency)),
		WithBulkhead(r.Bulkhead(dependency)),
		WithLogger(r.logger),
	}
	if r.limiterDefault != nil {
		base = append(base, WithRateLimiter(r.RateLimiter(dependency)))
	}
	return NewFacade(dependency, append(base, opts...)...)
}

// Stats is a point-in-time snapshot of every registered component.
type Stats struct {
	CircuitBreakers []CircuitBreakerMetrics `json:"circuitBreakers"`
	Bulkheads       []BulkheadMetrics       `json:"bulkheads"`
	RateLimiters    []RateLimiterMetrics    `json:"rateLimiters"`
}

// BreakerStats returns the metrics of the named breaker.
func (r *Registry) BreakerStats(name string) (CircuitBreakerMetrics, bool) {
	r.mu.Lock()
	cb, ok := r.breakers[name]
	r.mu.Unlock()

	if !ok {
		return CircuitBreakerMetrics{}, false
	}
	return cb.Metrics(), true
}

// BulkheadStats returns the metrics of the named bulkhead.
func (r *Registry) BulkheadStats(name string) (BulkheadMetrics, bool) {
	r.mu.Lock()
	b, ok := r.bulkheads[name]
	r.mu.Unlock()

	if !ok {
		return BulkheadMetrics{}, false
	}
	return b.Metrics(), true
}

// AllStats snapshots every registered component, sorted by name.
func (r *Registry) AllStats() Stats {
	breakers, bulkheads, limiters := r.snapshot()

	stats := Stats{
		CircuitBreakers: make([]CircuitBreakerMetrics, 0, len(breakers)),
		Bulkheads:       make([]BulkheadMetrics, 0, len(bulkheads)),
		RateLimiters:    make([]RateLimiterMetrics, 0, len(limiters)),
	}
	for _, cb := range breakers {
		stats.CircuitBreakers = append(stats.CircuitBreakers, cb.Metrics())
	}
	for _, b := range bulkheads {
		stats.Bulkheads = append(stats.Bulkheads, b.Metrics())
	}
	for _, rl := range limiters {
		stats.RateLimiters = append(stats.RateLimiters, rl.Metrics())
	}

	sort.Slice(stats.CircuitBreakers, func(i, j int) bool {
		return stats.CircuitBreakers[i].Name < stats.CircuitBreakers[j].Name
	})
	sort.Slice(stats.Bulkheads, func(i, j int) bool {
		return stats.Bulkheads[i].Name < stats.Bulkheads[j].Name
	})
	sort.Slice(stats.RateLimiters, func(i, j int) bool {
		return stats.RateLimiters[i].Name < stats.RateLimiters[j].Name
	})
	return stats
}

// ResetAll resets every breaker to CLOSED and refills every rate limiter.
func (r *Registry) ResetAll() {
	breakers, _, limiters := r.snapshot()
	for _, cb := range breakers {
		cb.Reset()
	}
	for _, rl := range limiters {
		rl.Reset()
	}
	r.logger.Info(context.Background(), "all circuit breakers reset",
		observe.Field{Key: "count", Value: len(breakers)},
	)
}

func (r *Registry) snapshot() ([]*CircuitBreaker, []*Bulkhead, []*RateLimiter) {
	r.mu.Lock()
	defer r.mu.Unlock()

	breakers := make([]*CircuitBreaker, 0, len(r.breakers))
	for _, cb := range r.breakers {
		breakers = append(breakers, cb)
	}
	bulkheads := make([]*Bulkhead, 0, len(r.bulkheads))
	for _, b := range r.bulkheads {
		bulkheads = append(bulkheads, b)
	}
	limiters := make([]*RateLimiter, 0, len(r.limiters))
	for _, rl := range r.limiters {
		limiters = append(limiters, rl)
	}
	return breakers, bulkheads, limiters
}

func (r *Registry) onStateChange(name string, next func(from, to State)) func(from, to State) {
	return func(from, to State) {
		ctx := context.Background()
		fields := []observe.Field{
			{Key: "breaker", Value: name},
			{Key: "from", Value: from.String()},
			{Key: "to", Value: to.String()},
		}
		if to == StateOpen {
			r.logger.Error(ctx, "circuit breaker opened", fields...)
		} else {
			r.logger.Info(ctx, "circuit breaker state changed", fields...)
		}
		r.metrics.RecordTransition(ctx, name, from.String(), to.String())

		if next != nil {
			next(from, to)
		}
	}
}

type registryKey struct{}

// WithRegistry returns a context carrying r.
func WithRegistry(ctx context.Context, r *Registry) context.Context {
	return context.WithValue(ctx, registryKey{}, r)
}

// RegistryFromContext returns the registry carried by ctx.
func RegistryFromContext(ctx context.Context) (*Registry, bool) {
	r, ok := ctx.Value(registryKey{}).(*Registry)
	return r, ok && r != nil
}
