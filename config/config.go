package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/jonwraymond/ledgerops/auth"
	"github.com/jonwraymond/ledgerops/cache"
	"github.com/jonwraymond/ledgerops/health"
	"github.com/jonwraymond/ledgerops/ledger"
	"github.com/jonwraymond/ledgerops/observe"
	"github.com/jonwraymond/ledgerops/resilience"
)

// Config is the full ledgerops configuration.
type Config struct {
	ServiceName     string        `env:"LEDGEROPS_SERVICE_NAME"     envDefault:"ledgerops"`
	Version         string        `env:"LEDGEROPS_VERSION"          envDefault:"dev"`
	HTTPAddr        string        `env:"LEDGEROPS_HTTP_ADDR"        envDefault:":8080"`
	ShutdownTimeout time.Duration `env:"LEDGEROPS_SHUTDOWN_TIMEOUT" envDefault:"10s"`
	Environment     string        `env:"LEDGEROPS_ENVIRONMENT"`

	// Dependency names the ledger in logs, metrics and the registry.
	Dependency string `env:"LEDGEROPS_DEPENDENCY" envDefault:"ledger"`

	// LedgerDSN is the SQLite database path, or ":memory:".
	LedgerDSN string `env:"LEDGEROPS_LEDGER_DSN" envDefault:":memory:"`

	// AttemptTimeout bounds each ledger attempt. Zero disables it.
	AttemptTimeout time.Duration `env:"LEDGEROPS_ATTEMPT_TIMEOUT" envDefault:"30s"`

	BreakerFailureThreshold int           `env:"LEDGEROPS_BREAKER_FAILURE_THRESHOLD" envDefault:"5"`
	BreakerSuccessThreshold int           `env:"LEDGEROPS_BREAKER_SUCCESS_THRESHOLD" envDefault:"2"`
	BreakerCooldown         time.Duration `env:"LEDGEROPS_BREAKER_COOLDOWN"          envDefault:"60s"`
	BreakerHalfOpenRequests int           `env:"LEDGEROPS_BREAKER_HALF_OPEN_REQUESTS" envDefault:"1"`

	QueryMaxRetries   int           `env:"LEDGEROPS_QUERY_MAX_RETRIES"   envDefault:"5"`
	QueryInitialDelay time.Duration `env:"LEDGEROPS_QUERY_INITIAL_DELAY" envDefault:"500ms"`
	QueryMaxDelay     time.Duration `env:"LEDGEROPS_QUERY_MAX_DELAY"     envDefault:"5s"`

	TransactionMaxRetries   int           `env:"LEDGEROPS_TX_MAX_RETRIES"   envDefault:"3"`
	TransactionInitialDelay time.Duration `env:"LEDGEROPS_TX_INITIAL_DELAY" envDefault:"1s"`
	TransactionMaxDelay     time.Duration `env:"LEDGEROPS_TX_MAX_DELAY"     envDefault:"10s"`

	// RetryStrategy is exponential, linear or constant.
	RetryStrategy    string  `env:"LEDGEROPS_RETRY_STRATEGY"    envDefault:"exponential"`
	RetryMultiplier  float64 `env:"LEDGEROPS_RETRY_MULTIPLIER"  envDefault:"2"`
	RetryJitterRatio float64 `env:"LEDGEROPS_RETRY_JITTER_RATIO" envDefault:"0.25"`

	// BulkheadMaxConcurrent of zero disables the bulkhead.
	BulkheadMaxConcurrent int           `env:"LEDGEROPS_BULKHEAD_MAX_CONCURRENT" envDefault:"10"`
	BulkheadMaxQueue      int           `env:"LEDGEROPS_BULKHEAD_MAX_QUEUE"      envDefault:"100"`
	BulkheadMaxWait       time.Duration `env:"LEDGEROPS_BULKHEAD_MAX_WAIT"       envDefault:"5s"`

	// RateLimit of zero disables the rate limiter.
	RateLimit        float64       `env:"LEDGEROPS_RATE_LIMIT"          envDefault:"0"`
	RateLimitBurst   int           `env:"LEDGEROPS_RATE_LIMIT_BURST"    envDefault:"10"`
	RateLimitWait    bool          `env:"LEDGEROPS_RATE_LIMIT_WAIT"     envDefault:"true"`
	RateLimitMaxWait time.Duration `env:"LEDGEROPS_RATE_LIMIT_MAX_WAIT" envDefault:"1s"`

	// CacheTTL of zero disables the record read cache.
	CacheTTL        time.Duration `env:"LEDGEROPS_CACHE_TTL"         envDefault:"30s"`
	CacheMaxTTL     time.Duration `env:"LEDGEROPS_CACHE_MAX_TTL"     envDefault:"5m"`
	CacheMaxEntries int           `env:"LEDGEROPS_CACHE_MAX_ENTRIES" envDefault:"10000"`
	CacheNamespace  string        `env:"LEDGEROPS_CACHE_NAMESPACE"   envDefault:"ledger"`

	HealthTimeout  time.Duration `env:"LEDGEROPS_HEALTH_TIMEOUT"  envDefault:"10s"`
	HealthParallel bool          `env:"LEDGEROPS_HEALTH_PARALLEL" envDefault:"true"`
	// HealthSlowPing marks the ledger degraded when a ping takes longer.
	// Zero disables it.
	HealthSlowPing time.Duration `env:"LEDGEROPS_HEALTH_SLOW_PING" envDefault:"500ms"`

	LogLevel        string        `env:"LEDGEROPS_LOG_LEVEL"          envDefault:"info"`
	LogFormat       string        `env:"LEDGEROPS_LOG_FORMAT"         envDefault:"json"`
	TracingExporter string        `env:"LEDGEROPS_TRACING_EXPORTER"   envDefault:"none"`
	TracingSample   float64       `env:"LEDGEROPS_TRACING_SAMPLE_PCT" envDefault:"1"`
	MetricsExporter string        `env:"LEDGEROPS_METRICS_EXPORTER"   envDefault:"none"`
	MetricsInterval time.Duration `env:"LEDGEROPS_METRICS_INTERVAL"   envDefault:"60s"`
	OTLPEndpoint    string        `env:"LEDGEROPS_OTLP_ENDPOINT"`
	OTLPInsecure    bool          `env:"LEDGEROPS_OTLP_INSECURE"      envDefault:"false"`

	// The records API is served only when a JWT secret or an API key is set.
	JWTSecret   string        `env:"LEDGEROPS_JWT_SECRET"`
	JWTIssuer   string        `env:"LEDGEROPS_JWT_ISSUER"   envDefault:"ledgerops"`
	JWTAudience string        `env:"LEDGEROPS_JWT_AUDIENCE"`
	JWTLeeway   time.Duration `env:"LEDGEROPS_JWT_LEEWAY"   envDefault:"30s"`
	TokenTTL    time.Duration `env:"LEDGEROPS_TOKEN_TTL"    envDefault:"1h"`

	// APIKeys holds org=key pairs, e.g. "customs=sk_live_abc".
	APIKeys []string `env:"LEDGEROPS_API_KEYS" envSeparator:","`
}

// ParseEnv loads configuration from environment variables into target.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// ParseEnvFrom is ParseEnv over an explicit environment.
func ParseEnvFrom(target any, environ map[string]string) error {
	if err := env.ParseWithOptions(target, env.Options{Environment: environ}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load parses the process environment and validates the result.
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Default returns the configuration with every default applied.
func Default() Config {
	var cfg Config
	// Only envDefault tags apply to an empty environment, so this cannot fail.
	_ = ParseEnvFrom(&cfg, map[string]string{})
	return cfg
}

// Validate reports every invalid setting, each wrapping ErrInvalidConfig.
func (c Config) Validate() error {
	var errs []error
	invalid := func(field, format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: %s: %s", ErrInvalidConfig, field, fmt.Sprintf(format, args...)))
	}

	if strings.TrimSpace(c.ServiceName) == "" {
		invalid("LEDGEROPS_SERVICE_NAME", "must not be empty")
	}
	if strings.TrimSpace(c.Dependency) == "" {
		invalid("LEDGEROPS_DEPENDENCY", "must not be empty")
	}
	if strings.TrimSpace(c.LedgerDSN) == "" {
		invalid("LEDGEROPS_LEDGER_DSN", "must not be empty")
	}
	if c.AttemptTimeout < 0 {
		invalid("LEDGEROPS_ATTEMPT_TIMEOUT", "must not be negative, got %s", c.AttemptTimeout)
	}
	if c.BreakerFailureThreshold < 1 {
		invalid("LEDGEROPS_BREAKER_FAILURE_THRESHOLD", "must be at least 1, got %d", c.BreakerFailureThreshold)
	}
	if c.BreakerSuccessThreshold < 1 {
		invalid("LEDGEROPS_BREAKER_SUCCESS_THRESHOLD", "must be at least 1, got %d", c.BreakerSuccessThreshold)
	}
	if c.BreakerCooldown <= 0 {
		invalid("LEDGEROPS_BREAKER_COOLDOWN", "must be positive, got %s", c.BreakerCooldown)
	}
	if c.QueryMaxRetries < 0 {
		invalid("LEDGEROPS_QUERY_MAX_RETRIES", "must not be negative, got %d", c.QueryMaxRetries)
	}
	if c.TransactionMaxRetries < 0 {
		invalid("LEDGEROPS_TX_MAX_RETRIES", "must not be negative, got %d", c.TransactionMaxRetries)
	}
	if c.QueryMaxDelay < c.QueryInitialDelay {
		invalid("LEDGEROPS_QUERY_MAX_DELAY", "must not be below the initial delay %s", c.QueryInitialDelay)
	}
	if c.TransactionMaxDelay < c.TransactionInitialDelay {
		invalid("LEDGEROPS_TX_MAX_DELAY", "must not be below the initial delay %s", c.TransactionInitialDelay)
	}
	if _, err := parseStrategy(c.RetryStrategy); err != nil {
		invalid("LEDGEROPS_RETRY_STRATEGY", "%v", err)
	}
	if c.RetryJitterRatio < 0 || c.RetryJitterRatio >= 1 {
		invalid("LEDGEROPS_RETRY_JITTER_RATIO", "must be in [0, 1), got %g", c.RetryJitterRatio)
	}
	if c.BulkheadMaxConcurrent < 0 || c.BulkheadMaxQueue < 0 {
		invalid("LEDGEROPS_BULKHEAD_*", "sizes must not be negative")
	}
	if c.RateLimit < 0 {
		invalid("LEDGEROPS_RATE_LIMIT", "must not be negative, got %g", c.RateLimit)
	}
	if c.CacheTTL < 0 {
		invalid("LEDGEROPS_CACHE_TTL", "must not be negative, got %s", c.CacheTTL)
	}
	if c.HealthTimeout <= 0 {
		invalid("LEDGEROPS_HEALTH_TIMEOUT", "must be positive, got %s", c.HealthTimeout)
	}
	if c.HealthSlowPing < 0 {
		invalid("LEDGEROPS_HEALTH_SLOW_PING", "must not be negative, got %s", c.HealthSlowPing)
	}
	if c.JWTLeeway < 0 {
		invalid("LEDGEROPS_JWT_LEEWAY", "must not be negative, got %s", c.JWTLeeway)
	}
	for i, pair := range c.APIKeys {
		if _, _, err := auth.ParseAPIKey(pair); err != nil {
			invalid("LEDGEROPS_API_KEYS", "entry %d: %v", i, err)
		}
	}

	obs := c.ObserveConfig()
	if err := obs.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("%w: %w", ErrInvalidConfig, err))
	}

	return errors.Join(errs...)
}

func parseStrategy(s string) (resilience.BackoffStrategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "exponential":
		return resilience.BackoffExponential, nil
	case "linear":
		return resilience.BackoffLinear, nil
	case "constant":
		return resilience.BackoffConstant, nil
	default:
		return 0, fmt.Errorf("unknown backoff strategy %q", s)
	}
}

// CircuitBreakerConfig returns the breaker settings for the ledger.
func (c Config) CircuitBreakerConfig() resilience.CircuitBreakerConfig {
	return resilience.CircuitBreakerConfig{
		Name:                c.Dependency,
		FailureThreshold:    c.BreakerFailureThreshold,
		SuccessThreshold:    c.BreakerSuccessThreshold,
		Cooldown:            c.BreakerCooldown,
		HalfOpenMaxRequests: c.BreakerHalfOpenRequests,
	}
}

// QueryRetryConfig returns the retry policy for ledger reads.
func (c Config) QueryRetryConfig() resilience.RetryConfig {
	return c.retryConfig(c.QueryMaxRetries, c.QueryInitialDelay, c.QueryMaxDelay)
}

// TransactionRetryConfig returns the retry policy for ledger writes.
func (c Config) TransactionRetryConfig() resilience.RetryConfig {
	return c.retryConfig(c.TransactionMaxRetries, c.TransactionInitialDelay, c.TransactionMaxDelay)
}

func (c Config) retryConfig(maxRetries int, initial, maxDelay time.Duration) resilience.RetryConfig {
	strategy, _ := parseStrategy(c.RetryStrategy)
	// RetryConfig reads zero as "use the default" and negative as none.
	if maxRetries == 0 {
		maxRetries = -1
	}
	jitter := c.RetryJitterRatio
	if jitter == 0 {
		jitter = -1
	}
	return resilience.RetryConfig{
		MaxRetries:   maxRetries,
		InitialDelay: initial,
		MaxDelay:     maxDelay,
		Multiplier:   c.RetryMultiplier,
		Strategy:     strategy,
		JitterRatio:  jitter,
	}
}

// BulkheadConfig returns the bulkhead settings and whether one is enabled.
func (c Config) BulkheadConfig() (resilience.BulkheadConfig, bool) {
	return resilience.BulkheadConfig{
		Name:          c.Dependency,
		MaxConcurrent: c.BulkheadMaxConcurrent,
		MaxQueue:      c.BulkheadMaxQueue,
		MaxWait:       c.BulkheadMaxWait,
	}, c.BulkheadMaxConcurrent > 0
}

// RateLimiterConfig returns the limiter settings and whether one is enabled.
func (c Config) RateLimiterConfig() (resilience.RateLimiterConfig, bool) {
	return resilience.RateLimiterConfig{
		Rate:        c.RateLimit,
		Burst:       c.RateLimitBurst,
		WaitOnLimit: c.RateLimitWait,
		MaxWait:     c.RateLimitMaxWait,
	}, c.RateLimit > 0
}

// CachePolicy returns the read cache policy. Only GetRecord is cached.
func (c Config) CachePolicy() cache.Policy {
	if c.CacheTTL <= 0 {
		return cache.NoCachePolicy()
	}
	return cache.Policy{
		MaxTTL: c.CacheMaxTTL,
		Functions: map[string]time.Duration{
			ledger.FnGetRecord: c.CacheTTL,
		},
	}
}

// CacheEnabled reports whether record reads are cached.
func (c Config) CacheEnabled() bool {
	return c.CachePolicy().ShouldCache(ledger.FnGetRecord)
}

// MemoryCacheConfig returns the in-process cache bounds.
func (c Config) MemoryCacheConfig() cache.MemoryCacheConfig {
	return cache.MemoryCacheConfig{MaxEntries: c.CacheMaxEntries}
}

// AggregatorConfig returns the health aggregator settings.
func (c Config) AggregatorConfig(logger observe.Logger) health.AggregatorConfig {
	return health.AggregatorConfig{
		Timeout:  c.HealthTimeout,
		Parallel: c.HealthParallel,
		Logger:   logger,
	}
}

// ObserveConfig returns the telemetry settings.
func (c Config) ObserveConfig() observe.Config {
	return observe.Config{
		ServiceName: c.ServiceName,
		Version:     c.Version,
		Environment: c.Environment,
		Tracing: observe.TracingConfig{
			Enabled:   c.TracingExporter != "" && c.TracingExporter != "none",
			Exporter:  c.TracingExporter,
			SamplePct: c.TracingSample,
			Endpoint:  c.OTLPEndpoint,
			Insecure:  c.OTLPInsecure,
		},
		Metrics: observe.MetricsConfig{
			Enabled:  c.MetricsExporter != "" && c.MetricsExporter != "none",
			Exporter: c.MetricsExporter,
			Endpoint: c.OTLPEndpoint,
			Insecure: c.OTLPInsecure,
			Interval: c.MetricsInterval,
		},
		Logging: observe.LoggingConfig{
			Enabled: true,
			Level:   c.LogLevel,
			Format:  c.LogFormat,
		},
	}
}

// AuthEnabled reports whether any credential is configured.
func (c Config) AuthEnabled() bool {
	return c.JWTSecret != "" || len(c.APIKeys) > 0
}

// JWTConfig returns the token settings and whether a secret is set.
func (c Config) JWTConfig() (auth.JWTConfig, bool) {
	return auth.JWTConfig{
		Secret:   []byte(c.JWTSecret),
		Issuer:   c.JWTIssuer,
		Audience: c.JWTAudience,
		TTL:      c.TokenTTL,
		Leeway:   c.JWTLeeway,
	}, c.JWTSecret != ""
}

// Authenticator builds the request authenticator: bearer tokens first,
// then API keys. It has no members when AuthEnabled is false.
func (c Config) Authenticator() (*auth.CompositeAuthenticator, error) {
	var auths []auth.Authenticator
	if cfg, ok := c.JWTConfig(); ok {
		a, err := auth.NewJWTAuthenticator(cfg)
		if err != nil {
			return nil, err
		}
		auths = append(auths, a)
	}
	if len(c.APIKeys) > 0 {
		keys := auth.NewAPIKeyAuthenticator()
		for i, pair := range c.APIKeys {
			key, info, err := auth.ParseAPIKey(pair)
			if err != nil {
				return nil, fmt.Errorf("LEDGEROPS_API_KEYS entry %d: %w", i, err)
			}
			info.ID = fmt.Sprintf("%s-key-%d", info.Org, i)
			if err := keys.Add(key, info); err != nil {
				return nil, fmt.Errorf("LEDGEROPS_API_KEYS entry %d: %w", i, err)
			}
		}
		auths = append(auths, keys)
	}
	return auth.NewCompositeAuthenticator(auths...), nil
}
