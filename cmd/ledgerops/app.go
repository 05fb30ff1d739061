package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jonwraymond/ledgerops/auth"
	"github.com/jonwraymond/ledgerops/cache"
	"github.com/jonwraymond/ledgerops/config"
	"github.com/jonwraymond/ledgerops/health"
	"github.com/jonwraymond/ledgerops/ledger"
	"github.com/jonwraymond/ledgerops/ledger/sqlite"
	"github.com/jonwraymond/ledgerops/observe"
	"github.com/jonwraymond/ledgerops/resilience"
	"github.com/jonwraymond/ledgerops/workflow"
)

// ParseConfig loads the environment, applies flag overrides, resolves
// secret references and validates the result.
func ParseConfig(fs *flag.FlagSet, args []string) (config.Config, error) {
	var cfg config.Config
	if err := config.ParseEnv(&cfg); err != nil {
		return config.Config{}, err
	}
	fs.StringVar(&cfg.HTTPAddr, "addr", cfg.HTTPAddr, "HTTP listen address")
	fs.StringVar(&cfg.LedgerDSN, "dsn", cfg.LedgerDSN, "SQLite ledger path or :memory:")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn or error")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "log format: json or console")
	fs.StringVar(&cfg.Dependency, "dependency", cfg.Dependency, "ledger dependency name")
	if args == nil {
		args = []string{}
	}
	if err := fs.Parse(args); err != nil {
		return config.Config{}, err
	}
	if err := cfg.ResolveSecrets(context.Background(), config.DefaultResolver()); err != nil {
		return config.Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// app is the wired process.
type app struct {
	cfg      config.Config
	observer observe.Observer
	logger   observe.Logger
	registry *resilience.Registry
	store    *sqlite.Ledger
	client   *ledger.Client
	health   *health.Aggregator
	reads    *cache.MemoryCache

	authority workflow.Authority
	authn     *auth.CompositeAuthenticator
	tokens    *auth.JWTAuthenticator // nil without a JWT secret
}

func newApp(ctx context.Context, cfg config.Config) (*app, error) {
	obs, err := observe.NewObserver(ctx, cfg.ObserveConfig())
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}
	a := &app{
		cfg:       cfg,
		observer:  obs,
		logger:    obs.Logger(),
		authority: workflow.DefaultAuthority(),
	}

	a.authn, err = cfg.Authenticator()
	if err != nil {
		a.close()
		return nil, fmt.Errorf("init authentication: %w", err)
	}
	if jwtCfg, ok := cfg.JWTConfig(); ok {
		if a.tokens, err = auth.NewJWTAuthenticator(jwtCfg); err != nil {
			a.close()
			return nil, fmt.Errorf("init authentication: %w", err)
		}
	}

	metrics, err := observe.NewMetrics(obs.Meter())
	if err != nil {
		a.close()
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	registryOpts := []resilience.RegistryOption{
		resilience.WithRegistryLogger(a.logger),
		resilience.WithRegistryMetrics(metrics),
		resilience.WithBreakerDefaults(cfg.CircuitBreakerConfig()),
	}
	bulkhead, bulkheadEnabled := cfg.BulkheadConfig()
	if bulkheadEnabled {
		registryOpts = append(registryOpts, resilience.WithBulkheadDefaults(bulkhead))
	}
	limiter, limiterEnabled := cfg.RateLimiterConfig()
	if limiterEnabled {
		registryOpts = append(registryOpts, resilience.WithRateLimiterDefaults(limiter))
	}
	a.registry = resilience.NewRegistry(registryOpts...)

	a.store, err = sqlite.Open(cfg.LedgerDSN)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("open ledger: %w", err)
	}

	facadeOpts := []resilience.FacadeOption{
		resilience.WithQueryRetry(cfg.QueryRetryConfig()),
		resilience.WithTransactionRetry(cfg.TransactionRetryConfig()),
		resilience.WithTimeout(cfg.AttemptTimeout),
		resilience.WithMiddleware(observe.NewMiddleware(observe.NewTracer(obs.Tracer()), metrics, a.logger)),
	}
	var facade *resilience.Facade
	if bulkheadEnabled {
		facade = a.registry.Facade(cfg.Dependency, facadeOpts...)
	} else {
		base := []resilience.FacadeOption{
			resilience.WithCircuitBreaker(a.registry.CircuitBreaker(cfg.Dependency)),
			resilience.WithLogger(a.logger),
		}
		if limiterEnabled {
			base = append(base, resilience.WithRateLimiter(a.registry.RateLimiter(cfg.Dependency)))
		}
		facade = resilience.NewFacade(cfg.Dependency, append(base, facadeOpts...)...)
	}

	clientOpts := []ledger.ClientOption{
		ledger.WithAuthority(a.authority),
		ledger.WithClientLogger(a.logger),
	}
	if cfg.CacheEnabled() {
		a.reads = cache.NewMemoryCache(cfg.MemoryCacheConfig())
		rt, err := cache.NewReadThrough(a.reads,
			cache.WithPolicy(cfg.CachePolicy()),
			cache.WithKeyer(cache.NewDefaultKeyer(cfg.CacheNamespace)),
			cache.WithLogger(a.logger),
		)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("init read cache: %w", err)
		}
		clientOpts = append(clientOpts, ledger.WithReadCache(rt))
	}
	a.client, err = ledger.NewClient(a.store, facade, clientOpts...)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("init ledger client: %w", err)
	}

	a.health = health.NewAggregator(cfg.AggregatorConfig(a.logger))
	a.health.Register("resilience", health.NewResilienceChecker(a.registry))
	a.health.Register(cfg.Dependency, health.NewPingChecker(cfg.Dependency, a.store,
		health.WithSlowThreshold(cfg.HealthSlowPing)))
	return a, nil
}

func (a *app) handler() http.Handler {
	mux := http.NewServeMux()
	health.RegisterHandlers(mux, a.health)
	mux.HandleFunc("/cache", a.cacheStats)
	if a.authn.Len() > 0 {
		protect := auth.Middleware(a.authn, a.logger)
		health.RegisterResilienceHandlers(mux, a.registry, protect)
		a.registerRecordHandlers(mux, protect)
	} else {
		health.RegisterResilienceHandlers(mux, a.registry, nil)
	}
	if a.cfg.MetricsExporter == "prometheus" {
		mux.Handle("/metrics", promhttp.Handler())
	}
	return mux
}

func (a *app) cacheStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if a.reads == nil {
		http.Error(w, "read cache disabled", http.StatusNotFound)
		return
	}
	a.reads.Purge()
	w.Header().Set("Content-Type", "application/json")
	_ = writeJSON(w, a.reads.Stats())
}

// close releases the ledger and flushes telemetry.
func (a *app) close() error {
	var errs []error
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close ledger: %w", err))
		}
	}
	timeout := a.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := a.observer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown telemetry: %w", err))
	}
	return errors.Join(errs...)
}

// Run serves HTTP on cfg.HTTPAddr until ctx ends.
func Run(ctx context.Context, cfg config.Config) error {
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.close(); err != nil {
			a.logger.Error(context.Background(), "shutdown failed", observe.Field{Key: "error", Value: err.Error()})
		}
	}()

	ln, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.HTTPAddr, err)
	}
	return a.serve(ctx, ln)
}

func (a *app) serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           a.handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	a.logger.Info(ctx, "ledgerops listening",
		observe.Field{Key: "addr", Value: ln.Addr().String()},
		observe.Field{Key: "ledger", Value: a.cfg.Dependency},
	)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http: %w", err)
	}
	a.logger.Info(shutdownCtx, "ledgerops stopped")
	return nil
}
