package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonwraymond/ledgerops/fault"
	"github.com/jonwraymond/ledgerops/observe"
)

// Call kinds reported to observers.
const (
	KindQuery       = "query"
	KindTransaction = "transaction"
)

// Facade runs operations against one dependency through the composed
// resilience patterns.
//
// The breaker wraps the whole retry sequence, so one call counts once
// against it. Each attempt then passes the rate limiter, the bulkhead and
// the timeout, in that order. No bulkhead slot is held across a retry
// delay.
type Facade struct {
	dependency  string
	breaker     *CircuitBreaker
	query       *Retry
	transaction *Retry
	rateLimiter *RateLimiter
	bulkhead    *Bulkhead
	timeout     *Timeout
	logger      observe.Logger
	middleware  *observe.Middleware

	queryConfig       RetryConfig
	transactionConfig RetryConfig
}

// FacadeOption configures a Facade.
type FacadeOption func(*Facade)

// NewFacade creates a facade for dependency. Without options it uses a
// private default breaker, QueryRetryConfig for reads and
// TransactionRetryConfig for writes.
func NewFacade(dependency string, opts ...FacadeOption) *Facade {
	f := &Facade{
		dependency:        dependency,
		logger:            observe.NopLogger(),
		queryConfig:       QueryRetryConfig(),
		transactionConfig: TransactionRetryConfig(),
	}
	for _, opt := range opts {
		opt(f)
	}

	if f.breaker == nil {
		f.breaker = NewCircuitBreaker(CircuitBreakerConfig{Name: dependency})
	}
	f.query = NewRetry(f.withRetryLogging(KindQuery, f.queryConfig))
	f.transaction = NewRetry(f.withRetryLogging(KindTransaction, f.transactionConfig))
	return f
}

// WithCircuitBreaker sets the breaker guarding the dependency.
func WithCircuitBreaker(cb *CircuitBreaker) FacadeOption {
	return func(f *Facade) {
		f.breaker = cb
	}
}

// WithQueryRetry sets the retry policy of ExecuteQuery.
func WithQueryRetry(config RetryConfig) FacadeOption {
	return func(f *Facade) {
		f.queryConfig = config
	}
}

// WithTransactionRetry sets the retry policy of ExecuteTransaction.
func WithTransactionRetry(config RetryConfig) FacadeOption {
	return func(f *Facade) {
		f.transactionConfig = config
	}
}

// WithRateLimiter adds rate limiting to every attempt.
func WithRateLimiter(rl *RateLimiter) FacadeOption {
	return func(f *Facade) {
		f.rateLimiter = rl
	}
}

// WithBulkhead adds bulkhead isolation to every attempt.
func WithBulkhead(b *Bulkhead) FacadeOption {
	return func(f *Facade) {
		f.bulkhead = b
	}
}

// WithTimeout bounds every attempt.
func WithTimeout(timeout time.Duration) FacadeOption {
	return func(f *Facade) {
		if timeout > 0 {
			f.timeout = NewTimeout(TimeoutConfig{Timeout: timeout})
		}
	}
}

// WithTimeoutConfig bounds every attempt with a custom timeout.
func WithTimeoutConfig(t *Timeout) FacadeOption {
	return func(f *Facade) {
		f.timeout = t
	}
}

// WithLogger sets the logger for retries and final failures.
func WithLogger(l observe.Logger) FacadeOption {
	return func(f *Facade) {
		if l != nil {
			f.logger = l
		}
	}
}

// WithMiddleware traces and measures every call.
func WithMiddleware(m *observe.Middleware) FacadeOption {
	return func(f *Facade) {
		f.middleware = m
	}
}

// Dependency returns the dependency name.
func (f *Facade) Dependency() string {
	return f.dependency
}

// CircuitBreaker returns the facade's breaker.
func (f *Facade) CircuitBreaker() *CircuitBreaker {
	return f.breaker
}

// Bulkhead returns the facade's bulkhead, or nil.
func (f *Facade) Bulkhead() *Bulkhead {
	return f.bulkhead
}

// RateLimiter returns the facade's rate limiter, or nil.
func (f *Facade) RateLimiter() *RateLimiter {
	return f.rateLimiter
}

// ExecuteQuery runs a read under the query retry policy. label only
// feeds logs, spans and metrics.
func (f *Facade) ExecuteQuery(ctx context.Context, label string, op func(context.Context) error) error {
	return f.execute(ctx, KindQuery, label, f.query, op)
}

// ExecuteTransaction runs a write under the transaction retry policy.
// A write whose acknowledgement was lost may be submitted again; the
// dependency must reject duplicates.
func (f *Facade) ExecuteTransaction(ctx context.Context, label string, op func(context.Context) error) error {
	return f.execute(ctx, KindTransaction, label, f.transaction, op)
}

// Query runs op through f.ExecuteQuery and returns its value.
func Query[T any](ctx context.Context, f *Facade, label string, op func(context.Context) (T, error)) (T, error) {
	return capture(ctx, label, op, f.ExecuteQuery)
}

// Transaction runs op through f.ExecuteTransaction and returns its value.
func Transaction[T any](ctx context.Context, f *Facade, label string, op func(context.Context) (T, error)) (T, error) {
	return capture(ctx, label, op, f.ExecuteTransaction)
}

func capture[T any](
	ctx context.Context,
	label string,
	op func(context.Context) (T, error),
	run func(context.Context, string, func(context.Context) error) error,
) (T, error) {
	// A timed-out attempt may still finish in the background.
	var (
		mu   sync.Mutex
		out  T
		done bool
	)

	err := run(ctx, label, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		mu.Lock()
		if !done {
			out = v
		}
		mu.Unlock()
		return nil
	})

	mu.Lock()
	done = true
	result := out
	mu.Unlock()

	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}

func (f *Facade) execute(ctx context.Context, kind, label string, retry *Retry, op func(context.Context) error) error {
	meta := observe.CallMeta{Dependency: f.dependency, Kind: kind, Label: label}

	call := func(ctx context.Context, meta observe.CallMeta) (int, error) {
		attempts := 0
		err := f.breaker.Execute(ctx, func(ctx context.Context) error {
			return retry.ExecuteLabeled(ctx, label, func(ctx context.Context) error {
				attempts++
				return f.attempt(ctx, op)
			})
		})
		return attempts, f.finish(ctx, meta, retry, attempts, err)
	}

	if f.middleware != nil {
		call = f.middleware.Wrap(call)
	}

	_, err := call(ctx, meta)
	return err
}

// attempt runs one try of op: rate limiter, bulkhead, timeout.
func (f *Facade) attempt(ctx context.Context, op func(context.Context) error) error {
	run := op

	if f.timeout != nil {
		inner := run
		run = func(ctx context.Context) error {
			return f.timeout.Execute(ctx, inner)
		}
	}

	if f.bulkhead != nil {
		inner := run
		run = func(ctx context.Context) error {
			return f.bulkhead.Execute(ctx, inner)
		}
	}

	if f.rateLimiter != nil {
		inner := run
		run = func(ctx context.Context) error {
			return f.rateLimiter.Execute(ctx, inner)
		}
	}

	return run(ctx)
}

// finish classifies the final outcome of a call.
func (f *Facade) finish(ctx context.Context, meta observe.CallMeta, retry *Retry, attempts int, err error) error {
	if err == nil {
		return nil
	}

	log := f.logger.WithCall(meta)

	var openErr *BreakerOpenError
	if errors.As(err, &openErr) {
		log.Warn(ctx, "circuit breaker open, rejecting call",
			observe.Field{Key: "breaker", Value: openErr.Name},
			observe.Field{Key: "next_attempt", Value: openErr.RetryAt},
		)
		return err
	}

	if ctx.Err() != nil {
		return err
	}

	depErr := &DependencyError{
		Dependency: f.dependency,
		Label:      meta.Label,
		Attempts:   attempts,
		Err:        err,
	}

	fields := []observe.Field{
		{Key: "attempts", Value: attempts},
		{Key: "error", Value: err.Error()},
	}

	if retry.config.RetryIf(err) {
		depErr.Kind = fault.KindTransient
		log.Error(ctx, "max retries exceeded", fields...)
		return depErr
	}

	depErr.Kind = fault.KindOf(err)
	if depErr.Kind == fault.KindUnknown || depErr.Kind == fault.KindTransient {
		depErr.Kind = fault.KindFatal
	}
	log.Warn(ctx, "non-retryable error encountered", fields...)
	return depErr
}

func (f *Facade) withRetryLogging(kind string, config RetryConfig) RetryConfig {
	next := config.OnRetry
	config.OnRetry = func(label string, attempt int, err error, delay time.Duration) {
		f.logger.WithCall(observe.CallMeta{Dependency: f.dependency, Kind: kind, Label: label}).
			Warn(context.Background(), "operation failed, will retry",
				observe.Field{Key: "attempt", Value: attempt},
				observe.Field{Key: "delay_ms", Value: delay.Milliseconds()},
				observe.Field{Key: "error", Value: err.Error()},
			)
		if next != nil {
			next(label, attempt, err, delay)
		}
	}
	return config
}
