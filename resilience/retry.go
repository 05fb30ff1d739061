package resilience

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"
)

// BackoffStrategy defines how delays increase between retries.
type BackoffStrategy int

const (
	// BackoffExponential multiplies the delay each attempt.
	BackoffExponential BackoffStrategy = iota
	// BackoffLinear increases delay linearly.
	BackoffLinear
	// BackoffConstant uses the same delay for all retries.
	BackoffConstant
)

// DefaultJitterRatio spreads each delay uniformly over ±25%.
const DefaultJitterRatio = 0.25

// RetryConfig configures the retry behavior.
type RetryConfig struct {
	// MaxRetries is the number of retries after the first attempt.
	// Negative disables retries.
	// Default: 3
	MaxRetries int

	// InitialDelay is the delay before the first retry.
	// Default: 1s
	InitialDelay time.Duration

	// MaxDelay caps the delay between retries before jitter.
	// Default: 10s
	MaxDelay time.Duration

	// Multiplier is the backoff multiplier for exponential backoff.
	// Default: 2.0
	Multiplier float64

	// Strategy is the backoff strategy.
	// Default: BackoffExponential
	Strategy BackoffStrategy

	// JitterRatio spreads each delay uniformly over ±JitterRatio of its
	// value. Negative disables jitter.
	// Default: 0.25
	JitterRatio float64

	// RetryIf determines if an error should trigger a retry.
	// Default: IsTransient.
	RetryIf func(err error) bool

	// OnRetry is called before each retry wait. attempt is the attempt
	// that just failed, starting at 1.
	OnRetry func(label string, attempt int, err error, delay time.Duration)
}

// TransactionRetryConfig returns the retry policy for ledger writes.
func TransactionRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:   3,
		InitialDelay: time.Second,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
		JitterRatio:  DefaultJitterRatio,
	}
}

// QueryRetryConfig returns the retry policy for ledger reads.
func QueryRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:   5,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
		JitterRatio:  DefaultJitterRatio,
	}
}

// Retry implements retry with backoff.
type Retry struct {
	config RetryConfig
}

// NewRetry creates a new retry handler.
func NewRetry(config RetryConfig) *Retry {
	// Apply defaults
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	} else if config.MaxRetries == 0 {
		config.MaxRetries = 3
	}
	if config.InitialDelay <= 0 {
		config.InitialDelay = time.Second
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = 10 * time.Second
	}
	if config.Multiplier <= 0 {
		config.Multiplier = 2.0
	}
	if config.JitterRatio == 0 {
		config.JitterRatio = DefaultJitterRatio
	} else if config.JitterRatio < 0 {
		config.JitterRatio = 0
	}
	if config.JitterRatio > 1 {
		config.JitterRatio = 1
	}
	if config.RetryIf == nil {
		config.RetryIf = IsTransient
	}

	return &Retry{config: config}
}

// Execute runs the operation with retry logic.
func (r *Retry) Execute(ctx context.Context, op func(context.Context) error) error {
	return r.ExecuteLabeled(ctx, "", op)
}

// ExecuteLabeled runs the operation with retry logic. label is passed to
// OnRetry.
//
// The last error is returned unchanged when it is not retryable or when
// MaxRetries+1 attempts have failed. If ctx ends while waiting, the
// returned error wraps ctx.Err().
func (r *Retry) ExecuteLabeled(ctx context.Context, label string, op func(context.Context) error) error {
	attempts := r.config.MaxRetries + 1

	for attempt := 1; ; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}

		// Check if we should retry
		if !r.config.RetryIf(err) || attempt >= attempts {
			return err
		}

		delay := r.Delay(attempt)

		if r.config.OnRetry != nil {
			r.config.OnRetry(label, attempt, err, delay)
		}

		if serr := sleep(ctx, delay); serr != nil {
			return fmt.Errorf("resilience: retry abandoned after %d attempt(s), last error %q: %w", attempt, err.Error(), serr)
		}
	}
}

// Delay returns the wait after the given failed attempt (1-based),
// jitter included.
func (r *Retry) Delay(attempt int) time.Duration {
	delay := r.baseDelay(attempt)

	if r.config.JitterRatio > 0 && delay > 0 {
		// #nosec G404 -- jitter is non-cryptographic timing variance.
		factor := 1 + r.config.JitterRatio*(2*rand.Float64()-1)
		delay = time.Duration(float64(delay) * factor)
	}
	if delay < 0 {
		delay = 0
	}
	return delay
}

// baseDelay returns the capped delay before jitter.
func (r *Retry) baseDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	var delay float64

	switch r.config.Strategy {
	case BackoffConstant:
		delay = float64(r.config.InitialDelay)

	case BackoffLinear:
		delay = float64(r.config.InitialDelay) * float64(attempt)

	default:
		delay = float64(r.config.InitialDelay) * math.Pow(r.config.Multiplier, float64(attempt-1))
	}

	// Cap at max delay
	if delay > float64(r.config.MaxDelay) {
		return r.config.MaxDelay
	}
	return time.Duration(delay)
}

// Config returns the retry configuration.
func (r *Retry) Config() RetryConfig {
	return r.config
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
