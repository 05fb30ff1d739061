package resilience

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiterConfig configures the rate limiter.
type RateLimiterConfig struct {
	// Name identifies the limiter in stats and logs.
	Name string

	// Rate is the sustained number of calls admitted per second.
	// Default: 100
	Rate float64

	// Burst is how many calls may be admitted back to back before Rate
	// applies.
	// Default: 10
	Burst int

	// WaitOnLimit makes a call wait for capacity, up to MaxWait, instead
	// of failing at once.
	WaitOnLimit bool

	// MaxWait bounds the wait when WaitOnLimit is set. A call that would
	// wait longer fails immediately without consuming a token.
	// Default: 1s
	MaxWait time.Duration

	// Now returns the current time.
	// Default: time.Now
	Now func() time.Time
}

// RateLimiter admits calls to a dependency at a bounded rate using a token
// bucket. Rejected calls never reach the dependency.
//
// Contract:
//   - Concurrency: safe for concurrent use.
//   - Errors: rejections return ErrRateLimitExceeded; a canceled wait
//     returns the context error.
type RateLimiter struct {
	config  RateLimiterConfig
	limiter atomic.Pointer[rate.Limiter]

	admitted atomic.Int64
	rejected atomic.Int64
}

// NewRateLimiter creates a rate limiter with a full bucket.
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	if config.Rate <= 0 {
		config.Rate = 100
	}
	if config.Burst <= 0 {
		config.Burst = 10
	}
	if config.MaxWait <= 0 {
		config.MaxWait = time.Second
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	rl := &RateLimiter{config: config}
	rl.limiter.Store(rate.NewLimiter(rate.Limit(config.Rate), config.Burst))
	return rl
}

// Name returns the limiter name.
func (rl *RateLimiter) Name() string {
	return rl.config.Name
}

// Allow takes a token if one is available now.
func (rl *RateLimiter) Allow() bool {
	return rl.limiter.Load().AllowN(rl.config.Now(), 1)
}

// Wait blocks until a token is available. It fails with
// ErrRateLimitExceeded, without waiting, when the token would not be
// available within MaxWait.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	now := rl.config.Now()
	r := rl.limiter.Load().ReserveN(now, 1)
	if !r.OK() {
		return ErrRateLimitExceeded
	}

	delay := r.DelayFrom(now)
	if delay == 0 {
		return nil
	}
	if delay > rl.config.MaxWait {
		r.CancelAt(now)
		return ErrRateLimitExceeded
	}

	t := time.NewTimer(delay)
	defer t.Stop()

	select {
	case <-ctx.Done():
		r.CancelAt(rl.config.Now())
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Execute runs op once the limiter admits it.
func (rl *RateLimiter) Execute(ctx context.Context, op func(context.Context) error) error {
	var err error
	if rl.config.WaitOnLimit {
		err = rl.Wait(ctx)
	} else if !rl.Allow() {
		err = ErrRateLimitExceeded
	}
	if err != nil {
		if errors.Is(err, ErrRateLimitExceeded) {
			rl.rejected.Add(1)
		}
		return err
	}

	rl.admitted.Add(1)
	return op(ctx)
}

// Tokens returns the number of tokens available now.
func (rl *RateLimiter) Tokens() float64 {
	return rl.limiter.Load().TokensAt(rl.config.Now())
}

// Reset refills the bucket and clears the counters.
func (rl *RateLimiter) Reset() {
	rl.limiter.Store(rate.NewLimiter(rate.Limit(rl.config.Rate), rl.config.Burst))
	rl.admitted.Store(0)
	rl.rejected.Store(0)
}

// RateLimiterMetrics is a snapshot of a rate limiter.
type RateLimiterMetrics struct {
	Name     string  `json:"name"`
	Rate     float64 `json:"rate"`
	Burst    int     `json:"burst"`
	Tokens   float64 `json:"tokens"`
	Admitted int64   `json:"admitted"`
	Rejected int64   `json:"rejected"`
}

// Metrics returns a snapshot of the limiter.
func (rl *RateLimiter) Metrics() RateLimiterMetrics {
	return RateLimiterMetrics{
		Name:     rl.config.Name,
		Rate:     rl.config.Rate,
		Burst:    rl.config.Burst,
		Tokens:   rl.Tokens(),
		Admitted: rl.admitted.Load(),
		Rejected: rl.rejected.Load(),
	}
}
