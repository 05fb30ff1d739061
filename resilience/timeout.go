package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const defaultAttemptTimeout = 30 * time.Second

// TimeoutConfig bounds a single attempt.
type TimeoutConfig struct {
	// Timeout is the attempt deadline.
	// Default: 30s
	Timeout time.Duration
}

// Timeout gives each attempt its own deadline.
//
// Execute returns as soon as the deadline passes, even while op is still
// running. The context handed to op is cancelled with ErrTimeout as its
// cause; whatever op returns afterwards is dropped.
type Timeout struct {
	limit time.Duration
}

// NewTimeout creates an attempt deadline.
func NewTimeout(config TimeoutConfig) *Timeout {
	if config.Timeout <= 0 {
		config.Timeout = defaultAttemptTimeout
	}
	return &Timeout{limit: config.Timeout}
}

// Config returns the effective configuration.
func (t *Timeout) Config() TimeoutConfig {
	return TimeoutConfig{Timeout: t.limit}
}

// Execute runs op under the deadline. It returns an error matching
// ErrTimeout when the deadline fires first, and the caller's context
// error when ctx ends first.
func (t *Timeout) Execute(ctx context.Context, op func(context.Context) error) error {
	attemptCtx, cancel := context.WithTimeoutCause(ctx, t.limit, ErrTimeout)
	defer cancel()

	result := make(chan error, 1)
	go func() { result <- op(attemptCtx) }()

	var err error
	select {
	case err = <-result:
		if err == nil {
			return nil
		}
	case <-attemptCtx.Done():
		err = attemptCtx.Err()
	}

	if ctx.Err() == nil && errors.Is(context.Cause(attemptCtx), ErrTimeout) {
		return fmt.Errorf("%w after %s", ErrTimeout, t.limit)
	}
	return err
}

// ExecuteWithTimeout runs op once under a deadline of d.
func ExecuteWithTimeout(ctx context.Context, d time.Duration, op func(context.Context) error) error {
	return NewTimeout(TimeoutConfig{Timeout: d}).Execute(ctx, op)
}
