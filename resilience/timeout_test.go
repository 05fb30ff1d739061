package resilience

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jonwraymond/ledgerops/fault"
)

func TestNewTimeout_Default(t *testing.T) {
	for _, d := range []time.Duration{0, -time.Second} {
		if got := NewTimeout(TimeoutConfig{Timeout: d}).Config().Timeout; got != defaultAttemptTimeout {
			t.Errorf("NewTimeout(%v) limit = %v, want %v", d, got, defaultAttemptTimeout)
		}
	}
}

func TestTimeout_Execute(t *testing.T) {
	waitForDeadline := func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}

	tests := []struct {
		name  string
		limit time.Duration
		op    func(context.Context) error
		check func(t *testing.T, err error)
	}{
		{
			name:  "completes",
			limit: time.Second,
			op:    func(context.Context) error { return nil },
			check: func(t *testing.T, err error) {
				if err != nil {
					t.Errorf("err = %v, want nil", err)
				}
			},
		},
		{
			name:  "returns op error unchanged",
			limit: time.Second,
			op:    fail,
			check: func(t *testing.T, err error) {
				if err != errPeer {
					t.Errorf("err = %v, want %v", err, errPeer)
				}
			},
		},
		{
			name:  "deadline",
			limit: 10 * time.Millisecond,
			op:    waitForDeadline,
			check: func(t *testing.T, err error) {
				if !errors.Is(err, ErrTimeout) || !fault.Is(err, fault.KindTimeout) {
					t.Errorf("err = %v, want ErrTimeout", err)
				}
				if !strings.Contains(err.Error(), "10ms") {
					t.Errorf("err = %q, want the limit in the message", err)
				}
			},
		},
		{
			name:  "op sees timeout cause",
			limit: 10 * time.Millisecond,
			op: func(ctx context.Context) error {
				<-ctx.Done()
				return context.Cause(ctx)
			},
			check: func(t *testing.T, err error) {
				if !errors.Is(err, ErrTimeout) {
					t.Errorf("err = %v, want ErrTimeout", err)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, NewTimeout(TimeoutConfig{Timeout: tt.limit}).Execute(context.Background(), tt.op))
		})
	}
}

func TestTimeout_ReturnsWhileOperationRuns(t *testing.T) {
	release := make(chan struct{})
	finished := make(chan struct{})
	defer func() {
		close(release)
		<-finished
	}()

	start := time.Now()
	err := NewTimeout(TimeoutConfig{Timeout: 20 * time.Millisecond}).Execute(context.Background(),
		func(context.Context) error {
			defer close(finished)
			<-release
			return nil
		})

	if !errors.Is(err, ErrTimeout) {
		t.Errorf("err = %v, want ErrTimeout", err)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("Execute took %v, want it to return at the deadline", elapsed)
	}
}

func TestTimeout_CallerCancels(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(10*time.Millisecond, cancel)

	err := NewTimeout(TimeoutConfig{Timeout: time.Second}).Execute(ctx, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	if !errors.Is(err, context.Canceled) || errors.Is(err, ErrTimeout) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestExecuteWithTimeout(t *testing.T) {
	err := ExecuteWithTimeout(context.Background(), 10*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("ExecuteWithTimeout() = %v, want ErrTimeout", err)
	}
}
