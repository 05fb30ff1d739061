package resilience

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/jonwraymond/ledgerops/fault"
	"github.com/jonwraymond/ledgerops/observe"
)

func newFastFacade(opts ...FacadeOption) *Facade {
	base := []FacadeOption{
		WithQueryRetry(fastRetry(2)),
		WithTransactionRetry(fastRetry(3)),
	}
	return NewFacade("ledger", append(base, opts...)...)
}

func TestFacade_Success(t *testing.T) {
	f := newFastFacade()

	calls := 0
	err := f.ExecuteTransaction(context.Background(), "CreateRecord", func(ctx context.Context) error {
		calls++
		return nil
	})

	if err != nil {
		t.Fatalf("ExecuteTransaction() = %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if f.Dependency() != "ledger" {
		t.Errorf("Dependency() = %q", f.Dependency())
	}
}

func TestFacade_DefaultPolicies(t *testing.T) {
	f := NewFacade("ledger")

	if got := f.query.Config().MaxRetries; got != 5 {
		t.Errorf("query MaxRetries = %d, want 5", got)
	}
	if got := f.transaction.Config().MaxRetries; got != 3 {
		t.Errorf("transaction MaxRetries = %d, want 3", got)
	}
	if f.CircuitBreaker() == nil || f.CircuitBreaker().Name() != "ledger" {
		t.Error("facade should own a breaker named after the dependency")
	}
	if f.Bulkhead() != nil {
		t.Error("bulkhead should be opt-in")
	}
}

// TestFacade_RetriesTransient verifies N-1 transient failures then success
// returns nil after N attempts.
func TestFacade_RetriesTransient(t *testing.T) {
	f := newFastFacade()

	calls := 0
	err := f.ExecuteTransaction(context.Background(), "UpdateStatus", func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("MVCC_READ_CONFLICT")
		}
		return nil
	})

	if err != nil {
		t.Fatalf("ExecuteTransaction() = %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	if m := f.CircuitBreaker().Metrics(); m.Failures != 0 {
		t.Errorf("breaker failures = %d, want 0", m.Failures)
	}
}

func TestFacade_TransientExhausted(t *testing.T) {
	f := newFastFacade()

	calls := 0
	err := f.ExecuteTransaction(context.Background(), "UpdateStatus", func(ctx context.Context) error {
		calls++
		return errTransient
	})

	var depErr *DependencyError
	if !errors.As(err, &depErr) {
		t.Fatalf("err = %T %v, want *DependencyError", err, err)
	}
	if depErr.Kind != fault.KindTransient {
		t.Errorf("Kind = %v, want transient", depErr.Kind)
	}
	if depErr.Attempts != 4 || calls != 4 {
		t.Errorf("Attempts = %d, calls = %d, want 4", depErr.Attempts, calls)
	}
	if depErr.Label != "UpdateStatus" || depErr.Dependency != "ledger" {
		t.Errorf("DependencyError = %+v", depErr)
	}
	if !errors.Is(err, ErrMaxRetriesExceeded) {
		t.Error("exhaustion should match ErrMaxRetriesExceeded")
	}
	if !errors.Is(err, errTransient) {
		t.Error("DependencyError should wrap the last error")
	}

	// One call counts once against the breaker.
	if m := f.CircuitBreaker().Metrics(); m.Failures != 1 {
		t.Errorf("breaker failures = %d, want 1", m.Failures)
	}
}

func TestFacade_QueryUsesQueryPolicy(t *testing.T) {
	f := newFastFacade()

	calls := 0
	err := f.ExecuteQuery(context.Background(), "GetRecord", func(ctx context.Context) error {
		calls++
		return errTransient
	})

	if calls != 3 {
		t.Errorf("calls = %d, want query MaxRetries+1 = 3", calls)
	}
	if fault.KindOf(err) != fault.KindTransient {
		t.Errorf("KindOf = %v, want transient", fault.KindOf(err))
	}
}

func TestFacade_NonRetryableKinds(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want fault.Kind
	}{
		{"untagged", errors.New("record EXP-1 already exists"), fault.KindFatal},
		{"fatal", fault.Fatal(errors.New("chaincode panic")), fault.KindFatal},
		{"validation", fault.New(fault.KindValidation, "bad status"), fault.KindValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFastFacade()

			calls := 0
			err := f.ExecuteTransaction(context.Background(), "CreateRecord", func(ctx context.Context) error {
				calls++
				return tt.err
			})

			var depErr *DependencyError
			if !errors.As(err, &depErr) {
				t.Fatalf("err = %v, want *DependencyError", err)
			}
			if depErr.Kind != tt.want {
				t.Errorf("Kind = %v, want %v", depErr.Kind, tt.want)
			}
			if calls != 1 || depErr.Attempts != 1 {
				t.Errorf("calls = %d, Attempts = %d, want 1", calls, depErr.Attempts)
			}
			if errors.Is(err, ErrMaxRetriesExceeded) {
				t.Error("non-retryable failure should not match ErrMaxRetriesExceeded")
			}
		})
	}
}

func TestFacade_BreakerOpen(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{Name: "ledger", FailureThreshold: 1, Cooldown: time.Hour})
	f := newFastFacade(WithCircuitBreaker(cb))
	ctx := context.Background()

	_ = f.ExecuteTransaction(ctx, "UpdateStatus", func(ctx context.Context) error {
		return fault.Fatal(errPeer)
	})

	err := f.ExecuteQuery(ctx, "GetRecord", func(ctx context.Context) error {
		t.Error("op must not run while the breaker is open")
		return nil
	})

	var openErr *BreakerOpenError
	if !errors.As(err, &openErr) {
		t.Fatalf("err = %v, want *BreakerOpenError", err)
	}
	if fault.KindOf(err) != fault.KindBreakerOpen {
		t.Errorf("KindOf = %v, want breaker_open", fault.KindOf(err))
	}
}

func TestFacade_CancelDuringRetry(t *testing.T) {
	f := NewFacade("ledger", WithTransactionRetry(RetryConfig{
		MaxRetries:   3,
		InitialDelay: time.Hour,
	}))

	ctx, cancel := context.WithCancel(context.Background())
	err := f.ExecuteTransaction(ctx, "UpdateStatus", func(ctx context.Context) error {
		cancel()
		return errTransient
	})

	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	var depErr *DependencyError
	if errors.As(err, &depErr) {
		t.Error("abandoned call should not be reported as a dependency failure")
	}
	if m := f.CircuitBreaker().Metrics(); m.Failures != 0 {
		t.Errorf("breaker failures = %d, caller cancellation must not count", m.Failures)
	}
}

func TestFacade_AttemptTimeout(t *testing.T) {
	f := newFastFacade(WithTimeout(10 * time.Millisecond))

	release := make(chan struct{})
	defer close(release)

	var calls atomic.Int32
	err := f.ExecuteQuery(context.Background(), "GetRecord", func(ctx context.Context) error {
		calls.Add(1)
		<-release
		return nil
	})

	if !errors.Is(err, ErrTimeout) {
		t.Errorf("err = %v, want ErrTimeout", err)
	}
	if fault.KindOf(err) != fault.KindTransient {
		t.Errorf("KindOf = %v, want transient after exhausting retries", fault.KindOf(err))
	}
	if n := calls.Load(); n != 3 {
		t.Errorf("calls = %d, want every attempt timed out", n)
	}
}

// TestFacade_AttemptLayering verifies each attempt runs inside the
// bulkhead and under the attempt deadline.
func TestFacade_AttemptLayering(t *testing.T) {
	b := NewBulkhead(BulkheadConfig{Name: "ledger", MaxConcurrent: 1})
	rl := NewRateLimiter(RateLimiterConfig{Rate: 1000, Burst: 10})
	f := newFastFacade(WithBulkhead(b), WithRateLimiter(rl), WithTimeout(time.Second))

	err := f.ExecuteTransaction(context.Background(), "CreateRecord", func(ctx context.Context) error {
		if b.Metrics().Active != 1 {
			t.Error("attempt should hold a bulkhead slot")
		}
		if _, ok := ctx.Deadline(); !ok {
			t.Error("attempt should run under a deadline")
		}
		return nil
	})

	if err != nil {
		t.Fatalf("ExecuteTransaction() = %v", err)
	}
	if b.Metrics().Active != 0 {
		t.Error("slot should be released after the call")
	}
	if rl.Tokens() > 9.5 {
		t.Error("attempt should consume a rate limiter token")
	}
}

func TestFacade_RateLimitedAttemptsRetry(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: 0.001, Burst: 1})
	f := newFastFacade(WithRateLimiter(rl))
	ctx := context.Background()

	_ = f.ExecuteQuery(ctx, "GetRecord", func(ctx context.Context) error { return nil })

	calls := 0
	err := f.ExecuteQuery(ctx, "GetRecord", func(ctx context.Context) error {
		calls++
		return nil
	})

	if calls != 0 {
		t.Errorf("calls = %d, rate limited attempts must not reach op", calls)
	}
	if !errors.Is(err, ErrRateLimitExceeded) {
		t.Errorf("err = %v, want ErrRateLimitExceeded", err)
	}
	var depErr *DependencyError
	if !errors.As(err, &depErr) || depErr.Attempts != 3 {
		t.Errorf("err = %v, want DependencyError after 3 attempts", err)
	}
	if f.CircuitBreaker().State() != StateClosed {
		t.Error("local rejections must not open the breaker")
	}
}

func TestQuery(t *testing.T) {
	f := newFastFacade()

	calls := 0
	got, err := Query(context.Background(), f, "GetRecord", func(ctx context.Context) (int, error) {
		calls++
		if calls == 1 {
			return 0, errTransient
		}
		return 42, nil
	})

	if err != nil || got != 42 {
		t.Errorf("Query() = %d, %v, want 42, nil", got, err)
	}
}

func TestTransaction_ErrorReturnsZero(t *testing.T) {
	f := newFastFacade()

	got, err := Transaction(context.Background(), f, "CreateRecord", func(ctx context.Context) (string, error) {
		return "partial", fault.Fatal(errPeer)
	})

	if err == nil {
		t.Fatal("Transaction() error = nil")
	}
	if got != "" {
		t.Errorf("Transaction() = %q, want zero value on error", got)
	}
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var entries []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("invalid log line %q: %v", line, err)
		}
		entries = append(entries, entry)
	}
	return entries
}

func TestFacade_Logging(t *testing.T) {
	var buf bytes.Buffer
	logger := observe.NewLoggerWithWriter("debug", &buf)

	var userRetries int
	cfg := fastRetry(2)
	cfg.OnRetry = func(label string, attempt int, err error, delay time.Duration) {
		userRetries++
	}
	f := NewFacade("ledger", WithLogger(logger), WithTransactionRetry(cfg))

	_ = f.ExecuteTransaction(context.Background(), "UpdateStatus", func(ctx context.Context) error {
		return errTransient
	})

	entries := decodeLines(t, &buf)
	if len(entries) != 3 {
		t.Fatalf("log lines = %d, want 2 retries and 1 final failure", len(entries))
	}
	for _, e := range entries[:2] {
		if e["msg"] != "operation failed, will retry" || e["level"] != "warn" {
			t.Errorf("retry entry = %v", e)
		}
		if e["ledger.label"] != "UpdateStatus" || e["ledger.kind"] != KindTransaction {
			t.Errorf("retry entry missing call fields: %v", e)
		}
	}
	if last := entries[2]; last["msg"] != "max retries exceeded" || last["level"] != "error" {
		t.Errorf("final entry = %v", last)
	}
	if userRetries != 2 {
		t.Errorf("user OnRetry calls = %d, want 2", userRetries)
	}
}

func TestFacade_Middleware(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	mw := observe.NewMiddleware(observe.NewTracer(tp.Tracer("test")), observe.NopMetrics(), observe.NopLogger())

	f := newFastFacade(WithMiddleware(mw))

	calls := 0
	err := f.ExecuteTransaction(context.Background(), "UpdateStatus", func(ctx context.Context) error {
		calls++
		if calls == 1 {
			return errTransient
		}
		return nil
	})
	if err != nil {
		t.Fatalf("ExecuteTransaction() = %v", err)
	}

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("spans = %d, want one per call", len(spans))
	}
	if spans[0].Name() != "ledger.transaction.ledger" {
		t.Errorf("span name = %q", spans[0].Name())
	}
}
