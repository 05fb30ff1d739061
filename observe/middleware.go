package observe

import (
	"context"
	"time"

	"github.com/jonwraymond/ledgerops/fault"
)

// ExecuteFunc is an instrumented dependency call. It returns the number of
// attempts it made.
type ExecuteFunc func(ctx context.Context, call CallMeta) (attempts int, err error)

// Middleware traces, measures and logs dependency calls.
//
// Contract:
//   - Concurrency: functions returned by Wrap are safe for concurrent use.
//   - Errors: the wrapped call's error is returned unchanged.
type Middleware struct {
	tracer  Tracer
	metrics Metrics
	logger  Logger
}

// NewMiddleware creates a Middleware. Nil components are replaced by no-ops.
func NewMiddleware(tracer Tracer, metrics Metrics, logger Logger) *Middleware {
	if tracer == nil {
		tracer = newNoopTracer()
	}
	if metrics == nil {
		metrics = NopMetrics()
	}
	if logger == nil {
		logger = NopLogger()
	}
	return &Middleware{tracer: tracer, metrics: metrics, logger: logger}
}

// MiddlewareFromObserver builds a Middleware from obs's tracer, meter and
// logger.
func MiddlewareFromObserver(obs Observer) (*Middleware, error) {
	if obs == nil {
		return nil, ErrNilObserver
	}
	metrics, err := NewMetrics(obs.Meter())
	if err != nil {
		return nil, err
	}
	return NewMiddleware(NewTracer(obs.Tracer()), metrics, obs.Logger()), nil
}

// Wrap runs fn inside a span, then records metrics and one log entry.
// Successful calls log at debug. Failures the caller caused (validation,
// cancellation) log at warn and everything else at error.
func (m *Middleware) Wrap(fn ExecuteFunc) ExecuteFunc {
	return func(ctx context.Context, call CallMeta) (int, error) {
		ctx, span := m.tracer.StartSpan(ctx, call)
		start := time.Now()
		attempts, err := fn(ctx, call)
		elapsed := time.Since(start)

		m.tracer.EndSpan(span, err)
		m.metrics.RecordCall(ctx, call, elapsed, attempts, err)
		m.log(ctx, call, elapsed, attempts, err)
		return attempts, err
	}
}

func (m *Middleware) log(ctx context.Context, call CallMeta, elapsed time.Duration, attempts int, err error) {
	log := m.logger.WithCall(call)
	fields := []Field{
		{Key: "duration_ms", Value: float64(elapsed.Microseconds()) / 1000},
		{Key: "attempts", Value: attempts},
	}
	if err == nil {
		log.Debug(ctx, "ledger call completed", fields...)
		return
	}

	kind := fault.KindOf(err)
	fields = append(fields,
		Field{Key: "error", Value: err.Error()},
		Field{Key: "error_kind", Value: kind.String()},
	)
	switch kind {
	case fault.KindValidation, fault.KindCanceled:
		log.Warn(ctx, "ledger call failed", fields...)
	default:
		log.Error(ctx, "ledger call failed", fields...)
	}
}
