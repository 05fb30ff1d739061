package observe

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/jonwraymond/ledgerops/fault"
)

// Metrics records ledger calls and breaker transitions.
//
// Implementations must be safe for concurrent use and must not block.
type Metrics interface {
	// RecordCall records one facade call: total duration including
	// retries, attempts made and the final error.
	RecordCall(ctx context.Context, meta CallMeta, duration time.Duration, attempts int, err error)

	// RecordTransition records a circuit breaker state change.
	RecordTransition(ctx context.Context, breaker, from, to string)
}

// Instrument names.
const (
	metricCalls       = "ledger.call.total"
	metricErrors      = "ledger.call.errors"
	metricDuration    = "ledger.call.duration_ms"
	metricAttempts    = "ledger.call.attempts"
	metricTransitions = "resilience.breaker.transitions"
)

type callMetrics struct {
	calls       metric.Int64Counter
	errors      metric.Int64Counter
	duration    metric.Float64Histogram
	attempts    metric.Int64Histogram
	transitions metric.Int64Counter
}

// NewMetrics creates the ledger call instruments on meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	return newMetrics(meter)
}

func newMetrics(meter metric.Meter) (*callMetrics, error) {
	var m callMetrics
	var errs [5]error

	m.calls, errs[0] = meter.Int64Counter(metricCalls,
		metric.WithDescription("Ledger calls made through a facade"),
		metric.WithUnit("{call}"))
	m.errors, errs[1] = meter.Int64Counter(metricErrors,
		metric.WithDescription("Ledger calls that failed, by fault kind"),
		metric.WithUnit("{error}"))
	m.duration, errs[2] = meter.Float64Histogram(metricDuration,
		metric.WithDescription("Ledger call duration in milliseconds, retries included"),
		metric.WithUnit("ms"))
	m.attempts, errs[3] = meter.Int64Histogram(metricAttempts,
		metric.WithDescription("Attempts made per ledger call"),
		metric.WithUnit("{attempt}"))
	m.transitions, errs[4] = meter.Int64Counter(metricTransitions,
		metric.WithDescription("Circuit breaker state changes"),
		metric.WithUnit("{transition}"))

	if err := errors.Join(errs[:]...); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *callMetrics) RecordCall(ctx context.Context, meta CallMeta, duration time.Duration, attempts int, err error) {
	attrs := meta.attributes()
	common := metric.WithAttributes(attrs...)

	m.calls.Add(ctx, 1, common)
	m.duration.Record(ctx, float64(duration.Microseconds())/1000, common)
	m.attempts.Record(ctx, int64(attempts), common)
	if err == nil {
		return
	}
	kind := attribute.String("fault.kind", fault.KindOf(err).String())
	m.errors.Add(ctx, 1, metric.WithAttributes(append(attrs, kind)...))
}

func (m *callMetrics) RecordTransition(ctx context.Context, breaker, from, to string) {
	m.transitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("breaker.name", breaker),
		attribute.String("breaker.from", from),
		attribute.String("breaker.to", to),
	))
}

type nopMetrics struct{}

// NopMetrics returns a Metrics that discards everything.
func NopMetrics() Metrics { return nopMetrics{} }

func (nopMetrics) RecordCall(context.Context, CallMeta, time.Duration, int, error) {}
func (nopMetrics) RecordTransition(context.Context, string, string, string)      {}
