package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// CallMeta describes a call to a dependency for telemetry purposes.
type CallMeta struct {
	Dependency string // Dependency name, e.g. "ledger" (required)
	Kind       string // Call kind: "query" or "transaction"
	Label      string // Operation label, e.g. "UpdateStatus" (optional)
	Org        string // Calling organization (optional)
}

// SpanName returns the deterministic span name for this call.
// Format: ledger.<kind>.<dependency> or ledger.call.<dependency>
func (m CallMeta) SpanName() string {
	kind := m.Kind
	if kind == "" {
		kind = "call"
	}
	return "ledger." + kind + "." + m.Dependency
}

// CallID returns the dependency-qualified operation identifier.
func (m CallMeta) CallID() string {
	if m.Label != "" {
		return m.Dependency + "." + m.Label
	}
	return m.Dependency
}

// Validate reports whether the metadata can be recorded.
func (m CallMeta) Validate() error {
	if m.Dependency == "" {
		return ErrMissingDependency
	}
	return nil
}

func (m CallMeta) attributes() []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("ledger.dependency", m.Dependency),
		attribute.String("ledger.call", m.CallID()),
	}
	if m.Kind != "" {
		attrs = append(attrs, attribute.String("ledger.kind", m.Kind))
	}
	if m.Label != "" {
		attrs = append(attrs, attribute.String("ledger.label", m.Label))
	}
	return attrs
}

// Tracer wraps OpenTelemetry tracing with call-specific span management.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: EndSpan must be best-effort and must not panic.
type Tracer interface {
	// StartSpan starts a new span for a dependency call.
	StartSpan(ctx context.Context, meta CallMeta) (context.Context, trace.Span)

	// EndSpan ends the span, recording any error.
	EndSpan(span trace.Span, err error)
}

// tracerImpl is the concrete implementation of Tracer.
type tracerImpl struct {
	tracer trace.Tracer
}

// NewTracer creates a new Tracer wrapping the given OpenTelemetry tracer.
func NewTracer(t trace.Tracer) Tracer {
	return &tracerImpl{tracer: t}
}

// StartSpan starts a new span with call metadata as attributes.
func (t *tracerImpl) StartSpan(ctx context.Context, meta CallMeta) (context.Context, trace.Span) {
	attrs := append(meta.attributes(),
		attribute.Bool("ledger.error", false), // Updated in EndSpan on error
	)
	if meta.Org != "" {
		attrs = append(attrs, attribute.String("ledger.org", meta.Org))
	}

	return t.tracer.Start(ctx, meta.SpanName(),
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}

// EndSpan ends the span and records the error status if present.
func (t *tracerImpl) EndSpan(span trace.Span, err error) {
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.Bool("ledger.error", true))
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// noopTracer is a tracer that does nothing.
type noopTracer struct {
	noop trace.Tracer
}

// newNoopTracer creates a no-op tracer.
func newNoopTracer() Tracer {
	return &noopTracer{
		noop: tracenoop.NewTracerProvider().Tracer("noop"),
	}
}

func (t *noopTracer) StartSpan(ctx context.Context, meta CallMeta) (context.Context, trace.Span) {
	return t.noop.Start(ctx, meta.SpanName())
}

func (t *noopTracer) EndSpan(span trace.Span, err error) {
	span.End()
}
