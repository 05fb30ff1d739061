// Package exporters builds the OpenTelemetry span exporters and metric
// readers behind observe.NewObserver.
package exporters

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

var (
	// ErrEndpointNotConfigured is returned for otlp without an endpoint.
	ErrEndpointNotConfigured = errors.New("exporters: OTLP endpoint not configured")

	// ErrUnknownExporter is returned for a name the factory does not build.
	ErrUnknownExporter = errors.New("exporters: unknown exporter")
)

// Options tune an exporter.
type Options struct {
	// Endpoint is the OTLP collector host:port. Empty defers to the
	// OTEL_EXPORTER_OTLP_* variables.
	Endpoint string

	// Insecure disables TLS to the collector.
	Insecure bool

	// Writer receives stdout exporter output.
	// Default: os.Stdout
	Writer io.Writer

	// Interval is the push period for stdout and otlp metrics.
	// Default: the SDK's 60s
	Interval time.Duration
}

func (o Options) out() io.Writer {
	if o.Writer != nil {
		return o.Writer
	}
	return os.Stdout
}

// otlpEndpoint returns the endpoint to dial for signal ("TRACES" or
// "METRICS"), or an error when neither Options nor the environment name
// one. An empty result means the exporter reads the environment itself.
func (o Options) otlpEndpoint(signal string) (string, error) {
	if o.Endpoint != "" {
		return o.Endpoint, nil
	}
	if os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != "" || os.Getenv("OTEL_EXPORTER_OTLP_"+signal+"_ENDPOINT") != "" {
		return "", nil
	}
	return "", fmt.Errorf("%w: set Endpoint, OTEL_EXPORTER_OTLP_ENDPOINT or OTEL_EXPORTER_OTLP_%s_ENDPOINT",
		ErrEndpointNotConfigured, signal)
}

// NewTracingExporter creates a span exporter.
// Supported names: otlp, stdout, none (or empty).
func NewTracingExporter(ctx context.Context, name string, opts Options) (sdktrace.SpanExporter, error) {
	switch name {
	case "", "none":
		return stdouttrace.New(stdouttrace.WithWriter(io.Discard))
	case "stdout":
		return stdouttrace.New(stdouttrace.WithWriter(opts.out()))
	case "otlp":
		endpoint, err := opts.otlpEndpoint("TRACES")
		if err != nil {
			return nil, err
		}
		var dial []otlptracegrpc.Option
		if endpoint != "" {
			dial = append(dial, otlptracegrpc.WithEndpoint(endpoint))
		}
		if opts.Insecure {
			dial = append(dial, otlptracegrpc.WithInsecure())
		}
		return otlptracegrpc.New(ctx, dial...)
	}
	return nil, fmt.Errorf("%w: tracing %q", ErrUnknownExporter, name)
}

// NewMetricsReader creates a metric reader.
// Supported names: otlp, prometheus, stdout, none (or empty).
//
// The prometheus reader registers with the default Prometheus registerer;
// serve it with promhttp.Handler.
func NewMetricsReader(ctx context.Context, name string, opts Options) (sdkmetric.Reader, error) {
	switch name {
	case "", "none":
		return sdkmetric.NewManualReader(), nil
	case "prometheus":
		reader, err := prometheus.New()
		if err != nil {
			return nil, fmt.Errorf("exporters: prometheus: %w", err)
		}
		return reader, nil
	case "stdout":
		exp, err := stdoutmetric.New(stdoutmetric.WithWriter(opts.out()))
		if err != nil {
			return nil, fmt.Errorf("exporters: stdout metrics: %w", err)
		}
		return periodic(exp, opts.Interval), nil
	case "otlp":
		endpoint, err := opts.otlpEndpoint("METRICS")
		if err != nil {
			return nil, err
		}
		var dial []otlpmetricgrpc.Option
		if endpoint != "" {
			dial = append(dial, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		if opts.Insecure {
			dial = append(dial, otlpmetricgrpc.WithInsecure())
		}
		exp, err := otlpmetricgrpc.New(ctx, dial...)
		if err != nil {
			return nil, fmt.Errorf("exporters: otlp metrics: %w", err)
		}
		return periodic(exp, opts.Interval), nil
	}
	return nil, fmt.Errorf("%w: metrics %q", ErrUnknownExporter, name)
}

func periodic(exp sdkmetric.Exporter, interval time.Duration) sdkmetric.Reader {
	if interval > 0 {
		return sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(interval))
	}
	return sdkmetric.NewPeriodicReader(exp)
}
