package observe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/jonwraymond/ledgerops/observe/exporters"
)

// Accepted names. The empty string selects the default.
var (
	TracingExporters = []string{"", "none", "stdout", "otlp"}
	MetricsExporters = []string{"", "none", "stdout", "otlp", "prometheus"}
	LogLevels        = []string{"", "debug", "info", "warn", "error"}
	LogFormats       = []string{"", "json", "console"}
)

// Config describes the telemetry of one ledgerops process.
type Config struct {
	ServiceName string
	Version     string

	// Environment is recorded as deployment.environment when set.
	Environment string

	Tracing TracingConfig
	Metrics MetricsConfig
	Logging LoggingConfig
}

// TracingConfig selects the span exporter.
type TracingConfig struct {
	Enabled   bool
	Exporter  string  // see TracingExporters
	SamplePct float64 // fraction of root spans kept, 0 to 1
	Endpoint  string  // otlp host:port; empty defers to OTEL_EXPORTER_OTLP_*
	Insecure  bool
}

// MetricsConfig selects the metric reader.
type MetricsConfig struct {
	Enabled  bool
	Exporter string // see MetricsExporters
	Endpoint string
	Insecure bool
	Interval time.Duration // push period for otlp and stdout
}

// LoggingConfig selects the log level and encoding.
type LoggingConfig struct {
	Enabled bool
	Level   string
	Format  string    // json (default) or console
	Writer  io.Writer // default os.Stderr
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	if c.ServiceName == "" {
		errs = append(errs, ErrMissingServiceName)
	}
	if c.Tracing.Enabled {
		if !slices.Contains(TracingExporters, c.Tracing.Exporter) {
			errs = append(errs, fmt.Errorf("%w: %q", ErrInvalidTracingExporter, c.Tracing.Exporter))
		}
		if c.Tracing.SamplePct < 0 || c.Tracing.SamplePct > 1 {
			errs = append(errs, fmt.Errorf("%w, got %g", ErrInvalidSamplePct, c.Tracing.SamplePct))
		}
	}
	if c.Metrics.Enabled && !slices.Contains(MetricsExporters, c.Metrics.Exporter) {
		errs = append(errs, fmt.Errorf("%w: %q", ErrInvalidMetricsExporter, c.Metrics.Exporter))
	}
	if c.Logging.Enabled {
		if !slices.Contains(LogLevels, c.Logging.Level) {
			errs = append(errs, fmt.Errorf("%w: %q", ErrInvalidLogLevel, c.Logging.Level))
		}
		if !slices.Contains(LogFormats, c.Logging.Format) {
			errs = append(errs, fmt.Errorf("%w: %q", ErrInvalidLogFormat, c.Logging.Format))
		}
	}
	return errors.Join(errs...)
}

// Observer hands out the process-wide tracer, meter and logger.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - Context: Shutdown honors cancellation and deadlines.
// - Errors: Shutdown reports every provider that failed to flush.
type Observer interface {
	Tracer() trace.Tracer
	Meter() metric.Meter
	Logger() Logger
	Shutdown(ctx context.Context) error
}

type observer struct {
	tracer trace.Tracer
	meter  metric.Meter
	logger Logger

	tp *sdktrace.TracerProvider
	mp *sdkmetric.MeterProvider
}

// NewObserver installs the configured providers as the otel globals.
// Disabled signals get no-op implementations.
func NewObserver(ctx context.Context, cfg Config) (Observer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	attrs := []resource.Option{resource.WithAttributes(
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.Version),
	)}
	if cfg.Environment != "" {
		attrs = append(attrs, resource.WithAttributes(semconv.DeploymentEnvironment(cfg.Environment)))
	}
	res, err := resource.New(ctx, attrs...)
	if err != nil {
		return nil, fmt.Errorf("observe: build resource: %w", err)
	}

	o := &observer{
		tracer: tracenoop.NewTracerProvider().Tracer(cfg.ServiceName),
		meter:  metricnoop.NewMeterProvider().Meter(cfg.ServiceName),
		logger: NopLogger(),
	}

	if cfg.Tracing.Enabled {
		if o.tp, err = newTracerProvider(ctx, cfg, res); err != nil {
			return nil, err
		}
		otel.SetTracerProvider(o.tp)
		o.tracer = o.tp.Tracer(cfg.ServiceName)
	}

	if cfg.Metrics.Enabled {
		if o.mp, err = newMeterProvider(ctx, cfg, res); err != nil {
			// Release the tracer provider built above.
			_ = o.Shutdown(ctx)
			return nil, err
		}
		otel.SetMeterProvider(o.mp)
		o.meter = o.mp.Meter(cfg.ServiceName)
	}

	if cfg.Logging.Enabled {
		o.logger = newLogger(cfg.Logging)
	}
	return o, nil
}

func newLogger(cfg LoggingConfig) Logger {
	w := cfg.Writer
	if w == nil {
		w = os.Stderr
	}
	if cfg.Format == "console" {
		return NewConsoleLogger(cfg.Level, w)
	}
	return NewLoggerWithWriter(cfg.Level, w)
}

// sampler keeps the parent's decision and samples new roots at pct.
func sampler(pct float64) sdktrace.Sampler {
	var root sdktrace.Sampler
	switch {
	case pct >= 1:
		root = sdktrace.AlwaysSample()
	case pct <= 0:
		root = sdktrace.NeverSample()
	default:
		root = sdktrace.TraceIDRatioBased(pct)
	}
	return sdktrace.ParentBased(root)
}

func newTracerProvider(ctx context.Context, cfg Config, res *resource.Resource) (*sdktrace.TracerProvider, error) {
	exp, err := exporters.NewTracingExporter(ctx, cfg.Tracing.Exporter, exporters.Options{
		Endpoint: cfg.Tracing.Endpoint,
		Insecure: cfg.Tracing.Insecure,
	})
	if err != nil {
		return nil, fmt.Errorf("observe: tracing exporter: %w", err)
	}
	return sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler(cfg.Tracing.SamplePct)),
		sdktrace.WithBatcher(exp),
	), nil
}

func newMeterProvider(ctx context.Context, cfg Config, res *resource.Resource) (*sdkmetric.MeterProvider, error) {
	reader, err := exporters.NewMetricsReader(ctx, cfg.Metrics.Exporter, exporters.Options{
		Endpoint: cfg.Metrics.Endpoint,
		Insecure: cfg.Metrics.Insecure,
		Interval: cfg.Metrics.Interval,
	})
	if err != nil {
		return nil, fmt.Errorf("observe: metrics reader: %w", err)
	}
	return sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	), nil
}

func (o *observer) Tracer() trace.Tracer { return o.tracer }
func (o *observer) Meter() metric.Meter  { return o.meter }
func (o *observer) Logger() Logger       { return o.logger }

func (o *observer) Shutdown(ctx context.Context) error {
	var errs []error
	if o.tp != nil {
		if err := o.tp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer provider: %w", err))
		}
	}
	if o.mp != nil {
		if err := o.mp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider: %w", err))
		}
	}
	return errors.Join(errs...)
}
