package observe

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func validConfig() Config {
	return Config{
		ServiceName: "ledgerops-test",
		Version:     "1.0.0",
		Environment: "test",
		Tracing:     TracingConfig{Enabled: true, Exporter: "stdout", SamplePct: 1},
		Metrics:     MetricsConfig{Enabled: true, Exporter: "stdout"},
		Logging:     LoggingConfig{Enabled: true, Level: "info"},
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		want   error
	}{
		{"valid", func(*Config) {}, nil},
		{"disabled signals skip checks", func(c *Config) {
			c.Tracing = TracingConfig{Exporter: "zipkin", SamplePct: 7}
			c.Metrics = MetricsConfig{Exporter: "statsd"}
			c.Logging = LoggingConfig{Level: "trace"}
		}, nil},
		{"missing service name", func(c *Config) { c.ServiceName = "" }, ErrMissingServiceName},
		{"unknown tracing exporter", func(c *Config) { c.Tracing.Exporter = "jaeger" }, ErrInvalidTracingExporter},
		{"sample above one", func(c *Config) { c.Tracing.SamplePct = 1.5 }, ErrInvalidSamplePct},
		{"negative sample", func(c *Config) { c.Tracing.SamplePct = -0.1 }, ErrInvalidSamplePct},
		{"unknown metrics exporter", func(c *Config) { c.Metrics.Exporter = "statsd" }, ErrInvalidMetricsExporter},
		{"unknown log level", func(c *Config) { c.Logging.Level = "trace" }, ErrInvalidLogLevel},
		{"unknown log format", func(c *Config) { c.Logging.Format = "logfmt" }, ErrInvalidLogFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.modify(&cfg)
			err := cfg.Validate()
			if tt.want == nil {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Fatalf("Validate() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestConfigValidate_ReportsEveryProblem(t *testing.T) {
	cfg := validConfig()
	cfg.ServiceName = ""
	cfg.Metrics.Exporter = "statsd"
	cfg.Logging.Level = "trace"

	err := cfg.Validate()
	for _, want := range []error{ErrMissingServiceName, ErrInvalidMetricsExporter, ErrInvalidLogLevel} {
		if !errors.Is(err, want) {
			t.Errorf("Validate() = %v, missing %v", err, want)
		}
	}
}

func TestNewObserver_Disabled(t *testing.T) {
	obs, err := NewObserver(context.Background(), Config{ServiceName: "ledgerops-test"})
	if err != nil {
		t.Fatalf("NewObserver() error = %v", err)
	}
	if obs.Tracer() == nil || obs.Meter() == nil || obs.Logger() == nil {
		t.Fatal("disabled observer must still hand out no-op primitives")
	}

	// The no-op primitives are safe to drive.
	_, span := obs.Tracer().Start(context.Background(), "GetRecord")
	span.End()
	counter, err := obs.Meter().Int64Counter("ledger.calls")
	if err != nil {
		t.Fatalf("Int64Counter() error = %v", err)
	}
	counter.Add(context.Background(), 1)
	obs.Logger().Info(context.Background(), "dropped")

	if err := obs.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() = %v", err)
	}
}

func TestNewObserver_InvalidConfig(t *testing.T) {
	_, err := NewObserver(context.Background(), Config{})
	if !errors.Is(err, ErrMissingServiceName) {
		t.Fatalf("NewObserver() = %v, want ErrMissingServiceName", err)
	}
}

func TestNewObserver_OTLPWithoutEndpoint(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	t.Setenv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT", "")

	cfg := validConfig()
	cfg.Tracing.Exporter = "otlp"
	cfg.Metrics.Enabled = false

	_, err := NewObserver(context.Background(), cfg)
	if err == nil || !strings.Contains(err.Error(), "tracing exporter") {
		t.Fatalf("NewObserver() = %v, want tracing exporter error", err)
	}
}

func TestNewObserver_StdoutProviders(t *testing.T) {
	cfg := validConfig()
	cfg.Metrics.Interval = time.Hour

	obs, err := NewObserver(context.Background(), cfg)
	if err != nil {
		t.Fatalf("NewObserver() error = %v", err)
	}

	tracer := NewTracer(obs.Tracer())
	_, span := tracer.StartSpan(context.Background(), CallMeta{Dependency: "ledger", Label: "GetRecord"})
	tracer.EndSpan(span, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := obs.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown() = %v", err)
	}
}

func TestNewObserver_LoggingConfig(t *testing.T) {
	var buf bytes.Buffer
	obs, err := NewObserver(context.Background(), Config{
		ServiceName: "ledgerops-test",
		Logging:     LoggingConfig{Enabled: true, Level: "warn", Writer: &buf},
	})
	if err != nil {
		t.Fatalf("NewObserver() error = %v", err)
	}

	obs.Logger().Info(context.Background(), "filtered")
	obs.Logger().Warn(context.Background(), "kept")

	out := buf.String()
	if strings.Contains(out, "filtered") || !strings.Contains(out, `"msg":"kept"`) {
		t.Errorf("log output = %q", out)
	}
}

func TestSampler(t *testing.T) {
	tests := []struct {
		pct  float64
		want string
	}{
		{1, "AlwaysOnSampler"},
		{0, "AlwaysOffSampler"},
		{0.25, "TraceIDRatioBased{0.25}"},
	}
	for _, tt := range tests {
		desc := sampler(tt.pct).Description()
		if !strings.HasPrefix(desc, "ParentBased{root:"+tt.want) {
			t.Errorf("sampler(%g) = %s, want parent-based %s", tt.pct, desc, tt.want)
		}
	}
}
