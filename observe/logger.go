package observe

import (
	"context"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// Logger is the structured logger used across ledgerops.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: logging is best-effort and never panics.
type Logger interface {
	Info(ctx context.Context, msg string, fields ...Field)
	Warn(ctx context.Context, msg string, fields ...Field)
	Error(ctx context.Context, msg string, fields ...Field)
	Debug(ctx context.Context, msg string, fields ...Field)

	// WithCall returns a logger that tags every entry with meta.
	WithCall(meta CallMeta) Logger
}

// Field is one structured log attribute.
type Field struct {
	Key   string
	Value any
}

// RedactedFields lists keys whose values are replaced with [REDACTED].
// Matching ignores case.
var RedactedFields = []string{
	"password",
	"secret",
	"token",
	"api_key",
	"apikey",
	"authorization",
	"credential",
	"dsn",
}

const redacted = "[REDACTED]"

// Log entry keys.
const (
	msgKey     = "msg"
	traceIDKey = "trace_id"
	spanIDKey  = "span_id"
)

// ParseLogLevel maps debug, info, warn and error to a zerolog level.
// Anything else is info.
func ParseLogLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// zeroLogger writes one JSON object per line through zerolog.
type zeroLogger struct {
	zl zerolog.Logger
}

// NewLogger returns a JSON logger writing to stderr.
func NewLogger(level string) Logger {
	return NewLoggerWithWriter(level, os.Stderr)
}

// NewLoggerWithWriter returns a JSON logger writing to w. Writes are
// serialized, so w need not be safe for concurrent use.
func NewLoggerWithWriter(level string, w io.Writer) Logger {
	return newZeroLogger(level, zerolog.SyncWriter(w))
}

// NewConsoleLogger returns a human-readable logger for terminals.
func NewConsoleLogger(level string, w io.Writer) Logger {
	return newZeroLogger(level, zerolog.ConsoleWriter{
		Out:        zerolog.SyncWriter(w),
		TimeFormat: time.TimeOnly,
		FormatLevel: func(i any) string {
			return strings.ToUpper(fmt.Sprintf("%-5s", i))
		},
	})
}

func newZeroLogger(level string, w io.Writer) *zeroLogger {
	zl := zerolog.New(w).
		Level(ParseLogLevel(level)).
		With().Timestamp().Logger().
		Hook(traceHook{})
	return &zeroLogger{zl: zl}
}

func (l *zeroLogger) WithCall(meta CallMeta) Logger {
	c := l.zl.With().Str("ledger.dependency", meta.Dependency)
	if meta.Kind != "" {
		c = c.Str("ledger.kind", meta.Kind)
	}
	if meta.Label != "" {
		c = c.Str("ledger.label", meta.Label)
	}
	if meta.Org != "" {
		c = c.Str("ledger.org", meta.Org)
	}
	return &zeroLogger{zl: c.Logger()}
}

func (l *zeroLogger) Debug(ctx context.Context, msg string, fields ...Field) {
	l.write(ctx, l.zl.Debug(), msg, fields)
}

func (l *zeroLogger) Info(ctx context.Context, msg string, fields ...Field) {
	l.write(ctx, l.zl.Info(), msg, fields)
}

func (l *zeroLogger) Warn(ctx context.Context, msg string, fields ...Field) {
	l.write(ctx, l.zl.Warn(), msg, fields)
}

func (l *zeroLogger) Error(ctx context.Context, msg string, fields ...Field) {
	l.write(ctx, l.zl.Error(), msg, fields)
}

// write fills e and sends it. e is nil when the level is filtered out.
func (l *zeroLogger) write(ctx context.Context, e *zerolog.Event, msg string, fields []Field) {
	if e == nil {
		return
	}
	if ctx != nil {
		e = e.Ctx(ctx)
	}
	e = e.Str(msgKey, msg)
	for _, f := range fields {
		e = appendField(e, f)
	}
	e.Send()
}

func appendField(e *zerolog.Event, f Field) *zerolog.Event {
	if isRedactedField(f.Key) {
		return e.Str(f.Key, redacted)
	}
	switch v := f.Value.(type) {
	case string:
		return e.Str(f.Key, v)
	case int:
		return e.Int(f.Key, v)
	case int64:
		return e.Int64(f.Key, v)
	case float64:
		return e.Float64(f.Key, v)
	case bool:
		return e.Bool(f.Key, v)
	case time.Duration:
		return e.Str(f.Key, v.String())
	case time.Time:
		return e.Time(f.Key, v)
	case error:
		return e.AnErr(f.Key, v)
	case fmt.Stringer:
		return e.Stringer(f.Key, v)
	default:
		return e.Interface(f.Key, v)
	}
}

func isRedactedField(key string) bool {
	return slices.ContainsFunc(RedactedFields, func(k string) bool {
		return strings.EqualFold(k, key)
	})
}

// traceHook tags entries logged inside a recorded span with its IDs.
type traceHook struct{}

func (traceHook) Run(e *zerolog.Event, _ zerolog.Level, _ string) {
	ctx := e.GetCtx()
	if ctx == nil {
		return
	}
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return
	}
	e.Str(traceIDKey, sc.TraceID().String()).Str(spanIDKey, sc.SpanID().String())
}

// nopLogger discards everything.
type nopLogger struct{}

// NopLogger returns a Logger that discards everything.
func NopLogger() Logger { return nopLogger{} }

func (nopLogger) Info(context.Context, string, ...Field)  {}
func (nopLogger) Warn(context.Context, string, ...Field)  {}
func (nopLogger) Error(context.Context, string, ...Field) {}
func (nopLogger) Debug(context.Context, string, ...Field) {}
func (n nopLogger) WithCall(CallMeta) Logger              { return n }

var (
	_ Logger = (*zeroLogger)(nil)
	_ Logger = nopLogger{}
)
