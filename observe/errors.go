package observe

import "errors"

var (
	// ErrMissingServiceName is returned when Config.ServiceName is empty.
	ErrMissingServiceName = errors.New("observe: service name is required")

	// ErrInvalidSamplePct is returned when the trace sample percentage is
	// outside [0, 1].
	ErrInvalidSamplePct = errors.New("observe: sample percentage must be within [0, 1]")

	ErrInvalidTracingExporter = errors.New("observe: unknown tracing exporter")
	ErrInvalidMetricsExporter = errors.New("observe: unknown metrics exporter")
	ErrInvalidLogLevel        = errors.New("observe: unknown log level")
	ErrInvalidLogFormat       = errors.New("observe: unknown log format")

	// ErrNilObserver is returned by constructors given a nil Observer.
	ErrNilObserver = errors.New("observe: observer is nil")

	// ErrMissingDependency is returned when CallMeta.Dependency is empty.
	ErrMissingDependency = errors.New("observe: dependency name is required")
)
