package health

import (
	"context"
	"time"
)

// Status is the health of one check or of the whole process.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

func (s Status) String() string { return string(s) }

// severity orders statuses. Unknown values rank as unhealthy.
func (s Status) severity() int {
	switch s {
	case StatusHealthy:
		return 0
	case StatusDegraded:
		return 1
	default:
		return 2
	}
}

// Worse returns the more severe of s and other.
func (s Status) Worse(other Status) Status {
	if other.severity() > s.severity() {
		return other
	}
	return s
}

// Result is the outcome of one check.
type Result struct {
	Status  Status
	Message string
	Details map[string]any
	Err     error

	// Duration and CheckedAt are filled in by the Aggregator.
	Duration  time.Duration
	CheckedAt time.Time
}

func Healthy(message string) Result {
	return Result{Status: StatusHealthy, Message: message}
}

func Degraded(message string) Result {
	return Result{Status: StatusDegraded, Message: message}
}

func Unhealthy(message string, err error) Result {
	return Result{Status: StatusUnhealthy, Message: message, Err: err}
}

// WithDetails returns r carrying details.
func (r Result) WithDetails(details map[string]any) Result {
	r.Details = details
	return r
}

// Checker probes one component.
//
// Contract:
//   - Concurrency: Check may run on several goroutines at once.
//   - Context: Check should return promptly once ctx is done. The
//     Aggregator stops waiting at its timeout either way.
type Checker interface {
	Name() string
	Check(ctx context.Context) Result
}

// CheckFunc is a check body.
type CheckFunc func(ctx context.Context) Result

// Func returns a Checker named name that runs fn.
func Func(name string, fn CheckFunc) Checker {
	return funcChecker{name: name, fn: fn}
}

type funcChecker struct {
	name string
	fn   CheckFunc
}

func (f funcChecker) Name() string                     { return f.name }
func (f funcChecker) Check(ctx context.Context) Result { return f.fn(ctx) }

// Pinger reports whether a dependency is reachable. The SQLite ledger
// implements it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingChecker is unhealthy while Ping fails and degraded while Ping is
// slower than its threshold.
type PingChecker struct {
	name      string
	pinger    Pinger
	slowAfter time.Duration
}

// PingOption configures a PingChecker.
type PingOption func(*PingChecker)

// WithSlowThreshold reports pings slower than d as degraded.
func WithSlowThreshold(d time.Duration) PingOption {
	return func(c *PingChecker) {
		c.slowAfter = d
	}
}

// NewPingChecker creates a checker named name over pinger.
func NewPingChecker(name string, pinger Pinger, opts ...PingOption) *PingChecker {
	c := &PingChecker{name: name, pinger: pinger}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *PingChecker) Name() string { return c.name }

func (c *PingChecker) Check(ctx context.Context) Result {
	start := time.Now()
	err := c.pinger.Ping(ctx)
	elapsed := time.Since(start)
	details := map[string]any{"latency": elapsed.String()}

	switch {
	case err != nil:
		return Unhealthy(c.name+" unreachable", err).WithDetails(details)
	case c.slowAfter > 0 && elapsed > c.slowAfter:
		return Degraded(c.name + " responding slowly").WithDetails(details)
	default:
		return Healthy(c.name + " reachable").WithDetails(details)
	}
}
