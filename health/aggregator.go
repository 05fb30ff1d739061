package health

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jonwraymond/ledgerops/observe"
)

// AggregatorConfig configures an Aggregator.
type AggregatorConfig struct {
	// Timeout bounds each Run and each single Check.
	// Default: 10s
	Timeout time.Duration

	// Parallel runs checks concurrently.
	Parallel bool

	// MaxConcurrent caps concurrent checks when Parallel is set. Zero
	// means no cap.
	MaxConcurrent int

	// Logger records checks that change status.
	// Default: observe.NopLogger()
	Logger observe.Logger

	// Now returns the current time.
	// Default: time.Now
	Now func() time.Time
}

// RegisterOption configures a registered check.
type RegisterOption func(*registration)

// Optional marks a check whose failure degrades the overall status
// instead of failing it.
func Optional() RegisterOption {
	return func(r *registration) {
		r.optional = true
	}
}

type registration struct {
	name     string
	checker  Checker
	optional bool
}

// Report is the outcome of one Run.
type Report struct {
	Status    Status
	Checks    map[string]Result
	Optional  map[string]bool
	CheckedAt time.Time
}

// Failing returns the sorted names of checks that are not healthy.
func (r Report) Failing() []string {
	var out []string
	for name, res := range r.Checks {
		if res.Status != StatusHealthy {
			out = append(out, name)
		}
	}
	slices.Sort(out)
	return out
}

// Aggregator runs named checks and rolls their results into one status.
//
// Contract:
//   - Concurrency: safe for concurrent use.
//   - Ordering: checks run and log in registration order.
type Aggregator struct {
	config AggregatorConfig

	mu     sync.RWMutex
	checks []registration

	lastMu sync.Mutex
	last   map[string]Status
}

// NewAggregator creates an empty aggregator. With no config, checks run
// in parallel with a 10s timeout.
func NewAggregator(config ...AggregatorConfig) *Aggregator {
	cfg := AggregatorConfig{Parallel: true}
	if len(config) > 0 {
		cfg = config[0]
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = observe.NopLogger()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Aggregator{config: cfg, last: make(map[string]Status)}
}

// Register adds checker under name. Registering an existing name
// replaces the checker in place.
func (a *Aggregator) Register(name string, checker Checker, opts ...RegisterOption) {
	reg := registration{name: name, checker: checker}
	for _, opt := range opts {
		opt(&reg)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if i := a.indexLocked(name); i >= 0 {
		a.checks[i] = reg
		return
	}
	a.checks = append(a.checks, reg)
}

// Unregister removes name and reports whether it was registered.
func (a *Aggregator) Unregister(name string) bool {
	a.mu.Lock()
	i := a.indexLocked(name)
	if i >= 0 {
		a.checks = slices.Delete(a.checks, i, i+1)
	}
	a.mu.Unlock()

	if i < 0 {
		return false
	}
	a.lastMu.Lock()
	delete(a.last, name)
	a.lastMu.Unlock()
	return true
}

// Names returns the registered names in registration order.
func (a *Aggregator) Names() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	names := make([]string, len(a.checks))
	for i, reg := range a.checks {
		names[i] = reg.name
	}
	return names
}

func (a *Aggregator) indexLocked(name string) int {
	return slices.IndexFunc(a.checks, func(r registration) bool { return r.name == name })
}

// Check runs the check registered under name.
func (a *Aggregator) Check(ctx context.Context, name string) (Result, error) {
	a.mu.RLock()
	i := a.indexLocked(name)
	var reg registration
	if i >= 0 {
		reg = a.checks[i]
	}
	a.mu.RUnlock()
	if i < 0 {
		return Result{}, fmt.Errorf("%w: %s", ErrCheckerNotFound, name)
	}

	ctx, cancel := context.WithTimeout(ctx, a.config.Timeout)
	defer cancel()

	res := a.run(ctx, reg.checker)
	a.observe(ctx, reg.name, res)
	return res, nil
}

// Run executes every check. The overall status is the worst required
// result; an optional check can lower it to degraded at most.
func (a *Aggregator) Run(ctx context.Context) Report {
	a.mu.RLock()
	checks := slices.Clone(a.checks)
	a.mu.RUnlock()

	report := Report{
		Status:    StatusHealthy,
		Checks:    make(map[string]Result, len(checks)),
		Optional:  make(map[string]bool, len(checks)),
		CheckedAt: a.config.Now(),
	}
	if len(checks) == 0 {
		return report
	}

	ctx, cancel := context.WithTimeout(ctx, a.config.Timeout)
	defer cancel()

	results := make([]Result, len(checks))
	if a.config.Parallel {
		var g errgroup.Group
		if a.config.MaxConcurrent > 0 {
			g.SetLimit(a.config.MaxConcurrent)
		}
		for i, reg := range checks {
			g.Go(func() error {
				results[i] = a.run(ctx, reg.checker)
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for i, reg := range checks {
			results[i] = a.run(ctx, reg.checker)
		}
	}

	for i, reg := range checks {
		res := results[i]
		report.Checks[reg.name] = res
		report.Optional[reg.name] = reg.optional

		contrib := res.Status
		if reg.optional && contrib.severity() > StatusDegraded.severity() {
			contrib = StatusDegraded
		}
		report.Status = report.Status.Worse(contrib)
		a.observe(ctx, reg.name, res)
	}
	return report
}

// run executes c, converting a panic or an expired ctx into an
// unhealthy result.
func (a *Aggregator) run(ctx context.Context, c Checker) Result {
	start := a.config.Now()
	done := make(chan Result, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- Unhealthy("check panicked", fmt.Errorf("%w: %v", ErrCheckPanicked, r))
			}
		}()
		done <- c.Check(ctx)
	}()

	var res Result
	select {
	case res = <-done:
	case <-ctx.Done():
		res = Unhealthy("check timed out", ErrCheckTimeout)
	}
	res.Duration = a.config.Now().Sub(start)
	if res.CheckedAt.IsZero() {
		res.CheckedAt = start
	}
	return res
}

// observe logs res when its status differs from the previous run of name.
// The first run of a healthy check is not logged.
func (a *Aggregator) observe(ctx context.Context, name string, res Result) {
	a.lastMu.Lock()
	prev, seen := a.last[name]
	a.last[name] = res.Status
	a.lastMu.Unlock()

	if seen && prev == res.Status {
		return
	}
	if !seen && res.Status == StatusHealthy {
		return
	}

	fields := []observe.Field{
		{Key: "check", Value: name},
		{Key: "status", Value: res.Status.String()},
		{Key: "message", Value: res.Message},
	}
	if seen {
		fields = append(fields, observe.Field{Key: "previous", Value: prev.String()})
	}
	if res.Err != nil {
		fields = append(fields, observe.Field{Key: "error", Value: res.Err.Error()})
	}
	if res.Status == StatusHealthy {
		a.config.Logger.Info(ctx, "health check recovered", fields...)
		return
	}
	a.config.Logger.Warn(ctx, "health check status changed", fields...)
}

// Checker exposes the aggregator as one Checker named "aggregate".
func (a *Aggregator) Checker() Checker {
	return Func("aggregate", func(ctx context.Context) Result {
		report := a.Run(ctx)
		details := make(map[string]any, len(report.Checks))
		for name, res := range report.Checks {
			details[name] = res.Status.String()
		}

		res := Result{Status: report.Status, Details: details}
		switch report.Status {
		case StatusHealthy:
			res.Message = "all checks passed"
		default:
			res.Message = fmt.Sprintf("%d of %d checks not healthy", len(report.Failing()), len(report.Checks))
		}
		return res
	})
}
