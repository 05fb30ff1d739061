package resilience

import (
	"fmt"
	"time"

	"github.com/jonwraymond/ledgerops/fault"
)

// Sentinel errors for resilience operations.
var (
	// ErrCircuitOpen is returned when the circuit breaker is open.
	ErrCircuitOpen = fault.New(fault.KindBreakerOpen, "resilience: circuit breaker is open")

	// ErrMaxRetriesExceeded matches a DependencyError whose retry budget
	// was exhausted.
	ErrMaxRetriesExceeded = fault.New(fault.KindTransient, "resilience: max retries exceeded")

	// ErrRateLimitExceeded is returned when the rate limit is exceeded.
	ErrRateLimitExceeded = fault.New(fault.KindTransient, "resilience: rate limit exceeded")

	// ErrBulkheadFull is returned when the bulkhead is at capacity and
	// cannot queue the caller.
	ErrBulkheadFull = fault.New(fault.KindTransient, "resilience: bulkhead at capacity")

	// ErrTimeout is returned when an operation times out.
	ErrTimeout = fault.New(fault.KindTimeout, "resilience: operation timed out")
)

// BreakerOpenError is returned by an open circuit breaker. It matches
// ErrCircuitOpen with errors.Is.
type BreakerOpenError struct {
	// Name of the breaker.
	Name string

	// RetryAt is the earliest time a trial call is admitted. Zero when the
	// breaker is half-open and its trial slots are taken.
	RetryAt time.Time
}

func (e *BreakerOpenError) Error() string {
	if e.RetryAt.IsZero() {
		return fmt.Sprintf("resilience: circuit breaker %q is open", e.Name)
	}
	return fmt.Sprintf("resilience: circuit breaker %q is open until %s", e.Name, e.RetryAt.Format(time.RFC3339))
}

func (e *BreakerOpenError) Unwrap() error { return ErrCircuitOpen }

// FaultKind reports KindBreakerOpen.
func (e *BreakerOpenError) FaultKind() fault.Kind { return fault.KindBreakerOpen }

// DependencyError is the final failure of a facade call.
type DependencyError struct {
	// Dependency is the facade's dependency name.
	Dependency string

	// Label is the operation label passed by the caller.
	Label string

	// Kind is KindTransient when the retry budget ran out on retryable
	// errors, otherwise the kind of the last error (KindFatal when untagged).
	Kind fault.Kind

	// Attempts is the number of times the operation ran.
	Attempts int

	// Err is the last error returned by the operation.
	Err error
}

func (e *DependencyError) Error() string {
	if e.Label == "" {
		return fmt.Sprintf("%s: %s after %d attempt(s): %v", e.Dependency, e.Kind, e.Attempts, e.Err)
	}
	return fmt.Sprintf("%s %s: %s after %d attempt(s): %v", e.Dependency, e.Label, e.Kind, e.Attempts, e.Err)
}

func (e *DependencyError) Unwrap() error { return e.Err }

// Is reports exhaustion as ErrMaxRetriesExceeded.
func (e *DependencyError) Is(target error) bool {
	return target == ErrMaxRetriesExceeded && e.Kind == fault.KindTransient
}

// FaultKind returns e.Kind.
func (e *DependencyError) FaultKind() fault.Kind { return e.Kind }
