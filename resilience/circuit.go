package resilience

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonwraymond/ledgerops/fault"
)

// State represents the circuit breaker state.
type State int

const (
	// StateClosed means the circuit is operating normally.
	StateClosed State = iota
	// StateOpen means the circuit is blocking all requests.
	StateOpen
	// StateHalfOpen means the circuit is testing if the service recovered.
	StateHalfOpen
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name produced by MarshalText.
func (s *State) UnmarshalText(text []byte) error {
	switch string(text) {
	case "CLOSED":
		*s = StateClosed
	case "OPEN":
		*s = StateOpen
	case "HALF_OPEN":
		*s = StateHalfOpen
	default:
		return fmt.Errorf("resilience: unknown circuit state %q", text)
	}
	return nil
}

// CircuitBreakerConfig configures the circuit breaker.
type CircuitBreakerConfig struct {
	// Name identifies the protected dependency in errors and metrics.
	Name string

	// FailureThreshold is the number of consecutive failures that opens
	// the circuit.
	// Default: 5
	FailureThreshold int

	// SuccessThreshold is the number of consecutive half-open successes
	// that closes the circuit.
	// Default: 2
	SuccessThreshold int

	// Cooldown is how long the circuit stays open before a trial call is
	// admitted.
	// Default: 60 seconds
	Cooldown time.Duration

	// HalfOpenMaxRequests is the max trial requests in flight while
	// half-open.
	// Default: SuccessThreshold
	HalfOpenMaxRequests int

	// OnStateChange is called when the circuit state changes. It runs with
	// the breaker locked and must not call back into the breaker.
	OnStateChange func(from, to State)

	// IsFailure determines if an error should count as a failure.
	// Default: DefaultIsFailure.
	IsFailure func(err error) bool

	// Now returns the current time.
	// Default: time.Now
	Now func() time.Time
}

// DefaultIsFailure counts every non-nil error except caller cancellation,
// local bulkhead or rate limit rejections, validation errors and requests
// the dependency refused while healthy (see fault.IsRejection).
func DefaultIsFailure(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, context.Canceled),
		errors.Is(err, ErrBulkheadFull),
		errors.Is(err, ErrRateLimitExceeded),
		fault.KindOf(err) == fault.KindValidation,
		fault.IsRejection(err):
		return false
	}
	return true
}

// CircuitBreaker implements the circuit breaker pattern.
type CircuitBreaker struct {
	config CircuitBreakerConfig

	mu               sync.Mutex
	state            State
	failures         int
	successes        int
	openedAt         time.Time
	lastFailure      time.Time
	halfOpenInFlight int
	generation       uint64
	rejected         int64
}

// NewCircuitBreaker creates a new circuit breaker.
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	// Apply defaults
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 5
	}
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = 2
	}
	if config.Cooldown <= 0 {
		config.Cooldown = 60 * time.Second
	}
	if config.HalfOpenMaxRequests <= 0 {
		config.HalfOpenMaxRequests = config.SuccessThreshold
	}
	if config.IsFailure == nil {
		config.IsFailure = DefaultIsFailure
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	return &CircuitBreaker{
		config: config,
		state:  StateClosed,
	}
}

// Name returns the breaker name.
func (cb *CircuitBreaker) Name() string {
	return cb.config.Name
}

// Execute runs the operation through the circuit breaker.
// An open circuit returns a *BreakerOpenError without calling op.
func (cb *CircuitBreaker) Execute(ctx context.Context, op func(context.Context) error) error {
	gen, err := cb.beforeRequest()
	if err != nil {
		return err
	}

	err = op(ctx)
	cb.afterRequest(gen, err)
	return err
}

// State returns the current circuit state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.currentStateLocked()
}

// Reset resets the circuit breaker to closed state.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.setStateLocked(StateClosed)
	cb.lastFailure = time.Time{}
}

func (cb *CircuitBreaker) beforeRequest() (uint64, error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.currentStateLocked() {
	case StateOpen:
		cb.rejected++
		return 0, &BreakerOpenError{Name: cb.config.Name, RetryAt: cb.openedAt.Add(cb.config.Cooldown)}
	case StateHalfOpen:
		if cb.halfOpenInFlight >= cb.config.HalfOpenMaxRequests {
			cb.rejected++
			return 0, &BreakerOpenError{Name: cb.config.Name}
		}
		cb.halfOpenInFlight++
	}

	return cb.generation, nil
}

func (cb *CircuitBreaker) afterRequest(gen uint64, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	// The circuit changed state while op ran; its outcome belongs to a
	// previous generation.
	if gen != cb.generation {
		return
	}

	isFailure := cb.config.IsFailure(err)
	now := cb.config.Now()

	switch cb.state {
	case StateClosed:
		switch {
		case isFailure:
			cb.failures++
			cb.lastFailure = now
			if cb.failures >= cb.config.FailureThreshold {
				cb.setStateLocked(StateOpen)
			}
		case err == nil:
			cb.failures = 0
		}

	case StateHalfOpen:
		cb.halfOpenInFlight--
		switch {
		case isFailure:
			cb.failures++
			cb.lastFailure = now
			cb.setStateLocked(StateOpen)
		case err == nil:
			cb.successes++
			if cb.successes >= cb.config.SuccessThreshold {
				cb.setStateLocked(StateClosed)
			}
		}
	}
}

func (cb *CircuitBreaker) currentStateLocked() State {
	if cb.state == StateOpen && !cb.config.Now().Before(cb.openedAt.Add(cb.config.Cooldown)) {
		cb.setStateLocked(StateHalfOpen)
	}
	return cb.state
}

// setStateLocked moves to state and starts a new generation.
func (cb *CircuitBreaker) setStateLocked(state State) {
	from := cb.state
	cb.state = state
	cb.generation++
	cb.halfOpenInFlight = 0
	cb.successes = 0

	switch state {
	case StateOpen:
		cb.openedAt = cb.config.Now()
	case StateClosed:
		cb.failures = 0
		cb.openedAt = time.Time{}
	}

	if from != state && cb.config.OnStateChange != nil {
		cb.config.OnStateChange(from, state)
	}
}

// Metrics returns current circuit breaker metrics.
func (cb *CircuitBreaker) Metrics() CircuitBreakerMetrics {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	m := CircuitBreakerMetrics{
		Name:             cb.config.Name,
		State:            cb.currentStateLocked(),
		Failures:         cb.failures,
		Successes:        cb.successes,
		HalfOpenInFlight: cb.halfOpenInFlight,
		Rejected:         cb.rejected,
		LastFailure:      cb.lastFailure,
	}
	if m.State == StateOpen {
		m.NextAttempt = cb.openedAt.Add(cb.config.Cooldown)
	}
	return m
}

// CircuitBreakerMetrics contains circuit breaker statistics.
type CircuitBreakerMetrics struct {
	Name             string    `json:"name"`
	State            State     `json:"state"`
	Failures         int       `json:"failureCount"`
	Successes        int       `json:"successCount"`
	HalfOpenInFlight int       `json:"halfOpenInFlight"`
	Rejected         int64     `json:"rejected"`
	LastFailure      time.Time `json:"lastFailure"`
	NextAttempt      time.Time `json:"nextAttemptTime"`
}
