package health

import (
	"context"
	"strings"

	"github.com/jonwraymond/ledgerops/resilience"
)

// StatsSource supplies a snapshot of breakers, bulkheads and limiters.
// *resilience.Registry implements it.
type StatsSource interface {
	AllStats() resilience.Stats
}

// Resetter closes every circuit breaker it owns and refills its limiters.
// *resilience.Registry implements it.
type Resetter interface {
	ResetAll()
}

// ResilienceChecker derives health from the state of the resilience
// components guarding downstream dependencies.
//
// An OPEN breaker makes the check unhealthy. A HALF_OPEN breaker or a
// bulkhead with callers queued and no free slot makes it degraded.
type ResilienceChecker struct {
	source StatsSource
}

// NewResilienceChecker creates a checker over source.
func NewResilienceChecker(source StatsSource) *ResilienceChecker {
	return &ResilienceChecker{source: source}
}

// Name returns "resilience".
func (c *ResilienceChecker) Name() string {
	return "resilience"
}

// Check evaluates the current breaker and bulkhead snapshot.
func (c *ResilienceChecker) Check(ctx context.Context) Result {
	stats := c.source.AllStats()

	var open, halfOpen, saturated []string
	breakers := make(map[string]any, len(stats.CircuitBreakers))
	for _, cb := range stats.CircuitBreakers {
		breakers[cb.Name] = cb.State.String()
		switch cb.State {
		case resilience.StateOpen:
			open = append(open, cb.Name)
		case resilience.StateHalfOpen:
			halfOpen = append(halfOpen, cb.Name)
		}
	}
	for _, b := range stats.Bulkheads {
		if b.Available == 0 && b.Queued > 0 {
			saturated = append(saturated, b.Name)
		}
	}

	details := map[string]any{
		"circuitBreakers": breakers,
		"bulkheads":       len(stats.Bulkheads),
		"rateLimiters":    len(stats.RateLimiters),
	}

	switch {
	case len(open) > 0:
		return Unhealthy("circuit open: "+strings.Join(open, ", "), ErrCheckFailed).
			WithDetails(details)
	case len(halfOpen) > 0:
		return Degraded("circuit recovering: " + strings.Join(halfOpen, ", ")).
			WithDetails(details)
	case len(saturated) > 0:
		return Degraded("bulkhead saturated: " + strings.Join(saturated, ", ")).
			WithDetails(details)
	default:
		return Healthy("all circuits closed").WithDetails(details)
	}
}
