// Package resilience guards calls to an unreliable dependency, typically a
// distributed ledger, with composable fault tolerance patterns.
//
// # Patterns
//
//   - Circuit Breaker: stops calling a failing dependency after
//     FailureThreshold consecutive failures, admits trial calls after a
//     cooldown and closes again after SuccessThreshold trial successes.
//
//   - Retry: retries transient failures with exponential, linear or
//     constant backoff and ±25% jitter. IsTransient decides what is
//     transient.
//
//   - Rate Limiter: token bucket admission control.
//
//   - Bulkhead: caps concurrent calls; excess callers wait in FIFO order.
//
//   - Timeout: bounds each attempt without waiting for an operation that
//     ignores its context.
//
// # Facade
//
// A Facade composes the patterns for one dependency. Reads and writes get
// separate retry policies:
//
//	reg := resilience.NewRegistry(resilience.WithRegistryLogger(logger))
//	ledger := reg.Facade("ledger", resilience.WithTimeout(10*time.Second))
//
//	err := ledger.ExecuteTransaction(ctx, "UpdateStatus", func(ctx context.Context) error {
//	    return contract.Submit(ctx, "UpdateStatus", id, status)
//	})
//
// The breaker sees one outcome per call, after retries. Final failures are
// returned as *DependencyError, calls rejected by an open breaker as
// *BreakerOpenError. Both carry a fault.Kind.
//
// # Registry
//
// A Registry hands out one breaker and one bulkhead per dependency name so
// that every facade for the same dependency shares its fate, and exposes
// their statistics for health endpoints.
package resilience
