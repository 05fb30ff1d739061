// Package health reports whether ledgerops and the dependencies it guards
// can serve status transitions.
//
// A Checker reports a Status: Healthy, Degraded or Unhealthy. Two checkers
// come with the package:
//
//   - PingChecker wraps anything with Ping(ctx) error, such as the SQLite
//     ledger. WithSlowThreshold turns a slow but successful ping into
//     Degraded.
//   - ResilienceChecker reads a resilience.Registry snapshot. An OPEN
//     breaker is unhealthy; a HALF_OPEN breaker or a bulkhead with queued
//     callers is degraded.
//
// Func adapts a plain function.
//
// # Aggregation
//
//	agg := health.NewAggregator(health.AggregatorConfig{Logger: logger})
//	agg.Register("ledger", health.NewPingChecker("ledger", store))
//	agg.Register("resilience", health.NewResilienceChecker(registry))
//	agg.Register("cache", cacheCheck, health.Optional())
//
//	report := agg.Run(ctx)
//	if report.Status != health.StatusHealthy { ... report.Failing() ... }
//
// An Optional check lowers the overall status to Degraded at most. Checks
// that panic or outlive AggregatorConfig.Timeout report Unhealthy. The
// aggregator logs a check only when its status changes.
//
// # HTTP Endpoints
//
//	health.RegisterHandlers(mux, agg)                      // /healthz, /readyz, /health, /health/{check}
//	health.RegisterResilienceHandlers(mux, registry, guard) // /resilience, /resilience/reset
//
// GET /resilience serves the registry's breaker, bulkhead and rate limiter
// snapshot as JSON. POST /resilience/reset closes every breaker and
// refills every limiter. It is mounted only behind a non-nil guard.
package health
