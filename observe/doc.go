// Package observe provides observability primitives for ledger calls.
//
// It is a pure instrumentation library: no execution, no transport, no I/O
// beyond exporter setup. The resilience facade wraps every dependency call
// with a Middleware that opens a span named ledger.<kind>.<dependency>,
// records ledger.call.* metrics and writes a zerolog JSON line carrying the
// span's trace and span IDs.
package observe
