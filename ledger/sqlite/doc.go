// Package sqlite provides a SQLite-backed ledger.Ledger.
//
// It is the reference ledger for local runs and integration tests: every
// write runs in a single transaction that applies the record contract and
// appends to a submissions log, whose row ID becomes the receipt's TxID.
//
// Busy and locked database errors are tagged transient so the resilience
// facade retries them; everything else keeps the ledger package's kinds.
package sqlite
