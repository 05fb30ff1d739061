// Package cache keeps ledger query results in memory so repeated reads of
// the same record skip the ledger round trip.
//
// Keys are derived from the ledger function name and its arguments.
// A Policy names the functions worth caching and their TTLs; writes are
// never cached. ReadThrough combines the three and collapses concurrent
// misses for one key into a single ledger query.
package cache
