// Package ledger is the boundary to the shared system of record and the
// resilient client ledgerops uses to move records through the workflow.
//
// A Ledger executes named functions: Submit for writes, Evaluate for reads.
// Every implementation honors the same record contract:
//
//	CreateRecord(id)            -> new record in DRAFT at version 1
//	UpdateStatus(id, from, to)  -> compare-and-set of the status
//	GetRecord(id)               -> JSON encoded Record
//
// UpdateStatus fails with ErrAlreadyApplied when the record already holds
// the target status, and with a *ConflictError (MVCC_READ_CONFLICT) when it
// holds a status other than from. The first is fatal and the second
// transient, so a retried write whose acknowledgement was lost ends in
// ErrAlreadyApplied instead of being applied twice.
//
// Client validates transitions against a workflow.Graph, runs every call
// through a resilience.Facade and serves GetRecord through an optional
// read-through cache.
package ledger
