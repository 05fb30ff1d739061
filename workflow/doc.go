// Package workflow defines the status graph of an export record.
//
// A Graph is a static, immutable table of legal status transitions together
// with the stage label and progress percentage of every status. It performs
// no I/O and is safe for concurrent use.
//
// Callers validate a requested transition before building a ledger
// instruction:
//
//	g := workflow.DefaultGraph()
//	if err := g.Validate(current, requested); err != nil {
//	    var verr *workflow.ValidationError
//	    errors.As(err, &verr)
//	    // verr.Allowed lists the legal next statuses
//	}
//
// Legacy status names (for example QUALITY_CERTIFIED or FX_PENDING) are
// resolved to their canonical status before any lookup, so an alias always
// has the same outgoing edges, stage and progress as its canonical status.
// Unknown statuses are treated as having no outgoing transitions.
package workflow
