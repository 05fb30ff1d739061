package ledger

import (
	"fmt"

	"github.com/jonwraymond/ledgerops/fault"
	"github.com/jonwraymond/ledgerops/resilience"
	"github.com/jonwraymond/ledgerops/workflow"
)

// Sentinel errors of the record contract. Refusals by the ledger are
// rejections: they never count against the circuit breaker.
var (
	// ErrRecordNotFound is returned for an unknown record ID.
	ErrRecordNotFound = fault.NewRejection(fault.KindFatal, "ledger: record not found")

	// ErrRecordExists is returned by CreateRecord for a taken ID.
	ErrRecordExists = fault.NewRejection(fault.KindFatal, "ledger: record already exists")

	// ErrAlreadyApplied is returned by UpdateStatus when the record
	// already holds the target status.
	ErrAlreadyApplied = fault.NewRejection(fault.KindFatal, "ledger: transition already applied")

	// ErrUnknownFunction is returned for functions outside the contract.
	ErrUnknownFunction = fault.NewRejection(fault.KindFatal, "ledger: unknown function")

	// ErrInvalidArgs is returned for malformed function arguments.
	ErrInvalidArgs = fault.New(fault.KindValidation, "ledger: invalid arguments")

	// ErrNilLedger is returned by NewClient without a ledger.
	ErrNilLedger = fault.New(fault.KindValidation, "ledger: ledger is nil")

	// ErrNilFacade is returned by NewClient without a facade.
	ErrNilFacade = fault.New(fault.KindValidation, "ledger: facade is nil")
)

// ConflictError reports that UpdateStatus found a status other than the
// expected one, because a concurrent write won. It is transient: a retry
// either finds the write already applied or a state the caller must
// re-read.
type ConflictError struct {
	RecordID string
	Expected workflow.State
	Actual   workflow.State
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("ledger: %s on record %s: expected status %s, found %s",
		resilience.MVCCReadConflict, e.RecordID, e.Expected, e.Actual)
}

// FaultKind reports KindTransient.
func (e *ConflictError) FaultKind() fault.Kind { return fault.KindTransient }
