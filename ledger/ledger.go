package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/jonwraymond/ledgerops/workflow"
)

// Ledger functions of the record contract.
const (
	FnCreateRecord = "CreateRecord"
	FnUpdateStatus = "UpdateStatus"
	FnGetRecord    = "GetRecord"
)

// Ledger is the external system of record.
//
// Contract:
//   - Concurrency: implementations must be safe for concurrent use.
//   - Context: implementations must honor cancellation.
//   - Errors: contract violations are reported with the sentinels and
//     *ConflictError of this package; other errors are infrastructure
//     failures.
type Ledger interface {
	// Submit executes a write function and returns its receipt.
	Submit(ctx context.Context, function string, args ...string) (Receipt, error)

	// Evaluate executes a read function and returns its raw result.
	Evaluate(ctx context.Context, function string, args ...string) ([]byte, error)
}

// Receipt acknowledges a committed write.
type Receipt struct {
	TxID        string    `json:"txId"`
	Function    string    `json:"function"`
	RecordID    string    `json:"recordId"`
	Version     int64     `json:"version"`
	CommittedAt time.Time `json:"committedAt"`
}

// Record is the ledger's view of one export application.
type Record struct {
	ID        string         `json:"id"`
	Status    workflow.State `json:"status"`
	Version   int64          `json:"version"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// NewRecord returns a record in DRAFT at version 1.
func NewRecord(id string, now time.Time) Record {
	return Record{
		ID:        id,
		Status:    workflow.StateDraft,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// ApplyTransition performs the UpdateStatus compare-and-set on rec.
// Statuses are compared by their canonical value, so a record stored under
// a legacy alias still matches, and the new status is stored canonical.
// It fails with ErrAlreadyApplied if rec already holds to, and with a
// *ConflictError if rec holds a status other than from. Ledgers do not
// check workflow legality; Client does that before submitting.
func ApplyTransition(rec Record, from, to workflow.State, now time.Time) (Record, error) {
	from, to = workflow.Canonical(from), workflow.Canonical(to)
	switch workflow.Canonical(rec.Status) {
	case to:
		return rec, fmt.Errorf("%w: record %s is already %s", ErrAlreadyApplied, rec.ID, to)
	case from:
	default:
		return rec, &ConflictError{RecordID: rec.ID, Expected: from, Actual: rec.Status}
	}
	rec.Status = to
	rec.Version++
	rec.UpdatedAt = now
	return rec, nil
}

// CreateArgs checks the arguments of CreateRecord.
func CreateArgs(args []string) (id string, err error) {
	if len(args) != 1 || args[0] == "" {
		return "", fmt.Errorf("%w: %s wants (id), got %d argument(s)", ErrInvalidArgs, FnCreateRecord, len(args))
	}
	return args[0], nil
}

// UpdateArgs checks the arguments of UpdateStatus.
func UpdateArgs(args []string) (id string, from, to workflow.State, err error) {
	if len(args) != 3 || args[0] == "" || args[1] == "" || args[2] == "" {
		return "", "", "", fmt.Errorf("%w: %s wants (id, from, to), got %d argument(s)", ErrInvalidArgs, FnUpdateStatus, len(args))
	}
	return args[0], workflow.State(args[1]), workflow.State(args[2]), nil
}

// GetArgs checks the arguments of GetRecord.
func GetArgs(args []string) (id string, err error) {
	if len(args) != 1 || args[0] == "" {
		return "", fmt.Errorf("%w: %s wants (id), got %d argument(s)", ErrInvalidArgs, FnGetRecord, len(args))
	}
	return args[0], nil
}

// UnknownFunction returns the error for a function outside the contract.
func UnknownFunction(function string) error {
	return fmt.Errorf("%w: %q", ErrUnknownFunction, function)
}
