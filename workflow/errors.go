package workflow

import (
	"fmt"
	"strings"

	"github.com/jonwraymond/ledgerops/fault"
)

// Sentinel errors for workflow operations.
var (
	// ErrInvalidTransition is returned when a transition is not in the graph.
	ErrInvalidTransition = fault.New(fault.KindValidation, "workflow: invalid status transition")

	// ErrUnauthorizedTransition is returned when an organization may not
	// perform an otherwise legal transition.
	ErrUnauthorizedTransition = fault.New(fault.KindValidation, "workflow: organization not authorized for transition")

	// ErrInvalidGraph is returned by NewGraph when a definition breaks the
	// table invariants.
	ErrInvalidGraph = fault.New(fault.KindValidation, "workflow: invalid graph definition")
)

// ValidationError describes a rejected transition request.
type ValidationError struct {
	From    State
	To      State
	Allowed []State
	Org     Org
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Err == ErrUnauthorizedTransition {
		return fmt.Sprintf("organization %q may not move status from %s to %s", e.Org, e.From, e.To)
	}

	allowed := "none (terminal state)"
	if len(e.Allowed) > 0 {
		names := make([]string, len(e.Allowed))
		for i, s := range e.Allowed {
			names[i] = string(s)
		}
		allowed = strings.Join(names, ", ")
	}
	return fmt.Sprintf("invalid status transition from %s to %s; allowed transitions: %s", e.From, e.To, allowed)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// FaultKind reports KindValidation.
func (e *ValidationError) FaultKind() fault.Kind { return fault.KindValidation }
