// Package fault classifies errors into a small closed set of kinds.
//
// Every layer of ledgerops tags the errors it produces with a Kind so that
// callers can branch on "what went wrong" without depending on concrete error
// types from other packages:
//
//	switch fault.KindOf(err) {
//	case fault.KindValidation:
//	    // illegal transition, report to the user
//	case fault.KindBreakerOpen:
//	    // dependency is cooling down, try later
//	case fault.KindTransient, fault.KindTimeout:
//	    // retry budget exhausted
//	}
package fault
