package fault

import (
	"context"
	"errors"
)

// Kind identifies the class of a failure.
type Kind int

const (
	// KindUnknown is reported for untagged errors.
	KindUnknown Kind = iota
	// KindValidation marks an illegal request, e.g. a forbidden transition.
	// Never retried.
	KindValidation
	// KindTransient marks a failure that is safe to retry.
	KindTransient
	// KindFatal marks a dependency failure that must not be retried.
	KindFatal
	// KindBreakerOpen marks a call rejected without reaching the dependency.
	KindBreakerOpen
	// KindTimeout marks an elapsed deadline. The underlying operation may
	// still be running.
	KindTimeout
	// KindCanceled marks work abandoned by the caller.
	KindCanceled
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindTransient:
		return "transient"
	case KindFatal:
		return "fatal"
	case KindBreakerOpen:
		return "breaker_open"
	case KindTimeout:
		return "timeout"
	case KindCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Kinded is implemented by errors that carry their own Kind.
type Kinded interface {
	FaultKind() Kind
}

// KindOf returns the kind of the first tagged error in err's chain.
// Context errors map to KindTimeout and KindCanceled.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}

	var k Kinded
	if errors.As(err, &k) {
		return k.FaultKind()
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	if errors.Is(err, context.Canceled) {
		return KindCanceled
	}
	return KindUnknown
}

// Is reports whether err is tagged with kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Error is a message tagged with a Kind. Values are usable as sentinels.
type Error struct {
	kind     Kind
	msg      string
	rejected bool
}

// New creates a tagged sentinel error.
func New(kind Kind, msg string) *Error {
	return &Error{kind: kind, msg: msg}
}

// NewRejection creates a tagged sentinel for a request a healthy
// dependency refused, such as an unknown ID or a duplicate write.
func NewRejection(kind Kind, msg string) *Error {
	return &Error{kind: kind, msg: msg, rejected: true}
}

func (e *Error) Error() string { return e.msg }

// FaultKind returns the tagged kind.
func (e *Error) FaultKind() Kind { return e.kind }

// Rejected reports whether e was created by NewRejection.
func (e *Error) Rejected() bool { return e.rejected }

// IsRejection reports whether err's chain holds an error marked as a
// refusal by a healthy dependency. Such errors say nothing about the
// dependency's health.
func IsRejection(err error) bool {
	var r interface{ Rejected() bool }
	return errors.As(err, &r) && r.Rejected()
}

// wrapped tags an existing error without changing its message.
type wrapped struct {
	kind Kind
	err  error
}

func (w *wrapped) Error() string   { return w.err.Error() }
func (w *wrapped) Unwrap() error   { return w.err }
func (w *wrapped) FaultKind() Kind { return w.kind }

// Wrap tags err with kind. The outermost tag wins in KindOf.
// Wrap(nil, k) returns nil.
func Wrap(err error, kind Kind) error {
	if err == nil {
		return nil
	}
	return &wrapped{kind: kind, err: err}
}

// Transient tags err as safe to retry.
func Transient(err error) error { return Wrap(err, KindTransient) }

// Fatal tags err as not retryable.
func Fatal(err error) error { return Wrap(err, KindFatal) }
