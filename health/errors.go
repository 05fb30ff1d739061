package health

import "errors"

var (
	// ErrCheckFailed marks a check that observed a failing dependency.
	ErrCheckFailed = errors.New("health: check failed")

	// ErrCheckTimeout is set on results the Aggregator stopped waiting for.
	ErrCheckTimeout = errors.New("health: check timed out")

	// ErrCheckPanicked is set on results whose check panicked.
	ErrCheckPanicked = errors.New("health: check panicked")

	ErrCheckerNotFound = errors.New("health: no such check")
)
