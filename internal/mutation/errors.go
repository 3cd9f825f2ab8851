package mutation

import "errors"

// Capability errors, returned by [Coordinator.Run] before anything is read.
var (
	ErrFilterNotAccepted        = errors.New("command does not accept a filter")
	ErrModificationsNotAccepted = errors.New("command does not accept modifications")
	ErrNoModifications          = errors.New("additional text or modifications must be provided")
)

// ErrNotApplicable is returned by an Operation's Mutate when the operation
// does not apply to a record (completing a completed task). The record is
// skipped like a validation failure.
var ErrNotApplicable = errors.New("not applicable")

var errNoStore = errors.New("coordinator has no store")
