package task

import (
	"errors"
	"fmt"
)

// Sentinel causes carried by [ValidationError].
var (
	ErrEmptyValue     = errors.New("empty value not allowed")
	ErrImmutable      = errors.New("attribute is immutable")
	ErrRequired       = errors.New("attribute is required")
	ErrInvalidName    = errors.New("invalid attribute name")
	ErrInvalidStatus  = errors.New("unknown status")
	ErrInvalidTag     = errors.New("tags cannot contain whitespace or commas")
	ErrInvalidUUID    = errors.New("not a uuid")
	ErrInvalidDate    = errors.New("not a date")
	ErrInvalidNumber  = errors.New("not a number")
	ErrInvalidIndex   = errors.New("not a non-negative integer")
	ErrInvalidPeriod  = errors.New("not a recurrence period")
	ErrSelfReference  = errors.New("task cannot depend on itself")
	ErrMissingPeriod  = errors.New("recurring task requires recur and due")
	ErrParentIsItself = errors.New("task cannot be its own parent")
)

// ValidationError reports an attribute value that failed its parse rule.
// It rejects a single mutation; callers processing a batch skip the record
// and continue.
type ValidationError struct {
	Attr  string
	Value string
	Err   error
}

func (e *ValidationError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("invalid %s: %v", e.Attr, e.Err)
	}

	return fmt.Sprintf("invalid %s %q: %v", e.Attr, e.Value, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func invalid(attr, value string, err error) error {
	return &ValidationError{Attr: attr, Value: value, Err: err}
}
