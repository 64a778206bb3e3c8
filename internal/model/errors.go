package model

import (
	"errors"
	"fmt"
)

// ErrInvalidRequest marks caller mistakes: unknown types, malformed or too
// many ids.
var ErrInvalidRequest = errors.New("invalid request")

// UpstreamFetchError reports a failed request to the upstream timetable
// service. Status is zero when no response was received.
type UpstreamFetchError struct {
	URL    string
	Status int
	Err    error
}

func (e *UpstreamFetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("upstream fetch %s: status %d", e.URL, e.Status)
	}
	return fmt.Sprintf("upstream fetch %s: %v", e.URL, e.Err)
}

func (e *UpstreamFetchError) Unwrap() error { return e.Err }

// SchemaValidationError means an upstream document did not have the expected
// shape. This is a contract break on the upstream side.
type SchemaValidationError struct {
	Field  string
	Reason string
}

func (e *SchemaValidationError) Error() string {
	return fmt.Sprintf("upstream schema: %s: %s", e.Field, e.Reason)
}

// InvalidPeriodError is returned for a period id that names no window.
type InvalidPeriodError struct {
	Period PeriodID
}

func (e *InvalidPeriodError) Error() string {
	return fmt.Sprintf("invalid period %q", e.Period)
}

// InvariantViolationError means an aggregate failed its own consistency
// checks. It always indicates a bug.
type InvariantViolationError struct {
	Reason string
}

func (e *InvariantViolationError) Error() string {
	return "aggregate invariant violated: " + e.Reason
}
