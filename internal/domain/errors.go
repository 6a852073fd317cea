package domain

import (
	"errors"
	"fmt"
)

// ErrNoEdgeMatch is returned by edge lookups when a location is too far from
// (or has no) street segment.
var ErrNoEdgeMatch = errors.New("no street segment matched")

// InputMatchError records an order that could not be matched to the network.
// It is recoverable: the order is excluded and the run continues.
type InputMatchError struct {
	OrderID string
	Err     error
}

func (e *InputMatchError) Error() string {
	return fmt.Sprintf("order %q: match to network: %v", e.OrderID, e.Err)
}

func (e *InputMatchError) Unwrap() error { return e.Err }

// ConsistencyError means consolidation output and solver output disagree.
// It aborts the whole expansion.
type ConsistencyError struct {
	OrderID string
	Reason  string
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("consistency: order %q: %s", e.OrderID, e.Reason)
}

// SolverError is a failure to sequence one route. Sibling routes are unaffected.
type SolverError struct {
	RouteName string
	Err       error
}

func (e *SolverError) Error() string {
	return fmt.Sprintf("route %q: %v", e.RouteName, e.Err)
}

func (e *SolverError) Unwrap() error { return e.Err }

// FormatError is a malformed dependency line or order identifier.
// Line is 1-based; zero when the error did not come from a file.
type FormatError struct {
	Line   int
	Reason string
}

func (e *FormatError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("format: line %d: %s", e.Line, e.Reason)
	}
	return "format: " + e.Reason
}
