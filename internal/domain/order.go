package domain

import (
	"fmt"
	"strings"
)

const (
	// ServiceTimePerOrder is the flat per-order service estimate in minutes.
	// Consolidated stops get this value times the number of orders they carry.
	ServiceTimePerOrder = 0.25
)

// CurbApproach tells the solver which side of the vehicle a stop must be on.
type CurbApproach int

const (
	CurbEitherSide CurbApproach = 0
	CurbRightSide  CurbApproach = 1
	CurbLeftSide   CurbApproach = 2
	CurbNoUTurn    CurbApproach = 3
)

// Represents a single service or delivery stop.
//
// ID is the stable key used across consolidation, the external VRP solve and
// expansion. Sequence is an ordering hint for solvers that honour one; nil
// means the solver is free to place the stop.
type Order struct {
	ID             string
	Location       Coordinates
	ServiceTime    float64
	PickupQuantity int
	CurbApproach   CurbApproach
	RouteName      string
	Sequence       *int
}

// ValidateOrderID rejects identifiers that cannot round-trip through the
// dependency file.
func ValidateOrderID(id string) error {
	if strings.TrimSpace(id) == "" {
		return &FormatError{Reason: "order id must not be empty"}
	}
	if strings.TrimSpace(id) != id {
		return &FormatError{Reason: fmt.Sprintf("order id %q has leading or trailing whitespace", id)}
	}
	if strings.Contains(id, ",") {
		return &FormatError{Reason: fmt.Sprintf("order id %q contains a comma", id)}
	}
	if strings.ContainsAny(id, "\r\n") {
		return &FormatError{Reason: fmt.Sprintf("order id %q contains a line break", id)}
	}
	return nil
}

// ValidateOrders checks every id and fails on the first duplicate.
func ValidateOrders(orders []Order) error {
	seen := make(map[string]struct{}, len(orders))
	for i, o := range orders {
		if err := ValidateOrderID(o.ID); err != nil {
			return fmt.Errorf("validate orders: index %d: %w", i, err)
		}
		if _, ok := seen[o.ID]; ok {
			return fmt.Errorf("validate orders: index %d: %w", i, &FormatError{Reason: fmt.Sprintf("duplicate order id %q", o.ID)})
		}
		seen[o.ID] = struct{}{}
	}
	return nil
}

// AsConsolidated returns a copy of o carrying the aggregate attributes of a
// group of n orders. Prior service time and quantity are discarded.
func (o Order) AsConsolidated(n int) Order {
	o.ServiceTime = ServiceTimePerOrder * float64(n)
	o.PickupQuantity = n
	o.CurbApproach = CurbRightSide
	return o
}

// AsExpanded returns a copy of o assigned to route and reset to a fresh stop.
func (o Order) AsExpanded(route string) Order {
	o.RouteName = route
	o.ServiceTime = ServiceTimePerOrder
	o.Sequence = nil
	o.CurbApproach = CurbRightSide
	return o
}
