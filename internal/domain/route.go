package domain

import "time"

// Route is a vehicle route from the VRP problem with its fixed anchors.
// EndDepot may be empty, in which case the route ends at its last order.
type Route struct {
	Name          string
	StartDepot    string
	EndDepot      string
	EarliestStart time.Time
}

// Depot is a named start or end location.
type Depot struct {
	Name     string
	Location Coordinates
}

// RouteAssignment maps an order id to the route the solver placed it on.
type RouteAssignment map[string]string

// StopKind distinguishes depot anchors from orders in a planned sequence.
type StopKind string

const (
	StopDepot StopKind = "depot"
	StopOrder StopKind = "order"
)

// Represents a single visit in a solved route.
type PlannedStop struct {
	Sequence int
	ID       string
	Kind     StopKind
	Location Coordinates
	ArriveAt time.Time
	DepartAt time.Time
}

// Represents the solved stop sequence for a single route.
// A RoutePlan is the output of a RouteSolver and is immutable planning data.
type RoutePlan struct {
	RouteName           string
	DepartAt            time.Time
	Stops               []PlannedStop
	TotalTravelSeconds  int
	TotalDistanceMeters int
}

// OrderIDs returns the order stops in visiting order.
func (p *RoutePlan) OrderIDs() []string {
	out := make([]string, 0, len(p.Stops))
	for _, s := range p.Stops {
		if s.Kind == StopOrder {
			out = append(out, s.ID)
		}
	}
	return out
}
