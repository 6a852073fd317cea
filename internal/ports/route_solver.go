package ports

import (
	"context"
	"order-consolidation/internal/domain"
	"time"
)

// SolveRequest describes one single-vehicle sequencing problem.
//
// FixedFirst and FixedLast are optional anchors. When PreserveEnds is set the
// solver must keep them first and last and only reorder Stops.
type SolveRequest struct {
	RouteName    string
	DepartAt     time.Time
	Stops        []domain.Order
	FixedFirst   *domain.Depot
	FixedLast    *domain.Depot
	PreserveEnds bool
}

// RouteSolver sequences stops for a single route.
type RouteSolver interface {
	Solve(ctx context.Context, req SolveRequest) (*domain.RoutePlan, error)
}
