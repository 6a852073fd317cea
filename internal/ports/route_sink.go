package ports

import (
	"context"
	"order-consolidation/internal/domain"
)

// RouteSink persists a solved route as soon as it is available.
// Implementations must be safe for concurrent use.
type RouteSink interface {
	// Save stores plan and returns a human-readable reference to it.
	Save(ctx context.Context, plan *domain.RoutePlan) (string, error)
}
