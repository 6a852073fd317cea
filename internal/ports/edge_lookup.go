package ports

import (
	"context"
	"order-consolidation/internal/domain"
)

// NearestEdgeLookup snaps a point to the street network.
type NearestEdgeLookup interface {
	// Return the nearest segment, or an error wrapping domain.ErrNoEdgeMatch.
	Lookup(ctx context.Context, p domain.Coordinates) (domain.EdgeMatch, error)
}
