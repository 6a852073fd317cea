package ports

import (
	"context"
	"order-consolidation/internal/domain"
)

// Optional extension of DistanceProvider that supports batched lookups.
type DistanceMatrixProvider interface {
	DistanceProvider
	// Return a full matrix; result[i][j] is points[i] -> points[j].
	GetMatrix(ctx context.Context, points []domain.Coordinates) ([][]DistanceResult, error)
}
