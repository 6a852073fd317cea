package ports

import (
	"context"
	"order-consolidation/internal/domain"
)

// Geocoder resolves addresses to coordinates, keyed by the input strings.
type Geocoder interface {
	Geocode(ctx context.Context, addresses []string) (map[string]domain.Coordinates, error)
}
