package distance

import (
	"context"
	"errors"
	"math"
	"order-consolidation/internal/domain"
	"order-consolidation/internal/ports"
)

const earthRadiusMeters = 6371000.0

// HaversineProvider estimates travel as great-circle distance at a constant
// speed. It needs no network access and is the default for the local solver.
type HaversineProvider struct {
	SpeedMPS float64
}

func NewHaversineProvider(speedKPH float64) (*HaversineProvider, error) {
	if speedKPH <= 0 {
		return nil, errors.New("haversine provider: speed must be positive")
	}
	return &HaversineProvider{SpeedMPS: speedKPH * 1000 / 3600}, nil
}

func (h *HaversineProvider) GetDistance(_ context.Context, origin, destination domain.Coordinates) (ports.DistanceResult, error) {
	return h.result(origin, destination), nil
}

func (h *HaversineProvider) GetMatrix(_ context.Context, points []domain.Coordinates) ([][]ports.DistanceResult, error) {
	out := make([][]ports.DistanceResult, len(points))
	for i := range points {
		out[i] = make([]ports.DistanceResult, len(points))
		for j := range points {
			if i != j {
				out[i][j] = h.result(points[i], points[j])
			}
		}
	}
	return out, nil
}

func (h *HaversineProvider) result(a, b domain.Coordinates) ports.DistanceResult {
	meters := HaversineMeters(a, b)
	return ports.DistanceResult{
		DistanceMeters:  int(math.Round(meters)),
		DurationSeconds: int(math.Round(meters / h.SpeedMPS)),
	}
}

// HaversineMeters is the great-circle distance between a and b.
func HaversineMeters(a, b domain.Coordinates) float64 {
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(a.Lat*math.Pi/180)*math.Cos(b.Lat*math.Pi/180)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return earthRadiusMeters * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}
