package distance

import (
	"context"
	"fmt"
	"order-consolidation/internal/domain"
	"order-consolidation/internal/ports"
)

type MockPair struct {
	From, To domain.Coordinates
	Meters   int
	Seconds  int
}

// MockDistanceProvider answers only the pairs it was given. Identical points
// are zero apart.
type MockDistanceProvider struct {
	m map[string]ports.DistanceResult
}

func NewMockDistanceProvider(pairs []MockPair) *MockDistanceProvider {
	m := make(map[string]ports.DistanceResult, len(pairs))
	for _, p := range pairs {
		m[p.From.Key()+"|"+p.To.Key()] = ports.DistanceResult{DistanceMeters: p.Meters, DurationSeconds: p.Seconds}
	}
	return &MockDistanceProvider{m: m}
}

func (p *MockDistanceProvider) GetDistance(ctx context.Context, origin, destination domain.Coordinates) (ports.DistanceResult, error) {
	if origin.Key() == destination.Key() {
		return ports.DistanceResult{}, nil
	}
	r, ok := p.m[origin.Key()+"|"+destination.Key()]
	if !ok {
		return ports.DistanceResult{}, fmt.Errorf("missing pair %s -> %s", origin.Key(), destination.Key())
	}

	return r, nil
}

func (p *MockDistanceProvider) GetMatrix(ctx context.Context, points []domain.Coordinates) ([][]ports.DistanceResult, error) {
	out := make([][]ports.DistanceResult, len(points))
	for i := range points {
		out[i] = make([]ports.DistanceResult, len(points))
		for j := range points {
			r, err := p.GetDistance(ctx, points[i], points[j])
			if err != nil {
				return nil, err
			}
			out[i][j] = r
		}
	}
	return out, nil
}
