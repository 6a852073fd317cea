package ors

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"net/http"
	"order-consolidation/internal/adapters/cache"
	"order-consolidation/internal/domain"
	"order-consolidation/internal/platform/obs"
	"order-consolidation/internal/ports"
)

type matrixRequest struct {
	Locations [][]float64 `json:"locations"`
	Metrics   []string    `json:"metrics"`
}

type matrixResponse struct {
	Distances [][]*float64 `json:"distances"`
	Durations [][]*float64 `json:"durations"`
}

// MatrixProvider implements ports.DistanceMatrixProvider with the ORS
// matrix endpoint, backed by an optional persistent cache.
type MatrixProvider struct {
	client *Client
	cache  *cache.SQLDistanceCache
}

func NewMatrixProvider(client *Client, distanceCache *cache.SQLDistanceCache) (*MatrixProvider, error) {
	if client == nil {
		return nil, errors.New("ORS matrix provider: client is nil")
	}
	return &MatrixProvider{client: client, cache: distanceCache}, nil
}

// Delegate to the matrix path to reuse caching.
func (m *MatrixProvider) GetDistance(
	ctx context.Context,
	origin domain.Coordinates,
	destination domain.Coordinates,
) (ports.DistanceResult, error) {
	matrix, err := m.GetMatrix(ctx, []domain.Coordinates{origin, destination})
	if err != nil {
		return ports.DistanceResult{}, fmt.Errorf("get ORS distance %s -> %s: %w", origin.Key(), destination.Key(), err)
	}
	return matrix[0][1], nil
}

// GetMatrix returns the full travel matrix for points. Rows already present
// in the cache are not requested again.
func (m *MatrixProvider) GetMatrix(
	ctx context.Context,
	points []domain.Coordinates,
) (_ [][]ports.DistanceResult, err error) {
	defer obs.Time(ctx, "ors.GetMatrix")(&err)

	n := len(points)
	out := make([][]ports.DistanceResult, n)
	for i := range out {
		out[i] = make([]ports.DistanceResult, n)
	}
	if n < 2 {
		return out, nil
	}

	keys := make([]string, n)
	for i, p := range points {
		keys[i] = p.Key()
	}

	complete := true
	if m.cache != nil {
		for i := range points {
			hits, err := m.cache.GetMany(ctx, keys[i], keys)
			if err != nil {
				return nil, fmt.Errorf("ORS get distance cache: %w", err)
			}
			for j := range points {
				if i == j || keys[i] == keys[j] {
					continue
				}
				r, ok := hits[keys[j]]
				if !ok {
					complete = false
					continue
				}
				out[i][j] = r
			}
		}
	} else {
		complete = false
	}

	if complete {
		return out, nil
	}

	fetched, err := m.fetchMatrix(ctx, points)
	if err != nil {
		return nil, fmt.Errorf("fetching matrix: %w", err)
	}

	for i := range points {
		row := make(map[string]ports.DistanceResult, n)
		for j := range points {
			if i == j {
				continue
			}
			out[i][j] = fetched[i][j]
			row[keys[j]] = fetched[i][j]
		}
		if m.cache != nil {
			if err := m.cache.PutMany(ctx, keys[i], row); err != nil {
				log.Printf("distance cache write failed: %v", err)
			}
		}
	}

	return out, nil
}

func (m *MatrixProvider) fetchMatrix(
	ctx context.Context,
	points []domain.Coordinates,
) ([][]ports.DistanceResult, error) {
	endpoint := fmt.Sprintf("%s/v2/matrix/%s", m.client.baseURL, m.client.profile)

	locations := make([][]float64, 0, len(points))
	for _, p := range points {
		locations = append(locations, p.CoordsToList())
	}

	payload, err := json.Marshal(matrixRequest{
		Locations: locations,
		Metrics:   []string{"distance", "duration"},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal matrix request: %w", err)
	}

	resp, err := m.client.doWithRetry(ctx, func() (*http.Request, error) {
		return m.client.newRequest(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	})
	if err != nil {
		return nil, fmt.Errorf("matrix request failed: %w", err)
	}
	defer resp.Body.Close()

	var mr matrixResponse
	if err := json.NewDecoder(resp.Body).Decode(&mr); err != nil {
		return nil, fmt.Errorf("decode matrix response: %w", err)
	}

	n := len(points)
	if len(mr.Distances) != n || len(mr.Durations) != n {
		return nil, fmt.Errorf(
			"expected %d rows; got distances=%d durations=%d",
			n, len(mr.Distances), len(mr.Durations),
		)
	}

	out := make([][]ports.DistanceResult, n)
	for i := 0; i < n; i++ {
		if len(mr.Distances[i]) != n || len(mr.Durations[i]) != n {
			return nil, fmt.Errorf("row %d length does not match %d locations", i, n)
		}
		out[i] = make([]ports.DistanceResult, n)
		for j := 0; j < n; j++ {
			metersPtr := mr.Distances[i][j]
			secondsPtr := mr.Durations[i][j]
			if metersPtr == nil || secondsPtr == nil {
				return nil, fmt.Errorf("matrix returned no route between %s and %s", points[i].Key(), points[j].Key())
			}

			// ORS returns float metrics; round to nearest integer for domain consistency.
			out[i][j] = ports.DistanceResult{
				DistanceMeters:  int(math.Round(*metersPtr)),
				DurationSeconds: int(math.Round(*secondsPtr)),
			}
		}
	}

	return out, nil
}
