package edge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"order-consolidation/internal/domain"
	"os"
	"strings"
)

// DefaultMaxDistanceMeters is the search tolerance used when none is set.
const DefaultMaxDistanceMeters = 500.0

type segment struct {
	id     string
	points []domain.Coordinates
}

// Network is an in-memory street network that answers nearest-edge lookups
// by scanning every segment. It is read-only after loading and safe for
// concurrent use.
type Network struct {
	segments    []segment
	MaxDistance float64
}

type featureCollection struct {
	Type     string    `json:"type"`
	Features []feature `json:"features"`
}

type feature struct {
	Type     string `json:"type"`
	Geometry struct {
		Type        string      `json:"type"`
		Coordinates [][]float64 `json:"coordinates"`
	} `json:"geometry"`
	Properties map[string]any `json:"properties"`
}

// LoadNetwork reads a GeoJSON FeatureCollection of LineStrings. The segment
// id is properties.id when present, otherwise the feature's index.
func LoadNetwork(path string, maxDistance float64) (*Network, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load network: read %q: %w", path, err)
	}
	n, err := ParseNetwork(b, maxDistance)
	if err != nil {
		return nil, fmt.Errorf("load network %q: %w", path, err)
	}
	return n, nil
}

func ParseNetwork(data []byte, maxDistance float64) (*Network, error) {
	var fc featureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse geojson: %w", err)
	}
	if fc.Type != "FeatureCollection" {
		return nil, fmt.Errorf("parse geojson: expected FeatureCollection, got %q", fc.Type)
	}

	if maxDistance <= 0 {
		maxDistance = DefaultMaxDistanceMeters
	}
	n := &Network{MaxDistance: maxDistance, segments: make([]segment, 0, len(fc.Features))}
	seen := make(map[string]struct{}, len(fc.Features))

	for i, f := range fc.Features {
		if f.Geometry.Type != "LineString" {
			return nil, fmt.Errorf("feature %d: unsupported geometry %q", i, f.Geometry.Type)
		}
		if len(f.Geometry.Coordinates) < 2 {
			return nil, fmt.Errorf("feature %d: line needs at least 2 positions", i)
		}

		id := fmt.Sprint(i)
		if v, ok := f.Properties["id"]; ok && v != nil {
			id = formatID(v)
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("feature %d: duplicate segment id %q", i, id)
		}
		seen[id] = struct{}{}

		pts := make([]domain.Coordinates, 0, len(f.Geometry.Coordinates))
		for j, c := range f.Geometry.Coordinates {
			if len(c) < 2 {
				return nil, fmt.Errorf("feature %d: position %d: invalid coordinate", i, j)
			}
			pts = append(pts, domain.Coordinates{Lon: c[0], Lat: c[1]})
		}
		n.segments = append(n.segments, segment{id: id, points: pts})
	}

	if len(n.segments) == 0 {
		return nil, errors.New("network has no segments")
	}
	return n, nil
}

// JSON numbers decode as float64; render integral ids without a decimal point.
func formatID(v any) string {
	if f, ok := v.(float64); ok && f == math.Trunc(f) {
		return fmt.Sprintf("%.0f", f)
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

// Len is the number of segments.
func (n *Network) Len() int { return len(n.segments) }

// Lookup returns the closest segment within MaxDistance. PosAlong is the
// fraction of the segment's length from its first vertex. Ties go to the
// segment listed first.
func (n *Network) Lookup(ctx context.Context, p domain.Coordinates) (domain.EdgeMatch, error) {
	if err := ctx.Err(); err != nil {
		return domain.EdgeMatch{}, err
	}

	pp := toXY(p, p.Lat)
	bestDist := math.Inf(1)
	var best domain.EdgeMatch

	for _, s := range n.segments {
		total := 0.0
		lengths := make([]float64, len(s.points)-1)
		for i := 0; i < len(s.points)-1; i++ {
			a, b := toXY(s.points[i], p.Lat), toXY(s.points[i+1], p.Lat)
			lengths[i] = math.Hypot(b.x-a.x, b.y-a.y)
			total += lengths[i]
		}

		walked := 0.0
		for i := 0; i < len(s.points)-1; i++ {
			a, b := toXY(s.points[i], p.Lat), toXY(s.points[i+1], p.Lat)
			t, d := project(a, b, pp)
			if d < bestDist {
				bestDist = d
				pos := 0.0
				if total > 0 {
					pos = (walked + t*lengths[i]) / total
				}
				best = domain.EdgeMatch{SegmentID: s.id, PosAlong: pos, Side: sideOf(a, b, pp)}
			}
			walked += lengths[i]
		}
	}

	if bestDist > n.MaxDistance {
		return domain.EdgeMatch{}, fmt.Errorf("nearest segment is %.0fm away (limit %.0fm): %w", bestDist, n.MaxDistance, domain.ErrNoEdgeMatch)
	}
	return best, nil
}
