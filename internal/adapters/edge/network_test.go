package edge

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"order-consolidation/internal/domain"
	"os"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

const testNetwork = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "properties": {"id": 101},
     "geometry": {"type": "LineString", "coordinates": [[0, 0], [0.01, 0]]}},
    {"type": "Feature", "properties": {"id": "north"},
     "geometry": {"type": "LineString", "coordinates": [[0, 0.02], [0.005, 0.02], [0.01, 0.02]]}}
  ]
}`

func TestNetworkLookup(t *testing.T) {
	n, err := ParseNetwork([]byte(testNetwork), 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n.Len() != 2 {
		t.Fatalf("expected 2 segments, got %d", n.Len())
	}

	tests := []struct {
		name    string
		p       domain.Coordinates
		segment string
		side    domain.Side
		pos     float64
	}{
		{"left of eastbound", domain.Coordinates{Lon: 0.005, Lat: 0.0001}, "101", domain.SideLeft, 0.5},
		{"right of eastbound", domain.Coordinates{Lon: 0.0025, Lat: -0.0001}, "101", domain.SideRight, 0.25},
		{"multi-vertex segment", domain.Coordinates{Lon: 0.0075, Lat: 0.0199}, "north", domain.SideRight, 0.75},
		{"on the line", domain.Coordinates{Lon: 0.001, Lat: 0}, "101", domain.SideNone, 0.1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := n.Lookup(context.Background(), tt.p)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if m.SegmentID != tt.segment {
				t.Fatalf("expected segment %s, got %s", tt.segment, m.SegmentID)
			}
			if m.Side != tt.side {
				t.Fatalf("expected side %v, got %v", tt.side, m.Side)
			}
			if math.Abs(m.PosAlong-tt.pos) > 1e-6 {
				t.Fatalf("expected pos %.3f, got %.6f", tt.pos, m.PosAlong)
			}
		})
	}
}

func TestNetworkLookupTooFar(t *testing.T) {
	n, err := ParseNetwork([]byte(testNetwork), 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = n.Lookup(context.Background(), domain.Coordinates{Lon: 1, Lat: 1})
	if !errors.Is(err, domain.ErrNoEdgeMatch) {
		t.Fatalf("expected ErrNoEdgeMatch, got %v", err)
	}
}

func TestParseNetworkRejectsBadInput(t *testing.T) {
	cases := map[string]string{
		"not a collection": `{"type": "Feature"}`,
		"polygon":          `{"type": "FeatureCollection", "features": [{"type": "Feature", "geometry": {"type": "Polygon", "coordinates": []}}]}`,
		"single point":     `{"type": "FeatureCollection", "features": [{"type": "Feature", "geometry": {"type": "LineString", "coordinates": [[0, 0]]}}]}`,
		"empty":            `{"type": "FeatureCollection", "features": []}`,
		"duplicate ids": `{"type": "FeatureCollection", "features": [
			{"type": "Feature", "properties": {"id": 1}, "geometry": {"type": "LineString", "coordinates": [[0, 0], [1, 0]]}},
			{"type": "Feature", "properties": {"id": 1}, "geometry": {"type": "LineString", "coordinates": [[0, 1], [1, 1]]}}]}`,
	}

	for name, body := range cases {
		if _, err := ParseNetwork([]byte(body), 0); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestLoadNetworkFallsBackToFeatureIndex(t *testing.T) {
	path := filepath.Join(t.TempDir(), "streets.geojson")
	body := `{"type": "FeatureCollection", "features": [
		{"type": "Feature", "properties": {}, "geometry": {"type": "LineString", "coordinates": [[0, 0], [0.01, 0]]}}]}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	n, err := LoadNetwork(path, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n.MaxDistance != DefaultMaxDistanceMeters {
		t.Fatalf("expected default max distance, got %v", n.MaxDistance)
	}

	m, err := n.Lookup(context.Background(), domain.Coordinates{Lon: 0.005, Lat: 0.0001})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.SegmentID != "0" {
		t.Fatalf("expected segment 0, got %s", m.SegmentID)
	}
}

func TestNewPostGISLookupRejectsUnsafeIdentifiers(t *testing.T) {
	if _, err := NewPostGISLookup(nil, "streets", "id", "geom", 0); err == nil {
		t.Fatalf("expected error for nil db")
	}

	conn, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer conn.Close()

	bad := [][3]string{
		{"streets; DROP TABLE x", "id", "geom"},
		{"streets", "id)", "geom"},
		{"streets", "id", ""},
	}
	for _, b := range bad {
		if _, err := NewPostGISLookup(conn, b[0], b[1], b[2], 0); err == nil {
			t.Fatalf("expected error for %v", b)
		}
	}

	l, err := NewPostGISLookup(conn, "public.streets", "segment_id", "geom", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if l.MaxDistance != DefaultMaxDistanceMeters {
		t.Fatalf("expected default max distance, got %v", l.MaxDistance)
	}
}
