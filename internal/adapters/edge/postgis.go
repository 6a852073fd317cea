package edge

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"order-consolidation/internal/domain"
	"order-consolidation/internal/platform/obs"
	"regexp"
)

var identRE = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// PostGISLookup finds the nearest street in a PostGIS table of LineStrings
// stored in EPSG:4326.
type PostGISLookup struct {
	DB          *sql.DB
	query       string
	MaxDistance float64
}

// NewPostGISLookup validates the identifiers it will interpolate into SQL.
func NewPostGISLookup(conn *sql.DB, table, idColumn, geomColumn string, maxDistance float64) (*PostGISLookup, error) {
	if conn == nil {
		return nil, errors.New("postgis lookup: db is nil")
	}
	for _, ident := range []string{table, idColumn, geomColumn} {
		if !identRE.MatchString(ident) {
			return nil, fmt.Errorf("postgis lookup: invalid identifier %q", ident)
		}
	}
	if maxDistance <= 0 {
		maxDistance = DefaultMaxDistanceMeters
	}

	// Only identifiers are interpolated; coordinates and tolerance are bound.
	q := fmt.Sprintf(`
	SELECT id, f,
		ST_X(ST_LineInterpolatePoint(geom, GREATEST(f - 0.0001, 0))),
		ST_Y(ST_LineInterpolatePoint(geom, GREATEST(f - 0.0001, 0))),
		ST_X(ST_LineInterpolatePoint(geom, LEAST(f + 0.0001, 1))),
		ST_Y(ST_LineInterpolatePoint(geom, LEAST(f + 0.0001, 1)))
	FROM (
		SELECT s.%[2]s::text AS id, s.%[3]s AS geom, ST_LineLocatePoint(s.%[3]s, q.pt) AS f
		FROM %[1]s s, (SELECT ST_SetSRID(ST_MakePoint($1, $2), 4326) AS pt) q
		WHERE ST_DWithin(s.%[3]s::geography, q.pt::geography, $3)
		ORDER BY s.%[3]s <-> q.pt
		LIMIT 1
	) nearest;
	`, table, idColumn, geomColumn)

	return &PostGISLookup{DB: conn, query: q, MaxDistance: maxDistance}, nil
}

func (l *PostGISLookup) Lookup(ctx context.Context, p domain.Coordinates) (_ domain.EdgeMatch, err error) {
	defer obs.Time(ctx, "postgis.Lookup")(&err)

	var id string
	var f, ax, ay, bx, by float64
	row := l.DB.QueryRowContext(ctx, l.query, p.Lon, p.Lat, l.MaxDistance)
	if err := row.Scan(&id, &f, &ax, &ay, &bx, &by); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.EdgeMatch{}, fmt.Errorf("no segment within %.0fm: %w", l.MaxDistance, domain.ErrNoEdgeMatch)
		}
		return domain.EdgeMatch{}, fmt.Errorf("postgis lookup: query nearest segment: %w", err)
	}

	a := toXY(domain.Coordinates{Lon: ax, Lat: ay}, p.Lat)
	b := toXY(domain.Coordinates{Lon: bx, Lat: by}, p.Lat)
	return domain.EdgeMatch{SegmentID: id, PosAlong: f, Side: sideOf(a, b, toXY(p, p.Lat))}, nil
}
