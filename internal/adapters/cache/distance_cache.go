package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"order-consolidation/internal/platform/db"
	"order-consolidation/internal/platform/obs"
	"order-consolidation/internal/ports"
	"strings"
)

// SQLDistanceCache is a SQL-backed cache for origin->destination distance
// results. Keys are coordinate keys (domain.Coordinates.Key) and are expected
// to be normalized by the caller.
type SQLDistanceCache struct {
	DB      *sql.DB
	Dialect db.Dialect
}

func NewSQLDistanceCache(conn *sql.DB, dialect db.Dialect) *SQLDistanceCache {
	return &SQLDistanceCache{DB: conn, Dialect: dialect}
}

// Fetch cached distances for one origin and multiple destinations.
func (s *SQLDistanceCache) GetMany(
	ctx context.Context,
	origin string,
	destinations []string,
) (_ map[string]ports.DistanceResult, err error) {
	defer obs.Time(ctx, "distance.cache.GetMany")(&err)

	if s.DB == nil {
		return nil, errors.New("distance cache: db is nil")
	}

	if origin == "" {
		return nil, errors.New("get distance cache: origin must not be empty")
	}

	uniq := uniqueKeys(destinations)
	if len(uniq) == 0 {
		return map[string]ports.DistanceResult{}, nil
	}

	args := make([]any, 0, 1+len(uniq))
	args = append(args, origin)
	ph := make([]string, 0, len(uniq))
	for i, d := range uniq {
		args = append(args, d)
		ph = append(ph, s.Dialect.Placeholder(i+2))
	}

	// Only the placeholder structure is interpolated; all values remain parameterized.
	q := fmt.Sprintf(`
	SELECT destination, distance_meters, duration_seconds
    FROM distance_cache
    WHERE origin = %s
        AND destination IN (%s);
	`, s.Dialect.Placeholder(1), strings.Join(ph, ","))

	rows, err := s.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("get distance cache: query distance_cache table: %w", err)
	}
	defer rows.Close()

	out := make(map[string]ports.DistanceResult, len(uniq))
	for rows.Next() {
		var dest string
		var meters, seconds int
		if err := rows.Scan(&dest, &meters, &seconds); err != nil {
			return nil, fmt.Errorf("get distance cache: scan rows: %w", err)
		}
		out[dest] = ports.DistanceResult{
			DistanceMeters:  meters,
			DurationSeconds: seconds,
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get distance cache: row iteration: %w", err)
	}

	return out, nil
}

// Store many cached distance results for a single origin.
func (s *SQLDistanceCache) PutMany(
	ctx context.Context,
	origin string,
	results map[string]ports.DistanceResult,
) error {
	if s.DB == nil {
		return errors.New("distance cache: db is nil")
	}

	if origin == "" {
		return errors.New("insert distance cache: origin must not be empty")
	}

	if len(results) == 0 {
		return nil
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("insert distance cache: db begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Both postgres and sqlite accept ON CONFLICT ... DO UPDATE with EXCLUDED.
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`
	INSERT INTO distance_cache (origin, destination, distance_meters, duration_seconds)
    VALUES (%s, %s, %s, %s)
	ON CONFLICT (origin, destination) DO UPDATE
	SET distance_meters = EXCLUDED.distance_meters,
		duration_seconds = EXCLUDED.duration_seconds;
	`, s.Dialect.Placeholder(1), s.Dialect.Placeholder(2), s.Dialect.Placeholder(3), s.Dialect.Placeholder(4)))
	if err != nil {
		return fmt.Errorf("insert distance cache: db prepare: %w", err)
	}
	defer stmt.Close()

	for dest, r := range results {
		if strings.TrimSpace(dest) == "" {
			return fmt.Errorf("insert distance cache: empty destination key")
		}

		if _, err := stmt.ExecContext(ctx, origin, dest, r.DistanceMeters, r.DurationSeconds); err != nil {
			return fmt.Errorf("insert distance cache dest=%q: %w", dest, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("insert distance cache commit: %w", err)
	}

	return nil
}

func uniqueKeys(keys []string) []string {
	seen := map[string]struct{}{}
	uniq := make([]string, 0, len(keys))
	for _, k := range keys {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}

		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		uniq = append(uniq, k)
	}
	return uniq
}
