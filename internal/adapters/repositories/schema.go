package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"order-consolidation/internal/platform/db"
)

// InitSchema creates every table the tool reads or writes. Statements are
// idempotent and valid for both postgres and sqlite.
func InitSchema(ctx context.Context, conn *sql.DB, dialect db.Dialect) error {
	if conn == nil {
		return errors.New("init schema: DB is nil")
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("init schema: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	createOrdersQuery := `
	CREATE TABLE IF NOT EXISTS orders (
		order_id TEXT PRIMARY KEY,
		position INTEGER NOT NULL,
		lon DOUBLE PRECISION NOT NULL,
		lat DOUBLE PRECISION NOT NULL,
		service_time DOUBLE PRECISION NOT NULL DEFAULT 0,
		pickup_quantity INTEGER NOT NULL DEFAULT 0
	);
	`

	createDistanceCacheQuery := `
	CREATE TABLE IF NOT EXISTS distance_cache (
		origin TEXT NOT NULL,
		destination TEXT NOT NULL,
		distance_meters INTEGER NOT NULL,
		duration_seconds INTEGER NOT NULL,
		PRIMARY KEY (origin, destination)
	);
	`

	createGeocodeCacheQuery := `
	CREATE TABLE IF NOT EXISTS geocode_cache (
		address TEXT PRIMARY KEY,
		lon DOUBLE PRECISION NOT NULL,
		lat DOUBLE PRECISION NOT NULL
	);
	`

	createIndexQuery := `
	CREATE INDEX IF NOT EXISTS idx_distance_cache_destination_origin
	ON distance_cache(destination, origin);
	`

	createRunsQuery := `
	CREATE TABLE IF NOT EXISTS route_runs (
		run_id TEXT PRIMARY KEY,
		solver TEXT NOT NULL,
		started_at TEXT NOT NULL
	);
	`

	createResultsQuery := `
	CREATE TABLE IF NOT EXISTS route_results (
		run_id TEXT NOT NULL,
		route_name TEXT NOT NULL,
		depart_at TEXT NOT NULL,
		travel_seconds INTEGER NOT NULL,
		distance_meters INTEGER NOT NULL,
		PRIMARY KEY (run_id, route_name)
	);
	`

	createStopsQuery := `
	CREATE TABLE IF NOT EXISTS route_stops (
		run_id TEXT NOT NULL,
		route_name TEXT NOT NULL,
		seq INTEGER NOT NULL,
		stop_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		lon DOUBLE PRECISION NOT NULL,
		lat DOUBLE PRECISION NOT NULL,
		arrive_at TEXT NOT NULL,
		depart_at TEXT NOT NULL,
		PRIMARY KEY (run_id, route_name, seq)
	);
	`

	statements := []string{
		createOrdersQuery,
		createDistanceCacheQuery,
		createGeocodeCacheQuery,
		createIndexQuery,
		createRunsQuery,
		createResultsQuery,
		createStopsQuery,
	}

	for i, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: exec statement #%d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("init schema: commit tx: %w", err)
	}

	return nil
}
