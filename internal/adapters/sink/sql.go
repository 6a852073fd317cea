package sink

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"order-consolidation/internal/domain"
	"order-consolidation/internal/platform/db"
	"order-consolidation/internal/platform/obs"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SQLSink records plans in route_results and route_stops under a run id.
// Saving a route again within the same run replaces its rows.
type SQLSink struct {
	DB      *sql.DB
	Dialect db.Dialect
	RunID   string
}

// NewSQLSink registers a new run and returns a sink bound to it. An empty
// runID gets a fresh uuid.
func NewSQLSink(ctx context.Context, conn *sql.DB, dialect db.Dialect, runID, solver string) (*SQLSink, error) {
	if conn == nil {
		return nil, errors.New("sql sink: DB is nil")
	}
	if runID == "" {
		runID = uuid.NewString()
	}

	s := &SQLSink{DB: conn, Dialect: dialect, RunID: runID}
	q := fmt.Sprintf(`
	INSERT INTO route_runs (run_id, solver, started_at)
	VALUES (%s)
	ON CONFLICT (run_id) DO NOTHING;
	`, s.placeholders(3))
	if _, err := conn.ExecContext(ctx, q, runID, solver, formatTime(time.Now())); err != nil {
		return nil, fmt.Errorf("sql sink: register run %s: %w", runID, err)
	}
	return s, nil
}

func (s *SQLSink) placeholders(n int) string {
	ph := make([]string, n)
	for i := range ph {
		ph[i] = s.Dialect.Placeholder(i + 1)
	}
	return strings.Join(ph, ", ")
}

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func (s *SQLSink) Save(ctx context.Context, plan *domain.RoutePlan) (_ string, err error) {
	defer obs.Time(ctx, "sink.sql.Save")(&err)

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("sql sink: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	p1, p2 := s.Dialect.Placeholder(1), s.Dialect.Placeholder(2)
	for _, table := range []string{"route_stops", "route_results"} {
		q := fmt.Sprintf(`DELETE FROM %s WHERE run_id = %s AND route_name = %s;`, table, p1, p2)
		if _, err := tx.ExecContext(ctx, q, s.RunID, plan.RouteName); err != nil {
			return "", fmt.Errorf("sql sink: clear %s for route %q: %w", table, plan.RouteName, err)
		}
	}

	q := fmt.Sprintf(`
	INSERT INTO route_results (run_id, route_name, depart_at, travel_seconds, distance_meters)
	VALUES (%s);
	`, s.placeholders(5))
	if _, err := tx.ExecContext(ctx, q, s.RunID, plan.RouteName, formatTime(plan.DepartAt), plan.TotalTravelSeconds, plan.TotalDistanceMeters); err != nil {
		return "", fmt.Errorf("sql sink: insert result for route %q: %w", plan.RouteName, err)
	}

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`
	INSERT INTO route_stops (run_id, route_name, seq, stop_id, kind, lon, lat, arrive_at, depart_at)
	VALUES (%s);
	`, s.placeholders(9)))
	if err != nil {
		return "", fmt.Errorf("sql sink: prepare stop insert: %w", err)
	}
	defer stmt.Close()

	for _, st := range plan.Stops {
		_, err := stmt.ExecContext(ctx,
			s.RunID, plan.RouteName, st.Sequence, st.ID, string(st.Kind),
			st.Location.Lon, st.Location.Lat, formatTime(st.ArriveAt), formatTime(st.DepartAt),
		)
		if err != nil {
			return "", fmt.Errorf("sql sink: insert stop %q seq=%d: %w", st.ID, st.Sequence, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("sql sink: commit route %q: %w", plan.RouteName, err)
	}
	return fmt.Sprintf("sql://route_results/%s/%s", s.RunID, plan.RouteName), nil
}
