package sink

import (
	"context"
	"encoding/json"
	"errors"
	"order-consolidation/internal/adapters/repositories"
	"order-consolidation/internal/domain"
	"order-consolidation/internal/platform/db"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
)

func testPlan(route string) *domain.RoutePlan {
	depart := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	return &domain.RoutePlan{
		RouteName:           route,
		DepartAt:            depart,
		TotalTravelSeconds:  600,
		TotalDistanceMeters: 4200,
		Stops: []domain.PlannedStop{
			{Sequence: 1, ID: "D1", Kind: domain.StopDepot, ArriveAt: depart, DepartAt: depart},
			{Sequence: 2, ID: "O1", Kind: domain.StopOrder, ArriveAt: depart.Add(5 * time.Minute), DepartAt: depart.Add(5*time.Minute + 15*time.Second)},
			{Sequence: 3, ID: "D2", Kind: domain.StopDepot, ArriveAt: depart.Add(10 * time.Minute), DepartAt: depart.Add(10 * time.Minute)},
		},
	}
}

func TestFileName(t *testing.T) {
	tests := map[string]string{
		"Route 1":    "Route_1-4040f2d1.json",
		"north/east": "north_east-44565c18.json",
		"..":         "route-a3d4a70d.json",
		"R-7_b":      "R-7_b.json",
		"Truck/1":    "Truck_1-b30acf1c.json",
		"Truck_1":    "Truck_1.json",
	}
	for in, want := range tests {
		if got := FileName(in); got != want {
			t.Fatalf("FileName(%q): expected %q, got %q", in, want, got)
		}
	}
}

func TestFileSinkKeepsSimilarRoutesApart(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := NewFileSink(dir, "run-1")
	if err != nil {
		t.Fatalf("new sink: %v", err)
	}

	var wg sync.WaitGroup
	refs := make([]string, 2)
	errs := make([]error, 2)
	for i, route := range []string{"Truck/1", "Truck_1"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			refs[i], errs[i] = s.Save(ctx, testPlan(route))
		}()
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("save %d: %v", i, err)
		}
	}
	if refs[0] == refs[1] {
		t.Fatalf("both routes written to %q", refs[0])
	}
	for i, want := range []string{"Truck/1", "Truck_1"} {
		b, err := os.ReadFile(refs[i])
		if err != nil {
			t.Fatalf("read %q: %v", refs[i], err)
		}
		var doc PlanDocument
		if err := json.Unmarshal(b, &doc); err != nil {
			t.Fatalf("decode %q: %v", refs[i], err)
		}
		if doc.RouteName != want {
			t.Fatalf("%q holds route %q, expected %q", refs[i], doc.RouteName, want)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 files and no temp leftovers, got %d", len(entries))
	}
}

func TestFileSinkRejectsClaimedName(t *testing.T) {
	ctx := context.Background()
	s, err := NewFileSink(t.TempDir(), "run-1")
	if err != nil {
		t.Fatalf("new sink: %v", err)
	}

	if _, err := s.Save(ctx, testPlan("Truck/1")); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := s.Save(ctx, testPlan("Truck/1")); err != nil {
		t.Fatalf("second save of same route: %v", err)
	}
	if _, err := s.Save(ctx, testPlan("Truck_1-b30acf1c")); err == nil {
		t.Fatalf("expected error for a route whose file name is already taken")
	}

	s.Reserve("orders.json")
	if _, err := s.Save(ctx, testPlan("orders")); err == nil {
		t.Fatalf("expected error for a route mapping to a reserved file")
	}
}

func TestFileSinkSave(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	s, err := NewFileSink(dir, "run-1")
	if err != nil {
		t.Fatalf("new sink: %v", err)
	}

	ref, err := s.Save(context.Background(), testPlan("Route 1"))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if ref != filepath.Join(dir, "Route_1-4040f2d1.json") {
		t.Fatalf("unexpected ref %q", ref)
	}

	b, err := os.ReadFile(ref)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var doc PlanDocument
	if err := json.Unmarshal(b, &doc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if doc.RunID != "run-1" || doc.RouteName != "Route 1" || len(doc.Stops) != 3 {
		t.Fatalf("unexpected document: %+v", doc)
	}
	if doc.Stops[1].ID != "O1" || doc.Stops[1].Kind != domain.StopOrder {
		t.Fatalf("unexpected order stop: %+v", doc.Stops[1])
	}
}

func TestSQLSinkReplacesRouteWithinRun(t *testing.T) {
	ctx := context.Background()
	conn, dialect, err := db.Open("sqlite::memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer conn.Close()
	if err := repositories.InitSchema(ctx, conn, dialect); err != nil {
		t.Fatalf("init schema: %v", err)
	}

	s, err := NewSQLSink(ctx, conn, dialect, "", "local")
	if err != nil {
		t.Fatalf("new sink: %v", err)
	}
	if s.RunID == "" {
		t.Fatalf("expected generated run id")
	}

	for i := 0; i < 2; i++ {
		ref, err := s.Save(ctx, testPlan("R1"))
		if err != nil {
			t.Fatalf("save #%d: %v", i+1, err)
		}
		if !strings.HasSuffix(ref, "/R1") {
			t.Fatalf("unexpected ref %q", ref)
		}
	}

	var results, stops int
	if err := conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM route_results WHERE run_id = ?`, s.RunID).Scan(&results); err != nil {
		t.Fatalf("count results: %v", err)
	}
	if err := conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM route_stops WHERE run_id = ?`, s.RunID).Scan(&stops); err != nil {
		t.Fatalf("count stops: %v", err)
	}
	if results != 1 || stops != 3 {
		t.Fatalf("expected 1 result and 3 stops, got %d and %d", results, stops)
	}
}

func TestRedisSinkStoresAndPublishes(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	s, err := NewRedisSinkFromClient(rdb, "run-9", time.Hour)
	if err != nil {
		t.Fatalf("new sink: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ps := rdb.Subscribe(ctx, s.Channel())
	defer ps.Close()
	if _, err := ps.Receive(ctx); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	ref, err := s.Save(ctx, testPlan("R1"))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if ref != "redis://routeprep:plan:run-9:R1" {
		t.Fatalf("unexpected ref %q", ref)
	}

	stored, err := mr.Get(s.PlanKey("R1"))
	if err != nil {
		t.Fatalf("get stored plan: %v", err)
	}
	var doc PlanDocument
	if err := json.Unmarshal([]byte(stored), &doc); err != nil {
		t.Fatalf("decode stored plan: %v", err)
	}
	if doc.RouteName != "R1" || doc.TotalDistanceMeters != 4200 {
		t.Fatalf("unexpected stored plan: %+v", doc)
	}
	if mr.TTL(s.PlanKey("R1")) != time.Hour {
		t.Fatalf("expected ttl of one hour, got %v", mr.TTL(s.PlanKey("R1")))
	}

	msg, err := ps.ReceiveMessage(ctx)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	var evt RouteEvent
	if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if evt.Type != "route.solved" || evt.RouteName != "R1" || evt.Stops != 1 {
		t.Fatalf("unexpected event: %+v", evt)
	}
}

type failingSink struct{ err error }

func (f failingSink) Save(ctx context.Context, plan *domain.RoutePlan) (string, error) {
	return "", f.err
}

type recordingSink struct{ saved []string }

func (r *recordingSink) Save(ctx context.Context, plan *domain.RoutePlan) (string, error) {
	r.saved = append(r.saved, plan.RouteName)
	return "rec:" + plan.RouteName, nil
}

func TestMultiSink(t *testing.T) {
	a, b := &recordingSink{}, &recordingSink{}
	ref, err := MultiSink{a, b}.Save(context.Background(), testPlan("R1"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ref != "rec:R1; rec:R1" {
		t.Fatalf("unexpected ref %q", ref)
	}

	boom := errors.New("boom")
	c := &recordingSink{}
	_, err = MultiSink{failingSink{err: boom}, c}.Save(context.Background(), testPlan("R2"))
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if len(c.saved) != 0 {
		t.Fatalf("expected later sinks to be skipped, got %v", c.saved)
	}
}
