package solver

import (
	"context"
	"order-consolidation/internal/adapters/distance"
	"order-consolidation/internal/domain"
	"order-consolidation/internal/ports"
	"reflect"
	"testing"
	"time"
)

var (
	hub = domain.Coordinates{Lon: 0, Lat: 0}
	a   = domain.Coordinates{Lon: 0.01, Lat: 0}
	b   = domain.Coordinates{Lon: 0.02, Lat: 0}
	c   = domain.Coordinates{Lon: 0.03, Lat: 0}
)

func symmetric(pairs ...distance.MockPair) []distance.MockPair {
	out := make([]distance.MockPair, 0, 2*len(pairs))
	for _, p := range pairs {
		out = append(out, p, distance.MockPair{From: p.To, To: p.From, Meters: p.Meters, Seconds: p.Seconds})
	}
	return out
}

func testProvider() *distance.MockDistanceProvider {
	return distance.NewMockDistanceProvider(symmetric(
		distance.MockPair{From: hub, To: a, Meters: 1000, Seconds: 300},
		distance.MockPair{From: hub, To: b, Meters: 2000, Seconds: 600},
		distance.MockPair{From: hub, To: c, Meters: 1500, Seconds: 450},
		distance.MockPair{From: a, To: b, Meters: 800, Seconds: 240},
		distance.MockPair{From: a, To: c, Meters: 700, Seconds: 210},
		distance.MockPair{From: b, To: c, Meters: 900, Seconds: 270},
	))
}

func testOrders() []domain.Order {
	return []domain.Order{
		{ID: "A", Location: a, ServiceTime: 0.25},
		{ID: "B", Location: b, ServiceTime: 0.25},
		{ID: "C", Location: c, ServiceTime: 0.25},
	}
}

func TestLocalSolverFixedEnds(t *testing.T) {
	s, err := NewLocalSolver(testProvider(), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	depart := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	plan, err := s.Solve(context.Background(), ports.SolveRequest{
		RouteName:    "R1",
		DepartAt:     depart,
		Stops:        testOrders(),
		FixedFirst:   &domain.Depot{Name: "HUB", Location: hub},
		FixedLast:    &domain.Depot{Name: "HUB-END", Location: hub},
		PreserveEnds: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(plan.Stops) != 5 {
		t.Fatalf("expected 5 stops, got %d", len(plan.Stops))
	}
	if plan.Stops[0].ID != "HUB" || plan.Stops[4].ID != "HUB-END" {
		t.Fatalf("depots not fixed at the ends: first=%q last=%q", plan.Stops[0].ID, plan.Stops[4].ID)
	}
	// Nearest neighbour gives A,C,B (1380s); 2-opt improves it to A,B,C.
	if got := plan.OrderIDs(); !reflect.DeepEqual(got, []string{"A", "B", "C"}) {
		t.Fatalf("unexpected order sequence: %v", got)
	}

	if plan.TotalTravelSeconds != 1260 {
		t.Fatalf("duration = %d, want 1260", plan.TotalTravelSeconds)
	}
	if plan.TotalDistanceMeters != 4200 {
		t.Fatalf("distance = %d, want 4200", plan.TotalDistanceMeters)
	}

	wantArrive := []time.Time{
		depart,
		depart.Add(5 * time.Minute),
		depart.Add(9*time.Minute + 15*time.Second),
		depart.Add(14 * time.Minute),
		depart.Add(21*time.Minute + 45*time.Second),
	}
	for i, st := range plan.Stops {
		if !st.ArriveAt.Equal(wantArrive[i]) {
			t.Fatalf("stop %d (%s): arrive %v, want %v", i, st.ID, st.ArriveAt, wantArrive[i])
		}
		if st.Sequence != i+1 {
			t.Fatalf("stop %d: sequence %d", i, st.Sequence)
		}
	}
	if got := plan.Stops[1].DepartAt.Sub(plan.Stops[1].ArriveAt); got != 15*time.Second {
		t.Fatalf("expected 15s service at A, got %s", got)
	}
}

func TestLocalSolverOpenEnd(t *testing.T) {
	s, err := NewLocalSolver(testProvider(), 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	plan, err := s.Solve(context.Background(), ports.SolveRequest{
		RouteName:  "R1",
		Stops:      testOrders(),
		FixedFirst: &domain.Depot{Name: "HUB", Location: hub},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// From the hub: A (300), then C (210), then B (270) is 780s and no
	// reversal inside the open tail does better.
	if got := plan.OrderIDs(); !reflect.DeepEqual(got, []string{"A", "C", "B"}) {
		t.Fatalf("unexpected order sequence: %v", got)
	}
	if plan.TotalTravelSeconds != 780 {
		t.Fatalf("duration = %d, want 780", plan.TotalTravelSeconds)
	}
	if last := plan.Stops[len(plan.Stops)-1]; last.Kind != domain.StopOrder {
		t.Fatalf("expected route to end at an order, got %+v", last)
	}
}

func TestLocalSolverMissingDistance(t *testing.T) {
	s, err := NewLocalSolver(distance.NewMockDistanceProvider(nil), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = s.Solve(context.Background(), ports.SolveRequest{
		RouteName:  "R1",
		Stops:      testOrders(),
		FixedFirst: &domain.Depot{Name: "HUB", Location: hub},
	})
	if err == nil {
		t.Fatalf("expected error for missing distances")
	}
}

func TestNewLocalSolverRequiresProvider(t *testing.T) {
	if _, err := NewLocalSolver(nil, 0); err == nil {
		t.Fatalf("expected error")
	}
}
