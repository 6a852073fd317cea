package services

import (
	"context"
	"errors"
	"order-consolidation/internal/domain"
	"reflect"
	"testing"
)

// fakeLookup answers by order location key.
type fakeLookup struct {
	matches map[string]domain.EdgeMatch
	errs    map[string]error
	calls   int
}

func (f *fakeLookup) Lookup(ctx context.Context, p domain.Coordinates) (domain.EdgeMatch, error) {
	f.calls++
	if err, ok := f.errs[p.Key()]; ok {
		return domain.EdgeMatch{}, err
	}
	m, ok := f.matches[p.Key()]
	if !ok {
		return domain.EdgeMatch{}, domain.ErrNoEdgeMatch
	}
	return m, nil
}

func at(i int) domain.Coordinates {
	return domain.Coordinates{Lon: float64(i) / 1000, Lat: 1}
}

func order(id string, i int) domain.Order {
	return domain.Order{ID: id, Location: at(i), ServiceTime: 7, PickupQuantity: 9}
}

func newLookup(entries map[int]domain.EdgeMatch) *fakeLookup {
	f := &fakeLookup{matches: map[string]domain.EdgeMatch{}, errs: map[string]error{}}
	for i, m := range entries {
		f.matches[at(i).Key()] = m
	}
	return f
}

func TestConsolidateGroupsBySegmentAndSide(t *testing.T) {
	lookup := newLookup(map[int]domain.EdgeMatch{
		1: {SegmentID: "S7", PosAlong: 0.2, Side: domain.SideRight},
		2: {SegmentID: "S7", PosAlong: 0.6, Side: domain.SideRight},
		3: {SegmentID: "S7", PosAlong: 0.4, Side: domain.SideLeft},
	})
	orders := []domain.Order{order("O1", 1), order("O2", 2), order("O3", 3)}

	c := &Consolidator{Lookup: lookup}
	res, err := c.Consolidate(context.Background(), orders)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(res.Representatives) != 2 {
		t.Fatalf("expected 2 representatives, got %d", len(res.Representatives))
	}
	o1, o3 := res.Representatives[0], res.Representatives[1]
	if o1.ID != "O1" || o1.ServiceTime != 0.5 || o1.PickupQuantity != 2 || o1.CurbApproach != domain.CurbRightSide {
		t.Fatalf("unexpected first representative: %+v", o1)
	}
	if o3.ID != "O3" || o3.ServiceTime != 0.25 || o3.PickupQuantity != 1 || o3.CurbApproach != domain.CurbRightSide {
		t.Fatalf("unexpected second representative: %+v", o3)
	}

	members, _ := res.Dependencies.Members("O1")
	if !reflect.DeepEqual(members, []string{"O1", "O2"}) {
		t.Fatalf("unexpected O1 group: %v", members)
	}
	members, _ = res.Dependencies.Members("O3")
	if !reflect.DeepEqual(members, []string{"O3"}) {
		t.Fatalf("singleton group must still be recorded, got %v", members)
	}
	if len(res.Excluded) != 0 {
		t.Fatalf("unexpected exclusions: %v", res.Excluded)
	}

	// Inputs are not modified.
	if orders[0].ServiceTime != 7 {
		t.Fatalf("input order was mutated: %+v", orders[0])
	}
}

func TestConsolidatePartitionAndAggregation(t *testing.T) {
	entries := map[int]domain.EdgeMatch{}
	var orders []domain.Order
	for i := 0; i < 40; i++ {
		entries[i] = domain.EdgeMatch{SegmentID: []string{"A", "B", "C"}[i%3], Side: domain.Side(i % 2)}
		orders = append(orders, order(string(rune('a'+i%26))+string(rune('0'+i/26)), i))
	}

	res, err := (&Consolidator{Lookup: newLookup(entries)}).Consolidate(context.Background(), orders)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Every order appears exactly once across all groups.
	ids := res.Dependencies.OrderIDs()
	if len(ids) != len(orders) {
		t.Fatalf("expected %d ids, got %d", len(orders), len(ids))
	}
	seen := map[string]bool{}
	for _, id := range ids {
		if seen[id] {
			t.Fatalf("order %s appears twice", id)
		}
		seen[id] = true
	}

	total := 0
	for _, rep := range res.Representatives {
		members, ok := res.Dependencies.Members(rep.ID)
		if !ok {
			t.Fatalf("representative %s has no group", rep.ID)
		}
		if rep.PickupQuantity != len(members) {
			t.Fatalf("rep %s: quantity %d, group size %d", rep.ID, rep.PickupQuantity, len(members))
		}
		if rep.ServiceTime != 0.25*float64(len(members)) {
			t.Fatalf("rep %s: service time %v", rep.ID, rep.ServiceTime)
		}
		total += rep.PickupQuantity
	}
	if total != len(orders) {
		t.Fatalf("quantities sum to %d, want %d", total, len(orders))
	}
	if res.Dependencies.Len() != 6 {
		t.Fatalf("expected 6 groups (3 segments x 2 sides), got %d", res.Dependencies.Len())
	}
}

func TestConsolidateIsDeterministic(t *testing.T) {
	entries := map[int]domain.EdgeMatch{
		1: {SegmentID: "S1", Side: domain.SideLeft},
		2: {SegmentID: "S2", Side: domain.SideLeft},
		3: {SegmentID: "S1", Side: domain.SideLeft},
		4: {SegmentID: "S2", Side: domain.SideRight},
	}
	orders := []domain.Order{order("O1", 1), order("O2", 2), order("O3", 3), order("O4", 4)}

	first, err := (&Consolidator{Lookup: newLookup(entries)}).Consolidate(context.Background(), orders)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := (&Consolidator{Lookup: newLookup(entries)}).Consolidate(context.Background(), orders)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !reflect.DeepEqual(first.Representatives, second.Representatives) {
		t.Fatalf("representatives differ between runs")
	}
	if !reflect.DeepEqual(first.Dependencies.OrderIDs(), second.Dependencies.OrderIDs()) {
		t.Fatalf("dependency maps differ between runs")
	}
	if got := first.Dependencies.Representatives(); !reflect.DeepEqual(got, []string{"O1", "O2", "O4"}) {
		t.Fatalf("groups must follow first appearance, got %v", got)
	}
}

func TestConsolidateExcludesUnmatched(t *testing.T) {
	lookup := newLookup(map[int]domain.EdgeMatch{
		1: {SegmentID: "S1", Side: domain.SideRight},
	})
	orders := []domain.Order{order("O1", 1), order("O2", 2)}

	res, err := (&Consolidator{Lookup: lookup}).Consolidate(context.Background(), orders)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Excluded) != 1 || res.Excluded[0].OrderID != "O2" {
		t.Fatalf("expected O2 excluded, got %+v", res.Excluded)
	}
	if _, ok := res.Dependencies.RepresentativeOf("O2"); ok {
		t.Fatalf("excluded order must not be in the dependency map")
	}
}

func TestConsolidateAbortsOnLookupFailure(t *testing.T) {
	boom := errors.New("network unavailable")
	lookup := newLookup(map[int]domain.EdgeMatch{1: {SegmentID: "S1"}})
	lookup.errs[at(2).Key()] = boom

	_, err := (&Consolidator{Lookup: lookup}).Consolidate(context.Background(), []domain.Order{order("O1", 1), order("O2", 2)})
	if !errors.Is(err, boom) {
		t.Fatalf("expected lookup failure, got %v", err)
	}
}

func TestConsolidateRejectsBadIDs(t *testing.T) {
	lookup := newLookup(map[int]domain.EdgeMatch{1: {SegmentID: "S1"}, 2: {SegmentID: "S1"}})

	tests := map[string][]domain.Order{
		"duplicate": {order("O1", 1), order("O1", 2)},
		"comma":     {order("O1,O2", 1)},
		"empty":     {order("", 1)},
	}
	for name, orders := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := (&Consolidator{Lookup: lookup}).Consolidate(context.Background(), orders)
			var fe *domain.FormatError
			if !errors.As(err, &fe) {
				t.Fatalf("expected FormatError, got %v", err)
			}
		})
	}
	if lookup.calls != 0 {
		t.Fatalf("lookup must not run on invalid input, got %d calls", lookup.calls)
	}
}

func TestConsolidateEmpty(t *testing.T) {
	res, err := (&Consolidator{Lookup: newLookup(nil)}).Consolidate(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Representatives) != 0 || res.Dependencies.Len() != 0 {
		t.Fatalf("expected empty result, got %+v", res)
	}
}
