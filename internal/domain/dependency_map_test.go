package domain

import (
	"errors"
	"reflect"
	"testing"
)

func TestDependencyMapAdd(t *testing.T) {
	m := NewDependencyMap()
	if err := m.Add([]string{"O1", "O2"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := m.Add([]string{"O3"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if m.Len() != 2 || m.OrderCount() != 3 {
		t.Fatalf("expected 2 groups and 3 orders, got %d and %d", m.Len(), m.OrderCount())
	}
	if rep, ok := m.RepresentativeOf("O2"); !ok || rep != "O1" {
		t.Fatalf("expected O2 under O1, got %q", rep)
	}
	if !reflect.DeepEqual(m.OrderIDs(), []string{"O1", "O2", "O3"}) {
		t.Fatalf("unexpected order ids: %v", m.OrderIDs())
	}

	// Returned slices are copies.
	members, _ := m.Members("O1")
	members[0] = "changed"
	if again, _ := m.Members("O1"); again[0] != "O1" {
		t.Fatalf("Members leaked internal state")
	}
}

func TestDependencyMapRejectsOverlap(t *testing.T) {
	tests := []struct {
		name   string
		groups [][]string
	}{
		{"empty group", [][]string{{}}},
		{"empty id", [][]string{{"O1", ""}}},
		{"comma id", [][]string{{"O1,O2"}}},
		{"repeat in group", [][]string{{"O1", "O1"}}},
		{"repeat across groups", [][]string{{"O1", "O2"}, {"O2"}}},
		{"representative reused", [][]string{{"O1"}, {"O1", "O3"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewDependencyMap()
			var err error
			for _, g := range tt.groups {
				if err = m.Add(g); err != nil {
					break
				}
			}
			var fe *FormatError
			if !errors.As(err, &fe) {
				t.Fatalf("expected FormatError, got %v", err)
			}
		})
	}
}

func TestDependencyMapFailedAddLeavesMapUnchanged(t *testing.T) {
	m := NewDependencyMap()
	if err := m.Add([]string{"O1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := m.Add([]string{"O2", "O1"}); err == nil {
		t.Fatalf("expected error")
	}
	if _, ok := m.RepresentativeOf("O2"); ok {
		t.Fatalf("rejected group must not be recorded")
	}
	if m.Len() != 1 {
		t.Fatalf("expected 1 group, got %d", m.Len())
	}
}
