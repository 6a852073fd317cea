package domain

import (
	"errors"
	"testing"
)

func TestAsConsolidated(t *testing.T) {
	o := Order{ID: "O1", ServiceTime: 4, PickupQuantity: 9, CurbApproach: CurbLeftSide}

	got := o.AsConsolidated(3)
	if got.ServiceTime != 0.75 || got.PickupQuantity != 3 || got.CurbApproach != CurbRightSide {
		t.Fatalf("unexpected consolidated order: %+v", got)
	}
	if o.ServiceTime != 4 {
		t.Fatalf("receiver was modified: %+v", o)
	}
}

func TestAsExpanded(t *testing.T) {
	seq := 4
	o := Order{ID: "O2", ServiceTime: 0.75, PickupQuantity: 3, Sequence: &seq}

	got := o.AsExpanded("R1")
	if got.RouteName != "R1" || got.ServiceTime != ServiceTimePerOrder || got.Sequence != nil || got.CurbApproach != CurbRightSide {
		t.Fatalf("unexpected expanded order: %+v", got)
	}
}

func TestValidateOrders(t *testing.T) {
	tests := []struct {
		name    string
		orders  []Order
		wantErr bool
	}{
		{"ok", []Order{{ID: "A"}, {ID: "B"}}, false},
		{"empty", []Order{{ID: " "}}, true},
		{"comma", []Order{{ID: "A,B"}}, true},
		{"newline", []Order{{ID: "A\nB"}}, true},
		{"padded", []Order{{ID: " A"}}, true},
		{"inner space", []Order{{ID: "A B"}}, false},
		{"duplicate", []Order{{ID: "A"}, {ID: "A"}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateOrders(tt.orders)
			if !tt.wantErr {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var fe *FormatError
			if !errors.As(err, &fe) {
				t.Fatalf("expected FormatError, got %v", err)
			}
		})
	}
}

func TestErrorMessages(t *testing.T) {
	if got := (&FormatError{Line: 3, Reason: "blank line"}).Error(); got != "format: line 3: blank line" {
		t.Fatalf("unexpected message %q", got)
	}
	inner := ErrNoEdgeMatch
	if err := (&InputMatchError{OrderID: "O1", Err: inner}); !errors.Is(err, ErrNoEdgeMatch) {
		t.Fatalf("InputMatchError must unwrap")
	}
	if SideLeft.String() != "LEFT" || Side(9).String() != "NONE" {
		t.Fatalf("unexpected side names")
	}
}
