package domain

// Side is the side of a street segment a point lies on, relative to the
// segment's digitized direction.
type Side int

const (
	SideNone  Side = 0
	SideRight Side = 1
	SideLeft  Side = 2
)

func (s Side) String() string {
	switch s {
	case SideRight:
		return "RIGHT"
	case SideLeft:
		return "LEFT"
	default:
		return "NONE"
	}
}

// EdgeMatch is the nearest street segment found for one order.
type EdgeMatch struct {
	SegmentID string
	PosAlong  float64
	Side      Side
}

// GroupKey identifies a consolidation group.
type GroupKey struct {
	SegmentID string
	Side      Side
}

func (m EdgeMatch) Key() GroupKey { return GroupKey{SegmentID: m.SegmentID, Side: m.Side} }
