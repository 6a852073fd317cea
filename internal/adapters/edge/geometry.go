package edge

import (
	"math"
	"order-consolidation/internal/domain"
)

const metersPerDegree = 111320.0

// xy is a point in a local equirectangular frame, in meters. Good enough for
// street-length distances; it is not a map projection.
type xy struct{ x, y float64 }

func toXY(c domain.Coordinates, refLat float64) xy {
	return xy{
		x: c.Lon * metersPerDegree * math.Cos(refLat*math.Pi/180),
		y: c.Lat * metersPerDegree,
	}
}

// sideOf classifies p against the directed segment a->b. Positive cross
// product is left of travel direction.
func sideOf(a, b, p xy) domain.Side {
	cross := (b.x-a.x)*(p.y-a.y) - (b.y-a.y)*(p.x-a.x)
	switch {
	case cross > 1e-9:
		return domain.SideLeft
	case cross < -1e-9:
		return domain.SideRight
	default:
		return domain.SideNone
	}
}

// project returns the clamped parameter t in [0,1] of the closest point to p
// on a->b and the distance to it.
func project(a, b, p xy) (t float64, dist float64) {
	dx, dy := b.x-a.x, b.y-a.y
	l2 := dx*dx + dy*dy
	if l2 > 0 {
		t = ((p.x-a.x)*dx + (p.y-a.y)*dy) / l2
		t = math.Max(0, math.Min(1, t))
	}
	cx, cy := a.x+t*dx, a.y+t*dy
	return t, math.Hypot(p.x-cx, p.y-cy)
}
