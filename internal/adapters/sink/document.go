package sink

import (
	"order-consolidation/internal/domain"
	"time"
)

type StopDocument struct {
	Sequence int             `json:"sequence"`
	ID       string          `json:"id"`
	Kind     domain.StopKind `json:"kind"`
	Lon      float64         `json:"lon"`
	Lat      float64         `json:"lat"`
	ArriveAt time.Time       `json:"arrive_at"`
	DepartAt time.Time       `json:"depart_at"`
}

// PlanDocument is the JSON shape every sink emits for a solved route.
type PlanDocument struct {
	RunID                string         `json:"run_id,omitempty"`
	RouteName            string         `json:"route_name"`
	DepartAt             time.Time      `json:"depart_at"`
	TotalDistanceMeters  int            `json:"total_distance_meters"`
	TotalDurationSeconds int            `json:"total_duration_seconds"`
	Stops                []StopDocument `json:"stops"`
}

func NewPlanDocument(runID string, p *domain.RoutePlan) PlanDocument {
	doc := PlanDocument{
		RunID:                runID,
		RouteName:            p.RouteName,
		DepartAt:             p.DepartAt,
		TotalDistanceMeters:  p.TotalDistanceMeters,
		TotalDurationSeconds: p.TotalTravelSeconds,
		Stops:                make([]StopDocument, 0, len(p.Stops)),
	}
	for _, s := range p.Stops {
		doc.Stops = append(doc.Stops, StopDocument{
			Sequence: s.Sequence,
			ID:       s.ID,
			Kind:     s.Kind,
			Lon:      s.Location.Lon,
			Lat:      s.Location.Lat,
			ArriveAt: s.ArriveAt,
			DepartAt: s.DepartAt,
		})
	}
	return doc
}
