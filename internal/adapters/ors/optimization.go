package ors

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"order-consolidation/internal/domain"
	"order-consolidation/internal/platform/obs"
	"order-consolidation/internal/ports"
	"time"
)

type optimizationJob struct {
	ID       int       `json:"id"`
	Location []float64 `json:"location"`
	Service  int       `json:"service,omitempty"`
}

type optimizationVehicle struct {
	ID      int       `json:"id"`
	Profile string    `json:"profile"`
	Start   []float64 `json:"start,omitempty"`
	End     []float64 `json:"end,omitempty"`
}

type optimizationRequest struct {
	Jobs     []optimizationJob     `json:"jobs"`
	Vehicles []optimizationVehicle `json:"vehicles"`
}

type optimizationStep struct {
	Type     string  `json:"type"`
	ID       int     `json:"id"`
	Arrival  int     `json:"arrival"`
	Duration int     `json:"duration"`
	Service  int     `json:"service"`
	Distance float64 `json:"distance"`
}

type optimizationResponse struct {
	Code   int `json:"code"`
	Routes []struct {
		Vehicle  int                `json:"vehicle"`
		Duration int                `json:"duration"`
		Distance float64            `json:"distance"`
		Steps    []optimizationStep `json:"steps"`
	} `json:"routes"`
	Unassigned []struct {
		ID int `json:"id"`
	} `json:"unassigned"`
}

// Solver sequences a single route with the ORS optimization endpoint.
// Depots map to the vehicle start and end, which the endpoint always keeps
// first and last.
type Solver struct {
	client *Client
}

func NewSolver(client *Client) (*Solver, error) {
	if client == nil {
		return nil, errors.New("ORS solver: client is nil")
	}
	return &Solver{client: client}, nil
}

func (s *Solver) Solve(ctx context.Context, req ports.SolveRequest) (_ *domain.RoutePlan, err error) {
	defer obs.Time(ctx, "ors.Solve")(&err)

	if req.FixedFirst == nil && req.FixedLast == nil {
		return nil, errors.New("ors solve: route needs a start or end depot")
	}

	plan := &domain.RoutePlan{RouteName: req.RouteName, DepartAt: req.DepartAt}
	if len(req.Stops) == 0 {
		plan.Stops = depotOnlyStops(req)
		return plan, nil
	}

	body := optimizationRequest{
		Jobs:     make([]optimizationJob, 0, len(req.Stops)),
		Vehicles: []optimizationVehicle{{ID: 1, Profile: s.client.profile}},
	}
	for i, o := range req.Stops {
		body.Jobs = append(body.Jobs, optimizationJob{
			ID:       i + 1,
			Location: o.Location.CoordsToList(),
			Service:  int(math.Round(o.ServiceTime * 60)),
		})
	}
	if req.FixedFirst != nil {
		body.Vehicles[0].Start = req.FixedFirst.Location.CoordsToList()
	}
	if req.FixedLast != nil {
		body.Vehicles[0].End = req.FixedLast.Location.CoordsToList()
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal optimization request: %w", err)
	}

	endpoint := s.client.baseURL + "/optimization"
	resp, err := s.client.doWithRetry(ctx, func() (*http.Request, error) {
		return s.client.newRequest(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	})
	if err != nil {
		return nil, fmt.Errorf("optimization request failed: %w", err)
	}
	defer resp.Body.Close()

	var decoded optimizationResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode optimization response: %w", err)
	}

	if len(decoded.Unassigned) > 0 {
		return nil, fmt.Errorf("optimization left %d stops unassigned", len(decoded.Unassigned))
	}
	if len(decoded.Routes) != 1 {
		return nil, fmt.Errorf("expected 1 route; got %d", len(decoded.Routes))
	}

	r := decoded.Routes[0]
	seq := 0
	for _, step := range r.Steps {
		arrive := req.DepartAt.Add(time.Duration(step.Arrival) * time.Second)
		ps := domain.PlannedStop{ArriveAt: arrive, DepartAt: arrive.Add(time.Duration(step.Service) * time.Second)}

		switch step.Type {
		case "start":
			ps.Kind, ps.ID, ps.Location = domain.StopDepot, req.FixedFirst.Name, req.FixedFirst.Location
		case "end":
			ps.Kind, ps.ID, ps.Location = domain.StopDepot, req.FixedLast.Name, req.FixedLast.Location
		case "job":
			if step.ID < 1 || step.ID > len(req.Stops) {
				return nil, fmt.Errorf("optimization returned unknown job id %d", step.ID)
			}
			o := req.Stops[step.ID-1]
			ps.Kind, ps.ID, ps.Location = domain.StopOrder, o.ID, o.Location
		default:
			continue
		}

		seq++
		ps.Sequence = seq
		plan.Stops = append(plan.Stops, ps)
	}

	plan.TotalTravelSeconds = r.Duration
	plan.TotalDistanceMeters = int(math.Round(r.Distance))
	return plan, nil
}

func depotOnlyStops(req ports.SolveRequest) []domain.PlannedStop {
	stops := make([]domain.PlannedStop, 0, 2)
	if req.FixedFirst != nil {
		stops = append(stops, domain.PlannedStop{Sequence: 1, ID: req.FixedFirst.Name, Kind: domain.StopDepot, Location: req.FixedFirst.Location, ArriveAt: req.DepartAt, DepartAt: req.DepartAt})
	}
	if req.FixedLast != nil {
		stops = append(stops, domain.PlannedStop{Sequence: len(stops) + 1, ID: req.FixedLast.Name, Kind: domain.StopDepot, Location: req.FixedLast.Location, ArriveAt: req.DepartAt, DepartAt: req.DepartAt})
	}
	return stops
}
