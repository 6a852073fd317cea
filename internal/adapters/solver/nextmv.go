package solver

import (
	"context"
	"errors"
	"fmt"
	"math"
	"order-consolidation/internal/domain"
	"order-consolidation/internal/platform/obs"
	"order-consolidation/internal/ports"
	"time"

	"github.com/nextmv-io/sdk/route"
	"github.com/nextmv-io/sdk/store"
)

// NextmvSolver sequences a route with the nextmv router engine using a
// single vehicle whose start and end positions are the route's depots.
// Travel is measured as haversine distance at SpeedMPS.
type NextmvSolver struct {
	SpeedMPS float64
	// Limit bounds the search; zero means the engine default of 10s.
	Limit time.Duration
}

func NewNextmvSolver(speedKPH float64, limit time.Duration) (*NextmvSolver, error) {
	if speedKPH <= 0 {
		return nil, errors.New("nextmv solver: speed must be positive")
	}
	return &NextmvSolver{SpeedMPS: speedKPH * 1000 / 3600, Limit: limit}, nil
}

func position(c domain.Coordinates) route.Position {
	return route.Position{Lon: c.Lon, Lat: c.Lat}
}

func (s *NextmvSolver) Solve(ctx context.Context, req ports.SolveRequest) (_ *domain.RoutePlan, err error) {
	defer obs.Time(ctx, "nextmv.Solve")(&err)

	stops := make([]route.Stop, 0, len(req.Stops))
	services := make([]route.Service, 0, len(req.Stops))
	for _, o := range req.Stops {
		stops = append(stops, route.Stop{ID: o.ID, Position: position(o.Location)})
		services = append(services, route.Service{ID: o.ID, Duration: int(math.Round(o.ServiceTime * 60))})
	}

	opts := []route.Option{
		route.Velocities([]float64{s.SpeedMPS}),
		route.Services(services),
		route.Shifts([]route.TimeWindow{{Start: req.DepartAt, End: req.DepartAt.Add(24 * time.Hour)}}),
	}
	if req.FixedFirst != nil {
		opts = append(opts, route.Starts([]route.Position{position(req.FixedFirst.Location)}))
	}
	if req.FixedLast != nil {
		opts = append(opts, route.Ends([]route.Position{position(req.FixedLast.Location)}))
	}

	router, err := route.NewRouter(stops, []string{req.RouteName}, opts...)
	if err != nil {
		return nil, fmt.Errorf("nextmv solve: new router: %w", err)
	}

	solveOpts := store.DefaultOptions()
	solveOpts.Diagram.Expansion.Limit = 1
	solveOpts.Limits.Duration = 10 * time.Second
	if s.Limit > 0 {
		solveOpts.Limits.Duration = s.Limit
	}

	solver, err := router.Solver(solveOpts)
	if err != nil {
		return nil, fmt.Errorf("nextmv solve: build solver: %w", err)
	}

	last := solver.Last(ctx)
	return planFromResult(req, router.Plan().Get(last.Store))
}

// planFromResult maps the single planned vehicle back to orders and depots.
// Depot positions come back under engine-generated ids, so they are
// recognised by their place at either end of the route.
func planFromResult(req ports.SolveRequest, result route.Plan) (*domain.RoutePlan, error) {
	if len(result.Unassigned) > 0 {
		return nil, fmt.Errorf("nextmv solve: %d stops unassigned", len(result.Unassigned))
	}
	if len(result.Vehicles) != 1 {
		return nil, fmt.Errorf("nextmv solve: expected 1 vehicle; got %d", len(result.Vehicles))
	}

	byID := make(map[string]domain.Order, len(req.Stops))
	for _, o := range req.Stops {
		byID[o.ID] = o
	}

	vehicle := result.Vehicles[0]
	plan := &domain.RoutePlan{
		RouteName:           req.RouteName,
		DepartAt:            req.DepartAt,
		TotalTravelSeconds:  vehicle.RouteDuration,
		TotalDistanceMeters: vehicle.RouteDistance,
	}

	for i, ps := range vehicle.Route {
		stop := domain.PlannedStop{Sequence: len(plan.Stops) + 1}
		if ps.EstimatedArrival != nil {
			stop.ArriveAt = *ps.EstimatedArrival
		}
		if ps.EstimatedDeparture != nil {
			stop.DepartAt = *ps.EstimatedDeparture
		}

		if o, ok := byID[ps.ID]; ok {
			stop.ID, stop.Kind, stop.Location = o.ID, domain.StopOrder, o.Location
		} else if i == 0 && req.FixedFirst != nil {
			stop.ID, stop.Kind, stop.Location = req.FixedFirst.Name, domain.StopDepot, req.FixedFirst.Location
		} else if i == len(vehicle.Route)-1 && req.FixedLast != nil {
			stop.ID, stop.Kind, stop.Location = req.FixedLast.Name, domain.StopDepot, req.FixedLast.Location
		} else {
			return nil, fmt.Errorf("nextmv solve: unexpected stop %q at position %d", ps.ID, i)
		}

		plan.Stops = append(plan.Stops, stop)
	}

	return plan, nil
}
