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
)

// LocalSolver sequences a single route in process.
//
// Stops are ordered greedily by travel duration from the start depot, then
// improved with 2-opt moves that never touch the fixed depots. It does not
// attempt global optimality; results are deterministic for a given matrix.
type LocalSolver struct {
	Provider ports.DistanceProvider
	// Iterations bounds the 2-opt improvement passes.
	Iterations int
}

func NewLocalSolver(provider ports.DistanceProvider, iterations int) (*LocalSolver, error) {
	if provider == nil {
		return nil, errors.New("local solver: distance provider is nil")
	}
	if iterations <= 0 {
		iterations = 50
	}
	return &LocalSolver{Provider: provider, Iterations: iterations}, nil
}

// node is an index into the point list built by Solve: orders first, then
// the start depot, then the end depot.
type node = int

func (s *LocalSolver) Solve(ctx context.Context, req ports.SolveRequest) (_ *domain.RoutePlan, err error) {
	defer obs.Time(ctx, "local.Solve")(&err)

	n := len(req.Stops)
	points := make([]domain.Coordinates, 0, n+2)
	for _, o := range req.Stops {
		points = append(points, o.Location)
	}

	startIdx, endIdx := -1, -1
	if req.FixedFirst != nil {
		startIdx = len(points)
		points = append(points, req.FixedFirst.Location)
	}
	if req.FixedLast != nil {
		endIdx = len(points)
		points = append(points, req.FixedLast.Location)
	}

	matrix, err := s.matrix(ctx, points)
	if err != nil {
		return nil, fmt.Errorf("local solve: route %q: %w", req.RouteName, err)
	}

	path := make([]node, 0, len(points))
	if startIdx >= 0 {
		path = append(path, startIdx)
	}
	interior, err := s.nearestNeighbor(ctx, req, matrix, startIdx)
	if err != nil {
		return nil, fmt.Errorf("local solve: route %q: %w", req.RouteName, err)
	}
	path = append(path, interior...)
	if endIdx >= 0 {
		path = append(path, endIdx)
	}

	lo, hi := 0, len(path)-1
	if startIdx >= 0 {
		lo = 1
	}
	if endIdx >= 0 {
		hi = len(path) - 2
	}
	path = improve2Opt(matrix, path, lo, hi, s.Iterations)

	return s.timeline(req, matrix, path, n, startIdx), nil
}

func (s *LocalSolver) matrix(ctx context.Context, points []domain.Coordinates) ([][]ports.DistanceResult, error) {
	// Prefer a single matrix call when supported to reduce external API calls.
	if mp, ok := s.Provider.(ports.DistanceMatrixProvider); ok {
		m, err := mp.GetMatrix(ctx, points)
		if err != nil {
			return nil, fmt.Errorf("get distance matrix: %w", err)
		}
		if len(m) != len(points) {
			return nil, fmt.Errorf("distance matrix has %d rows, want %d", len(m), len(points))
		}
		return m, nil
	}

	m := make([][]ports.DistanceResult, len(points))
	for i := range points {
		m[i] = make([]ports.DistanceResult, len(points))
		for j := range points {
			if i == j {
				continue
			}
			r, err := s.Provider.GetDistance(ctx, points[i], points[j])
			if err != nil {
				return nil, fmt.Errorf("get distance from %s to %s: %w", points[i].Key(), points[j].Key(), err)
			}
			m[i][j] = r
		}
	}
	return m, nil
}

// nearestNeighbor orders the stops greedily. Without a start depot the first
// input stop seeds the tour.
func (s *LocalSolver) nearestNeighbor(
	ctx context.Context,
	req ports.SolveRequest,
	matrix [][]ports.DistanceResult,
	startIdx int,
) ([]node, error) {
	n := len(req.Stops)
	remaining := make(map[node]struct{}, n)
	for i := 0; i < n; i++ {
		remaining[i] = struct{}{}
	}

	order := make([]node, 0, n)
	current := startIdx
	if current < 0 && n > 0 {
		current = 0
		order = append(order, 0)
		delete(remaining, 0)
	}

	for len(remaining) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		best := -1
		minDuration := math.MaxInt
		// Select next stop by minimum travel duration (greedy step).
		for cand := range remaining {
			d := matrix[current][cand].DurationSeconds
			// Tie-breaker ensures deterministic ordering when durations are equal.
			if best < 0 || d < minDuration || (d == minDuration && req.Stops[cand].ID < req.Stops[best].ID) {
				minDuration = d
				best = cand
			}
		}
		if best < 0 {
			return nil, errors.New("failed to select next stop")
		}

		order = append(order, best)
		delete(remaining, best)
		current = best
	}

	return order, nil
}

// improve2Opt reverses segments inside path[lo..hi] while that shortens the
// total travel duration. Positions outside the window are never moved.
func improve2Opt(matrix [][]ports.DistanceResult, path []node, lo, hi, iterations int) []node {
	best := append([]node(nil), path...)
	if hi-lo < 1 {
		return best
	}
	bestCost := pathDuration(matrix, best)

	for it := 0; it < iterations; it++ {
		improved := false
		for i := lo; i < hi; i++ {
			for k := i + 1; k <= hi; k++ {
				cand := twoOptSwap(best, i, k)
				c := pathDuration(matrix, cand)
				if c < bestCost {
					best = cand
					bestCost = c
					improved = true
				}
			}
		}
		if !improved {
			break
		}
	}
	return best
}

func twoOptSwap(path []node, i, k int) []node {
	out := make([]node, len(path))
	copy(out, path[:i])
	pos := i
	for j := k; j >= i; j-- {
		out[pos] = path[j]
		pos++
	}
	copy(out[pos:], path[k+1:])
	return out
}

func pathDuration(matrix [][]ports.DistanceResult, path []node) int {
	total := 0
	for i := 0; i < len(path)-1; i++ {
		total += matrix[path[i]][path[i+1]].DurationSeconds
	}
	return total
}

func (s *LocalSolver) timeline(
	req ports.SolveRequest,
	matrix [][]ports.DistanceResult,
	path []node,
	n int,
	startIdx int,
) *domain.RoutePlan {
	plan := &domain.RoutePlan{
		RouteName: req.RouteName,
		DepartAt:  req.DepartAt,
		Stops:     make([]domain.PlannedStop, 0, len(path)),
	}

	current := req.DepartAt
	for pos, idx := range path {
		if pos > 0 {
			leg := matrix[path[pos-1]][idx]
			current = current.Add(time.Duration(leg.DurationSeconds) * time.Second)
			plan.TotalTravelSeconds += leg.DurationSeconds
			plan.TotalDistanceMeters += leg.DistanceMeters
		}

		stop := domain.PlannedStop{Sequence: pos + 1, ArriveAt: current, DepartAt: current}
		switch {
		case idx < n:
			o := req.Stops[idx]
			stop.ID, stop.Kind, stop.Location = o.ID, domain.StopOrder, o.Location
			stop.DepartAt = current.Add(time.Duration(o.ServiceTime * float64(time.Minute)))
		case idx == startIdx:
			stop.ID, stop.Kind, stop.Location = req.FixedFirst.Name, domain.StopDepot, req.FixedFirst.Location
		default:
			stop.ID, stop.Kind, stop.Location = req.FixedLast.Name, domain.StopDepot, req.FixedLast.Location
		}

		current = stop.DepartAt
		plan.Stops = append(plan.Stops, stop)
	}

	return plan
}
