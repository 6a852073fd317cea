package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"order-consolidation/internal/domain"
	"order-consolidation/internal/platform/metrics"
	"order-consolidation/internal/platform/obs"
	"order-consolidation/internal/ports"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	DefaultConcurrency  = 2
	DefaultRouteTimeout = 2 * time.Minute
)

// ExpandRequest carries everything produced by the consolidation phase and
// the external VRP solve.
type ExpandRequest struct {
	Dependencies *domain.DependencyMap
	// Assignment maps representative ids to route names. An empty route name
	// means the solver left that representative unassigned.
	Assignment domain.RouteAssignment
	Orders     []domain.Order
	Routes     []domain.Route
	Depots     []domain.Depot
	// OnlyRoutes limits solving to the named routes; empty means all.
	OnlyRoutes []string
	// DepartAt is used for routes without an earliest start time.
	DepartAt time.Time
}

// ExpandResult holds the final assignment of every original order and the
// plans of the routes that solved. Plans are present even when other routes
// failed.
type ExpandResult struct {
	Assignment domain.RouteAssignment
	Orders     []domain.Order
	Plans      map[string]*domain.RoutePlan
	Summary    domain.Summary
}

// Expander puts consolidated orders back on their representative's route and
// re-sequences each route with its depots fixed as first and last stop.
type Expander struct {
	Solver ports.RouteSolver
	// Sink receives each route as soon as it is solved. Optional.
	Sink         ports.RouteSink
	Concurrency  int
	RouteTimeout time.Duration
	// SolverName labels metrics.
	SolverName string
}

type routeJob struct {
	name   string
	orders []domain.Order
}

type routeOutcome struct {
	plan   *domain.RoutePlan
	output string
	err    error
}

func (e *Expander) concurrency() int {
	if e.Concurrency < 1 {
		return DefaultConcurrency
	}
	return e.Concurrency
}

func (e *Expander) routeTimeout() time.Duration {
	if e.RouteTimeout <= 0 {
		return DefaultRouteTimeout
	}
	return e.RouteTimeout
}

// Expand assigns every original order to its representative's route and
// solves each route independently.
//
// A representative without an assignment, or a dependency member missing from
// the order set, is a ConsistencyError and nothing is solved. Per-route
// failures are reported in the summary as SolverErrors and never affect
// other routes.
func (e *Expander) Expand(ctx context.Context, req ExpandRequest) (_ *ExpandResult, err error) {
	defer obs.Time(ctx, "expand")(&err)

	if e.Solver == nil {
		return nil, errors.New("expand: route solver is nil")
	}
	if req.Dependencies == nil {
		return nil, errors.New("expand: dependency map is nil")
	}

	if err := domain.ValidateOrders(req.Orders); err != nil {
		return nil, fmt.Errorf("expand: %w", err)
	}

	orderByID := make(map[string]domain.Order, len(req.Orders))
	for _, o := range req.Orders {
		orderByID[o.ID] = o
	}

	res := &ExpandResult{
		Assignment: make(domain.RouteAssignment, req.Dependencies.OrderCount()),
		Orders:     make([]domain.Order, 0, req.Dependencies.OrderCount()),
		Plans:      make(map[string]*domain.RoutePlan),
	}

	byRoute := make(map[string][]domain.Order)
	seenRoutes := make([]string, 0)

	// Single grouped pass keyed by representative.
	for _, rep := range req.Dependencies.Representatives() {
		route, ok := req.Assignment[rep]
		if !ok {
			return nil, fmt.Errorf("expand: %w", &domain.ConsistencyError{
				OrderID: rep,
				Reason:  "representative has no solved route assignment",
			})
		}

		members, _ := req.Dependencies.Members(rep)
		for _, id := range members {
			o, ok := orderByID[id]
			if !ok {
				return nil, fmt.Errorf("expand: %w", &domain.ConsistencyError{
					OrderID: id,
					Reason:  fmt.Sprintf("listed under representative %q but missing from the order set", rep),
				})
			}

			if route == "" {
				res.Summary.Unrouted = append(res.Summary.Unrouted, id)
				continue
			}

			expanded := o.AsExpanded(route)
			res.Assignment[id] = route
			res.Orders = append(res.Orders, expanded)
			if _, ok := byRoute[route]; !ok {
				seenRoutes = append(seenRoutes, route)
			}
			byRoute[route] = append(byRoute[route], expanded)
		}
	}

	for _, o := range req.Orders {
		if _, ok := req.Dependencies.RepresentativeOf(o.ID); !ok {
			res.Summary.Excluded = append(res.Summary.Excluded, domain.ExcludedOrder{
				OrderID: o.ID,
				Reason:  "not present in the dependency map",
			})
		}
	}

	jobs := e.buildJobs(req, byRoute, seenRoutes)
	log.Printf(
		"expand: groups=%d orders=%d routes=%d unrouted=%d",
		req.Dependencies.Len(), len(res.Orders), len(jobs), len(res.Summary.Unrouted),
	)

	routesByName := make(map[string]domain.Route, len(req.Routes))
	for _, r := range req.Routes {
		routesByName[r.Name] = r
	}
	depotsByName := make(map[string]domain.Depot, len(req.Depots))
	for _, d := range req.Depots {
		depotsByName[d.Name] = d
	}

	// Each worker writes only its own slot.
	outcomes := make([]routeOutcome, len(jobs))

	var g errgroup.Group
	g.SetLimit(e.concurrency())
	for i, job := range jobs {
		g.Go(func() error {
			outcomes[i] = e.runRoute(ctx, job, routesByName, depotsByName, req.DepartAt)
			return nil
		})
	}
	_ = g.Wait()

	for i, job := range jobs {
		out := outcomes[i]
		if out.err != nil {
			var sErr *domain.SolverError
			if !errors.As(out.err, &sErr) {
				sErr = &domain.SolverError{RouteName: job.name, Err: out.err}
			}
			res.Summary.Failed = append(res.Summary.Failed, domain.RouteFailure{RouteName: job.name, Err: sErr})
			continue
		}
		res.Plans[job.name] = out.plan
		res.Summary.Solved = append(res.Summary.Solved, domain.RouteOutcome{
			RouteName: job.name,
			Stops:     len(out.plan.Stops),
			Output:    out.output,
		})
	}

	return res, nil
}

// buildJobs orders routes as they appear in the routes table, followed by any
// assigned route names the table does not know about.
func (e *Expander) buildJobs(req ExpandRequest, byRoute map[string][]domain.Order, seen []string) []routeJob {
	only := make(map[string]struct{}, len(req.OnlyRoutes))
	for _, r := range req.OnlyRoutes {
		only[r] = struct{}{}
	}
	keep := func(name string) bool {
		if len(only) == 0 {
			return true
		}
		_, ok := only[name]
		return ok
	}

	jobs := make([]routeJob, 0, len(byRoute))
	added := make(map[string]struct{}, len(byRoute))
	for _, r := range req.Routes {
		orders, ok := byRoute[r.Name]
		if !ok || !keep(r.Name) {
			continue
		}
		if _, dup := added[r.Name]; dup {
			continue
		}
		added[r.Name] = struct{}{}
		jobs = append(jobs, routeJob{name: r.Name, orders: orders})
	}
	for _, name := range seen {
		if _, ok := added[name]; ok || !keep(name) {
			continue
		}
		added[name] = struct{}{}
		jobs = append(jobs, routeJob{name: name, orders: byRoute[name]})
	}
	return jobs
}

func (e *Expander) runRoute(
	ctx context.Context,
	job routeJob,
	routes map[string]domain.Route,
	depots map[string]domain.Depot,
	fallbackDepart time.Time,
) (out routeOutcome) {
	start := time.Now()
	solver := e.SolverName
	if solver == "" {
		solver = "default"
	}

	defer func() {
		if r := recover(); r != nil {
			out = routeOutcome{err: &domain.SolverError{RouteName: job.name, Err: fmt.Errorf("solver panic: %v", r)}}
		}

		status := "ok"
		if out.err != nil {
			status = "failed"
			log.Printf("expand: route=%s failed: %v", job.name, out.err)
		} else {
			log.Printf("expand: route=%s stops=%d output=%s", job.name, len(out.plan.Stops), out.output)
		}
		metrics.RouteSolves.WithLabelValues(solver, status).Inc()
		metrics.RouteSolveDuration.WithLabelValues(solver, status).Observe(time.Since(start).Seconds())
	}()

	fail := func(err error) routeOutcome {
		return routeOutcome{err: &domain.SolverError{RouteName: job.name, Err: err}}
	}

	route, ok := routes[job.name]
	if !ok {
		return fail(errors.New("route is not present in the routes table"))
	}

	solveReq := ports.SolveRequest{
		RouteName:    job.name,
		DepartAt:     route.EarliestStart,
		Stops:        job.orders,
		PreserveEnds: true,
	}
	if solveReq.DepartAt.IsZero() {
		solveReq.DepartAt = fallbackDepart
	}

	if route.StartDepot != "" {
		d, ok := depots[route.StartDepot]
		if !ok {
			return fail(fmt.Errorf("start depot %q not found", route.StartDepot))
		}
		solveReq.FixedFirst = &d
	}
	if route.EndDepot != "" {
		d, ok := depots[route.EndDepot]
		if !ok {
			return fail(fmt.Errorf("end depot %q not found", route.EndDepot))
		}
		solveReq.FixedLast = &d
	}

	log.Printf("expand: solving route=%s orders=%d", job.name, len(job.orders))

	plan, err := e.solveWithTimeout(ctx, solveReq)
	if err != nil {
		return fail(err)
	}
	if err := checkPlan(solveReq, plan); err != nil {
		return fail(err)
	}

	var output string
	if e.Sink != nil {
		output, err = e.Sink.Save(ctx, plan)
		if err != nil {
			return fail(fmt.Errorf("save route: %w", err))
		}
	}

	return routeOutcome{plan: plan, output: output}
}

// solveWithTimeout enforces the per-route deadline even if the solver does
// not watch its context. A solver that overruns is abandoned, not stopped.
func (e *Expander) solveWithTimeout(ctx context.Context, req ports.SolveRequest) (*domain.RoutePlan, error) {
	timeout := e.routeTimeout()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		plan *domain.RoutePlan
		err  error
	}
	ch := make(chan result, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- result{err: fmt.Errorf("solver panic: %v", r)}
			}
		}()
		plan, err := e.Solver.Solve(ctx, req)
		ch <- result{plan: plan, err: err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			return nil, fmt.Errorf("solve: %w", r.err)
		}
		if r.plan == nil {
			return nil, errors.New("solve: solver returned no plan")
		}
		return r.plan, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("solve: no result within %s: %w", timeout, ctx.Err())
	}
}

// checkPlan verifies the solver visited every requested order exactly once
// and kept the depots at the ends.
func checkPlan(req ports.SolveRequest, plan *domain.RoutePlan) error {
	want := make(map[string]struct{}, len(req.Stops))
	for _, o := range req.Stops {
		want[o.ID] = struct{}{}
	}

	got := plan.OrderIDs()
	seen := make(map[string]struct{}, len(got))
	for _, id := range got {
		if _, ok := want[id]; !ok {
			return fmt.Errorf("plan contains unexpected order %q", id)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("plan visits order %q twice", id)
		}
		seen[id] = struct{}{}
	}
	if len(seen) != len(want) {
		return fmt.Errorf("plan left %d of %d orders unassigned", len(want)-len(seen), len(want))
	}

	if len(plan.Stops) == 0 {
		return nil
	}
	if req.FixedFirst != nil {
		first := plan.Stops[0]
		if first.Kind != domain.StopDepot || first.ID != req.FixedFirst.Name {
			return fmt.Errorf("plan does not start at depot %q", req.FixedFirst.Name)
		}
	}
	if req.FixedLast != nil {
		last := plan.Stops[len(plan.Stops)-1]
		if last.Kind != domain.StopDepot || last.ID != req.FixedLast.Name {
			return fmt.Errorf("plan does not end at depot %q", req.FixedLast.Name)
		}
	}
	return nil
}
