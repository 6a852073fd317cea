package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"order-consolidation/internal/adapters/depfile"
	"order-consolidation/internal/adapters/repositories"
	"order-consolidation/internal/config"
	"order-consolidation/internal/domain"
	"order-consolidation/internal/services"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ordersFile holds every expanded order with its route and sequence.
const ordersFile = "orders.json"

func runExpand(ctx context.Context, cfg *config.Config, runID string, args []string) (bool, error) {
	if len(args) != 6 && len(args) != 7 {
		return false, fmt.Errorf("%w: expand takes 6 or 7 arguments, got %d", errUsage, len(args))
	}
	depIn, stopsIn, routesIn, depotsIn, solverName, outDir := args[0], args[1], args[2], args[3], args[4], args[5]
	ordersIn := stopsPath(depIn)
	if len(args) == 7 {
		ordersIn = args[6]
	}

	res := newResources(cfg)
	defer res.Close()

	routeSolver, err := res.routeSolver(ctx, solverName)
	if err != nil {
		return false, fmt.Errorf("expand: %w", err)
	}

	deps, err := depfile.Load(depIn)
	if err != nil {
		return false, fmt.Errorf("expand: %w", err)
	}
	assignment, err := repositories.LoadAssignment(stopsIn)
	if err != nil {
		return false, fmt.Errorf("expand: %w", err)
	}
	routes, err := repositories.LoadRoutes(routesIn)
	if err != nil {
		return false, fmt.Errorf("expand: %w", err)
	}
	depots, err := repositories.LoadDepots(depotsIn)
	if err != nil {
		return false, fmt.Errorf("expand: %w", err)
	}
	repo, err := res.orderRepository(ctx, ordersIn)
	if err != nil {
		return false, fmt.Errorf("expand: %w", err)
	}
	orders, err := repo.ListOrders(ctx)
	if err != nil {
		return false, fmt.Errorf("expand: %w", err)
	}

	departAt, err := cfg.DepartTime(time.Now())
	if err != nil {
		return false, fmt.Errorf("expand: %w", err)
	}

	routeSink, err := res.routeSink(ctx, outDir, runID, solverName)
	if err != nil {
		return false, fmt.Errorf("expand: %w", err)
	}

	log.Printf("Expanding %d groups (%d orders) onto %d routes with solver %s",
		deps.Len(), deps.OrderCount(), len(routes), solverName)

	only := onlyRoutes()
	e := &services.Expander{
		Solver:       routeSolver,
		Sink:         routeSink,
		Concurrency:  cfg.Concurrency,
		RouteTimeout: cfg.RouteTimeout,
		SolverName:   solverName,
	}
	result, err := e.Expand(ctx, services.ExpandRequest{
		Dependencies: deps,
		Assignment:   assignment,
		Orders:       orders,
		Routes:       routes,
		Depots:       depots,
		OnlyRoutes:   only,
		DepartAt:     departAt,
	})
	if err != nil {
		return false, err
	}

	ordersOut := filepath.Join(outDir, ordersFile)
	var prev []domain.Order
	if len(only) > 0 {
		if prev, err = previousOrders(ctx, ordersOut); err != nil {
			return false, fmt.Errorf("expand: %w", err)
		}
	}
	if err := repositories.WriteOrders(ordersOut, sequenced(result, prev, only)); err != nil {
		return false, fmt.Errorf("expand: %w", err)
	}

	printSummary(&result.Summary)
	fmt.Printf("Wrote %s\n", ordersOut)
	return len(result.Summary.Failed) == 0, nil
}

// onlyRoutes reads ROUTEPREP_ONLY_ROUTES, a comma separated list of route
// names to re-solve.
func onlyRoutes() []string {
	raw := config.Get("ROUTEPREP_ONLY_ROUTES", "")
	if raw == "" {
		return nil
	}
	var out []string
	for _, name := range strings.Split(raw, ",") {
		if name = strings.TrimSpace(name); name != "" {
			out = append(out, name)
		}
	}
	return out
}

// previousOrders reads the orders file written by an earlier run, if any.
func previousOrders(ctx context.Context, path string) ([]domain.Order, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return repositories.NewFileOrderRepository(path, nil).ListOrders(ctx)
}

// sequenced returns the expanded orders with the position each one got in
// its solved route. Orders on failed routes keep a nil sequence. When only
// limits the run to some routes, orders on the other routes keep the
// sequence prev recorded for them.
func sequenced(result *services.ExpandResult, prev []domain.Order, only []string) []domain.Order {
	pos := make(map[string]int, len(result.Orders))
	for _, plan := range result.Plans {
		for i, id := range plan.OrderIDs() {
			pos[id] = i + 1
		}
	}

	resolved := make(map[string]struct{}, len(only))
	for _, name := range only {
		resolved[name] = struct{}{}
	}
	earlier := make(map[string]domain.Order, len(prev))
	for _, o := range prev {
		earlier[o.ID] = o
	}

	out := make([]domain.Order, 0, len(result.Orders))
	for _, o := range result.Orders {
		if p, ok := pos[o.ID]; ok {
			seq := p
			o.Sequence = &seq
		} else if _, retried := resolved[o.RouteName]; len(resolved) > 0 && !retried {
			if old, ok := earlier[o.ID]; ok && old.RouteName == o.RouteName && old.Sequence != nil {
				seq := *old.Sequence
				o.Sequence = &seq
			}
		}
		out = append(out, o)
	}
	return out
}

func printSummary(s *domain.Summary) {
	fmt.Printf("Solved %d routes, %d failed\n", len(s.Solved), len(s.Failed))
	for _, r := range s.Solved {
		fmt.Printf("  ok     %s stops=%d -> %s\n", r.RouteName, r.Stops, r.Output)
	}
	for _, f := range s.Failed {
		fmt.Printf("  FAILED %s: %v\n", f.RouteName, f.Err)
	}
	if len(s.Unrouted) > 0 {
		fmt.Printf("Unrouted orders (%d): %s\n", len(s.Unrouted), strings.Join(s.Unrouted, ","))
	}
	for _, ex := range s.Excluded {
		fmt.Printf("Excluded %s: %s\n", ex.OrderID, ex.Reason)
	}
}
