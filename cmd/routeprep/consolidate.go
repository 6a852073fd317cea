package main

import (
	"context"
	"fmt"
	"log"
	"order-consolidation/internal/adapters/depfile"
	"order-consolidation/internal/adapters/repositories"
	"order-consolidation/internal/config"
	"order-consolidation/internal/services"
)

// stopsPath is where consolidate keeps the located original orders for the
// later expand step.
func stopsPath(dependencyFile string) string {
	return dependencyFile + ".stops.json"
}

func runConsolidate(ctx context.Context, cfg *config.Config, args []string) (bool, error) {
	if len(args) != 4 {
		return false, fmt.Errorf("%w: consolidate takes 4 arguments, got %d", errUsage, len(args))
	}
	ordersIn, network, ordersOut, depOut := args[0], args[1], args[2], args[3]

	res := newResources(cfg)
	defer res.Close()

	repo, err := res.orderRepository(ctx, ordersIn)
	if err != nil {
		return false, fmt.Errorf("consolidate: %w", err)
	}
	orders, err := repo.ListOrders(ctx)
	if err != nil {
		return false, fmt.Errorf("consolidate: %w", err)
	}
	log.Printf("Loaded %d orders from %s", len(orders), ordersIn)

	lookup, err := res.edgeLookup(network)
	if err != nil {
		return false, fmt.Errorf("consolidate: %w", err)
	}

	log.Println("Consolidating orders on streets...")
	c := &services.Consolidator{Lookup: lookup}
	result, err := c.Consolidate(ctx, orders)
	if err != nil {
		return false, err
	}

	if err := repositories.WriteOrders(ordersOut, result.Representatives); err != nil {
		return false, fmt.Errorf("consolidate: %w", err)
	}
	if err := depfile.Save(depOut, result.Dependencies); err != nil {
		return false, fmt.Errorf("consolidate: %w", err)
	}
	if err := repositories.WriteOrders(stopsPath(depOut), orders); err != nil {
		return false, fmt.Errorf("consolidate: %w", err)
	}

	fmt.Printf("Consolidated %d orders into %d stops (%d excluded)\n",
		result.Dependencies.OrderCount(), len(result.Representatives), len(result.Excluded))
	for _, ex := range result.Excluded {
		fmt.Printf("  excluded %s: %s\n", ex.OrderID, ex.Reason)
	}
	fmt.Printf("Wrote %s, %s and %s\n", ordersOut, depOut, stopsPath(depOut))
	return true, nil
}
