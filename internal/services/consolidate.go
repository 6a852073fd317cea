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
)

// ConsolidationResult is the reduced order set plus the bookkeeping needed
// to expand it again.
type ConsolidationResult struct {
	Representatives []domain.Order
	Dependencies    *domain.DependencyMap
	Excluded        []domain.ExcludedOrder
}

// Consolidator replaces all orders sharing a street segment and side with a
// single representative order.
type Consolidator struct {
	Lookup ports.NearestEdgeLookup
}

// Consolidate groups orders by (segment, side) in input order.
//
// The first order seen in a group is its representative; it carries a flat
// service time of 0.25 per member and a pickup quantity equal to the group
// size. Orders the lookup cannot match are excluded and reported, any other
// lookup failure aborts the run.
func (c *Consolidator) Consolidate(ctx context.Context, orders []domain.Order) (_ *ConsolidationResult, err error) {
	defer obs.Time(ctx, "consolidate")(&err)

	if c.Lookup == nil {
		return nil, errors.New("consolidate: edge lookup is nil")
	}

	if err := domain.ValidateOrders(orders); err != nil {
		return nil, fmt.Errorf("consolidate: %w", err)
	}

	res := &ConsolidationResult{Dependencies: domain.NewDependencyMap()}

	keys := make([]domain.GroupKey, 0)
	groups := make(map[domain.GroupKey][]domain.Order)

	for _, o := range orders {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("consolidate: %w", err)
		}

		match, err := c.Lookup.Lookup(ctx, o.Location)
		if err != nil {
			if errors.Is(err, domain.ErrNoEdgeMatch) {
				mErr := &domain.InputMatchError{OrderID: o.ID, Err: err}
				log.Printf("consolidate: excluding order: %v", mErr)
				res.Excluded = append(res.Excluded, domain.ExcludedOrder{OrderID: o.ID, Reason: mErr.Error()})
				metrics.OrdersProcessed.WithLabelValues("consolidate", "excluded").Inc()
				continue
			}
			return nil, fmt.Errorf("consolidate: lookup order %q: %w", o.ID, err)
		}

		key := match.Key()
		if _, ok := groups[key]; !ok {
			keys = append(keys, key)
		}
		groups[key] = append(groups[key], o)
		metrics.OrdersProcessed.WithLabelValues("consolidate", "matched").Inc()
	}

	res.Representatives = make([]domain.Order, 0, len(keys))
	for _, key := range keys {
		members := groups[key]
		ids := make([]string, 0, len(members))
		for _, m := range members {
			ids = append(ids, m.ID)
		}

		if err := res.Dependencies.Add(ids); err != nil {
			return nil, fmt.Errorf("consolidate: segment=%s side=%s: %w", key.SegmentID, key.Side, err)
		}

		rep := members[0].AsConsolidated(len(members))
		res.Representatives = append(res.Representatives, rep)
	}

	metrics.ConsolidationGroups.Set(float64(len(keys)))
	log.Printf(
		"consolidate: orders=%d groups=%d excluded=%d",
		len(orders), len(res.Representatives), len(res.Excluded),
	)

	return res, nil
}
