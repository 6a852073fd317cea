package ports

import (
	"context"
	"order-consolidation/internal/domain"
)

// Port: a boundary for retrieving Order entities from a data source.
type OrderRepository interface {
	// Retrieve all orders in their stored order.
	ListOrders(ctx context.Context) ([]domain.Order, error)
}
