package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"order-consolidation/internal/domain"
	"order-consolidation/internal/platform/db"
	"order-consolidation/internal/platform/obs"
)

// SQL-backed implementation of the OrderRepository port.
type SQLOrderRepository struct {
	DB      *sql.DB
	Dialect db.Dialect
}

func NewSQLOrderRepository(conn *sql.DB, dialect db.Dialect) *SQLOrderRepository {
	return &SQLOrderRepository{DB: conn, Dialect: dialect}
}

// Return all orders in import order.
func (s *SQLOrderRepository) ListOrders(ctx context.Context) (_ []domain.Order, err error) {
	defer obs.Time(ctx, "orders.sql.ListOrders")(&err)

	if s.DB == nil {
		return nil, errors.New("sql order repository: DB is nil")
	}

	query := `
	SELECT
		order_id,
		lon,
		lat,
		service_time,
		pickup_quantity
	FROM orders
	ORDER BY position, order_id;
	`
	rows, err := s.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list orders: query orders table: %w", err)
	}
	defer rows.Close()

	orders := make([]domain.Order, 0, 64)
	for rows.Next() {
		var o domain.Order
		if err := rows.Scan(&o.ID, &o.Location.Lon, &o.Location.Lat, &o.ServiceTime, &o.PickupQuantity); err != nil {
			return nil, fmt.Errorf("list orders: scan row: %w", err)
		}
		orders = append(orders, o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list orders: row iteration: %w", err)
	}

	return orders, nil
}

// ImportOrders replaces the orders table with orders, keeping their order.
func (s *SQLOrderRepository) ImportOrders(ctx context.Context, orders []domain.Order) error {
	if s.DB == nil {
		return errors.New("import orders: DB is nil")
	}
	if err := domain.ValidateOrders(orders); err != nil {
		return fmt.Errorf("import orders: %w", err)
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("import orders: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM orders;`); err != nil {
		return fmt.Errorf("import orders: clear table: %w", err)
	}

	ph := make([]any, 6)
	for i := range ph {
		ph[i] = s.Dialect.Placeholder(i + 1)
	}
	query := fmt.Sprintf(`
	INSERT INTO orders (
		order_id,
		position,
		lon,
		lat,
		service_time,
		pickup_quantity
	)
	VALUES (%s, %s, %s, %s, %s, %s);
	`, ph...)
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("import orders: prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, o := range orders {
		if _, err := stmt.ExecContext(ctx, o.ID, i, o.Location.Lon, o.Location.Lat, o.ServiceTime, o.PickupQuantity); err != nil {
			return fmt.Errorf("import orders: insert order_id=%q: %w", o.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("import orders: commit tx: %w", err)
	}

	return nil
}
