package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/reisinl/veg-shop/internal/entity"
	"github.com/reisinl/veg-shop/internal/repository"
)

type orderRepository struct {
	db dbtx
}

const orderColumns = "id, order_number, customer_id, staff_id, status, total_amount, delivery, created_at"

func (r *orderRepository) Create(ctx context.Context, o *entity.Order) error {
	err := r.db.QueryRowContext(ctx,
		"INSERT INTO orders (order_number, customer_id, staff_id, status, total_amount, delivery) VALUES ($1, $2, $3, $4, $5, $6) RETURNING id, created_at",
		o.Number, o.CustomerID, o.StaffID, string(o.Status), o.Total, o.Delivery,
	).Scan(&o.ID, &o.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", translate(err))
	}

	for i := range o.Lines {
		line := &o.Lines[i]
		line.OrderID = o.ID
		err := r.db.QueryRowContext(ctx,
			"INSERT INTO order_lines (order_id, item_id, quantity, mode, stock_consumed, line_total) VALUES ($1, $2, $3, $4, $5, $6) RETURNING id",
			o.ID, line.ItemID, line.Quantity, string(line.Mode), line.StockConsumed, line.LineTotal,
		).Scan(&line.ID)
		if err != nil {
			return fmt.Errorf("failed to insert order line: %w", translate(err))
		}
	}
	return nil
}

func (r *orderRepository) FindByID(ctx context.Context, id int64) (*entity.Order, error) {
	return r.findOne(ctx, "SELECT "+orderColumns+" FROM orders WHERE id = $1", id)
}

func (r *orderRepository) LockByID(ctx context.Context, id int64) (*entity.Order, error) {
	return r.findOne(ctx, "SELECT "+orderColumns+" FROM orders WHERE id = $1 FOR UPDATE", id)
}

func (r *orderRepository) findOne(ctx context.Context, query string, id int64) (*entity.Order, error) {
	o, err := scanOrder(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, translate(err)
	}
	if o.Lines, err = r.lines(ctx, o.ID); err != nil {
		return nil, err
	}
	return o, nil
}

func (r *orderRepository) List(ctx context.Context, filter repository.OrderFilter) ([]entity.Order, error) {
	var (
		where []string
		args  []any
	)
	if filter.CustomerID != nil {
		args = append(args, *filter.CustomerID)
		where = append(where, fmt.Sprintf("customer_id = $%d", len(args)))
	}
	if filter.Pending != nil {
		args = append(args, string(entity.StatusPending))
		if *filter.Pending {
			where = append(where, fmt.Sprintf("status = $%d", len(args)))
		} else {
			where = append(where, fmt.Sprintf("status <> $%d", len(args)))
		}
	}

	query := "SELECT " + orderColumns + " FROM orders"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	var orders []entity.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("error iterating order rows: %w", err)
	}
	rows.Close()

	// Fetch lines for each order
	for i := range orders {
		if orders[i].Lines, err = r.lines(ctx, orders[i].ID); err != nil {
			return nil, err
		}
	}
	return orders, nil
}

func (r *orderRepository) UpdateStatus(ctx context.Context, id int64, status entity.OrderStatus) error {
	res, err := r.db.ExecContext(ctx, "UPDATE orders SET status = $1 WHERE id = $2", string(status), id)
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}
	return expectOne(res)
}

func (r *orderRepository) Delete(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM order_lines WHERE order_id = $1", id); err != nil {
		return fmt.Errorf("failed to delete order lines: %w", err)
	}
	res, err := r.db.ExecContext(ctx, "DELETE FROM orders WHERE id = $1", id)
	if err != nil {
		if sqlState(err) == "23503" {
			return fmt.Errorf("order %d: %w", id, entity.ErrOrderHasPayments)
		}
		return fmt.Errorf("failed to delete order: %w", translate(err))
	}
	return expectOne(res)
}

func (r *orderRepository) lines(ctx context.Context, orderID int64) ([]entity.OrderLine, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT ol.id, ol.order_id, ol.item_id, i.name, ol.quantity, ol.mode, ol.stock_consumed, ol.line_total
		FROM order_lines ol JOIN items i ON i.id = ol.item_id
		WHERE ol.order_id = $1
		ORDER BY ol.id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query order lines: %w", err)
	}
	defer rows.Close()

	var lines []entity.OrderLine
	for rows.Next() {
		var (
			l    entity.OrderLine
			mode string
		)
		if err := rows.Scan(&l.ID, &l.OrderID, &l.ItemID, &l.ItemName, &l.Quantity, &mode, &l.StockConsumed, &l.LineTotal); err != nil {
			return nil, fmt.Errorf("failed to scan order line: %w", err)
		}
		l.Mode = entity.PricingMode(mode)
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func scanOrder(row rowScanner) (*entity.Order, error) {
	var (
		o       entity.Order
		staffID sql.NullInt64
		status  string
	)
	if err := row.Scan(&o.ID, &o.Number, &o.CustomerID, &staffID, &status, &o.Total, &o.Delivery, &o.CreatedAt); err != nil {
		return nil, err
	}
	if staffID.Valid {
		o.StaffID = &staffID.Int64
	}
	o.Status = entity.OrderStatus(status)
	return &o, nil
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return entity.ErrNotFound
	}
	return nil
}
