package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/reisinl/veg-shop/internal/entity"
)

type reportRepository struct {
	db dbtx
}

// SalesSince sums every payment taken at or after since.
func (r *reportRepository) SalesSince(ctx context.Context, since time.Time) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.db.QueryRowContext(ctx, "SELECT COALESCE(SUM(amount), 0) FROM payments WHERE paid_at >= $1", since).Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum sales: %w", err)
	}
	return total, nil
}

// PopularItems ranks items by the number of order lines that reference them.
func (r *reportRepository) PopularItems(ctx context.Context, limit int) ([]entity.ItemPopularity, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT i.id, i.name, COUNT(ol.id) AS order_count
		FROM order_lines ol JOIN items i ON i.id = ol.item_id
		GROUP BY i.id, i.name
		ORDER BY order_count DESC, i.id
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query popular items: %w", err)
	}
	defer rows.Close()

	var out []entity.ItemPopularity
	for rows.Next() {
		var p entity.ItemPopularity
		if err := rows.Scan(&p.ItemID, &p.Name, &p.Count); err != nil {
			return nil, fmt.Errorf("failed to scan popular item: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
