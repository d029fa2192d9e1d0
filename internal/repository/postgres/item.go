package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/reisinl/veg-shop/internal/entity"
)

type itemRepository struct {
	db dbtx
}

const itemColumns = "id, kind, name, description, price, stock_quantity, rate, per_order_unit, box_size"

func (r *itemRepository) Create(ctx context.Context, it *entity.Item) error {
	var (
		rate, per decimal.NullDecimal
		boxSize   sql.NullString
	)
	if it.Variant != nil {
		rate = decimal.NewNullDecimal(it.Variant.Rate)
		per = decimal.NewNullDecimal(it.Variant.PerOrderUnit)
	}
	if it.Box != nil {
		boxSize = sql.NullString{String: string(it.Box.Size), Valid: true}
	}
	err := r.db.QueryRowContext(ctx,
		"INSERT INTO items (kind, name, description, price, stock_quantity, rate, per_order_unit, box_size) VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id",
		string(it.Kind), it.Name, it.Description, it.Price, it.Stock, rate, per, boxSize,
	).Scan(&it.ID)
	if err != nil {
		return fmt.Errorf("failed to insert item %s: %w", it.Name, translate(err))
	}
	return nil
}

func (r *itemRepository) FindAll(ctx context.Context) ([]entity.Item, error) {
	return r.query(ctx, "SELECT "+itemColumns+" FROM items ORDER BY name, id")
}

func (r *itemRepository) FindByID(ctx context.Context, id int64) (*entity.Item, error) {
	it, err := scanItem(r.db.QueryRowContext(ctx, "SELECT "+itemColumns+" FROM items WHERE id = $1", id))
	if err != nil {
		return nil, translate(err)
	}
	return it, nil
}

// LockByIDs takes the row locks in ascending id order so that two orders
// touching the same items can never deadlock.
func (r *itemRepository) LockByIDs(ctx context.Context, ids []int64) ([]entity.Item, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return r.query(ctx,
		"SELECT "+itemColumns+" FROM items WHERE id IN ("+placeholders(1, len(ids))+") ORDER BY id FOR UPDATE",
		args...,
	)
}

func (r *itemRepository) FindBoxBySize(ctx context.Context, size entity.BoxSize) (*entity.Item, error) {
	it, err := scanItem(r.db.QueryRowContext(ctx,
		"SELECT "+itemColumns+" FROM items WHERE kind = $1 AND box_size = $2 ORDER BY id LIMIT 1",
		string(entity.ItemBox), string(size),
	))
	if err != nil {
		return nil, translate(err)
	}
	return it, nil
}

func (r *itemRepository) DecrementStock(ctx context.Context, id int64, qty decimal.Decimal) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE items SET stock_quantity = stock_quantity - $1 WHERE id = $2 AND stock_quantity >= $1",
		qty, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update item stock: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("item %d: %w", id, entity.ErrStockConflict)
	}
	return nil
}

func (r *itemRepository) IncrementStock(ctx context.Context, id int64, qty decimal.Decimal) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE items SET stock_quantity = stock_quantity + $1 WHERE id = $2",
		qty, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update item stock: %w", err)
	}
	return expectOne(res)
}

func (r *itemRepository) query(ctx context.Context, query string, args ...any) ([]entity.Item, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query items: %w", err)
	}
	defer rows.Close()

	var items []entity.Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, *it)
	}
	return items, rows.Err()
}

func scanItem(row rowScanner) (*entity.Item, error) {
	var (
		it        entity.Item
		kind      string
		rate, per decimal.NullDecimal
		boxSize   sql.NullString
	)
	if err := row.Scan(&it.ID, &kind, &it.Name, &it.Description, &it.Price, &it.Stock, &rate, &per, &boxSize); err != nil {
		return nil, err
	}
	it.Kind = entity.ItemKind(kind)
	if rate.Valid && per.Valid {
		it.Variant = &entity.VariantPricing{Rate: rate.Decimal, PerOrderUnit: per.Decimal}
	}
	if boxSize.Valid {
		it.Box = &entity.BoxInfo{Size: entity.BoxSize(boxSize.String)}
	}
	return &it, nil
}
