package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/reisinl/veg-shop/internal/entity"
	"github.com/reisinl/veg-shop/internal/repository"
)

// StockAlert consumes OrderPlaced events and warns about items whose stock
// has dropped below the threshold.
type StockAlert struct {
	store     repository.Store
	threshold decimal.Decimal
}

func NewStockAlert(store repository.Store, threshold decimal.Decimal) *StockAlert {
	return &StockAlert{store: store, threshold: threshold}
}

// HandleOrderPlaced is triggered by the message broker when an order is placed.
func (s *StockAlert) HandleOrderPlaced(ctx context.Context, payload []byte) error {
	var event entity.OrderPlaced
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("failed to unmarshal OrderPlaced event: %w", err)
	}
	_, err := s.Check(ctx, event)
	return err
}

// Check returns the items of the order that are now low on stock.
func (s *StockAlert) Check(ctx context.Context, event entity.OrderPlaced) ([]entity.Item, error) {
	items := s.store.Repos().Items
	seen := make(map[int64]bool)

	var low []entity.Item
	for _, l := range event.Lines {
		if !l.StockConsumed.IsPositive() || seen[l.ItemID] {
			continue
		}
		seen[l.ItemID] = true

		it, err := items.FindByID(ctx, l.ItemID)
		if err != nil {
			return low, fmt.Errorf("failed to load item %d: %w", l.ItemID, err)
		}
		if it.Stock.LessThan(s.threshold) {
			slog.Warn("Low stock", "item_id", it.ID, "item", it.Name, "stock", it.Stock.String(), "order_number", event.OrderNumber)
			low = append(low, *it)
		}
	}
	return low, nil
}
