package service

import (
	"context"
	"fmt"

	"github.com/reisinl/veg-shop/internal/entity"
	"github.com/reisinl/veg-shop/internal/repository"
)

// CatalogService lists what can be ordered.
type CatalogService struct {
	store repository.Store
}

func NewCatalogService(store repository.Store) *CatalogService {
	return &CatalogService{store: store}
}

// GetItems returns every vegetable and premade box with its current stock.
func (s *CatalogService) GetItems(ctx context.Context) ([]entity.Item, error) {
	items, err := s.store.Repos().Items.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	return items, nil
}
