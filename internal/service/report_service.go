package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/reisinl/veg-shop/internal/entity"
	"github.com/reisinl/veg-shop/internal/repository"
)

var reportWindows = map[string]time.Duration{
	"weekly":  7 * 24 * time.Hour,
	"monthly": 30 * 24 * time.Hour,
	"yearly":  365 * 24 * time.Hour,
}

const (
	salesTopItems   = 5
	popularTopItems = 10
)

// ReportService runs the staff sales and popularity reports.
type ReportService struct {
	store repository.Store
	now   func() time.Time
}

func NewReportService(store repository.Store) *ReportService {
	return &ReportService{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

type SalesReport struct {
	Period   string                  `json:"period"`
	Since    time.Time               `json:"since"`
	Total    decimal.Decimal         `json:"total_sales"`
	TopItems []entity.ItemPopularity `json:"top_items"`
}

// Sales sums payments taken over the trailing weekly, monthly or yearly
// window.
func (s *ReportService) Sales(ctx context.Context, actor Actor, period string) (*SalesReport, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	window, ok := reportWindows[period]
	if !ok {
		return nil, fmt.Errorf("%w: unknown report period %q", entity.ErrInvalidInput, period)
	}

	repos := s.store.Repos()
	since := s.now().Add(-window)
	total, err := repos.Reports.SalesSince(ctx, since)
	if err != nil {
		return nil, err
	}
	top, err := repos.Reports.PopularItems(ctx, salesTopItems)
	if err != nil {
		return nil, err
	}
	return &SalesReport{Period: period, Since: since, Total: total, TopItems: top}, nil
}

func (s *ReportService) PopularItems(ctx context.Context, actor Actor) ([]entity.ItemPopularity, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	return s.store.Repos().Reports.PopularItems(ctx, popularTopItems)
}
