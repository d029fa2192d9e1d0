package postgres

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reisinl/veg-shop/internal/entity"
)

func TestReportRepository_PopularItems(t *testing.T) {
	mock, db := newMock(t)
	repo := &reportRepository{db: db}

	mock.ExpectQuery(regexp.QuoteMeta("GROUP BY i.id, i.name ORDER BY order_count DESC, i.id LIMIT $1")).
		WithArgs(2).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "order_count"}).
			AddRow(int64(1), "Carrot", int64(5)).
			AddRow(int64(4), "Pumpkin", int64(2)))

	popular, err := repo.PopularItems(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, []entity.ItemPopularity{
		{ItemID: 1, Name: "Carrot", Count: 5},
		{ItemID: 4, Name: "Pumpkin", Count: 2},
	}, popular)
}

func TestReportRepository_PopularItemsEmpty(t *testing.T) {
	mock, db := newMock(t)
	repo := &reportRepository{db: db}

	mock.ExpectQuery(regexp.QuoteMeta("LIMIT $1")).
		WithArgs(10).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "order_count"}))

	popular, err := repo.PopularItems(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, popular)
}

func TestReportRepository_SalesSince(t *testing.T) {
	mock, db := newMock(t)
	repo := &reportRepository{db: db}
	since := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(SUM(amount), 0) FROM payments WHERE paid_at >= $1")).
		WithArgs(since).
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow("44.5"))

	total, err := repo.SalesSince(context.Background(), since)
	require.NoError(t, err)
	assert.Equal(t, "44.50", total.StringFixed(2))
}
