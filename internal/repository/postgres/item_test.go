package postgres

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reisinl/veg-shop/internal/entity"
)

func newMock(t *testing.T) (sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return mock, db
}

var itemCols = []string{"id", "kind", "name", "description", "price", "stock_quantity", "rate", "per_order_unit", "box_size"}

func TestItemRepository_LockByIDs(t *testing.T) {
	mock, db := newMock(t)
	repo := &itemRepository{db: db}

	mock.ExpectQuery(regexp.QuoteMeta("FROM items WHERE id IN ($1, $2) ORDER BY id FOR UPDATE")).
		WithArgs(int64(1), int64(4)).
		WillReturnRows(sqlmock.NewRows(itemCols).
			AddRow(int64(1), "unit", "Carrot", "", "0", "10", "2", "1", nil).
			AddRow(int64(4), "plain", "Pumpkin", "", "7.25", "3", nil, nil, nil))

	items, err := repo.LockByIDs(context.Background(), []int64{1, 4})
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, entity.ItemUnit, items[0].Kind)
	require.NotNil(t, items[0].Variant)
	assert.True(t, items[0].Variant.Rate.Equal(decimal.NewFromInt(2)))
	assert.True(t, items[0].Stock.Equal(decimal.NewFromInt(10)))

	assert.Nil(t, items[1].Variant)
	assert.True(t, items[1].Price.Equal(decimal.RequireFromString("7.25")))
}

func TestItemRepository_LockByIDsEmpty(t *testing.T) {
	_, db := newMock(t)
	repo := &itemRepository{db: db}

	items, err := repo.LockByIDs(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestItemRepository_DecrementStock(t *testing.T) {
	const update = "UPDATE items SET stock_quantity = stock_quantity - $1 WHERE id = $2 AND stock_quantity >= $1"

	t.Run("applied", func(t *testing.T) {
		mock, db := newMock(t)
		repo := &itemRepository{db: db}
		mock.ExpectExec(regexp.QuoteMeta(update)).
			WithArgs("2.5", int64(2)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.DecrementStock(context.Background(), 2, decimal.RequireFromString("2.5")))
	})

	t.Run("not enough stock left", func(t *testing.T) {
		mock, db := newMock(t)
		repo := &itemRepository{db: db}
		mock.ExpectExec(regexp.QuoteMeta(update)).
			WithArgs("10", int64(1)).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.DecrementStock(context.Background(), 1, decimal.NewFromInt(10))
		assert.ErrorIs(t, err, entity.ErrStockConflict)
	})
}

func TestItemRepository_FindBoxBySize(t *testing.T) {
	mock, db := newMock(t)
	repo := &itemRepository{db: db}

	mock.ExpectQuery(regexp.QuoteMeta("FROM items WHERE kind = $1 AND box_size = $2")).
		WithArgs("box", "Medium").
		WillReturnRows(sqlmock.NewRows(itemCols).
			AddRow(int64(11), "box", "Medium Box", "", "0", "0", nil, nil, "Medium"))

	box, err := repo.FindBoxBySize(context.Background(), entity.BoxMedium)
	require.NoError(t, err)
	require.NotNil(t, box.Box)
	assert.Equal(t, entity.BoxMedium, box.Box.Size)

	mock.ExpectQuery(regexp.QuoteMeta("FROM items WHERE kind = $1 AND box_size = $2")).
		WithArgs("box", "Huge").
		WillReturnRows(sqlmock.NewRows(itemCols))

	_, err = repo.FindBoxBySize(context.Background(), entity.BoxSize("Huge"))
	assert.ErrorIs(t, err, entity.ErrNotFound)
}

func TestTranslate(t *testing.T) {
	assert.NoError(t, translate(nil))
	assert.ErrorIs(t, translate(&pq.Error{Code: "23505"}), entity.ErrDuplicate)
	assert.ErrorIs(t, translate(&pq.Error{Code: "23503"}), entity.ErrNotFound)

	other := errors.New("boom")
	assert.Equal(t, other, translate(other))
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "$1", placeholders(1, 1))
	assert.Equal(t, "$3, $4, $5", placeholders(3, 3))
	assert.Equal(t, "", placeholders(1, 0))
}
