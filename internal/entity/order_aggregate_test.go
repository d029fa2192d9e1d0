package entity

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(t *testing.T, version int, e Event) EventStoreRecord {
	t.Helper()
	payload, err := json.Marshal(e)
	require.NoError(t, err)
	return EventStoreRecord{StreamID: "order-ORD1", Version: version, EventType: e.EventType(), Payload: payload}
}

func TestOrderAggregate_Rehydrate(t *testing.T) {
	placed := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	records := []EventStoreRecord{
		record(t, 1, OrderPlaced{OrderNumber: "ORD1", CustomerID: 7, Total: decimal.NewFromInt(27), PlacedAt: placed}),
		record(t, 2, PaymentRecorded{OrderNumber: "ORD1", Amount: decimal.NewFromInt(10), PaidAt: placed.Add(time.Hour)}),
		record(t, 3, OrderStatusChanged{OrderID: 1, To: "Packed", ChangedAt: placed.Add(2 * time.Hour)}),
	}

	agg := NewOrderAggregate("order-ORD1")
	require.NoError(t, agg.Rehydrate(records))

	assert.Equal(t, 3, agg.Version)
	assert.Equal(t, int64(7), agg.CustomerID)
	assert.Equal(t, OrderStatus("Packed"), agg.Status)
	assert.True(t, decimal.NewFromInt(17).Equal(agg.Due()))
	require.Len(t, agg.History, 3)
	assert.Equal(t, "10.00", agg.History[1].Paid)
	assert.Equal(t, StatusPending, agg.History[1].Status)
	assert.False(t, agg.Cancelled)
}

func TestOrderAggregate_Cancelled(t *testing.T) {
	agg := NewOrderAggregate("order-ORD2")
	require.NoError(t, agg.Rehydrate([]EventStoreRecord{
		record(t, 1, OrderPlaced{OrderNumber: "ORD2", Total: decimal.NewFromInt(5)}),
		record(t, 2, OrderCancelled{OrderNumber: "ORD2"}),
	}))
	assert.True(t, agg.Cancelled)
	assert.Equal(t, StatusPending, agg.Status)
}

func TestOrderAggregate_RejectsUnknownEvents(t *testing.T) {
	agg := NewOrderAggregate("order-ORD3")
	err := agg.Rehydrate([]EventStoreRecord{{StreamID: "order-ORD3", Version: 1, EventType: "CartCleared", Payload: []byte(`{}`)}})
	assert.Error(t, err)

	err = agg.Rehydrate([]EventStoreRecord{{StreamID: "order-ORD3", Version: 1, EventType: "OrderPlaced", Payload: []byte(`{`)}})
	assert.Error(t, err)
}
