package entity

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// HistoryEntry is one replayed step of an order's life.
type HistoryEntry struct {
	Version   int         `json:"version"`
	EventType string      `json:"event_type"`
	Status    OrderStatus `json:"status"`
	Paid      string      `json:"paid"`
	At        time.Time   `json:"at"`
}

// OrderAggregate rebuilds an order's lifecycle from its event stream. It is
// the only view of a cancelled order once the row itself is gone.
type OrderAggregate struct {
	Stream
	Number     string
	CustomerID int64
	Total      decimal.Decimal
	Paid       decimal.Decimal
	Status     OrderStatus
	Cancelled  bool
	PlacedAt   time.Time
	History    []HistoryEntry
}

// NewOrderAggregate creates an empty aggregate for the given stream.
func NewOrderAggregate(streamID string) *OrderAggregate {
	return &OrderAggregate{
		Stream: Stream{StreamID: streamID},
	}
}

// Due is what is still owed on the order.
func (a *OrderAggregate) Due() decimal.Decimal {
	return a.Total.Sub(a.Paid)
}

// ApplyEvent folds one event into the order and records a history entry.
func (a *OrderAggregate) ApplyEvent(e Event) error {
	var at time.Time
	switch e := e.(type) {
	case OrderPlaced:
		a.Number = e.OrderNumber
		a.CustomerID = e.CustomerID
		a.Total = e.Total
		a.Status = StatusPending
		a.PlacedAt = e.PlacedAt
		at = e.PlacedAt
	case PaymentRecorded:
		a.Paid = a.Paid.Add(e.Amount)
		at = e.PaidAt
	case OrderCompleted:
		a.Status = StatusCompleted
		at = e.CompletedAt
	case OrderStatusChanged:
		a.Status = e.To
		at = e.ChangedAt
	case OrderCancelled:
		a.Cancelled = true
		at = e.CancelledAt
	default:
		return fmt.Errorf("order stream cannot apply %s", e.EventType())
	}
	a.History = append(a.History, HistoryEntry{
		Version:   a.advance(),
		EventType: e.EventType(),
		Status:    a.Status,
		Paid:      a.Paid.StringFixed(2),
		At:        at,
	})
	return nil
}

// Rehydrate replays a stream loaded from the event store.
func (a *OrderAggregate) Rehydrate(records []EventStoreRecord) error {
	return replay(records, decodeOrderEvent, a.ApplyEvent)
}

func decodeOrderEvent(rec EventStoreRecord) (Event, error) {
	var (
		e   Event
		err error
	)
	switch rec.EventType {
	case "OrderPlaced":
		var v OrderPlaced
		err = json.Unmarshal(rec.Payload, &v)
		e = v
	case "PaymentRecorded":
		var v PaymentRecorded
		err = json.Unmarshal(rec.Payload, &v)
		e = v
	case "OrderCompleted":
		var v OrderCompleted
		err = json.Unmarshal(rec.Payload, &v)
		e = v
	case "OrderStatusChanged":
		var v OrderStatusChanged
		err = json.Unmarshal(rec.Payload, &v)
		e = v
	case "OrderCancelled":
		var v OrderCancelled
		err = json.Unmarshal(rec.Payload, &v)
		e = v
	default:
		return nil, fmt.Errorf("unknown event type in stream: %s", rec.EventType)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", rec.EventType, err)
	}
	return e, nil
}
