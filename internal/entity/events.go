package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event types appended to an order's stream and published to the broker.

// OrderPlaced is emitted when the engine has priced an order and its stock
// reservation committed.
type OrderPlaced struct {
	OrderID     int64           `json:"order_id"`
	OrderNumber string          `json:"order_number"`
	CustomerID  int64           `json:"customer_id"`
	StaffID     *int64          `json:"staff_id,omitempty"`
	Lines       []OrderLine     `json:"lines"`
	Total       decimal.Decimal `json:"total_amount"`
	Delivery    bool            `json:"delivery"`
	PlacedAt    time.Time       `json:"placed_at"`
}

func (e OrderPlaced) EventType() string { return "OrderPlaced" }

// PaymentRecorded is emitted for every accepted payment.
type PaymentRecorded struct {
	OrderID     int64           `json:"order_id"`
	OrderNumber string          `json:"order_number"`
	PaymentID   string          `json:"payment_id"`
	Method      PaymentMethod   `json:"method"`
	Amount      decimal.Decimal `json:"amount"`
	PaidAt      time.Time       `json:"paid_at"`
}

func (e PaymentRecorded) EventType() string { return "PaymentRecorded" }

// OrderCompleted is emitted once cumulative payments cover the total.
type OrderCompleted struct {
	OrderID     int64     `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	CompletedAt time.Time `json:"completed_at"`
}

func (e OrderCompleted) EventType() string { return "OrderCompleted" }

// OrderStatusChanged records a staff override.
type OrderStatusChanged struct {
	OrderID   int64       `json:"order_id"`
	StaffID   int64       `json:"staff_id"`
	From      OrderStatus `json:"from"`
	To        OrderStatus `json:"to"`
	ChangedAt time.Time   `json:"changed_at"`
}

func (e OrderStatusChanged) EventType() string { return "OrderStatusChanged" }

// OrderCancelled is emitted when the owner deletes a pending order. Released
// lists the stock handed back per item.
type OrderCancelled struct {
	OrderID     int64       `json:"order_id"`
	OrderNumber string      `json:"order_number"`
	CustomerID  int64       `json:"customer_id"`
	Released    []OrderLine `json:"released"`
	CancelledAt time.Time   `json:"cancelled_at"`
}

func (e OrderCancelled) EventType() string { return "OrderCancelled" }

// OrderStreamID names the event stream of one order.
func OrderStreamID(orderNumber string) string {
	return "order-" + orderNumber
}
