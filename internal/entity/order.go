package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is free text so staff can force any value; the engine and the
// payment flow only produce the two constants below.
type OrderStatus string

const (
	StatusPending   OrderStatus = "Pending"
	StatusCompleted OrderStatus = "Completed"
)

// Order is immutable once priced apart from its status.
type Order struct {
	ID         int64           `json:"id"`
	Number     string          `json:"order_number"`
	CustomerID int64           `json:"customer_id"`
	StaffID    *int64          `json:"staff_id,omitempty"`
	Status     OrderStatus     `json:"status"`
	Total      decimal.Decimal `json:"total_amount"`
	Delivery   bool            `json:"delivery"`
	CreatedAt  time.Time       `json:"created_at"`
	Lines      []OrderLine     `json:"lines"`
}

// OrderLine keeps the quantity as entered; StockConsumed is the physical
// amount taken out of stock, used to release stock when the order is cancelled.
type OrderLine struct {
	ID            int64           `json:"id"`
	OrderID       int64           `json:"order_id"`
	ItemID        int64           `json:"item_id"`
	ItemName      string          `json:"item_name"`
	Quantity      int             `json:"quantity"`
	Mode          PricingMode     `json:"mode"`
	StockConsumed decimal.Decimal `json:"stock_consumed"`
	LineTotal     decimal.Decimal `json:"line_total"`
}

// PaymentMethod values match the labels the checkout form posts.
type PaymentMethod string

const (
	PayAccount    PaymentMethod = "Account"
	PayCreditCard PaymentMethod = "Credit Card"
	PayDebitCard  PaymentMethod = "Debit Card"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PayAccount, PayCreditCard, PayDebitCard:
		return true
	}
	return false
}

// Payment is additive against an order total and never reversed.
type Payment struct {
	ID         string          `json:"id"`
	OrderID    int64           `json:"order_id"`
	CustomerID int64           `json:"customer_id"`
	Amount     decimal.Decimal `json:"amount"`
	Method     PaymentMethod   `json:"method"`
	PaidAt     time.Time       `json:"paid_at"`
	Card       *CardDetails    `json:"card,omitempty"`
}

// CardDetails carries the card variants' columns. Only the last four digits
// of a card number are ever stored.
type CardDetails struct {
	Last4    string `json:"last4"`
	Expiry   string `json:"expiry,omitempty"`
	CardType string `json:"card_type,omitempty"`
	BankName string `json:"bank_name,omitempty"`
}

// ItemPopularity is one row of the popular items report.
type ItemPopularity struct {
	ItemID int64  `json:"item_id"`
	Name   string `json:"name"`
	Count  int    `json:"count"`
}
