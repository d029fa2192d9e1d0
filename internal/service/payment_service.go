package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/reisinl/veg-shop/internal/entity"
	"github.com/reisinl/veg-shop/internal/messaging"
	"github.com/reisinl/veg-shop/internal/repository"
)

// PaymentService records payments against pending orders.
type PaymentService struct {
	store     repository.Store
	publisher messaging.Publisher
	now       func() time.Time
}

func NewPaymentService(store repository.Store, publisher messaging.Publisher) *PaymentService {
	return &PaymentService{
		store:     store,
		publisher: publisher,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// CardInput is the card part of the checkout form. The full number never
// leaves this struct.
type CardInput struct {
	Number   string `json:"card_number"`
	Expiry   string `json:"expiry_date,omitempty"`
	CardType string `json:"card_type,omitempty"`
	BankName string `json:"bank_name,omitempty"`
}

type PaymentRequest struct {
	Method string          `json:"payment_method"`
	Amount decimal.Decimal `json:"amount"`
	Card   *CardInput      `json:"card,omitempty"`
}

type PaymentResult struct {
	Payment *entity.Payment    `json:"payment"`
	Paid    decimal.Decimal    `json:"paid"`
	Due     decimal.Decimal    `json:"payment_due"`
	Status  entity.OrderStatus `json:"status"`
}

func cardDetails(method entity.PaymentMethod, in *CardInput) (*entity.CardDetails, error) {
	if method == entity.PayAccount {
		return nil, nil
	}
	if in == nil {
		return nil, fmt.Errorf("%w: card details required", entity.ErrInvalidInput)
	}
	number := strings.ReplaceAll(strings.TrimSpace(in.Number), " ", "")
	if len(number) < 4 {
		return nil, fmt.Errorf("%w: card number required", entity.ErrInvalidInput)
	}
	for _, r := range number {
		if r < '0' || r > '9' {
			return nil, fmt.Errorf("%w: card number must be digits", entity.ErrInvalidInput)
		}
	}
	return &entity.CardDetails{
		Last4:    number[len(number)-4:],
		Expiry:   in.Expiry,
		CardType: in.CardType,
		BankName: in.BankName,
	}, nil
}

// Pay records one payment. An Account payment debits the customer's balance
// under the same lock that checks it. The order completes as soon as the
// payments cover its total.
func (s *PaymentService) Pay(ctx context.Context, actor Actor, orderID int64, req PaymentRequest) (*PaymentResult, error) {
	method := entity.PaymentMethod(req.Method)
	if !method.Valid() {
		return nil, entity.ErrPaymentMethodInvalid
	}
	if !req.Amount.IsPositive() {
		return nil, entity.ErrInvalidAmount
	}
	card, err := cardDetails(method, req.Card)
	if err != nil {
		return nil, err
	}

	var (
		result    *PaymentResult
		recorded  entity.PaymentRecorded
		completed *entity.OrderCompleted
	)
	err = s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		o, err := repos.Orders.LockByID(ctx, orderID)
		if err != nil {
			return fmt.Errorf("order %d: %w", orderID, err)
		}
		if !actor.canView(o) {
			return entity.ErrForbidden
		}
		if o.Status != entity.StatusPending {
			return entity.ErrOrderNotPending
		}

		customer, err := repos.Persons.LockCustomer(ctx, o.CustomerID)
		if err != nil {
			return err
		}
		balance := customer.Balance
		if method == entity.PayAccount {
			if balance.LessThan(req.Amount) {
				return entity.ErrInsufficientBalance
			}
			balance = balance.Sub(req.Amount)
		}
		owing := decimal.Max(customer.Owing.Sub(req.Amount), decimal.Zero)
		if err := repos.Persons.UpdateCustomerAccount(ctx, customer.ID, balance, owing); err != nil {
			return err
		}

		p := &entity.Payment{
			ID:         uuid.NewString(),
			OrderID:    o.ID,
			CustomerID: o.CustomerID,
			Amount:     req.Amount,
			Method:     method,
			PaidAt:     s.now(),
			Card:       card,
		}
		if err := repos.Payments.Create(ctx, p); err != nil {
			return err
		}

		paid, err := repos.Payments.SumByOrder(ctx, o.ID)
		if err != nil {
			return err
		}
		due := o.Total.Sub(paid)

		recorded = entity.PaymentRecorded{
			OrderID:     o.ID,
			OrderNumber: o.Number,
			PaymentID:   p.ID,
			Method:      method,
			Amount:      p.Amount,
			PaidAt:      p.PaidAt,
		}
		events := []entity.Event{recorded}

		status := o.Status
		if !due.IsPositive() {
			status = entity.StatusCompleted
			if err := repos.Orders.UpdateStatus(ctx, o.ID, status); err != nil {
				return err
			}
			completed = &entity.OrderCompleted{OrderID: o.ID, OrderNumber: o.Number, CompletedAt: p.PaidAt}
			events = append(events, *completed)
		}

		result = &PaymentResult{Payment: p, Paid: paid, Due: due, Status: status}
		return appendOrderEvents(ctx, repos, o.Number, events...)
	})
	if err != nil {
		if entity.IsRejection(err) {
			slog.Info("Payment rejected", "order_id", orderID, "err", err)
		}
		return nil, err
	}

	slog.Info("Payment recorded", "order_number", recorded.OrderNumber, "method", method, "amount", req.Amount.StringFixed(2), "status", result.Status)
	publish(ctx, s.publisher, messaging.TopicOrdersPaid, recorded.OrderNumber, recorded)
	if completed != nil {
		publish(ctx, s.publisher, messaging.TopicOrdersCompleted, completed.OrderNumber, *completed)
	}
	return result, nil
}
