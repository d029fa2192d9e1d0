package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/reisinl/veg-shop/internal/entity"
	"github.com/reisinl/veg-shop/internal/messaging"
	"github.com/reisinl/veg-shop/internal/pricing"
	"github.com/reisinl/veg-shop/internal/repository"
)

// OrderService orchestrates order placement and the order lifecycle.
type OrderService struct {
	store     repository.Store
	engine    *pricing.Engine
	publisher messaging.Publisher
	now       func() time.Time
}

func NewOrderService(
	store repository.Store,
	engine *pricing.Engine,
	publisher messaging.Publisher,
) *OrderService {
	return &OrderService{
		store:     store,
		engine:    engine,
		publisher: publisher,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// PlaceOrderRequest is what the order form submits. CustomerID is required
// when staff order on behalf of a customer and ignored otherwise.
type PlaceOrderRequest struct {
	CustomerID int64 `json:"customer_id,omitempty"`
	pricing.Request
}

// PlacedOrder is the stored order together with its price breakdown.
type PlacedOrder struct {
	Order        *entity.Order        `json:"order"`
	Priced       *pricing.PricedOrder `json:"pricing"`
	DisplayTotal string               `json:"display_total"`
}

// OrderDetails is an order with what has been paid against it.
type OrderDetails struct {
	Order        *entity.Order    `json:"order"`
	CustomerName string           `json:"customer_name"`
	Payments     []entity.Payment `json:"payments"`
	Paid         decimal.Decimal  `json:"paid"`
	Due          decimal.Decimal  `json:"payment_due"`
}

// OrderHistory is an order's event stream replayed through the aggregate.
type OrderHistory struct {
	OrderNumber string                `json:"order_number"`
	Status      entity.OrderStatus    `json:"status"`
	Cancelled   bool                  `json:"cancelled"`
	Total       decimal.Decimal       `json:"total_amount"`
	Paid        decimal.Decimal       `json:"paid"`
	Due         decimal.Decimal       `json:"payment_due"`
	Events      []entity.HistoryEntry `json:"events"`
}

func (s *OrderService) customerFor(actor Actor, requested int64) (int64, error) {
	if actor.IsStaff() {
		if requested == 0 {
			return 0, entity.ErrCustomerRequired
		}
		return requested, nil
	}
	if requested != 0 && requested != actor.PersonID {
		return 0, entity.ErrForbidden
	}
	return actor.PersonID, nil
}

// PlaceOrder prices the request and reserves its stock in one transaction.
// Nothing is written unless every line can be priced and reserved.
func (s *OrderService) PlaceOrder(ctx context.Context, actor Actor, req PlaceOrderRequest) (*PlacedOrder, error) {
	customerID, err := s.customerFor(actor, req.CustomerID)
	if err != nil {
		return nil, err
	}

	slog.Info("Service: Placing order", "customer_id", customerID, "actor", actor.Username, "lines", len(req.Lines))

	var (
		order  *entity.Order
		priced *pricing.PricedOrder
		placed entity.OrderPlaced
	)
	err = s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		customer, err := repos.Persons.LockCustomer(ctx, customerID)
		if err != nil {
			return fmt.Errorf("customer %d: %w", customerID, err)
		}

		items, err := repos.Items.LockByIDs(ctx, req.ItemIDs())
		if err != nil {
			return err
		}
		if b := req.Box; b != nil && b.Count > 0 {
			box, err := repos.Items.FindBoxBySize(ctx, b.Size)
			switch {
			case err == nil:
				items = append(items, *box)
			case !errors.Is(err, entity.ErrNotFound):
				return err
			}
		}

		priced, err = s.engine.PriceAndReserve(*customer, pricing.NewSnapshot(items...), req.Request)
		if err != nil {
			return err
		}

		for _, r := range priced.Reservations {
			if err := repos.Items.DecrementStock(ctx, r.ItemID, r.Quantity); err != nil {
				return err
			}
		}

		order = &entity.Order{
			Number:     priced.Number,
			CustomerID: customer.ID,
			Status:     entity.StatusPending,
			Total:      priced.Total,
			Delivery:   priced.Delivery,
			CreatedAt:  s.now(),
			Lines:      priced.Lines,
		}
		if actor.IsStaff() {
			staffID := actor.PersonID
			order.StaffID = &staffID
		}
		if err := repos.Orders.Create(ctx, order); err != nil {
			return err
		}

		if err := repos.Persons.UpdateCustomerAccount(ctx, customer.ID, customer.Balance, customer.Owing.Add(priced.Total)); err != nil {
			return err
		}

		placed = entity.OrderPlaced{
			OrderID:     order.ID,
			OrderNumber: order.Number,
			CustomerID:  order.CustomerID,
			StaffID:     order.StaffID,
			Lines:       order.Lines,
			Total:       order.Total,
			Delivery:    order.Delivery,
			PlacedAt:    order.CreatedAt,
		}
		return repos.Events.SaveEvents(ctx, entity.OrderStreamID(order.Number), "Order", 0, []entity.Event{placed})
	})
	if err != nil {
		if entity.IsRejection(err) {
			slog.Info("Order rejected", "customer_id", customerID, "err", err)
		}
		return nil, err
	}

	slog.Info("Order placed", "order_number", order.Number, "total", priced.DisplayTotal())
	publish(ctx, s.publisher, messaging.TopicOrdersPlaced, order.Number, placed)

	return &PlacedOrder{Order: order, Priced: priced, DisplayTotal: priced.DisplayTotal()}, nil
}

// ListOrders returns current (Pending) or previous orders. Customers only
// ever see their own.
func (s *OrderService) ListOrders(ctx context.Context, actor Actor, state string) ([]entity.Order, error) {
	var filter repository.OrderFilter
	switch state {
	case "":
	case "current":
		pending := true
		filter.Pending = &pending
	case "previous":
		pending := false
		filter.Pending = &pending
	default:
		return nil, fmt.Errorf("%w: unknown order state %q", entity.ErrInvalidInput, state)
	}
	if !actor.IsStaff() {
		id := actor.PersonID
		filter.CustomerID = &id
	}

	orders, err := s.store.Repos().Orders.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

func (s *OrderService) GetOrder(ctx context.Context, actor Actor, id int64) (*OrderDetails, error) {
	repos := s.store.Repos()

	o, err := repos.Orders.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("order %d: %w", id, err)
	}
	if !actor.canView(o) {
		return nil, entity.ErrForbidden
	}

	payments, err := repos.Payments.FindByOrder(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	paid := decimal.Zero
	for _, p := range payments {
		paid = paid.Add(p.Amount)
	}

	details := &OrderDetails{
		Order:    o,
		Payments: payments,
		Paid:     paid,
		Due:      o.Total.Sub(paid),
	}
	if c, err := repos.Persons.FindCustomer(ctx, o.CustomerID); err == nil {
		details.CustomerName = c.FullName()
	}
	return details, nil
}

// History replays an order's event stream. ref is an order id or an order
// number; only the number still resolves once a cancelled order is gone.
func (s *OrderService) History(ctx context.Context, actor Actor, ref string) (*OrderHistory, error) {
	repos := s.store.Repos()

	number := ref
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		o, err := repos.Orders.FindByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("order %d: %w", id, err)
		}
		number = o.Number
	}

	records, err := repos.Events.LoadEvents(ctx, entity.OrderStreamID(number))
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("order %s: %w", number, entity.ErrNotFound)
	}

	agg := entity.NewOrderAggregate(entity.OrderStreamID(number))
	if err := agg.Rehydrate(records); err != nil {
		return nil, fmt.Errorf("failed to rehydrate order aggregate: %w", err)
	}
	if !actor.IsStaff() && agg.CustomerID != actor.PersonID {
		return nil, entity.ErrForbidden
	}

	return &OrderHistory{
		OrderNumber: agg.Number,
		Status:      agg.Status,
		Cancelled:   agg.Cancelled,
		Total:       agg.Total,
		Paid:        agg.Paid,
		Due:         agg.Due(),
		Events:      agg.History,
	}, nil
}

// CancelOrder deletes a pending order on behalf of its owner and hands the
// reserved stock back.
func (s *OrderService) CancelOrder(ctx context.Context, actor Actor, id int64) error {
	var cancelled entity.OrderCancelled

	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		o, err := repos.Orders.LockByID(ctx, id)
		if err != nil {
			return fmt.Errorf("order %d: %w", id, err)
		}
		if !actor.owns(o) {
			return entity.ErrForbidden
		}
		if o.Status != entity.StatusPending {
			return entity.ErrOrderNotPending
		}

		payments, err := repos.Payments.FindByOrder(ctx, o.ID)
		if err != nil {
			return err
		}
		if len(payments) > 0 {
			return entity.ErrOrderHasPayments
		}

		customer, err := repos.Persons.LockCustomer(ctx, o.CustomerID)
		if err != nil {
			return err
		}

		var released []entity.OrderLine
		for _, l := range o.Lines {
			if !l.StockConsumed.IsPositive() {
				continue
			}
			if err := repos.Items.IncrementStock(ctx, l.ItemID, l.StockConsumed); err != nil {
				return err
			}
			released = append(released, l)
		}

		owing := decimal.Max(customer.Owing.Sub(o.Total), decimal.Zero)
		if err := repos.Persons.UpdateCustomerAccount(ctx, customer.ID, customer.Balance, owing); err != nil {
			return err
		}

		if err := repos.Orders.Delete(ctx, o.ID); err != nil {
			return err
		}

		cancelled = entity.OrderCancelled{
			OrderID:     o.ID,
			OrderNumber: o.Number,
			CustomerID:  o.CustomerID,
			Released:    released,
			CancelledAt: s.now(),
		}
		return appendOrderEvents(ctx, repos, o.Number, cancelled)
	})
	if err != nil {
		return err
	}

	slog.Info("Order cancelled", "order_number", cancelled.OrderNumber, "released_lines", len(cancelled.Released))
	publish(ctx, s.publisher, messaging.TopicOrdersCancelled, cancelled.OrderNumber, cancelled)
	return nil
}

// UpdateStatus lets staff force any non-empty status.
func (s *OrderService) UpdateStatus(ctx context.Context, actor Actor, id int64, status string) (*entity.Order, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	to := entity.OrderStatus(strings.TrimSpace(status))
	if to == "" {
		return nil, entity.ErrInvalidStatus
	}

	var updated *entity.Order
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		o, err := repos.Orders.LockByID(ctx, id)
		if err != nil {
			return fmt.Errorf("order %d: %w", id, err)
		}
		from := o.Status
		if err := repos.Orders.UpdateStatus(ctx, o.ID, to); err != nil {
			return err
		}
		o.Status = to
		updated = o

		return appendOrderEvents(ctx, repos, o.Number, entity.OrderStatusChanged{
			OrderID:   o.ID,
			StaffID:   actor.PersonID,
			From:      from,
			To:        to,
			ChangedAt: s.now(),
		})
	})
	if err != nil {
		return nil, err
	}

	slog.Info("Order status updated", "order_number", updated.Number, "status", updated.Status, "staff", actor.Username)
	return updated, nil
}
