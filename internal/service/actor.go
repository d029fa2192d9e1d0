package service

import (
	"context"
	"log/slog"

	"github.com/reisinl/veg-shop/internal/entity"
	"github.com/reisinl/veg-shop/internal/messaging"
	"github.com/reisinl/veg-shop/internal/repository"
)

// Actor is the authenticated person a use case runs on behalf of.
type Actor struct {
	PersonID int64       `json:"person_id"`
	Username string      `json:"username"`
	Role     entity.Role `json:"role"`
}

func (a Actor) IsStaff() bool {
	return a.Role == entity.RoleStaff
}

// owns reports whether the actor is the customer an order belongs to.
func (a Actor) owns(o *entity.Order) bool {
	return !a.IsStaff() && o.CustomerID == a.PersonID
}

// canView lets staff see everything and customers only their own orders.
func (a Actor) canView(o *entity.Order) bool {
	return a.IsStaff() || a.owns(o)
}

func requireStaff(a Actor) error {
	if !a.IsStaff() {
		return entity.ErrForbidden
	}
	return nil
}

// appendOrderEvents appends to an order's stream at its current version.
func appendOrderEvents(ctx context.Context, repos repository.Repositories, orderNumber string, events ...entity.Event) error {
	streamID := entity.OrderStreamID(orderNumber)
	records, err := repos.Events.LoadEvents(ctx, streamID)
	if err != nil {
		return err
	}
	return repos.Events.SaveEvents(ctx, streamID, "Order", len(records), events)
}

// publish runs after commit. A broker outage is logged and does not undo a
// committed order.
func publish(ctx context.Context, p messaging.Publisher, topic, key string, event any) {
	if err := p.PublishEvent(ctx, topic, key, event); err != nil {
		slog.Error("Failed to publish event", "topic", topic, "key", key, "err", err)
	}
}
