package messaging

import (
	"context"
	"log/slog"
)

// Topics the order lifecycle is published on.
const (
	TopicOrdersPlaced    = "orders.placed"
	TopicOrdersPaid      = "orders.paid"
	TopicOrdersCompleted = "orders.completed"
	TopicOrdersCancelled = "orders.cancelled"
)

// Publisher defines an interface for publishing events to a message broker.
type Publisher interface {
	PublishEvent(ctx context.Context, topic string, key string, event any) error
}

// Subscriber defines an interface for subscribing to a message topic.
// Consume blocks until ctx is cancelled.
type Subscriber interface {
	Consume(ctx context.Context, topic string, groupID string, handler func(ctx context.Context, payload []byte) error)
}

// Broker is a publisher and subscriber that owns its connections.
type Broker interface {
	Publisher
	Subscriber
	Close() error
}

// Nop drops every event. It is used when no broker is configured.
type Nop struct{}

func (Nop) PublishEvent(ctx context.Context, topic string, key string, event any) error {
	slog.Debug("No broker configured, dropping event", "topic", topic, "key", key)
	return nil
}

func (Nop) Consume(ctx context.Context, topic string, groupID string, handler func(ctx context.Context, payload []byte) error) {
	<-ctx.Done()
}

func (Nop) Close() error {
	return nil
}
