// Package watermill adapts Watermill publishers and subscribers to the
// messaging ports. It runs either against Kafka (through Sarama) or fully
// in process on a Go channel.
package watermill

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/IBM/sarama"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v3/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"

	"github.com/reisinl/veg-shop/internal/messaging"
)

const keyMetadata = "key"

type subscriberFactory func(groupID string) (message.Subscriber, error)

type broker struct {
	publisher       message.Publisher
	subscriber      subscriberFactory
	// ownsSubscribers is set when every Consume gets a fresh subscriber.
	ownsSubscribers bool

	mu     sync.Mutex
	closed []func() error
}

// NewKafka publishes and consumes through Kafka with a Sarama client. Each
// Consume call joins its own consumer group.
func NewKafka(brokers []string, logger *slog.Logger) (messaging.Broker, error) {
	wmLogger := watermill.NewSlogLogger(logger)
	marshaler := kafka.NewWithPartitioningMarshaler(func(topic string, msg *message.Message) (string, error) {
		return msg.Metadata.Get(keyMetadata), nil
	})

	pubConfig := kafka.DefaultSaramaSyncPublisherConfig()
	pubConfig.Producer.RequiredAcks = sarama.WaitForAll
	pubConfig.Producer.Partitioner = sarama.NewHashPartitioner

	publisher, err := kafka.NewPublisher(kafka.PublisherConfig{
		Brokers:               brokers,
		Marshaler:             marshaler,
		OverwriteSaramaConfig: pubConfig,
	}, wmLogger)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka publisher: %w", err)
	}

	b := &broker{publisher: publisher, ownsSubscribers: true}
	b.subscriber = func(groupID string) (message.Subscriber, error) {
		subConfig := kafka.DefaultSaramaSubscriberConfig()
		subConfig.Consumer.Offsets.Initial = sarama.OffsetOldest
		return kafka.NewSubscriber(kafka.SubscriberConfig{
			Brokers:               brokers,
			Unmarshaler:           marshaler,
			OverwriteSaramaConfig: subConfig,
			ConsumerGroup:         groupID,
		}, wmLogger)
	}
	b.closed = append(b.closed, publisher.Close)
	return b, nil
}

// NewGoChannel keeps every message in process. Consumer groups are ignored:
// each subscription sees every message.
func NewGoChannel(cfg gochannel.Config, logger *slog.Logger) messaging.Broker {
	wmLogger := watermill.NewSlogLogger(logger)
	pubSub := gochannel.NewGoChannel(cfg, wmLogger)

	b := &broker{publisher: pubSub}
	b.subscriber = func(string) (message.Subscriber, error) { return pubSub, nil }
	b.closed = append(b.closed, pubSub.Close)
	return b
}

func (b *broker) PublishEvent(ctx context.Context, topic string, key string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(uuid.NewString(), payload)
	msg.Metadata.Set(keyMetadata, key)
	msg.SetContext(ctx)

	return b.publisher.Publish(topic, msg)
}

func (b *broker) Consume(ctx context.Context, topic string, groupID string, handler func(ctx context.Context, payload []byte) error) {
	sub, err := b.subscriber(groupID)
	if err != nil {
		slog.Error("Failed to create subscriber", "topic", topic, "group", groupID, "err", err)
		return
	}
	if b.ownsSubscribers {
		defer sub.Close()
	}

	messages, err := sub.Subscribe(ctx, topic)
	if err != nil {
		slog.Error("Failed to subscribe", "topic", topic, "group", groupID, "err", err)
		return
	}

	for {
		select {
		case <-ctx.Done():
			slog.Info("Consumer shutting down", "topic", topic)
			return
		case msg, ok := <-messages:
			if !ok {
				slog.Info("Consumer shutting down", "topic", topic)
				return
			}
			if err := handler(ctx, msg.Payload); err != nil {
				slog.Error("Error handling message", "topic", topic, "message_uuid", msg.UUID, "err", err)
			}
			// Handler errors are logged, not redelivered.
			msg.Ack()
		}
	}
}

func (b *broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	var firstErr error
	for _, closeFn := range b.closed {
		if err := closeFn(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	b.closed = nil
	return firstErr
}
