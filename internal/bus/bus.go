// Package bus is the durable execution bus: two logical queues,
// orders.active and orders.retry, partitioned by orderId for per-order
// serial processing, with manual acknowledgement after state is persisted.
package bus

import (
	"context"
	"encoding/json"
	"time"

	"github.com/wyfcoding/simtrading/internal/platform/busx"
)

// Topic names, partitioned by orderId.
const (
	TopicActive = "orders.active"
	TopicRetry  = "orders.retry"
)

// Message is one unit of work traveling through the bus.
type Message struct {
	OrderID    string     `json:"order_id"`
	Side       string     `json:"side"`
	RetryCount int        `json:"retry_count"`
	EnqueuedAt time.Time  `json:"enqueued_at"`
	NotBefore  *time.Time `json:"not_before,omitempty"`
}

// Delivery is a received, not-yet-acknowledged message.
type Delivery struct {
	Message Message
	ack     func(ctx context.Context) error
}

// Ack acknowledges the delivery, advancing the consumer past it.
func (d Delivery) Ack(ctx context.Context) error { return d.ack(ctx) }

// Bus is the contract the matching worker and retry dispatcher consume.
type Bus interface {
	PublishActive(ctx context.Context, msg Message) error
	PublishRetry(ctx context.Context, msg Message) error
	ConsumeActive(ctx context.Context) (Delivery, error)
	ConsumeRetry(ctx context.Context) (Delivery, error)
	Close() error
}

// KafkaBus is the production Bus, backed by busx.
type KafkaBus struct {
	producer     *busx.Producer
	activeReader *busx.Consumer
	retryReader  *busx.Consumer
}

// NewKafkaBus builds a KafkaBus from an already-built producer and one
// consumer per topic (each consumer belongs to the service's consumer
// group, so every worker in the pool shares partition assignment).
func NewKafkaBus(producer *busx.Producer, activeReader, retryReader *busx.Consumer) *KafkaBus {
	return &KafkaBus{producer: producer, activeReader: activeReader, retryReader: retryReader}
}

func (b *KafkaBus) PublishActive(ctx context.Context, msg Message) error {
	return b.producer.Publish(ctx, TopicActive, msg.OrderID, msg)
}

func (b *KafkaBus) PublishRetry(ctx context.Context, msg Message) error {
	return b.producer.Publish(ctx, TopicRetry, msg.OrderID, msg)
}

func (b *KafkaBus) ConsumeActive(ctx context.Context) (Delivery, error) {
	return consume(ctx, b.activeReader)
}

func (b *KafkaBus) ConsumeRetry(ctx context.Context) (Delivery, error) {
	return consume(ctx, b.retryReader)
}

func (b *KafkaBus) Close() error {
	if err := b.activeReader.Close(); err != nil {
		return err
	}
	return b.retryReader.Close()
}

func consume(ctx context.Context, reader *busx.Consumer) (Delivery, error) {
	raw, err := reader.Fetch(ctx)
	if err != nil {
		return Delivery{}, err
	}
	var msg Message
	if err := json.Unmarshal(raw.Value, &msg); err != nil {
		return Delivery{}, err
	}
	return Delivery{
		Message: msg,
		ack:     func(ctx context.Context) error { return reader.Commit(ctx, raw) },
	}, nil
}
