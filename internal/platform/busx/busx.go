// Package busx wraps kafka-go into a JSON producer/consumer pair used as
// the durable execution bus for order lifecycle events.
package busx

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/wyfcoding/simtrading/internal/platform/logging"
)

// Config controls the Kafka client.
type Config struct {
	Brokers        []string `mapstructure:"brokers"`
	GroupID        string   `mapstructure:"group_id"`
	SessionTimeout int      `mapstructure:"session_timeout"`
	MaxRetries     int      `mapstructure:"max_retries"`
	RetryBackoffMS int      `mapstructure:"retry_backoff_ms"`
}

// Message is a received, not-yet-committed bus message.
type Message struct {
	Topic     string
	Partition int
	Offset    int64
	Key       string
	Value     []byte
	Time      time.Time

	raw kafka.Message
}

// Producer publishes JSON-encoded messages keyed for partition affinity.
type Producer struct {
	writer *kafka.Writer
}

// NewProducer builds a producer that creates topics on first use and waits
// for all in-sync replicas before acknowledging a write.
func NewProducer(cfg Config) *Producer {
	backoff := time.Duration(cfg.RetryBackoffMS) * time.Millisecond
	if backoff <= 0 {
		backoff = 100 * time.Millisecond
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		RequiredAcks:           kafka.RequireAll,
		MaxAttempts:            maxRetries,
		WriteBackoffMin:        backoff,
		WriteBackoffMax:        backoff * 10,
	}
	logging.Info(context.Background(), "kafka producer created", "brokers", cfg.Brokers)
	return &Producer{writer: writer}
}

// Publish marshals value as JSON and sends it to topic, partitioned by key
// so every message for a given order lands on the same partition.
func (p *Producer) Publish(ctx context.Context, topic, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal bus message: %w", err)
	}
	msg := kafka.Message{Topic: topic, Key: []byte(key), Value: data}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		logging.Error(ctx, "kafka publish failed", "topic", topic, "key", key, "error", err)
		return err
	}
	logging.Debug(ctx, "kafka message published", "topic", topic, "key", key)
	return nil
}

// Close flushes and closes the producer.
func (p *Producer) Close() error { return p.writer.Close() }

// Consumer reads from a single topic under a consumer group, with explicit
// per-message commit so a handler failure can be retried or dead-lettered
// rather than silently advancing the offset.
type Consumer struct {
	reader *kafka.Reader
}

// NewConsumer subscribes to topic under cfg.GroupID.
func NewConsumer(cfg Config, topic string) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		Topic:          topic,
		GroupID:        cfg.GroupID,
		SessionTimeout: time.Duration(cfg.SessionTimeout) * time.Second,
		StartOffset:    kafka.FirstOffset,
		MaxBytes:       10e6,
	})
	logging.Info(context.Background(), "kafka consumer created", "topic", topic, "group_id", cfg.GroupID)
	return &Consumer{reader: reader}
}

// Fetch reads the next message without committing its offset. Call Commit
// once the handler has durably applied its effect.
func (c *Consumer) Fetch(ctx context.Context) (*Message, error) {
	msg, err := c.reader.FetchMessage(ctx)
	if err != nil {
		return nil, err
	}
	return &Message{
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Offset:    msg.Offset,
		Key:       string(msg.Key),
		Value:     msg.Value,
		Time:      msg.Time,
		raw:       msg,
	}, nil
}

// Commit advances the consumer group's offset past msg. A message whose
// handler determined the order is unprocessable should still be committed
// here after being marked FAILED upstream — poison messages do not block
// the partition.
func (c *Consumer) Commit(ctx context.Context, msg *Message) error {
	if err := c.reader.CommitMessages(ctx, msg.raw); err != nil {
		logging.Error(ctx, "kafka commit failed", "topic", msg.Topic, "offset", msg.Offset, "error", err)
		return err
	}
	return nil
}

// Close stops the consumer and leaves the group.
func (c *Consumer) Close() error { return c.reader.Close() }
