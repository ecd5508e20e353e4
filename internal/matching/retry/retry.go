// Package retry is the Retry Scheduler (C9): a per-order retry counter and
// next-eligible-time store, plus a dispatcher loop that republishes
// eligible messages to the execution bus's active topic.
package retry

import (
	"context"
	"time"

	"github.com/wyfcoding/simtrading/internal/bus"
	"github.com/wyfcoding/simtrading/internal/market/calendar"
	"github.com/wyfcoding/simtrading/internal/order"
	"github.com/wyfcoding/simtrading/internal/platform/logging"
)

// Delay is DefaultConfig's wait imposed between a miss and the next
// eligible attempt.
const Delay = 3 * time.Minute

// MaxRetries is DefaultConfig's number of probabilistic attempts before the
// next is forced (mirrors matching.MaxProbabilisticRetries without
// importing the matching package, to avoid a cycle).
const MaxRetries = 5

// RecordTTL is how long a retry record survives in the store.
const RecordTTL = 24 * time.Hour

// Config carries the retry schedule from spec.md §9.
type Config struct {
	Delay      time.Duration
	MaxRetries int
}

// DefaultConfig matches spec.md's literal schedule.
func DefaultConfig() Config {
	return Config{Delay: Delay, MaxRetries: MaxRetries}
}

// Record is one order's retry bookkeeping.
type Record struct {
	OrderID       string
	RetryCount    int
	NextEligibleAt time.Time
}

// Store persists Records with a TTL, keyed by orderId.
type Store interface {
	Put(ctx context.Context, rec Record) error
	Get(ctx context.Context, orderID string) (Record, bool, error)
}

// Scheduler implements the schedule(orderId, side, retryCount) operation
// from spec.md §4.9.
type Scheduler struct {
	store Store
	bus   bus.Bus
	clock calendar.Clock
	cfg   Config
}

// New builds a Scheduler.
func New(store Store, b bus.Bus, clock calendar.Clock, cfg Config) *Scheduler {
	return &Scheduler{store: store, bus: b, clock: clock, cfg: cfg}
}

// Schedule records the next retry attempt and publishes a delayed message
// to orders.retry. A retryCount that has already reached cfg.MaxRetries is
// a defensive no-op: the worker should already have force-filled.
func (s *Scheduler) Schedule(ctx context.Context, orderID string, side order.Side, retryCount int) error {
	next := retryCount + 1
	if next > s.cfg.MaxRetries {
		return nil
	}

	nextEligibleAt := s.clock.Now().Add(s.cfg.Delay)
	if err := s.store.Put(ctx, Record{OrderID: orderID, RetryCount: next, NextEligibleAt: nextEligibleAt}); err != nil {
		return err
	}

	return s.bus.PublishRetry(ctx, bus.Message{
		OrderID:    orderID,
		Side:       string(side),
		RetryCount: next,
		EnqueuedAt: s.clock.Now(),
		NotBefore:  &nextEligibleAt,
	})
}

// Dispatcher drains orders.retry, holding back messages whose notBefore
// has not yet elapsed and forwarding eligible ones to orders.active.
type Dispatcher struct {
	bus   bus.Bus
	clock calendar.Clock
}

// NewDispatcher builds a Dispatcher.
func NewDispatcher(b bus.Bus, clock calendar.Clock) *Dispatcher {
	return &Dispatcher{bus: b, clock: clock}
}

// Run drains orders.retry until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		delivery, err := d.bus.ConsumeRetry(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logging.Error(ctx, "retry dispatcher consume failed", "error", err)
			continue
		}
		if err := d.Handle(ctx, delivery.Message); err != nil {
			logging.Error(ctx, "retry dispatcher handle failed", "order_id", delivery.Message.OrderID, "error", err)
		}
		if err := delivery.Ack(ctx); err != nil {
			logging.Error(ctx, "retry dispatcher ack failed", "order_id", delivery.Message.OrderID, "error", err)
		}
	}
}

// Handle forwards msg to orders.active once eligible, or republishes it to
// orders.retry unchanged if its notBefore has not yet elapsed — the worker
// MUST NOT attempt a fill before nextEligibleAt.
func (d *Dispatcher) Handle(ctx context.Context, msg bus.Message) error {
	if msg.NotBefore != nil && d.clock.Now().Before(*msg.NotBefore) {
		return d.bus.PublishRetry(ctx, msg)
	}
	return d.bus.PublishActive(ctx, msg)
}
