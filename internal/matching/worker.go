package matching

import (
	"context"
	"math/rand"
	"time"

	"github.com/wyfcoding/simtrading/internal/bus"
	"github.com/wyfcoding/simtrading/internal/errs"
	"github.com/wyfcoding/simtrading/internal/ledger"
	"github.com/wyfcoding/simtrading/internal/order"
	"github.com/wyfcoding/simtrading/internal/platform/logging"
	"github.com/wyfcoding/simtrading/internal/platform/metrics"
)

// RetryScheduler is the seam the worker hands a miss to. Implemented by
// internal/matching/retry.Scheduler.
type RetryScheduler interface {
	Schedule(ctx context.Context, orderID string, side order.Side, retryCount int) error
}

// Worker consumes orders.active, evaluates the probabilistic fill, applies
// the resulting ledger effect, and hands misses to the RetryScheduler.
type Worker struct {
	orders  *order.Store
	ledger  *ledger.Ledger
	retry   RetryScheduler
	rng     *rand.Rand
	cfg     Config
	metrics *metrics.Metrics
}

// NewWorker builds a Worker with its own private RNG source — every pool
// member MUST get a distinct *rand.Rand, never the shared global one.
func NewWorker(orders *order.Store, l *ledger.Ledger, retry RetryScheduler, seed int64, cfg Config, m *metrics.Metrics) *Worker {
	return &Worker{
		orders:  orders,
		ledger:  l,
		retry:   retry,
		rng:     rand.New(rand.NewSource(seed)),
		cfg:     cfg,
		metrics: m,
	}
}

// Run drains bus deliveries until ctx is cancelled.
func (w *Worker) Run(ctx context.Context, b bus.Bus) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		delivery, err := b.ConsumeActive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logging.Error(ctx, "matching worker consume failed", "error", err)
			continue
		}
		if err := w.Handle(ctx, delivery.Message); err != nil {
			logging.Error(ctx, "matching worker handle failed", "order_id", delivery.Message.OrderID, "error", err)
		}
		if err := delivery.Ack(ctx); err != nil {
			logging.Error(ctx, "matching worker ack failed", "order_id", delivery.Message.OrderID, "error", err)
		}
	}
}

// Handle processes one message to completion: load, dispatch, settle or
// retry. Any order that is missing or already out of PENDING is a no-op —
// a message for a non-existent or already-terminal order is acknowledged
// and dropped, and redelivery of a terminal order's message is therefore
// idempotent.
func (w *Worker) Handle(ctx context.Context, msg bus.Message) error {
	start := time.Now()
	defer func() {
		if w.metrics != nil {
			w.metrics.MatchingAttemptDuration.Observe(time.Since(start).Seconds())
		}
	}()

	o, err := w.orders.Get(ctx, msg.OrderID)
	if errs.Is(err, errs.NotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if o.Status != order.StatusPending {
		return nil
	}

	result := Attempt(msg.RetryCount, w.rng, w.cfg)

	switch result {
	case Filled, ForcedFilled:
		_, err := w.settle(ctx, o, result)
		return err
	case Missed:
		if w.metrics != nil {
			w.metrics.OrderRetriesTotal.Inc()
		}
		if err := w.orders.IncrementRetry(ctx, o.OrderID); err != nil {
			return err
		}
		return w.retry.Schedule(ctx, o.OrderID, o.Side, msg.RetryCount)
	default:
		return nil
	}
}

// settle applies the ledger effect for a Filled or ForcedFilled attempt and
// returns the outcome that actually landed: the same result on success, or
// Failed if settlement itself errored. The returned error is reserved for
// infrastructure failures the caller must propagate (a status update that
// fails for any reason other than errs.Conflict, which is treated as a
// benign race); a settlement error is handled here and folded into the
// Failed result, not returned.
func (w *Worker) settle(ctx context.Context, o *order.Order, result AttemptResult) (AttemptResult, error) {
	var settleErr error
	switch o.Side {
	case order.Buy:
		settleErr = w.ledger.ApplyBuyFill(ctx, o.AccountID, o.Ticker, o.Quantity, o.Price)
	case order.Sell:
		if err := w.ledger.ApplySellFill(ctx, o.AccountID, o.Ticker, o.Quantity); err != nil {
			settleErr = err
		} else {
			settleErr = w.ledger.CreditCash(ctx, o.AccountID, o.Quantity*o.Price, o.OrderID)
		}
	}

	kind := "probabilistic"
	if result == ForcedFilled {
		kind = "forced"
	}

	if settleErr != nil {
		if o.Side == order.Buy {
			if releaseErr := w.ledger.ReleaseCash(ctx, o.AccountID, o.Quantity*o.Price, o.OrderID); releaseErr != nil {
				logging.Error(ctx, "failed to release reservation after settlement failure", "order_id", o.OrderID, "error", releaseErr)
			}
		}
		if err := w.orders.UpdateStatus(ctx, o.OrderID, order.StatusPending, order.StatusFailed); err != nil && !errs.Is(err, errs.Conflict) {
			return Failed, err
		}
		if w.metrics != nil {
			w.metrics.OrdersFailedTotal.WithLabelValues("settlement_error").Inc()
		}
		return Failed, nil
	}

	if err := w.orders.UpdateStatus(ctx, o.OrderID, order.StatusPending, order.StatusExecuted); err != nil && !errs.Is(err, errs.Conflict) {
		return result, err
	}
	if w.metrics != nil {
		w.metrics.OrdersFilledTotal.WithLabelValues(string(o.Side), kind).Inc()
	}
	return result, nil
}
