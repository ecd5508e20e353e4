// Package opener is the Reservation Opener (C10): once at market open, it
// promotes RESERVED orders to PENDING, re-anchoring price and adjusting
// the cash reservation by the delta between the reserved and live price.
package opener

import (
	"context"
	"time"

	"github.com/wyfcoding/simtrading/internal/bus"
	"github.com/wyfcoding/simtrading/internal/errs"
	"github.com/wyfcoding/simtrading/internal/ledger"
	"github.com/wyfcoding/simtrading/internal/market/calendar"
	"github.com/wyfcoding/simtrading/internal/order"
	"github.com/wyfcoding/simtrading/internal/platform/logging"
	"github.com/wyfcoding/simtrading/internal/platform/metrics"
	"github.com/wyfcoding/simtrading/internal/pricing/oracle"
)

// Opener runs the once-daily reservation-opening job.
type Opener struct {
	cal     *calendar.Calendar
	oracle  *oracle.Oracle
	ledger  *ledger.Ledger
	orders  *order.Store
	bus     bus.Bus
	metrics *metrics.Metrics

	// reservedAccounts lists every RESERVED order the job needs to scan,
	// across all accounts, found via a repository query rather than
	// iterated directly here.
	reservedAccounts ReservedOrderLister
}

// ReservedOrderLister finds every RESERVED order the job must process.
// Implemented by internal/order.Store via ListReserved (added alongside
// ListByAccountStatus, since the job scans across accounts, not within
// one).
type ReservedOrderLister interface {
	ListReserved(ctx context.Context) ([]order.Order, error)
}

// New builds an Opener.
func New(cal *calendar.Calendar, o *oracle.Oracle, l *ledger.Ledger, orders *order.Store, lister ReservedOrderLister, b bus.Bus, m *metrics.Metrics) *Opener {
	return &Opener{cal: cal, oracle: o, ledger: l, orders: orders, bus: b, metrics: m, reservedAccounts: lister}
}

// Run blocks until ctx is cancelled, firing Open once per market day at
// the Calendar's NextOpen instant. NextOpen only rolls to the following
// day once today's close has passed, so an instant still inside today's
// session (where NextOpen returns today's already-passed open) needs
// bumping a full day forward to land on a firing strictly after now; an
// instant before today's open already gets today's open, unbumped.
func (o *Opener) Run(ctx context.Context) {
	for {
		now := o.cal.Now()
		next := o.cal.NextOpen(now)
		if !next.After(now) {
			next = o.cal.NextOpen(now.Add(24 * time.Hour))
		}
		timer := time.NewTimer(next.Sub(now))

		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			if err := o.Open(ctx); err != nil {
				logging.Error(ctx, "reservation opener run failed", "error", err)
			}
		}
	}
}

// Open processes every RESERVED order once, each in its own transaction.
func (o *Opener) Open(ctx context.Context) error {
	reserved, err := o.reservedAccounts.ListReserved(ctx)
	if err != nil {
		return err
	}

	for _, ord := range reserved {
		if err := o.openOne(ctx, ord); err != nil {
			logging.Error(ctx, "failed to open reserved order", "order_id", ord.OrderID, "error", err)
		}
	}
	return nil
}

func (o *Opener) openOne(ctx context.Context, ord order.Order) error {
	livePrice, err := o.oracle.CurrentPrice(ctx, ord.Ticker)
	if err != nil {
		return err
	}

	if ord.Side == order.Sell {
		if err := o.orders.UpdateStatusAndPrice(ctx, ord.OrderID, order.StatusReserved, order.StatusPending, livePrice); err != nil {
			return err
		}
		o.uncount()
		return o.publish(ctx, ord.OrderID, ord.Side)
	}

	oldPrice := ord.Price
	delta := (livePrice - oldPrice) * ord.Quantity

	switch {
	case delta > 0:
		canReserve, err := o.ledger.CanReserve(ctx, ord.AccountID, delta)
		if err != nil {
			return err
		}
		if canReserve {
			if err := o.ledger.ReserveCash(ctx, ord.AccountID, delta, ord.OrderID); err != nil {
				return err
			}
			if err := o.orders.UpdateStatusAndPrice(ctx, ord.OrderID, order.StatusReserved, order.StatusPending, livePrice); err != nil {
				return err
			}
			o.count("opened_up")
			return o.publish(ctx, ord.OrderID, ord.Side)
		}

		if err := o.ledger.ReleaseCash(ctx, ord.AccountID, oldPrice*ord.Quantity, ord.OrderID); err != nil {
			return err
		}
		if err := o.orders.UpdateStatus(ctx, ord.OrderID, order.StatusReserved, order.StatusCancelled); err != nil && !errs.Is(err, errs.Conflict) {
			return err
		}
		o.count("shortfall_cancelled")
		return nil

	case delta < 0:
		if err := o.ledger.ReleaseCash(ctx, ord.AccountID, -delta, ord.OrderID); err != nil {
			return err
		}
		if err := o.orders.UpdateStatusAndPrice(ctx, ord.OrderID, order.StatusReserved, order.StatusPending, livePrice); err != nil {
			return err
		}
		o.count("price_dropped")
		return o.publish(ctx, ord.OrderID, ord.Side)

	default:
		if err := o.orders.UpdateStatus(ctx, ord.OrderID, order.StatusReserved, order.StatusPending); err != nil && !errs.Is(err, errs.Conflict) {
			return err
		}
		o.count("unchanged")
		return o.publish(ctx, ord.OrderID, ord.Side)
	}
}

// count records the reservation's disposition and, for every outcome here,
// the order has left RESERVED (promoted or cancelled), so the active gauge
// always decrements alongside it.
func (o *Opener) count(outcome string) {
	if o.metrics != nil {
		o.metrics.ReservationsOpened.WithLabelValues(outcome).Inc()
	}
	o.uncount()
}

func (o *Opener) uncount() {
	if o.metrics != nil {
		o.metrics.ActiveReservations.Dec()
	}
}

func (o *Opener) publish(ctx context.Context, orderID string, side order.Side) error {
	return o.bus.PublishActive(ctx, bus.Message{
		OrderID:    orderID,
		Side:       string(side),
		RetryCount: 0,
		EnqueuedAt: time.Now(),
	})
}
