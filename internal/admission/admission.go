// Package admission validates, normalizes, reserves funds (buy) or checks
// the holding covers the quantity (sell; no shares are set aside),
// persists the order, and enqueues it for execution. Grounded on the
// teacher's CreateOrder validate/compute/persist shape, with the
// cross-service TCC branch replaced by a single local ledger transaction.
package admission

import (
	"context"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/wyfcoding/simtrading/internal/bus"
	"github.com/wyfcoding/simtrading/internal/errs"
	"github.com/wyfcoding/simtrading/internal/ledger"
	"github.com/wyfcoding/simtrading/internal/market/calendar"
	"github.com/wyfcoding/simtrading/internal/order"
	"github.com/wyfcoding/simtrading/internal/platform/logging"
	"github.com/wyfcoding/simtrading/internal/platform/metrics"
	"github.com/wyfcoding/simtrading/internal/pricing/oracle"
	"github.com/wyfcoding/simtrading/internal/stockref"
)

// Config carries the caller-visible validation bounds from spec.md §9.
type Config struct {
	MaxQtyPerOrder     int64
	MaxPriceMinorUnits int64
}

// DefaultConfig matches spec.md's literal values.
func DefaultConfig() Config {
	return Config{MaxQtyPerOrder: 10_000, MaxPriceMinorUnits: 10_000_000}
}

var tickerPattern = regexp.MustCompile(`^\d{1,6}$`)

// Service implements submitBuy/submitSell.
type Service struct {
	cfg     Config
	ledger  *ledger.Ledger
	orders  *order.Store
	cal     *calendar.Calendar
	oracle  *oracle.Oracle
	catalog *stockref.Catalog
	bus     bus.Bus
	metrics *metrics.Metrics
}

// New wires an admission Service from its collaborators. m may be nil in
// tests that don't care about metric observation.
func New(cfg Config, l *ledger.Ledger, orders *order.Store, cal *calendar.Calendar, o *oracle.Oracle, catalog *stockref.Catalog, b bus.Bus, m *metrics.Metrics) *Service {
	return &Service{cfg: cfg, ledger: l, orders: orders, cal: cal, oracle: o, catalog: catalog, bus: b, metrics: m}
}

// Result is the outcome of a successful submission.
type Result struct {
	OrderID string
	Status  order.Status
}

// SubmitBuy validates, reserves cash, and enqueues a BUY order.
func (s *Service) SubmitBuy(ctx context.Context, userID, ticker string, qty int64, price *int64) (Result, error) {
	ticker, err := s.validateCommon(userID, ticker, qty, price)
	if err != nil {
		return Result{}, err
	}

	resolvedPrice, err := s.resolvePrice(ctx, ticker, price)
	if err != nil {
		return Result{}, err
	}

	account, err := s.ledger.CreateAccount(ctx, userID)
	if err != nil {
		return Result{}, err
	}

	amount := resolvedPrice * qty
	orderID := uuid.New().String()

	if err := s.ledger.ReserveCash(ctx, account.AccountID, amount, orderID); err != nil {
		return Result{}, err
	}

	o := &order.Order{
		OrderID:   orderID,
		Side:      order.Buy,
		AccountID: account.AccountID,
		Ticker:    ticker,
		Price:     resolvedPrice,
		Quantity:  qty,
	}

	open := s.cal.IsOpenNow()
	if open {
		o.Status = order.StatusPending
	} else {
		o.Status = order.StatusReserved
	}

	if err := s.orders.Create(ctx, o); err != nil {
		if releaseErr := s.ledger.ReleaseCash(ctx, account.AccountID, amount, orderID); releaseErr != nil {
			logging.Error(ctx, "failed to release cash after order persist failure", "order_id", orderID, "error", releaseErr)
		}
		return Result{}, err
	}
	s.observeSubmitted(o)

	if open {
		if err := s.publish(ctx, o); err != nil {
			logging.Error(ctx, "failed to publish admitted buy order", "order_id", o.OrderID, "error", err)
		}
	}

	return Result{OrderID: o.OrderID, Status: o.Status}, nil
}

// SubmitSell validates, confirms the holding, and enqueues a SELL order.
// No cash is reserved; the order references the holding by its
// (accountId, ticker) key.
func (s *Service) SubmitSell(ctx context.Context, userID, ticker string, qty int64, price *int64) (Result, error) {
	ticker, err := s.validateCommon(userID, ticker, qty, price)
	if err != nil {
		return Result{}, err
	}

	resolvedPrice, err := s.resolvePrice(ctx, ticker, price)
	if err != nil {
		return Result{}, err
	}

	account, err := s.ledger.CreateAccount(ctx, userID)
	if err != nil {
		return Result{}, err
	}

	holding, err := s.ledger.GetHolding(ctx, account.AccountID, ticker)
	if err != nil {
		if errs.Is(err, errs.NotFound) {
			return Result{}, errs.Wrap(errs.InsufficientHolding, "no holding in %s", ticker)
		}
		return Result{}, err
	}
	if holding.Quantity < qty {
		return Result{}, errs.Wrap(errs.InsufficientHolding, "held %d, requested %d", holding.Quantity, qty)
	}

	o := &order.Order{
		Side:      order.Sell,
		AccountID: account.AccountID,
		Ticker:    ticker,
		Price:     resolvedPrice,
		Quantity:  qty,
	}

	open := s.cal.IsOpenNow()
	if open {
		o.Status = order.StatusPending
	} else {
		o.Status = order.StatusReserved
	}

	if err := s.orders.Create(ctx, o); err != nil {
		return Result{}, err
	}
	s.observeSubmitted(o)

	if open {
		if err := s.publish(ctx, o); err != nil {
			logging.Error(ctx, "failed to publish admitted sell order", "order_id", o.OrderID, "error", err)
		}
	}

	return Result{OrderID: o.OrderID, Status: o.Status}, nil
}

// observeSubmitted records the OrdersSubmittedTotal counter and, for an
// order admitted while the market is closed, the ActiveReservations gauge
// opener.Opener decrements when it later promotes the order out of
// RESERVED.
func (s *Service) observeSubmitted(o *order.Order) {
	if s.metrics == nil {
		return
	}
	s.metrics.OrdersSubmittedTotal.WithLabelValues(string(o.Side)).Inc()
	if o.Status == order.StatusReserved {
		s.metrics.ActiveReservations.Inc()
	}
}

func (s *Service) validateCommon(userID, ticker string, qty int64, price *int64) (string, error) {
	if userID == "" {
		return "", errs.Wrap(errs.InvalidArgument, "userId is required")
	}
	if !tickerPattern.MatchString(ticker) {
		return "", errs.Wrap(errs.InvalidArgument, "ticker %q is not a valid 6-digit symbol", ticker)
	}
	normalized := normalizeTicker(ticker)
	if qty < 1 || qty > s.cfg.MaxQtyPerOrder {
		return "", errs.Wrap(errs.InvalidArgument, "qty %d out of range [1, %d]", qty, s.cfg.MaxQtyPerOrder)
	}
	if price != nil && (*price < 1 || *price > s.cfg.MaxPriceMinorUnits) {
		return "", errs.Wrap(errs.InvalidArgument, "price %d out of range [1, %d]", *price, s.cfg.MaxPriceMinorUnits)
	}
	if !s.catalog.IsTradable(normalized) {
		return "", errs.Wrap(errs.NotFound, "unknown ticker %s", normalized)
	}
	return normalized, nil
}

func normalizeTicker(ticker string) string {
	for len(ticker) < 6 {
		ticker = "0" + ticker
	}
	return ticker
}

func (s *Service) resolvePrice(ctx context.Context, ticker string, price *int64) (int64, error) {
	if price != nil {
		return *price, nil
	}
	return s.oracle.CurrentPrice(ctx, ticker)
}

func (s *Service) publish(ctx context.Context, o *order.Order) error {
	return s.bus.PublishActive(ctx, bus.Message{
		OrderID:    o.OrderID,
		Side:       string(o.Side),
		RetryCount: 0,
		EnqueuedAt: time.Now(),
	})
}
