// Package oracle resolves the price to use for admission, execution, and
// reservation re-anchoring, per the four-step rule: live, prior close,
// stale-while-closed, or a static default.
package oracle

import (
	"context"
	"time"

	"github.com/wyfcoding/simtrading/internal/market/calendar"
	"github.com/wyfcoding/simtrading/internal/pricing/cache"
	"github.com/wyfcoding/simtrading/internal/stockref"
)

// FreshnessWindow is DefaultConfig's duration within which a cached live
// price is treated as current.
const FreshnessWindow = 5 * time.Minute

// Config carries the oracle's caller-visible constants from spec.md §9.
type Config struct {
	FreshnessWindow time.Duration
}

// DefaultConfig matches spec.md's literal value.
func DefaultConfig() Config {
	return Config{FreshnessWindow: FreshnessWindow}
}

// Oracle resolves currentPrice(ticker) per spec.
type Oracle struct {
	cal     *calendar.Calendar
	cache   cache.Cache
	catalog *stockref.Catalog
	cfg     Config
}

// New builds an Oracle.
func New(cal *calendar.Calendar, c cache.Cache, catalog *stockref.Catalog, cfg Config) *Oracle {
	return &Oracle{cal: cal, cache: c, catalog: catalog, cfg: cfg}
}

// CurrentPrice resolves the price for ticker:
//  1. market open AND a live snapshot exists AND it is fresh: last price.
//  2. else a prior close: that price.
//  3. else a stale snapshot while the market is closed: that price.
//  4. else the catalog's default, or the system default for unknown tickers.
func (o *Oracle) CurrentPrice(ctx context.Context, ticker string) (int64, error) {
	now := o.cal.Now()
	open := o.cal.IsOpen(now)

	snap, ok, err := o.cache.GetPrice(ctx, ticker)
	if err != nil {
		return 0, err
	}
	if ok && open && o.fresh(snap, now) {
		return snap.LastPrice, nil
	}

	closePrice, closeOK, err := o.cache.GetClose(ctx, ticker)
	if err != nil {
		return 0, err
	}
	if closeOK {
		return closePrice, nil
	}

	if ok && !open {
		return snap.LastPrice, nil
	}

	return o.catalog.DefaultPrice(ticker), nil
}

func (o *Oracle) fresh(snap cache.PriceSnapshot, now time.Time) bool {
	return now.Sub(snap.ReceivedAt) < o.cfg.FreshnessWindow
}
