// Package cache stores last-trade, order-book, and prior-close snapshots
// per ticker, backed by internal/platform/cachex (Redis) in production and
// a plain in-memory map in tests.
package cache

import (
	"context"
	"strconv"
	"time"

	"github.com/wyfcoding/simtrading/internal/platform/cachex"
)

const (
	tradeTTL = 60 * time.Second
	bookTTL  = 60 * time.Second
	closeTTL = 7 * 24 * time.Hour

	stockKeyPrefix     = "realtime:stock:"
	orderbookKeyPrefix = "realtime:orderbook:"
	closeKeyPrefix     = "close:"
)

// PriceSnapshot is the last known trade for a ticker.
type PriceSnapshot struct {
	Ticker       string    `json:"ticker"`
	LastPrice    int64     `json:"last_price"`
	ChangeSign   string    `json:"change_sign"`
	ChangeAmount int64     `json:"change_amount"`
	ChangeRate   float64   `json:"change_rate"`
	Volume       int64     `json:"volume"`
	TradeTime    time.Time `json:"trade_time"`
	ReceivedAt   time.Time `json:"received_at"`
}

// PriceLevel is one side of the order book at one depth.
type PriceLevel struct {
	Price int64 `json:"price"`
	Size  int64 `json:"size"`
}

// OrderBookSnapshot is a ten-deep book for a ticker.
type OrderBookSnapshot struct {
	Ticker     string       `json:"ticker"`
	Asks       []PriceLevel `json:"asks"`
	Bids       []PriceLevel `json:"bids"`
	ReceivedAt time.Time    `json:"received_at"`
}

// Cache is the C2 price store contract. Reads never block on the feed; a
// miss is reported as (_, false, nil), never an error.
type Cache interface {
	PutPrice(ctx context.Context, ticker string, snap PriceSnapshot) error
	GetPrice(ctx context.Context, ticker string) (PriceSnapshot, bool, error)
	PutBook(ctx context.Context, ticker string, book OrderBookSnapshot) error
	GetBook(ctx context.Context, ticker string) (OrderBookSnapshot, bool, error)
	PutClose(ctx context.Context, ticker string, price int64) error
	GetClose(ctx context.Context, ticker string) (int64, bool, error)
	ListActiveTickers(ctx context.Context) ([]string, error)
}

// RedisCache is the production Cache, backed by cachex.
type RedisCache struct {
	c *cachex.Cache
}

// NewRedisCache wraps an already-connected cachex.Cache.
func NewRedisCache(c *cachex.Cache) *RedisCache { return &RedisCache{c: c} }

func (r *RedisCache) PutPrice(ctx context.Context, ticker string, snap PriceSnapshot) error {
	return r.c.SetJSON(ctx, stockKeyPrefix+ticker, snap, tradeTTL)
}

func (r *RedisCache) GetPrice(ctx context.Context, ticker string) (PriceSnapshot, bool, error) {
	var snap PriceSnapshot
	ok, err := r.c.GetJSON(ctx, stockKeyPrefix+ticker, &snap)
	return snap, ok, err
}

func (r *RedisCache) PutBook(ctx context.Context, ticker string, book OrderBookSnapshot) error {
	return r.c.SetJSON(ctx, orderbookKeyPrefix+ticker, book, bookTTL)
}

func (r *RedisCache) GetBook(ctx context.Context, ticker string) (OrderBookSnapshot, bool, error) {
	var book OrderBookSnapshot
	ok, err := r.c.GetJSON(ctx, orderbookKeyPrefix+ticker, &book)
	return book, ok, err
}

func (r *RedisCache) PutClose(ctx context.Context, ticker string, price int64) error {
	return r.c.Set(ctx, closeKeyPrefix+ticker, price, closeTTL)
}

func (r *RedisCache) GetClose(ctx context.Context, ticker string) (int64, bool, error) {
	val, err := r.c.Get(ctx, closeKeyPrefix+ticker)
	if err != nil {
		return 0, false, err
	}
	if val == "" {
		return 0, false, nil
	}
	price, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false, err
	}
	return price, true, nil
}

// ListActiveTickers scans for live trade keys rather than blocking Redis
// with KEYS.
func (r *RedisCache) ListActiveTickers(ctx context.Context) ([]string, error) {
	keys, err := r.c.Keys(ctx, stockKeyPrefix+"*")
	if err != nil {
		return nil, err
	}
	tickers := make([]string, len(keys))
	for i, k := range keys {
		tickers[i] = k[len(stockKeyPrefix):]
	}
	return tickers, nil
}
