// Package feed models the external PriceFeed contract: an ingestor that
// populates the price cache with trades and order books at any rate. The
// core imposes no schema on the feed beyond the two operations below.
package feed

import (
	"context"

	"github.com/wyfcoding/simtrading/internal/pricing/cache"
)

// Feed is satisfied by anything that can push price/book updates into the
// cache. A real per-symbol vendor WebSocket ingestor is out of scope; this
// interface is the seam a real one would plug into.
type Feed interface {
	PutPrice(ctx context.Context, ticker string, snap cache.PriceSnapshot) error
	PutBook(ctx context.Context, ticker string, book cache.OrderBookSnapshot) error
}

// cacheFeed adapts a cache.Cache directly to Feed.
type cacheFeed struct {
	c cache.Cache
}

// NewCacheFeed wraps c so callers depend on the narrower Feed contract.
func NewCacheFeed(c cache.Cache) Feed { return &cacheFeed{c: c} }

func (f *cacheFeed) PutPrice(ctx context.Context, ticker string, snap cache.PriceSnapshot) error {
	return f.c.PutPrice(ctx, ticker, snap)
}

func (f *cacheFeed) PutBook(ctx context.Context, ticker string, book cache.OrderBookSnapshot) error {
	return f.c.PutBook(ctx, ticker, book)
}
