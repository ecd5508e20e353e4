package feed

import (
	"context"
	"math/rand"
	"time"

	"github.com/wyfcoding/simtrading/internal/platform/logging"
	"github.com/wyfcoding/simtrading/internal/pricing/cache"
	"github.com/wyfcoding/simtrading/internal/stockref"
)

// SimFeed generates a harmless bounded random walk of trades for every
// ticker in the catalog, so the service is runnable and demonstrable
// without a live vendor feed. It is not part of the specified core; it
// exists purely to exercise the Feed seam.
type SimFeed struct {
	target  Feed
	catalog *stockref.Catalog
	rng     *rand.Rand
	last    map[string]int64
}

// NewSimFeed builds a SimFeed writing into target.
func NewSimFeed(target Feed, catalog *stockref.Catalog, seed int64) *SimFeed {
	return &SimFeed{
		target:  target,
		catalog: catalog,
		rng:     rand.New(rand.NewSource(seed)),
		last:    make(map[string]int64),
	}
}

// Run ticks once per interval until ctx is cancelled, nudging every
// catalog ticker's price by up to ±1% and pushing the result into target.
func (s *SimFeed) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.tick(ctx, now)
		}
	}
}

func (s *SimFeed) tick(ctx context.Context, now time.Time) {
	for _, t := range s.tickers() {
		price, ok := s.last[t]
		if !ok {
			price = s.catalog.DefaultPrice(t)
		}
		price = walk(price, s.rng)
		s.last[t] = price

		snap := cache.PriceSnapshot{
			Ticker:     t,
			LastPrice:  price,
			TradeTime:  now,
			ReceivedAt: now,
		}
		if err := s.target.PutPrice(ctx, t, snap); err != nil {
			logging.Warn(ctx, "simfeed put price failed", "ticker", t, "error", err)
		}
	}
}

func (s *SimFeed) tickers() []string {
	return s.catalog.Tickers()
}

func walk(price int64, rng *rand.Rand) int64 {
	deltaPct := (rng.Float64() - 0.5) * 0.02
	next := price + int64(float64(price)*deltaPct)
	if next < 1 {
		next = 1
	}
	return next
}
