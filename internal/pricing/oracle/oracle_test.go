package oracle

import (
	"context"
	"testing"
	"time"

	"github.com/wyfcoding/simtrading/internal/market/calendar"
	"github.com/wyfcoding/simtrading/internal/pricing/cache"
	"github.com/wyfcoding/simtrading/internal/stockref"
)

func mondayNoon() time.Time {
	loc, _ := time.LoadLocation("Asia/Seoul")
	return time.Date(2024, 6, 3, 12, 0, 0, 0, loc)
}

func mondayNight() time.Time {
	loc, _ := time.LoadLocation("Asia/Seoul")
	return time.Date(2024, 6, 3, 20, 0, 0, 0, loc)
}

func TestCurrentPrice_LiveFreshWhileOpen(t *testing.T) {
	ctx := context.Background()
	clock := calendar.NewFakeClock(mondayNoon())
	cal := calendar.New(clock, calendar.DefaultConfig())
	c := cache.NewMemoryCache()
	o := New(cal, c, stockref.New(stockref.DefaultConfig()), DefaultConfig())

	c.PutPrice(ctx, "005930", cache.PriceSnapshot{Ticker: "005930", LastPrice: 71_500, ReceivedAt: mondayNoon().Add(-time.Minute)})

	got, err := o.CurrentPrice(ctx, "005930")
	if err != nil {
		t.Fatal(err)
	}
	if got != 71_500 {
		t.Errorf("got %d, want 71500", got)
	}
}

func TestCurrentPrice_StaleWhileOpenFallsThroughToClose(t *testing.T) {
	ctx := context.Background()
	clock := calendar.NewFakeClock(mondayNoon())
	cal := calendar.New(clock, calendar.DefaultConfig())
	c := cache.NewMemoryCache()
	o := New(cal, c, stockref.New(stockref.DefaultConfig()), DefaultConfig())

	c.PutPrice(ctx, "005930", cache.PriceSnapshot{Ticker: "005930", LastPrice: 71_500, ReceivedAt: mondayNoon().Add(-time.Hour)})
	c.PutClose(ctx, "005930", 69_000)

	got, err := o.CurrentPrice(ctx, "005930")
	if err != nil {
		t.Fatal(err)
	}
	if got != 69_000 {
		t.Errorf("got %d, want 69000 (prior close)", got)
	}
}

func TestCurrentPrice_StaleWhileClosedUsesLastSnapshot(t *testing.T) {
	ctx := context.Background()
	clock := calendar.NewFakeClock(mondayNight())
	cal := calendar.New(clock, calendar.DefaultConfig())
	c := cache.NewMemoryCache()
	o := New(cal, c, stockref.New(stockref.DefaultConfig()), DefaultConfig())

	c.PutPrice(ctx, "005930", cache.PriceSnapshot{Ticker: "005930", LastPrice: 71_500, ReceivedAt: mondayNoon()})

	got, err := o.CurrentPrice(ctx, "005930")
	if err != nil {
		t.Fatal(err)
	}
	if got != 71_500 {
		t.Errorf("got %d, want 71500 (stale while closed)", got)
	}
}

func TestCurrentPrice_DefaultsForKnownAndUnknownTickers(t *testing.T) {
	ctx := context.Background()
	clock := calendar.NewFakeClock(mondayNoon())
	cal := calendar.New(clock, calendar.DefaultConfig())
	c := cache.NewMemoryCache()
	o := New(cal, c, stockref.New(stockref.DefaultConfig()), DefaultConfig())

	got, err := o.CurrentPrice(ctx, "005930")
	if err != nil {
		t.Fatal(err)
	}
	if got != 70_000 {
		t.Errorf("got %d, want seeded default 70000", got)
	}

	got, err = o.CurrentPrice(ctx, "999999")
	if err != nil {
		t.Fatal(err)
	}
	if got != stockrefDefault {
		t.Errorf("got %d, want system default %d", got, stockrefDefault)
	}
}

const stockrefDefault = 50_000
