package matching

import (
	"context"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/wyfcoding/simtrading/internal/bus"
	"github.com/wyfcoding/simtrading/internal/ledger"
	"github.com/wyfcoding/simtrading/internal/market/calendar"
	"github.com/wyfcoding/simtrading/internal/matching/retry"
	"github.com/wyfcoding/simtrading/internal/order"
	"github.com/wyfcoding/simtrading/internal/platform/dbx"
)

// maxSource is a rand.Source that always returns the largest Int63 whose
// Float64() is still under 1.0 (2^63-1024, giving 1-2^-53); math.MaxInt64
// itself rounds to exactly 1.0, which Float64() rejects and redraws
// forever. The draw is above any FillRateCeiling, so every draw it feeds
// is a guaranteed miss.
type maxSource struct{}

func (maxSource) Int63() int64 { return math.MaxInt64 - 1023 }
func (maxSource) Seed(int64)   {}

type recordingScheduler struct {
	calls []int
}

func (r *recordingScheduler) Schedule(_ context.Context, _ string, _ order.Side, retryCount int) error {
	r.calls = append(r.calls, retryCount)
	return nil
}

func newTestStores(t *testing.T) (*ledger.Ledger, *order.Store) {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, gdb.AutoMigrate(append(ledger.Models(), order.Models()...)...))
	db := &dbx.DB{DB: gdb}
	return ledger.New(db, ledger.DefaultConfig()), order.New(db)
}

func TestWorker_HappyBuyForcedFill(t *testing.T) {
	ctx := context.Background()
	l, orders := newTestStores(t)

	account, err := l.CreateAccount(ctx, "u1")
	require.NoError(t, err)
	require.NoError(t, l.ReserveCash(ctx, account.AccountID, 70_000, "order-1"))

	o := &order.Order{AccountID: account.AccountID, Ticker: "005930", Price: 70_000, Quantity: 1, Status: order.StatusPending, Side: order.Buy, RetryCount: 5}
	require.NoError(t, orders.Create(ctx, o))

	sched := &recordingScheduler{}
	w := NewWorker(orders, l, sched, 1, DefaultConfig(), nil)

	require.NoError(t, w.Handle(ctx, bus.Message{OrderID: o.OrderID, RetryCount: 5}))

	got, err := orders.Get(ctx, o.OrderID)
	require.NoError(t, err)
	require.Equal(t, order.StatusExecuted, got.Status)

	holding, err := l.GetHolding(ctx, account.AccountID, "005930")
	require.NoError(t, err)
	require.Equal(t, int64(1), holding.Quantity)
	require.Equal(t, int64(70_000), holding.AvgCost)

	balance, err := l.Balance(ctx, account.AccountID)
	require.NoError(t, err)
	require.Equal(t, int64(930_000), balance)
}

func TestWorker_SellForcedFillCreditsCash(t *testing.T) {
	ctx := context.Background()
	l, orders := newTestStores(t)

	account, err := l.CreateAccount(ctx, "u2")
	require.NoError(t, err)
	require.NoError(t, l.ApplyBuyFill(ctx, account.AccountID, "035420", 3, 180_000))

	o := &order.Order{AccountID: account.AccountID, Ticker: "035420", Price: 200_000, Quantity: 2, Status: order.StatusPending, Side: order.Sell, RetryCount: 5}
	require.NoError(t, orders.Create(ctx, o))

	sched := &recordingScheduler{}
	w := NewWorker(orders, l, sched, 2, DefaultConfig(), nil)

	require.NoError(t, w.Handle(ctx, bus.Message{OrderID: o.OrderID, RetryCount: 5}))

	got, err := orders.Get(ctx, o.OrderID)
	require.NoError(t, err)
	require.Equal(t, order.StatusExecuted, got.Status)

	holding, err := l.GetHolding(ctx, account.AccountID, "035420")
	require.NoError(t, err)
	require.Equal(t, int64(1), holding.Quantity)
	require.Equal(t, int64(180_000), holding.AvgCost)

	balance, err := l.Balance(ctx, account.AccountID)
	require.NoError(t, err)
	require.Equal(t, ledger.InitialCashMinorUnits+400_000, balance)
}

func TestWorker_MissSchedulesRetryAndIncrementsCounter(t *testing.T) {
	ctx := context.Background()
	l, orders := newTestStores(t)

	account, err := l.CreateAccount(ctx, "u3")
	require.NoError(t, err)
	require.NoError(t, l.ReserveCash(ctx, account.AccountID, 70_000, "order-3"))

	o := &order.Order{AccountID: account.AccountID, Ticker: "005930", Price: 70_000, Quantity: 1, Status: order.StatusPending, Side: order.Buy}
	require.NoError(t, orders.Create(ctx, o))

	sched := &recordingScheduler{}
	// seed 3 happens to miss on the first draw with retryCount 0; rather
	// than depend on a specific seed's draw, the assertions accept whichever
	// outcome occurs and check the invariant that matches it.
	w := NewWorker(orders, l, sched, 3, DefaultConfig(), nil)
	require.NoError(t, w.Handle(ctx, bus.Message{OrderID: o.OrderID, RetryCount: 0}))

	got, err := orders.Get(ctx, o.OrderID)
	require.NoError(t, err)
	if got.Status == order.StatusPending {
		require.Equal(t, 1, got.RetryCount)
		require.Len(t, sched.calls, 1)
		require.Equal(t, 0, sched.calls[0])
	} else {
		require.Equal(t, order.StatusExecuted, got.Status)
	}
}

func TestWorker_FiveMissesAtThreeMinuteIntervalsThenForcedFillOnSixthAttempt(t *testing.T) {
	ctx := context.Background()
	l, orders := newTestStores(t)

	account, err := l.CreateAccount(ctx, "u5")
	require.NoError(t, err)
	require.NoError(t, l.ReserveCash(ctx, account.AccountID, 70_000, "order-5"))

	o := &order.Order{AccountID: account.AccountID, Ticker: "005930", Price: 70_000, Quantity: 1, Status: order.StatusPending, Side: order.Buy}
	require.NoError(t, orders.Create(ctx, o))

	clock := calendar.NewFakeClock(time.Date(2024, 6, 3, 10, 0, 0, 0, time.UTC))
	store := retry.NewMemoryStore()
	b := bus.NewFakeBus()
	sched := retry.New(store, b, clock, retry.DefaultConfig())

	// rng always misses until Attempt's own retryCount>=5 branch forces a
	// fill, independent of any draw — so this worker's fate across all six
	// rounds is fully determined without depending on a seed's draw order.
	w := &Worker{orders: orders, ledger: l, retry: sched, rng: rand.New(maxSource{}), cfg: DefaultConfig()}

	msg := bus.Message{OrderID: o.OrderID, RetryCount: 0}
	for i := 0; i < 5; i++ {
		require.NoError(t, w.Handle(ctx, msg))

		got, err := orders.Get(ctx, o.OrderID)
		require.NoError(t, err)
		require.Equal(t, order.StatusPending, got.Status)
		require.Equal(t, i+1, got.RetryCount)

		rec, ok, err := store.Get(ctx, o.OrderID)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, i+1, rec.RetryCount)
		require.Equal(t, clock.Now().Add(retry.Delay), rec.NextEligibleAt)

		clock.Advance(retry.Delay)
		msg = bus.Message{OrderID: o.OrderID, RetryCount: i + 1}
	}

	require.NoError(t, w.Handle(ctx, msg))

	got, err := orders.Get(ctx, o.OrderID)
	require.NoError(t, err)
	require.Equal(t, order.StatusExecuted, got.Status)
	require.Equal(t, 5, got.RetryCount)
}

func TestWorker_TerminalOrderMessageIsNoOp(t *testing.T) {
	ctx := context.Background()
	l, orders := newTestStores(t)

	account, err := l.CreateAccount(ctx, "u4")
	require.NoError(t, err)

	o := &order.Order{AccountID: account.AccountID, Ticker: "005930", Price: 70_000, Quantity: 1, Status: order.StatusExecuted, Side: order.Buy}
	require.NoError(t, orders.Create(ctx, o))

	sched := &recordingScheduler{}
	w := NewWorker(orders, l, sched, 4, DefaultConfig(), nil)
	require.NoError(t, w.Handle(ctx, bus.Message{OrderID: o.OrderID, RetryCount: 0}))

	require.Empty(t, sched.calls)
	got, err := orders.Get(ctx, o.OrderID)
	require.NoError(t, err)
	require.Equal(t, order.StatusExecuted, got.Status)
}
