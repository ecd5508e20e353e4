package opener

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/wyfcoding/simtrading/internal/bus"
	"github.com/wyfcoding/simtrading/internal/ledger"
	"github.com/wyfcoding/simtrading/internal/market/calendar"
	"github.com/wyfcoding/simtrading/internal/order"
	"github.com/wyfcoding/simtrading/internal/platform/dbx"
	"github.com/wyfcoding/simtrading/internal/pricing/cache"
	"github.com/wyfcoding/simtrading/internal/pricing/oracle"
	"github.com/wyfcoding/simtrading/internal/stockref"
)

func newTestOpener(t *testing.T, livePrice int64) (*Opener, *ledger.Ledger, *order.Store, *bus.FakeBus) {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, gdb.AutoMigrate(append(ledger.Models(), order.Models()...)...))

	db := &dbx.DB{DB: gdb}
	l := ledger.New(db, ledger.DefaultConfig())
	orders := order.New(db)

	loc, _ := time.LoadLocation("Asia/Seoul")
	cal := calendar.New(calendar.NewFakeClock(time.Date(2024, 6, 3, 9, 0, 0, 0, loc)), calendar.DefaultConfig())
	c := cache.NewMemoryCache()
	require.NoError(t, c.PutClose(context.Background(), "005930", livePrice))
	o := oracle.New(cal, c, stockref.New(stockref.DefaultConfig()), oracle.DefaultConfig())
	b := bus.NewFakeBus()

	op := New(cal, o, l, orders, orders, b, nil)
	return op, l, orders, b
}

func TestOpen_BuyOpenedUpReservesAdditionalDeltaAndGoesPending(t *testing.T) {
	ctx := context.Background()
	op, l, orders, b := newTestOpener(t, 110_000)

	account, err := l.CreateAccount(ctx, "u1")
	require.NoError(t, err)
	require.NoError(t, l.ReserveCash(ctx, account.AccountID, 200_000, "order-1"))

	o := &order.Order{AccountID: account.AccountID, Ticker: "005930", Price: 100_000, Quantity: 2, Status: order.StatusReserved, Side: order.Buy}
	require.NoError(t, orders.Create(ctx, o))

	require.NoError(t, op.Open(ctx))

	got, err := orders.Get(ctx, o.OrderID)
	require.NoError(t, err)
	require.Equal(t, order.StatusPending, got.Status)
	require.Equal(t, int64(110_000), got.Price)

	balance, err := l.Balance(ctx, account.AccountID)
	require.NoError(t, err)
	require.Equal(t, int64(780_000), balance)

	require.Len(t, b.DrainActive(), 1)
}

func TestOpen_BuyShortfallCancelsAndRefundsFullReservation(t *testing.T) {
	ctx := context.Background()
	op, l, orders, b := newTestOpener(t, 150_000)

	account, err := l.CreateAccount(ctx, "u2")
	require.NoError(t, err)
	require.NoError(t, l.ReserveCash(ctx, account.AccountID, 990_000, "order-2"))

	o := &order.Order{AccountID: account.AccountID, Ticker: "005930", Price: 99_000, Quantity: 10, Status: order.StatusReserved, Side: order.Buy}
	require.NoError(t, orders.Create(ctx, o))

	require.NoError(t, op.Open(ctx))

	got, err := orders.Get(ctx, o.OrderID)
	require.NoError(t, err)
	require.Equal(t, order.StatusCancelled, got.Status)

	balance, err := l.Balance(ctx, account.AccountID)
	require.NoError(t, err)
	require.Equal(t, ledger.InitialCashMinorUnits, balance)

	require.Empty(t, b.DrainActive())
}

func TestOpen_BuyPriceDroppedReleasesDifferenceAndGoesPending(t *testing.T) {
	ctx := context.Background()
	op, l, orders, b := newTestOpener(t, 80_000)

	account, err := l.CreateAccount(ctx, "u3")
	require.NoError(t, err)
	require.NoError(t, l.ReserveCash(ctx, account.AccountID, 200_000, "order-3"))

	o := &order.Order{AccountID: account.AccountID, Ticker: "005930", Price: 100_000, Quantity: 2, Status: order.StatusReserved, Side: order.Buy}
	require.NoError(t, orders.Create(ctx, o))

	require.NoError(t, op.Open(ctx))

	got, err := orders.Get(ctx, o.OrderID)
	require.NoError(t, err)
	require.Equal(t, order.StatusPending, got.Status)
	require.Equal(t, int64(80_000), got.Price)

	balance, err := l.Balance(ctx, account.AccountID)
	require.NoError(t, err)
	require.Equal(t, int64(840_000), balance)

	require.Len(t, b.DrainActive(), 1)
}

func TestOpen_BuyUnchangedPriceStillMovesToPending(t *testing.T) {
	ctx := context.Background()
	op, l, orders, b := newTestOpener(t, 100_000)

	account, err := l.CreateAccount(ctx, "u4")
	require.NoError(t, err)
	require.NoError(t, l.ReserveCash(ctx, account.AccountID, 200_000, "order-4"))

	o := &order.Order{AccountID: account.AccountID, Ticker: "005930", Price: 100_000, Quantity: 2, Status: order.StatusReserved, Side: order.Buy}
	require.NoError(t, orders.Create(ctx, o))

	require.NoError(t, op.Open(ctx))

	got, err := orders.Get(ctx, o.OrderID)
	require.NoError(t, err)
	require.Equal(t, order.StatusPending, got.Status)
	require.Equal(t, int64(100_000), got.Price)
	require.Len(t, b.DrainActive(), 1)
}

func TestOpen_SellAlwaysReanchorsPriceAndGoesPending(t *testing.T) {
	ctx := context.Background()
	op, l, orders, b := newTestOpener(t, 95_000)

	account, err := l.CreateAccount(ctx, "u5")
	require.NoError(t, err)
	require.NoError(t, l.ApplyBuyFill(ctx, account.AccountID, "005930", 3, 80_000))

	o := &order.Order{AccountID: account.AccountID, Ticker: "005930", Price: 100_000, Quantity: 2, Status: order.StatusReserved, Side: order.Sell}
	require.NoError(t, orders.Create(ctx, o))

	require.NoError(t, op.Open(ctx))

	got, err := orders.Get(ctx, o.OrderID)
	require.NoError(t, err)
	require.Equal(t, order.StatusPending, got.Status)
	require.Equal(t, int64(95_000), got.Price)
	require.Len(t, b.DrainActive(), 1)
}
