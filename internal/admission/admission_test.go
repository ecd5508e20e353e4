package admission

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/wyfcoding/simtrading/internal/bus"
	"github.com/wyfcoding/simtrading/internal/errs"
	"github.com/wyfcoding/simtrading/internal/ledger"
	"github.com/wyfcoding/simtrading/internal/market/calendar"
	"github.com/wyfcoding/simtrading/internal/order"
	"github.com/wyfcoding/simtrading/internal/platform/dbx"
	"github.com/wyfcoding/simtrading/internal/pricing/cache"
	"github.com/wyfcoding/simtrading/internal/pricing/oracle"
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

func newTestService(t *testing.T, at time.Time) (*Service, *ledger.Ledger, *order.Store, *bus.FakeBus) {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, gdb.AutoMigrate(append(ledger.Models(), order.Models()...)...))

	db := &dbx.DB{DB: gdb}
	l := ledger.New(db, ledger.DefaultConfig())
	orders := order.New(db)
	cal := calendar.New(calendar.NewFakeClock(at), calendar.DefaultConfig())
	catalog := stockref.New(stockref.DefaultConfig())
	o := oracle.New(cal, cache.NewMemoryCache(), catalog, oracle.DefaultConfig())
	b := bus.NewFakeBus()

	svc := New(DefaultConfig(), l, orders, cal, o, catalog, b, nil)
	return svc, l, orders, b
}

func TestSubmitBuy_HappyPathReservesCashAndPublishes(t *testing.T) {
	ctx := context.Background()
	svc, l, orders, b := newTestService(t, mondayNoon())

	price := int64(70_000)
	res, err := svc.SubmitBuy(ctx, "u1", "005930", 1, &price)
	require.NoError(t, err)
	require.Equal(t, order.StatusPending, res.Status)

	o, err := orders.Get(ctx, res.OrderID)
	require.NoError(t, err)

	balance, err := l.Balance(ctx, o.AccountID)
	require.NoError(t, err)
	require.Equal(t, int64(930_000), balance)

	published := b.DrainActive()
	require.Len(t, published, 1)
	require.Equal(t, res.OrderID, published[0].OrderID)
}

func TestSubmitBuy_InsufficientFundsLeavesNoOrder(t *testing.T) {
	ctx := context.Background()
	svc, l, orders, _ := newTestService(t, mondayNoon())

	price := int64(70_000)
	account, err := l.CreateAccount(ctx, "u2")
	require.NoError(t, err)
	require.NoError(t, l.ReserveCash(ctx, account.AccountID, 950_000, "pre-existing"))

	_, err = svc.SubmitBuy(ctx, "u2", "005930", 1, &price)
	require.Error(t, err)
	require.True(t, errs.Is(err, errs.InsufficientFunds))

	balance, err := l.Balance(ctx, account.AccountID)
	require.NoError(t, err)
	require.Equal(t, int64(50_000), balance)

	pending, err := orders.ListByAccountStatus(ctx, account.AccountID, order.StatusPending)
	require.NoError(t, err)
	require.Empty(t, pending)
}

func TestSubmitBuy_MarketClosedReserves(t *testing.T) {
	ctx := context.Background()
	svc, l, _, b := newTestService(t, mondayNight())

	price := int64(100_000)
	res, err := svc.SubmitBuy(ctx, "u3", "000660", 2, &price)
	require.NoError(t, err)
	require.Equal(t, order.StatusReserved, res.Status)

	account, err := l.CreateAccount(ctx, "u3")
	require.NoError(t, err)
	balance, err := l.Balance(ctx, account.AccountID)
	require.NoError(t, err)
	require.Equal(t, int64(800_000), balance)

	require.Empty(t, b.DrainActive())
}

func TestSubmitSell_RequiresHolding(t *testing.T) {
	ctx := context.Background()
	svc, _, _, _ := newTestService(t, mondayNoon())

	price := int64(200_000)
	_, err := svc.SubmitSell(ctx, "u4", "035420", 2, &price)
	require.Error(t, err)
	require.True(t, errs.Is(err, errs.InsufficientHolding))
}

func TestSubmitSell_HappyPath(t *testing.T) {
	ctx := context.Background()
	svc, l, _, b := newTestService(t, mondayNoon())

	account, err := l.CreateAccount(ctx, "u5")
	require.NoError(t, err)
	require.NoError(t, l.ApplyBuyFill(ctx, account.AccountID, "035420", 3, 180_000))

	price := int64(200_000)
	res, err := svc.SubmitSell(ctx, "u5", "035420", 2, &price)
	require.NoError(t, err)
	require.Equal(t, order.StatusPending, res.Status)
	require.Len(t, b.DrainActive(), 1)
}
