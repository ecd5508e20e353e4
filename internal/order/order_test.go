package order

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/wyfcoding/simtrading/internal/errs"
	"github.com/wyfcoding/simtrading/internal/platform/dbx"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, gdb.AutoMigrate(Models()...))
	return New(&dbx.DB{DB: gdb})
}

func TestUpdateStatus_ConflictOnMismatch(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	o := &Order{AccountID: "acc-1", Ticker: "005930", Price: 70_000, Quantity: 1, Status: StatusPending, Side: Buy}
	require.NoError(t, s.Create(ctx, o))

	require.NoError(t, s.UpdateStatus(ctx, o.OrderID, StatusPending, StatusExecuted))

	err := s.UpdateStatus(ctx, o.OrderID, StatusPending, StatusFailed)
	require.Error(t, err)
	require.True(t, errs.Is(err, errs.Conflict))

	got, err := s.Get(ctx, o.OrderID)
	require.NoError(t, err)
	require.Equal(t, StatusExecuted, got.Status)
}

func TestUpdateStatusAndPrice_ReAnchors(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	o := &Order{AccountID: "acc-2", Ticker: "000660", Price: 100_000, Quantity: 2, Status: StatusReserved, Side: Buy}
	require.NoError(t, s.Create(ctx, o))

	require.NoError(t, s.UpdateStatusAndPrice(ctx, o.OrderID, StatusReserved, StatusPending, 110_000))

	got, err := s.Get(ctx, o.OrderID)
	require.NoError(t, err)
	require.Equal(t, StatusPending, got.Status)
	require.Equal(t, int64(110_000), got.Price)
}

func TestListByAccountStatus(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Create(ctx, &Order{AccountID: "acc-3", Ticker: "005930", Price: 1, Quantity: 1, Status: StatusPending, Side: Buy}))
	require.NoError(t, s.Create(ctx, &Order{AccountID: "acc-3", Ticker: "005930", Price: 1, Quantity: 1, Status: StatusReserved, Side: Buy}))

	pending, err := s.ListByAccountStatus(ctx, "acc-3", StatusPending)
	require.NoError(t, err)
	require.Len(t, pending, 1)
}
