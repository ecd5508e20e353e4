// Package order is the persistent order store and status machine. Only
// the admission service creates rows; only the matching worker and
// reservation opener transition them, guarded by an optimistic status
// check so concurrent updates fail rather than clobber.
package order

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/wyfcoding/simtrading/internal/errs"
	"github.com/wyfcoding/simtrading/internal/platform/dbx"
)

// Side is the direction of an order.
type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// Status is a position in the order lifecycle (see spec.md §4.5).
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusReserved  Status = "RESERVED"
	StatusExecuted  Status = "EXECUTED"
	StatusFailed    Status = "FAILED"
	StatusCancelled Status = "CANCELLED"
)

// Order is a buy or sell order against one ticker. A SELL order has no
// separate holding field; it "references the Holding" by (AccountID,
// Ticker) since Holding's key is that pair, not a surrogate id.
type Order struct {
	OrderID    string    `gorm:"column:order_id;primaryKey;size:64"`
	Side       Side      `gorm:"column:side;size:8"`
	AccountID  string    `gorm:"column:account_id;index;size:64"`
	Ticker     string    `gorm:"column:ticker;size:8"`
	Price      int64     `gorm:"column:price"`
	Quantity   int64     `gorm:"column:quantity"`
	Status     Status    `gorm:"column:status;size:16;index"`
	RetryCount int       `gorm:"column:retry_count"`
	CreatedAt  time.Time `gorm:"column:created_at"`
	UpdatedAt  time.Time `gorm:"column:updated_at"`
}

func (Order) TableName() string { return "stock_order" }

// Models lists the GORM model(s) this package owns, for AutoMigrate callers.
func Models() []interface{} { return []interface{}{&Order{}} }

// Store is the order repository.
type Store struct {
	db *dbx.DB
}

// New wraps an initialized database connection.
func New(db *dbx.DB) *Store { return &Store{db: db} }

// Create inserts a new order. Only called by admission.
func (s *Store) Create(ctx context.Context, o *Order) error {
	if o.OrderID == "" {
		o.OrderID = uuid.New().String()
	}
	now := time.Now()
	o.CreatedAt, o.UpdatedAt = now, now
	return s.db.WithContext(ctx).Create(o).Error
}

// Get loads an order by id.
func (s *Store) Get(ctx context.Context, orderID string) (*Order, error) {
	var o Order
	if err := s.db.WithContext(ctx).Where("order_id = ?", orderID).First(&o).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errs.Wrap(errs.NotFound, "order %s", orderID)
		}
		return nil, err
	}
	return &o, nil
}

// ListByAccountStatus looks up every order for an account in a given
// status.
func (s *Store) ListByAccountStatus(ctx context.Context, accountID string, status Status) ([]Order, error) {
	var orders []Order
	err := s.db.WithContext(ctx).Where("account_id = ? AND status = ?", accountID, status).Find(&orders).Error
	return orders, err
}

// ListReserved finds every RESERVED order across all accounts, for the
// reservation opener's once-daily scan.
func (s *Store) ListReserved(ctx context.Context) ([]Order, error) {
	var orders []Order
	err := s.db.WithContext(ctx).Where("status = ?", StatusReserved).Find(&orders).Error
	return orders, err
}

// UpdateStatus transitions an order from expectedStatus to newStatus in one
// conditional UPDATE, returning errs.Conflict if the current row no longer
// matches expectedStatus (another worker already transitioned it, or it is
// already terminal).
func (s *Store) UpdateStatus(ctx context.Context, orderID string, expectedStatus, newStatus Status) error {
	result := s.db.WithContext(ctx).Model(&Order{}).
		Where("order_id = ? AND status = ?", orderID, expectedStatus).
		Updates(map[string]interface{}{"status": newStatus, "updated_at": time.Now()})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errs.Wrap(errs.Conflict, "order %s not in expected status %s", orderID, expectedStatus)
	}
	return nil
}

// UpdateStatusAndPrice transitions an order's status and rewrites its limit
// price in one conditional UPDATE, used by the reservation opener's
// re-anchor step.
func (s *Store) UpdateStatusAndPrice(ctx context.Context, orderID string, expectedStatus, newStatus Status, price int64) error {
	result := s.db.WithContext(ctx).Model(&Order{}).
		Where("order_id = ? AND status = ?", orderID, expectedStatus).
		Updates(map[string]interface{}{"status": newStatus, "price": price, "updated_at": time.Now()})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errs.Wrap(errs.Conflict, "order %s not in expected status %s", orderID, expectedStatus)
	}
	return nil
}

// IncrementRetry bumps retry_count by one, used by the matching worker
// before handing a miss to the retry scheduler.
func (s *Store) IncrementRetry(ctx context.Context, orderID string) error {
	return s.db.WithContext(ctx).Model(&Order{}).
		Where("order_id = ?", orderID).
		Update("retry_count", gorm.Expr("retry_count + 1")).Error
}
