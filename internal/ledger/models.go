package ledger

import "time"

// Account status values.
const (
	StatusActive     = "ACTIVE"
	StatusInactive   = "INACTIVE"
	StatusSuspended  = "SUSPENDED"
)

// AccountHistory entry types.
const (
	HistoryBuyStock     = "BUY_STOCK"
	HistorySellStock    = "SELL_STOCK"
	HistoryBuyProduct   = "BUY_PRODUCT"
	HistoryRefund       = "REFUND"
	HistoryReserveAdjust = "RESERVE_ADJUST"
)

// InitialCashMinorUnits is DefaultConfig's starting cash balance; the
// actual value a Ledger applies comes from its Config, configurable via
// trading.initial_cash_minor_units.
const InitialCashMinorUnits int64 = 1_000_000

// Account is a single user's cash position. The ledger is its sole writer.
type Account struct {
	AccountID           string `gorm:"column:account_id;primaryKey;size:64"`
	UserID              string `gorm:"column:user_id;uniqueIndex;size:64"`
	Status              string `gorm:"column:status;size:16"`
	CashBalance          int64  `gorm:"column:cash_balance"`
	WithdrawableBalance  int64  `gorm:"column:withdrawable_balance"`
	CreatedAt           time.Time `gorm:"column:created_at"`
	UpdatedAt           time.Time `gorm:"column:updated_at"`
}

func (Account) TableName() string { return "account" }

// AccountHistory is an append-only ledger entry.
type AccountHistory struct {
	HistoryID      string  `gorm:"column:history_id;primaryKey;size:64"`
	AccountID      string  `gorm:"column:account_id;index;size:64"`
	Type           string  `gorm:"column:type;size:32"`
	RelatedOrderID *string `gorm:"column:related_order_id;size:64"`
	Amount         int64   `gorm:"column:amount"`
	BalanceBefore  int64   `gorm:"column:balance_before"`
	BalanceAfter   int64   `gorm:"column:balance_after"`
	At             time.Time `gorm:"column:at;index"`
}

func (AccountHistory) TableName() string { return "account_history" }

// Holding is an account's position in one ticker, keyed by (accountId, ticker).
type Holding struct {
	ID        uint      `gorm:"column:id;primaryKey;autoIncrement"`
	AccountID string    `gorm:"column:account_id;uniqueIndex:idx_account_ticker;size:64"`
	Ticker    string    `gorm:"column:ticker;uniqueIndex:idx_account_ticker;size:8"`
	Quantity  int64     `gorm:"column:quantity"`
	AvgCost   int64     `gorm:"column:avg_cost"`
	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (Holding) TableName() string { return "holding" }

// Models lists every GORM model the ledger owns, for AutoMigrate callers.
func Models() []interface{} {
	return []interface{}{&Account{}, &AccountHistory{}, &Holding{}}
}
