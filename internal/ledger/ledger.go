// Package ledger is the sole writer of cash balances and holding
// quantities. Every cash mutation (ReserveCash, ReleaseCash, CreditCash) is
// one atomic transaction that also appends an AccountHistory row; the
// holding mutations (ApplyBuyFill, ApplySellFill) and CreateAccount are
// each one transaction and append no history row. Grounded on the teacher's Deposit/Freeze/
// Deduct transaction shape and the explicit tx.Begin/Commit/Rollback
// pattern used for idempotent order records elsewhere in the pack.
package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/wyfcoding/simtrading/internal/errs"
	"github.com/wyfcoding/simtrading/internal/platform/dbx"
)

// Config carries the ledger's caller-visible constants from spec.md §9.
type Config struct {
	InitialCashMinorUnits int64
}

// DefaultConfig matches spec.md's literal value.
func DefaultConfig() Config {
	return Config{InitialCashMinorUnits: InitialCashMinorUnits}
}

// Ledger implements every operation in spec.md §4.4.
type Ledger struct {
	db  *dbx.DB
	cfg Config
}

// New wraps an initialized database connection.
func New(db *dbx.DB, cfg Config) *Ledger { return &Ledger{db: db, cfg: cfg} }

// CreateAccount returns the caller's ACTIVE account, creating one with the
// initial cash balance if none exists yet.
func (l *Ledger) CreateAccount(ctx context.Context, userID string) (*Account, error) {
	var account Account
	err := l.db.WithTx(ctx, func(tx *gorm.DB) error {
		err := tx.Where("user_id = ? AND status = ?", userID, StatusActive).First(&account).Error
		if err == nil {
			return nil
		}
		if err != gorm.ErrRecordNotFound {
			return err
		}

		account = Account{
			AccountID:           uuid.New().String(),
			UserID:              userID,
			Status:              StatusActive,
			CashBalance:         l.cfg.InitialCashMinorUnits,
			WithdrawableBalance: l.cfg.InitialCashMinorUnits,
			CreatedAt:           time.Now(),
			UpdatedAt:           time.Now(),
		}
		return tx.Create(&account).Error
	})
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// Balance returns an account's current cash balance.
func (l *Ledger) Balance(ctx context.Context, accountID string) (int64, error) {
	var account Account
	if err := l.db.WithContext(ctx).Where("account_id = ?", accountID).First(&account).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return 0, errs.Wrap(errs.NotFound, "account %s", accountID)
		}
		return 0, err
	}
	return account.CashBalance, nil
}

// CanReserve reports whether the account's current balance covers amount.
func (l *Ledger) CanReserve(ctx context.Context, accountID string, amount int64) (bool, error) {
	balance, err := l.Balance(ctx, accountID)
	if err != nil {
		return false, err
	}
	return balance >= amount, nil
}

// ReserveCash debits amount from the account's cash balance at admission
// time, appending a BUY_STOCK history row with a negative amount.
func (l *Ledger) ReserveCash(ctx context.Context, accountID string, amount int64, orderID string) error {
	return l.mutate(ctx, accountID, -amount, HistoryBuyStock, orderID, func(balance int64) error {
		if balance < amount {
			return errs.Wrap(errs.InsufficientFunds, "account %s", accountID)
		}
		return nil
	})
}

// ReleaseCash refunds amount to the account, appending a REFUND history row.
func (l *Ledger) ReleaseCash(ctx context.Context, accountID string, amount int64, orderID string) error {
	return l.mutate(ctx, accountID, amount, HistoryRefund, orderID, nil)
}

// CreditCash credits amount to the account on a sell fill, appending a
// SELL_STOCK history row.
func (l *Ledger) CreditCash(ctx context.Context, accountID string, amount int64, orderID string) error {
	return l.mutate(ctx, accountID, amount, HistorySellStock, orderID, nil)
}

// mutate applies delta to accountId's cash balance and appends one history
// row, all inside a single transaction. precheck, if non-nil, runs against
// the locked balance before the delta is applied and can veto the mutation.
func (l *Ledger) mutate(ctx context.Context, accountID string, delta int64, historyType, orderID string, precheck func(balance int64) error) error {
	return l.db.WithTx(ctx, func(tx *gorm.DB) error {
		var account Account
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("account_id = ?", accountID).First(&account).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return errs.Wrap(errs.NotFound, "account %s", accountID)
			}
			return err
		}

		if precheck != nil {
			if err := precheck(account.CashBalance); err != nil {
				return err
			}
		}

		before := account.CashBalance
		after := before + delta

		if err := tx.Model(&account).Update("cash_balance", after).Error; err != nil {
			return err
		}

		var relatedOrderID *string
		if orderID != "" {
			relatedOrderID = &orderID
		}
		history := AccountHistory{
			HistoryID:      uuid.New().String(),
			AccountID:      accountID,
			Type:           historyType,
			RelatedOrderID: relatedOrderID,
			Amount:         delta,
			BalanceBefore:  before,
			BalanceAfter:   after,
			At:             time.Now(),
		}
		return tx.Create(&history).Error
	})
}

// ApplyBuyFill upserts the account's holding in ticker, recomputing the
// weighted average cost by integer truncation.
func (l *Ledger) ApplyBuyFill(ctx context.Context, accountID, ticker string, qty, price int64) error {
	return l.db.WithTx(ctx, func(tx *gorm.DB) error {
		var holding Holding
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("account_id = ? AND ticker = ?", accountID, ticker).First(&holding).Error

		switch {
		case err == gorm.ErrRecordNotFound:
			holding = Holding{
				AccountID: accountID,
				Ticker:    ticker,
				Quantity:  qty,
				AvgCost:   price,
				CreatedAt: time.Now(),
				UpdatedAt: time.Now(),
			}
			return tx.Create(&holding).Error
		case err != nil:
			return err
		default:
			newQty := holding.Quantity + qty
			newAvg := (holding.Quantity*holding.AvgCost + qty*price) / newQty
			return tx.Model(&holding).Updates(map[string]interface{}{
				"quantity": newQty,
				"avg_cost": newAvg,
			}).Error
		}
	})
}

// ApplySellFill reduces the account's holding in ticker by qty, deleting
// the row once it reaches zero.
func (l *Ledger) ApplySellFill(ctx context.Context, accountID, ticker string, qty int64) error {
	return l.db.WithTx(ctx, func(tx *gorm.DB) error {
		var holding Holding
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("account_id = ? AND ticker = ?", accountID, ticker).First(&holding).Error
		if err == gorm.ErrRecordNotFound {
			return errs.Wrap(errs.InsufficientHolding, "account %s ticker %s", accountID, ticker)
		}
		if err != nil {
			return err
		}
		if holding.Quantity < qty {
			return errs.Wrap(errs.InsufficientHolding, "account %s ticker %s oversold", accountID, ticker)
		}

		remaining := holding.Quantity - qty
		if remaining == 0 {
			return tx.Delete(&holding).Error
		}
		return tx.Model(&holding).Update("quantity", remaining).Error
	})
}

// GetHolding returns the account's position in ticker, or (nil, NotFound).
func (l *Ledger) GetHolding(ctx context.Context, accountID, ticker string) (*Holding, error) {
	var holding Holding
	err := l.db.WithContext(ctx).Where("account_id = ? AND ticker = ?", accountID, ticker).First(&holding).Error
	if err == gorm.ErrRecordNotFound {
		return nil, errs.Wrap(errs.NotFound, "holding %s/%s", accountID, ticker)
	}
	if err != nil {
		return nil, err
	}
	return &holding, nil
}
