// Package repository defines the storage contracts of the transfer core and
// their gorm implementation. The memory subpackage implements the same
// contracts in process.
package repository

import (
	"context"
	"errors"
	"time"

	"bankcore/internal/model"

	"github.com/shopspring/decimal"
)

var (
	ErrAccountNotFound = errors.New("account not found")
	ErrOwnerNotFound   = errors.New("owner not found")
	ErrDuplicateKey    = errors.New("duplicate key")
)

// AccountFilter selects one account row. OwnerID 0 matches any owner.
type AccountFilter struct {
	ID      int64
	OwnerID int64
}

func (f AccountFilter) Matches(a *model.Account) bool {
	return a.ID == f.ID && (f.OwnerID == 0 || a.OwnerID == f.OwnerID)
}

// AccountStore persists accounts. LockForUpdate only locks when called inside
// Store.Transaction; the lock is held until that transaction ends.
type AccountStore interface {
	LockForUpdate(ctx context.Context, filter AccountFilter) (*model.Account, error)
	Get(ctx context.Context, id int64) (*model.Account, error)
	UpdateBalance(ctx context.Context, id int64, balance decimal.Decimal) error
	UpdateStatus(ctx context.Context, id int64, status model.AccountStatus) error
	FindByOwner(ctx context.Context, ownerID int64) ([]*model.Account, error)
	ExistsOpenOfType(ctx context.Context, ownerID int64, accountType model.AccountType) (bool, error)
	NumberExists(ctx context.Context, number string) (bool, error)
	Create(ctx context.Context, account *model.Account) error
	CountByStatus(ctx context.Context) (map[model.AccountStatus]int64, error)
	SumBalanceByType(ctx context.Context) (map[model.AccountType]decimal.Decimal, error)
}

// LedgerStore is the append-only transaction ledger.
type LedgerStore interface {
	Append(ctx context.Context, entry *model.Transaction) error
	// GetByIdempotencyKey returns nil, nil when no entry carries the key.
	GetByIdempotencyKey(ctx context.Context, key string) (*model.Transaction, error)
	HistoryForOwner(ctx context.Context, ownerID int64, skip, limit int) ([]*model.Transaction, error)
	RangeQuery(ctx context.Context, from, to time.Time) ([]*model.Transaction, error)
	TopOwners(ctx context.Context, limit int) ([]model.OwnerActivity, error)
}

type OwnerStore interface {
	Get(ctx context.Context, id int64) (*model.Owner, error)
	LockForUpdate(ctx context.Context, id int64) (*model.Owner, error)
	CountByActive(ctx context.Context) (active, inactive int64, err error)
}

type OutboxStore interface {
	Create(ctx context.Context, msg *model.OutboxMessage) error
	GetDue(ctx context.Context, now time.Time, limit int) ([]*model.OutboxMessage, error)
	MarkSent(ctx context.Context, id int64) error
	ScheduleRetry(ctx context.Context, id int64, next time.Time, lastErr string) error
	MarkDead(ctx context.Context, id int64, lastErr string) error
	PurgeSent(ctx context.Context, before time.Time) (int64, error)
}

// Repositories groups the stores that take part in a business transaction.
type Repositories interface {
	Accounts() AccountStore
	Ledger() LedgerStore
	Owners() OwnerStore
}

type Store interface {
	Repositories
	Outbox() OutboxStore
	// Transaction runs fn inside one storage transaction. A non-nil error
	// from fn rolls back every write made through tx.
	Transaction(ctx context.Context, fn func(tx Repositories) error) error
}

const maxLastErrorLen = 512

// TruncateError keeps last_error within its column.
func TruncateError(msg string) string {
	if len(msg) > maxLastErrorLen {
		return msg[:maxLastErrorLen]
	}
	return msg
}
