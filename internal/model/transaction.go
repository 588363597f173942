package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionKind string

const (
	TransactionKindTransfer   TransactionKind = "transfer"
	TransactionKindDeposit    TransactionKind = "deposit"
	TransactionKindWithdrawal TransactionKind = "withdrawal"
)

func (k TransactionKind) Valid() bool {
	switch k {
	case TransactionKindTransfer, TransactionKindDeposit, TransactionKindWithdrawal:
		return true
	}
	return false
}

type TransactionStatus string

const (
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusFailed    TransactionStatus = "failed"
	TransactionStatusPending   TransactionStatus = "pending"
)

// Transaction is one ledger entry.
//
// The ledger is append-only: a row is inserted once, inside the same store
// transaction that moved the balances, and never updated or deleted.
type Transaction struct {
	ID                   int64             `gorm:"primaryKey;autoIncrement" json:"id"`
	Reference            string            `gorm:"type:varchar(40);uniqueIndex;not null" json:"reference"`
	OriginAccountID      int64             `gorm:"not null;index" json:"origin_account_id"`
	DestinationAccountID int64             `gorm:"not null;index" json:"destination_account_id"`
	Amount               decimal.Decimal   `gorm:"type:decimal(12,2);not null" json:"amount"`
	Kind                 TransactionKind   `gorm:"type:varchar(20);not null" json:"kind"`
	Status               TransactionStatus `gorm:"type:varchar(20);not null;default:completed" json:"status"`
	Description          string            `gorm:"type:varchar(255);not null;default:''" json:"description"`
	IdempotencyKey       *string           `gorm:"type:varchar(96);uniqueIndex" json:"-"`
	CorrelationID        string            `gorm:"type:varchar(64)" json:"correlation_id"`
	CreatedAt            time.Time         `gorm:"not null;index" json:"timestamp"`

	OriginAccount      *Account `gorm:"foreignKey:OriginAccountID" json:"-"`
	DestinationAccount *Account `gorm:"foreignKey:DestinationAccountID" json:"-"`
}

func (Transaction) TableName() string {
	return "transactions"
}
