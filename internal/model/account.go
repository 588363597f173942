package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type AccountType string

const (
	AccountTypeSavings  AccountType = "savings"
	AccountTypeChecking AccountType = "checking"
	AccountTypePayroll  AccountType = "payroll"
)

// AccountTypes lists every account type in report order.
var AccountTypes = []AccountType{AccountTypeSavings, AccountTypeChecking, AccountTypePayroll}

func (t AccountType) Valid() bool {
	switch t {
	case AccountTypeSavings, AccountTypeChecking, AccountTypePayroll:
		return true
	}
	return false
}

type AccountStatus string

const (
	AccountStatusActive   AccountStatus = "active"
	AccountStatusInactive AccountStatus = "inactive"
	AccountStatusFrozen   AccountStatus = "frozen"
)

var AccountStatuses = []AccountStatus{AccountStatusActive, AccountStatusInactive, AccountStatusFrozen}

func (s AccountStatus) Valid() bool {
	switch s {
	case AccountStatusActive, AccountStatusInactive, AccountStatusFrozen:
		return true
	}
	return false
}

// ValidStatusTransitions is the admin-driven account state machine.
// No state is terminal; frozen and inactive can only go back to active.
var ValidStatusTransitions = map[AccountStatus][]AccountStatus{
	AccountStatusActive:   {AccountStatusFrozen, AccountStatusInactive},
	AccountStatusFrozen:   {AccountStatusActive},
	AccountStatusInactive: {AccountStatusActive},
}

func (s AccountStatus) CanTransitionTo(target AccountStatus) bool {
	for _, allowed := range ValidStatusTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// Account is one balance-holding account of an owner.
//
// Balance only changes inside a store transaction that holds the row lock:
// through a transfer or an admin override. Rows are never deleted; an
// account is retired by moving it to inactive.
type Account struct {
	ID        int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	Number    string          `gorm:"type:varchar(20);uniqueIndex;not null" json:"number"`
	Type      AccountType     `gorm:"type:varchar(20);not null;index:idx_accounts_owner_type,priority:2" json:"type"`
	Balance   decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"balance"`
	Status    AccountStatus   `gorm:"type:varchar(20);not null;default:active;index" json:"status"`
	OwnerID   int64           `gorm:"not null;index:idx_accounts_owner_type,priority:1" json:"owner_id"`
	Owner     *Owner          `gorm:"foreignKey:OwnerID" json:"-"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Account) TableName() string {
	return "accounts"
}

// IsUsable reports whether the account may take part in a transfer.
func (a *Account) IsUsable() bool {
	return a.Status == AccountStatusActive
}
