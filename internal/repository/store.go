package repository

import (
	"context"

	"gorm.io/gorm"
)

// GormStore is the relational Store.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

type gormRepositories struct {
	db *gorm.DB
}

func (r gormRepositories) Accounts() AccountStore { return NewAccountRepository(r.db) }
func (r gormRepositories) Ledger() LedgerStore    { return NewTransactionRepository(r.db) }
func (r gormRepositories) Owners() OwnerStore     { return NewOwnerRepository(r.db) }

func (s *GormStore) Accounts() AccountStore { return NewAccountRepository(s.db) }
func (s *GormStore) Ledger() LedgerStore    { return NewTransactionRepository(s.db) }
func (s *GormStore) Owners() OwnerStore     { return NewOwnerRepository(s.db) }
func (s *GormStore) Outbox() OutboxStore    { return NewOutboxRepository(s.db) }

func (s *GormStore) Transaction(ctx context.Context, fn func(tx Repositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(gormRepositories{db: tx})
	})
}
