package repository

import (
	"context"
	"errors"
	"time"

	"bankcore/internal/model"

	"gorm.io/gorm"
)

type TransactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// Append inserts the entry and fills in its ID. A second entry with the same
// idempotency key fails with ErrDuplicateKey.
func (r *TransactionRepository) Append(ctx context.Context, entry *model.Transaction) error {
	err := r.db.WithContext(ctx).Omit("OriginAccount", "DestinationAccount").Create(entry).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicateKey
	}
	return err
}

func (r *TransactionRepository) GetByIdempotencyKey(ctx context.Context, key string) (*model.Transaction, error) {
	var entry model.Transaction
	err := r.db.WithContext(ctx).Where("idempotency_key = ?", key).First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

// HistoryForOwner returns entries touching any account of the owner, newest first.
func (r *TransactionRepository) HistoryForOwner(ctx context.Context, ownerID int64, skip, limit int) ([]*model.Transaction, error) {
	owned := r.db.Model(&model.Account{}).Select("id").Where("owner_id = ?", ownerID)

	var entries []*model.Transaction
	err := r.db.WithContext(ctx).
		Where("origin_account_id IN (?) OR destination_account_id IN (?)", owned, owned).
		Order("created_at DESC").
		Order("id DESC").
		Offset(skip).
		Limit(limit).
		Find(&entries).Error
	return entries, err
}

// RangeQuery returns entries with from <= created_at <= to, newest first.
func (r *TransactionRepository) RangeQuery(ctx context.Context, from, to time.Time) ([]*model.Transaction, error) {
	var entries []*model.Transaction
	err := r.db.WithContext(ctx).
		Where("created_at >= ? AND created_at <= ?", from, to).
		Order("created_at DESC").
		Order("id DESC").
		Find(&entries).Error
	return entries, err
}

// TopOwners ranks owners by the number of transfers sent from their accounts.
func (r *TransactionRepository) TopOwners(ctx context.Context, limit int) ([]model.OwnerActivity, error) {
	var rows []model.OwnerActivity
	err := r.db.WithContext(ctx).
		Table("transactions AS t").
		Select("a.owner_id AS owner_id, o.display_name AS display_name, COUNT(t.id) AS transaction_count").
		Joins("JOIN accounts a ON a.id = t.origin_account_id").
		Joins("JOIN owners o ON o.id = a.owner_id").
		Group("a.owner_id, o.display_name").
		Order("transaction_count DESC").
		Order("a.owner_id ASC").
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}
