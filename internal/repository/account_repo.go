package repository

import (
	"context"
	"errors"

	"bankcore/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AccountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) Create(ctx context.Context, account *model.Account) error {
	err := r.db.WithContext(ctx).Create(account).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicateKey
	}
	return err
}

func (r *AccountRepository) Get(ctx context.Context, id int64) (*model.Account, error) {
	var account model.Account
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

// LockForUpdate reads the row with SELECT ... FOR UPDATE. Concurrent lockers
// of the same row block until the holding transaction ends.
func (r *AccountRepository) LockForUpdate(ctx context.Context, filter AccountFilter) (*model.Account, error) {
	query := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", filter.ID)
	if filter.OwnerID != 0 {
		query = query.Where("owner_id = ?", filter.OwnerID)
	}

	var account model.Account
	if err := query.First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

// UpdateBalance does not check RowsAffected: MySQL reports 0 when the value
// is unchanged, and callers already hold the row lock.
func (r *AccountRepository) UpdateBalance(ctx context.Context, id int64, balance decimal.Decimal) error {
	return r.db.WithContext(ctx).
		Model(&model.Account{}).
		Where("id = ?", id).
		Update("balance", balance).Error
}

func (r *AccountRepository) UpdateStatus(ctx context.Context, id int64, status model.AccountStatus) error {
	return r.db.WithContext(ctx).
		Model(&model.Account{}).
		Where("id = ?", id).
		Update("status", status).Error
}

func (r *AccountRepository) FindByOwner(ctx context.Context, ownerID int64) ([]*model.Account, error) {
	var accounts []*model.Account
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("id ASC").
		Find(&accounts).Error
	return accounts, err
}

func (r *AccountRepository) ExistsOpenOfType(ctx context.Context, ownerID int64, accountType model.AccountType) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Account{}).
		Where("owner_id = ? AND type = ? AND status <> ?", ownerID, accountType, model.AccountStatusInactive).
		Count(&count).Error
	return count > 0, err
}

func (r *AccountRepository) NumberExists(ctx context.Context, number string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Account{}).
		Where("number = ?", number).
		Count(&count).Error
	return count > 0, err
}

func (r *AccountRepository) CountByStatus(ctx context.Context) (map[model.AccountStatus]int64, error) {
	var rows []struct {
		Status model.AccountStatus
		Total  int64
	}
	err := r.db.WithContext(ctx).
		Model(&model.Account{}).
		Select("status, COUNT(*) AS total").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[model.AccountStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Total
	}
	return counts, nil
}

func (r *AccountRepository) SumBalanceByType(ctx context.Context) (map[model.AccountType]decimal.Decimal, error) {
	var rows []struct {
		Type  model.AccountType
		Total decimal.Decimal
	}
	err := r.db.WithContext(ctx).
		Model(&model.Account{}).
		Select("type, COALESCE(SUM(balance), 0) AS total").
		Group("type").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	totals := make(map[model.AccountType]decimal.Decimal, len(rows))
	for _, row := range rows {
		totals[row.Type] = row.Total
	}
	return totals, nil
}
