package repository

import (
	"context"
	"errors"

	"bankcore/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type OwnerRepository struct {
	db *gorm.DB
}

func NewOwnerRepository(db *gorm.DB) *OwnerRepository {
	return &OwnerRepository{db: db}
}

func (r *OwnerRepository) Get(ctx context.Context, id int64) (*model.Owner, error) {
	return r.first(r.db.WithContext(ctx), id)
}

// LockForUpdate serializes account creation per owner.
func (r *OwnerRepository) LockForUpdate(ctx context.Context, id int64) (*model.Owner, error) {
	return r.first(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (r *OwnerRepository) CountByActive(ctx context.Context) (active, inactive int64, err error) {
	var rows []struct {
		Active bool
		Total  int64
	}
	err = r.db.WithContext(ctx).
		Model(&model.Owner{}).
		Select("active, COUNT(*) AS total").
		Group("active").
		Scan(&rows).Error
	if err != nil {
		return 0, 0, err
	}
	for _, row := range rows {
		if row.Active {
			active += row.Total
		} else {
			inactive += row.Total
		}
	}
	return active, inactive, nil
}

func (r *OwnerRepository) first(db *gorm.DB, id int64) (*model.Owner, error) {
	var owner model.Owner
	if err := db.Where("id = ?", id).First(&owner).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOwnerNotFound
		}
		return nil, err
	}
	return &owner, nil
}
