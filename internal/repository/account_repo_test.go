package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"bankcore/internal/model"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccountRepository_LockForUpdate(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	t.Run("locks row scoped to owner", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewAccountRepository(db)

		mock.ExpectQuery("SELECT \\* FROM `accounts` WHERE id = \\? AND owner_id = \\?.*FOR UPDATE").
			WillReturnRows(sqlmock.NewRows(accountColumns).
				AddRow(1, "CTA-123456", "savings", "500.00", "active", 7, now, now))

		account, err := repo.LockForUpdate(ctx, AccountFilter{ID: 1, OwnerID: 7})
		require.NoError(t, err)
		assert.Equal(t, int64(7), account.OwnerID)
		assert.Equal(t, model.AccountStatusActive, account.Status)
		assert.True(t, account.Balance.Equal(decimal.RequireFromString("500")))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("destination lock ignores owner", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewAccountRepository(db)

		mock.ExpectQuery("SELECT \\* FROM `accounts` WHERE id = \\? ORDER BY .* FOR UPDATE").
			WillReturnRows(sqlmock.NewRows(accountColumns).
				AddRow(2, "CTA-654321", "checking", "200.00", "frozen", 9, now, now))

		account, err := repo.LockForUpdate(ctx, AccountFilter{ID: 2})
		require.NoError(t, err)
		assert.Equal(t, model.AccountStatusFrozen, account.Status)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing row maps to ErrAccountNotFound", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewAccountRepository(db)

		mock.ExpectQuery("SELECT \\* FROM `accounts`").
			WillReturnRows(sqlmock.NewRows(accountColumns))

		_, err := repo.LockForUpdate(ctx, AccountFilter{ID: 1, OwnerID: 8})
		assert.ErrorIs(t, err, ErrAccountNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("driver error passes through", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewAccountRepository(db)

		boom := errors.New("lock wait timeout")
		mock.ExpectQuery("SELECT \\* FROM `accounts`").WillReturnError(boom)

		_, err := repo.LockForUpdate(ctx, AccountFilter{ID: 1})
		assert.ErrorIs(t, err, boom)
	})
}

func TestAccountRepository_CountByStatus(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAccountRepository(db)

	mock.ExpectQuery("SELECT status, COUNT\\(\\*\\) AS total FROM `accounts` GROUP BY .*status").
		WillReturnRows(sqlmock.NewRows([]string{"status", "total"}).
			AddRow("active", 4).
			AddRow("frozen", 1))

	counts, err := repo.CountByStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(4), counts[model.AccountStatusActive])
	assert.Equal(t, int64(1), counts[model.AccountStatusFrozen])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepository_ExistsOpenOfType(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAccountRepository(db)

	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `accounts` WHERE owner_id = \\? AND type = \\? AND status <> \\?").
		WithArgs(7, model.AccountTypeSavings, model.AccountStatusInactive).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	exists, err := repo.ExistsOpenOfType(context.Background(), 7, model.AccountTypeSavings)
	require.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_TransactionRollsBackOnError(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewGormStore(db)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT \\* FROM `accounts` WHERE id = \\?.*FOR UPDATE").
		WillReturnRows(sqlmock.NewRows(accountColumns).
			AddRow(1, "CTA-123456", "savings", "50.00", "active", 7, now, now))
	mock.ExpectRollback()

	sentinel := errors.New("insufficient")
	err := store.Transaction(context.Background(), func(tx Repositories) error {
		if _, err := tx.Accounts().LockForUpdate(context.Background(), AccountFilter{ID: 1}); err != nil {
			return err
		}
		return sentinel
	})
	assert.ErrorIs(t, err, sentinel)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_TransactionCommits(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewGormStore(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `accounts` SET .*`balance`=\\?").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := store.Transaction(context.Background(), func(tx Repositories) error {
		return tx.Accounts().UpdateBalance(context.Background(), 1, decimal.RequireFromString("400.00"))
	})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
