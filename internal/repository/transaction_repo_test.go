package repository

import (
	"context"
	"testing"
	"time"

	"bankcore/internal/model"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var transactionColumns = []string{
	"id", "reference", "origin_account_id", "destination_account_id", "amount",
	"kind", "status", "description", "correlation_id", "created_at",
}

func TestTransactionRepository_Append(t *testing.T) {
	ctx := context.Background()

	newEntry := func() *model.Transaction {
		return &model.Transaction{
			Reference:            "TRF2024010112000000000001",
			OriginAccountID:      1,
			DestinationAccountID: 2,
			Amount:               decimal.RequireFromString("100.00"),
			Kind:                 model.TransactionKindTransfer,
			Status:               model.TransactionStatusCompleted,
			CreatedAt:            time.Now(),
		}
	}

	t.Run("assigns id", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewTransactionRepository(db)

		mock.ExpectExec("INSERT INTO `transactions`").
			WillReturnResult(sqlmock.NewResult(42, 1))

		entry := newEntry()
		require.NoError(t, repo.Append(ctx, entry))
		assert.Equal(t, int64(42), entry.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate idempotency key", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewTransactionRepository(db)

		mock.ExpectExec("INSERT INTO `transactions`").
			WillReturnError(gorm.ErrDuplicatedKey)

		err := repo.Append(ctx, newEntry())
		assert.ErrorIs(t, err, ErrDuplicateKey)
	})
}

func TestTransactionRepository_GetByIdempotencyKeyMissing(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTransactionRepository(db)

	mock.ExpectQuery("SELECT \\* FROM `transactions` WHERE idempotency_key = \\?").
		WillReturnRows(sqlmock.NewRows(transactionColumns))

	entry, err := repo.GetByIdempotencyKey(context.Background(), "7:abc")
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestTransactionRepository_HistoryForOwner(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTransactionRepository(db)
	now := time.Now()

	mock.ExpectQuery("SELECT \\* FROM `transactions` WHERE origin_account_id IN \\(SELECT .*id.* FROM `accounts` WHERE owner_id = \\?\\) OR destination_account_id IN \\(SELECT .*\\).*ORDER BY created_at DESC,id DESC").
		WillReturnRows(sqlmock.NewRows(transactionColumns).
			AddRow(2, "TRF-B", 3, 1, "20.00", "transfer", "completed", "", "c2", now).
			AddRow(1, "TRF-A", 1, 2, "100.00", "transfer", "completed", "rent", "c1", now.Add(-time.Minute)))

	entries, err := repo.HistoryForOwner(context.Background(), 7, 0, 50)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, int64(2), entries[0].ID)
	assert.Equal(t, "rent", entries[1].Description)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepository_RangeQuery(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTransactionRepository(db)
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)

	mock.ExpectQuery("SELECT \\* FROM `transactions` WHERE created_at >= \\? AND created_at <= \\?").
		WithArgs(from, to).
		WillReturnRows(sqlmock.NewRows(transactionColumns))

	entries, err := repo.RangeQuery(context.Background(), from, to)
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.NoError(t, mock.ExpectationsWereMet())
}
