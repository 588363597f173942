package repository

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOwnerRepository_CountByActive(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewOwnerRepository(db)

	mock.ExpectQuery("SELECT active, COUNT\\(\\*\\) AS total FROM `owners` GROUP BY .*active").
		WillReturnRows(sqlmock.NewRows([]string{"active", "total"}).
			AddRow(true, 5).
			AddRow(false, 2))

	active, inactive, err := repo.CountByActive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(5), active)
	assert.Equal(t, int64(2), inactive)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOwnerRepository_GetNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewOwnerRepository(db)

	mock.ExpectQuery("SELECT \\* FROM `owners` WHERE id = \\?").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "display_name", "active", "role"}))

	_, err := repo.Get(context.Background(), 42)
	assert.ErrorIs(t, err, ErrOwnerNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
