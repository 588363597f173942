package repository

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutboxRepository_GetDue(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewOutboxRepository(db)
	now := time.Now()

	mock.ExpectQuery("SELECT \\* FROM `outbox_messages` WHERE status = \\? AND next_attempt_at <= \\? ORDER BY id ASC").
		WillReturnRows(sqlmock.NewRows([]string{"id", "channel", "topic", "message_key", "payload", "status", "retry_count"}).
			AddRow(5, "notification", "bank.notifications", "TRF-1", "{}", "PENDING", 0))

	msgs, err := repo.GetDue(context.Background(), now, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "notification", msgs[0].Channel)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOutboxRepository_ScheduleRetry(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewOutboxRepository(db)

	mock.ExpectExec("UPDATE `outbox_messages` SET .*`retry_count`=retry_count \\+ 1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.ScheduleRetry(context.Background(), 5, time.Now().Add(time.Second), strings.Repeat("x", 600))
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOutboxRepository_PurgeSent(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewOutboxRepository(db)

	mock.ExpectExec("DELETE FROM `outbox_messages` WHERE status = \\? AND updated_at < \\?").
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := repo.PurgeSent(context.Background(), time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTruncateError(t *testing.T) {
	assert.Len(t, TruncateError(strings.Repeat("e", 1000)), 512)
	assert.Equal(t, "short", TruncateError("short"))
}
