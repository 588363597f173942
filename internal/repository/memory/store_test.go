package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"bankcore/internal/model"
	"bankcore/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seed(t *testing.T) (*Store, *model.Account, *model.Account) {
	t.Helper()
	s := New()
	owner := s.AddOwner(model.Owner{Email: "a@example.com", DisplayName: "Ana"})
	other := s.AddOwner(model.Owner{Email: "b@example.com", DisplayName: "Beto"})
	a := s.AddAccount(model.Account{Number: "CTA-000001", Type: model.AccountTypeSavings, Balance: decimal.RequireFromString("500"), OwnerID: owner.ID})
	b := s.AddAccount(model.Account{Number: "CTA-000002", Type: model.AccountTypeChecking, Balance: decimal.RequireFromString("200"), OwnerID: other.ID})
	return s, a, b
}

func TestTransactionRollbackDiscardsWrites(t *testing.T) {
	s, a, _ := seed(t)
	ctx := context.Background()

	err := s.Transaction(ctx, func(tx repository.Repositories) error {
		require.NoError(t, tx.Accounts().UpdateBalance(ctx, a.ID, decimal.RequireFromString("1")))
		require.NoError(t, tx.Ledger().Append(ctx, &model.Transaction{OriginAccountID: a.ID, DestinationAccountID: 2}))

		inside, err := tx.Accounts().Get(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, "1", inside.Balance.String())
		return errors.New("abort")
	})
	require.Error(t, err)

	after, err := s.Accounts().Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "500", after.Balance.String())

	history, err := s.Ledger().HistoryForOwner(ctx, a.OwnerID, 0, 10)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestLockForUpdateFilterByOwner(t *testing.T) {
	s, a, _ := seed(t)
	ctx := context.Background()

	err := s.Transaction(ctx, func(tx repository.Repositories) error {
		_, err := tx.Accounts().LockForUpdate(ctx, repository.AccountFilter{ID: a.ID, OwnerID: a.OwnerID + 1})
		return err
	})
	assert.ErrorIs(t, err, repository.ErrAccountNotFound)
}

func TestRowLockSerializesTransactions(t *testing.T) {
	s, a, _ := seed(t)
	ctx := context.Background()

	locked := make(chan struct{})
	release := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = s.Transaction(ctx, func(tx repository.Repositories) error {
			acc, err := tx.Accounts().LockForUpdate(ctx, repository.AccountFilter{ID: a.ID})
			if err != nil {
				return err
			}
			close(locked)
			<-release
			return tx.Accounts().UpdateBalance(ctx, a.ID, acc.Balance.Sub(decimal.NewFromInt(100)))
		})
	}()

	<-locked
	seen := make(chan decimal.Decimal, 1)
	go func() {
		_ = s.Transaction(ctx, func(tx repository.Repositories) error {
			acc, err := tx.Accounts().LockForUpdate(ctx, repository.AccountFilter{ID: a.ID})
			if err != nil {
				return err
			}
			seen <- acc.Balance
			return nil
		})
	}()

	select {
	case <-seen:
		t.Fatal("second transaction acquired a held row lock")
	case <-time.After(50 * time.Millisecond):
	}
	close(release)
	wg.Wait()

	select {
	case b := <-seen:
		assert.Equal(t, "400", b.String())
	case <-time.After(time.Second):
		t.Fatal("second transaction never acquired the lock")
	}
}

func TestDuplicateIdempotencyKeyRejected(t *testing.T) {
	s, a, b := seed(t)
	ctx := context.Background()
	key := "1:k"

	require.NoError(t, s.Ledger().Append(ctx, &model.Transaction{OriginAccountID: a.ID, DestinationAccountID: b.ID, IdempotencyKey: &key}))

	err := s.Transaction(ctx, func(tx repository.Repositories) error {
		return tx.Ledger().Append(ctx, &model.Transaction{OriginAccountID: a.ID, DestinationAccountID: b.ID, IdempotencyKey: &key})
	})
	assert.ErrorIs(t, err, repository.ErrDuplicateKey)
}

func TestHistoryOrderingAndPaging(t *testing.T) {
	s, a, b := seed(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		require.NoError(t, s.Ledger().Append(ctx, &model.Transaction{
			OriginAccountID:      a.ID,
			DestinationAccountID: b.ID,
			Amount:               decimal.NewFromInt(int64(i + 1)),
			CreatedAt:            base.Add(time.Duration(i) * time.Minute),
		}))
	}

	page, err := s.Ledger().HistoryForOwner(ctx, a.OwnerID, 1, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "4", page[0].Amount.String())
	assert.Equal(t, "3", page[1].Amount.String())

	recipient, err := s.Ledger().HistoryForOwner(ctx, b.OwnerID, 0, 50)
	require.NoError(t, err)
	assert.Len(t, recipient, 5)

	ranged, err := s.Ledger().RangeQuery(ctx, base.Add(time.Minute), base.Add(3*time.Minute))
	require.NoError(t, err)
	require.Len(t, ranged, 3)
	assert.Equal(t, "4", ranged[0].Amount.String())
	assert.Equal(t, "2", ranged[2].Amount.String())
}

func TestOutboxLifecycle(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Now()

	msg := &model.OutboxMessage{Channel: model.OutboxChannelAudit, Topic: "audit", Payload: "{}"}
	require.NoError(t, s.Outbox().Create(ctx, msg))

	due, err := s.Outbox().GetDue(ctx, now.Add(time.Second), 10)
	require.NoError(t, err)
	require.Len(t, due, 1)

	require.NoError(t, s.Outbox().ScheduleRetry(ctx, msg.ID, now.Add(time.Hour), "broker down"))
	due, err = s.Outbox().GetDue(ctx, now.Add(time.Second), 10)
	require.NoError(t, err)
	assert.Empty(t, due)

	require.NoError(t, s.Outbox().MarkDead(ctx, msg.ID, "gave up"))
	got := s.OutboxMessages()
	require.Len(t, got, 1)
	assert.Equal(t, model.OutboxStatusDead, got[0].Status)
	assert.Equal(t, 2, got[0].RetryCount)
}

func TestOwnersCountByActive(t *testing.T) {
	s, _, _ := seed(t)
	s.AddOwner(model.Owner{Email: "c@example.com", DisplayName: "Caro", Active: true})

	active, inactive, err := s.Owners().CountByActive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), active)
	assert.Equal(t, int64(2), inactive)
}
