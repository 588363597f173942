package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"bankcore/internal/config"
	"bankcore/internal/infrastructure/audit"
	"bankcore/internal/model"
	"bankcore/internal/repository"
	"bankcore/internal/repository/memory"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testTopics = config.TopicConfig{Notification: "bank.notifications", Audit: "bank.audit"}

type fixture struct {
	store *memory.Store
	sink  *EventSink
	ana   *model.Owner
	beto  *model.Owner
	seq   int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()
	return &fixture{
		store: store,
		sink:  NewEventSink(store.Outbox(), testTopics, zap.NewNop()),
		ana:   store.AddOwner(model.Owner{Email: "ana@example.com", DisplayName: "Ana", Active: true, Role: model.RoleCustomer}),
		beto:  store.AddOwner(model.Owner{Email: "beto@example.com", DisplayName: "Beto", Active: true, Role: model.RoleCustomer}),
	}
}

func (f *fixture) account(owner *model.Owner, accountType model.AccountType, balance string, status model.AccountStatus) *model.Account {
	f.seq++
	return f.store.AddAccount(model.Account{
		Number:  fmt.Sprintf("CTA-%06d", 100000+f.seq),
		Type:    accountType,
		Balance: decimal.RequireFromString(balance),
		Status:  status,
		OwnerID: owner.ID,
	})
}

func (f *fixture) balance(t *testing.T, id int64) string {
	t.Helper()
	a, err := f.store.Accounts().Get(context.Background(), id)
	require.NoError(t, err)
	return a.Balance.StringFixed(2)
}

// outboxByChannel splits the queued rows by channel.
func (f *fixture) outboxByChannel() (notifications []model.Notification, audits []audit.Record) {
	for _, m := range f.store.OutboxMessages() {
		switch m.Channel {
		case model.OutboxChannelNotification:
			var n model.Notification
			_ = json.Unmarshal([]byte(m.Payload), &n)
			notifications = append(notifications, n)
		case model.OutboxChannelAudit:
			var rec audit.Record
			_ = json.Unmarshal([]byte(m.Payload), &rec)
			audits = append(audits, rec)
		}
	}
	return notifications, audits
}

// failingStore aborts every transaction with err.
type failingStore struct {
	*memory.Store
	err error
}

func (s failingStore) Transaction(ctx context.Context, fn func(tx repository.Repositories) error) error {
	return s.err
}

// failingOutbox rejects every insert.
type failingOutbox struct {
	repository.OutboxStore
}

func (failingOutbox) Create(ctx context.Context, msg *model.OutboxMessage) error {
	return errors.New("outbox table unavailable")
}
