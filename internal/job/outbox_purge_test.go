package job

import (
	"context"
	"testing"
	"time"

	"bankcore/internal/model"
	"bankcore/internal/repository/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestPurgeRemovesOnlyOldSentRows(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	old := time.Now().Add(-3 * time.Hour)
	store.SetClock(func() time.Time { return old })

	sentOld := &model.OutboxMessage{Channel: model.OutboxChannelAudit, Payload: "{}"}
	deadOld := &model.OutboxMessage{Channel: model.OutboxChannelAudit, Payload: "{}"}
	pendingOld := &model.OutboxMessage{Channel: model.OutboxChannelAudit, Payload: "{}"}
	for _, m := range []*model.OutboxMessage{sentOld, deadOld, pendingOld} {
		require.NoError(t, store.Outbox().Create(ctx, m))
	}
	require.NoError(t, store.Outbox().MarkSent(ctx, sentOld.ID))
	require.NoError(t, store.Outbox().MarkDead(ctx, deadOld.ID, "gave up"))

	store.SetClock(time.Now)
	sentNew := &model.OutboxMessage{Channel: model.OutboxChannelAudit, Payload: "{}"}
	require.NoError(t, store.Outbox().Create(ctx, sentNew))
	require.NoError(t, store.Outbox().MarkSent(ctx, sentNew.ID))

	purger := NewOutboxPurger(store.Outbox(), testBusiness, zap.NewNop())
	assert.Equal(t, int64(1), purger.Purge(ctx))

	var ids []int64
	for _, m := range store.OutboxMessages() {
		ids = append(ids, m.ID)
	}
	assert.Equal(t, []int64{deadOld.ID, pendingOld.ID, sentNew.ID}, ids)
}

func TestPurgerStops(t *testing.T) {
	purger := NewOutboxPurger(memory.New().Outbox(), testBusiness, zap.NewNop())
	done := make(chan struct{})
	go func() {
		purger.Start(context.Background())
		close(done)
	}()
	time.Sleep(30 * time.Millisecond)
	purger.Stop()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("purger did not stop")
	}
}
