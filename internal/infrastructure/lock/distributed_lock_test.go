package lock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestTryLockIsExclusive(t *testing.T) {
	_, client := newClient(t)
	ctx := context.Background()

	first := NewIdempotencyLock(client, 7, "abc", "req-1", time.Minute)
	second := NewIdempotencyLock(client, 7, "abc", "req-2", time.Minute)
	other := NewIdempotencyLock(client, 7, "xyz", "req-3", time.Minute)

	ok, err := first.TryLock(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = second.TryLock(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = other.TryLock(ctx)
	require.NoError(t, err)
	assert.True(t, ok, "different keys must not contend")
}

func TestUnlockOnlyByHolder(t *testing.T) {
	mr, client := newClient(t)
	ctx := context.Background()

	holder := NewIdempotencyLock(client, 1, "k", "holder", time.Minute)
	intruder := NewIdempotencyLock(client, 1, "k", "intruder", time.Minute)

	ok, err := holder.TryLock(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	released, err := intruder.Unlock(ctx)
	require.NoError(t, err)
	assert.False(t, released)
	assert.True(t, mr.Exists(holder.Key()))

	released, err = holder.Unlock(ctx)
	require.NoError(t, err)
	assert.True(t, released)
	assert.False(t, mr.Exists(holder.Key()))
}

func TestLockExpires(t *testing.T) {
	mr, client := newClient(t)
	ctx := context.Background()

	l := NewIdempotencyLock(client, 1, "k", "a", time.Second)
	ok, err := l.TryLock(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Second)

	ok, err = NewIdempotencyLock(client, 1, "k", "b", time.Second).TryLock(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLockGivesUp(t *testing.T) {
	_, client := newClient(t)
	ctx := context.Background()

	held := NewDistributedLock(client, "busy", "a", time.Minute)
	ok, err := held.TryLock(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	err = NewDistributedLock(client, "busy", "b", time.Minute).Lock(ctx, time.Millisecond, 3)
	assert.ErrorIs(t, err, ErrLockFailed)
}
