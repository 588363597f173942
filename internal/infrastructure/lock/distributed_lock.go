package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// ============================================================================
// Redis lock
// ============================================================================
//
// Acquire:  SET key token NX PX ttl
//   - NX makes the lock exclusive
//   - the ttl frees the lock if the holder dies
//   - token identifies the holder so only it can release
//
// Release:  Lua compare-and-delete, so a holder whose lock already expired
// cannot delete the lock of the next holder.
//
// The lock only narrows the race between duplicate requests; the unique
// index on the ledger's idempotency key is what guarantees single execution.
// ============================================================================

var ErrLockFailed = errors.New("could not acquire lock")

const unlockScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end
`

type DistributedLock struct {
	client     redis.Cmdable
	key        string
	value      string
	expiration time.Duration
}

func NewDistributedLock(client redis.Cmdable, key, value string, expiration time.Duration) *DistributedLock {
	return &DistributedLock{
		client:     client,
		key:        key,
		value:      value,
		expiration: expiration,
	}
}

func (l *DistributedLock) Key() string { return l.key }

// TryLock makes one non-blocking attempt.
func (l *DistributedLock) TryLock(ctx context.Context) (bool, error) {
	return l.client.SetNX(ctx, l.key, l.value, l.expiration).Result()
}

// Lock retries TryLock every retryInterval, at most maxRetries times.
func (l *DistributedLock) Lock(ctx context.Context, retryInterval time.Duration, maxRetries int) error {
	for i := 0; i < maxRetries; i++ {
		ok, err := l.TryLock(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryInterval):
		}
	}
	return ErrLockFailed
}

// Unlock releases the lock if it is still held with this lock's token.
// It reports whether a key was deleted.
func (l *DistributedLock) Unlock(ctx context.Context) (bool, error) {
	n, err := l.client.Eval(ctx, unlockScript, []string{l.key}, l.value).Int64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// NewIdempotencyLock guards one (owner, idempotency key) pair.
// Different keys of the same owner do not contend.
func NewIdempotencyLock(client redis.Cmdable, ownerID int64, idempotencyKey, token string, ttl time.Duration) *DistributedLock {
	key := fmt.Sprintf("transfer:idem:%d:%s", ownerID, idempotencyKey)
	return NewDistributedLock(client, key, token, ttl)
}
