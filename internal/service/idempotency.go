package service

import (
	"context"
	"time"

	"bankcore/internal/infrastructure/lock"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// IdempotencyLocker serializes transfers that share (owner, idempotency key).
// release must be called once the transfer has committed or failed.
type IdempotencyLocker interface {
	Acquire(ctx context.Context, ownerID int64, key, token string) (release func(), err error)
}

// RedisIdempotencyLocker backs IdempotencyLocker with lock.DistributedLock.
type RedisIdempotencyLocker struct {
	client        redis.Cmdable
	ttl           time.Duration
	retryInterval time.Duration
	maxRetries    int
	log           *zap.Logger
}

func NewRedisIdempotencyLocker(client redis.Cmdable, ttl time.Duration, log *zap.Logger) *RedisIdempotencyLocker {
	return &RedisIdempotencyLocker{
		client:        client,
		ttl:           ttl,
		retryInterval: 100 * time.Millisecond,
		maxRetries:    30,
		log:           log.Named("idempotency"),
	}
}

func (l *RedisIdempotencyLocker) Acquire(ctx context.Context, ownerID int64, key, token string) (func(), error) {
	dl := lock.NewIdempotencyLock(l.client, ownerID, key, token, l.ttl)
	if err := dl.Lock(ctx, l.retryInterval, l.maxRetries); err != nil {
		return nil, err
	}

	return func() {
		ok, err := dl.Unlock(context.Background())
		if err != nil {
			l.log.Warn("release idempotency lock", zap.String("key", dl.Key()), zap.Error(err))
			return
		}
		if !ok {
			l.log.Warn("idempotency lock expired before release", zap.String("key", dl.Key()))
		}
	}, nil
}
