package job

import (
	"context"
	"time"

	"bankcore/internal/config"
	"bankcore/internal/repository"

	"go.uber.org/zap"
)

// OutboxPurger deletes SENT outbox rows older than the retention window.
// PENDING and DEAD rows are never touched.
type OutboxPurger struct {
	outbox    repository.OutboxStore
	log       *zap.Logger
	stopCh    chan struct{}
	interval  time.Duration
	retention time.Duration
	now       func() time.Time
}

func NewOutboxPurger(outbox repository.OutboxStore, cfg config.BusinessConfig, log *zap.Logger) *OutboxPurger {
	return &OutboxPurger{
		outbox:    outbox,
		log:       log.Named("outbox_purger"),
		stopCh:    make(chan struct{}),
		interval:  cfg.PurgeInterval,
		retention: cfg.OutboxRetention,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (j *OutboxPurger) Start(ctx context.Context) {
	j.log.Info("outbox purger started", zap.Duration("retention", j.retention))

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			j.log.Info("context done, outbox purger exiting")
			return
		case <-j.stopCh:
			j.log.Info("outbox purger stopped")
			return
		case <-ticker.C:
			j.Purge(ctx)
		}
	}
}

func (j *OutboxPurger) Stop() {
	close(j.stopCh)
}

func (j *OutboxPurger) Purge(ctx context.Context) int64 {
	before := j.now().Add(-j.retention)
	n, err := j.outbox.PurgeSent(ctx, before)
	if err != nil {
		j.log.Error("purge sent outbox messages", zap.Error(err))
		return 0
	}
	if n > 0 {
		j.log.Info("purged sent outbox messages", zap.Int64("count", n), zap.Time("before", before))
	}
	return n
}
