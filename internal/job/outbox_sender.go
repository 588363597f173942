package job

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"bankcore/internal/config"
	"bankcore/internal/infrastructure/audit"
	"bankcore/internal/model"
	"bankcore/internal/repository"

	"go.uber.org/zap"
)

// Publisher is the notification transport. mq.Publisher satisfies it.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, value []byte, headers map[string]string) error
}

// LogPublisher writes notifications to the process log. Used when Kafka is
// disabled.
type LogPublisher struct {
	log *zap.Logger
}

func NewLogPublisher(log *zap.Logger) *LogPublisher {
	return &LogPublisher{log: log.Named("notifications")}
}

func (p *LogPublisher) Publish(ctx context.Context, topic, key string, value []byte, headers map[string]string) error {
	p.log.Info("notification",
		zap.String("topic", topic),
		zap.String("key", key),
		zap.String("correlation_id", headers["correlation_id"]),
		zap.ByteString("payload", value))
	return nil
}

// OutboxSender delivers pending outbox rows. Notifications go to the
// publisher, audit records to the audit writer. A failed row is retried with
// exponential backoff and becomes DEAD after MaxRetryCount attempts.
type OutboxSender struct {
	outbox    repository.OutboxStore
	owners    repository.OwnerStore
	publisher Publisher
	audit     audit.Writer
	log       *zap.Logger

	stopCh     chan struct{}
	interval   time.Duration
	batchSize  int
	maxRetries int
	baseDelay  time.Duration
	now        func() time.Time
}

func NewOutboxSender(outbox repository.OutboxStore, owners repository.OwnerStore, publisher Publisher, writer audit.Writer,
	cfg config.BusinessConfig, log *zap.Logger) *OutboxSender {
	return &OutboxSender{
		outbox:     outbox,
		owners:     owners,
		publisher:  publisher,
		audit:      writer,
		log:        log.Named("outbox_sender"),
		stopCh:     make(chan struct{}),
		interval:   cfg.OutboxInterval,
		batchSize:  cfg.OutboxBatchSize,
		maxRetries: cfg.MaxRetryCount,
		baseDelay:  cfg.RetryBaseDelay,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *OutboxSender) Start(ctx context.Context) {
	s.log.Info("outbox sender started", zap.Duration("interval", s.interval))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("context done, outbox sender exiting")
			return
		case <-s.stopCh:
			s.log.Info("outbox sender stopped")
			return
		case <-ticker.C:
			s.ProcessPending(ctx)
		}
	}
}

func (s *OutboxSender) Stop() {
	close(s.stopCh)
}

// ProcessPending delivers one batch of due rows and reports how many were sent.
func (s *OutboxSender) ProcessPending(ctx context.Context) int {
	messages, err := s.outbox.GetDue(ctx, s.now(), s.batchSize)
	if err != nil {
		s.log.Error("load due outbox messages", zap.Error(err))
		return 0
	}

	sent := 0
	for _, msg := range messages {
		if s.deliver(ctx, msg) {
			sent++
		}
	}
	return sent
}

func (s *OutboxSender) deliver(ctx context.Context, msg *model.OutboxMessage) bool {
	log := s.log.With(
		zap.Int64("outbox_id", msg.ID),
		zap.String("channel", msg.Channel),
		zap.String("correlation_id", msg.CorrelationID))

	err := s.send(ctx, msg)
	if err == nil {
		if err := s.outbox.MarkSent(ctx, msg.ID); err != nil {
			log.Error("mark outbox message sent", zap.Error(err))
			return false
		}
		log.Debug("outbox message sent", zap.String("topic", msg.Topic), zap.String("key", msg.MessageKey))
		return true
	}

	attempt := msg.RetryCount + 1
	if attempt >= s.maxRetries || errors.Is(err, errUndeliverable) {
		if markErr := s.outbox.MarkDead(ctx, msg.ID, err.Error()); markErr != nil {
			log.Error("mark outbox message dead", zap.Error(markErr))
			return false
		}
		log.Error("outbox message moved to dead letter",
			zap.Int("attempts", attempt),
			zap.String("topic", msg.Topic),
			zap.String("payload", msg.Payload),
			zap.Error(err))
		return false
	}

	next := s.now().Add(s.backoff(msg.RetryCount))
	if schedErr := s.outbox.ScheduleRetry(ctx, msg.ID, next, err.Error()); schedErr != nil {
		log.Error("schedule outbox retry", zap.Error(schedErr))
		return false
	}
	log.Warn("outbox delivery failed, retry scheduled",
		zap.Int("attempt", attempt),
		zap.Time("next_attempt_at", next),
		zap.Error(err))
	return false
}

// errUndeliverable marks payloads that no retry can fix.
var errUndeliverable = errors.New("undeliverable payload")

func (s *OutboxSender) send(ctx context.Context, msg *model.OutboxMessage) error {
	switch msg.Channel {
	case model.OutboxChannelNotification:
		return s.sendNotification(ctx, msg)
	case model.OutboxChannelAudit:
		var rec audit.Record
		if err := json.Unmarshal([]byte(msg.Payload), &rec); err != nil {
			return fmt.Errorf("%w: decode audit record: %v", errUndeliverable, err)
		}
		return s.audit.Write(ctx, &rec)
	default:
		return fmt.Errorf("%w: unknown channel %q", errUndeliverable, msg.Channel)
	}
}

// sendNotification fills in the recipient's contact details before publishing.
func (s *OutboxSender) sendNotification(ctx context.Context, msg *model.OutboxMessage) error {
	var n model.Notification
	if err := json.Unmarshal([]byte(msg.Payload), &n); err != nil {
		return fmt.Errorf("%w: decode notification: %v", errUndeliverable, err)
	}

	owner, err := s.owners.Get(ctx, n.Recipient.OwnerID)
	switch {
	case errors.Is(err, repository.ErrOwnerNotFound):
		return fmt.Errorf("%w: owner %d not found", errUndeliverable, n.Recipient.OwnerID)
	case err != nil:
		return fmt.Errorf("load owner %d: %w", n.Recipient.OwnerID, err)
	}
	n.Recipient.Email = owner.Email
	n.Recipient.DisplayName = owner.DisplayName

	body, err := json.Marshal(&n)
	if err != nil {
		return fmt.Errorf("%w: encode notification: %v", errUndeliverable, err)
	}
	headers := map[string]string{
		"correlation_id": msg.CorrelationID,
		"event":          n.Event,
	}
	return s.publisher.Publish(ctx, msg.Topic, msg.MessageKey, body, headers)
}

// backoff returns baseDelay * 2^retries, capped at one hour.
func (s *OutboxSender) backoff(retries int) time.Duration {
	const maxDelay = time.Hour
	d := s.baseDelay
	if d <= 0 {
		d = time.Second
	}
	for i := 0; i < retries; i++ {
		d *= 2
		if d >= maxDelay {
			return maxDelay
		}
	}
	return d
}
