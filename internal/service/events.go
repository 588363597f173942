package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"bankcore/internal/config"
	"bankcore/internal/infrastructure/audit"
	"bankcore/internal/model"
	"bankcore/internal/money"
	"bankcore/internal/repository"
	"bankcore/internal/reqscope"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Audit event names.
const (
	EventTransferSucceeded         = "TransferSucceeded"
	EventTransferFailed            = "TransferFailed"
	EventTransferInsufficientFunds = "TransferInsufficientFunds"
	EventTransferStorageError      = "TransferStorageError"
	EventTransferReplayed          = "TransferReplayed"
	EventAccountCreated            = "AccountCreated"
	EventAccountStatusChanged      = "AccountStatusChanged"
	EventBalanceOverridden         = "BalanceOverridden"
	EventBalanceOverrideRejected   = "BalanceOverrideRejected"
	EventReportViewed              = "ReportViewed"
	EventNotifySenderFailed        = "NotifySenderFailed"
	EventNotifyRecipientFailed     = "NotifyRecipientFailed"
	EventNotifyOwnerFailed         = "NotifyOwnerFailed"
)

type AuditEvent struct {
	Event    string
	Severity audit.Severity
	Message  string
	OwnerID  int64
	Metadata map[string]interface{}
}

// Auditor records audit events. Implementations never return errors: a
// failure to record is logged and swallowed.
type Auditor interface {
	AuditLog(ctx context.Context, scope *reqscope.Scope, ev AuditEvent)
}

// TransferFailure describes a rejected transfer for the origin owner.
type TransferFailure struct {
	OriginAccountID      int64
	DestinationAccountID int64
	Amount               string
	Kind                 model.TransactionKind
	Reason               string
}

// Notifier queues owner notifications. Like Auditor, it never fails the caller.
type Notifier interface {
	NotifyTransferSuccess(ctx context.Context, scope *reqscope.Scope, originOwnerID, destinationOwnerID int64, entry *model.Transaction)
	NotifyTransferFailure(ctx context.Context, scope *reqscope.Scope, originOwnerID int64, failure TransferFailure)
	NotifyAccountStatusChanged(ctx context.Context, scope *reqscope.Scope, account *model.Account, previous model.AccountStatus)
	NotifyAccountCreated(ctx context.Context, scope *reqscope.Scope, account *model.Account)
	NotifyBalanceAdjusted(ctx context.Context, scope *reqscope.Scope, account *model.Account, previous decimal.Decimal)
}

// EventSink implements Auditor and Notifier on top of the outbox. Rows are
// written outside any business transaction; OutboxSender delivers them.
type EventSink struct {
	outbox repository.OutboxStore
	topics config.TopicConfig
	log    *zap.Logger
	now    func() time.Time
}

func NewEventSink(outbox repository.OutboxStore, topics config.TopicConfig, log *zap.Logger) *EventSink {
	return &EventSink{
		outbox: outbox,
		topics: topics,
		log:    log.Named("events"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *EventSink) AuditLog(ctx context.Context, scope *reqscope.Scope, ev AuditEvent) {
	rec := &audit.Record{
		Event:      ev.Event,
		Severity:   ev.Severity,
		Message:    ev.Message,
		OwnerID:    ev.OwnerID,
		Metadata:   ev.Metadata,
		OccurredAt: s.now(),
	}
	if scope != nil {
		rec.CorrelationID = scope.CorrelationID
		rec.Endpoint = scope.Endpoint
		rec.ClientIP = scope.ClientIP
		if rec.OwnerID == 0 {
			rec.OwnerID = scope.RequesterID
		}
	}

	if err := s.enqueue(ctx, scope, model.OutboxChannelAudit, s.topics.Audit, ev.Event, rec); err != nil {
		// the audit path itself failed; the process log is all that is left
		s.log.Error("audit enqueue failed",
			append(scope.Fields(),
				zap.String("event", ev.Event),
				zap.String("severity", string(ev.Severity)),
				zap.String("message", ev.Message),
				zap.Error(err))...)
	}
}

func (s *EventSink) NotifyTransferSuccess(ctx context.Context, scope *reqscope.Scope, originOwnerID, destinationOwnerID int64, entry *model.Transaction) {
	tx := transactionPayload(entry)

	sender := &model.Notification{
		Event:       EventTransferSucceeded,
		Recipient:   model.NotificationRecipient{OwnerID: originOwnerID, Role: model.RecipientSender},
		Transaction: tx,
	}
	s.notify(ctx, scope, entry.Reference, sender, EventNotifySenderFailed)

	recipient := &model.Notification{
		Event:       EventTransferSucceeded,
		Recipient:   model.NotificationRecipient{OwnerID: destinationOwnerID, Role: model.RecipientRecipient},
		Transaction: tx,
	}
	s.notify(ctx, scope, entry.Reference, recipient, EventNotifyRecipientFailed)
}

func (s *EventSink) NotifyTransferFailure(ctx context.Context, scope *reqscope.Scope, originOwnerID int64, failure TransferFailure) {
	n := &model.Notification{
		Event:     EventTransferFailed,
		Recipient: model.NotificationRecipient{OwnerID: originOwnerID, Role: model.RecipientSender},
		Transaction: &model.NotificationTransaction{
			OriginAccountID:      failure.OriginAccountID,
			DestinationAccountID: failure.DestinationAccountID,
			Amount:               failure.Amount,
			Kind:                 string(failure.Kind),
		},
		Reason: failure.Reason,
	}
	s.notify(ctx, scope, fmt.Sprintf("account-%d", failure.OriginAccountID), n, EventNotifySenderFailed)
}

func (s *EventSink) NotifyAccountStatusChanged(ctx context.Context, scope *reqscope.Scope, account *model.Account, previous model.AccountStatus) {
	n := &model.Notification{
		Event:     EventAccountStatusChanged,
		Recipient: model.NotificationRecipient{OwnerID: account.OwnerID, Role: model.RecipientOwner},
		Account: &model.NotificationAccount{
			ID:             account.ID,
			Number:         account.Number,
			PreviousStatus: string(previous),
			Status:         string(account.Status),
		},
	}
	s.notify(ctx, scope, account.Number, n, EventNotifyOwnerFailed)
}

func (s *EventSink) NotifyAccountCreated(ctx context.Context, scope *reqscope.Scope, account *model.Account) {
	n := &model.Notification{
		Event:     EventAccountCreated,
		Recipient: model.NotificationRecipient{OwnerID: account.OwnerID, Role: model.RecipientOwner},
		Account: &model.NotificationAccount{
			ID:      account.ID,
			Number:  account.Number,
			Type:    string(account.Type),
			Status:  string(account.Status),
			Balance: money.Format(account.Balance),
		},
	}
	s.notify(ctx, scope, account.Number, n, EventNotifyOwnerFailed)
}

func (s *EventSink) NotifyBalanceAdjusted(ctx context.Context, scope *reqscope.Scope, account *model.Account, previous decimal.Decimal) {
	n := &model.Notification{
		Event:     EventBalanceOverridden,
		Recipient: model.NotificationRecipient{OwnerID: account.OwnerID, Role: model.RecipientOwner},
		Account: &model.NotificationAccount{
			ID:              account.ID,
			Number:          account.Number,
			Type:            string(account.Type),
			Status:          string(account.Status),
			PreviousBalance: money.Format(previous),
			Balance:         money.Format(account.Balance),
		},
	}
	s.notify(ctx, scope, account.Number, n, EventNotifyOwnerFailed)
}

func (s *EventSink) notify(ctx context.Context, scope *reqscope.Scope, key string, n *model.Notification, failureEvent string) {
	n.OccurredAt = s.now()
	if scope != nil {
		n.CorrelationID = scope.CorrelationID
	}

	err := s.enqueue(ctx, scope, model.OutboxChannelNotification, s.topics.Notification, key, n)
	if err == nil {
		return
	}
	s.AuditLog(ctx, scope, AuditEvent{
		Event:    failureEvent,
		Severity: audit.SeverityError,
		Message:  "could not queue notification",
		OwnerID:  n.Recipient.OwnerID,
		Metadata: map[string]interface{}{"notification": n.Event, "error": err.Error()},
	})
}

func (s *EventSink) enqueue(ctx context.Context, scope *reqscope.Scope, channel, topic, key string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", channel, err)
	}

	msg := &model.OutboxMessage{
		Channel:       channel,
		Topic:         topic,
		MessageKey:    key,
		Payload:       string(body),
		Status:        model.OutboxStatusPending,
		NextAttemptAt: s.now(),
	}
	if scope != nil {
		msg.CorrelationID = scope.CorrelationID
	}
	return s.outbox.Create(ctx, msg)
}

func transactionPayload(entry *model.Transaction) *model.NotificationTransaction {
	return &model.NotificationTransaction{
		ID:                   entry.ID,
		Reference:            entry.Reference,
		OriginAccountID:      entry.OriginAccountID,
		DestinationAccountID: entry.DestinationAccountID,
		Amount:               money.Format(entry.Amount),
		Kind:                 string(entry.Kind),
		Description:          entry.Description,
	}
}
