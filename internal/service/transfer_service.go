package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"bankcore/internal/apperr"
	"bankcore/internal/infrastructure/audit"
	"bankcore/internal/model"
	"bankcore/internal/money"
	"bankcore/internal/repository"
	"bankcore/internal/reqscope"
	"bankcore/pkg/idgen"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	MaxDescriptionLength    = 255
	MaxIdempotencyKeyLength = 64
)

type TransferRequest struct {
	RequesterID          int64
	OriginAccountID      int64
	DestinationAccountID int64
	Amount               decimal.Decimal
	Kind                 model.TransactionKind
	Description          string
	// IdempotencyKey is optional. A retry with the same key returns the
	// entry of the first successful attempt instead of moving money again.
	IdempotencyKey string
}

type TransferResult struct {
	Transaction *model.Transaction
	Replayed    bool
}

// TransferService is the money-transfer engine.
type TransferService struct {
	store    repository.Store
	locker   IdempotencyLocker
	auditor  Auditor
	notifier Notifier
	log      *zap.Logger
	now      func() time.Time
}

type TransferOption func(*TransferService)

// WithIdempotencyLocker serializes requests that share an idempotency key.
func WithIdempotencyLocker(l IdempotencyLocker) TransferOption {
	return func(s *TransferService) { s.locker = l }
}

func WithClock(now func() time.Time) TransferOption {
	return func(s *TransferService) { s.now = now }
}

func NewTransferService(store repository.Store, auditor Auditor, notifier Notifier, log *zap.Logger, opts ...TransferOption) *TransferService {
	s := &TransferService{
		store:    store,
		auditor:  auditor,
		notifier: notifier,
		log:      log.Named("transfer"),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Transfer moves req.Amount from the origin account, which must belong to
// req.RequesterID, to the destination account.
//
// Checks run in a fixed order: origin exists, destination exists, not the
// same account, origin active, destination active, amount positive and
// within MaxAmount, funds available, credited balance within MaxAmount. The first failing check decides the returned error kind. Both
// balance updates and the ledger insert commit together or not at all.
//
// Audit records and notifications are queued after commit; their failure is
// logged and never changes the result.
func (s *TransferService) Transfer(ctx context.Context, scope *reqscope.Scope, req *TransferRequest) (*TransferResult, error) {
	if req == nil {
		return nil, apperr.InvalidArgument("transfer request is required")
	}
	if scope == nil {
		scope = reqscope.New("", req.RequesterID)
	}
	if err := normalizeRequest(req); err != nil {
		return nil, err
	}

	if req.IdempotencyKey == "" {
		return s.execute(ctx, scope, req, nil)
	}

	key := scopedIdempotencyKey(req.RequesterID, req.IdempotencyKey)
	if res, err := s.replay(ctx, scope, req, key); res != nil || err != nil {
		return res, err
	}

	if s.locker != nil {
		release, err := s.locker.Acquire(ctx, req.RequesterID, req.IdempotencyKey, scope.CorrelationID)
		if err != nil {
			return nil, apperr.Storage("acquire idempotency lock", err)
		}
		defer release()

		// another holder may have finished while we waited
		if res, err := s.replay(ctx, scope, req, key); res != nil || err != nil {
			return res, err
		}
	}

	return s.execute(ctx, scope, req, &key)
}

func (s *TransferService) execute(ctx context.Context, scope *reqscope.Scope, req *TransferRequest, idempotencyKey *string) (*TransferResult, error) {
	log := s.log.With(scope.Fields()...)

	// Once the first row lock is taken the transfer runs to commit or
	// rollback; caller cancellation must not abort it halfway.
	txCtx := context.WithoutCancel(ctx)

	var (
		origin, destination *model.Account
		entry               *model.Transaction
	)
	amount, amountErr := transferAmount(req.Amount)

	err := s.store.Transaction(txCtx, func(tx repository.Repositories) error {
		var err error
		origin, destination, err = lockPair(txCtx, tx.Accounts(), req)
		if err != nil {
			return err
		}

		if origin.ID == destination.ID {
			return apperr.SameAccountTransfer()
		}
		if !origin.IsUsable() {
			return apperr.AccountFrozenOrInactive(apperr.SideOrigin)
		}
		if !destination.IsUsable() {
			return apperr.AccountFrozenOrInactive(apperr.SideDestination)
		}
		if amountErr != nil {
			return amountErr
		}
		if origin.Balance.LessThan(amount) {
			return apperr.InsufficientFunds()
		}

		originAfter := money.Normalize(origin.Balance.Sub(amount))
		destinationAfter := money.Normalize(destination.Balance.Add(amount))
		if !money.WithinLimit(destinationAfter) {
			return apperr.InvalidAmount("destination balance would exceed " + money.Format(money.MaxAmount))
		}

		if err := tx.Accounts().UpdateBalance(txCtx, origin.ID, originAfter); err != nil {
			return fmt.Errorf("debit origin %d: %w", origin.ID, err)
		}
		if err := tx.Accounts().UpdateBalance(txCtx, destination.ID, destinationAfter); err != nil {
			return fmt.Errorf("credit destination %d: %w", destination.ID, err)
		}

		entry = &model.Transaction{
			Reference:            idgen.GenerateTransferReference(),
			OriginAccountID:      origin.ID,
			DestinationAccountID: destination.ID,
			Amount:               amount,
			Kind:                 req.Kind,
			Status:               model.TransactionStatusCompleted,
			Description:          req.Description,
			IdempotencyKey:       idempotencyKey,
			CorrelationID:        scope.CorrelationID,
			CreatedAt:            s.now(),
		}
		if err := tx.Ledger().Append(txCtx, entry); err != nil {
			return fmt.Errorf("append ledger entry: %w", err)
		}
		return nil
	})

	if err != nil {
		return s.handleFailure(txCtx, scope, req, amount, origin, idempotencyKey, err)
	}

	log.Info("transfer completed",
		zap.Int64("transaction_id", entry.ID),
		zap.String("reference", entry.Reference),
		zap.Int64("origin_account_id", origin.ID),
		zap.Int64("destination_account_id", destination.ID),
		zap.String("amount", money.Format(amount)))

	s.auditor.AuditLog(txCtx, scope, AuditEvent{
		Event:    EventTransferSucceeded,
		Severity: audit.SeverityInfo,
		Message:  "transfer completed",
		OwnerID:  req.RequesterID,
		Metadata: map[string]interface{}{
			"transaction_id":         entry.ID,
			"reference":              entry.Reference,
			"origin_account_id":      origin.ID,
			"destination_account_id": destination.ID,
			"amount":                 money.Format(amount),
		},
	})
	s.notifier.NotifyTransferSuccess(txCtx, scope, origin.OwnerID, destination.OwnerID, entry)

	cp := *entry
	return &TransferResult{Transaction: &cp}, nil
}

func (s *TransferService) handleFailure(ctx context.Context, scope *reqscope.Scope, req *TransferRequest, amount decimal.Decimal,
	origin *model.Account, idempotencyKey *string, err error) (*TransferResult, error) {
	log := s.log.With(scope.Fields()...)

	// lost the race against a concurrent request carrying the same key
	if idempotencyKey != nil && errors.Is(err, repository.ErrDuplicateKey) {
		if res, replayErr := s.replay(ctx, scope, req, *idempotencyKey); res != nil || replayErr != nil {
			return res, replayErr
		}
	}

	metadata := map[string]interface{}{
		"origin_account_id":      req.OriginAccountID,
		"destination_account_id": req.DestinationAccountID,
		"amount":                 money.Format(amount),
	}

	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		log.Error("transfer failed", zap.Error(err))
		metadata["error"] = err.Error()
		s.auditor.AuditLog(ctx, scope, AuditEvent{
			Event:    EventTransferStorageError,
			Severity: audit.SeverityError,
			Message:  "transfer aborted by storage failure",
			OwnerID:  req.RequesterID,
			Metadata: metadata,
		})
		return nil, apperr.Storage("transfer", err)
	}

	metadata["reason"] = appErr.Kind.String()
	if appErr.Side != apperr.SideNone {
		metadata["side"] = string(appErr.Side)
	}

	if appErr.Kind == apperr.KindInsufficientFunds {
		metadata["balance"] = money.Format(origin.Balance)
		log.Warn("transfer rejected: insufficient funds",
			zap.Int64("origin_account_id", origin.ID),
			zap.String("balance", money.Format(origin.Balance)),
			zap.String("amount", money.Format(amount)))
		s.auditor.AuditLog(ctx, scope, AuditEvent{
			Event:    EventTransferInsufficientFunds,
			Severity: audit.SeverityWarning,
			Message:  "transfer rejected: insufficient funds",
			OwnerID:  req.RequesterID,
			Metadata: metadata,
		})
		s.notifier.NotifyTransferFailure(ctx, scope, origin.OwnerID, TransferFailure{
			OriginAccountID:      req.OriginAccountID,
			DestinationAccountID: req.DestinationAccountID,
			Amount:               money.Format(amount),
			Kind:                 req.Kind,
			Reason:               appErr.Kind.String(),
		})
		return nil, err
	}

	log.Info("transfer rejected", zap.String("reason", appErr.Error()))
	s.auditor.AuditLog(ctx, scope, AuditEvent{
		Event:    EventTransferFailed,
		Severity: audit.SeverityWarning,
		Message:  "transfer rejected: " + appErr.Error(),
		OwnerID:  req.RequesterID,
		Metadata: metadata,
	})
	return nil, err
}

// replay returns the stored entry for key, nil when the key is unused, or
// IdempotencyConflict when the key was used for a different transfer.
func (s *TransferService) replay(ctx context.Context, scope *reqscope.Scope, req *TransferRequest, key string) (*TransferResult, error) {
	existing, err := s.store.Ledger().GetByIdempotencyKey(ctx, key)
	if err != nil {
		return nil, apperr.Storage("look up idempotency key", err)
	}
	if existing == nil {
		return nil, nil
	}

	amount, amountErr := transferAmount(req.Amount)
	if amountErr != nil ||
		existing.OriginAccountID != req.OriginAccountID ||
		existing.DestinationAccountID != req.DestinationAccountID ||
		!existing.Amount.Equal(amount) ||
		existing.Kind != req.Kind ||
		existing.Description != req.Description {
		return nil, apperr.New(apperr.KindIdempotencyConflict, apperr.SideNone,
			"idempotency key was already used for a different transfer")
	}

	s.log.Info("transfer replayed",
		append(scope.Fields(),
			zap.Int64("transaction_id", existing.ID),
			zap.String("reference", existing.Reference))...)
	s.auditor.AuditLog(ctx, scope, AuditEvent{
		Event:    EventTransferReplayed,
		Severity: audit.SeverityInfo,
		Message:  "duplicate request answered from ledger",
		OwnerID:  req.RequesterID,
		Metadata: map[string]interface{}{"transaction_id": existing.ID},
	})
	return &TransferResult{Transaction: existing, Replayed: true}, nil
}

// lockPair locks origin and destination in ascending id order, whatever
// their roles, so two opposite transfers between the same accounts cannot
// deadlock. Both lookups finish before any error is reported, keeping origin
// errors ahead of destination errors.
func lockPair(ctx context.Context, accounts repository.AccountStore, req *TransferRequest) (*model.Account, *model.Account, error) {
	originFilter := repository.AccountFilter{ID: req.OriginAccountID, OwnerID: req.RequesterID}
	destinationFilter := repository.AccountFilter{ID: req.DestinationAccountID}

	if originFilter.ID == destinationFilter.ID {
		origin, err := accounts.LockForUpdate(ctx, originFilter)
		if err != nil {
			return nil, nil, lockError(err, apperr.SideOrigin)
		}
		return origin, origin, nil
	}

	var (
		origin, destination       *model.Account
		originErr, destinationErr error
	)
	lockOrigin := func() { origin, originErr = accounts.LockForUpdate(ctx, originFilter) }
	lockDestination := func() { destination, destinationErr = accounts.LockForUpdate(ctx, destinationFilter) }

	first, second := lockOrigin, lockDestination
	if destinationFilter.ID < originFilter.ID {
		first, second = lockDestination, lockOrigin
	}

	first()
	if isInfraError(originErr) {
		return nil, nil, lockError(originErr, apperr.SideOrigin)
	}
	if isInfraError(destinationErr) {
		return nil, nil, lockError(destinationErr, apperr.SideDestination)
	}
	second()

	if originErr != nil {
		return nil, nil, lockError(originErr, apperr.SideOrigin)
	}
	if destinationErr != nil {
		return nil, nil, lockError(destinationErr, apperr.SideDestination)
	}
	return origin, destination, nil
}

// transferAmount normalizes a requested amount. The error, if any, is the
// InvalidAmount the engine reports once the account checks have passed; the
// returned amount is then zero.
func transferAmount(d decimal.Decimal) (decimal.Decimal, error) {
	if !money.Bounded(d) {
		return money.Zero, apperr.InvalidAmount("amount out of range")
	}
	amount := money.Normalize(d)
	if !amount.IsPositive() {
		return amount, apperr.InvalidAmount("amount must be greater than zero")
	}
	if !money.WithinLimit(amount) {
		return money.Zero, apperr.InvalidAmount("amount exceeds " + money.Format(money.MaxAmount))
	}
	return amount, nil
}

func isInfraError(err error) bool {
	return err != nil && !errors.Is(err, repository.ErrAccountNotFound)
}

func lockError(err error, side apperr.Side) error {
	if errors.Is(err, repository.ErrAccountNotFound) {
		return apperr.AccountNotFound(side)
	}
	return fmt.Errorf("lock %s account: %w", side, err)
}

func normalizeRequest(req *TransferRequest) error {
	if req.Kind == "" {
		req.Kind = model.TransactionKindTransfer
	}
	if !req.Kind.Valid() {
		return apperr.InvalidArgument(fmt.Sprintf("unknown transaction kind %q", req.Kind))
	}

	req.Description = strings.TrimSpace(req.Description)
	if utf8.RuneCountInString(req.Description) > MaxDescriptionLength {
		return apperr.InvalidArgument(fmt.Sprintf("description exceeds %d characters", MaxDescriptionLength))
	}

	req.IdempotencyKey = strings.TrimSpace(req.IdempotencyKey)
	if len(req.IdempotencyKey) > MaxIdempotencyKeyLength {
		return apperr.InvalidArgument(fmt.Sprintf("idempotency key exceeds %d characters", MaxIdempotencyKeyLength))
	}
	return nil
}

func scopedIdempotencyKey(ownerID int64, key string) string {
	return fmt.Sprintf("%d:%s", ownerID, key)
}
