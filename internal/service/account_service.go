package service

import (
	"context"
	"errors"
	"fmt"

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

const maxNumberAttempts = 20

type AccountService struct {
	store    repository.Store
	auditor  Auditor
	notifier Notifier
	log      *zap.Logger
	// numbers is swapped in tests to force collisions
	numbers func() string
}

func NewAccountService(store repository.Store, auditor Auditor, notifier Notifier, log *zap.Logger) *AccountService {
	return &AccountService{
		store:    store,
		auditor:  auditor,
		notifier: notifier,
		log:      log.Named("account"),
		numbers:  idgen.GenerateAccountNumber,
	}
}

// Create opens a new account of accountType for ownerID with a zero
// balance. An owner holds at most one non-inactive account per type.
func (s *AccountService) Create(ctx context.Context, scope *reqscope.Scope, ownerID int64, accountType model.AccountType) (*model.Account, error) {
	if !accountType.Valid() {
		return nil, apperr.InvalidArgument(fmt.Sprintf("unknown account type %q", accountType))
	}

	var created *model.Account
	err := s.store.Transaction(ctx, func(tx repository.Repositories) error {
		// serializes concurrent creations for the same owner
		if _, err := tx.Owners().LockForUpdate(ctx, ownerID); err != nil {
			if errors.Is(err, repository.ErrOwnerNotFound) {
				return apperr.New(apperr.KindOwnerNotFound, apperr.SideNone, "owner not found")
			}
			return fmt.Errorf("lock owner %d: %w", ownerID, err)
		}

		exists, err := tx.Accounts().ExistsOpenOfType(ctx, ownerID, accountType)
		if err != nil {
			return fmt.Errorf("check existing %s account: %w", accountType, err)
		}
		if exists {
			return apperr.New(apperr.KindDuplicateAccountType, apperr.SideNone,
				fmt.Sprintf("owner already has an open %s account", accountType))
		}

		for attempt := 0; attempt < maxNumberAttempts; attempt++ {
			number := s.numbers()
			taken, err := tx.Accounts().NumberExists(ctx, number)
			if err != nil {
				return fmt.Errorf("check account number: %w", err)
			}
			if taken {
				continue
			}

			account := &model.Account{
				Number:  number,
				Type:    accountType,
				Balance: decimal.Zero,
				Status:  model.AccountStatusActive,
				OwnerID: ownerID,
			}
			err = tx.Accounts().Create(ctx, account)
			if errors.Is(err, repository.ErrDuplicateKey) {
				continue
			}
			if err != nil {
				return fmt.Errorf("insert account: %w", err)
			}
			created = account
			return nil
		}
		return fmt.Errorf("no free account number after %d attempts", maxNumberAttempts)
	})
	if err != nil {
		return nil, s.storageOr(scope, "create account", err)
	}

	s.log.Info("account created", append(scope.Fields(),
		zap.Int64("account_id", created.ID),
		zap.String("number", created.Number),
		zap.String("type", string(created.Type)))...)
	bg := context.WithoutCancel(ctx)
	s.auditor.AuditLog(bg, scope, AuditEvent{
		Event:    EventAccountCreated,
		Severity: audit.SeverityInfo,
		Message:  "account created",
		OwnerID:  ownerID,
		Metadata: map[string]interface{}{
			"account_id": created.ID,
			"number":     created.Number,
			"type":       string(created.Type),
		},
	})
	s.notifier.NotifyAccountCreated(bg, scope, created)
	return created, nil
}

// ListForOwner returns the owner's accounts ordered by id.
func (s *AccountService) ListForOwner(ctx context.Context, ownerID int64) ([]*model.Account, error) {
	accounts, err := s.store.Accounts().FindByOwner(ctx, ownerID)
	if err != nil {
		return nil, apperr.Storage("list accounts", err)
	}
	if len(accounts) == 0 {
		return nil, apperr.AccountNotFound(apperr.SideNone)
	}
	return accounts, nil
}

// ChangeStatus moves an account along the status state machine.
func (s *AccountService) ChangeStatus(ctx context.Context, scope *reqscope.Scope, accountID int64, status model.AccountStatus) (*model.Account, error) {
	if !status.Valid() {
		return nil, apperr.InvalidArgument(fmt.Sprintf("unknown account status %q", status))
	}

	var (
		updated  *model.Account
		previous model.AccountStatus
	)
	err := s.store.Transaction(ctx, func(tx repository.Repositories) error {
		account, err := tx.Accounts().LockForUpdate(ctx, repository.AccountFilter{ID: accountID})
		if err != nil {
			return lockError(err, apperr.SideNone)
		}
		if !account.Status.CanTransitionTo(status) {
			return apperr.New(apperr.KindInvalidStatusTransition, apperr.SideNone,
				fmt.Sprintf("cannot change status from %s to %s", account.Status, status))
		}
		if err := tx.Accounts().UpdateStatus(ctx, accountID, status); err != nil {
			return fmt.Errorf("update status: %w", err)
		}
		previous = account.Status
		account.Status = status
		updated = account
		return nil
	})
	if err != nil {
		return nil, s.storageOr(scope, "change account status", err)
	}

	severity := audit.SeverityInfo
	restricted := status == model.AccountStatusFrozen || status == model.AccountStatusInactive
	if restricted {
		severity = audit.SeverityWarning
	}

	bg := context.WithoutCancel(ctx)
	s.log.Info("account status changed", append(scope.Fields(),
		zap.Int64("account_id", accountID),
		zap.String("from", string(previous)),
		zap.String("to", string(status)))...)
	s.auditor.AuditLog(bg, scope, AuditEvent{
		Event:    EventAccountStatusChanged,
		Severity: severity,
		Message:  fmt.Sprintf("account status changed from %s to %s", previous, status),
		OwnerID:  updated.OwnerID,
		Metadata: map[string]interface{}{
			"account_id": accountID,
			"from":       string(previous),
			"to":         string(status),
		},
	})
	if restricted {
		s.notifier.NotifyAccountStatusChanged(bg, scope, updated, previous)
	}
	return updated, nil
}

// OverrideBalance sets an account balance directly. Administrative only;
// no ledger entry is written. The sign and range are checked on the value as
// given, before rounding, and a rejected value is audited.
func (s *AccountService) OverrideBalance(ctx context.Context, scope *reqscope.Scope, accountID int64, balance decimal.Decimal) (*model.Account, error) {
	var reason string
	switch {
	case !money.Bounded(balance):
		reason = "balance out of range"
	case balance.IsNegative():
		reason = "balance must not be negative"
	case !money.WithinLimit(money.Normalize(balance)):
		reason = "balance exceeds " + money.Format(money.MaxAmount)
	}
	if reason != "" {
		s.rejectOverride(ctx, scope, accountID, balance, reason)
		return nil, apperr.InvalidAmount(reason)
	}
	balance = money.Normalize(balance)

	var (
		updated *model.Account
		before  decimal.Decimal
	)
	err := s.store.Transaction(ctx, func(tx repository.Repositories) error {
		account, err := tx.Accounts().LockForUpdate(ctx, repository.AccountFilter{ID: accountID})
		if err != nil {
			return lockError(err, apperr.SideNone)
		}
		if err := tx.Accounts().UpdateBalance(ctx, accountID, balance); err != nil {
			return fmt.Errorf("update balance: %w", err)
		}
		before = account.Balance
		account.Balance = balance
		updated = account
		return nil
	})
	if err != nil {
		return nil, s.storageOr(scope, "override balance", err)
	}

	s.log.Warn("balance overridden", append(scope.Fields(),
		zap.Int64("account_id", accountID),
		zap.String("before", money.Format(before)),
		zap.String("after", money.Format(balance)))...)
	bg := context.WithoutCancel(ctx)
	s.auditor.AuditLog(bg, scope, AuditEvent{
		Event:    EventBalanceOverridden,
		Severity: audit.SeverityWarning,
		Message:  "balance overridden by administrator",
		OwnerID:  updated.OwnerID,
		Metadata: map[string]interface{}{
			"account_id": accountID,
			"before":     money.Format(before),
			"after":      money.Format(balance),
		},
	})
	s.notifier.NotifyBalanceAdjusted(bg, scope, updated, before)
	return updated, nil
}

func (s *AccountService) rejectOverride(ctx context.Context, scope *reqscope.Scope, accountID int64, requested decimal.Decimal, reason string) {
	// an unbounded value is only described, never formatted
	value := "out of range"
	if money.Bounded(requested) {
		value = requested.String()
	}
	s.log.Warn("balance override rejected", append(scope.Fields(),
		zap.Int64("account_id", accountID),
		zap.String("requested", value),
		zap.String("reason", reason))...)
	s.auditor.AuditLog(context.WithoutCancel(ctx), scope, AuditEvent{
		Event:    EventBalanceOverrideRejected,
		Severity: audit.SeverityWarning,
		Message:  "balance override rejected: " + reason,
		Metadata: map[string]interface{}{
			"account_id": accountID,
			"requested":  value,
		},
	})
}

// storageOr passes typed errors through and wraps everything else as StorageError.
func (s *AccountService) storageOr(scope *reqscope.Scope, op string, err error) error {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return err
	}
	s.log.Error(op+" failed", append(scope.Fields(), zap.Error(err))...)
	return apperr.Storage(op, err)
}
