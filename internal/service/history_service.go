package service

import (
	"context"
	"fmt"
	"time"

	"bankcore/internal/apperr"
	"bankcore/internal/config"
	"bankcore/internal/infrastructure/audit"
	"bankcore/internal/model"
	"bankcore/internal/repository"
	"bankcore/internal/reqscope"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	defaultTopOwners = 10
	maxTopOwners     = 100
)

// Report names recorded in ReportViewed audit events.
const (
	ReportTransactionsInRange = "transactions_in_range"
	ReportAccountsByStatus    = "accounts_by_status"
	ReportBalancesByType      = "balances_by_type"
	ReportTopOwners           = "top_owners"
	ReportOwnersByActive      = "owners_by_active"
)

// HistoryService answers read-only ledger and account queries. Every admin
// report it serves is audited with the requester's scope.
type HistoryService struct {
	store        repository.Store
	auditor      Auditor
	log          *zap.Logger
	defaultLimit int
	maxLimit     int
}

func NewHistoryService(store repository.Store, auditor Auditor, cfg config.BusinessConfig, log *zap.Logger) *HistoryService {
	return &HistoryService{
		store:        store,
		auditor:      auditor,
		log:          log.Named("history"),
		defaultLimit: cfg.HistoryDefaultLimit,
		maxLimit:     cfg.HistoryMaxLimit,
	}
}

// HistoryForOwner pages through the entries touching any of the owner's
// accounts, newest first. A zero limit selects the default page size.
func (s *HistoryService) HistoryForOwner(ctx context.Context, ownerID int64, skip, limit int) ([]*model.Transaction, error) {
	if limit == 0 {
		limit = s.defaultLimit
	}
	if skip < 0 {
		return nil, apperr.InvalidArgument("skip must not be negative")
	}
	if limit < 0 || limit > s.maxLimit {
		return nil, apperr.InvalidArgument(fmt.Sprintf("limit must be between 1 and %d", s.maxLimit))
	}

	entries, err := s.store.Ledger().HistoryForOwner(ctx, ownerID, skip, limit)
	if err != nil {
		return nil, apperr.Storage("query history", err)
	}
	return entries, nil
}

// RangeQuery returns every entry with from <= timestamp <= to, newest first.
func (s *HistoryService) RangeQuery(ctx context.Context, scope *reqscope.Scope, from, to time.Time) ([]*model.Transaction, error) {
	if from.After(to) {
		return nil, apperr.InvalidArgument("from must not be after to")
	}
	entries, err := s.store.Ledger().RangeQuery(ctx, from, to)
	if err != nil {
		return nil, apperr.Storage("query range", err)
	}
	s.viewed(ctx, scope, ReportTransactionsInRange, map[string]interface{}{
		"from":    from.Format(time.RFC3339),
		"to":      to.Format(time.RFC3339),
		"entries": len(entries),
	})
	return entries, nil
}

func (s *HistoryService) AccountsByStatus(ctx context.Context, scope *reqscope.Scope) (map[model.AccountStatus]int64, error) {
	counts, err := s.store.Accounts().CountByStatus(ctx)
	if err != nil {
		return nil, apperr.Storage("count accounts by status", err)
	}
	out := make(map[model.AccountStatus]int64, len(model.AccountStatuses))
	for _, st := range model.AccountStatuses {
		out[st] = counts[st]
	}
	s.viewed(ctx, scope, ReportAccountsByStatus, nil)
	return out, nil
}

func (s *HistoryService) BalancesByType(ctx context.Context, scope *reqscope.Scope) (map[model.AccountType]decimal.Decimal, error) {
	totals, err := s.store.Accounts().SumBalanceByType(ctx)
	if err != nil {
		return nil, apperr.Storage("sum balances by type", err)
	}
	out := make(map[model.AccountType]decimal.Decimal, len(model.AccountTypes))
	for _, t := range model.AccountTypes {
		out[t] = totals[t]
	}
	s.viewed(ctx, scope, ReportBalancesByType, nil)
	return out, nil
}

func (s *HistoryService) TopOwners(ctx context.Context, scope *reqscope.Scope, limit int) ([]model.OwnerActivity, error) {
	if limit == 0 {
		limit = defaultTopOwners
	}
	if limit < 0 || limit > maxTopOwners {
		return nil, apperr.InvalidArgument(fmt.Sprintf("limit must be between 1 and %d", maxTopOwners))
	}
	rows, err := s.store.Ledger().TopOwners(ctx, limit)
	if err != nil {
		return nil, apperr.Storage("rank owners", err)
	}
	s.viewed(ctx, scope, ReportTopOwners, map[string]interface{}{"limit": limit})
	return rows, nil
}

// OwnersByActive counts active and inactive owners.
func (s *HistoryService) OwnersByActive(ctx context.Context, scope *reqscope.Scope) (*model.OwnerCounts, error) {
	active, inactive, err := s.store.Owners().CountByActive(ctx)
	if err != nil {
		return nil, apperr.Storage("count owners", err)
	}
	s.viewed(ctx, scope, ReportOwnersByActive, nil)
	return &model.OwnerCounts{Active: active, Inactive: inactive}, nil
}

func (s *HistoryService) viewed(ctx context.Context, scope *reqscope.Scope, report string, metadata map[string]interface{}) {
	if metadata == nil {
		metadata = make(map[string]interface{}, 1)
	}
	metadata["report"] = report

	s.log.Debug("report served", append(scope.Fields(), zap.String("report", report))...)
	s.auditor.AuditLog(context.WithoutCancel(ctx), scope, AuditEvent{
		Event:    EventReportViewed,
		Severity: audit.SeverityInfo,
		Message:  "admin report viewed: " + report,
		Metadata: metadata,
	})
}
