package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"bankcore/internal/apperr"
	"bankcore/internal/model"
	"bankcore/internal/money"
	"bankcore/internal/service"
	"bankcore/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type Handler struct {
	transfers *service.TransferService
	accounts  *service.AccountService
	history   *service.HistoryService
}

func NewHandler(transfers *service.TransferService, accounts *service.AccountService, history *service.HistoryService) *Handler {
	return &Handler{
		transfers: transfers,
		accounts:  accounts,
		history:   history,
	}
}

// TransactionDTO is a ledger entry as returned to clients.
type TransactionDTO struct {
	ID                   int64     `json:"id"`
	Reference            string    `json:"reference"`
	OriginAccountID      int64     `json:"origin_account_id"`
	DestinationAccountID int64     `json:"destination_account_id"`
	Amount               string    `json:"amount"`
	Kind                 string    `json:"kind"`
	Status               string    `json:"status"`
	Description          string    `json:"description,omitempty"`
	Timestamp            time.Time `json:"timestamp"`
}

func toTransactionDTO(t *model.Transaction) TransactionDTO {
	return TransactionDTO{
		ID:                   t.ID,
		Reference:            t.Reference,
		OriginAccountID:      t.OriginAccountID,
		DestinationAccountID: t.DestinationAccountID,
		Amount:               money.Format(t.Amount),
		Kind:                 string(t.Kind),
		Status:               string(t.Status),
		Description:          t.Description,
		Timestamp:            t.CreatedAt,
	}
}

func toTransactionDTOs(entries []*model.Transaction) []TransactionDTO {
	out := make([]TransactionDTO, 0, len(entries))
	for _, e := range entries {
		out = append(out, toTransactionDTO(e))
	}
	return out
}

type AccountDTO struct {
	ID        int64     `json:"id"`
	Number    string    `json:"number"`
	Type      string    `json:"type"`
	Balance   string    `json:"balance"`
	Status    string    `json:"status"`
	OwnerID   int64     `json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
}

func toAccountDTO(a *model.Account) AccountDTO {
	return AccountDTO{
		ID:        a.ID,
		Number:    a.Number,
		Type:      string(a.Type),
		Balance:   money.Format(a.Balance),
		Status:    string(a.Status),
		OwnerID:   a.OwnerID,
		CreatedAt: a.CreatedAt,
	}
}

// ============================================================
// Transfers
// ============================================================

// TransferRequest accepts the amount as a JSON number or numeric string.
type TransferRequest struct {
	OriginAccountID      int64       `json:"origin_account_id" binding:"required"`
	DestinationAccountID int64       `json:"destination_account_id" binding:"required"`
	Amount               json.Number `json:"amount" binding:"required,decimal"`
	Kind                 string      `json:"kind"`
	Description          string      `json:"description"`
}

// CreateTransfer executes a transfer from one of the requester's accounts.
// POST /api/v1/transfers
//
// A repeated Idempotency-Key answers 200 with the original entry and the
// Idempotent-Replayed header instead of 201.
func (h *Handler) CreateTransfer(c *gin.Context) {
	var req TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}
	amount, ok := parseAmount(c, req.Amount, "amount")
	if !ok {
		return
	}

	scope := scopeFrom(c)
	result, err := h.transfers.Transfer(c.Request.Context(), scope, &service.TransferRequest{
		RequesterID:          scope.RequesterID,
		OriginAccountID:      req.OriginAccountID,
		DestinationAccountID: req.DestinationAccountID,
		Amount:               amount,
		Kind:                 model.TransactionKind(req.Kind),
		Description:          req.Description,
		IdempotencyKey:       c.GetHeader(HeaderIdempotencyKey),
	})
	if err != nil {
		response.Fail(c, err)
		return
	}

	dto := toTransactionDTO(result.Transaction)
	if result.Replayed {
		c.Header("Idempotent-Replayed", "true")
		response.Success(c, dto)
		return
	}
	response.Created(c, dto)
}

// TransferHistory lists the requester's ledger entries, newest first.
// GET /api/v1/transfers/history?skip=0&limit=50
func (h *Handler) TransferHistory(c *gin.Context) {
	skip, err := strconv.Atoi(c.DefaultQuery("skip", "0"))
	if err != nil {
		response.ParamError(c, "skip must be an integer")
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "0"))
	if err != nil {
		response.ParamError(c, "limit must be an integer")
		return
	}

	entries, err := h.history.HistoryForOwner(c.Request.Context(), scopeFrom(c).RequesterID, skip, limit)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, gin.H{
		"list":  toTransactionDTOs(entries),
		"skip":  skip,
		"limit": limit,
	})
}

// ============================================================
// Accounts
// ============================================================

// ListAccounts GET /api/v1/accounts
func (h *Handler) ListAccounts(c *gin.Context) {
	accounts, err := h.accounts.ListForOwner(c.Request.Context(), scopeFrom(c).RequesterID)
	if err != nil {
		response.Fail(c, err)
		return
	}
	out := make([]AccountDTO, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, toAccountDTO(a))
	}
	response.Success(c, out)
}

type CreateAccountRequest struct {
	Type string `json:"type" binding:"required,oneof=savings checking payroll"`
}

// CreateAccount POST /api/v1/accounts
func (h *Handler) CreateAccount(c *gin.Context) {
	var req CreateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	scope := scopeFrom(c)
	account, err := h.accounts.Create(c.Request.Context(), scope, scope.RequesterID, model.AccountType(req.Type))
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Created(c, toAccountDTO(account))
}

// Health reports liveness plus the result of each dependency check.
func Health(checks map[string]HealthCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := http.StatusOK
		deps := make(gin.H, len(checks))
		for name, check := range checks {
			if err := check(c.Request.Context()); err != nil {
				deps[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			deps[name] = "ok"
		}
		overall := "ok"
		if status != http.StatusOK {
			overall = "degraded"
		}
		c.JSON(status, gin.H{"status": overall, "dependencies": deps})
	}
}

// parseAmount reads a monetary field without rounding it; the services
// normalize. Values too large or too precise to be money answer InvalidAmount.
func parseAmount(c *gin.Context, raw json.Number, field string) (decimal.Decimal, bool) {
	d, err := money.ParseExact(raw.String())
	if errors.Is(err, money.ErrOutOfRange) {
		response.Fail(c, apperr.InvalidAmount(field+" out of range"))
		return decimal.Zero, false
	}
	if err != nil {
		response.ParamError(c, "invalid "+field)
		return decimal.Zero, false
	}
	return d, true
}
