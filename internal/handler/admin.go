package handler

import (
	"encoding/json"
	"strconv"
	"time"

	"bankcore/internal/model"
	"bankcore/internal/money"
	"bankcore/pkg/response"

	"github.com/gin-gonic/gin"
)

// ============================================================
// Admin: account maintenance
// ============================================================

type ChangeStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=active inactive frozen"`
}

// ChangeAccountStatus PUT /api/v1/admin/accounts/:id/status
func (h *Handler) ChangeAccountStatus(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req ChangeStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	account, err := h.accounts.ChangeStatus(c.Request.Context(), scopeFrom(c), id, model.AccountStatus(req.Status))
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, toAccountDTO(account))
}

type OverrideBalanceRequest struct {
	Balance json.Number `json:"balance" binding:"required,decimal"`
}

// OverrideBalance PUT /api/v1/admin/accounts/:id/balance
func (h *Handler) OverrideBalance(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req OverrideBalanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}
	balance, ok := parseAmount(c, req.Balance, "balance")
	if !ok {
		return
	}

	account, err := h.accounts.OverrideBalance(c.Request.Context(), scopeFrom(c), id, balance)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, toAccountDTO(account))
}

// ============================================================
// Admin: reports
// ============================================================

// TransactionsInRange GET /api/v1/admin/reports/transactions?from=RFC3339&to=RFC3339
func (h *Handler) TransactionsInRange(c *gin.Context) {
	from, err := time.Parse(time.RFC3339, c.Query("from"))
	if err != nil {
		response.ParamError(c, "from must be an RFC3339 timestamp")
		return
	}
	to, err := time.Parse(time.RFC3339, c.Query("to"))
	if err != nil {
		response.ParamError(c, "to must be an RFC3339 timestamp")
		return
	}

	entries, err := h.history.RangeQuery(c.Request.Context(), scopeFrom(c), from.UTC(), to.UTC())
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, toTransactionDTOs(entries))
}

// AccountsByStatus GET /api/v1/admin/reports/accounts-by-status
func (h *Handler) AccountsByStatus(c *gin.Context) {
	counts, err := h.history.AccountsByStatus(c.Request.Context(), scopeFrom(c))
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, counts)
}

// BalancesByType GET /api/v1/admin/reports/balances-by-type
func (h *Handler) BalancesByType(c *gin.Context) {
	totals, err := h.history.BalancesByType(c.Request.Context(), scopeFrom(c))
	if err != nil {
		response.Fail(c, err)
		return
	}
	out := make(map[model.AccountType]string, len(totals))
	for t, sum := range totals {
		out[t] = money.Format(sum)
	}
	response.Success(c, out)
}

// TopOwners GET /api/v1/admin/reports/top-owners?limit=10
func (h *Handler) TopOwners(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "0"))
	if err != nil {
		response.ParamError(c, "limit must be an integer")
		return
	}
	rows, err := h.history.TopOwners(c.Request.Context(), scopeFrom(c), limit)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, rows)
}

// OwnersByActive GET /api/v1/admin/reports/owners-by-active
func (h *Handler) OwnersByActive(c *gin.Context) {
	counts, err := h.history.OwnersByActive(c.Request.Context(), scopeFrom(c))
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Success(c, counts)
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.ParamError(c, "account id must be a positive integer")
		return 0, false
	}
	return id, true
}
