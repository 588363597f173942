package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// HealthCheck pings one dependency.
type HealthCheck func(ctx context.Context) error

func SetupRouter(h *Handler, jwtSecret string, log *zap.Logger, checks map[string]HealthCheck) (*gin.Engine, error) {
	gin.SetMode(gin.ReleaseMode)
	if err := RegisterValidators(); err != nil {
		return nil, err
	}

	r := gin.New()

	r.Use(CorrelationMiddleware())
	r.Use(RecoveryMiddleware(log))
	r.Use(LoggerMiddleware(log))
	r.Use(CORSMiddleware())

	api := r.Group("/api/v1")
	api.Use(AuthMiddleware(jwtSecret))
	{
		transfers := api.Group("/transfers")
		{
			transfers.POST("", h.CreateTransfer)
			transfers.GET("/history", h.TransferHistory)
		}

		accounts := api.Group("/accounts")
		{
			accounts.GET("", h.ListAccounts)
			accounts.POST("", h.CreateAccount)
		}

		admin := api.Group("/admin")
		admin.Use(AdminOnly())
		{
			admin.PUT("/accounts/:id/status", h.ChangeAccountStatus)
			admin.PUT("/accounts/:id/balance", h.OverrideBalance)

			reports := admin.Group("/reports")
			{
				reports.GET("/transactions", h.TransactionsInRange)
				reports.GET("/accounts-by-status", h.AccountsByStatus)
				reports.GET("/balances-by-type", h.BalancesByType)
				reports.GET("/top-owners", h.TopOwners)
				reports.GET("/owners-by-active", h.OwnersByActive)
			}
		}
	}

	r.GET("/health", Health(checks))

	return r, nil
}
