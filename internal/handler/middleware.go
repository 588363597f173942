package handler

import (
	"net/http"
	"time"

	"bankcore/internal/model"
	"bankcore/internal/reqscope"
	"bankcore/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	HeaderCorrelationID  = "X-Correlation-ID"
	HeaderIdempotencyKey = "Idempotency-Key"

	scopeKey = "reqscope"
)

// CorrelationMiddleware creates the request scope. An inbound X-Correlation-ID
// is kept, otherwise a new one is generated; either way it is echoed back.
func CorrelationMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		scope := reqscope.New(c.GetHeader(HeaderCorrelationID), 0)
		scope.ClientIP = c.ClientIP()
		scope.Endpoint = c.Request.Method + " " + c.FullPath()

		c.Set(scopeKey, scope)
		c.Header(HeaderCorrelationID, scope.CorrelationID)
		c.Next()
	}
}

func LoggerMiddleware(log *zap.Logger) gin.HandlerFunc {
	log = log.Named("http")
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		fields := append(scopeFrom(c).Fields(),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
			zap.String("method", c.Request.Method),
			zap.String("path", path))
		if query != "" {
			fields = append(fields, zap.String("query", query))
		}

		switch status := c.Writer.Status(); {
		case status >= http.StatusInternalServerError:
			log.Error("request", fields...)
		case status >= http.StatusBadRequest:
			log.Warn("request", fields...)
		default:
			log.Info("request", fields...)
		}
	}
}

// RecoveryMiddleware turns a panic into a 500 instead of killing the process.
func RecoveryMiddleware(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				log.Error("panic recovered", append(scopeFrom(c).Fields(), zap.Any("panic", err), zap.Stack("stack"))...)
				response.ServerError(c, "internal server error")
			}
		}()
		c.Next()
	}
}

func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization, X-Correlation-ID, Idempotency-Key")
		c.Header("Access-Control-Expose-Headers", "X-Correlation-ID")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// AuthMiddleware verifies the bearer token and records the requester in the scope.
func AuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := ParseToken(secret, c.GetHeader("Authorization"))
		if err != nil {
			response.Unauthorized(c, "invalid or missing bearer token")
			return
		}
		ownerID, _ := claims.OwnerID()

		scope := scopeFrom(c)
		scope.RequesterID = ownerID
		scope.Role = claims.Role
		c.Next()
	}
}

func AdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		if scopeFrom(c).Role != string(model.RoleAdmin) {
			response.Forbidden(c, "admin role required")
			return
		}
		c.Next()
	}
}

// scopeFrom returns the request scope, creating one for routes mounted
// without CorrelationMiddleware.
func scopeFrom(c *gin.Context) *reqscope.Scope {
	if v, ok := c.Get(scopeKey); ok {
		if scope, ok := v.(*reqscope.Scope); ok {
			return scope
		}
	}
	scope := reqscope.New(c.GetHeader(HeaderCorrelationID), 0)
	c.Set(scopeKey, scope)
	return scope
}
