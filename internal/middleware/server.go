package middleware

import (
	"log/slog"
	"time"

	"membership_backend/internal/logger"
	"membership_backend/pkg/contextkeys"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const requestIDHeader = "X-Request-ID"

// RequestIDMiddleware берет X-Request-ID клиента (до 64 символов) или генерирует новый
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" || len(requestID) > 64 {
			requestID = uuid.NewString()
		}
		c.Request = c.Request.WithContext(logger.WithRequestID(c.Request.Context(), requestID))
		c.Header(requestIDHeader, requestID)
		c.Next()
	}
}

// LoggingMiddleware пишет одну строку на запрос; уровень зависит от статуса ответа
func LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		attrs := []any{
			slog.String("method", c.Request.Method),
			slog.String("route", route),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", status),
			slog.Duration("duration", time.Since(start)),
			slog.String("client_ip", c.ClientIP()),
		}

		ctx := c.Request.Context()
		switch {
		case status >= 500:
			logger.CtxError(ctx, "HTTP request failed", attrs...)
		case status >= 400:
			logger.CtxWarn(ctx, "HTTP request rejected", attrs...)
		case route == "/ping" || route == "/api/v1/ping":
			logger.CtxDebug(ctx, "HTTP health check", attrs...)
		default:
			logger.CtxInfo(ctx, "HTTP request", attrs...)
		}
	}
}

// DBMiddleware кладет в gin.Context БД, привязанную к контексту запроса:
// отмена запроса прерывает его SQL-запросы.
func DBMiddleware(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(string(contextkeys.DBContextKey), db.WithContext(c.Request.Context()))
		c.Next()
	}
}
