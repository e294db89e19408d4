package middleware

import (
	"fmt"
	"strconv"

	"membership_backend/internal/logger"
	"membership_backend/internal/ratelimit"
	"membership_backend/pkg/apperrors"

	"github.com/gin-gonic/gin"
)

// RateLimitMiddleware ограничивает запросы участника (или IP без сессии).
// limiter == nil - ограничение выключено. Ошибка Redis запрос не блокирует.
func RateLimitMiddleware(limiter ratelimit.Limiter, scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}

		subject := "ip:" + c.ClientIP()
		if memberID, ok := GetMemberID(c); ok {
			subject = fmt.Sprintf("member:%d", memberID)
		}

		result, err := limiter.Allow(c.Request.Context(), scope+":"+subject)
		if err != nil {
			logger.CtxWarn(c.Request.Context(), "Rate limiter unavailable", "error", err.Error())
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		if !result.Allowed {
			c.Header("Retry-After", strconv.Itoa(int(result.ResetIn.Seconds())))
			apperrors.HandleError(c, apperrors.ErrRateLimited)
			return
		}
		c.Next()
	}
}
