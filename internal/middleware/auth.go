package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"membership_backend/internal/auth"
	"membership_backend/internal/logger"
	"membership_backend/pkg/apperrors"
	"membership_backend/pkg/contextkeys"

	"github.com/gin-gonic/gin"
)

// tokenFromRequest - токен из cookie сессии или заголовка Authorization: Bearer
func tokenFromRequest(c *gin.Context, cookieName string) string {
	if cookie, err := c.Cookie(cookieName); err == nil && cookie != "" {
		return cookie
	}
	authHeader := c.GetHeader("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return ""
}

func authenticate(c *gin.Context, tokens *auth.TokenManager, cookieName string) (uint, error) {
	tokenStr := tokenFromRequest(c, cookieName)
	if tokenStr == "" {
		return 0, apperrors.NewUnauthorizedError("Authentication required")
	}

	claims, err := tokens.ParseToken(tokenStr)
	if err != nil {
		return 0, apperrors.New(apperrors.CodeInvalidToken, "auth", "Invalid or expired session", http.StatusUnauthorized).WithError(err)
	}
	memberID, err := claims.MemberID()
	if err != nil {
		return 0, apperrors.New(apperrors.CodeInvalidToken, "auth", "Invalid or expired session", http.StatusUnauthorized).WithError(err)
	}
	return memberID, nil
}

func setMember(c *gin.Context, memberID uint) {
	c.Set(contextkeys.MemberIDKey, memberID)
	ctx := logger.WithMemberID(c.Request.Context(), strconv.FormatUint(uint64(memberID), 10))
	c.Request = c.Request.WithContext(ctx)
}

// AuthMiddleware - middleware проверки JWT, без сессии 401
func AuthMiddleware(tokens *auth.TokenManager, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		memberID, err := authenticate(c, tokens, cookieName)
		if err != nil {
			logger.CtxWarn(c.Request.Context(), "Unauthorized request", "path", c.Request.URL.Path, "ip", c.ClientIP())
			apperrors.HandleError(c, err)
			return
		}
		setMember(c, memberID)
		c.Next()
	}
}

// OptionalAuthMiddleware кладет участника в контекст, если токен валиден, иначе пропускает дальше
func OptionalAuthMiddleware(tokens *auth.TokenManager, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if memberID, err := authenticate(c, tokens, cookieName); err == nil {
			setMember(c, memberID)
		}
		c.Next()
	}
}

// GetMemberID извлекает ID участника из контекста
func GetMemberID(c *gin.Context) (uint, bool) {
	val, exists := c.Get(contextkeys.MemberIDKey)
	if !exists {
		return 0, false
	}
	id, ok := val.(uint)
	return id, ok && id != 0
}
