package handlers

import (
	"net/http"

	"membership_backend/internal/logger"
	"membership_backend/internal/middleware"
	"membership_backend/internal/validator"
	"membership_backend/pkg/apperrors"
	"membership_backend/pkg/contextkeys"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// BaseHandler - общее для всех обработчиков: БД запроса, разбор тела, ответы об ошибках
type BaseHandler struct {
	validator *validator.Validator
}

func NewBaseHandler(v *validator.Validator) *BaseHandler {
	return &BaseHandler{validator: v}
}

// GetDB - *gorm.DB, положенный DBMiddleware. Без middleware роутер собран неверно.
func (h *BaseHandler) GetDB(c *gin.Context) *gorm.DB {
	if db, ok := c.MustGet(string(contextkeys.DBContextKey)).(*gorm.DB); ok {
		return db
	}
	panic("db in gin context has unexpected type")
}

// BindAndValidateJSON разбирает тело и проверяет теги validate. false - ответ уже записан.
func (h *BaseHandler) BindAndValidateJSON(c *gin.Context, obj interface{}) bool {
	ctx := c.Request.Context()

	if err := c.ShouldBindJSON(obj); err != nil {
		logger.CtxWarn(ctx, "Malformed request body", "error", err.Error(), "path", c.Request.URL.Path)
		apperrors.HandleError(c, apperrors.NewBadRequestError("Invalid request body"))
		return false
	}

	if err := h.validator.Validate(obj); err != nil {
		if vErr, ok := err.(*validator.ValidationError); ok {
			logger.CtxWarn(ctx, "Validation failed", "errors", vErr.Errors, "path", c.Request.URL.Path)
			apperrors.HandleError(c, apperrors.ValidationError(vErr.Errors))
			return false
		}
		logger.CtxWithError(ctx, "Validator failure", err, "path", c.Request.URL.Path)
		apperrors.HandleError(c, apperrors.InternalError(err))
		return false
	}
	return true
}

// HandleServiceError пишет ответ об ошибке сервиса; 5xx логируются с причиной
func (h *BaseHandler) HandleServiceError(c *gin.Context, err error) {
	ctx := c.Request.Context()

	appErr, ok := apperrors.AsAppError(err)
	switch {
	case !ok:
		logger.CtxWithError(ctx, "Unexpected service error", err, "path", c.Request.URL.Path)
		appErr = apperrors.InternalError(err)
	case appErr.HTTPCode >= http.StatusInternalServerError:
		logger.CtxWithError(ctx, "Service failure", err, "code", appErr.Code, "path", c.Request.URL.Path)
	default:
		logger.CtxWarn(ctx, "Request rejected", "code", appErr.Code, "error", appErr.Message, "path", c.Request.URL.Path)
	}
	apperrors.HandleError(c, appErr)
}

// GetAndAuthorizeMemberID возвращает ID участника из сессии или пишет 401
func (h *BaseHandler) GetAndAuthorizeMemberID(c *gin.Context) (uint, bool) {
	memberID, ok := middleware.GetMemberID(c)
	if !ok {
		logger.CtxWarn(c.Request.Context(), "Member not in context", "path", c.Request.URL.Path, "ip", c.ClientIP())
		apperrors.HandleError(c, apperrors.NewUnauthorizedError("Member not authenticated"))
		return 0, false
	}
	return memberID, true
}

func (h *BaseHandler) OptionalMemberID(c *gin.Context) *uint {
	if memberID, ok := middleware.GetMemberID(c); ok {
		return &memberID
	}
	return nil
}
