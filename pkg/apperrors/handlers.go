package apperrors

import (
	"log/slog"

	"github.com/gin-gonic/gin"
)

// ErrorResponse - тело любого ответа с ошибкой: {"error": {...}}
type ErrorResponse struct {
	Error *AppError `json:"error"`
}

// DebugMode показывает клиенту детали внутренних ошибок. Выставляется из конфига при старте.
var DebugMode = false

// HandleError пишет ответ и прерывает цепочку gin
func HandleError(c *gin.Context, err error) {
	appErr, ok := AsAppError(err)
	if !ok {
		appErr = InternalError(err)
	}

	if appErr.HTTPCode >= 500 {
		slog.Error("Server error", "error", err.Error(), "path", c.Request.URL.Path, "code", appErr.Code)
		if appErr.Code == CodeInternalError && !DebugMode {
			appErr = New(CodeInternalError, appErr.Domain, "Internal server error", appErr.HTTPCode)
		}
	}

	c.AbortWithStatusJSON(appErr.HTTPCode, ErrorResponse{Error: appErr})
}
