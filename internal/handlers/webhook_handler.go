package handlers

import (
	"io"
	"net/http"

	"membership_backend/internal/logger"
	"membership_backend/internal/services"
	"membership_backend/internal/services/dto"
	"membership_backend/pkg/apperrors"

	"github.com/gin-gonic/gin"
)

const (
	// SignatureHeader - заголовок с подписью шлюза
	SignatureHeader = "Stripe-Signature"
	// maxWebhookBody - ограничение размера тела уведомления
	maxWebhookBody = 1 << 20
)

type WebhookHandler struct {
	*BaseHandler
	webhookService services.WebhookService
}

func NewWebhookHandler(base *BaseHandler, webhookService services.WebhookService) *WebhookHandler {
	return &WebhookHandler{
		BaseHandler:    base,
		webhookService: webhookService,
	}
}

func (h *WebhookHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/payments/webhook", h.HandleWebhook)
}

// HandleWebhook принимает уведомление шлюза. Тело читается как есть: подпись считается по сырым байтам.
func (h *WebhookHandler) HandleWebhook(c *gin.Context) {
	ctx := c.Request.Context()

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody)
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		logger.CtxWithError(ctx, "Failed to read webhook body", err)
		apperrors.HandleError(c, apperrors.NewBadRequestError("Unable to read request body"))
		return
	}

	result, err := h.webhookService.HandleWebhook(ctx, h.GetDB(c), payload, c.GetHeader(SignatureHeader))
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.WebhookResponse{
		Received: true,
		EventID:  result.EventID,
		Message:  result.Message,
	})
}
