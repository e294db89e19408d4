package handlers

import (
	"net/http"

	"membership_backend/internal/services"
	"membership_backend/internal/services/dto"

	"github.com/gin-gonic/gin"
)

type CheckoutHandler struct {
	*BaseHandler
	checkoutService services.CheckoutService
	guards          RouteGuards
}

func NewCheckoutHandler(base *BaseHandler, checkoutService services.CheckoutService, guards RouteGuards) *CheckoutHandler {
	return &CheckoutHandler{
		BaseHandler:     base,
		checkoutService: checkoutService,
		guards:          guards,
	}
}

func (h *CheckoutHandler) RegisterRoutes(r *gin.RouterGroup) {
	payments := r.Group("/payments/checkout")
	{
		payments.POST("", h.guards.Auth, h.guards.rateLimit("checkout"), h.CreateCheckout)
		payments.POST("/confirm", h.guards.OptionalAuth, h.ConfirmCheckout)
	}
}

// CreateCheckout открывает сессию оплаты у шлюза для текущего участника
func (h *CheckoutHandler) CreateCheckout(c *gin.Context) {
	memberID, ok := h.GetAndAuthorizeMemberID(c)
	if !ok {
		return
	}

	var req dto.CreateCheckoutRequest
	if !h.BindAndValidateJSON(c, &req) {
		return
	}

	resp, err := h.checkoutService.CreateCheckout(c.Request.Context(), h.GetDB(c), memberID, &req)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// ConfirmCheckout - возврат участника со страницы шлюза
func (h *CheckoutHandler) ConfirmCheckout(c *gin.Context) {
	var req dto.ConfirmCheckoutRequest
	if !h.BindAndValidateJSON(c, &req) {
		return
	}

	resp, err := h.checkoutService.ConfirmCheckout(c.Request.Context(), h.GetDB(c), req.SessionID, h.OptionalMemberID(c))
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
