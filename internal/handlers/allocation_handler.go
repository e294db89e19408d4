package handlers

import (
	"net/http"

	"membership_backend/internal/services"
	"membership_backend/internal/services/dto"

	"github.com/gin-gonic/gin"
)

type AllocationHandler struct {
	*BaseHandler
	allocationService services.AllocationService
	guards            RouteGuards
}

func NewAllocationHandler(base *BaseHandler, allocationService services.AllocationService, guards RouteGuards) *AllocationHandler {
	return &AllocationHandler{
		BaseHandler:       base,
		allocationService: allocationService,
		guards:            guards,
	}
}

func (h *AllocationHandler) RegisterRoutes(r *gin.RouterGroup) {
	me := r.Group("/members/me")
	me.Use(h.guards.Auth)
	{
		me.GET("/allocation", h.GetAllocation)
		me.POST("/allocation", h.guards.rateLimit("allocation"), h.ApplyAllocation)
	}
}

func (h *AllocationHandler) GetAllocation(c *gin.Context) {
	memberID, ok := h.GetAndAuthorizeMemberID(c)
	if !ok {
		return
	}

	resp, err := h.allocationService.GetAllocationSummary(c.Request.Context(), h.GetDB(c), memberID)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// ApplyAllocation распределяет свободный остаток: продление членства или пожертвование
func (h *AllocationHandler) ApplyAllocation(c *gin.Context) {
	memberID, ok := h.GetAndAuthorizeMemberID(c)
	if !ok {
		return
	}

	var req dto.ApplyAllocationRequest
	if !h.BindAndValidateJSON(c, &req) {
		return
	}

	resp, err := h.allocationService.ApplyAllocation(c.Request.Context(), h.GetDB(c), memberID, req.AllocationType, req.AllocationYears)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
