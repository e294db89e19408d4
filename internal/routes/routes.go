package routes

import (
	"membership_backend/internal/handlers"
	"membership_backend/internal/logger"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes регистрирует все HTTP маршруты.
func RegisterRoutes(ginRouter *gin.Engine, appHandlers *handlers.AppHandlers) {
	// Health без префикса версии, для балансировщика
	appHandlers.HealthHandler.RegisterRoutes(&ginRouter.RouterGroup)

	// Регистрация HTTP API v1
	api := ginRouter.Group("/api/v1")
	{
		appHandlers.HealthHandler.RegisterRoutes(api)
		appHandlers.WebhookHandler.RegisterRoutes(api)
		appHandlers.CheckoutHandler.RegisterRoutes(api)
		appHandlers.AllocationHandler.RegisterRoutes(api)
	}
	logger.Info("HTTP routes registered", "routes", len(ginRouter.Routes()))
}
