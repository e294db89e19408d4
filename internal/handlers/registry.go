package handlers

import "github.com/gin-gonic/gin"

// AppHandlers содержит все хэндлеры приложения.
type AppHandlers struct {
	HealthHandler     *HealthHandler
	WebhookHandler    *WebhookHandler
	CheckoutHandler   *CheckoutHandler
	AllocationHandler *AllocationHandler
}

// RouteGuards - middleware, которые хэндлеры навешивают на свои группы
type RouteGuards struct {
	Auth         gin.HandlerFunc
	OptionalAuth gin.HandlerFunc
	RateLimit    func(scope string) gin.HandlerFunc
}

func (g RouteGuards) rateLimit(scope string) gin.HandlerFunc {
	if g.RateLimit == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return g.RateLimit(scope)
}
