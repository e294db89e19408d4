package services

import "membership_backend/internal/email"

// ServiceContainer содержит все сервисы приложения.
type ServiceContainer struct {
	PaymentService           PaymentService
	WebhookService           WebhookService
	CheckoutService          CheckoutService
	AllocationService        AllocationService
	NotificationQueueService NotificationQueueService
	EmailProvider            email.Provider
}
