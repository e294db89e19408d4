package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"membership_backend/database"
	"membership_backend/internal/auth"
	"membership_backend/internal/config"
	"membership_backend/internal/email"
	"membership_backend/internal/gateway"
	"membership_backend/internal/handlers"
	"membership_backend/internal/logger"
	"membership_backend/internal/middleware"
	"membership_backend/internal/ratelimit"
	"membership_backend/internal/repositories"
	"membership_backend/internal/routes"
	"membership_backend/internal/services"
	"membership_backend/internal/validator"
	"membership_backend/internal/workers"
	"membership_backend/pkg/apperrors"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Dependencies - внешние системы, которые подменяются в тестах
type Dependencies struct {
	Gateway       gateway.Client
	EmailProvider email.Provider
	Renderer      email.TemplateRenderer
	Limiter       ratelimit.Limiter
	Tokens        *auth.TokenManager
}

func Run() {
	config.LoadConfig()
	cfg := config.AppConfig
	logger.Init(cfg.Server.Env)
	logger.Info("Logger initialized", "env", cfg.Server.Env)
	apperrors.DebugMode = cfg.Server.Env != "production"

	logger.Info("Connecting to database...", "driver", cfg.Database.Driver)
	gormDB, err := database.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		logger.Fatal("Failed to connect to database", "error", err)
	}
	if err := database.AutoMigrate(gormDB); err != nil {
		logger.Fatal("Failed to migrate database", "error", err)
	}
	logger.Info("Database connected")

	deps, err := BuildDependencies(cfg)
	if err != nil {
		logger.Fatal("Failed to initialize dependencies", "error", err)
	}
	defer deps.EmailProvider.Close()

	ginRouter, serviceContainer := SetupRouter(cfg, gormDB, deps)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	worker := workers.NewNotificationWorker(gormDB, serviceContainer.NotificationQueueService, workers.NotificationWorkerConfig{
		Interval:    time.Duration(cfg.Notifications.SweepIntervalSeconds) * time.Second,
		BatchSize:   cfg.Notifications.SweepBatchSize,
		MaxAttempts: cfg.Notifications.MaxAttempts,
	})
	worker.Start(ctx)

	address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:              address,
		Handler:           ginRouter,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Server starting", "address", address)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server startup error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}

// BuildDependencies создает клиентов внешних систем по конфигурации
func BuildDependencies(cfg *config.Config) (*Dependencies, error) {
	deps := &Dependencies{
		Tokens: auth.NewTokenManager(cfg.JWT.Secret),
	}

	if cfg.Gateway.SecretKey == "" {
		logger.Warn("Gateway secret key is not set, using in-memory gateway")
		deps.Gateway = gateway.NewMemoryClient(cfg.Gateway.WebhookSecret)
	} else {
		deps.Gateway = gateway.NewHTTPClient(gateway.ConfigFromApp(cfg))
	}

	if cfg.Email.Disabled || cfg.Email.SMTPHost == "" {
		logger.Warn("SMTP is not configured, emails will only be logged")
		deps.EmailProvider = email.NewLogProvider()
	} else {
		provider := email.NewGomailProvider(email.ConfigFromApp(cfg))
		if err := provider.Validate(); err != nil {
			return nil, fmt.Errorf("email provider: %w", err)
		}
		deps.EmailProvider = provider
	}

	renderer, err := email.NewDefaultTemplateManager()
	if err != nil {
		return nil, fmt.Errorf("email templates: %w", err)
	}
	if cfg.Email.TemplatesDir != "" {
		if err := renderer.LoadTemplates(cfg.Email.TemplatesDir); err != nil {
			return nil, fmt.Errorf("email templates from %s: %w", cfg.Email.TemplatesDir, err)
		}
	}
	logger.Info("Email templates loaded", "templates", renderer.TemplateNames())
	deps.Renderer = renderer

	if cfg.Redis.Addr != "" {
		client := ratelimit.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		deps.Limiter = ratelimit.NewRedisLimiter(client, ratelimit.Config{
			Limit:  cfg.Redis.RateLimit,
			Window: time.Duration(cfg.Redis.RateLimitWindow) * time.Second,
		})
		logger.Info("Rate limiting enabled", "addr", cfg.Redis.Addr, "limit", cfg.Redis.RateLimit)
	}

	return deps, nil
}

func SetupRouter(cfg *config.Config, gormDB *gorm.DB, deps *Dependencies) (*gin.Engine, *services.ServiceContainer) {
	// 1. Инициализируем сервисы
	serviceContainer := NewServiceContainer(cfg, deps)

	// 2. Инициализируем хэндлеры
	appHandlers := initializeHandlers(cfg, serviceContainer, deps)

	// 3. Инициализируем Gin
	ginRouter := initializeGinRouter(gormDB)

	// 4. Маршруты
	routes.RegisterRoutes(ginRouter, appHandlers)

	return ginRouter, serviceContainer
}

// NewServiceContainer собирает репозитории и сервисы. Используется сервером и queuectl.
func NewServiceContainer(cfg *config.Config, deps *Dependencies) *services.ServiceContainer {
	// --- Инициализация репозиториев ---
	memberRepo := repositories.NewMemberRepository()
	transactionRepo := repositories.NewTransactionRepository()
	webhookEventRepo := repositories.NewWebhookEventRepository()
	emailQueueRepo := repositories.NewEmailQueueRepository()
	allocationRepo := repositories.NewAllocationRepository()
	reminderRepo := repositories.NewReminderRepository()

	// --- Инициализация сервисов ---
	queueService := services.NewNotificationQueueService(emailQueueRepo, memberRepo, reminderRepo, deps.EmailProvider, deps.Renderer)
	paymentService := services.NewPaymentService(transactionRepo, memberRepo, allocationRepo, queueService, services.PaymentSettings{
		Currency:       cfg.Gateway.Currency,
		ImmediateDrain: cfg.Notifications.ImmediateDrain,
	})
	webhookService := services.NewWebhookService(deps.Gateway, webhookEventRepo, transactionRepo, memberRepo, paymentService,
		services.RefundPolicy(cfg.Payments.RefundPolicy))
	checkoutService := services.NewCheckoutService(deps.Gateway, memberRepo, transactionRepo, paymentService, services.CheckoutSettings{
		Currency:   cfg.Gateway.Currency,
		SuccessURL: cfg.Gateway.SuccessURL,
		CancelURL:  cfg.Gateway.CancelURL,
	})
	allocationService := services.NewAllocationService(memberRepo, transactionRepo, allocationRepo, queueService)

	return &services.ServiceContainer{
		PaymentService:           paymentService,
		WebhookService:           webhookService,
		CheckoutService:          checkoutService,
		AllocationService:        allocationService,
		NotificationQueueService: queueService,
		EmailProvider:            deps.EmailProvider,
	}
}

func initializeHandlers(cfg *config.Config, services *services.ServiceContainer, deps *Dependencies) *handlers.AppHandlers {
	customValidator := validator.New()
	baseHandler := handlers.NewBaseHandler(customValidator)

	guards := handlers.RouteGuards{
		Auth:         middleware.AuthMiddleware(deps.Tokens, cfg.JWT.CookieName),
		OptionalAuth: middleware.OptionalAuthMiddleware(deps.Tokens, cfg.JWT.CookieName),
		RateLimit: func(scope string) gin.HandlerFunc {
			return middleware.RateLimitMiddleware(deps.Limiter, scope)
		},
	}

	return &handlers.AppHandlers{
		HealthHandler:     handlers.NewHealthHandler(baseHandler),
		WebhookHandler:    handlers.NewWebhookHandler(baseHandler, services.WebhookService),
		CheckoutHandler:   handlers.NewCheckoutHandler(baseHandler, services.CheckoutService, guards),
		AllocationHandler: handlers.NewAllocationHandler(baseHandler, services.AllocationService, guards),
	}
}

func initializeGinRouter(db *gorm.DB) *gin.Engine {
	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggingMiddleware())
	router.Use(middleware.DBMiddleware(db))
	router.NoMethod(func(c *gin.Context) {
		apperrors.HandleError(c, apperrors.New(apperrors.CodeMethodNotAllowed, "http", "Method not allowed", http.StatusMethodNotAllowed))
	})
	router.NoRoute(func(c *gin.Context) {
		apperrors.HandleError(c, apperrors.NewNotFoundError("http", "Route not found", http.StatusNotFound))
	})
	return router
}
