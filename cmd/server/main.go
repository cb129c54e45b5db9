package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	appbilling "github.com/coopaguas/backend/internal/application/billing"
	"github.com/coopaguas/backend/internal/domain/billing"
	"github.com/coopaguas/backend/internal/domain/shared"
	"github.com/coopaguas/backend/internal/infrastructure/auth"
	"github.com/coopaguas/backend/internal/infrastructure/cache"
	"github.com/coopaguas/backend/internal/infrastructure/config"
	"github.com/coopaguas/backend/internal/infrastructure/event"
	"github.com/coopaguas/backend/internal/infrastructure/gateway"
	"github.com/coopaguas/backend/internal/infrastructure/logger"
	"github.com/coopaguas/backend/internal/infrastructure/persistence"
	"github.com/coopaguas/backend/internal/infrastructure/telemetry"
	"github.com/coopaguas/backend/internal/interfaces/http/handler"
	"github.com/coopaguas/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting CoopAguas Backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	ctx := context.Background()

	// Telemetry providers. With telemetry disabled these are no-ops, so the
	// spans started inside the services cost nothing.
	telemetryCfg := telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}
	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetryCfg, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	defer func() {
		if err := tracerProvider.Shutdown(context.Background()); err != nil {
			log.Error("Error shutting down tracer provider", zap.Error(err))
		}
	}()

	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetryCfg, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	defer func() {
		if err := meterProvider.Shutdown(context.Background()); err != nil {
			log.Error("Error shutting down meter provider", zap.Error(err))
		}
	}()

	businessMetrics, err := telemetry.NewBusinessMetrics(meterProvider.Meter("coopaguas-backend"), log)
	if err != nil {
		log.Fatal("Failed to initialize business metrics", zap.Error(err))
	}

	// Continuous profiling (optional)
	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:         cfg.Profiling.Enabled,
		ServerAddress:   cfg.Profiling.ServerAddress,
		ApplicationName: cfg.App.Name,
	}, log)
	if err != nil {
		log.Fatal("Failed to start profiler", zap.Error(err))
	}
	defer func() {
		if err := profiler.Stop(); err != nil {
			log.Error("Error stopping profiler", zap.Error(err))
		}
	}()
	if profiler.IsEnabled() {
		if err := tracerProvider.EnableSpanProfiles(); err != nil {
			log.Warn("Failed to enable span profiles", zap.Error(err))
		}
	}

	// Create GORM logger backed by zap
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))

	// Initialize database connection
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	// Initialize repositories
	customerRepo := persistence.NewGormCustomerRepository(db.DB)
	invoiceRepo := persistence.NewGormInvoiceRepository(db.DB)
	paymentRepo := persistence.NewGormPaymentRepository(db.DB)
	adjustmentRepo := persistence.NewGormAdjustmentRepository(db.DB)
	tariffRepo := persistence.NewGormTariffRepository(db.DB)
	subsidyRepo := persistence.NewGormSubsidyRepository(db.DB)
	repactacionRepo := persistence.NewGormRepactacionRepository(db.DB)
	scope := persistence.NewGormTransactionScope(db.DB)

	// Idempotency store: Redis when reachable, otherwise a process-local
	// fallback. A single-instance deployment loses nothing with the fallback.
	var idempotencyStore shared.IdempotencyStore
	redisStore, err := cache.NewRedisIdempotencyStore(cache.RedisConfig{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		log.Warn("Redis unavailable, using in-memory idempotency store", zap.Error(err))
		idempotencyStore = cache.NewInMemoryIdempotencyStore()
	} else {
		log.Info("Redis idempotency store connected",
			zap.String("host", cfg.Redis.Host), zap.Int("port", cfg.Redis.Port))
		idempotencyStore = redisStore
	}
	defer func() {
		if err := idempotencyStore.Close(); err != nil {
			log.Error("Error closing idempotency store", zap.Error(err))
		}
	}()

	// Initialize event bus and metrics projection
	eventBus := event.NewInMemoryEventBus(log)
	metricsHandler := appbilling.NewMetricsHandler(businessMetrics, log)
	eventBus.Subscribe(metricsHandler)
	log.Info("Event handlers registered",
		zap.Strings("metrics_events", metricsHandler.EventTypes()),
	)

	if err := eventBus.Start(ctx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}
	defer func() {
		if err := eventBus.Stop(context.Background()); err != nil {
			log.Error("Error stopping event bus", zap.Error(err))
		}
	}()

	// Initialize application services
	ledger := billing.NewLedgerService(billing.NewFIFOAllocator(decimal.NewFromFloat(cfg.Billing.Epsilon)))
	reconciliationService := appbilling.NewReconciliationService(scope, ledger, eventBus)
	reconciliationService.SetBusinessMetrics(businessMetrics)
	paymentService := appbilling.NewPaymentService(scope, reconciliationService, idempotencyStore,
		shared.IdempotencyConfig{TTL: cfg.Billing.IdempotencyTTL, Enabled: true})
	statementService := appbilling.NewStatementService(customerRepo, invoiceRepo, paymentRepo, ledger)
	billingRunService := appbilling.NewBillingRunService(scope, ledger, eventBus)
	accountService := appbilling.NewAccountService(scope)
	catalogService := appbilling.NewCatalogService(scope)

	jwtService := auth.NewJWTService(cfg.JWT)

	// Card gateway is optional; counter payments work without it
	var cardGateway *gateway.CardGateway
	if cfg.Gateway.BaseURL != "" {
		cardGateway = gateway.NewCardGateway(cfg.Gateway)
		log.Info("Card gateway configured", zap.String("base_url", cfg.Gateway.BaseURL))
	} else {
		log.Info("Card gateway not configured, checkout and webhook disabled")
	}

	// Initialize HTTP handlers
	accountHandler := handler.NewAccountHandler(accountService, customerRepo, adjustmentRepo)
	catalogHandler := handler.NewCatalogHandler(catalogService, tariffRepo, subsidyRepo, repactacionRepo)
	paymentHandler := handler.NewPaymentHandler(paymentService, reconciliationService, cardGateway, paymentRepo)
	statementHandler := handler.NewStatementHandler(statementService, reconciliationService)
	billingRunHandler := handler.NewBillingRunHandler(billingRunService, invoiceRepo, cfg.Billing.DueDays)
	systemHandler := handler.NewSystemHandler(cfg.App.Name, cfg.App.Env)

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()

	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(otelgin.Middleware(cfg.Telemetry.ServiceName))
	engine.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     cfg.HTTP.CORSAllowOrigins,
		AllowMethods:     cfg.HTTP.CORSAllowMethods,
		AllowHeaders:     cfg.HTTP.CORSAllowHeaders,
		ExposeHeaders:    []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Health check endpoint (outside API versioning)
	engine.GET("/health", healthHandler(db))

	// Gateway webhook is called by the acquirer, not by operators. The HMAC
	// signature check inside the handler is its authentication.
	engine.POST("/api/v1/payments/gateway/webhook", paymentHandler.GatewayWebhook)

	api := engine.Group("/api/v1")
	api.Use(middleware.JWTAuthMiddlewareWithConfig(middleware.JWTMiddlewareConfig{
		JWTService: jwtService,
		SkipPaths: []string{
			"/api/v1/ping",
			"/api/v1/system/ping",
			"/api/v1/system/info",
		},
		SkipPathPrefixes: []string{
			"/api/v1/payments/gateway",
		},
		Logger: log,
	}))

	admin := middleware.RequireAdmin()

	api.GET("/ping", systemHandler.Ping)
	api.GET("/system/ping", systemHandler.Ping)
	api.GET("/system/info", systemHandler.Info)

	// Accounts: registry, identity changes, adjustments, subsidy assignment
	accounts := api.Group("/accounts")
	accounts.POST("", admin, accountHandler.Create)
	accounts.GET("", accountHandler.List)
	accounts.GET("/:id", accountHandler.GetByID)
	accounts.GET("/code/:code", accountHandler.GetByCode)
	accounts.POST("/:id/change-code", admin, accountHandler.ChangeCode)
	accounts.POST("/:id/deactivate", admin, accountHandler.Deactivate)
	accounts.POST("/:id/adjustments", admin, accountHandler.GrantAdjustment)
	accounts.GET("/:id/adjustments", accountHandler.ListUnbilledAdjustments)
	accounts.POST("/:id/subsidy", admin, catalogHandler.AssignSubsidy)
	accounts.POST("/:id/subsidy/remove", admin, catalogHandler.RemoveSubsidy)
	accounts.GET("/:id/subsidy", catalogHandler.ListSubsidyAssignments)
	accounts.GET("/:id/plans", catalogHandler.ListPlans)

	// Ledger views and reconciliation
	accounts.GET("/:id/statement", statementHandler.GetStatement)
	accounts.GET("/code/:code/statement", statementHandler.GetStatementByCode)
	accounts.GET("/:id/outstanding", statementHandler.GetOutstanding)
	accounts.POST("/:id/reconcile", admin, statementHandler.Reconcile)
	accounts.GET("/:id/payments", paymentHandler.ListByCustomer)

	// Payments: counter registration, lifecycle, card checkout
	payments := api.Group("/payments")
	payments.POST("", paymentHandler.Register)
	payments.GET("/:id", paymentHandler.GetByID)
	payments.POST("/:id/complete", paymentHandler.Complete)
	payments.POST("/:id/reverse", admin, paymentHandler.Reverse)
	payments.POST("/checkout", paymentHandler.Checkout)

	// Billing runs and invoice queries
	api.POST("/billing-runs", admin, billingRunHandler.Run)
	api.GET("/invoices", billingRunHandler.ListInvoices)
	api.GET("/invoices/:id", billingRunHandler.GetInvoice)

	// Catalog: tariffs, subsidy classes, repactacion plans
	catalog := api.Group("/catalog")
	catalog.POST("/tariffs", admin, catalogHandler.CreateTariff)
	catalog.GET("/tariffs", catalogHandler.ListTariffs)
	catalog.GET("/tariffs/effective", catalogHandler.GetEffectiveTariff)
	catalog.POST("/subsidy-classes", admin, catalogHandler.CreateSubsidyClass)
	catalog.GET("/subsidy-classes", catalogHandler.ListSubsidyClasses)
	catalog.POST("/plans", admin, catalogHandler.CreatePlan)

	// Create HTTP server with config
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// healthHandler reports liveness including database reachability
func healthHandler(db *persistence.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		reqLog := logger.GetGinLogger(c)
		if err := db.Ping(); err != nil {
			reqLog.Warn("Health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"time":     time.Now().Format(time.RFC3339),
				"database": "error",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":   "healthy",
			"time":     time.Now().Format(time.RFC3339),
			"database": "ok",
		})
	}
}
