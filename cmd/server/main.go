package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	allocationapp "github.com/wholesale/backend/internal/application/allocation"
	collaborationapp "github.com/wholesale/backend/internal/application/collaboration"
	disputeapp "github.com/wholesale/backend/internal/application/dispute"
	escrowapp "github.com/wholesale/backend/internal/application/escrow"
	eventapp "github.com/wholesale/backend/internal/application/event"
	listingapp "github.com/wholesale/backend/internal/application/listing"
	negotiationapp "github.com/wholesale/backend/internal/application/negotiation"
	"github.com/wholesale/backend/internal/domain/shared"
	"github.com/wholesale/backend/internal/infrastructure/auth"
	"github.com/wholesale/backend/internal/infrastructure/cache"
	"github.com/wholesale/backend/internal/infrastructure/config"
	"github.com/wholesale/backend/internal/infrastructure/event"
	"github.com/wholesale/backend/internal/infrastructure/logger"
	"github.com/wholesale/backend/internal/infrastructure/notification"
	"github.com/wholesale/backend/internal/infrastructure/payment"
	"github.com/wholesale/backend/internal/infrastructure/persistence"
	"github.com/wholesale/backend/internal/infrastructure/scheduler"
	"github.com/wholesale/backend/internal/infrastructure/telemetry"
	"github.com/wholesale/backend/internal/interfaces/http/handler"
	"github.com/wholesale/backend/internal/interfaces/http/middleware"
	"github.com/wholesale/backend/internal/interfaces/http/router"
	"go.uber.org/zap"
)

// version is overridden at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		Output:      cfg.Log.Output,
		TimeFormat:  "2006-01-02T15:04:05.000Z07:00",
		Service:     cfg.App.Name,
		Development: !cfg.App.IsProduction(),
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting marketplace backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	// Background workers stop when ctx is cancelled at shutdown
	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.MetricsInterval,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	metrics, err := telemetry.NewMarketplaceMetrics(meterProvider.Meter("marketplace"))
	if err != nil {
		log.Fatal("Failed to register marketplace metrics", zap.Error(err))
	}

	dbTracing := telemetry.DefaultDBTracingConfig()
	dbTracing.Enabled = cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled
	dbTracing.LogFullSQL = !cfg.App.IsProduction()
	dbTracing.DBName = cfg.Database.DBName
	db, err := persistence.NewDatabase(&cfg.Database, log, telemetry.NewDBTracingPlugin(dbTracing, log))
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	if db.Driver() == persistence.DriverSQLite {
		// sqlite has no migration history; postgres schemas come from cmd/migrate
		if err := db.AutoMigrate(); err != nil {
			log.Fatal("Failed to migrate sqlite schema", zap.Error(err))
		}
	}
	log.Info("Database connected", zap.String("driver", db.Driver()))

	// A nil *redis.Client must not reach the UniversalClient parameters
	// below, so the interface value stays nil when Redis is disabled.
	var (
		redisClient *redis.Client
		universal   redis.UniversalClient
	)
	if cfg.Redis.Enabled {
		redisClient, err = cache.NewRedisClient(cfg.Redis)
		if err != nil {
			log.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer func() {
			_ = redisClient.Close()
		}()
		universal = redisClient
		log.Info("Redis connected", zap.String("addr", cfg.Redis.Addr()))
	}

	// Events are staged in the outbox inside each business transaction
	serializer := event.NewEventSerializer()
	event.RegisterAllEvents(serializer)
	scope := persistence.NewGormTransactionScope(db.DB, event.NewOutboxPublisher(serializer), metrics)

	catalog := cache.NewTieredProductCatalog(
		persistence.NewGormProductCatalog(db.DB),
		universal,
		cache.WithCatalogTTL(cfg.Marketplace.CatalogCacheTTL),
		cache.WithCatalogLogger(log),
	)
	go func() {
		if err := catalog.Listen(ctx); err != nil {
			log.Error("Catalog invalidation listener stopped", zap.Error(err))
		}
	}()

	gateway, err := payment.NewGateway(cfg.Payment, metrics, log)
	if err != nil {
		log.Fatal("Failed to initialize payment gateway", zap.Error(err))
	}
	log.Info("Payment gateway ready", zap.String("provider", cfg.Payment.Provider))

	settlements := escrowapp.NewService(scope, gateway, metrics, cfg.Marketplace.PlatformFeeRate, cfg.Payment.Currency)
	negotiationService := negotiationapp.NewService(scope, catalog)
	allocationService := allocationapp.NewService(scope, catalog)
	collaborationService := collaborationapp.NewService(scope, persistence.NewGormSellerEligibility(db.DB), gateway, cfg.Payment.Currency)
	listingService := listingapp.NewService(scope, gateway, settlements, cfg.Payment.Currency)
	disputeService := disputeapp.NewService(scope, settlements)

	// Notifications: outbox -> in-memory bus -> Redis pub/sub
	outboxRepo := event.NewGormOutboxRepository(db.DB)
	eventBus := event.NewInMemoryEventBus(log)
	if redisClient != nil {
		publisher := notification.NewRedisPublisher(redisClient, cfg.Marketplace.NotificationChannel, log)
		eventBus.Subscribe(event.NewIdempotentHandler(
			"notification",
			publisher,
			cache.NewIdempotencyStore(universal, log),
			log,
			event.WithIdempotencyConfig(shared.IdempotencyConfig{Enabled: true, TTL: cfg.Marketplace.IdempotencyTTL}),
		))
	} else {
		log.Warn("Redis disabled, notifications are not forwarded")
	}
	if err := eventBus.Start(ctx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}

	processorConfig := event.DefaultOutboxProcessorConfig()
	outboxProcessor := event.NewOutboxProcessor(outboxRepo, eventBus, serializer, processorConfig, log,
		event.WithProcessorMetrics(metrics))
	if err := outboxProcessor.Start(ctx); err != nil {
		log.Fatal("Failed to start outbox processor", zap.Error(err))
	}
	log.Info("Outbox processor started",
		zap.Int("batch_size", processorConfig.BatchSize),
		zap.Duration("poll_interval", processorConfig.PollInterval),
	)

	// Nightly re-check of ledger counters
	maintenance := scheduler.NewScheduler(scheduler.DefaultSchedulerConfig(),
		scheduler.NewIntegritySweep(persistence.NewGormIntegrityScanner(db.DB), metrics, log), log)
	if err := maintenance.Start(ctx); err != nil {
		log.Fatal("Failed to start maintenance scheduler", zap.Error(err))
	}
	sweepTrigger := scheduler.NewCronTrigger(scheduler.DefaultCronTriggerConfig(), maintenance, log)
	if err := sweepTrigger.Start(ctx); err != nil {
		log.Fatal("Failed to start sweep trigger", zap.Error(err))
	}

	jwtConfig := middleware.DefaultJWTConfig(auth.NewJWTService(cfg.JWT))
	if redisClient != nil {
		jwtConfig.TokenBlacklist = auth.NewRedisTokenBlacklist(redisClient)
	}

	if cfg.App.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		log.Fatal("Invalid trusted proxies", zap.Error(err))
	}

	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	corsConfig.AllowMethods = cfg.HTTP.CORSAllowMethods
	corsConfig.AllowHeaders = cfg.HTTP.CORSAllowHeaders

	securityConfig := middleware.DefaultSecurityConfig()
	securityConfig.HSTSEnabled = cfg.App.IsProduction()

	engine.Use(
		middleware.RequestID(),
		logger.GinMiddleware(log),
		logger.Recovery(log),
		middleware.TracingWithConfig(middleware.TracingConfig{
			ServiceName: cfg.Telemetry.ServiceName,
			Enabled:     cfg.Telemetry.Enabled,
		}),
		middleware.SpanErrorMarker(),
		middleware.HTTPMetrics(meterProvider),
		middleware.CORSWithConfig(corsConfig),
		middleware.SecureWithConfig(securityConfig),
		middleware.BodyLimit(cfg.HTTP.MaxBodySize),
		middleware.Timeout(cfg.HTTP.RequestTimeout),
	)

	apiMiddleware := []gin.HandlerFunc{
		middleware.JWTAuthMiddlewareWithConfig(jwtConfig),
		middleware.TracingAttributeInjector(),
	}
	if cfg.HTTP.RateLimit > 0 {
		limiter := middleware.NewRateLimiter(ctx, cfg.HTTP.RateLimit, cfg.HTTP.RateLimitWindow)
		apiMiddleware = append(apiMiddleware, middleware.RateLimit(limiter))
	}

	checks := map[string]handler.Check{
		"database": func(ctx context.Context) error {
			sqlDB, err := db.DB.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}
	}
	systemHandler := handler.NewSystemHandler(version, checks)
	systemHandler.RegisterProbes(engine)

	router.NewRouter(engine, router.WithMiddleware(apiMiddleware...)).
		Register(
			handler.NewNegotiationHandler(negotiationService),
			handler.NewAllocationHandler(allocationService),
			handler.NewCollaborationHandler(collaborationService),
			handler.NewListingHandler(listingService),
			handler.NewEscrowHandler(settlements),
			handler.NewDisputeHandler(disputeService),
			handler.NewOutboxHandler(eventapp.NewOutboxService(outboxRepo, log)),
			systemHandler,
		).
		Setup()

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
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := sweepTrigger.Stop(shutdownCtx); err != nil {
		log.Error("Error stopping sweep trigger", zap.Error(err))
	}
	if err := maintenance.Stop(shutdownCtx); err != nil {
		log.Error("Error stopping maintenance scheduler", zap.Error(err))
	}
	if err := outboxProcessor.Stop(shutdownCtx); err != nil {
		log.Error("Error stopping outbox processor", zap.Error(err))
	}
	if err := eventBus.Stop(shutdownCtx); err != nil {
		log.Error("Error stopping event bus", zap.Error(err))
	}
	stop()
	if err := meterProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down meter provider", zap.Error(err))
	}
	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down tracer provider", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}
