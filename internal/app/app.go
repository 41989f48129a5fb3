package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/utafrali/storefront/internal/auth"
	"github.com/utafrali/storefront/internal/backend"
	"github.com/utafrali/storefront/internal/config"
	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/event"
	handler "github.com/utafrali/storefront/internal/handler/http"
	"github.com/utafrali/storefront/internal/notify"
	redisrepo "github.com/utafrali/storefront/internal/repository/redis"
	"github.com/utafrali/storefront/internal/service"
	"github.com/utafrali/storefront/internal/validation"
	"github.com/utafrali/storefront/pkg/database"
	"github.com/utafrali/storefront/pkg/health"
	"github.com/utafrali/storefront/pkg/httpclient"
	pkgkafka "github.com/utafrali/storefront/pkg/kafka"
	"github.com/utafrali/storefront/pkg/middleware"
	"github.com/utafrali/storefront/pkg/tracing"
)

const serviceName = "storefront"

// App wires together all dependencies and runs the storefront service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	rdb            *redis.Client
	producer       *pkgkafka.Producer
	limiter        *middleware.RateLimiter
	unsubscribe    func()
	tracerShutdown func(context.Context) error
	httpServer     *http.Server
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize tracing.
	tracingCfg := tracing.DefaultConfig(serviceName)
	tracingCfg.Environment = cfg.Environment
	tracingCfg.OTLPEndpoint = cfg.OTELEndpoint
	tracingCfg.SampleRate = cfg.OTELSampleRate
	tracingCfg.Enabled = cfg.OTELEnabled
	tracerShutdown, err := tracing.InitTracer(ctx, tracingCfg)
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	// Initialize Redis client.
	redisCfg := database.DefaultRedisConfig()
	redisCfg.Host = cfg.RedisHost
	redisCfg.Port = cfg.RedisPort
	redisCfg.Password = cfg.RedisPassword
	redisCfg.DB = cfg.RedisDB
	redisCfg.PoolSize = cfg.RedisPoolSize
	redisCfg.SlowCommandThreshold = cfg.SlowCommandThreshold()

	rdb, err := database.NewRedisClient(ctx, redisCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	database.RegisterPoolMetrics(rdb, serviceName)
	logger.Info("connected to Redis",
		slog.String("addr", redisCfg.Addr()),
		slog.Int("db", cfg.RedisDB),
	)

	// Initialize Kafka producer.
	kafkaCfg := pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers)
	producer := pkgkafka.NewProducer(kafkaCfg, logger)
	logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))

	// Commerce backend client: retries for GETs, circuit breaker for everything.
	httpCfg := httpclient.DefaultConfig()
	httpCfg.MaxRetries = cfg.BackendMaxRetries
	cbCfg := httpclient.DefaultCircuitBreakerConfig("commerce-backend")
	if cfg.CBMaxRequests > 0 {
		cbCfg.MaxRequests = cfg.CBMaxRequests
	}
	if cfg.CBInterval > 0 {
		cbCfg.Interval = time.Duration(cfg.CBInterval) * time.Second
	}
	if cfg.CBTimeout > 0 {
		cbCfg.Timeout = time.Duration(cfg.CBTimeout) * time.Second
	}
	if cfg.CBMinRequests > 0 {
		cbCfg.MinRequests = cfg.CBMinRequests
	}
	cbCfg.FailureRatio = cfg.CBFailureRatio
	doer := httpclient.NewCircuitBreakerClient(httpclient.New(httpCfg), cbCfg, logger).
		WithFallback(backend.CircuitOpenFallback)
	backendClient := backend.NewClient(doer, cfg.BackendURL, logger)

	// Notifications surface as structured log lines.
	bus := notify.NewBus()
	unsubscribe := bus.Subscribe(notify.LogSink(logger))

	// Build the dependency graph.
	wizardRepo := redisrepo.NewWizardRepository(rdb, cfg.WizardTTL)
	deferredStore := redisrepo.NewDeferredActionStore(rdb, cfg.DeferredActionTTL)
	submitLock := redisrepo.NewSubmitLock(rdb, cfg.SubmitLockTTL)
	eventProducer := event.NewProducer(producer, logger)

	timeouts := service.Timeouts{
		Order:   cfg.OrderTimeout,
		Payment: cfg.PaymentTimeout,
		Verify:  cfg.VerifyTimeout,
		Publish: cfg.EventPublishTimeout,
	}
	orchestrator := service.NewOrchestrator(backendClient, backendClient, eventProducer, bus,
		service.AddressDefaults{State: cfg.DefaultState, Country: cfg.DefaultCountry},
		timeouts, logger)
	verifier := service.NewVerifier(backendClient, backendClient, eventProducer, bus,
		service.FallbackMode(cfg.VerifyFallbackMode), timeouts, logger)
	checkoutService := service.NewCheckoutService(wizardRepo, submitLock, backendClient, orchestrator, bus,
		validation.ValidateDelivery, logger)
	cartService := service.NewCartService(backendClient)

	dispatcher := auth.NewDispatcher()
	dispatcher.Register(domain.CommandBeginCheckout, checkoutService.HandleBeginCheckout)
	gate := auth.NewGate(deferredStore, dispatcher, logger)
	tokens := auth.NewTokenVerifier(cfg.JWTSecret)

	// Health checks.
	healthHandler := health.NewHandler()
	healthHandler.RegisterCritical("redis", func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	})
	healthHandler.RegisterNonCritical("kafka", producer.Ping)

	// HTTP router.
	limiter := middleware.NewRateLimiter(cfg.SubmitRateLimitRPS, cfg.SubmitRateLimitBurst, logger)
	corsCfg := middleware.DefaultCORSConfig()
	// Session tokens travel in the Authorization header, not cookies.
	corsCfg.AllowedOrigins = cfg.CORSAllowedOrigins
	corsCfg.Environment = cfg.Environment

	router := handler.NewRouter(handler.RouterConfig{
		Checkout:      handler.NewCheckoutHandler(checkoutService, gate, logger),
		Auth:          handler.NewAuthHandler(gate, logger),
		Cart:          handler.NewCartHandler(cartService, logger),
		Payment:       handler.NewPaymentHandler(verifier, logger),
		Health:        healthHandler,
		ValidateToken: tokens.Verify,
		SubmitLimiter: limiter,
		CORS:          corsCfg,
		ServiceName:   serviceName,
	}, logger)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &App{
		cfg:            cfg,
		logger:         logger,
		rdb:            rdb,
		producer:       producer,
		limiter:        limiter,
		unsubscribe:    unsubscribe,
		tracerShutdown: tracerShutdown,
		httpServer:     httpServer,
	}, nil
}

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	// Graceful HTTP server shutdown with a 10-second deadline.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
	}

	a.limiter.Stop()
	a.unsubscribe()

	// Close Kafka producer.
	if err := a.producer.Close(); err != nil {
		a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
	}

	// Close Redis client.
	if err := a.rdb.Close(); err != nil {
		a.logger.Error("redis close error", slog.String("error", err.Error()))
	}

	// Flush pending spans.
	if err := a.tracerShutdown(shutdownCtx); err != nil {
		a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
	}

	a.logger.Info("application shutdown complete")
	return nil
}
