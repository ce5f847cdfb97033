package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/clinic-booking-widget/cmd/mainconfig"
	"github.com/wolfman30/clinic-booking-widget/internal/api/router"
	"github.com/wolfman30/clinic-booking-widget/internal/app/bootstrap"
	"github.com/wolfman30/clinic-booking-widget/internal/bookings"
	appconfig "github.com/wolfman30/clinic-booking-widget/internal/config"
	"github.com/wolfman30/clinic-booking-widget/internal/conversation"
	"github.com/wolfman30/clinic-booking-widget/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/clinic-booking-widget/internal/http/middleware"
	"github.com/wolfman30/clinic-booking-widget/internal/notify"
	"github.com/wolfman30/clinic-booking-widget/internal/observability/metrics"
	"github.com/wolfman30/clinic-booking-widget/internal/widget"
	"github.com/wolfman30/clinic-booking-widget/internal/widgetauth"
	"github.com/wolfman30/clinic-booking-widget/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	// Load configuration
	cfg := appconfig.Load()

	// Initialize logger
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting clinic booking widget API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)
	if cfg.WidgetSigningSecret == "" {
		logger.Warn("WIDGET_SIGNING_SECRET is empty; every widget request will be rejected")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := bootstrap.BuildPostgresPool(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}

	metricsHandler, widgetMetrics := setupMetrics()

	notifier, worker, err := setupNotifications(ctx, cfg, widgetMetrics, logger)
	if err != nil {
		logger.Error("failed to set up notifications", "error", err)
		os.Exit(1)
	}

	directory := bootstrap.BuildDirectory(pool, cfg)
	engine := bookings.NewEngine(directory, bookings.NewPostgresStore(pool), bookings.Options{
		SlotLength:  cfg.SlotLength(),
		HorizonDays: cfg.HorizonDays,
		Cutoff:      cfg.ModifyCutoff,
		Locker:      bootstrap.BuildLocker(cfg, redisClient, logger),
		Notifier:    notifier,
		Metrics:     widgetMetrics,
		Logger:      logger,
	})
	widgetHandler := widget.NewHandler(widget.Config{
		Directory:   directory,
		Engine:      engine,
		Guard:       conversation.NewGuard(logger, widgetMetrics),
		Counters:    bootstrap.BuildCounterStore(cfg, redisClient, logger),
		Notifier:    notifier,
		HorizonDays: cfg.HorizonDays,
		Logger:      logger,
	})

	signer := widgetauth.NewSigner(cfg.WidgetSigningSecret)
	limiter := httpmiddleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	go limiter.Run(ctx, time.Minute)

	// Setup router
	r := router.New(&router.Config{
		Logger:             logger,
		Widget:             widgetHandler,
		Signer:             signer,
		Health:             setupHealth(pool, redisClient, logger),
		WidgetTokens:       handlers.NewWidgetTokenHandler(signer, directory, publicBaseURL(cfg), logger),
		RateLimiter:        limiter,
		AdminAuthSecret:    cfg.AdminJWTSecret,
		MetricsHandler:     metricsHandler,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	if worker != nil {
		worker.Wait()
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

// setupMetrics registers the widget collectors plus the Go and process
// collectors on a private registry.
func setupMetrics() (http.Handler, *metrics.WidgetMetrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	widgetMetrics := metrics.NewWidgetMetrics(reg)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), widgetMetrics
}

type pinger interface {
	Ping(ctx context.Context) error
}

func setupHealth(db pinger, redisClient *redis.Client, logger *logging.Logger) *handlers.HealthHandler {
	health := handlers.NewHealthHandler(logger)
	if db != nil {
		health.AddCheck("postgres", db.Ping)
	}
	if redisClient != nil {
		health.AddCheck("redis", func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}
	return health
}

// setupNotifications returns the notifier handed to the engine and widget
// handler. With the memory queue the fan-out worker runs in this process;
// with SQS a separate notify-worker consumes the queue.
func setupNotifications(ctx context.Context, cfg *appconfig.Config, m *metrics.WidgetMetrics, logger *logging.Logger) (bookings.Notifier, *notify.Worker, error) {
	var awsCfg *aws.Config
	if mainconfig.NeedsAWS(cfg) {
		loaded, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("load aws config: %w", err)
		}
		awsCfg = &loaded
	}

	queue, queueKind, err := bootstrap.BuildNotifyQueue(cfg, awsCfg)
	if err != nil {
		return nil, nil, err
	}
	publisher := notify.NewPublisher(queue, logger)
	logger.Info("notification queue ready", "queue", queueKind)

	if queueKind != "memory" {
		return publisher, nil, nil
	}

	email, emailProvider := bootstrap.BuildEmailSender(cfg, awsCfg, logger)
	sms, smsProvider := bootstrap.BuildSMSSender(cfg, logger)
	service := notify.NewService(email, sms, m, logger)
	worker := notify.NewWorker(service, queue, logger,
		notify.WithWorkerCount(cfg.NotifyWorkerCount),
		notify.WithReceiveWaitSeconds(1),
	)
	worker.Start(ctx)
	logger.Info("in-process notification workers started",
		"workers", cfg.NotifyWorkerCount,
		"email_provider", emailProvider,
		"sms_provider", smsProvider,
	)
	return publisher, worker, nil
}

func publicBaseURL(cfg *appconfig.Config) string {
	if cfg.PublicBaseURL != "" {
		return cfg.PublicBaseURL
	}
	return "http://localhost:" + cfg.Port
}
