package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/clinic-booking-widget/cmd/mainconfig"
	"github.com/wolfman30/clinic-booking-widget/internal/app/bootstrap"
	appconfig "github.com/wolfman30/clinic-booking-widget/internal/config"
	"github.com/wolfman30/clinic-booking-widget/internal/notify"
	"github.com/wolfman30/clinic-booking-widget/internal/observability/metrics"
	"github.com/wolfman30/clinic-booking-widget/pkg/logging"
)

// notify-worker consumes the SQS notification queue and runs the fan-out
// outside the API process.
func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)

	if cfg.UseMemoryQueue {
		logger.Error("notify-worker requires USE_MEMORY_QUEUE=false and NOTIFY_QUEUE_URL")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	queue, _, err := bootstrap.BuildNotifyQueue(cfg, &awsCfg)
	if err != nil {
		logger.Error("failed to build notification queue", "error", err)
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	widgetMetrics := metrics.NewWidgetMetrics(reg)

	email, emailProvider := bootstrap.BuildEmailSender(cfg, &awsCfg, logger)
	sms, smsProvider := bootstrap.BuildSMSSender(cfg, logger)
	service := notify.NewService(email, sms, widgetMetrics, logger)

	worker := notify.NewWorker(service, queue, logger, notify.WithWorkerCount(cfg.NotifyWorkerCount))
	worker.Start(ctx)
	logger.Info("notification worker started",
		"workers", cfg.NotifyWorkerCount,
		"email_provider", emailProvider,
		"sms_provider", smsProvider,
	)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	srv := &http.Server{Addr: ":" + cfg.Port, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down notification worker...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	worker.Wait()
	logger.Info("notification worker stopped")
}
