package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/curatewise/platform/pkg/common/config"
	"github.com/curatewise/platform/pkg/common/database"
	"github.com/curatewise/platform/pkg/common/httpclient"
	"github.com/curatewise/platform/pkg/common/kafka"
	"github.com/curatewise/platform/pkg/common/logger"
	"github.com/curatewise/platform/pkg/common/middleware"
	"github.com/curatewise/platform/pkg/connectors"
	"github.com/curatewise/platform/pkg/content"
	"github.com/curatewise/platform/pkg/crawler"
	"github.com/curatewise/platform/pkg/observability/metrics"
	"github.com/curatewise/platform/pkg/sources"
	"github.com/curatewise/platform/pkg/webhook"
	"github.com/gorilla/mux"
)

func main() {
	logger.Init("crawler-service")
	cfg := config.Load()

	db, err := database.GetPostgres()
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to connect to postgres")
	}

	sourceRepo := sources.NewRepository(db)
	contentRepo := content.NewRepository(db)
	logRepo := crawler.NewLogRepository(db)
	scheduleRepo := crawler.NewScheduleRepository(db)

	for _, migrate := range []func() error{
		sourceRepo.AutoMigrate,
		contentRepo.AutoMigrate,
		logRepo.AutoMigrate,
		scheduleRepo.AutoMigrate,
	} {
		if err := migrate(); err != nil {
			logger.Log.WithError(err).Fatal("failed to migrate database")
		}
	}

	limits, err := connectors.LoadLimits(cfg.ConnectorLimitsPath)
	if err != nil {
		logger.Log.WithError(err).Warn("falling back to default connector limits")
		limits = connectors.DefaultLimits()
	}
	limits.ApplyDefaultMaxItems(cfg.DefaultMaxItems)

	registry, err := connectors.NewRegistry()
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to build connector registry")
	}

	contentProducer := kafka.NewProducer(cfg.KafkaContentTopic)
	defer contentProducer.Close()
	crawlProducer := kafka.NewProducer(cfg.KafkaCrawlTopic)
	defer crawlProducer.Close()

	events := &kafka.EventRouter{Content: contentProducer, Crawl: crawlProducer}
	if cfg.KafkaDLQTopic != "" {
		dlqProducer := kafka.NewProducer(cfg.KafkaDLQTopic)
		defer dlqProducer.Close()
		events.DLQ = dlqProducer
	}

	orchestrator := crawler.NewOrchestrator(
		registry,
		connectors.Deps{Client: httpclient.New(cfg.FetchTimeout), Limits: limits},
		crawler.Stores{
			Sources:   sourceRepo,
			Content:   contentRepo,
			Logs:      logRepo,
			Schedules: scheduleRepo,
		},
		crawler.NewRedisLocker(database.GetRedis()),
		events,
		crawler.Options{
			DefaultFrequencyHours: cfg.DefaultFrequencyHours,
			InterSourceDelay:      cfg.InterSourceDelay,
			SourceLockTTL:         cfg.SourceLockTTL,
			RateLimitRetryCeiling: cfg.RateLimitRetryCeiling,
		},
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if n, err := logRepo.FailStale(ctx, cfg.StaleLogCutoff); err != nil {
		logger.Log.WithError(err).Warn("failed to fail stale crawl logs")
	} else if n > 0 {
		logger.Log.WithField("count", n).Warn("marked interrupted crawl attempts as failed")
	}

	router := mux.NewRouter()
	router.Use(middleware.Recovery, middleware.Logging)
	router.Use(middleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst))
	router.Use(middleware.BodyLimit(cfg.MaxRequestBody))

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	}).Methods(http.MethodGet)

	router.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ready"}`))
	}).Methods(http.MethodGet)

	router.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		metrics.WritePrometheus(w)
	}).Methods(http.MethodGet)

	api := router.PathPrefix("/api/v1").Subrouter()
	content.NewHTTPHandler(contentRepo).Register(api)
	sources.NewHTTPHandler(sourceRepo, contentRepo, registry).Register(api)
	crawler.NewHTTPHandler(orchestrator, logRepo, scheduleRepo).Register(api)
	webhook.NewHTTPHandler(sourceRepo, contentRepo, events, cfg.WebhookSignatureHeader, cfg.MaxRequestBody).Register(api)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"host": cfg.ServerHost,
			"port": cfg.ServerPort,
		}).Info("Crawler Service started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("failed to start server")
		}
	}()

	consumer := kafka.NewConsumer(cfg.KafkaCrawlRequests, cfg.KafkaGroupID)
	defer consumer.Close()
	go func() {
		if err := consumer.Consume(ctx, orchestrator.HandleCrawlRequest); err != nil && ctx.Err() == nil {
			logger.Log.WithError(err).Error("crawl request consumer stopped")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down Crawler Service...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Log.WithError(err).Error("server forced to shutdown")
	}

	database.CloseRedis()
	database.ClosePostgres()

	logger.Log.Info("Crawler Service stopped")
}
