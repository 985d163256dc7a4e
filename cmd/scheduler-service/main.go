package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/curatewise/platform/pkg/common/config"
	"github.com/curatewise/platform/pkg/common/database"
	"github.com/curatewise/platform/pkg/common/httpclient"
	"github.com/curatewise/platform/pkg/common/kafka"
	"github.com/curatewise/platform/pkg/common/logger"
	"github.com/curatewise/platform/pkg/connectors"
	"github.com/curatewise/platform/pkg/content"
	"github.com/curatewise/platform/pkg/crawler"
	"github.com/curatewise/platform/pkg/sources"
	"github.com/robfig/cron/v3"
)

func main() {
	logger.Init("scheduler-service")
	cfg := config.Load()

	db, err := database.GetPostgres()
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to connect to postgres")
	}

	sourceRepo := sources.NewRepository(db)
	contentRepo := content.NewRepository(db)
	logRepo := crawler.NewLogRepository(db)
	scheduleRepo := crawler.NewScheduleRepository(db)

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

	scheduler := cron.New()

	if _, err := scheduler.AddFunc(cfg.HourlySweepSpec, func() {
		logger.Log.Info("starting hourly due-tenant sweep")
		orchestrator.CrawlDueTenants(ctx, false)
	}); err != nil {
		logger.Log.WithError(err).Fatal("invalid hourly sweep spec")
	}

	if _, err := scheduler.AddFunc(cfg.DailySweepSpec, func() {
		logger.Log.Info("starting daily full sweep")
		orchestrator.CrawlDueTenants(ctx, true)
	}); err != nil {
		logger.Log.WithError(err).Fatal("invalid daily sweep spec")
	}

	scheduler.Start()
	logger.Log.WithFields(map[string]interface{}{
		"hourly": cfg.HourlySweepSpec,
		"daily":  cfg.DailySweepSpec,
	}).Info("Scheduler Service started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down Scheduler Service...")
	cancel()
	<-scheduler.Stop().Done()

	database.CloseRedis()
	database.ClosePostgres()

	logger.Log.Info("Scheduler Service stopped")
}
