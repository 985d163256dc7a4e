package crawler

import (
	"context"
	"errors"
	"time"

	"github.com/curatewise/platform/pkg/common/logger"
	"github.com/curatewise/platform/pkg/common/models"
	"github.com/google/uuid"
)

// CrawlTenant runs one batch: every active source of the tenant, sequentially
// with an inter-source courtesy delay. One source failing never aborts the
// rest; failures land in the summary. Returns ErrBatchInProgress when the
// tenant's previous batch has not finished.
func (o *Orchestrator) CrawlTenant(ctx context.Context, tenantID string) (*models.BatchSummary, error) {
	if _, err := o.stores.Schedules.AcquireBatch(ctx, tenantID, o.opts.DefaultFrequencyHours); err != nil {
		return nil, err
	}

	startedAt := time.Now().UTC()
	crawled := 0
	failed := 0

	// The guard must always release, even when the batch is cut short.
	bookkeeping := context.WithoutCancel(ctx)
	defer func() {
		duration := time.Since(startedAt)
		if err := o.stores.Schedules.CompleteBatch(bookkeeping, tenantID, crawled, failed, duration); err != nil {
			logger.Log.WithError(err).WithField("tenant_id", tenantID).Error("failed to complete batch schedule")
		}
	}()

	batch, err := o.stores.Sources.ListActiveByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	logger.Log.WithFields(map[string]interface{}{
		"tenant_id": tenantID,
		"sources":   len(batch),
	}).Info("batch crawl started")

	for i := range batch {
		if ctx.Err() != nil {
			break
		}

		result, err := o.CrawlSource(ctx, &batch[i], uuid.New().String())
		switch {
		case errors.Is(err, ErrCrawlInProgress):
			// Another attempt owns this source right now; it is being
			// crawled, just not by us.
			crawled++
		case err != nil, result != nil && result.Status == LogFailed:
			failed++
		default:
			crawled++
		}

		if o.opts.InterSourceDelay > 0 && i < len(batch)-1 {
			select {
			case <-time.After(o.opts.InterSourceDelay):
			case <-ctx.Done():
			}
		}
	}

	completedAt := time.Now().UTC()
	summary := &models.BatchSummary{
		TenantID:       tenantID,
		SourcesCrawled: crawled,
		SourcesFailed:  failed,
		Duration:       completedAt.Sub(startedAt),
		StartedAt:      startedAt,
		CompletedAt:    completedAt,
	}
	if schedule, err := o.stores.Schedules.Get(bookkeeping, tenantID); err == nil && schedule != nil {
		frequency := schedule.FrequencyHours
		if frequency <= 0 {
			frequency = o.opts.DefaultFrequencyHours
		}
		summary.NextScheduledAt = completedAt.Add(time.Duration(frequency) * time.Hour)
	}

	if o.events != nil {
		payload := map[string]interface{}{
			"tenant_id":       tenantID,
			"sources_crawled": crawled,
			"sources_failed":  failed,
			"duration_ms":     summary.Duration.Milliseconds(),
		}
		if err := o.events.PublishEvent(bookkeeping, "crawl.completed", "batch", payload); err != nil {
			logger.Log.WithError(err).WithField("tenant_id", tenantID).Warn("failed to publish batch event")
		}
	}

	logger.Log.WithFields(map[string]interface{}{
		"tenant_id":       tenantID,
		"sources_crawled": crawled,
		"sources_failed":  failed,
		"duration":        summary.Duration.String(),
	}).Info("batch crawl completed")

	return summary, nil
}

// CrawlDueTenants sweeps every tenant owning active sources and batch-crawls
// the ones whose next scheduled run has arrived. force ignores the schedule,
// the daily sweep uses it as a catch-all. Tenants already mid-batch are
// skipped, not queued.
func (o *Orchestrator) CrawlDueTenants(ctx context.Context, force bool) {
	tenants, err := o.stores.Sources.ListTenantsWithActive(ctx)
	if err != nil {
		logger.Log.WithError(err).Error("failed to list tenants for sweep")
		return
	}

	now := time.Now().UTC()
	for _, tenantID := range tenants {
		if ctx.Err() != nil {
			return
		}

		if !force {
			schedule, err := o.stores.Schedules.Get(ctx, tenantID)
			if err != nil {
				logger.Log.WithError(err).WithField("tenant_id", tenantID).Warn("failed to load schedule")
				continue
			}
			if schedule != nil && schedule.NextScheduledCrawlAt != nil && schedule.NextScheduledCrawlAt.After(now) {
				continue
			}
		}

		if _, err := o.CrawlTenant(ctx, tenantID); err != nil {
			if errors.Is(err, ErrBatchInProgress) {
				logger.Log.WithField("tenant_id", tenantID).Info("batch already running, skipping")
				continue
			}
			logger.Log.WithError(err).WithField("tenant_id", tenantID).Error("batch crawl failed")
		}
	}
}
