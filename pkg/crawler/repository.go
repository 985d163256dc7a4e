package crawler

import (
	"context"
	"errors"
	"time"

	"github.com/curatewise/platform/pkg/common/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var ErrBatchInProgress = errors.New("batch crawl already in progress for tenant")

type LogRepository struct {
	db *gorm.DB
}

func NewLogRepository(db *gorm.DB) *LogRepository {
	return &LogRepository{db: db}
}

func (r *LogRepository) AutoMigrate() error {
	return r.db.AutoMigrate(&CrawlLog{})
}

func (r *LogRepository) Start(ctx context.Context, log *CrawlLog) error {
	if log.ID == "" {
		log.ID = uuid.New().String()
	}
	log.Status = LogStarted
	log.StartedAt = time.Now().UTC()
	return r.db.WithContext(ctx).Create(log).Error
}

// Complete transitions a started log row to its terminal status.
func (r *LogRepository) Complete(ctx context.Context, id, status string, fetched, inserted int, errMsg string) error {
	now := time.Now().UTC()
	return r.db.WithContext(ctx).Model(&CrawlLog{}).
		Where("id = ? AND status = ?", id, LogStarted).
		Updates(map[string]interface{}{
			"status":        status,
			"items_fetched": fetched,
			"items_new":     inserted,
			"error_message": errMsg,
			"completed_at":  now,
			"duration_ms":   gorm.Expr("(EXTRACT(EPOCH FROM (?::timestamptz - started_at)) * 1000)::bigint", now),
		}).Error
}

func (r *LogRepository) ListByTenant(ctx context.Context, tenantID, sourceID string, limit int) ([]CrawlLog, error) {
	query := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID)
	if sourceID != "" {
		query = query.Where("source_id = ?", sourceID)
	}
	if limit <= 0 {
		limit = 100
	}

	var logs []CrawlLog
	err := query.Order("started_at DESC").Limit(limit).Find(&logs).Error
	return logs, err
}

// Stats aggregates a tenant's crawl history by summing over log rows.
func (r *LogRepository) Stats(ctx context.Context, tenantID string) (*models.CrawlStats, error) {
	stats := &models.CrawlStats{TenantID: tenantID}

	row := r.db.WithContext(ctx).Model(&CrawlLog{}).
		Where("tenant_id = ?", tenantID).
		Select(
			"COUNT(*)",
			"COUNT(*) FILTER (WHERE status = 'success')",
			"COUNT(*) FILTER (WHERE status = 'partial')",
			"COUNT(*) FILTER (WHERE status = 'failed')",
			"COALESCE(SUM(items_fetched), 0)",
			"COALESCE(SUM(items_new), 0)",
		).Row()

	err := row.Scan(&stats.TotalCrawls, &stats.Succeeded, &stats.Partial,
		&stats.Failed, &stats.ItemsFetched, &stats.ItemsNew)
	return stats, err
}

// FailStale marks started rows older than the cutoff as failed. Run at
// startup so a crash never leaves an attempt wedged in started.
func (r *LogRepository) FailStale(ctx context.Context, cutoff time.Duration) (int64, error) {
	result := r.db.WithContext(ctx).Model(&CrawlLog{}).
		Where("status = ? AND started_at < ?", LogStarted, time.Now().UTC().Add(-cutoff)).
		Updates(map[string]interface{}{
			"status":        LogFailed,
			"error_message": "crawl interrupted",
			"completed_at":  time.Now().UTC(),
		})
	return result.RowsAffected, result.Error
}

type ScheduleRepository struct {
	db *gorm.DB
}

func NewScheduleRepository(db *gorm.DB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

func (r *ScheduleRepository) AutoMigrate() error {
	return r.db.AutoMigrate(&BatchCrawlSchedule{})
}

func (r *ScheduleRepository) Get(ctx context.Context, tenantID string) (*BatchCrawlSchedule, error) {
	var schedule BatchCrawlSchedule
	result := r.db.WithContext(ctx).First(&schedule, "tenant_id = ?", tenantID)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &schedule, result.Error
}

// AcquireBatch flips is_crawling from false to true, creating the schedule
// row lazily on a tenant's first run. The conditional update makes the guard
// atomic: a second acquire while a run is in flight gets ErrBatchInProgress.
func (r *ScheduleRepository) AcquireBatch(ctx context.Context, tenantID string, defaultFrequencyHours int) (*BatchCrawlSchedule, error) {
	result := r.db.WithContext(ctx).Model(&BatchCrawlSchedule{}).
		Where("tenant_id = ? AND is_crawling = ?", tenantID, false).
		Updates(map[string]interface{}{
			"is_crawling": true,
			"updated_at":  time.Now().UTC(),
		})
	if result.Error != nil {
		return nil, result.Error
	}

	if result.RowsAffected == 0 {
		existing, err := r.Get(ctx, tenantID)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return nil, ErrBatchInProgress
		}

		schedule := &BatchCrawlSchedule{
			TenantID:       tenantID,
			FrequencyHours: defaultFrequencyHours,
			IsCrawling:     true,
			CreatedAt:      time.Now().UTC(),
			UpdatedAt:      time.Now().UTC(),
		}
		if err := r.db.WithContext(ctx).Create(schedule).Error; err != nil {
			// Lost the creation race to a concurrent batch run.
			return nil, ErrBatchInProgress
		}
		return schedule, nil
	}

	return r.Get(ctx, tenantID)
}

// CompleteBatch releases the tenant guard and records the run's outcome.
func (r *ScheduleRepository) CompleteBatch(ctx context.Context, tenantID string, crawled, failed int, duration time.Duration) error {
	now := time.Now().UTC()

	schedule, err := r.Get(ctx, tenantID)
	if err != nil {
		return err
	}
	frequency := 24
	if schedule != nil && schedule.FrequencyHours > 0 {
		frequency = schedule.FrequencyHours
	}
	next := now.Add(time.Duration(frequency) * time.Hour)

	return r.db.WithContext(ctx).Model(&BatchCrawlSchedule{}).
		Where("tenant_id = ?", tenantID).
		Updates(map[string]interface{}{
			"is_crawling":                 false,
			"last_batch_crawl_at":         now,
			"next_scheduled_crawl_at":     next,
			"sources_crawled_count":       crawled,
			"sources_failed_count":        failed,
			"last_crawl_duration_seconds": duration.Seconds(),
			"updated_at":                  now,
		}).Error
}
