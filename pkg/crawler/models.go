package crawler

import (
	"time"
)

const (
	LogStarted = "started"
	LogSuccess = "success"
	LogPartial = "partial"
	LogFailed  = "failed"
)

// CrawlLog records one crawl attempt for one source. Rows are append-only:
// the only update ever made is the transition from started to a terminal
// status.
type CrawlLog struct {
	ID           string     `json:"id" gorm:"primaryKey;column:id"`
	SourceID     string     `json:"source_id" gorm:"column:source_id;index"`
	TenantID     string     `json:"tenant_id" gorm:"column:tenant_id;index"`
	Status       string     `json:"status" gorm:"column:status"`
	ItemsFetched int        `json:"items_fetched" gorm:"column:items_fetched"`
	ItemsNew     int        `json:"items_new" gorm:"column:items_new"`
	DurationMS   int64      `json:"duration_ms" gorm:"column:duration_ms"`
	ErrorMessage string     `json:"error_message,omitempty" gorm:"column:error_message"`
	StartedAt    time.Time  `json:"started_at" gorm:"column:started_at;index"`
	CompletedAt  *time.Time `json:"completed_at,omitempty" gorm:"column:completed_at"`
}

func (CrawlLog) TableName() string {
	return "crawl_logs"
}

// BatchCrawlSchedule is the per-tenant crawl cadence record. IsCrawling
// guards against overlapping batch runs for the same tenant.
type BatchCrawlSchedule struct {
	TenantID                 string     `json:"tenant_id" gorm:"primaryKey;column:tenant_id"`
	FrequencyHours           int        `json:"frequency_hours" gorm:"column:frequency_hours"`
	LastBatchCrawlAt         *time.Time `json:"last_batch_crawl_at,omitempty" gorm:"column:last_batch_crawl_at"`
	NextScheduledCrawlAt     *time.Time `json:"next_scheduled_crawl_at,omitempty" gorm:"column:next_scheduled_crawl_at"`
	IsCrawling               bool       `json:"is_crawling" gorm:"column:is_crawling"`
	SourcesCrawledCount      int        `json:"sources_crawled_count" gorm:"column:sources_crawled_count"`
	SourcesFailedCount       int        `json:"sources_failed_count" gorm:"column:sources_failed_count"`
	LastCrawlDurationSeconds float64    `json:"last_crawl_duration_seconds" gorm:"column:last_crawl_duration_seconds"`
	CreatedAt                time.Time  `json:"created_at" gorm:"column:created_at"`
	UpdatedAt                time.Time  `json:"updated_at" gorm:"column:updated_at"`
}

func (BatchCrawlSchedule) TableName() string {
	return "batch_crawl_schedules"
}
