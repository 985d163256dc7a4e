package crawler

import (
	"context"
	"time"

	"github.com/curatewise/platform/pkg/content"
	"github.com/curatewise/platform/pkg/sources"
)

// The orchestrator depends on narrow store contracts rather than the concrete
// repositories so tests can run it against in-memory fakes.

type SourceStore interface {
	Get(ctx context.Context, id string) (*sources.Source, error)
	ListActiveByTenant(ctx context.Context, tenantID string) ([]sources.Source, error)
	ListTenantsWithActive(ctx context.Context) ([]string, error)
	SetStatus(ctx context.Context, id, status, errMsg string) error
	MarkCrawled(ctx context.Context, id string, at time.Time) error
	UpdateConfig(ctx context.Context, id string, cfg map[string]interface{}) error
}

type ContentStore interface {
	Exists(ctx context.Context, sourceID, url string) (bool, error)
	Insert(ctx context.Context, item *content.Item) error
}

type LogStore interface {
	Start(ctx context.Context, log *CrawlLog) error
	Complete(ctx context.Context, id, status string, fetched, inserted int, errMsg string) error
}

type ScheduleStore interface {
	Get(ctx context.Context, tenantID string) (*BatchCrawlSchedule, error)
	AcquireBatch(ctx context.Context, tenantID string, defaultFrequencyHours int) (*BatchCrawlSchedule, error)
	CompleteBatch(ctx context.Context, tenantID string, crawled, failed int, duration time.Duration) error
}

// Locker serializes crawl attempts per source id across processes.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// EventPublisher pushes ingestion events to downstream collaborators.
type EventPublisher interface {
	PublishEvent(ctx context.Context, eventType, source string, data map[string]interface{}) error
}
