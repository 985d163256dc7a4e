package models

import (
	"time"
)

// Event is the envelope for everything published to or consumed from Kafka.
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"` // content.ingested, crawl.completed, crawl.requested
	Source    string                 `json:"source"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]string      `json:"metadata,omitempty"`
}

// CrawlRequest is the payload of a crawl.requested event. Exactly one of
// SourceID and TenantID is set: a source id requests a single-source crawl,
// a tenant id requests a batch run.
type CrawlRequest struct {
	SourceID string `json:"source_id,omitempty"`
	TenantID string `json:"tenant_id,omitempty"`
}

// TriggerResponse is returned by the crawl trigger endpoints.
type TriggerResponse struct {
	AttemptID string    `json:"attempt_id"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// SourceHealth is the status projection served to dashboard collaborators.
type SourceHealth struct {
	SourceID      string     `json:"source_id"`
	Status        string     `json:"status"`
	LastCrawledAt *time.Time `json:"last_crawled_at,omitempty"`
	ErrorMessage  string     `json:"error_message,omitempty"`
}

// FieldSpec describes one credential or config field a connector needs.
// Upstream CRUD collaborators render credential-entry forms from these.
type FieldSpec struct {
	Name     string `json:"name"`
	Label    string `json:"label"`
	Required bool   `json:"required"`
	Secret   bool   `json:"secret"`
}

// SourceTypeSchema enumerates one registered source type and its field
// requirements.
type SourceTypeSchema struct {
	Type             string      `json:"type"`
	CredentialFields []FieldSpec `json:"credential_fields"`
	ConfigFields     []FieldSpec `json:"config_fields"`
}

// CrawlStats is the per-tenant aggregate derived by summing crawl logs.
type CrawlStats struct {
	TenantID     string `json:"tenant_id"`
	TotalCrawls  int64  `json:"total_crawls"`
	Succeeded    int64  `json:"succeeded"`
	Partial      int64  `json:"partial"`
	Failed       int64  `json:"failed"`
	ItemsFetched int64  `json:"items_fetched"`
	ItemsNew     int64  `json:"items_new"`
}

// BatchSummary reports the outcome of one tenant batch run.
type BatchSummary struct {
	TenantID        string        `json:"tenant_id"`
	SourcesCrawled  int           `json:"sources_crawled"`
	SourcesFailed   int           `json:"sources_failed"`
	Duration        time.Duration `json:"duration"`
	StartedAt       time.Time     `json:"started_at"`
	CompletedAt     time.Time     `json:"completed_at"`
	NextScheduledAt time.Time     `json:"next_scheduled_at"`
}
