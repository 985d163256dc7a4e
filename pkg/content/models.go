package content

import (
	"time"

	"gorm.io/datatypes"
)

// Item is the normalized unit of ingested data. Items are created by the
// crawl orchestrator or the push-ingestion path and never mutated afterwards.
type Item struct {
	ID          string            `json:"id" gorm:"primaryKey;column:id"`
	SourceID    string            `json:"source_id" gorm:"column:source_id;index;uniqueIndex:idx_content_dedup"`
	ContentType string            `json:"content_type" gorm:"column:content_type"`
	Title       string            `json:"title" gorm:"column:title"`
	Body        string            `json:"body" gorm:"column:body;type:text"`
	URL         string            `json:"url,omitempty" gorm:"column:url"`
	PublishedAt *time.Time        `json:"published_at,omitempty" gorm:"column:published_at;index"`
	FetchedAt   time.Time         `json:"fetched_at" gorm:"column:fetched_at"`
	Metadata    datatypes.JSONMap `json:"metadata,omitempty" gorm:"column:metadata"`

	// DedupKey is the URL when one exists, otherwise the item id. Rows are
	// unique on (source_id, dedup_key), which makes URL-less items always
	// insertable while URL-bearing ones dedup per source.
	DedupKey  string    `json:"-" gorm:"column:dedup_key;uniqueIndex:idx_content_dedup"`
	CreatedAt time.Time `json:"created_at" gorm:"column:created_at"`
}

func (Item) TableName() string {
	return "content_items"
}
