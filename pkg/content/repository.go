package content

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrDuplicate = errors.New("duplicate content item")

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&Item{})
}

// Exists reports whether an item with the given URL was already ingested for
// the source. Items without a URL are never considered existing.
func (r *Repository) Exists(ctx context.Context, sourceID, url string) (bool, error) {
	if url == "" {
		return false, nil
	}
	var count int64
	err := r.db.WithContext(ctx).Model(&Item{}).
		Where("source_id = ? AND dedup_key = ?", sourceID, url).
		Count(&count).Error
	return count > 0, err
}

// Insert persists a new item. The dedup check and the write are a single
// conflict-ignoring statement, so concurrent crawls of one source cannot race
// to insert the same URL twice. Returns ErrDuplicate when the (source_id, url)
// pair already exists.
func (r *Repository) Insert(ctx context.Context, item *Item) error {
	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	if item.FetchedAt.IsZero() {
		item.FetchedAt = time.Now().UTC()
	}
	item.CreatedAt = time.Now().UTC()
	if item.URL != "" {
		item.DedupKey = item.URL
	} else {
		item.DedupKey = item.ID
	}

	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "source_id"}, {Name: "dedup_key"}},
			DoNothing: true,
		}).
		Create(item)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrDuplicate
	}
	return nil
}

// Query returns items for the given sources published at or after since,
// newest first. Items without a published timestamp are included when they
// were fetched inside the window.
func (r *Repository) Query(ctx context.Context, sourceIDs []string, since time.Time) ([]Item, error) {
	var items []Item
	err := r.db.WithContext(ctx).
		Where("source_id IN ?", sourceIDs).
		Where("published_at >= ? OR (published_at IS NULL AND fetched_at >= ?)", since, since).
		Order("published_at DESC NULLS LAST").
		Find(&items).Error
	return items, err
}

// DeleteBySource removes all items belonging to a source. Called when a
// source is deleted so content cascades with it.
func (r *Repository) DeleteBySource(ctx context.Context, sourceID string) error {
	return r.db.WithContext(ctx).Where("source_id = ?", sourceID).Delete(&Item{}).Error
}
