package sources

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var ErrNotFound = errors.New("source not found")

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&Source{})
}

func (r *Repository) Create(ctx context.Context, src *Source) error {
	if src.ID == "" {
		src.ID = uuid.New().String()
	}
	if src.Status == "" {
		src.Status = StatusPending
	}
	src.CreatedAt = time.Now().UTC()
	src.UpdatedAt = src.CreatedAt
	return r.db.WithContext(ctx).Create(src).Error
}

func (r *Repository) Get(ctx context.Context, id string) (*Source, error) {
	var src Source
	result := r.db.WithContext(ctx).First(&src, "id = ?", id)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	return &src, result.Error
}

func (r *Repository) ListByTenant(ctx context.Context, tenantID string) ([]Source, error) {
	var out []Source
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("created_at ASC").
		Find(&out).Error
	return out, err
}

// ListActiveByTenant returns the sources a batch run sweeps for one tenant.
func (r *Repository) ListActiveByTenant(ctx context.Context, tenantID string) ([]Source, error) {
	var out []Source
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND status = ?", tenantID, StatusActive).
		Order("created_at ASC").
		Find(&out).Error
	return out, err
}

// ListTenantsWithActive returns the distinct tenant ids that currently own at
// least one active source.
func (r *Repository) ListTenantsWithActive(ctx context.Context) ([]string, error) {
	var tenants []string
	err := r.db.WithContext(ctx).Model(&Source{}).
		Where("status = ?", StatusActive).
		Distinct().
		Pluck("tenant_id", &tenants).Error
	return tenants, err
}

// SetStatus transitions a source's lifecycle status. The error message is
// stored on failures and cleared otherwise.
func (r *Repository) SetStatus(ctx context.Context, id, status, errMsg string) error {
	return r.db.WithContext(ctx).Model(&Source{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":        status,
			"error_message": errMsg,
			"updated_at":    time.Now().UTC(),
		}).Error
}

// MarkCrawled advances the source's delta window.
func (r *Repository) MarkCrawled(ctx context.Context, id string, at time.Time) error {
	return r.db.WithContext(ctx).Model(&Source{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"last_crawled_at": at,
			"updated_at":      time.Now().UTC(),
		}).Error
}

// UpdateConfig persists connector-side config mutations, e.g. a resolved
// channel id, so later crawls skip the resolution step.
func (r *Repository) UpdateConfig(ctx context.Context, id string, cfg map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&Source{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"config":     datatypes.JSONMap(cfg),
			"updated_at": time.Now().UTC(),
		}).Error
}

// Reactivate is the operator action that returns an errored source to active.
func (r *Repository) Reactivate(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Model(&Source{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":        StatusActive,
			"error_message": "",
			"updated_at":    time.Now().UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Delete(&Source{}, "id = ?", id).Error
}
