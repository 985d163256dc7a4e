package sources

import (
	"time"

	"gorm.io/datatypes"
)

const (
	StatusPending = "pending"
	StatusActive  = "active"
	StatusError   = "error"
)

// Source is a tenant-owned configured connection to one external content
// provider. Config and Credentials are opaque to everything outside the
// connector for the source's type.
type Source struct {
	ID            string            `json:"id" gorm:"primaryKey;column:id"`
	TenantID      string            `json:"tenant_id" gorm:"column:tenant_id;index"`
	SourceType    string            `json:"source_type" gorm:"column:source_type"`
	Name          string            `json:"name" gorm:"column:name"`
	URL           string            `json:"url,omitempty" gorm:"column:url"`
	Config        datatypes.JSONMap `json:"config" gorm:"column:config"`
	Credentials   datatypes.JSONMap `json:"-" gorm:"column:credentials"`
	Status        string            `json:"status" gorm:"column:status;index"`
	LastCrawledAt *time.Time        `json:"last_crawled_at,omitempty" gorm:"column:last_crawled_at"`
	ErrorMessage  string            `json:"error_message,omitempty" gorm:"column:error_message"`
	MaxItems      int               `json:"max_items,omitempty" gorm:"column:max_items"`
	CreatedAt     time.Time         `json:"created_at" gorm:"column:created_at"`
	UpdatedAt     time.Time         `json:"updated_at" gorm:"column:updated_at"`
}

func (Source) TableName() string {
	return "sources"
}

// ConfigString returns a string-valued config entry, empty when absent.
func (s *Source) ConfigString(key string) string {
	if s.Config == nil {
		return ""
	}
	if v, ok := s.Config[key].(string); ok {
		return v
	}
	return ""
}

// CredentialString returns a string-valued credential entry, empty when absent.
func (s *Source) CredentialString(key string) string {
	if s.Credentials == nil {
		return ""
	}
	if v, ok := s.Credentials[key].(string); ok {
		return v
	}
	return ""
}
