package remotesync

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	OpFetch = "fetch"
	OpPush  = "push"
)

// SyncLog is one exchange with the peer registry.
type SyncLog struct {
	ID         string            `gorm:"primaryKey;size:36" json:"id"`
	Operation  string            `gorm:"size:16;index" json:"operation"`
	Identifier string            `gorm:"size:64;index" json:"identifier,omitempty"`
	Peer       string            `gorm:"size:255" json:"peer"`
	Outcome    string            `gorm:"size:32;index" json:"outcome"`
	PersonID   uint              `json:"person_id,omitempty"`
	Request    datatypes.JSONMap `gorm:"type:jsonb" json:"request,omitempty"`
	Response   datatypes.JSONMap `gorm:"type:jsonb" json:"response,omitempty"`
	Error      string            `json:"error,omitempty"`
	DurationMS int64             `json:"duration_ms"`
	CreatedAt  time.Time         `gorm:"index" json:"created_at"`
}

func (SyncLog) TableName() string {
	return "remote_sync_log"
}

// Recorder stores sync attempts. Failures to record never fail the exchange.
type Recorder interface {
	Record(ctx context.Context, entry *SyncLog) error
}

type Journal struct {
	db *gorm.DB
}

func NewJournal(db *gorm.DB) *Journal {
	return &Journal{db: db}
}

func (j *Journal) AutoMigrate() error {
	return j.db.AutoMigrate(&SyncLog{})
}

func (j *Journal) Record(ctx context.Context, entry *SyncLog) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	return j.db.WithContext(ctx).Create(entry).Error
}

func (j *Journal) Recent(ctx context.Context, limit int) ([]SyncLog, error) {
	if limit <= 0 {
		limit = 100
	}
	var logs []SyncLog
	result := j.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&logs)
	return logs, result.Error
}

// Cleanup drops entries older than ttl.
func (j *Journal) Cleanup(ctx context.Context, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	cutoff := time.Now().UTC().Add(-ttl)
	return j.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&SyncLog{}).Error
}
