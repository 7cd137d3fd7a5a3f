package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Entry is one append-only audit record. Entries are never updated or
// deleted.
type Entry struct {
	ID         snowflake.ID      `json:"id" gorm:"primaryKey"`
	ActorType  string            `json:"actor_type" gorm:"type:text;not null"`
	ActorID    string            `json:"actor_id" gorm:"type:text"`
	Action     string            `json:"action" gorm:"type:text;not null;index"`
	TargetType string            `json:"target_type" gorm:"type:text;not null"`
	TargetID   *string           `json:"target_id" gorm:"type:text;index"`
	Metadata   datatypes.JSONMap `json:"metadata" gorm:"not null"`
	CreatedAt  time.Time         `json:"created_at" gorm:"not null;index"`
}

func (Entry) TableName() string { return "audit_logs" }

type ListRequest struct {
	TargetID string
	Action   string
	Limit    int
}

type Service interface {
	AuditLog(ctx context.Context, actorType string, actorID string, action string, targetType string, targetID *string, metadata map[string]any) error
	List(ctx context.Context, req ListRequest) ([]Entry, error)
}
