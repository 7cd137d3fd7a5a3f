package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/mesaops/comanda/internal/audit/domain"
	"github.com/mesaops/comanda/internal/clock"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
}

func NewService(p Params) *Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("audit.service"),
		genID: p.GenID,
		clock: p.Clock,
	}
}

func (s *Service) AuditLog(ctx context.Context, actorType string, actorID string, action string, targetType string, targetID *string, metadata map[string]any) error {
	action = strings.TrimSpace(action)
	if action == "" {
		return nil
	}
	if metadata == nil {
		metadata = map[string]any{}
	}

	entry := auditdomain.Entry{
		ID:         s.genID.Generate(),
		ActorType:  strings.TrimSpace(actorType),
		ActorID:    strings.TrimSpace(actorID),
		Action:     action,
		TargetType: strings.TrimSpace(targetType),
		TargetID:   targetID,
		Metadata:   datatypes.JSONMap(metadata),
		CreatedAt:  s.clock.Now(),
	}
	if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
		// The audit trail must never fail the operation it describes.
		s.log.Warn("failed to write audit log", zap.String("action", action), zap.Error(err))
	}
	return nil
}

func (s *Service) List(ctx context.Context, req auditdomain.ListRequest) ([]auditdomain.Entry, error) {
	limit := req.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	stmt := s.db.WithContext(ctx).Order("created_at DESC").Limit(limit)
	if target := strings.TrimSpace(req.TargetID); target != "" {
		stmt = stmt.Where("target_id = ?", target)
	}
	if action := strings.TrimSpace(req.Action); action != "" {
		stmt = stmt.Where("action = ?", action)
	}

	var entries []auditdomain.Entry
	err := stmt.Find(&entries).Error
	return entries, err
}

var _ auditdomain.Service = (*Service)(nil)
