package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/mesaops/comanda/internal/clock"
	tabledomain "github.com/mesaops/comanda/internal/table/domain"
	"github.com/mesaops/comanda/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
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
		log:   p.Log.Named("table.service"),
		genID: p.GenID,
		clock: p.Clock,
	}
}

func (s *Service) Create(ctx context.Context, req tabledomain.CreateTableRequest) (tabledomain.Table, error) {
	code := strings.ToUpper(strings.TrimSpace(req.Code))
	if code == "" {
		return tabledomain.Table{}, tabledomain.ErrInvalidCode
	}
	if req.Capacity < 1 {
		return tabledomain.Table{}, tabledomain.ErrInvalidCapacity
	}

	now := s.clock.Now()
	table := tabledomain.Table{
		ID:        s.genID.Generate(),
		Code:      code,
		Capacity:  req.Capacity,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.db.WithContext(ctx).Create(&table).Error; err != nil {
		if db.IsDuplicateKeyErr(err) {
			return tabledomain.Table{}, tabledomain.ErrDuplicateCode
		}
		return tabledomain.Table{}, err
	}
	return table, nil
}

func (s *Service) List(ctx context.Context) ([]tabledomain.Table, error) {
	var tables []tabledomain.Table
	err := s.db.WithContext(ctx).Order("code").Find(&tables).Error
	return tables, err
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (tabledomain.Table, error) {
	var table tabledomain.Table
	err := s.db.WithContext(ctx).First(&table, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return tabledomain.Table{}, tabledomain.ErrNotFound
		}
		return tabledomain.Table{}, err
	}
	return table, nil
}

func (s *Service) Occupy(ctx context.Context, id snowflake.ID) (tabledomain.Table, error) {
	return s.setOccupied(ctx, id, true)
}

func (s *Service) Release(ctx context.Context, id snowflake.ID) (tabledomain.Table, error) {
	return s.setOccupied(ctx, id, false)
}

func (s *Service) setOccupied(ctx context.Context, id snowflake.ID, occupied bool) (tabledomain.Table, error) {
	var table tabledomain.Table
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := db.LockForUpdate(tx).First(&table, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return tabledomain.ErrNotFound
			}
			return err
		}
		if table.Occupied == occupied {
			if occupied {
				return tabledomain.ErrAlreadyOccupied
			}
			return tabledomain.ErrNotOccupied
		}
		table.Occupied = occupied
		table.UpdatedAt = s.clock.Now()
		return tx.Save(&table).Error
	})
	if err != nil {
		return tabledomain.Table{}, err
	}
	return table, nil
}

var _ tabledomain.Service = (*Service)(nil)
