package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Table is a physical dining table.
type Table struct {
	ID        snowflake.ID `json:"id" gorm:"primaryKey"`
	Code      string       `json:"code" gorm:"type:text;not null;uniqueIndex"`
	Capacity  int          `json:"capacity" gorm:"not null"`
	Occupied  bool         `json:"occupied" gorm:"not null;default:false"`
	CreatedAt time.Time    `json:"created_at" gorm:"not null"`
	UpdatedAt time.Time    `json:"updated_at" gorm:"not null"`
}

func (Table) TableName() string { return "dining_tables" }

var (
	ErrNotFound        = errors.New("table_not_found")
	ErrInvalidCode     = errors.New("invalid_table_code")
	ErrInvalidCapacity = errors.New("invalid_capacity")
	ErrDuplicateCode   = errors.New("duplicate_table_code")
	ErrAlreadyOccupied = errors.New("table_already_occupied")
	ErrNotOccupied     = errors.New("table_not_occupied")
)

type CreateTableRequest struct {
	Code     string `json:"code"`
	Capacity int    `json:"capacity"`
}

type Service interface {
	Create(ctx context.Context, req CreateTableRequest) (Table, error)
	List(ctx context.Context) ([]Table, error)
	Get(ctx context.Context, id snowflake.ID) (Table, error)
	Occupy(ctx context.Context, id snowflake.ID) (Table, error)
	Release(ctx context.Context, id snowflake.ID) (Table, error)
}
