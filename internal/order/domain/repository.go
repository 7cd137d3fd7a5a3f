package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, order *Order) error

	// FindByID loads the order with its line items and options.
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Order, error)

	// FindByIDForUpdate locks the order row for the enclosing transaction.
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Order, error)

	// Update persists the order's mutable columns guarded by the optimistic
	// version: the write only applies if the stored version still equals
	// expectedVersion, and bumps it by one. A missed match returns
	// ErrConcurrentModification.
	Update(ctx context.Context, db *gorm.DB, order *Order, expectedVersion int64) error

	InsertLineItem(ctx context.Context, db *gorm.DB, item *LineItem) error
	UpdateLineItem(ctx context.Context, db *gorm.DB, item *LineItem) error
	DeleteLineItem(ctx context.Context, db *gorm.DB, item *LineItem) error
}
