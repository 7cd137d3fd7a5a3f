package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	orderdomain "github.com/mesaops/comanda/internal/order/domain"
	"github.com/mesaops/comanda/pkg/db"
	"gorm.io/gorm"
)

type repository struct{}

func Provide() orderdomain.Repository {
	return &repository{}
}

func (r *repository) Insert(ctx context.Context, conn *gorm.DB, order *orderdomain.Order) error {
	return conn.WithContext(ctx).Create(order).Error
}

func (r *repository) FindByID(ctx context.Context, conn *gorm.DB, id snowflake.ID) (*orderdomain.Order, error) {
	return r.find(ctx, conn, id, false)
}

func (r *repository) FindByIDForUpdate(ctx context.Context, conn *gorm.DB, id snowflake.ID) (*orderdomain.Order, error) {
	return r.find(ctx, conn, id, true)
}

func (r *repository) find(ctx context.Context, conn *gorm.DB, id snowflake.ID, lock bool) (*orderdomain.Order, error) {
	stmt := conn.WithContext(ctx)
	if lock {
		// Lock the root row only; children are owned by the aggregate and
		// never mutated outside an order transaction.
		var locked orderdomain.Order
		if err := db.LockForUpdate(stmt).Select("id").First(&locked, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, nil
			}
			return nil, err
		}
	}

	var order orderdomain.Order
	err := stmt.
		Preload("LineItems", func(tx *gorm.DB) *gorm.DB { return tx.Order("order_line_items.created_at, order_line_items.id") }).
		Preload("LineItems.SelectedOptions").
		First(&order, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

func (r *repository) Update(ctx context.Context, conn *gorm.DB, order *orderdomain.Order, expectedVersion int64) error {
	order.Version = expectedVersion + 1
	res := conn.WithContext(ctx).
		Model(&orderdomain.Order{}).
		Where("id = ? AND version = ?", order.ID, expectedVersion).
		Updates(map[string]any{
			"status":            order.Status,
			"version":           order.Version,
			"subtotal":          order.Subtotal,
			"tax_amount":        order.TaxAmount,
			"discount_amount":   order.DiscountAmount,
			"total":             order.Total,
			"status_timestamps": order.StatusTimestamps,
			"last_modified_by":  order.LastModifiedBy,
			"updated_at":        order.UpdatedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return orderdomain.ErrConcurrentModification
	}
	return nil
}

func (r *repository) InsertLineItem(ctx context.Context, conn *gorm.DB, item *orderdomain.LineItem) error {
	return conn.WithContext(ctx).Create(item).Error
}

func (r *repository) UpdateLineItem(ctx context.Context, conn *gorm.DB, item *orderdomain.LineItem) error {
	return conn.WithContext(ctx).
		Model(&orderdomain.LineItem{}).
		Where("id = ?", item.ID).
		Updates(map[string]any{
			"quantity": item.Quantity,
			"subtotal": item.Subtotal,
		}).Error
}

func (r *repository) DeleteLineItem(ctx context.Context, conn *gorm.DB, item *orderdomain.LineItem) error {
	// The aggregate removes its owned children explicitly rather than
	// leaning on storage-level cascade.
	if err := conn.WithContext(ctx).
		Where("line_item_id = ?", item.ID).
		Delete(&orderdomain.LineOption{}).Error; err != nil {
		return err
	}
	return conn.WithContext(ctx).Delete(&orderdomain.LineItem{}, "id = ?", item.ID).Error
}
