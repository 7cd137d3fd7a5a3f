package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	splitdomain "github.com/mesaops/comanda/internal/billsplit/domain"
	"gorm.io/gorm"
)

type repository struct{}

func Provide() splitdomain.Repository {
	return &repository{}
}

func (r *repository) Insert(ctx context.Context, conn *gorm.DB, split *splitdomain.BillSplit) error {
	return conn.WithContext(ctx).Create(split).Error
}

func (r *repository) FindActiveByOrder(ctx context.Context, conn *gorm.DB, orderID snowflake.ID) (*splitdomain.BillSplit, error) {
	var split splitdomain.BillSplit
	err := conn.WithContext(ctx).
		Preload("Details", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("bill_split_details.participant_number, bill_split_details.line_item_id")
		}).
		Preload("Shares", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("bill_split_shares.participant_number")
		}).
		First(&split, "order_id = ? AND superseded = ?", orderID, false).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &split, nil
}

func (r *repository) MarkSuperseded(ctx context.Context, conn *gorm.DB, splitID snowflake.ID) error {
	return conn.WithContext(ctx).
		Model(&splitdomain.BillSplit{}).
		Where("id = ?", splitID).
		Update("superseded", true).Error
}
