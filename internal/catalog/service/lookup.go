package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/mesaops/comanda/internal/catalog/domain"
)

// ProductSnapshot resolves an active product's current catalog price. This is
// the price-freeze point: callers persist the snapshot and never come back.
func (s *Service) ProductSnapshot(ctx context.Context, productID snowflake.ID) (catalogdomain.ProductSnapshot, error) {
	product, err := s.repo.FindProductByID(ctx, s.db, productID)
	if err != nil {
		return catalogdomain.ProductSnapshot{}, err
	}
	if product == nil || !product.Active {
		return catalogdomain.ProductSnapshot{}, catalogdomain.ErrNotFound
	}
	return catalogdomain.ProductSnapshot{
		ProductID: product.ID,
		Name:      product.Name,
		UnitPrice: product.Price,
	}, nil
}

// OptionSnapshots resolves the selected options against the product's option
// types. The returned bounds cover every type attached to the product, not
// only the selected ones, so minimum-selection rules are checkable.
func (s *Service) OptionSnapshots(ctx context.Context, productID snowflake.ID, optionIDs []snowflake.ID) ([]catalogdomain.OptionSnapshot, []catalogdomain.SelectionBounds, error) {
	product, err := s.repo.FindProductByID(ctx, s.db, productID)
	if err != nil {
		return nil, nil, err
	}
	if product == nil || !product.Active {
		return nil, nil, catalogdomain.ErrNotFound
	}

	applicable := make(map[snowflake.ID]struct{}, len(product.OptionTypes))
	bounds := make([]catalogdomain.SelectionBounds, 0, len(product.OptionTypes))
	for _, optionType := range product.OptionTypes {
		applicable[optionType.ID] = struct{}{}
		bounds = append(bounds, catalogdomain.SelectionBounds{
			OptionTypeID: optionType.ID,
			Name:         optionType.Name,
			Minimum:      optionType.SelectionMinimum,
			Maximum:      optionType.SelectionMaximum,
		})
	}

	options, err := s.repo.FindOptions(ctx, s.db, optionIDs)
	if err != nil {
		return nil, nil, err
	}
	if len(options) != len(optionIDs) {
		return nil, nil, catalogdomain.ErrNotFound
	}

	snapshots := make([]catalogdomain.OptionSnapshot, 0, len(options))
	for _, option := range options {
		if !option.Active {
			return nil, nil, catalogdomain.ErrNotFound
		}
		if _, ok := applicable[option.OptionTypeID]; !ok {
			return nil, nil, catalogdomain.ErrOptionNotApplicable
		}
		snapshots = append(snapshots, catalogdomain.OptionSnapshot{
			OptionID:     option.ID,
			OptionTypeID: option.OptionTypeID,
			Name:         option.Name,
			PriceDelta:   option.PriceDelta,
		})
	}
	return snapshots, bounds, nil
}

var _ catalogdomain.Lookup = (*Service)(nil)
