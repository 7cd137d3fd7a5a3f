package service

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/mesaops/comanda/internal/audit/domain"
	catalogdomain "github.com/mesaops/comanda/internal/catalog/domain"
	"github.com/mesaops/comanda/internal/clock"
	"github.com/mesaops/comanda/internal/config"
	"github.com/mesaops/comanda/internal/observability/metrics"
	orderdomain "github.com/mesaops/comanda/internal/order/domain"
	"github.com/mesaops/comanda/internal/order/pricing"
	tabledomain "github.com/mesaops/comanda/internal/table/domain"
	"github.com/mesaops/comanda/pkg/money"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Repo    orderdomain.Repository
	Catalog catalogdomain.Lookup
	Tables  tabledomain.Service
	Pricing *config.PricingConfigHolder
	Metrics *metrics.Metrics `optional:"true"`
	Audit   auditdomain.Service
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	repo    orderdomain.Repository
	catalog catalogdomain.Lookup
	tables  tabledomain.Service
	pricing *config.PricingConfigHolder
	metrics *metrics.Metrics
	audit   auditdomain.Service
}

func NewService(p Params) *Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("order.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		repo:    p.Repo,
		catalog: p.Catalog,
		tables:  p.Tables,
		pricing: p.Pricing,
		metrics: p.Metrics,
		audit:   p.Audit,
	}
}

func (s *Service) Create(ctx context.Context, req orderdomain.CreateOrderRequest) (orderdomain.Order, error) {
	if req.TableID == 0 {
		return orderdomain.Order{}, orderdomain.ErrMissingTable
	}
	if _, err := s.tables.Get(ctx, req.TableID); err != nil {
		return orderdomain.Order{}, err
	}

	now := s.clock.Now()
	order := orderdomain.Order{
		ID:             s.genID.Generate(),
		TableID:        req.TableID,
		Status:         orderdomain.StatusPending,
		Version:        1,
		CreatedBy:      req.CreatedBy,
		LastModifiedBy: req.CreatedBy,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	order.StampStatus(orderdomain.StatusPending, now)

	if err := s.repo.Insert(ctx, s.db, &order); err != nil {
		s.log.Error("failed to create order", zap.Error(err))
		return orderdomain.Order{}, err
	}

	if _, err := s.tables.Occupy(ctx, req.TableID); err != nil && !errors.Is(err, tabledomain.ErrAlreadyOccupied) {
		s.log.Warn("failed to occupy table", zap.Int64("table_id", int64(req.TableID)), zap.Error(err))
	}

	s.metrics.RecordOrderCreated()
	s.auditLog(ctx, req.CreatedBy, "order.create", order.ID, map[string]any{
		"table_id": order.TableID.String(),
	})
	return order, nil
}

func (s *Service) AddLineItem(ctx context.Context, orderID snowflake.ID, req orderdomain.AddLineItemRequest) (orderdomain.Order, error) {
	if req.Quantity < 1 {
		return orderdomain.Order{}, orderdomain.ErrInvalidQuantity
	}

	product, err := s.catalog.ProductSnapshot(ctx, req.ProductID)
	if err != nil {
		return orderdomain.Order{}, err
	}
	options, bounds, err := s.catalog.OptionSnapshots(ctx, req.ProductID, req.OptionIDs)
	if err != nil {
		return orderdomain.Order{}, err
	}
	if err := pricing.ValidateOptionSelection(bounds, options); err != nil {
		return orderdomain.Order{}, err
	}
	price, err := pricing.FreezeLineItemPrice(product, req.Quantity, options)
	if err != nil {
		return orderdomain.Order{}, err
	}

	var result orderdomain.Order
	err = s.db.Transaction(func(tx *gorm.DB) error {
		order, err := s.lockEditable(ctx, tx, orderID)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		item := orderdomain.LineItem{
			ID:                   s.genID.Generate(),
			OrderID:              order.ID,
			ProductID:            product.ProductID,
			ProductName:          product.Name,
			Quantity:             req.Quantity,
			UnitPriceSnapshot:    price.UnitPrice,
			OptionsPriceSnapshot: price.OptionsPrice,
			Subtotal:             price.Subtotal,
			CreatedAt:            now,
		}
		for _, option := range options {
			item.SelectedOptions = append(item.SelectedOptions, orderdomain.LineOption{
				ID:            s.genID.Generate(),
				LineItemID:    item.ID,
				OptionID:      option.OptionID,
				OptionTypeID:  option.OptionTypeID,
				OptionName:    option.Name,
				PriceSnapshot: option.PriceDelta,
			})
		}
		if err := s.repo.InsertLineItem(ctx, tx, &item); err != nil {
			return err
		}

		order.LineItems = append(order.LineItems, item)
		if err := s.repriceAndSave(ctx, tx, order, req.ActorID, now); err != nil {
			return err
		}
		result = *order
		return nil
	})
	if err != nil {
		return orderdomain.Order{}, err
	}

	s.auditLog(ctx, req.ActorID, "order.add_item", orderID, map[string]any{
		"product_id": req.ProductID.String(),
		"quantity":   req.Quantity,
	})
	return result, nil
}

func (s *Service) RemoveLineItem(ctx context.Context, orderID, lineItemID snowflake.ID, actorID string) (orderdomain.Order, error) {
	var result orderdomain.Order
	err := s.db.Transaction(func(tx *gorm.DB) error {
		order, err := s.lockEditable(ctx, tx, orderID)
		if err != nil {
			return err
		}

		idx := -1
		for i := range order.LineItems {
			if order.LineItems[i].ID == lineItemID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return orderdomain.ErrLineItemNotFound
		}
		if err := s.repo.DeleteLineItem(ctx, tx, &order.LineItems[idx]); err != nil {
			return err
		}
		order.LineItems = append(order.LineItems[:idx], order.LineItems[idx+1:]...)

		if err := s.repriceAndSave(ctx, tx, order, actorID, s.clock.Now()); err != nil {
			return err
		}
		result = *order
		return nil
	})
	if err != nil {
		return orderdomain.Order{}, err
	}

	s.auditLog(ctx, actorID, "order.remove_item", orderID, map[string]any{
		"line_item_id": lineItemID.String(),
	})
	return result, nil
}

func (s *Service) UpdateQuantity(ctx context.Context, orderID, lineItemID snowflake.ID, quantity int64, actorID string) (orderdomain.Order, error) {
	if quantity < 1 {
		return orderdomain.Order{}, orderdomain.ErrInvalidQuantity
	}

	var result orderdomain.Order
	err := s.db.Transaction(func(tx *gorm.DB) error {
		order, err := s.lockEditable(ctx, tx, orderID)
		if err != nil {
			return err
		}

		var item *orderdomain.LineItem
		for i := range order.LineItems {
			if order.LineItems[i].ID == lineItemID {
				item = &order.LineItems[i]
				break
			}
		}
		if item == nil {
			return orderdomain.ErrLineItemNotFound
		}

		// Requantify from the frozen snapshots; the catalog is never
		// consulted again for an existing line.
		item.Quantity = quantity
		item.Subtotal = item.UnitPriceSnapshot.Add(item.OptionsPriceSnapshot).MulInt(quantity)
		if err := s.repo.UpdateLineItem(ctx, tx, item); err != nil {
			return err
		}

		if err := s.repriceAndSave(ctx, tx, order, actorID, s.clock.Now()); err != nil {
			return err
		}
		result = *order
		return nil
	})
	if err != nil {
		return orderdomain.Order{}, err
	}

	s.auditLog(ctx, actorID, "order.update_quantity", orderID, map[string]any{
		"line_item_id": lineItemID.String(),
		"quantity":     quantity,
	})
	return result, nil
}

func (s *Service) ApplyDiscount(ctx context.Context, orderID snowflake.ID, amount money.Money, actorID string) (orderdomain.Order, error) {
	if amount.IsNegative() {
		return orderdomain.Order{}, orderdomain.ErrPricingInvariant
	}

	var result orderdomain.Order
	err := s.db.Transaction(func(tx *gorm.DB) error {
		order, err := s.lockEditable(ctx, tx, orderID)
		if err != nil {
			return err
		}

		order.DiscountAmount = amount
		if err := s.repriceAndSave(ctx, tx, order, actorID, s.clock.Now()); err != nil {
			return err
		}
		result = *order
		return nil
	})
	if err != nil {
		return orderdomain.Order{}, err
	}

	s.auditLog(ctx, actorID, "order.apply_discount", orderID, map[string]any{
		"amount": amount.String(),
	})
	return result, nil
}

func (s *Service) Transition(ctx context.Context, orderID snowflake.ID, target orderdomain.Status, actorID string) (orderdomain.Order, error) {
	if _, ok := orderdomain.ParseStatus(string(target)); !ok {
		return orderdomain.Order{}, orderdomain.ErrInvalidTransition
	}
	if target == orderdomain.StatusCancelled {
		return s.Cancel(ctx, orderID, actorID)
	}
	// COMPLETED is reachable only through settlement.
	if target == orderdomain.StatusCompleted {
		return orderdomain.Order{}, orderdomain.ErrInvalidTransition
	}

	var result orderdomain.Order
	err := s.db.Transaction(func(tx *gorm.DB) error {
		order, err := s.lockOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if order.Status == target {
			result = *order
			return nil
		}
		if order.Status.IsTerminal() || !order.Status.CanStepTo(target) {
			return orderdomain.ErrInvalidTransition
		}

		now := s.clock.Now()
		order.Status = target
		order.StampStatus(target, now)
		order.LastModifiedBy = actorID
		order.UpdatedAt = now
		if err := s.repo.Update(ctx, tx, order, order.Version); err != nil {
			return err
		}
		result = *order
		return nil
	})
	if err != nil {
		return orderdomain.Order{}, err
	}

	s.metrics.RecordOrderTransition(string(target))
	s.auditLog(ctx, actorID, "order.transition", orderID, map[string]any{
		"status": string(target),
	})
	return result, nil
}

func (s *Service) Cancel(ctx context.Context, orderID snowflake.ID, actorID string) (orderdomain.Order, error) {
	var result orderdomain.Order
	var tableID snowflake.ID
	err := s.db.Transaction(func(tx *gorm.DB) error {
		order, err := s.lockOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if order.Status == orderdomain.StatusCancelled {
			result = *order
			return nil
		}
		if order.Status == orderdomain.StatusCompleted {
			return orderdomain.ErrInvalidTransition
		}

		now := s.clock.Now()
		order.Status = orderdomain.StatusCancelled
		order.StampStatus(orderdomain.StatusCancelled, now)
		order.LastModifiedBy = actorID
		order.UpdatedAt = now
		if err := s.repo.Update(ctx, tx, order, order.Version); err != nil {
			return err
		}

		// Cancelling the order drags its in-flight payments with it.
		// COMPLETED payments stay on the ledger for refund handling.
		if err := tx.WithContext(ctx).Exec(`
			UPDATE payments
			SET status = 'CANCELLED', updated_at = ?
			WHERE order_id = ? AND status IN ('PENDING', 'PROCESSING')
		`, now, orderID).Error; err != nil {
			return err
		}

		tableID = order.TableID
		result = *order
		return nil
	})
	if err != nil {
		return orderdomain.Order{}, err
	}

	s.releaseTable(ctx, tableID)
	s.metrics.RecordOrderTransition(string(orderdomain.StatusCancelled))
	s.auditLog(ctx, actorID, "order.cancel", orderID, nil)
	return result, nil
}

func (s *Service) Get(ctx context.Context, orderID snowflake.ID) (orderdomain.Order, error) {
	order, err := s.repo.FindByID(ctx, s.db, orderID)
	if err != nil {
		return orderdomain.Order{}, err
	}
	if order == nil {
		return orderdomain.Order{}, orderdomain.ErrNotFound
	}
	return *order, nil
}

func (s *Service) Summary(ctx context.Context, orderID snowflake.ID) (orderdomain.Summary, error) {
	order, err := s.Get(ctx, orderID)
	if err != nil {
		return orderdomain.Summary{}, err
	}

	var paid int64
	if err := s.db.WithContext(ctx).Raw(`
		SELECT COALESCE(SUM(amount), 0)
		FROM payments
		WHERE order_id = ? AND status = 'COMPLETED'
	`, orderID).Scan(&paid).Error; err != nil {
		return orderdomain.Summary{}, err
	}

	paidAmount := money.Money(paid)
	return orderdomain.Summary{
		Order:       order,
		PaidAmount:  paidAmount,
		Outstanding: order.Total.Sub(paidAmount),
		Settled:     paidAmount == order.Total && order.Status == orderdomain.StatusCompleted,
	}, nil
}

func (s *Service) CloseSettled(ctx context.Context, orderID snowflake.ID) (orderdomain.Order, error) {
	var result orderdomain.Order
	var tableID snowflake.ID
	err := s.db.Transaction(func(tx *gorm.DB) error {
		order, err := s.lockOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if order.Status == orderdomain.StatusCompleted {
			result = *order
			return nil
		}
		if order.Status != orderdomain.StatusDelivered {
			return orderdomain.ErrInvalidTransition
		}

		now := s.clock.Now()
		order.Status = orderdomain.StatusCompleted
		order.StampStatus(orderdomain.StatusCompleted, now)
		order.UpdatedAt = now
		if err := s.repo.Update(ctx, tx, order, order.Version); err != nil {
			return err
		}

		tableID = order.TableID
		result = *order
		return nil
	})
	if err != nil {
		return orderdomain.Order{}, err
	}

	s.releaseTable(ctx, tableID)
	s.metrics.RecordOrderSettled()
	s.metrics.RecordOrderTransition(string(orderdomain.StatusCompleted))
	s.auditLog(ctx, "system", "order.settle", orderID, nil)
	return result, nil
}

// lockOrder re-reads the order under a row lock inside the transaction.
func (s *Service) lockOrder(ctx context.Context, tx *gorm.DB, orderID snowflake.ID) (*orderdomain.Order, error) {
	order, err := s.repo.FindByIDForUpdate(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, orderdomain.ErrNotFound
	}
	return order, nil
}

func (s *Service) lockEditable(ctx context.Context, tx *gorm.DB, orderID snowflake.ID) (*orderdomain.Order, error) {
	order, err := s.lockOrder(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != orderdomain.StatusPending {
		return nil, orderdomain.ErrInvalidState
	}
	return order, nil
}

// repriceAndSave recomputes the totals from the current line items, applies
// the configured default tax rate, and writes the order under its optimistic
// version.
func (s *Service) repriceAndSave(ctx context.Context, tx *gorm.DB, order *orderdomain.Order, actorID string, now time.Time) error {
	subtotals := make([]money.Money, 0, len(order.LineItems))
	for _, item := range order.LineItems {
		subtotals = append(subtotals, item.Subtotal)
	}

	tax := pricing.ApplyRateBps(money.Sum(subtotals), s.pricing.Get().TaxRateBps)
	totals, err := pricing.RecomputeOrderTotals(subtotals, tax, order.DiscountAmount)
	if err != nil {
		return err
	}

	order.Subtotal = totals.Subtotal
	order.TaxAmount = totals.Tax
	order.DiscountAmount = totals.Discount
	order.Total = totals.Total
	order.LastModifiedBy = actorID
	order.UpdatedAt = now
	return s.repo.Update(ctx, tx, order, order.Version)
}

func (s *Service) releaseTable(ctx context.Context, tableID snowflake.ID) {
	if tableID == 0 {
		return
	}
	if _, err := s.tables.Release(ctx, tableID); err != nil && !errors.Is(err, tabledomain.ErrNotOccupied) {
		s.log.Warn("failed to release table", zap.Int64("table_id", int64(tableID)), zap.Error(err))
	}
}

func (s *Service) auditLog(ctx context.Context, actorID, action string, orderID snowflake.ID, metadata map[string]any) {
	target := orderID.String()
	if err := s.audit.AuditLog(ctx, "staff", actorID, action, "order", &target, metadata); err != nil {
		s.log.Warn("audit write failed", zap.String("action", action), zap.Error(err))
	}
}
