package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/mesaops/comanda/internal/audit/domain"
	splitdomain "github.com/mesaops/comanda/internal/billsplit/domain"
	"github.com/mesaops/comanda/internal/clock"
	"github.com/mesaops/comanda/internal/observability/metrics"
	orderdomain "github.com/mesaops/comanda/internal/order/domain"
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
	Repo    splitdomain.Repository
	Orders  orderdomain.Repository
	Metrics *metrics.Metrics `optional:"true"`
	Audit   auditdomain.Service
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	repo    splitdomain.Repository
	orders  orderdomain.Repository
	metrics *metrics.Metrics
	audit   auditdomain.Service
}

func NewService(p Params) *Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("billsplit.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		repo:    p.Repo,
		orders:  p.Orders,
		metrics: p.Metrics,
		audit:   p.Audit,
	}
}

func (s *Service) Finalize(ctx context.Context, orderID snowflake.ID, req splitdomain.FinalizeRequest) (splitdomain.BillSplit, error) {
	if _, ok := splitdomain.ParseStrategy(string(req.Strategy)); !ok {
		return splitdomain.BillSplit{}, splitdomain.ErrInvalidStrategy
	}
	if req.ParticipantCount < 1 {
		return splitdomain.BillSplit{}, splitdomain.ErrInvalidParticipants
	}

	var result splitdomain.BillSplit
	err := s.db.Transaction(func(tx *gorm.DB) error {
		order, err := s.orders.FindByIDForUpdate(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if order == nil {
			return orderdomain.ErrNotFound
		}
		if order.Status != orderdomain.StatusDelivered {
			return splitdomain.ErrOrderNotSplittable
		}

		active, err := s.repo.FindActiveByOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if active != nil {
			var linked int64
			if err := tx.WithContext(ctx).Raw(`
				SELECT COUNT(1) FROM payments
				WHERE split_id = ? AND status <> 'CANCELLED'
			`, active.ID).Scan(&linked).Error; err != nil {
				return err
			}
			if linked > 0 {
				return splitdomain.ErrConflict
			}
			if err := s.repo.MarkSuperseded(ctx, tx, active.ID); err != nil {
				return err
			}
		}

		split, err := s.compute(order, req)
		if err != nil {
			return err
		}
		if err := s.repo.Insert(ctx, tx, split); err != nil {
			return err
		}
		result = *split
		return nil
	})
	if err != nil {
		return splitdomain.BillSplit{}, err
	}

	s.metrics.RecordSplitFinalized(string(req.Strategy))
	target := orderID.String()
	if err := s.audit.AuditLog(ctx, "staff", req.ActorID, "split.finalize", "order", &target, map[string]any{
		"strategy":     string(req.Strategy),
		"participants": req.ParticipantCount,
	}); err != nil {
		s.log.Warn("audit write failed", zap.Error(err))
	}
	return result, nil
}

func (s *Service) Active(ctx context.Context, orderID snowflake.ID) (splitdomain.BillSplit, error) {
	split, err := s.repo.FindActiveByOrder(ctx, s.db, orderID)
	if err != nil {
		return splitdomain.BillSplit{}, err
	}
	if split == nil {
		return splitdomain.BillSplit{}, splitdomain.ErrNotFound
	}
	return *split, nil
}

// compute builds the immutable split rows. Item assignments reconcile per
// line item against the frozen subtotals; the tax/discount adjustment is then
// distributed so share totals sum exactly to the order total.
func (s *Service) compute(order *orderdomain.Order, req splitdomain.FinalizeRequest) (*splitdomain.BillSplit, error) {
	n := req.ParticipantCount
	now := s.clock.Now()
	split := &splitdomain.BillSplit{
		ID:               s.genID.Generate(),
		OrderID:          order.ID,
		Strategy:         req.Strategy,
		ParticipantCount: n,
		CreatedBy:        req.ActorID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	itemsAmount := make([]money.Money, n) // indexed by participant-1

	switch req.Strategy {
	case splitdomain.StrategyEqual:
		for _, item := range order.LineItems {
			shares, err := item.Subtotal.Split(n)
			if err != nil {
				return nil, splitdomain.ErrSplitReconciliation
			}
			for p := 0; p < n; p++ {
				itemsAmount[p] = itemsAmount[p].Add(shares[p])
				split.Details = append(split.Details, splitdomain.BillSplitDetail{
					ID:                s.genID.Generate(),
					SplitID:           split.ID,
					ParticipantNumber: p + 1,
					LineItemID:        item.ID,
					AssignedAmount:    shares[p],
				})
			}
		}

	case splitdomain.StrategyByConsumption, splitdomain.StrategyCustom:
		if len(req.Proposal) == 0 {
			return nil, splitdomain.ErrProposalRequired
		}

		assigned := make(map[snowflake.ID]money.Money, len(order.LineItems))
		owners := make(map[snowflake.ID]map[int]bool, len(order.LineItems))
		items := make(map[snowflake.ID]money.Money, len(order.LineItems))
		for _, item := range order.LineItems {
			items[item.ID] = item.Subtotal
		}

		for _, entry := range req.Proposal {
			if entry.ParticipantNumber < 1 || entry.ParticipantNumber > n {
				return nil, splitdomain.ErrInvalidParticipants
			}
			if _, ok := items[entry.LineItemID]; !ok {
				return nil, orderdomain.ErrLineItemNotFound
			}
			if entry.Amount.IsNegative() {
				return nil, splitdomain.ErrSplitReconciliation
			}

			assigned[entry.LineItemID] = assigned[entry.LineItemID].Add(entry.Amount)
			if owners[entry.LineItemID] == nil {
				owners[entry.LineItemID] = map[int]bool{}
			}
			owners[entry.LineItemID][entry.ParticipantNumber] = true

			itemsAmount[entry.ParticipantNumber-1] = itemsAmount[entry.ParticipantNumber-1].Add(entry.Amount)
			split.Details = append(split.Details, splitdomain.BillSplitDetail{
				ID:                s.genID.Generate(),
				SplitID:           split.ID,
				ParticipantNumber: entry.ParticipantNumber,
				LineItemID:        entry.LineItemID,
				AssignedAmount:    entry.Amount,
			})
		}

		// Every line item must be covered exactly, no more, no less.
		for id, subtotal := range items {
			if assigned[id] != subtotal {
				return nil, splitdomain.ErrSplitReconciliation
			}
		}
		if req.Strategy == splitdomain.StrategyByConsumption {
			for _, byWhom := range owners {
				if len(byWhom) > 1 {
					return nil, splitdomain.ErrExclusiveConsumption
				}
			}
		}
	}

	adjustments, err := s.distributeAdjustment(order, req.Strategy, itemsAmount)
	if err != nil {
		return nil, err
	}

	var shareSum money.Money
	for p := 0; p < n; p++ {
		shareTotal := itemsAmount[p].Add(adjustments[p])
		shareSum = shareSum.Add(shareTotal)
		split.Shares = append(split.Shares, splitdomain.BillSplitShare{
			ID:                s.genID.Generate(),
			SplitID:           split.ID,
			ParticipantNumber: p + 1,
			ItemsAmount:       itemsAmount[p],
			AdjustmentAmount:  adjustments[p],
			ShareTotal:        shareTotal,
		})
	}
	if shareSum != order.Total {
		return nil, splitdomain.ErrSplitReconciliation
	}
	return split, nil
}

// distributeAdjustment spreads tax minus discount across participants: EQUAL
// splits it evenly, proposal strategies weight it by each participant's item
// assignments.
func (s *Service) distributeAdjustment(order *orderdomain.Order, strategy splitdomain.Strategy, itemsAmount []money.Money) ([]money.Money, error) {
	n := len(itemsAmount)
	adjustment := order.Total.Sub(order.Subtotal)
	if adjustment.IsZero() {
		return make([]money.Money, n), nil
	}

	// A discount larger than the tax makes the adjustment negative; split the
	// magnitude and flip the signs so the allocation stays exact.
	magnitude := adjustment
	negative := false
	if magnitude.IsNegative() {
		magnitude = magnitude.Neg()
		negative = true
	}

	var parts []money.Money
	var err error
	if strategy == splitdomain.StrategyEqual {
		parts, err = magnitude.Split(n)
	} else {
		weights := make([]int64, n)
		weighted := false
		for i, amount := range itemsAmount {
			weights[i] = amount.Minor()
			if !amount.IsZero() {
				weighted = true
			}
		}
		if weighted {
			parts, err = magnitude.Allocate(weights)
		} else {
			parts, err = magnitude.Split(n)
		}
	}
	if err != nil {
		return nil, splitdomain.ErrSplitReconciliation
	}

	if negative {
		for i := range parts {
			parts[i] = parts[i].Neg()
		}
	}
	return parts, nil
}
