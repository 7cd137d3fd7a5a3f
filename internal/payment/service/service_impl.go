package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/mesaops/comanda/internal/audit/domain"
	splitdomain "github.com/mesaops/comanda/internal/billsplit/domain"
	"github.com/mesaops/comanda/internal/clock"
	"github.com/mesaops/comanda/internal/config"
	"github.com/mesaops/comanda/internal/locks"
	"github.com/mesaops/comanda/internal/observability/metrics"
	orderdomain "github.com/mesaops/comanda/internal/order/domain"
	paymentdomain "github.com/mesaops/comanda/internal/payment/domain"
	"github.com/mesaops/comanda/pkg/money"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const settleLockTTL = 10 * time.Second

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
	Orders    orderdomain.Service
	OrderRepo orderdomain.Repository
	Splits    splitdomain.Repository
	Pricing   *config.PricingConfigHolder
	Locker    *locks.Locker    `optional:"true"`
	Metrics   *metrics.Metrics `optional:"true"`
	Audit     auditdomain.Service
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	clock     clock.Clock
	orders    orderdomain.Service
	orderRepo orderdomain.Repository
	splits    splitdomain.Repository
	pricing   *config.PricingConfigHolder
	locker    *locks.Locker
	metrics   *metrics.Metrics
	audit     auditdomain.Service
}

func NewService(p Params) *Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("payment.service"),
		genID:     p.GenID,
		clock:     p.Clock,
		orders:    p.Orders,
		orderRepo: p.OrderRepo,
		splits:    p.Splits,
		pricing:   p.Pricing,
		locker:    p.Locker,
		metrics:   p.Metrics,
		audit:     p.Audit,
	}
}

func (s *Service) RecordPayment(ctx context.Context, orderID snowflake.ID, req paymentdomain.RecordPaymentRequest) (paymentdomain.Payment, error) {
	if _, ok := paymentdomain.ParseMethod(string(req.Method)); !ok {
		return paymentdomain.Payment{}, paymentdomain.ErrInvalidMethod
	}
	if req.Amount <= 0 || req.Tip.IsNegative() {
		return paymentdomain.Payment{}, paymentdomain.ErrInvalidAmount
	}

	// Idempotency replay: the original payment wins, whatever the new
	// request says.
	if req.IdempotencyKey != nil && *req.IdempotencyKey != "" {
		existing, err := s.findByIdempotencyKey(ctx, s.db, *req.IdempotencyKey)
		if err != nil {
			return paymentdomain.Payment{}, err
		}
		if existing != nil {
			return *existing, nil
		}
	} else {
		req.IdempotencyKey = nil
	}

	var result paymentdomain.Payment
	err := s.db.Transaction(func(tx *gorm.DB) error {
		order, err := s.orderRepo.FindByIDForUpdate(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if order == nil {
			return orderdomain.ErrNotFound
		}
		if order.Status != orderdomain.StatusDelivered {
			return paymentdomain.ErrOrderNotPayable
		}

		tipCap := money.Money(int64(order.Total) * s.pricing.Get().MaxTipBps / 10000)
		if req.Tip.Cmp(tipCap) > 0 {
			return paymentdomain.ErrTipTooLarge
		}

		// Outstanding against everything not yet failed or cancelled, so two
		// in-flight payments cannot jointly overshoot the total.
		committed, err := s.sumAmounts(ctx, tx,
			"order_id = ? AND status IN ('PENDING', 'PROCESSING', 'COMPLETED')", orderID)
		if err != nil {
			return err
		}
		if committed.Add(req.Amount).Cmp(order.Total) > 0 {
			return paymentdomain.ErrOverpayment
		}

		payment := paymentdomain.Payment{
			ID:             s.genID.Generate(),
			OrderID:        orderID,
			Method:         req.Method,
			Amount:         req.Amount,
			Tip:            req.Tip,
			Total:          req.Amount.Add(req.Tip),
			Status:         paymentdomain.StatusPending,
			ExternalRef:    req.ExternalRef,
			IdempotencyKey: req.IdempotencyKey,
			RequestedAt:    s.clock.Now(),
			CreatedAt:      s.clock.Now(),
			UpdatedAt:      s.clock.Now(),
		}

		if req.ParticipantNumber != nil {
			split, err := s.splits.FindActiveByOrder(ctx, tx, orderID)
			if err != nil {
				return err
			}
			if split == nil {
				return paymentdomain.ErrNoActiveSplit
			}
			participant := *req.ParticipantNumber
			if participant < 1 || participant > split.ParticipantCount {
				return splitdomain.ErrInvalidParticipants
			}

			var shareTotal money.Money
			for _, share := range split.Shares {
				if share.ParticipantNumber == participant {
					shareTotal = share.ShareTotal
					break
				}
			}
			shareCommitted, err := s.sumAmounts(ctx, tx,
				"split_id = ? AND participant_number = ? AND status IN ('PENDING', 'PROCESSING', 'COMPLETED')",
				split.ID, participant)
			if err != nil {
				return err
			}
			if shareCommitted.Add(req.Amount).Cmp(shareTotal) > 0 {
				return paymentdomain.ErrShareExceeded
			}

			payment.SplitID = &split.ID
			payment.ParticipantNumber = &participant
		}

		if err := tx.WithContext(ctx).Create(&payment).Error; err != nil {
			return err
		}
		result = payment
		return nil
	})
	if err != nil {
		return paymentdomain.Payment{}, err
	}

	s.metrics.RecordPayment(string(result.Status), string(result.Method))
	s.auditLog(ctx, req.ActorID, "payment.record", result)
	return result, nil
}

func (s *Service) Transition(ctx context.Context, paymentID snowflake.ID, target paymentdomain.Status, actorID string) (paymentdomain.Payment, error) {
	if _, ok := paymentdomain.ParseStatus(string(target)); !ok {
		return paymentdomain.Payment{}, paymentdomain.ErrInvalidTransition
	}

	var result paymentdomain.Payment
	var settledOrder snowflake.ID

	run := func() error {
		return s.db.Transaction(func(tx *gorm.DB) error {
			var payment paymentdomain.Payment
			if err := tx.WithContext(ctx).First(&payment, "id = ?", paymentID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return paymentdomain.ErrNotFound
				}
				return err
			}
			if payment.Status == target {
				result = payment
				return nil
			}
			if !payment.Status.CanStepTo(target) {
				return paymentdomain.ErrInvalidTransition
			}

			// Serialize against other mutations of the same order.
			order, err := s.orderRepo.FindByIDForUpdate(ctx, tx, payment.OrderID)
			if err != nil {
				return err
			}
			if order == nil {
				return orderdomain.ErrNotFound
			}

			now := s.clock.Now()
			payment.Status = target
			payment.UpdatedAt = now
			if target == paymentdomain.StatusCompleted {
				completed, err := s.sumAmounts(ctx, tx,
					"order_id = ? AND status = 'COMPLETED'", payment.OrderID)
				if err != nil {
					return err
				}
				// Tips never count toward the total.
				covered := completed.Add(payment.Amount)
				if covered.Cmp(order.Total) > 0 {
					return paymentdomain.ErrOverpayment
				}
				payment.CompletedAt = &now
				if covered == order.Total {
					settledOrder = order.ID
				}
			}

			if err := tx.WithContext(ctx).
				Model(&paymentdomain.Payment{}).
				Where("id = ?", payment.ID).
				Updates(map[string]any{
					"status":       payment.Status,
					"completed_at": payment.CompletedAt,
					"updated_at":   payment.UpdatedAt,
				}).Error; err != nil {
				return err
			}
			result = payment
			return nil
		})
	}

	var err error
	if target == paymentdomain.StatusCompleted {
		// The advisory lock keeps two instances from racing the settlement
		// check; within one instance the order row lock already does.
		current, getErr := s.Get(ctx, paymentID)
		if getErr != nil {
			return paymentdomain.Payment{}, getErr
		}
		release, lockErr := s.locker.Acquire(ctx, settleLockKey(current.OrderID), settleLockTTL)
		if lockErr != nil {
			return paymentdomain.Payment{}, lockErr
		}
		err = run()
		release()
	} else {
		err = run()
	}
	if err != nil {
		return paymentdomain.Payment{}, err
	}

	if settledOrder != 0 {
		if _, err := s.orders.CloseSettled(ctx, settledOrder); err != nil {
			// The ledger is settled either way; closing the order is retried
			// by the next read path noticing the mismatch.
			s.log.Error("failed to close settled order",
				zap.Int64("order_id", int64(settledOrder)), zap.Error(err))
		}
	}

	s.metrics.RecordPayment(string(result.Status), string(result.Method))
	s.auditLog(ctx, actorID, "payment.transition", result)
	return result, nil
}

func (s *Service) Get(ctx context.Context, paymentID snowflake.ID) (paymentdomain.Payment, error) {
	var payment paymentdomain.Payment
	if err := s.db.WithContext(ctx).First(&payment, "id = ?", paymentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return paymentdomain.Payment{}, paymentdomain.ErrNotFound
		}
		return paymentdomain.Payment{}, err
	}
	return payment, nil
}

func (s *Service) ListByOrder(ctx context.Context, orderID snowflake.ID) ([]paymentdomain.Payment, error) {
	var payments []paymentdomain.Payment
	if err := s.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at, id").
		Find(&payments).Error; err != nil {
		return nil, err
	}
	return payments, nil
}

func (s *Service) findByIdempotencyKey(ctx context.Context, conn *gorm.DB, key string) (*paymentdomain.Payment, error) {
	var payment paymentdomain.Payment
	err := conn.WithContext(ctx).First(&payment, "idempotency_key = ?", key).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &payment, nil
}

func (s *Service) sumAmounts(ctx context.Context, conn *gorm.DB, where string, args ...any) (money.Money, error) {
	var sum int64
	err := conn.WithContext(ctx).
		Model(&paymentdomain.Payment{}).
		Select("COALESCE(SUM(amount), 0)").
		Where(where, args...).
		Scan(&sum).Error
	return money.Money(sum), err
}

func (s *Service) auditLog(ctx context.Context, actorID, action string, payment paymentdomain.Payment) {
	target := payment.ID.String()
	if err := s.audit.AuditLog(ctx, "staff", actorID, action, "payment", &target, map[string]any{
		"order_id": payment.OrderID.String(),
		"status":   string(payment.Status),
		"amount":   payment.Amount.String(),
	}); err != nil {
		s.log.Warn("audit write failed", zap.String("action", action), zap.Error(err))
	}
}

func settleLockKey(orderID snowflake.ID) string {
	return fmt.Sprintf("comanda:settle:%d", orderID)
}
