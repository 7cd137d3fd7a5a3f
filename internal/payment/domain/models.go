// Package domain defines the payment ledger: append-only payment rows with a
// small status machine, and the settlement rule that closes an order once
// completed payments cover its total exactly.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/mesaops/comanda/pkg/money"
)

type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
	StatusCancelled  Status = "CANCELLED"
)

func ParseStatus(raw string) (Status, bool) {
	switch Status(raw) {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed, StatusCancelled:
		return Status(raw), true
	}
	return "", false
}

func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// CanStepTo encodes the ledger's status machine: PENDING→PROCESSING,
// PROCESSING→COMPLETED|FAILED, and CANCELLED from any non-terminal state.
func (s Status) CanStepTo(target Status) bool {
	if target == StatusCancelled {
		return !s.IsTerminal()
	}
	switch s {
	case StatusPending:
		return target == StatusProcessing
	case StatusProcessing:
		return target == StatusCompleted || target == StatusFailed
	}
	return false
}

type Method string

const (
	MethodCash   Method = "CASH"
	MethodCard   Method = "CARD"
	MethodOnline Method = "ONLINE"
)

func ParseMethod(raw string) (Method, bool) {
	switch Method(raw) {
	case MethodCash, MethodCard, MethodOnline:
		return Method(raw), true
	}
	return "", false
}

var (
	ErrNotFound          = errors.New("payment_not_found")
	ErrInvalidAmount     = errors.New("invalid_payment_amount")
	ErrInvalidMethod     = errors.New("invalid_payment_method")
	ErrOrderNotPayable   = errors.New("order_not_payable")
	ErrOverpayment       = errors.New("overpayment_rejected")
	ErrTipTooLarge       = errors.New("tip_exceeds_cap")
	ErrNoActiveSplit     = errors.New("no_active_split")
	ErrShareExceeded     = errors.New("participant_share_exceeded")
	ErrInvalidTransition = errors.New("invalid_payment_transition")
)

// Payment is one ledger row. Amount settles the bill; Tip never counts
// toward settlement. Rows are never deleted, only moved through statuses.
type Payment struct {
	ID                snowflake.ID `json:"id" gorm:"primaryKey"`
	OrderID           snowflake.ID `json:"order_id" gorm:"not null;index"`
	SplitID           *snowflake.ID `json:"split_id,omitempty" gorm:"index"`
	ParticipantNumber *int         `json:"participant_number,omitempty"`
	Method            Method       `json:"method" gorm:"type:text;not null"`
	Amount            money.Money  `json:"amount" gorm:"not null"`
	Tip               money.Money  `json:"tip" gorm:"not null;default:0"`
	Total             money.Money  `json:"total" gorm:"not null"`
	Status            Status       `json:"status" gorm:"type:text;not null;default:'PENDING';index"`
	ExternalRef       string       `json:"external_ref" gorm:"type:text"`
	IdempotencyKey    *string      `json:"idempotency_key,omitempty" gorm:"uniqueIndex"`
	RequestedAt       time.Time    `json:"requested_at" gorm:"not null"`
	CompletedAt       *time.Time   `json:"completed_at,omitempty"`
	CreatedAt         time.Time    `json:"created_at" gorm:"not null"`
	UpdatedAt         time.Time    `json:"updated_at" gorm:"not null"`
}

func (Payment) TableName() string { return "payments" }

type RecordPaymentRequest struct {
	ParticipantNumber *int        `json:"participant_number,omitempty"`
	Method            Method      `json:"method"`
	Amount            money.Money `json:"amount"`
	Tip               money.Money `json:"tip"`
	IdempotencyKey    *string     `json:"idempotency_key,omitempty"`
	ExternalRef       string      `json:"external_ref"`
	ActorID           string      `json:"actor_id"`
}

type Service interface {
	// RecordPayment appends a PENDING payment against the order. An
	// idempotency key that already exists replays the original payment.
	RecordPayment(ctx context.Context, orderID snowflake.ID, req RecordPaymentRequest) (Payment, error)

	// Transition moves a payment through its status machine. Completing a
	// payment runs the settlement check atomically; when completed amounts
	// cover the order total exactly, the order is closed.
	Transition(ctx context.Context, paymentID snowflake.ID, target Status, actorID string) (Payment, error)

	Get(ctx context.Context, paymentID snowflake.ID) (Payment, error)
	ListByOrder(ctx context.Context, orderID snowflake.ID) ([]Payment, error)
}
