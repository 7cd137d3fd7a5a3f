// Package domain defines finalized bill splits. A split is immutable once
// written; re-finalizing supersedes it rather than editing it.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/mesaops/comanda/pkg/money"
	"gorm.io/gorm"
)

// Strategy names how the bill is divided across participants.
type Strategy string

const (
	StrategyEqual         Strategy = "EQUAL"
	StrategyByConsumption Strategy = "BY_CONSUMPTION"
	StrategyCustom        Strategy = "CUSTOM"
)

func ParseStrategy(raw string) (Strategy, bool) {
	switch Strategy(raw) {
	case StrategyEqual, StrategyByConsumption, StrategyCustom:
		return Strategy(raw), true
	}
	return "", false
}

var (
	ErrNotFound             = errors.New("split_not_found")
	ErrInvalidParticipants  = errors.New("invalid_participant_count")
	ErrInvalidStrategy      = errors.New("invalid_split_strategy")
	ErrOrderNotSplittable   = errors.New("order_not_splittable")
	ErrSplitReconciliation  = errors.New("split_reconciliation_failure")
	ErrConflict             = errors.New("split_has_payments")
	ErrProposalRequired     = errors.New("split_proposal_required")
	ErrExclusiveConsumption = errors.New("line_item_shared_across_participants")
)

// BillSplit is the finalized division of one order's bill. Details carry the
// per-participant, per-line-item assignments; Shares carry the participant
// rollup including the tax/discount adjustment, and sum exactly to the order
// total.
type BillSplit struct {
	ID               snowflake.ID     `json:"id" gorm:"primaryKey"`
	OrderID          snowflake.ID     `json:"order_id" gorm:"not null;index"`
	Strategy         Strategy         `json:"strategy" gorm:"type:text;not null"`
	ParticipantCount int              `json:"participant_count" gorm:"not null"`
	Superseded       bool             `json:"superseded" gorm:"not null;default:false"`
	Details          []BillSplitDetail `json:"details" gorm:"foreignKey:SplitID;constraint:OnDelete:CASCADE"`
	Shares           []BillSplitShare  `json:"shares" gorm:"foreignKey:SplitID;constraint:OnDelete:CASCADE"`
	CreatedBy        string           `json:"created_by" gorm:"type:text"`
	CreatedAt        time.Time        `json:"created_at" gorm:"not null"`
	UpdatedAt        time.Time        `json:"updated_at" gorm:"not null"`
}

func (BillSplit) TableName() string { return "bill_splits" }

// BillSplitDetail assigns part of one line item's subtotal to a participant.
// The assignments for a line item always sum to its subtotal exactly.
type BillSplitDetail struct {
	ID                snowflake.ID `json:"id" gorm:"primaryKey"`
	SplitID           snowflake.ID `json:"split_id" gorm:"not null;index"`
	ParticipantNumber int          `json:"participant_number" gorm:"not null"`
	LineItemID        snowflake.ID `json:"line_item_id" gorm:"not null"`
	AssignedAmount    money.Money  `json:"assigned_amount" gorm:"not null"`
}

func (BillSplitDetail) TableName() string { return "bill_split_details" }

// BillSplitShare is one participant's rollup: the item assignments plus a
// proportional cut of tax minus discount, so share totals reconcile with the
// order total, not just the subtotal.
type BillSplitShare struct {
	ID                snowflake.ID `json:"id" gorm:"primaryKey"`
	SplitID           snowflake.ID `json:"split_id" gorm:"not null;index"`
	ParticipantNumber int          `json:"participant_number" gorm:"not null"`
	ItemsAmount       money.Money  `json:"items_amount" gorm:"not null"`
	AdjustmentAmount  money.Money  `json:"adjustment_amount" gorm:"not null"`
	ShareTotal        money.Money  `json:"share_total" gorm:"not null"`
}

func (BillSplitShare) TableName() string { return "bill_split_shares" }

// ProposalEntry is one caller-supplied assignment for BY_CONSUMPTION and
// CUSTOM splits.
type ProposalEntry struct {
	ParticipantNumber int          `json:"participant_number"`
	LineItemID        snowflake.ID `json:"line_item_id"`
	Amount            money.Money  `json:"amount"`
}

type FinalizeRequest struct {
	Strategy         Strategy        `json:"strategy"`
	ParticipantCount int             `json:"participant_count"`
	Proposal         []ProposalEntry `json:"proposal"`
	ActorID          string          `json:"actor_id"`
}

type Service interface {
	// Finalize computes and persists a split for the order, superseding any
	// active prior split. Fails with ErrConflict if the active split already
	// has non-cancelled payments.
	Finalize(ctx context.Context, orderID snowflake.ID, req FinalizeRequest) (BillSplit, error)

	// Active returns the current non-superseded split for the order.
	Active(ctx context.Context, orderID snowflake.ID) (BillSplit, error)
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, split *BillSplit) error
	FindActiveByOrder(ctx context.Context, db *gorm.DB, orderID snowflake.ID) (*BillSplit, error)
	MarkSuperseded(ctx context.Context, db *gorm.DB, splitID snowflake.ID) error
}
