package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/mesaops/comanda/pkg/money"
)

var (
	ErrNotFound               = errors.New("order_not_found")
	ErrLineItemNotFound       = errors.New("line_item_not_found")
	ErrMissingTable           = errors.New("missing_table_ref")
	ErrInvalidQuantity        = errors.New("invalid_quantity")
	ErrOptionSelection        = errors.New("option_selection_out_of_bounds")
	ErrInvalidState           = errors.New("order_not_editable")
	ErrInvalidTransition      = errors.New("invalid_order_transition")
	ErrPricingInvariant       = errors.New("pricing_invariant_violation")
	ErrConcurrentModification = errors.New("concurrent_order_modification")
)

type CreateOrderRequest struct {
	TableID   snowflake.ID `json:"table_id"`
	CreatedBy string       `json:"created_by"`
}

type AddLineItemRequest struct {
	ProductID snowflake.ID   `json:"product_id"`
	Quantity  int64          `json:"quantity"`
	OptionIDs []snowflake.ID `json:"option_ids"`
	ActorID   string         `json:"actor_id"`
}

// Summary is the caller-facing view of an order plus its settlement
// position.
type Summary struct {
	Order       Order       `json:"order"`
	PaidAmount  money.Money `json:"paid_amount"`
	Outstanding money.Money `json:"outstanding"`
	Settled     bool        `json:"settled"`
}

// Service drives the order aggregate. Every mutation is transactional and
// guarded by the order's optimistic version; on a conflicting concurrent
// write the caller receives ErrConcurrentModification and is expected to
// retry with fresh state.
type Service interface {
	Create(ctx context.Context, req CreateOrderRequest) (Order, error)
	AddLineItem(ctx context.Context, orderID snowflake.ID, req AddLineItemRequest) (Order, error)
	RemoveLineItem(ctx context.Context, orderID, lineItemID snowflake.ID, actorID string) (Order, error)
	UpdateQuantity(ctx context.Context, orderID, lineItemID snowflake.ID, quantity int64, actorID string) (Order, error)

	// ApplyDiscount sets the order-level discount amount. The amount arrives
	// already resolved; it is never derived here. The resulting total must
	// stay non-negative.
	ApplyDiscount(ctx context.Context, orderID snowflake.ID, amount money.Money, actorID string) (Order, error)
	Transition(ctx context.Context, orderID snowflake.ID, target Status, actorID string) (Order, error)
	Cancel(ctx context.Context, orderID snowflake.ID, actorID string) (Order, error)
	Get(ctx context.Context, orderID snowflake.ID) (Order, error)
	Summary(ctx context.Context, orderID snowflake.ID) (Summary, error)

	// CloseSettled moves a DELIVERED order to COMPLETED. It is called by the
	// payment ledger once completed payments cover the total exactly; it is
	// not reachable through Transition.
	CloseSettled(ctx context.Context, orderID snowflake.ID) (Order, error)
}
