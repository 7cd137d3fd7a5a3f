// Package domain contains the order aggregate: line items with frozen
// prices, the status machine, and order-level totals.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/mesaops/comanda/pkg/money"
	"gorm.io/datatypes"
)

// Status represents order lifecycle states.
type Status string

const (
	StatusPending       Status = "PENDING"
	StatusConfirmed     Status = "CONFIRMED"
	StatusInPreparation Status = "IN_PREPARATION"
	StatusReady         Status = "READY"
	StatusDelivered     Status = "DELIVERED"
	StatusCompleted     Status = "COMPLETED"
	StatusCancelled     Status = "CANCELLED"
)

// statusRank orders the forward chain. CANCELLED sits outside the chain.
var statusRank = map[Status]int{
	StatusPending:       0,
	StatusConfirmed:     1,
	StatusInPreparation: 2,
	StatusReady:         3,
	StatusDelivered:     4,
	StatusCompleted:     5,
}

// ParseStatus validates a caller-supplied status string.
func ParseStatus(raw string) (Status, bool) {
	s := Status(raw)
	if _, ok := statusRank[s]; ok {
		return s, true
	}
	if s == StatusCancelled {
		return s, true
	}
	return "", false
}

// IsTerminal reports whether no further transitions are allowed.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// CanStepTo reports whether target is the immediate next state in the
// forward chain. Skipping states is never allowed; kitchen timing fields
// depend on every boundary being crossed.
func (s Status) CanStepTo(target Status) bool {
	from, ok := statusRank[s]
	if !ok {
		return false
	}
	to, ok := statusRank[target]
	if !ok {
		return false
	}
	return to == from+1
}

// Order is the aggregate root for one table's order. It exclusively owns its
// line items, options and bill splits; payments reference it but are never
// deleted with it.
type Order struct {
	ID               snowflake.ID      `json:"id" gorm:"primaryKey"`
	TableID          snowflake.ID      `json:"table_id" gorm:"not null;index"`
	Status           Status            `json:"status" gorm:"type:text;not null;default:'PENDING'"`
	Version          int64             `json:"version" gorm:"not null;default:1"`
	Subtotal         money.Money       `json:"subtotal" gorm:"not null;default:0"`
	TaxAmount        money.Money       `json:"tax_amount" gorm:"not null;default:0"`
	DiscountAmount   money.Money       `json:"discount_amount" gorm:"not null;default:0"`
	Total            money.Money       `json:"total" gorm:"not null;default:0"`
	LineItems        []LineItem        `json:"line_items" gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	StatusTimestamps datatypes.JSONMap `json:"status_timestamps" gorm:"not null"`
	CreatedBy        string            `json:"created_by" gorm:"type:text"`
	LastModifiedBy   string            `json:"last_modified_by" gorm:"type:text"`
	CreatedAt        time.Time         `json:"created_at" gorm:"not null"`
	UpdatedAt        time.Time         `json:"updated_at" gorm:"not null"`
}

func (Order) TableName() string { return "orders" }

// StampStatus records the time a status boundary was crossed.
func (o *Order) StampStatus(status Status, at time.Time) {
	if o.StatusTimestamps == nil {
		o.StatusTimestamps = datatypes.JSONMap{}
	}
	o.StatusTimestamps[string(status)] = at.UTC().Format(time.RFC3339Nano)
}

// LineItem is one product entry on an order. All price fields are snapshots
// frozen at creation; catalog changes never reach them.
type LineItem struct {
	ID                   snowflake.ID `json:"id" gorm:"primaryKey"`
	OrderID              snowflake.ID `json:"order_id" gorm:"not null;index"`
	ProductID            snowflake.ID `json:"product_id" gorm:"not null;index"`
	ProductName          string       `json:"product_name" gorm:"type:text;not null"`
	Quantity             int64        `json:"quantity" gorm:"not null"`
	UnitPriceSnapshot    money.Money  `json:"unit_price_snapshot" gorm:"not null"`
	OptionsPriceSnapshot money.Money  `json:"options_price_snapshot" gorm:"not null;default:0"`
	Subtotal             money.Money  `json:"subtotal" gorm:"not null"`
	SelectedOptions      []LineOption `json:"selected_options" gorm:"foreignKey:LineItemID;constraint:OnDelete:CASCADE"`
	CreatedAt            time.Time    `json:"created_at" gorm:"not null"`
}

func (LineItem) TableName() string { return "order_line_items" }

// LineOption is one selected customization with its frozen price delta.
type LineOption struct {
	ID            snowflake.ID `json:"id" gorm:"primaryKey"`
	LineItemID    snowflake.ID `json:"line_item_id" gorm:"not null;index"`
	OptionID      snowflake.ID `json:"option_id" gorm:"not null"`
	OptionTypeID  snowflake.ID `json:"option_type_id" gorm:"not null"`
	OptionName    string       `json:"option_name" gorm:"type:text;not null"`
	PriceSnapshot money.Money  `json:"price_snapshot" gorm:"not null"`
}

func (LineOption) TableName() string { return "order_line_options" }
