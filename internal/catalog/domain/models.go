// Package domain contains persistence models for the menu catalog.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/mesaops/comanda/pkg/money"
)

// Category groups products on the menu.
type Category struct {
	ID        snowflake.ID `json:"id" gorm:"primaryKey"`
	Name      string       `json:"name" gorm:"type:text;not null;uniqueIndex"`
	SortOrder int          `json:"sort_order" gorm:"not null;default:0"`
	Active    bool         `json:"active" gorm:"not null;default:true"`
	CreatedAt time.Time    `json:"created_at" gorm:"not null"`
	UpdatedAt time.Time    `json:"updated_at" gorm:"not null"`
}

func (Category) TableName() string { return "categories" }

// Allergen is a declared allergen attached to products.
type Allergen struct {
	ID   snowflake.ID `json:"id" gorm:"primaryKey"`
	Code string       `json:"code" gorm:"type:text;not null;uniqueIndex"`
	Name string       `json:"name" gorm:"type:text;not null"`
}

func (Allergen) TableName() string { return "allergens" }

// Product is a sellable menu item. Price is the catalog price at rest; orders
// snapshot it at line-item creation and never re-read it.
type Product struct {
	ID          snowflake.ID `json:"id" gorm:"primaryKey"`
	CategoryID  snowflake.ID `json:"category_id" gorm:"not null;index"`
	Name        string       `json:"name" gorm:"type:text;not null"`
	Description string       `json:"description" gorm:"type:text"`
	Price       money.Money  `json:"price" gorm:"not null"`
	Active      bool         `json:"active" gorm:"not null;default:true"`
	Allergens   []Allergen   `json:"allergens,omitempty" gorm:"many2many:product_allergens"`
	OptionTypes []OptionType `json:"option_types,omitempty" gorm:"many2many:product_option_types"`
	CreatedAt   time.Time    `json:"created_at" gorm:"not null"`
	UpdatedAt   time.Time    `json:"updated_at" gorm:"not null"`
}

func (Product) TableName() string { return "products" }

// OptionType is a named group of related options (size, spice level) with
// selection-count bounds. A nil SelectionMaximum means unbounded.
type OptionType struct {
	ID               snowflake.ID `json:"id" gorm:"primaryKey"`
	Name             string       `json:"name" gorm:"type:text;not null;uniqueIndex"`
	SelectionMinimum int          `json:"selection_minimum" gorm:"not null;default:0"`
	SelectionMaximum *int         `json:"selection_maximum"`
	Options          []Option     `json:"options,omitempty" gorm:"foreignKey:OptionTypeID"`
	CreatedAt        time.Time    `json:"created_at" gorm:"not null"`
	UpdatedAt        time.Time    `json:"updated_at" gorm:"not null"`
}

func (OptionType) TableName() string { return "option_types" }

// Option is one selectable customization with an incremental price.
type Option struct {
	ID           snowflake.ID `json:"id" gorm:"primaryKey"`
	OptionTypeID snowflake.ID `json:"option_type_id" gorm:"not null;index"`
	Name         string       `json:"name" gorm:"type:text;not null"`
	PriceDelta   money.Money  `json:"price_delta" gorm:"not null;default:0"`
	Active       bool         `json:"active" gorm:"not null;default:true"`
	CreatedAt    time.Time    `json:"created_at" gorm:"not null"`
	UpdatedAt    time.Time    `json:"updated_at" gorm:"not null"`
}

func (Option) TableName() string { return "options" }
