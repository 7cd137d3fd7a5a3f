package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/mesaops/comanda/pkg/money"
)

var (
	ErrNotFound            = errors.New("catalog_not_found")
	ErrInvalidName         = errors.New("invalid_name")
	ErrInvalidPrice        = errors.New("invalid_price")
	ErrInvalidCategory     = errors.New("invalid_category")
	ErrInvalidBounds       = errors.New("invalid_selection_bounds")
	ErrDuplicateName       = errors.New("duplicate_name")
	ErrOptionNotApplicable = errors.New("option_not_applicable")
)

type CreateCategoryRequest struct {
	Name      string `json:"name"`
	SortOrder int    `json:"sort_order"`
}

type CreateAllergenRequest struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

type CreateProductRequest struct {
	CategoryID    snowflake.ID   `json:"category_id"`
	Name          string         `json:"name"`
	Description   string         `json:"description"`
	Price         money.Money    `json:"price"`
	AllergenIDs   []snowflake.ID `json:"allergen_ids"`
	OptionTypeIDs []snowflake.ID `json:"option_type_ids"`
}

type UpdateProductRequest struct {
	Name        *string      `json:"name"`
	Description *string      `json:"description"`
	Price       *money.Money `json:"price"`
	Active      *bool        `json:"active"`
}

type CreateOptionTypeRequest struct {
	Name             string `json:"name"`
	SelectionMinimum int    `json:"selection_minimum"`
	SelectionMaximum *int   `json:"selection_maximum"`
}

type CreateOptionRequest struct {
	OptionTypeID snowflake.ID `json:"option_type_id"`
	Name         string       `json:"name"`
	PriceDelta   money.Money  `json:"price_delta"`
}

// Service is the catalog management surface.
type Service interface {
	CreateCategory(ctx context.Context, req CreateCategoryRequest) (Category, error)
	ListCategories(ctx context.Context) ([]Category, error)

	CreateAllergen(ctx context.Context, req CreateAllergenRequest) (Allergen, error)
	ListAllergens(ctx context.Context) ([]Allergen, error)

	CreateProduct(ctx context.Context, req CreateProductRequest) (Product, error)
	GetProduct(ctx context.Context, id snowflake.ID) (Product, error)
	ListProducts(ctx context.Context) ([]Product, error)
	UpdateProduct(ctx context.Context, id snowflake.ID, req UpdateProductRequest) (Product, error)

	CreateOptionType(ctx context.Context, req CreateOptionTypeRequest) (OptionType, error)
	ListOptionTypes(ctx context.Context) ([]OptionType, error)
	CreateOption(ctx context.Context, req CreateOptionRequest) (Option, error)
}

// ProductSnapshot is the frozen view of a product at line-item creation time.
type ProductSnapshot struct {
	ProductID snowflake.ID
	Name      string
	UnitPrice money.Money
}

// OptionSnapshot is the frozen view of one selected option.
type OptionSnapshot struct {
	OptionID     snowflake.ID
	OptionTypeID snowflake.ID
	Name         string
	PriceDelta   money.Money
}

// SelectionBounds carries an option type's selection contract.
type SelectionBounds struct {
	OptionTypeID snowflake.ID
	Name         string
	Minimum      int
	Maximum      *int
}

// Lookup is the read-only collaborator the order engine consumes. It must be
// queried only at line-item creation time; later catalog changes never reach
// existing orders.
type Lookup interface {
	// ProductSnapshot resolves an active product's current price.
	ProductSnapshot(ctx context.Context, productID snowflake.ID) (ProductSnapshot, error)

	// OptionSnapshots resolves the selected options' prices and returns the
	// selection bounds of every option type applicable to the product, so the
	// caller can enforce minimums even for types with no selection. Options
	// whose type is not attached to the product fail with
	// ErrOptionNotApplicable.
	OptionSnapshots(ctx context.Context, productID snowflake.ID, optionIDs []snowflake.ID) ([]OptionSnapshot, []SelectionBounds, error)
}
