package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	InsertCategory(ctx context.Context, db *gorm.DB, category *Category) error
	ListCategories(ctx context.Context, db *gorm.DB) ([]Category, error)
	FindCategoryByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Category, error)

	InsertAllergen(ctx context.Context, db *gorm.DB, allergen *Allergen) error
	ListAllergens(ctx context.Context, db *gorm.DB) ([]Allergen, error)
	FindAllergens(ctx context.Context, db *gorm.DB, ids []snowflake.ID) ([]Allergen, error)

	InsertProduct(ctx context.Context, db *gorm.DB, product *Product) error
	FindProductByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Product, error)
	ListProducts(ctx context.Context, db *gorm.DB) ([]Product, error)
	UpdateProduct(ctx context.Context, db *gorm.DB, product *Product) error

	InsertOptionType(ctx context.Context, db *gorm.DB, optionType *OptionType) error
	ListOptionTypes(ctx context.Context, db *gorm.DB) ([]OptionType, error)
	FindOptionTypes(ctx context.Context, db *gorm.DB, ids []snowflake.ID) ([]OptionType, error)

	InsertOption(ctx context.Context, db *gorm.DB, option *Option) error
	FindOptions(ctx context.Context, db *gorm.DB, ids []snowflake.ID) ([]Option, error)
}
