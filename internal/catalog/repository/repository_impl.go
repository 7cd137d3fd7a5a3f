package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/mesaops/comanda/internal/catalog/domain"
	"gorm.io/gorm"
)

type repository struct{}

func Provide() domain.Repository {
	return &repository{}
}

func (r *repository) InsertCategory(ctx context.Context, db *gorm.DB, category *domain.Category) error {
	return db.WithContext(ctx).Create(category).Error
}

func (r *repository) ListCategories(ctx context.Context, db *gorm.DB) ([]domain.Category, error) {
	var categories []domain.Category
	err := db.WithContext(ctx).Order("sort_order, name").Find(&categories).Error
	return categories, err
}

func (r *repository) FindCategoryByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Category, error) {
	var category domain.Category
	err := db.WithContext(ctx).First(&category, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &category, nil
}

func (r *repository) InsertAllergen(ctx context.Context, db *gorm.DB, allergen *domain.Allergen) error {
	return db.WithContext(ctx).Create(allergen).Error
}

func (r *repository) ListAllergens(ctx context.Context, db *gorm.DB) ([]domain.Allergen, error) {
	var allergens []domain.Allergen
	err := db.WithContext(ctx).Order("code").Find(&allergens).Error
	return allergens, err
}

func (r *repository) FindAllergens(ctx context.Context, db *gorm.DB, ids []snowflake.ID) ([]domain.Allergen, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var allergens []domain.Allergen
	err := db.WithContext(ctx).Where("id IN ?", ids).Find(&allergens).Error
	return allergens, err
}

func (r *repository) InsertProduct(ctx context.Context, db *gorm.DB, product *domain.Product) error {
	return db.WithContext(ctx).Create(product).Error
}

func (r *repository) FindProductByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Product, error) {
	var product domain.Product
	err := db.WithContext(ctx).
		Preload("Allergens").
		Preload("OptionTypes").
		Preload("OptionTypes.Options").
		First(&product, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &product, nil
}

func (r *repository) ListProducts(ctx context.Context, db *gorm.DB) ([]domain.Product, error) {
	var products []domain.Product
	err := db.WithContext(ctx).
		Preload("Allergens").
		Preload("OptionTypes").
		Order("name").
		Find(&products).Error
	return products, err
}

func (r *repository) UpdateProduct(ctx context.Context, db *gorm.DB, product *domain.Product) error {
	return db.WithContext(ctx).Save(product).Error
}

func (r *repository) InsertOptionType(ctx context.Context, db *gorm.DB, optionType *domain.OptionType) error {
	return db.WithContext(ctx).Create(optionType).Error
}

func (r *repository) ListOptionTypes(ctx context.Context, db *gorm.DB) ([]domain.OptionType, error) {
	var optionTypes []domain.OptionType
	err := db.WithContext(ctx).Preload("Options").Order("name").Find(&optionTypes).Error
	return optionTypes, err
}

func (r *repository) FindOptionTypes(ctx context.Context, db *gorm.DB, ids []snowflake.ID) ([]domain.OptionType, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var optionTypes []domain.OptionType
	err := db.WithContext(ctx).Where("id IN ?", ids).Find(&optionTypes).Error
	return optionTypes, err
}

func (r *repository) InsertOption(ctx context.Context, db *gorm.DB, option *domain.Option) error {
	return db.WithContext(ctx).Create(option).Error
}

func (r *repository) FindOptions(ctx context.Context, db *gorm.DB, ids []snowflake.ID) ([]domain.Option, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var options []domain.Option
	err := db.WithContext(ctx).Where("id IN ?", ids).Find(&options).Error
	return options, err
}
