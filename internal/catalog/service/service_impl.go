package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/mesaops/comanda/internal/catalog/domain"
	"github.com/mesaops/comanda/internal/clock"
	"github.com/mesaops/comanda/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  catalogdomain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  catalogdomain.Repository
}

func NewService(p Params) *Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("catalog.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) CreateCategory(ctx context.Context, req catalogdomain.CreateCategoryRequest) (catalogdomain.Category, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return catalogdomain.Category{}, catalogdomain.ErrInvalidName
	}

	now := s.clock.Now()
	category := catalogdomain.Category{
		ID:        s.genID.Generate(),
		Name:      name,
		SortOrder: req.SortOrder,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.InsertCategory(ctx, s.db, &category); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return catalogdomain.Category{}, catalogdomain.ErrDuplicateName
		}
		return catalogdomain.Category{}, err
	}
	return category, nil
}

func (s *Service) ListCategories(ctx context.Context) ([]catalogdomain.Category, error) {
	return s.repo.ListCategories(ctx, s.db)
}

func (s *Service) CreateAllergen(ctx context.Context, req catalogdomain.CreateAllergenRequest) (catalogdomain.Allergen, error) {
	code := strings.ToLower(strings.TrimSpace(req.Code))
	name := strings.TrimSpace(req.Name)
	if code == "" || name == "" {
		return catalogdomain.Allergen{}, catalogdomain.ErrInvalidName
	}

	allergen := catalogdomain.Allergen{
		ID:   s.genID.Generate(),
		Code: code,
		Name: name,
	}
	if err := s.repo.InsertAllergen(ctx, s.db, &allergen); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return catalogdomain.Allergen{}, catalogdomain.ErrDuplicateName
		}
		return catalogdomain.Allergen{}, err
	}
	return allergen, nil
}

func (s *Service) ListAllergens(ctx context.Context) ([]catalogdomain.Allergen, error) {
	return s.repo.ListAllergens(ctx, s.db)
}

func (s *Service) CreateProduct(ctx context.Context, req catalogdomain.CreateProductRequest) (catalogdomain.Product, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return catalogdomain.Product{}, catalogdomain.ErrInvalidName
	}
	if req.Price.IsNegative() {
		return catalogdomain.Product{}, catalogdomain.ErrInvalidPrice
	}

	category, err := s.repo.FindCategoryByID(ctx, s.db, req.CategoryID)
	if err != nil {
		return catalogdomain.Product{}, err
	}
	if category == nil {
		return catalogdomain.Product{}, catalogdomain.ErrInvalidCategory
	}

	allergens, err := s.repo.FindAllergens(ctx, s.db, req.AllergenIDs)
	if err != nil {
		return catalogdomain.Product{}, err
	}
	if len(allergens) != len(req.AllergenIDs) {
		return catalogdomain.Product{}, catalogdomain.ErrNotFound
	}
	optionTypes, err := s.repo.FindOptionTypes(ctx, s.db, req.OptionTypeIDs)
	if err != nil {
		return catalogdomain.Product{}, err
	}
	if len(optionTypes) != len(req.OptionTypeIDs) {
		return catalogdomain.Product{}, catalogdomain.ErrNotFound
	}

	now := s.clock.Now()
	product := catalogdomain.Product{
		ID:          s.genID.Generate(),
		CategoryID:  req.CategoryID,
		Name:        name,
		Description: strings.TrimSpace(req.Description),
		Price:       req.Price,
		Active:      true,
		Allergens:   allergens,
		OptionTypes: optionTypes,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.InsertProduct(ctx, s.db, &product); err != nil {
		return catalogdomain.Product{}, err
	}

	s.log.Info("product created",
		zap.String("product_id", product.ID.String()),
		zap.String("name", product.Name),
		zap.String("price", product.Price.String()),
	)
	return product, nil
}

func (s *Service) GetProduct(ctx context.Context, id snowflake.ID) (catalogdomain.Product, error) {
	product, err := s.repo.FindProductByID(ctx, s.db, id)
	if err != nil {
		return catalogdomain.Product{}, err
	}
	if product == nil {
		return catalogdomain.Product{}, catalogdomain.ErrNotFound
	}
	return *product, nil
}

func (s *Service) ListProducts(ctx context.Context) ([]catalogdomain.Product, error) {
	return s.repo.ListProducts(ctx, s.db)
}

func (s *Service) UpdateProduct(ctx context.Context, id snowflake.ID, req catalogdomain.UpdateProductRequest) (catalogdomain.Product, error) {
	product, err := s.repo.FindProductByID(ctx, s.db, id)
	if err != nil {
		return catalogdomain.Product{}, err
	}
	if product == nil {
		return catalogdomain.Product{}, catalogdomain.ErrNotFound
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return catalogdomain.Product{}, catalogdomain.ErrInvalidName
		}
		product.Name = name
	}
	if req.Description != nil {
		product.Description = strings.TrimSpace(*req.Description)
	}
	if req.Price != nil {
		if req.Price.IsNegative() {
			return catalogdomain.Product{}, catalogdomain.ErrInvalidPrice
		}
		product.Price = *req.Price
	}
	if req.Active != nil {
		product.Active = *req.Active
	}
	product.UpdatedAt = s.clock.Now()

	if err := s.repo.UpdateProduct(ctx, s.db, product); err != nil {
		return catalogdomain.Product{}, err
	}
	return *product, nil
}

func (s *Service) CreateOptionType(ctx context.Context, req catalogdomain.CreateOptionTypeRequest) (catalogdomain.OptionType, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return catalogdomain.OptionType{}, catalogdomain.ErrInvalidName
	}
	if req.SelectionMinimum < 0 {
		return catalogdomain.OptionType{}, catalogdomain.ErrInvalidBounds
	}
	if req.SelectionMaximum != nil && *req.SelectionMaximum < req.SelectionMinimum {
		return catalogdomain.OptionType{}, catalogdomain.ErrInvalidBounds
	}

	now := s.clock.Now()
	optionType := catalogdomain.OptionType{
		ID:               s.genID.Generate(),
		Name:             name,
		SelectionMinimum: req.SelectionMinimum,
		SelectionMaximum: req.SelectionMaximum,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.repo.InsertOptionType(ctx, s.db, &optionType); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return catalogdomain.OptionType{}, catalogdomain.ErrDuplicateName
		}
		return catalogdomain.OptionType{}, err
	}
	return optionType, nil
}

func (s *Service) ListOptionTypes(ctx context.Context) ([]catalogdomain.OptionType, error) {
	return s.repo.ListOptionTypes(ctx, s.db)
}

func (s *Service) CreateOption(ctx context.Context, req catalogdomain.CreateOptionRequest) (catalogdomain.Option, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return catalogdomain.Option{}, catalogdomain.ErrInvalidName
	}
	if req.PriceDelta.IsNegative() {
		return catalogdomain.Option{}, catalogdomain.ErrInvalidPrice
	}

	optionTypes, err := s.repo.FindOptionTypes(ctx, s.db, []snowflake.ID{req.OptionTypeID})
	if err != nil {
		return catalogdomain.Option{}, err
	}
	if len(optionTypes) == 0 {
		return catalogdomain.Option{}, catalogdomain.ErrNotFound
	}

	now := s.clock.Now()
	option := catalogdomain.Option{
		ID:           s.genID.Generate(),
		OptionTypeID: req.OptionTypeID,
		Name:         name,
		PriceDelta:   req.PriceDelta,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.InsertOption(ctx, s.db, &option); err != nil {
		return catalogdomain.Option{}, err
	}
	return option, nil
}

var _ catalogdomain.Service = (*Service)(nil)
