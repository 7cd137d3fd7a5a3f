// Package seed installs a small deterministic demo dataset for local
// development: a short menu, option groups and a handful of tables. Seeding
// is idempotent; an already-populated catalog is left untouched.
package seed

import (
	"time"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/mesaops/comanda/internal/catalog/domain"
	tabledomain "github.com/mesaops/comanda/internal/table/domain"
	"github.com/mesaops/comanda/pkg/money"
	"gorm.io/gorm"
)

// Fixture IDs are fixed so repeated seeds and docs stay stable. They are far
// below any generated snowflake and can never collide with live data.
const (
	categoryStarters = snowflake.ID(101)
	categoryMains    = snowflake.ID(102)
	categoryDesserts = snowflake.ID(103)

	allergenGluten = snowflake.ID(201)
	allergenDairy  = snowflake.ID(202)
	allergenNuts   = snowflake.ID(203)

	typeDoneness = snowflake.ID(301)
	typeExtras   = snowflake.ID(302)

	optionRare     = snowflake.ID(401)
	optionMedium   = snowflake.ID(402)
	optionWellDone = snowflake.ID(403)
	optionBacon    = snowflake.ID(404)
	optionEgg      = snowflake.ID(405)

	productGazpacho = snowflake.ID(501)
	productTortilla = snowflake.ID(502)
	productRibeye   = snowflake.ID(503)
	productPaella   = snowflake.ID(504)
	productFlan     = snowflake.ID(505)
)

func EnsureDemoFixtures(conn *gorm.DB) error {
	var existing int64
	if err := conn.Model(&catalogdomain.Category{}).Count(&existing).Error; err != nil {
		return err
	}
	if existing > 0 {
		return nil
	}

	now := time.Now().UTC()
	one := 1

	return conn.Transaction(func(tx *gorm.DB) error {
		categories := []catalogdomain.Category{
			{ID: categoryStarters, Name: "Starters", SortOrder: 1, Active: true, CreatedAt: now, UpdatedAt: now},
			{ID: categoryMains, Name: "Mains", SortOrder: 2, Active: true, CreatedAt: now, UpdatedAt: now},
			{ID: categoryDesserts, Name: "Desserts", SortOrder: 3, Active: true, CreatedAt: now, UpdatedAt: now},
		}
		if err := tx.Create(&categories).Error; err != nil {
			return err
		}

		allergens := []catalogdomain.Allergen{
			{ID: allergenGluten, Code: "GLUTEN", Name: "Gluten"},
			{ID: allergenDairy, Code: "DAIRY", Name: "Dairy"},
			{ID: allergenNuts, Code: "NUTS", Name: "Tree nuts"},
		}
		if err := tx.Create(&allergens).Error; err != nil {
			return err
		}

		optionTypes := []catalogdomain.OptionType{
			{ID: typeDoneness, Name: "Doneness", SelectionMinimum: 1, SelectionMaximum: &one, CreatedAt: now, UpdatedAt: now},
			{ID: typeExtras, Name: "Extras", SelectionMinimum: 0, CreatedAt: now, UpdatedAt: now},
		}
		if err := tx.Create(&optionTypes).Error; err != nil {
			return err
		}

		options := []catalogdomain.Option{
			{ID: optionRare, OptionTypeID: typeDoneness, Name: "Rare", PriceDelta: 0, Active: true, CreatedAt: now, UpdatedAt: now},
			{ID: optionMedium, OptionTypeID: typeDoneness, Name: "Medium", PriceDelta: 0, Active: true, CreatedAt: now, UpdatedAt: now},
			{ID: optionWellDone, OptionTypeID: typeDoneness, Name: "Well done", PriceDelta: 0, Active: true, CreatedAt: now, UpdatedAt: now},
			{ID: optionBacon, OptionTypeID: typeExtras, Name: "Bacon", PriceDelta: money.FromUnits(1, 50), Active: true, CreatedAt: now, UpdatedAt: now},
			{ID: optionEgg, OptionTypeID: typeExtras, Name: "Fried egg", PriceDelta: money.FromUnits(1, 0), Active: true, CreatedAt: now, UpdatedAt: now},
		}
		if err := tx.Create(&options).Error; err != nil {
			return err
		}

		products := []catalogdomain.Product{
			{
				ID: productGazpacho, CategoryID: categoryStarters, Name: "Gazpacho",
				Description: "Chilled tomato soup", Price: money.FromUnits(6, 0), Active: true,
				CreatedAt: now, UpdatedAt: now,
			},
			{
				ID: productTortilla, CategoryID: categoryStarters, Name: "Tortilla de patatas",
				Price: money.FromUnits(8, 0), Active: true,
				Allergens: []catalogdomain.Allergen{{ID: allergenDairy}},
				CreatedAt: now, UpdatedAt: now,
			},
			{
				ID: productRibeye, CategoryID: categoryMains, Name: "Ribeye",
				Description: "300g, grilled", Price: money.FromUnits(35, 0), Active: true,
				OptionTypes: []catalogdomain.OptionType{{ID: typeDoneness}, {ID: typeExtras}},
				CreatedAt:   now, UpdatedAt: now,
			},
			{
				ID: productPaella, CategoryID: categoryMains, Name: "Paella",
				Description: "For one", Price: money.FromUnits(15, 0), Active: true,
				CreatedAt: now, UpdatedAt: now,
			},
			{
				ID: productFlan, CategoryID: categoryDesserts, Name: "Flan",
				Price: money.FromUnits(4, 50), Active: true,
				Allergens: []catalogdomain.Allergen{{ID: allergenDairy}},
				CreatedAt: now, UpdatedAt: now,
			},
		}
		for i := range products {
			if err := tx.Create(&products[i]).Error; err != nil {
				return err
			}
		}

		tables := make([]tabledomain.Table, 0, 8)
		for i := 1; i <= 8; i++ {
			capacity := 4
			if i > 6 {
				capacity = 8
			}
			tables = append(tables, tabledomain.Table{
				ID:        snowflake.ID(600 + i),
				Code:      "T" + string(rune('0'+i)),
				Capacity:  capacity,
				CreatedAt: now,
				UpdatedAt: now,
			})
		}
		return tx.Create(&tables).Error
	})
}
