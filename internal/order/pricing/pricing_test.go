package pricing

import (
	"testing"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/mesaops/comanda/internal/catalog/domain"
	orderdomain "github.com/mesaops/comanda/internal/order/domain"
	"github.com/mesaops/comanda/pkg/money"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFreezeLineItemPrice(t *testing.T) {
	product := catalogdomain.ProductSnapshot{
		ProductID: snowflake.ID(1),
		Name:      "Parrillada",
		UnitPrice: money.FromUnits(35, 0),
	}
	options := []catalogdomain.OptionSnapshot{
		{OptionID: snowflake.ID(10), OptionTypeID: snowflake.ID(100), Name: "Extra ribs", PriceDelta: money.FromUnits(30, 0)},
	}

	price, err := FreezeLineItemPrice(product, 1, options)
	require.NoError(t, err)
	assert.Equal(t, money.FromMinor(3500), price.UnitPrice)
	assert.Equal(t, money.FromMinor(3000), price.OptionsPrice)
	assert.Equal(t, money.FromMinor(6500), price.Subtotal)

	price, err = FreezeLineItemPrice(product, 3, options)
	require.NoError(t, err)
	assert.Equal(t, money.FromMinor(19500), price.Subtotal)
}

func TestFreezeLineItemPriceRejectsQuantity(t *testing.T) {
	product := catalogdomain.ProductSnapshot{UnitPrice: money.FromMinor(100)}

	_, err := FreezeLineItemPrice(product, 0, nil)
	assert.ErrorIs(t, err, orderdomain.ErrInvalidQuantity)

	_, err = FreezeLineItemPrice(product, -2, nil)
	assert.ErrorIs(t, err, orderdomain.ErrInvalidQuantity)
}

func TestRecomputeOrderTotals(t *testing.T) {
	totals, err := RecomputeOrderTotals(
		[]money.Money{money.FromMinor(6500)},
		money.FromMinor(500),
		money.FromMinor(200),
	)
	require.NoError(t, err)
	assert.Equal(t, money.FromMinor(6500), totals.Subtotal)
	assert.Equal(t, money.FromMinor(6800), totals.Total)
}

func TestRecomputeOrderTotalsInvariants(t *testing.T) {
	// Discount larger than subtotal+tax drives the total negative.
	_, err := RecomputeOrderTotals(
		[]money.Money{money.FromMinor(100)},
		money.FromMinor(0),
		money.FromMinor(200),
	)
	assert.ErrorIs(t, err, orderdomain.ErrPricingInvariant)

	_, err = RecomputeOrderTotals(nil, money.FromMinor(-1), money.FromMinor(0))
	assert.ErrorIs(t, err, orderdomain.ErrPricingInvariant)

	_, err = RecomputeOrderTotals(nil, money.FromMinor(0), money.FromMinor(-1))
	assert.ErrorIs(t, err, orderdomain.ErrPricingInvariant)
}

func TestValidateOptionSelection(t *testing.T) {
	sizeType := snowflake.ID(100)
	extraType := snowflake.ID(200)
	one := 1

	bounds := []catalogdomain.SelectionBounds{
		{OptionTypeID: sizeType, Name: "Size", Minimum: 1, Maximum: &one},
		{OptionTypeID: extraType, Name: "Extras", Minimum: 0, Maximum: nil},
	}

	// One size selected, any number of extras: fine.
	err := ValidateOptionSelection(bounds, []catalogdomain.OptionSnapshot{
		{OptionID: 1, OptionTypeID: sizeType},
		{OptionID: 2, OptionTypeID: extraType},
		{OptionID: 3, OptionTypeID: extraType},
	})
	assert.NoError(t, err)

	// No size selected although minimum is 1.
	err = ValidateOptionSelection(bounds, []catalogdomain.OptionSnapshot{
		{OptionID: 2, OptionTypeID: extraType},
	})
	assert.ErrorIs(t, err, orderdomain.ErrOptionSelection)

	// Two sizes selected although maximum is 1.
	err = ValidateOptionSelection(bounds, []catalogdomain.OptionSnapshot{
		{OptionID: 1, OptionTypeID: sizeType},
		{OptionID: 4, OptionTypeID: sizeType},
	})
	assert.ErrorIs(t, err, orderdomain.ErrOptionSelection)
}
