// Package pricing computes frozen line-item prices and order totals. All
// functions are pure: they never touch the catalog or the store, so a price
// computed here can never change under an existing order.
package pricing

import (
	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/mesaops/comanda/internal/catalog/domain"
	orderdomain "github.com/mesaops/comanda/internal/order/domain"
	"github.com/mesaops/comanda/pkg/money"
)

// LinePrice is the frozen price of one line item.
type LinePrice struct {
	UnitPrice    money.Money
	OptionsPrice money.Money
	Subtotal     money.Money
}

// FreezeLineItemPrice computes a line item's snapshot from the catalog state
// at order time: subtotal = (unit + sum of option deltas) * quantity.
func FreezeLineItemPrice(product catalogdomain.ProductSnapshot, quantity int64, options []catalogdomain.OptionSnapshot) (LinePrice, error) {
	if quantity < 1 {
		return LinePrice{}, orderdomain.ErrInvalidQuantity
	}

	var optionsPrice money.Money
	for _, option := range options {
		optionsPrice = optionsPrice.Add(option.PriceDelta)
	}

	unit := product.UnitPrice
	return LinePrice{
		UnitPrice:    unit,
		OptionsPrice: optionsPrice,
		Subtotal:     unit.Add(optionsPrice).MulInt(quantity),
	}, nil
}

// ApplyRateBps applies a basis-point rate to an amount, truncating toward
// zero. Used for the configured default tax rate.
func ApplyRateBps(amount money.Money, bps int64) money.Money {
	if bps <= 0 {
		return 0
	}
	return money.Money(int64(amount) * bps / 10000)
}

// Totals is the order-level amount rollup.
type Totals struct {
	Subtotal money.Money
	Tax      money.Money
	Discount money.Money
	Total    money.Money
}

// RecomputeOrderTotals sums line-item subtotals and applies already-resolved
// tax and discount amounts. Tax and discount are inputs, not derived here.
func RecomputeOrderTotals(lineSubtotals []money.Money, tax, discount money.Money) (Totals, error) {
	if tax.IsNegative() || discount.IsNegative() {
		return Totals{}, orderdomain.ErrPricingInvariant
	}

	subtotal := money.Sum(lineSubtotals)
	total := subtotal.Add(tax).Sub(discount)
	if total.IsNegative() {
		return Totals{}, orderdomain.ErrPricingInvariant
	}
	return Totals{
		Subtotal: subtotal,
		Tax:      tax,
		Discount: discount,
		Total:    total,
	}, nil
}

// ValidateOptionSelection checks the selected options against every option
// type applicable to the product: for each type, selectionMinimum <= count
// <= selectionMaximum (nil maximum = unbounded).
func ValidateOptionSelection(bounds []catalogdomain.SelectionBounds, selected []catalogdomain.OptionSnapshot) error {
	counts := make(map[snowflake.ID]int, len(selected))
	for _, option := range selected {
		counts[option.OptionTypeID]++
	}

	for _, b := range bounds {
		count := counts[b.OptionTypeID]
		if count < b.Minimum {
			return orderdomain.ErrOptionSelection
		}
		if b.Maximum != nil && count > *b.Maximum {
			return orderdomain.ErrOptionSelection
		}
	}
	return nil
}
