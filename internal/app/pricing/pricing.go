/*
Package pricing turns raw product price records into the price and discount facts shown
on every listing, product page and cart line.

Calculate is total: malformed or missing input degrades to zero-valued facts instead of
failing, so a broken price never aborts rendering. Cart totals are computed through the
same function to keep list views and cart values on identical rounding and clamping rules.
*/
package pricing

import (
	"strings"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// groupingReplacer removes the grouping separators that appear in formatted prices ("1,250.00").
var groupingReplacer = strings.NewReplacer(",", "", "_", "", " ", "", "\u00a0", "")

// Facts holds the derived price facts of a product. It is never stored.
type Facts struct {
	FinalPrice         decimal.Decimal `json:"finalPrice"`
	DiscountAmount     decimal.Decimal `json:"discountAmount"`
	OriginalPrice      decimal.Decimal `json:"originalPrice"`
	DiscountPercentage int64           `json:"discountPercentage"`
	HasDiscount        bool            `json:"hasDiscount"`
}

// ParseAmount parses a possibly formatted numeric string. Grouping separators are
// stripped; empty or unparsable input yields zero.
func ParseAmount(raw string) decimal.Decimal {
	cleaned := groupingReplacer.Replace(strings.TrimSpace(raw))
	if cleaned == "" {
		return decimal.Zero
	}

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// Calculate derives price facts from a raw price and a raw discount percentage.
func Calculate(rawPrice, rawDiscount string) Facts {
	return FromDecimal(ParseAmount(rawPrice), ParseAmount(rawDiscount))
}

// FromDecimal derives price facts from already numeric values.
//
// discountAmount = base × discount / 100 and finalPrice = base − discountAmount, both
// clamped to be non-negative. The reported percentage is rounded to a whole number and
// clamped to [0, 100]. HasDiscount requires 0 < discount ≤ 100.
//
// A discount above 100 is not rejected: discountAmount then exceeds basePrice, finalPrice
// is clamped to zero and HasDiscount is false. Views should rely on HasDiscount rather than
// on a non-zero discountAmount.
func FromDecimal(basePrice, discount decimal.Decimal) Facts {
	discountAmount := basePrice.Mul(discount).Div(hundred)
	if discountAmount.IsNegative() {
		discountAmount = decimal.Zero
	}

	finalPrice := basePrice.Sub(discountAmount)
	if finalPrice.IsNegative() {
		finalPrice = decimal.Zero
	}

	percentage := discount.Round(0).IntPart()
	switch {
	case percentage < 0:
		percentage = 0
	case percentage > 100:
		percentage = 100
	}

	return Facts{
		FinalPrice:         finalPrice,
		DiscountAmount:     discountAmount,
		OriginalPrice:      basePrice,
		DiscountPercentage: percentage,
		HasDiscount:        discount.IsPositive() && discount.LessThanOrEqual(hundred),
	}
}

// LineTotal is the final price multiplied by quantity. Non-positive quantities yield zero.
func (f Facts) LineTotal(quantity int) decimal.Decimal {
	if quantity <= 0 {
		return decimal.Zero
	}
	return f.FinalPrice.Mul(decimal.NewFromInt(int64(quantity)))
}

// Display is the two-decimal rendering of the facts used by views.
type Display struct {
	FinalPrice         string `json:"finalPrice"`
	DiscountAmount     string `json:"discountAmount"`
	OriginalPrice      string `json:"originalPrice"`
	DiscountPercentage int64  `json:"discountPercentage"`
	HasDiscount        bool   `json:"hasDiscount"`
}

// Display renders the facts with two decimal places.
func (f Facts) Display() Display {
	return Display{
		FinalPrice:         f.FinalPrice.StringFixed(2),
		DiscountAmount:     f.DiscountAmount.StringFixed(2),
		OriginalPrice:      f.OriginalPrice.StringFixed(2),
		DiscountPercentage: f.DiscountPercentage,
		HasDiscount:        f.HasDiscount,
	}
}
