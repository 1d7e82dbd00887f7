package domain

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// LineTotal is the single pricing rule for the whole shop:
// price * (1 - discount/100) * quantity, rounded to 2 decimal places.
// Discount is a percentage (10 means 10%). Every place that computes money
// from a price snapshot must go through this function.
func LineTotal(price, discountPct decimal.Decimal, quantity int) decimal.Decimal {
	factor := decimal.NewFromInt(1).Sub(discountPct.Div(hundred))
	return price.Mul(factor).Mul(decimal.NewFromInt(int64(quantity))).Round(2)
}

// CartTotal recomputes a cart total from scratch as the sum of its items'
// line totals. This is the authoritative aggregate; incremental updates are
// tested against it for equivalence.
func CartTotal(items []*CartItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(LineTotal(item.BookPrice, item.Discount, item.Quantity))
	}
	return total.Round(2)
}
