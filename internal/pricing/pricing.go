// Package pricing holds the monetary derivations for sales and returns.
// All amounts are int64 minor currency units; percentage math rounds to the
// nearest unit.
package pricing

import "math"

type Totals struct {
	Subtotal       int64
	DiscountAmount int64
	TaxAmount      int64
	TotalAmount    int64
	ChangeAmount   int64
}

// Compute derives the frozen monetary fields of a sale:
// discount = subtotal * discount% / 100, tax applies to the discounted
// base, change never goes negative when the amount paid falls short.
func Compute(subtotal int64, discountPercent float64, taxPercent float64, amountPaid int64) Totals {
	discount := Percent(subtotal, discountPercent)
	taxable := subtotal - discount
	tax := Percent(taxable, taxPercent)
	total := taxable + tax

	change := amountPaid - total
	if change < 0 {
		change = 0
	}

	return Totals{
		Subtotal:       subtotal,
		DiscountAmount: discount,
		TaxAmount:      tax,
		TotalAmount:    total,
		ChangeAmount:   change,
	}
}

func Percent(amount int64, percent float64) int64 {
	return int64(math.Round(float64(amount) * percent / 100))
}

// LoyaltyPoints is one point per 100 units of completed sale total.
func LoyaltyPoints(totalAmount int64) int64 {
	if totalAmount < 0 {
		return 0
	}
	return totalAmount / 100
}
