// Package pricing keeps a bounded memory of previous cost and selling prices.
package pricing

import "github.com/shopspring/decimal"

// Depth is the number of previous values remembered per price field.
const Depth = 3

// History holds previous values of one price field, most recent first.
type History [Depth]decimal.NullDecimal

// Field is one price column together with its history slots.
type Field struct {
	Current decimal.NullDecimal
	History History
}

// Update is the outcome of shifting both price fields of an item.
type Update struct {
	Cost           Field
	CostChanged    bool
	Selling        Field
	SellingChanged bool
}

// Changed reports whether either field moved.
func (u Update) Changed() bool {
	return u.CostChanged || u.SellingChanged
}

// Shift pushes field.Current into history and installs candidate when the
// candidate is present and numerically different from the current value.
// An absent current value compares as zero, so a candidate of 0 against an
// empty field is not a change.
func Shift(field Field, candidate decimal.NullDecimal) (Field, bool) {
	if !candidate.Valid {
		return field, false
	}
	if Value(field.Current).Equal(candidate.Decimal) {
		return field, false
	}
	next := Field{Current: candidate}
	next.History[0] = field.Current
	copy(next.History[1:], field.History[:Depth-1])
	return next, true
}

// ShiftItem applies Shift to cost and selling independently.
func ShiftItem(cost, selling Field, candidateCost, candidateSelling decimal.NullDecimal) Update {
	var u Update
	u.Cost, u.CostChanged = Shift(cost, candidateCost)
	u.Selling, u.SellingChanged = Shift(selling, candidateSelling)
	return u
}

// Value returns the decimal behind n, or zero when absent.
func Value(n decimal.NullDecimal) decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}
	return n.Decimal
}

// Some wraps d as a present value.
func Some(d decimal.Decimal) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: d, Valid: true}
}

// Parse reads a decimal from text. Empty or unparsable text yields an absent
// value rather than an error.
func Parse(text string) decimal.NullDecimal {
	if text == "" {
		return decimal.NullDecimal{}
	}
	d, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return Some(d)
}
