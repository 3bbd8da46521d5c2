package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func price(s string) decimal.NullDecimal {
	return Some(decimal.RequireFromString(s))
}

func requirePrice(t *testing.T, want string, got decimal.NullDecimal) {
	t.Helper()
	require.True(t, got.Valid, "expected %s, got absent", want)
	require.True(t, decimal.RequireFromString(want).Equal(got.Decimal), "expected %s, got %s", want, got.Decimal)
}

func TestShiftSamePriceKeepsHistory(t *testing.T) {
	field := Field{Current: price("10.00"), History: History{price("9"), price("8"), price("7")}}

	next, changed := Shift(field, price("10"))
	require.False(t, changed)
	require.Equal(t, field, next)

	next, changed = Shift(next, price("10.000"))
	require.False(t, changed)
	require.Equal(t, field, next)
}

func TestShiftThreeDistinctPrices(t *testing.T) {
	field := Field{Current: price("5")}

	field, changed := Shift(field, price("11"))
	require.True(t, changed)
	field, _ = Shift(field, price("12"))
	field, _ = Shift(field, price("13"))

	requirePrice(t, "13", field.Current)
	requirePrice(t, "12", field.History[0])
	requirePrice(t, "11", field.History[1])
	requirePrice(t, "5", field.History[2])
}

func TestShiftFromEmptyLeavesOlderSlotsEmpty(t *testing.T) {
	field, changed := Shift(Field{}, price("4.50"))
	require.True(t, changed)
	requirePrice(t, "4.50", field.Current)
	require.False(t, field.History[0].Valid)

	field, _ = Shift(field, price("5"))
	requirePrice(t, "4.50", field.History[0])
	require.False(t, field.History[1].Valid)
	require.False(t, field.History[2].Valid)
}

func TestShiftEvictsOldestSlot(t *testing.T) {
	field := Field{Current: price("4"), History: History{price("3"), price("2"), price("1")}}
	next, changed := Shift(field, price("5"))
	require.True(t, changed)
	requirePrice(t, "5", next.Current)
	requirePrice(t, "4", next.History[0])
	requirePrice(t, "3", next.History[1])
	requirePrice(t, "2", next.History[2])
}

func TestShiftAbsentCandidate(t *testing.T) {
	field := Field{Current: price("4")}
	next, changed := Shift(field, decimal.NullDecimal{})
	require.False(t, changed)
	require.Equal(t, field, next)
}

func TestShiftAbsentCurrentComparesAsZero(t *testing.T) {
	next, changed := Shift(Field{}, price("0"))
	require.False(t, changed)
	require.False(t, next.Current.Valid)
}

func TestShiftItemFieldsIndependent(t *testing.T) {
	cost := Field{Current: price("10")}
	selling := Field{Current: price("15")}

	u := ShiftItem(cost, selling, price("12"), price("15"))
	require.True(t, u.CostChanged)
	require.False(t, u.SellingChanged)
	require.True(t, u.Changed())
	requirePrice(t, "12", u.Cost.Current)
	requirePrice(t, "10", u.Cost.History[0])
	require.Equal(t, selling, u.Selling)
}

func TestParse(t *testing.T) {
	requirePrice(t, "3.25", Parse("3.25"))
	require.False(t, Parse("").Valid)
	require.False(t, Parse("abc").Valid)
}
