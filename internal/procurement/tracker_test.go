package procurement

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-receiving/internal/catalog"
	"github.com/odyssey-erp/odyssey-receiving/internal/shared"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func event(items ...ReceivedItem) ReceiptEvent {
	return ReceiptEvent{Items: items}
}

func received(code, qty string) ReceivedItem {
	return ReceivedItem{ItemCode: code, Kind: catalog.KindTracked, Quantity: dec(qty)}
}

func singleLine(code, ordered string) []OrderLine {
	return []OrderLine{{ItemCode: code, Kind: catalog.KindTracked, QuantityOrdered: dec(ordered), UnitCost: dec("3")}}
}

func TestRemaindersScenario(t *testing.T) {
	lines := singleLine("A-100", "10")
	var events []ReceiptEvent

	rem := Remainders(lines, events)
	accepted, err := Validate(rem, []Candidate{{ItemCode: "A-100", Quantity: dec("4")}})
	require.NoError(t, err)
	require.Len(t, accepted, 1)
	events = append(events, event(received("A-100", "4")))

	rem = Remainders(lines, events)
	require.True(t, rem[0].Remaining.Equal(dec("6")))
	require.Equal(t, StatusPartiallyReceived, CompletionStatus(StatusOrdered, rem))

	_, err = Validate(rem, []Candidate{{ItemCode: "A-100", Quantity: dec("7")}})
	require.ErrorIs(t, err, ErrOverReceipt)
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = Validate(rem, []Candidate{{ItemCode: "A-100", Quantity: dec("6")}})
	require.NoError(t, err)
	events = append(events, event(received("A-100", "6")))

	rem = Remainders(lines, events)
	require.True(t, rem[0].Remaining.IsZero())
	require.True(t, rem[0].ReceivedToDate.Equal(dec("10")))
	require.Equal(t, StatusReceived, CompletionStatus(StatusPartiallyReceived, rem))

	_, err = Validate(rem, []Candidate{{ItemCode: "A-100", Quantity: dec("0.001")}})
	require.ErrorIs(t, err, ErrOverReceipt)
}

func TestRemaindersDecimalExact(t *testing.T) {
	lines := singleLine("C-1", "1")
	events := []ReceiptEvent{}
	for i := 0; i < 10; i++ {
		events = append(events, event(received("C-1", "0.1")))
	}
	rem := Remainders(lines, events)
	require.True(t, rem[0].Remaining.IsZero(), rem[0].Remaining.String())
	require.True(t, rem[0].ReceivedToDate.Equal(dec("1")))
}

func TestRemaindersAggregateByCode(t *testing.T) {
	lines := []OrderLine{
		{ItemCode: "A-100", QuantityOrdered: dec("3"), Description: "first"},
		{ItemCode: "B-200", QuantityOrdered: dec("2")},
		{ItemCode: "A-100", QuantityOrdered: dec("5"), Description: "second"},
	}
	rem := Remainders(lines, []ReceiptEvent{event(received("A-100", "6"), received("Z-9", "1"))})
	require.Len(t, rem, 2)
	require.Equal(t, "A-100", rem[0].ItemCode)
	require.Equal(t, "first", rem[0].Description)
	require.True(t, rem[0].QuantityOrdered.Equal(dec("8")))
	require.True(t, rem[0].Remaining.Equal(dec("2")))
	require.True(t, rem[1].Remaining.Equal(dec("2")))
}

func TestRemainingNeverNegative(t *testing.T) {
	rem := Remainders(singleLine("A-100", "2"), []ReceiptEvent{event(received("A-100", "5"))})
	require.True(t, rem[0].Remaining.IsZero())
}

func TestValidateRejections(t *testing.T) {
	rem := Remainders(singleLine("A-100", "10"), nil)

	_, err := Validate(rem, []Candidate{{ItemCode: "X-1", Quantity: dec("1")}})
	require.ErrorIs(t, err, ErrUnknownOrderItem)

	_, err = Validate(rem, []Candidate{{ItemCode: "A-100", Quantity: dec("-1")}})
	require.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = Validate(rem, []Candidate{{ItemCode: "A-100", Quantity: decimal.Zero}})
	require.ErrorIs(t, err, ErrNoLines)

	_, err = Validate(rem, nil)
	require.ErrorIs(t, err, ErrNoLines)

	_, err = Validate(rem, []Candidate{{ItemCode: "A-100", Quantity: dec("6")}, {ItemCode: "A-100", Quantity: dec("5")}})
	require.ErrorIs(t, err, ErrOverReceipt)
}

func TestValidateDropsZeroLines(t *testing.T) {
	lines := append(singleLine("A-100", "10"), OrderLine{ItemCode: "B-200", QuantityOrdered: dec("1")})
	accepted, err := Validate(Remainders(lines, nil), []Candidate{
		{ItemCode: "B-200", Quantity: decimal.Zero},
		{ItemCode: "A-100", Quantity: dec("2")},
	})
	require.NoError(t, err)
	require.Equal(t, []Candidate{{ItemCode: "A-100", Quantity: dec("2")}}, accepted)
}

func TestCompletionStatus(t *testing.T) {
	lines := append(singleLine("A-100", "10"), OrderLine{ItemCode: "B-200", QuantityOrdered: dec("1")})

	require.Equal(t, StatusOrdered, CompletionStatus(StatusOrdered, Remainders(lines, nil)))

	partial := Remainders(lines, []ReceiptEvent{event(received("B-200", "1"))})
	require.Equal(t, StatusPartiallyReceived, CompletionStatus(StatusInOrder, partial))
	require.True(t, Outstanding(partial))

	require.Equal(t, StatusReceived, CompletionStatus(StatusReceived, partial))
}

func TestReceivableStatuses(t *testing.T) {
	for _, s := range []Status{StatusInOrder, StatusOrdered, StatusPartiallyReceived} {
		require.True(t, s.Receivable(), s)
	}
	for _, s := range []Status{StatusDraft, StatusReceived, StatusCancelled} {
		require.False(t, s.Receivable(), s)
	}
}
