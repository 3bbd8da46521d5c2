package procurement

import (
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-receiving/internal/catalog"
	"github.com/odyssey-erp/odyssey-receiving/internal/shared"
)

// LineRemainder is the replayed state of one item code on an order.
type LineRemainder struct {
	ItemCode        string          `json:"item_code"`
	Kind            catalog.Kind    `json:"kind"`
	Description     string          `json:"description"`
	Unit            string          `json:"unit"`
	UnitCost        decimal.Decimal `json:"unit_cost"`
	QuantityOrdered decimal.Decimal `json:"quantity_ordered"`
	ReceivedToDate  decimal.Decimal `json:"received_to_date"`
	Remaining       decimal.Decimal `json:"remaining"`
}

// Remainders replays events against the order lines. Lines sharing an item
// code are summed; the first line carries the item attributes. Output keeps
// first-seen line order.
func Remainders(lines []OrderLine, events []ReceiptEvent) []LineRemainder {
	index := make(map[string]int, len(lines))
	out := make([]LineRemainder, 0, len(lines))
	for _, line := range lines {
		if i, ok := index[line.ItemCode]; ok {
			out[i].QuantityOrdered = out[i].QuantityOrdered.Add(line.QuantityOrdered)
			continue
		}
		index[line.ItemCode] = len(out)
		out = append(out, LineRemainder{
			ItemCode:        line.ItemCode,
			Kind:            line.Kind,
			Description:     line.Description,
			Unit:            line.Unit,
			UnitCost:        line.UnitCost,
			QuantityOrdered: line.QuantityOrdered,
			ReceivedToDate:  decimal.Zero,
		})
	}
	for _, event := range events {
		for _, item := range event.Items {
			if i, ok := index[item.ItemCode]; ok {
				out[i].ReceivedToDate = out[i].ReceivedToDate.Add(item.Quantity)
			}
		}
	}
	for i := range out {
		remaining := out[i].QuantityOrdered.Sub(out[i].ReceivedToDate)
		if remaining.IsNegative() {
			remaining = decimal.Zero
		}
		out[i].Remaining = remaining
	}
	return out
}

// Candidate is one requested receipt line.
type Candidate struct {
	ItemCode string
	Quantity decimal.Decimal
}

// Validate checks a candidate receipt against the remainders and returns the
// lines to apply in caller order, zero quantities dropped. Any violation
// rejects the whole receipt.
func Validate(remainders []LineRemainder, candidates []Candidate) ([]Candidate, error) {
	byCode := make(map[string]LineRemainder, len(remainders))
	for _, r := range remainders {
		byCode[r.ItemCode] = r
	}
	requested := make(map[string]decimal.Decimal, len(candidates))
	accepted := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Quantity.IsNegative() {
			return nil, shared.Invalid(ErrInvalidQuantity, "%s: %s", c.ItemCode, c.Quantity)
		}
		r, ok := byCode[c.ItemCode]
		if !ok {
			return nil, shared.Invalid(ErrUnknownOrderItem, "%s", c.ItemCode)
		}
		if c.Quantity.IsZero() {
			continue
		}
		total := requested[c.ItemCode].Add(c.Quantity)
		if total.GreaterThan(r.Remaining) {
			return nil, shared.Invalid(ErrOverReceipt, "%s: requested %s, remaining %s", c.ItemCode, total, r.Remaining)
		}
		requested[c.ItemCode] = total
		accepted = append(accepted, c)
	}
	if len(accepted) == 0 {
		return nil, shared.Invalid(ErrNoLines, "all quantities are zero")
	}
	return accepted, nil
}

// CompletionStatus derives the order status after receiving. A received
// order stays received.
func CompletionStatus(current Status, remainders []LineRemainder) Status {
	if current == StatusReceived {
		return current
	}
	if len(remainders) == 0 {
		return current
	}
	complete := true
	anyReceived := false
	for _, r := range remainders {
		if r.Remaining.IsPositive() {
			complete = false
		}
		if r.ReceivedToDate.IsPositive() {
			anyReceived = true
		}
	}
	switch {
	case complete:
		return StatusReceived
	case anyReceived:
		return StatusPartiallyReceived
	default:
		return current
	}
}

// Outstanding reports whether any remainder is above zero.
func Outstanding(remainders []LineRemainder) bool {
	for _, r := range remainders {
		if r.Remaining.IsPositive() {
			return true
		}
	}
	return false
}
