package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-receiving/internal/catalog"
)

// Direction encodes the sign of a movement.
type Direction string

const (
	// DirectionIn represents stock entering.
	DirectionIn Direction = "IN"
	// DirectionOut represents stock leaving.
	DirectionOut Direction = "OUT"
)

// RefKind names what a movement is tied back to.
type RefKind string

const (
	RefSupplierOrder RefKind = "SUPPLIER_ORDER"
	RefDirectIntake  RefKind = "DIRECT_INTAKE"
	RefAdjustment    RefKind = "ADJUSTMENT"
)

// Valid reports whether k is a known reference kind.
func (k RefKind) Valid() bool {
	switch k {
	case RefSupplierOrder, RefDirectIntake, RefAdjustment:
		return true
	}
	return false
}

// Namespace returns the kinds whose ids are drawn from the same reference
// space as k. Intake batches stamp one RD- id on both intake and adjustment
// lines, so either kind finds the whole batch.
func (k RefKind) Namespace() []RefKind {
	switch k {
	case RefDirectIntake, RefAdjustment:
		return []RefKind{RefDirectIntake, RefAdjustment}
	}
	return []RefKind{k}
}

// Entry is one immutable row of the movement ledger. Quantity is the amount
// actually applied to stock; RequestedQuantity is what the caller asked for.
// They differ only when a negative adjustment was clamped at zero stock.
type Entry struct {
	ID                int64           `json:"id"`
	ItemCode          string          `json:"item_code"`
	Description       string          `json:"description"`
	Group             string          `json:"group"`
	Unit              string          `json:"unit"`
	Kind              catalog.Kind    `json:"kind"`
	Direction         Direction       `json:"direction"`
	Quantity          decimal.Decimal `json:"quantity"`
	RequestedQuantity decimal.Decimal `json:"requested_quantity"`
	UnitCost          decimal.Decimal `json:"unit_cost"`
	TotalCost         decimal.Decimal `json:"total_cost"`
	RefKind           RefKind         `json:"ref_kind"`
	RefID             string          `json:"ref_id"`
	RefNumber         string          `json:"ref_number"`
	Notes             string          `json:"notes,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
}

// Signed returns Quantity with the sign implied by Direction.
func (e Entry) Signed() decimal.Decimal {
	if e.Direction == DirectionOut {
		return e.Quantity.Neg()
	}
	return e.Quantity
}

// Reference ties entries back to a receipt event or intake batch.
type Reference struct {
	Kind   RefKind
	ID     string
	Number string
}

// Movement describes a stock change before it becomes an Entry.
type Movement struct {
	Item      catalog.Item
	Requested decimal.Decimal
	Effective decimal.Decimal
	UnitCost  decimal.Decimal
	Ref       Reference
	Notes     string
}

// NewEntry derives direction and totals for a movement. A zero effective
// delta takes its direction from the requested delta.
func NewEntry(m Movement) Entry {
	dir := DirectionIn
	switch {
	case m.Effective.IsNegative():
		dir = DirectionOut
	case m.Effective.IsZero() && m.Requested.IsNegative():
		dir = DirectionOut
	}
	qty := m.Effective.Abs()
	return Entry{
		ItemCode:          m.Item.Code,
		Description:       m.Item.Description,
		Group:             m.Item.Group,
		Unit:              m.Item.Unit,
		Kind:              m.Item.Kind,
		Direction:         dir,
		Quantity:          qty,
		RequestedQuantity: m.Requested.Abs(),
		UnitCost:          m.UnitCost,
		TotalCost:         qty.Mul(m.UnitCost),
		RefKind:           m.Ref.Kind,
		RefID:             m.Ref.ID,
		RefNumber:         m.Ref.Number,
		Notes:             m.Notes,
	}
}

// DefaultListLimit caps ListByItem when the filter sets no limit.
const DefaultListLimit = 200

// Filter narrows ListByItem results. Limit keeps the newest matching
// entries; results are still returned oldest first.
type Filter struct {
	ItemCode string
	Kind     catalog.Kind
	From     time.Time
	To       time.Time
	Limit    int
}

func (f Filter) limit() int {
	if f.Limit <= 0 {
		return DefaultListLimit
	}
	return f.Limit
}

// Writer appends entries. There is no update or delete.
type Writer interface {
	Append(ctx context.Context, entry Entry) (Entry, error)
}

// Reader lists previously appended entries in insertion order.
type Reader interface {
	ListByItem(ctx context.Context, filter Filter) ([]Entry, error)
	// ListByReference matches refID within kind's Namespace.
	ListByReference(ctx context.Context, kind RefKind, refID string) ([]Entry, error)
	ItemCodes(ctx context.Context, kind catalog.Kind) ([]string, error)
	// Balance is the signed sum of every movement for the item.
	Balance(ctx context.Context, code string, kind catalog.Kind) (decimal.Decimal, error)
}

// Store is a Writer and Reader.
type Store interface {
	Writer
	Reader
}

// ErrInvalidEntry indicates an entry missing its item or reference.
var ErrInvalidEntry = errors.New("ledger: entry requires item code and reference")

func validate(e Entry) error {
	if e.ItemCode == "" || e.RefID == "" || !e.RefKind.Valid() {
		return ErrInvalidEntry
	}
	if e.Quantity.IsNegative() {
		return ErrInvalidEntry
	}
	return nil
}

// Replay folds entries into the net quantity they imply.
func Replay(entries []Entry) decimal.Decimal {
	total := decimal.Zero
	for _, e := range entries {
		total = total.Add(e.Signed())
	}
	return total
}
