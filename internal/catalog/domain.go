package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-receiving/internal/pricing"
	"github.com/odyssey-erp/odyssey-receiving/internal/shared"
)

// Kind selects which storage an item lives in.
type Kind string

const (
	// KindTracked items carry a stock quantity managed by receiving.
	KindTracked Kind = "tracked"
	// KindUntracked items are services or non-stock goods.
	KindUntracked Kind = "untracked"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k == KindTracked || k == KindUntracked
}

// ParseKind normalises user input into a Kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", shared.Invalid(ErrInvalidKind, "%q", s)
	}
	return k, nil
}

// Item is a catalog record with its current and historical prices.
type Item struct {
	Code          string
	Kind          Kind
	Description   string
	Unit          string
	Group         string
	StockQuantity decimal.Decimal
	Cost          pricing.Field
	Selling       pricing.Field
	Version       int64
	UpdatedAt     time.Time
}

// Tracked reports whether stock is managed for the item.
func (i Item) Tracked() bool {
	return i.Kind == KindTracked
}

// ApplyDelta computes the stock after a signed delta, clamped at zero, and
// the delta that was actually applied. Untracked items keep a zero stock and
// report the requested delta unchanged.
func (i Item) ApplyDelta(delta decimal.Decimal) (stock, effective decimal.Decimal) {
	if !i.Tracked() {
		return decimal.Zero, delta
	}
	stock = i.StockQuantity.Add(delta)
	if stock.IsNegative() {
		stock = decimal.Zero
	}
	return stock, stock.Sub(i.StockQuantity)
}

// Store is the collaborator interface the receiving engine reads and writes
// catalog items through. Tracked and untracked items live in separate
// storage; Kind picks one at this boundary.
type Store interface {
	Get(ctx context.Context, code string, kind Kind) (Item, error)
	// Create inserts a new item and fails with ErrItemExists on a duplicate code.
	Create(ctx context.Context, item Item) (Item, error)
	// Update writes item only if its Version still matches the stored one and
	// returns the record with the bumped version. A lost race yields
	// ErrVersionConflict.
	Update(ctx context.Context, item Item) (Item, error)
	ListCodes(ctx context.Context, kind Kind) ([]string, error)
}

var (
	// ErrItemNotFound indicates the code is unknown for the requested kind.
	ErrItemNotFound = fmt.Errorf("catalog: item not found: %w", shared.ErrNotFound)
	// ErrItemExists indicates a create collided with an existing code.
	ErrItemExists = fmt.Errorf("catalog: item already exists: %w", shared.ErrConflict)
	// ErrVersionConflict indicates another writer updated the item first.
	ErrVersionConflict = fmt.Errorf("catalog: item version conflict: %w", shared.ErrConflict)
	// ErrInvalidKind indicates an unknown item kind.
	ErrInvalidKind = errors.New("catalog: invalid item kind")
	// ErrNegativeStock guards the non-negative stock invariant at the store.
	ErrNegativeStock = errors.New("catalog: negative stock not allowed")
)
