package procurement

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-receiving/internal/catalog"
	"github.com/odyssey-erp/odyssey-receiving/internal/shared"
)

// Status is the supplier order lifecycle status.
type Status string

const (
	StatusDraft             Status = "draft"
	StatusInOrder           Status = "in_order"
	StatusOrdered           Status = "ordered"
	StatusPartiallyReceived Status = "partially_received"
	StatusReceived          Status = "received"
	StatusCancelled         Status = "cancelled"
)

// Receivable reports whether goods may be received against an order in s.
func (s Status) Receivable() bool {
	switch s {
	case StatusInOrder, StatusOrdered, StatusPartiallyReceived:
		return true
	}
	return false
}

// Order is a supplier order with its lines.
type Order struct {
	ID        string
	Number    string
	Supplier  string
	Status    Status
	Lines     []OrderLine
	UpdatedAt time.Time
}

// OrderLine is one ordered item. Lines are not edited once receiving began.
type OrderLine struct {
	ItemCode        string
	Kind            catalog.Kind
	QuantityOrdered decimal.Decimal
	UnitCost        decimal.Decimal
	Description     string
	Unit            string
}

// ReceiptEvent records one receiving action. Events are never mutated and
// are the replay source for received-to-date quantities.
type ReceiptEvent struct {
	ID          uuid.UUID
	OrderID     string
	Reference   string
	DeliveryRef string
	Notes       string
	ReceivedAt  time.Time
	Items       []ReceivedItem
}

// ReceivedItem is a line of a receipt event.
type ReceivedItem struct {
	ItemCode    string
	Kind        catalog.Kind
	Quantity    decimal.Decimal
	UnitCost    decimal.Decimal
	Description string
	Unit        string
}

var (
	// ErrOrderNotFound indicates the order id is unknown.
	ErrOrderNotFound = fmt.Errorf("procurement: order %w", shared.ErrNotFound)
	// ErrOrderNotReceivable indicates the order status forbids receiving.
	ErrOrderNotReceivable = errors.New("procurement: order not receivable")
	// ErrOverReceipt indicates a quantity above the line remainder.
	ErrOverReceipt = errors.New("procurement: quantity exceeds remaining")
	// ErrUnknownOrderItem indicates an item code that is not on the order.
	ErrUnknownOrderItem = errors.New("procurement: item not on order")
	// ErrInvalidQuantity indicates a negative receipt quantity.
	ErrInvalidQuantity = errors.New("procurement: quantity must not be negative")
	// ErrNoLines indicates nothing to receive.
	ErrNoLines = errors.New("procurement: no lines to receive")
	// ErrConcurrentReceipt indicates another receipt event was appended
	// after the caller replayed the order.
	ErrConcurrentReceipt = fmt.Errorf("procurement: order changed since replay: %w", shared.ErrConflict)
)
