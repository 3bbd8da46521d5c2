package receiving

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-receiving/internal/catalog"
	"github.com/odyssey-erp/odyssey-receiving/internal/ledger"
	"github.com/odyssey-erp/odyssey-receiving/internal/procurement"
	"github.com/odyssey-erp/odyssey-receiving/internal/shared"
)

// Phase is the orchestrator state for one invocation.
type Phase string

const (
	PhaseValidating Phase = "validating"
	PhaseApplying   Phase = "applying"
	PhaseFinalizing Phase = "finalizing"
	PhaseDone       Phase = "done"
	// PhaseAborted is only reachable from validating.
	PhaseAborted Phase = "aborted"
)

// Path names the entry point that produced a result.
type Path string

const (
	PathOrder  Path = "order"
	PathIntake Path = "intake"
)

// LineStatus summarises what happened to one line.
type LineStatus string

const (
	LineApplied LineStatus = "applied"
	LineFailed  LineStatus = "failed"
	LineSkipped LineStatus = "skipped"
)

// ReceiveOrderInput is an order-linked receipt.
type ReceiveOrderInput struct {
	OrderID        string
	Lines          []OrderLineInput
	DeliveryRef    string
	Notes          string
	IdempotencyKey string
}

// OrderLineInput is one quantity to receive against an order.
type OrderLineInput struct {
	ItemCode string
	Quantity decimal.Decimal
}

// IntakeInput is a direct intake or adjustment batch with no order.
type IntakeInput struct {
	Counterparty   string
	ExternalRef    string
	Notes          string
	Lines          []IntakeLine
	IdempotencyKey string
}

// IntakeLine is one direct intake line. Adjustment lines accept signed
// deltas and never create items.
type IntakeLine struct {
	ItemCode         string
	Kind             catalog.Kind
	QuantityDelta    decimal.Decimal
	UnitCost         decimal.NullDecimal
	UnitSellingPrice decimal.NullDecimal
	Adjustment       bool
	Description      string
	Unit             string
	Group            string
}

// StockOutcome reports the catalog write for a line.
type StockOutcome struct {
	Applied      bool            `json:"applied"`
	Created      bool            `json:"created,omitempty"`
	Before       decimal.Decimal `json:"before"`
	After        decimal.Decimal `json:"after"`
	Effective    decimal.Decimal `json:"effective"`
	PriceShifted bool            `json:"price_shifted"`
	Attempts     int             `json:"attempts"`
	Err          error           `json:"-"`
	Error        string          `json:"error,omitempty"`
}

// LedgerOutcome reports the ledger append for a line.
type LedgerOutcome struct {
	Recorded bool   `json:"recorded"`
	EntryID  int64  `json:"entry_id,omitempty"`
	Err      error  `json:"-"`
	Error    string `json:"error,omitempty"`
}

// LineResult carries the stock and ledger outcomes of one line separately.
type LineResult struct {
	Index     int             `json:"index"`
	ItemCode  string          `json:"item_code"`
	Kind      catalog.Kind    `json:"kind"`
	Requested decimal.Decimal `json:"requested"`
	Status    LineStatus      `json:"status"`
	Stock     StockOutcome    `json:"stock"`
	Ledger    LedgerOutcome   `json:"ledger"`
}

// Result is what a receiving invocation reports back, including partial
// failures.
type Result struct {
	Reference      string                      `json:"reference"`
	Path           Path                        `json:"path"`
	Phase          Phase                       `json:"phase"`
	OrderID        string                      `json:"order_id,omitempty"`
	ReceiptEventID string                      `json:"receipt_event_id,omitempty"`
	DeliveryRef    string                      `json:"delivery_ref,omitempty"`
	Lines          []LineResult                `json:"lines"`
	Applied        int                         `json:"applied"`
	Errors         []string                    `json:"errors,omitempty"`
	Status         procurement.Status          `json:"status,omitempty"`
	Remainders     []procurement.LineRemainder `json:"remainders,omitempty"`
	LedgerEntries  []ledger.Entry              `json:"ledger_entries"`
}

// Complete reports whether every line was applied without error.
func (r Result) Complete() bool {
	return r.Phase == PhaseDone && r.Applied == len(r.Lines) && len(r.Errors) == 0
}

var (
	// ErrOrderRequired indicates a receipt without an order id.
	ErrOrderRequired = errors.New("receiving: order id required")
	// ErrNoLines indicates an empty line set.
	ErrNoLines = errors.New("receiving: no lines")
	// ErrItemCodeRequired indicates a line without item code.
	ErrItemCodeRequired = errors.New("receiving: item code required")
	// ErrNegativeReceipt indicates a negative delta outside adjustment mode.
	ErrNegativeReceipt = errors.New("receiving: negative quantity requires adjustment mode")
	// ErrUnknownItem indicates a code absent from the catalog that cannot be created.
	ErrUnknownItem = errors.New("receiving: unknown item")
	// ErrInvalidPrice indicates a negative unit cost or selling price.
	ErrInvalidPrice = errors.New("receiving: price must not be negative")
	// ErrOrderBusy indicates another receipt holds the order lock.
	ErrOrderBusy = fmt.Errorf("receiving: order busy: %w", shared.ErrConflict)
)
