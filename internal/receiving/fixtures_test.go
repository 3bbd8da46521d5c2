package receiving

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-receiving/internal/catalog"
	"github.com/odyssey-erp/odyssey-receiving/internal/ledger"
	"github.com/odyssey-erp/odyssey-receiving/internal/pricing"
	"github.com/odyssey-erp/odyssey-receiving/internal/procurement"
	"github.com/odyssey-erp/odyssey-receiving/internal/shared"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func tracked(code, stock, cost string) catalog.Item {
	return catalog.Item{
		Code:          code,
		Kind:          catalog.KindTracked,
		Description:   "item " + code,
		Unit:          "pcs",
		StockQuantity: dec(stock),
		Cost:          pricing.Field{Current: pricing.Some(dec(cost))},
	}
}

func orderLine(code, ordered, cost string) procurement.OrderLine {
	return procurement.OrderLine{ItemCode: code, Kind: catalog.KindTracked, QuantityOrdered: dec(ordered), UnitCost: dec(cost), Description: "item " + code, Unit: "pcs"}
}

type harness struct {
	items    *catalog.MemoryStore
	entries  *ledger.MemoryStore
	orders   *procurement.MemoryStore
	procSvc  *procurement.Service
	enqueuer *recordingEnqueuer
	logs     *bytes.Buffer
}

type harnessOption func(*catalog.Store, *ledger.Writer, *OrderPort, *Options)

func withCatalog(wrap func(catalog.Store) catalog.Store) harnessOption {
	return func(s *catalog.Store, _ *ledger.Writer, _ *OrderPort, _ *Options) { *s = wrap(*s) }
}

func withLedger(w ledger.Writer) harnessOption {
	return func(_ *catalog.Store, l *ledger.Writer, _ *OrderPort, _ *Options) { *l = w }
}

func withOrders(wrap func(OrderPort) OrderPort) harnessOption {
	return func(_ *catalog.Store, _ *ledger.Writer, o *OrderPort, _ *Options) { *o = wrap(*o) }
}

func withOptions(fn func(*Options)) harnessOption {
	return func(_ *catalog.Store, _ *ledger.Writer, _ *OrderPort, o *Options) { fn(o) }
}

func newHarness(t *testing.T, items []catalog.Item, orders []procurement.Order, opts ...harnessOption) (*Service, *harness) {
	t.Helper()
	h := &harness{
		items:    catalog.NewMemoryStore(items...),
		entries:  ledger.NewMemoryStore(),
		orders:   procurement.NewMemoryStore(orders...),
		enqueuer: &recordingEnqueuer{},
		logs:     &bytes.Buffer{},
	}
	logger := slog.New(slog.NewTextHandler(h.logs, nil))
	h.procSvc = procurement.NewService(h.orders, nil, quietLogger())

	var store catalog.Store = h.items
	var writer ledger.Writer = h.entries
	var port OrderPort = h.procSvc
	o := Options{Logger: logger, Reconcile: h.enqueuer}
	for _, opt := range opts {
		opt(&store, &writer, &port, &o)
	}
	return NewService(store, writer, port, Config{CASAttempts: 3}, o), h
}

func (h *harness) item(t *testing.T, code string, kind catalog.Kind) catalog.Item {
	t.Helper()
	item, err := h.items.Get(context.Background(), code, kind)
	require.NoError(t, err)
	return item
}

type recordingEnqueuer struct {
	mu    sync.Mutex
	calls map[catalog.Kind][]string
}

func (e *recordingEnqueuer) EnqueueLedgerReconcile(_ context.Context, kind catalog.Kind, codes []string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.calls == nil {
		e.calls = map[catalog.Kind][]string{}
	}
	e.calls[kind] = append(e.calls[kind], codes...)
	return nil
}

type failingLedger struct{ err error }

func (f failingLedger) Append(context.Context, ledger.Entry) (ledger.Entry, error) {
	return ledger.Entry{}, f.err
}

// flakyCatalog injects failures per item code.
type flakyCatalog struct {
	catalog.Store
	getErr    map[string]error
	updateErr map[string]error
	// racer runs once before the first Update of a code, simulating a
	// concurrent writer.
	racer map[string]func()
	mu    sync.Mutex
	calls int
}

func (f *flakyCatalog) Get(ctx context.Context, code string, kind catalog.Kind) (catalog.Item, error) {
	if err := f.getErr[code]; err != nil {
		return catalog.Item{}, err
	}
	return f.Store.Get(ctx, code, kind)
}

func (f *flakyCatalog) Update(ctx context.Context, item catalog.Item) (catalog.Item, error) {
	f.mu.Lock()
	f.calls++
	race := f.racer[item.Code]
	delete(f.racer, item.Code)
	f.mu.Unlock()
	if race != nil {
		race()
	}
	if err := f.updateErr[item.Code]; err != nil {
		return catalog.Item{}, err
	}
	return f.Store.Update(ctx, item)
}

type failingEvents struct {
	OrderPort
	err error
}

func (f failingEvents) AppendReceiptEvent(context.Context, procurement.ReceiptEvent, int) (procurement.ReceiptEvent, error) {
	return procurement.ReceiptEvent{}, f.err
}

// staleEvents reports every append as racing another receipt.
type staleEvents struct {
	OrderPort
	attempts atomic.Int32
}

func (s *staleEvents) AppendReceiptEvent(_ context.Context, event procurement.ReceiptEvent, expected int) (procurement.ReceiptEvent, error) {
	s.attempts.Add(1)
	return procurement.ReceiptEvent{}, fmt.Errorf("%w: %s replayed %d", procurement.ErrConcurrentReceipt, event.OrderID, expected)
}

// replayBarrier holds the first n replays until all of them have read the
// order, so concurrent receipts validate against the same remainders.
type replayBarrier struct {
	OrderPort
	n     int32
	calls atomic.Int32
	gate  sync.WaitGroup
}

func newReplayBarrier(n int) *replayBarrier {
	b := &replayBarrier{n: int32(n)}
	b.gate.Add(n)
	return b
}

func (b *replayBarrier) Replay(ctx context.Context, orderID string) (procurement.Order, []procurement.LineRemainder, int, error) {
	order, remainders, count, err := b.OrderPort.Replay(ctx, orderID)
	if b.calls.Add(1) <= b.n {
		b.gate.Done()
		b.gate.Wait()
	}
	return order, remainders, count, err
}

// cancellingCatalog fails on a cancelled context the way the PostgreSQL
// store does, and cancels after the first successful update.
type cancellingCatalog struct {
	catalog.Store
	cancel context.CancelFunc
	once   sync.Once
}

func (c *cancellingCatalog) Get(ctx context.Context, code string, kind catalog.Kind) (catalog.Item, error) {
	if err := ctx.Err(); err != nil {
		return catalog.Item{}, fmt.Errorf("%w: %v", shared.ErrStoreUnavailable, err)
	}
	return c.Store.Get(ctx, code, kind)
}

func (c *cancellingCatalog) Update(ctx context.Context, item catalog.Item) (catalog.Item, error) {
	if err := ctx.Err(); err != nil {
		return catalog.Item{}, fmt.Errorf("%w: %v", shared.ErrStoreUnavailable, err)
	}
	updated, err := c.Store.Update(ctx, item)
	if err == nil {
		c.once.Do(c.cancel)
	}
	return updated, err
}

type memoryIdempotency struct {
	mu   sync.Mutex
	keys map[string]string
}

func newMemoryIdempotency() *memoryIdempotency {
	return &memoryIdempotency{keys: map[string]string{}}
}

func (m *memoryIdempotency) Claim(_ context.Context, key, scope, reference string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ref, ok := m.keys[scope+"|"+key]; ok {
		return &shared.DuplicateRequestError{Key: key, Reference: ref}
	}
	m.keys[scope+"|"+key] = reference
	return nil
}

func (m *memoryIdempotency) Release(_ context.Context, key, scope string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, scope+"|"+key)
	return nil
}

var errBoom = errors.New("boom")
