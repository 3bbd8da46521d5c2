package receiving

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-receiving/internal/catalog"
	"github.com/odyssey-erp/odyssey-receiving/internal/ledger"
	"github.com/odyssey-erp/odyssey-receiving/internal/pricing"
	"github.com/odyssey-erp/odyssey-receiving/internal/procurement"
	"github.com/odyssey-erp/odyssey-receiving/internal/shared"
)

// OrderPort is the supplier order side used by the orchestrator.
type OrderPort interface {
	Replay(ctx context.Context, orderID string) (procurement.Order, []procurement.LineRemainder, int, error)
	AppendReceiptEvent(ctx context.Context, event procurement.ReceiptEvent, expected int) (procurement.ReceiptEvent, error)
	Finalize(ctx context.Context, orderID string) (procurement.Snapshot, error)
}

// IdempotencyPort remembers request keys. shared.IdempotencyStore implements it.
type IdempotencyPort interface {
	Claim(ctx context.Context, key, scope, reference string) error
	Release(ctx context.Context, key, scope string) error
}

// LockPort serialises receipts per order. cache.Locker implements it.
type LockPort interface {
	Acquire(ctx context.Context, key string) (func(context.Context) error, error)
}

// ReconcileEnqueuer schedules a ledger replay for items whose ledger append failed.
type ReconcileEnqueuer interface {
	EnqueueLedgerReconcile(ctx context.Context, kind catalog.Kind, codes []string) error
}

// Config tunes the orchestrator.
type Config struct {
	// CASAttempts bounds read-modify-write retries per line.
	CASAttempts int
}

// Options groups optional collaborators.
type Options struct {
	Idempotency IdempotencyPort
	Locks       LockPort
	Reconcile   ReconcileEnqueuer
	Metrics     *Metrics
	Logger      *slog.Logger
}

// Service runs the order-linked and direct receiving paths.
type Service struct {
	catalog     catalog.Store
	ledger      *ledger.BestEffort
	orders      OrderPort
	idempotency IdempotencyPort
	locks       LockPort
	reconcile   ReconcileEnqueuer
	metrics     *Metrics
	logger      *slog.Logger
	cfg         Config
	now         func() time.Time
}

// NewService wires the receiving engine.
func NewService(items catalog.Store, entries ledger.Writer, orders OrderPort, cfg Config, opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.CASAttempts <= 0 {
		cfg.CASAttempts = 3
	}
	metrics := opts.Metrics
	return &Service{
		catalog:     items,
		ledger:      ledger.NewBestEffort(entries, logger, metrics.ledgerFailure),
		orders:      orders,
		idempotency: opts.Idempotency,
		locks:       opts.Locks,
		reconcile:   opts.Reconcile,
		metrics:     metrics,
		logger:      logger,
		cfg:         cfg,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

const orderScope = "receiving.order"

// receiptAttempts bounds replays when another receipt of the same order
// lands between replay and append.
const receiptAttempts = 3

// ReceiveOrder receives goods against a supplier order. An error is returned
// only when the invocation aborted during validation; once applying starts
// every outcome, including failures, is reported in the Result.
func (s *Service) ReceiveOrder(ctx context.Context, input ReceiveOrderInput) (Result, error) {
	res := Result{
		Reference:   shared.NewBatchReference(shared.ReceiptPrefix),
		Path:        PathOrder,
		Phase:       PhaseValidating,
		OrderID:     input.OrderID,
		DeliveryRef: input.DeliveryRef,
	}
	if s.orders == nil {
		return s.abort(res, errors.New("receiving: order integration not configured"))
	}
	if input.OrderID == "" {
		return s.abort(res, shared.Invalid(ErrOrderRequired, "missing"))
	}
	if len(input.Lines) == 0 {
		return s.abort(res, shared.Invalid(ErrNoLines, "order %s", input.OrderID))
	}

	release, err := s.lockOrder(ctx, input.OrderID)
	if err != nil {
		return s.abort(res, err)
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			s.logger.Warn("release order lock", slog.String("order_id", input.OrderID), slog.Any("error", err))
		}
	}()

	claimed, err := s.claim(ctx, input.IdempotencyKey, orderScope, res.Reference)
	if err != nil {
		return s.abort(res, err)
	}

	var (
		order  procurement.Order
		specs  []lineSpec
		stored procurement.ReceiptEvent
		// applyCtx outlives caller cancellation from the receipt event
		// append to the end of finalize.
		applyCtx = context.WithoutCancel(ctx)
	)
	for attempt := 1; ; attempt++ {
		var event procurement.ReceiptEvent
		var expected int
		order, event, specs, expected, err = s.prepareReceipt(ctx, &res, input)
		if err != nil {
			s.unclaim(ctx, claimed, input.IdempotencyKey, orderScope)
			return s.abort(res, err)
		}

		res.Phase = PhaseApplying
		stored, err = s.orders.AppendReceiptEvent(applyCtx, event, expected)
		if err == nil {
			break
		}
		if errors.Is(err, procurement.ErrConcurrentReceipt) {
			res.Phase = PhaseValidating
			if attempt < receiptAttempts {
				s.logger.Info("order changed since replay, revalidating",
					slog.String("order_id", order.ID), slog.Int("attempt", attempt))
				continue
			}
			s.unclaim(ctx, claimed, input.IdempotencyKey, orderScope)
			return s.abort(res, err)
		}
		s.unclaim(ctx, claimed, input.IdempotencyKey, orderScope)
		s.logger.Error("persist receipt event", slog.String("order_id", order.ID), slog.String("reference", res.Reference), slog.Any("error", err))
		res.Errors = append(res.Errors, fmt.Sprintf("receipt event: %v", err))
		for _, spec := range specs {
			res.Lines = append(res.Lines, skippedLine(spec))
			s.metrics.line(PathOrder, LineSkipped)
		}
		res.LedgerEntries = []ledger.Entry{}
		res.Phase = PhaseDone
		return res, nil
	}
	res.ReceiptEventID = stored.ID.String()

	ref := ledger.Reference{Kind: ledger.RefSupplierOrder, ID: order.ID, Number: res.Reference}
	s.applyAll(applyCtx, &res, specs, func(lineSpec) ledger.Reference { return ref }, input.Notes)

	res.Phase = PhaseFinalizing
	snap, err := s.orders.Finalize(applyCtx, order.ID)
	if err != nil {
		s.logger.Error("finalize order", slog.String("order_id", order.ID), slog.Any("error", err))
		res.Errors = append(res.Errors, fmt.Sprintf("finalize: %v", err))
	} else {
		res.Status = snap.Status
		res.Remainders = snap.Remainders
	}

	res.Phase = PhaseDone
	s.logger.Info("order received",
		slog.String("order_id", order.ID),
		slog.String("reference", res.Reference),
		slog.Int("applied", res.Applied),
		slog.Int("lines", len(res.Lines)),
		slog.String("status", string(res.Status)))
	return res, nil
}

// prepareReceipt replays the order, validates the requested lines against
// its remainders and builds the receipt event. It returns the event count
// the validation was based on.
func (s *Service) prepareReceipt(ctx context.Context, res *Result, input ReceiveOrderInput) (procurement.Order, procurement.ReceiptEvent, []lineSpec, int, error) {
	order, remainders, count, err := s.orders.Replay(ctx, input.OrderID)
	if err != nil {
		return procurement.Order{}, procurement.ReceiptEvent{}, nil, 0, err
	}
	if !order.Status.Receivable() {
		return order, procurement.ReceiptEvent{}, nil, 0, shared.Invalid(procurement.ErrOrderNotReceivable, "order %s is %s", order.ID, order.Status)
	}
	candidates := make([]procurement.Candidate, 0, len(input.Lines))
	for _, line := range input.Lines {
		candidates = append(candidates, procurement.Candidate{ItemCode: line.ItemCode, Quantity: line.Quantity})
	}
	accepted, err := procurement.Validate(remainders, candidates)
	if err != nil {
		return order, procurement.ReceiptEvent{}, nil, 0, err
	}
	res.Status = order.Status
	res.Remainders = remainders

	byCode := make(map[string]procurement.LineRemainder, len(remainders))
	for _, r := range remainders {
		byCode[r.ItemCode] = r
	}
	event := procurement.ReceiptEvent{
		ID:          uuid.New(),
		OrderID:     order.ID,
		Reference:   res.Reference,
		DeliveryRef: input.DeliveryRef,
		Notes:       input.Notes,
		ReceivedAt:  s.now(),
	}
	specs := make([]lineSpec, 0, len(accepted))
	for i, c := range accepted {
		r := byCode[c.ItemCode]
		event.Items = append(event.Items, procurement.ReceivedItem{
			ItemCode:    c.ItemCode,
			Kind:        r.Kind,
			Quantity:    c.Quantity,
			UnitCost:    r.UnitCost,
			Description: r.Description,
			Unit:        r.Unit,
		})
		specs = append(specs, lineSpec{
			Index:       i,
			ItemCode:    c.ItemCode,
			Kind:        r.Kind,
			Delta:       c.Quantity,
			UnitCost:    pricing.Some(r.UnitCost),
			Description: r.Description,
			Unit:        r.Unit,
		})
	}
	return order, event, specs, count, nil
}

func (s *Service) abort(res Result, err error) (Result, error) {
	res.Phase = PhaseAborted
	s.metrics.rejected(res.Path)
	s.logger.Info("receiving aborted",
		slog.String("path", string(res.Path)),
		slog.String("reference", res.Reference),
		slog.Any("error", err))
	return res, err
}

func (s *Service) lockOrder(ctx context.Context, orderID string) (func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }
	if s.locks == nil {
		return noop, nil
	}
	release, err := s.locks.Acquire(ctx, "receiving:order:"+orderID)
	if err != nil {
		if errors.Is(err, shared.ErrConflict) {
			return nil, ErrOrderBusy
		}
		return nil, fmt.Errorf("%w: lock order %s: %v", shared.ErrStoreUnavailable, orderID, err)
	}
	return release, nil
}

func (s *Service) claim(ctx context.Context, key, scope, reference string) (bool, error) {
	if key == "" || s.idempotency == nil {
		return false, nil
	}
	if err := s.idempotency.Claim(ctx, key, scope, reference); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Service) unclaim(ctx context.Context, claimed bool, key, scope string) {
	if !claimed {
		return
	}
	if err := s.idempotency.Release(context.WithoutCancel(ctx), key, scope); err != nil {
		s.logger.Warn("release idempotency key", slog.String("scope", scope), slog.Any("error", err))
	}
}
