package procurement

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"
)

// Service answers remainder queries for supplier orders.
type Service struct {
	store  Store
	cache  *RemainderCache
	logger *slog.Logger
	group  singleflight.Group
	now    func() time.Time
}

// NewService constructs the service. cache may be nil.
func NewService(store Store, cache *RemainderCache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, cache: cache, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// AppendReceiptEvent persists event and drops the cached snapshot of its
// order. expected is the event count returned by the Replay the event was
// validated against.
func (s *Service) AppendReceiptEvent(ctx context.Context, event ReceiptEvent, expected int) (ReceiptEvent, error) {
	stored, err := s.store.AppendReceiptEvent(ctx, event, expected)
	if err != nil {
		return ReceiptEvent{}, err
	}
	if err := s.cache.Invalidate(ctx, event.OrderID); err != nil {
		s.logger.Warn("remainder cache invalidate failed", slog.String("order_id", event.OrderID), slog.Any("error", err))
	}
	return stored, nil
}

// ListReceivableOrders returns ids of orders still open for receiving.
func (s *Service) ListReceivableOrders(ctx context.Context) ([]string, error) {
	return s.store.ListReceivableOrders(ctx)
}

// Replay loads the order and every receipt event and computes remainders
// from scratch. It never reads the cache.
func (s *Service) Replay(ctx context.Context, orderID string) (Order, []LineRemainder, int, error) {
	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return Order{}, nil, 0, err
	}
	events, err := s.store.ListReceiptEvents(ctx, orderID)
	if err != nil {
		return Order{}, nil, 0, err
	}
	return order, Remainders(order.Lines, events), len(events), nil
}

// Refresh replays the order and overwrites the cached snapshot.
func (s *Service) Refresh(ctx context.Context, orderID string) (Snapshot, error) {
	order, remainders, count, err := s.Replay(ctx, orderID)
	if err != nil {
		return Snapshot{}, err
	}
	snap := Snapshot{
		OrderID:    order.ID,
		Number:     order.Number,
		Status:     order.Status,
		EventCount: count,
		Remainders: remainders,
		ComputedAt: s.now(),
	}
	if err := s.cache.Put(ctx, snap); err != nil {
		s.logger.Warn("remainder cache write failed", slog.String("order_id", orderID), slog.Any("error", err))
	}
	return snap, nil
}

// Finalize replays the order, writes the completion status when it changed
// and refreshes the cache. The returned snapshot carries the new status.
func (s *Service) Finalize(ctx context.Context, orderID string) (Snapshot, error) {
	order, remainders, count, err := s.Replay(ctx, orderID)
	if err != nil {
		return Snapshot{}, err
	}
	status := CompletionStatus(order.Status, remainders)
	if status != order.Status {
		if err := s.store.UpdateOrderStatus(ctx, orderID, status); err != nil {
			return Snapshot{}, err
		}
		s.logger.Info("order status changed",
			slog.String("order_id", orderID),
			slog.String("from", string(order.Status)),
			slog.String("to", string(status)))
	}
	snap := Snapshot{
		OrderID:    order.ID,
		Number:     order.Number,
		Status:     status,
		EventCount: count,
		Remainders: remainders,
		ComputedAt: s.now(),
	}
	if err := s.cache.Put(ctx, snap); err != nil {
		s.logger.Warn("remainder cache write failed", slog.String("order_id", orderID), slog.Any("error", err))
	}
	return snap, nil
}

// Snapshot serves remainders from the cache when its event count matches
// the store, and replays otherwise. Concurrent replays of one order are
// collapsed.
func (s *Service) Snapshot(ctx context.Context, orderID string) (Snapshot, error) {
	count, err := s.store.CountReceiptEvents(ctx, orderID)
	if err != nil {
		return Snapshot{}, err
	}
	cached, ok, err := s.cache.Get(ctx, orderID)
	if err != nil {
		s.logger.Warn("remainder cache read failed", slog.String("order_id", orderID), slog.Any("error", err))
	}
	if ok && cached.EventCount == count {
		return cached, nil
	}
	ch := s.group.DoChan(orderID, func() (interface{}, error) {
		return s.Refresh(context.WithoutCancel(ctx), orderID)
	})
	select {
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Snapshot{}, res.Err
		}
		return res.Val.(Snapshot), nil
	}
}
