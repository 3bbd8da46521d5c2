package procurement

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store used by tests and local runs.
type MemoryStore struct {
	mu     sync.RWMutex
	orders map[string]Order
	events map[string][]ReceiptEvent
}

// NewMemoryStore returns a store seeded with orders.
func NewMemoryStore(orders ...Order) *MemoryStore {
	s := &MemoryStore{orders: map[string]Order{}, events: map[string][]ReceiptEvent{}}
	for _, o := range orders {
		s.orders[o.ID] = cloneOrder(o)
	}
	return s
}

func cloneOrder(o Order) Order {
	o.Lines = append([]OrderLine(nil), o.Lines...)
	return o
}

// GetOrder returns a copy of the order.
func (s *MemoryStore) GetOrder(_ context.Context, orderID string) (Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[orderID]
	if !ok {
		return Order{}, ErrOrderNotFound
	}
	return cloneOrder(o), nil
}

// ListReceiptEvents returns the order's events in append order.
func (s *MemoryStore) ListReceiptEvents(_ context.Context, orderID string) ([]ReceiptEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]ReceiptEvent{}, s.events[orderID]...), nil
}

// CountReceiptEvents returns the number of events for the order.
func (s *MemoryStore) CountReceiptEvents(_ context.Context, orderID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events[orderID]), nil
}

// AppendReceiptEvent stores event when the order still has expected events.
func (s *MemoryStore) AppendReceiptEvent(_ context.Context, event ReceiptEvent, expected int) (ReceiptEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[event.OrderID]; !ok {
		return ReceiptEvent{}, ErrOrderNotFound
	}
	if n := len(s.events[event.OrderID]); n != expected {
		return ReceiptEvent{}, fmt.Errorf("%w: %s has %d events, replayed %d", ErrConcurrentReceipt, event.OrderID, n, expected)
	}
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.ReceivedAt.IsZero() {
		event.ReceivedAt = time.Now().UTC()
	}
	event.Items = append([]ReceivedItem(nil), event.Items...)
	s.events[event.OrderID] = append(s.events[event.OrderID], event)
	return event, nil
}

// UpdateOrderStatus sets the order status.
func (s *MemoryStore) UpdateOrderStatus(_ context.Context, orderID string, status Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return ErrOrderNotFound
	}
	o.Status = status
	o.UpdatedAt = time.Now().UTC()
	s.orders[orderID] = o
	return nil
}

// ListReceivableOrders returns ids of receivable orders, sorted.
func (s *MemoryStore) ListReceivableOrders(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := []string{}
	for id, o := range s.orders {
		if o.Status.Receivable() {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}
