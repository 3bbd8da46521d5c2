package catalog

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-process Store used by tests and local runs.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[Kind]map[string]Item
	now   func() time.Time
}

// NewMemoryStore returns an empty store seeded with items.
func NewMemoryStore(items ...Item) *MemoryStore {
	s := &MemoryStore{
		items: map[Kind]map[string]Item{
			KindTracked:   {},
			KindUntracked: {},
		},
		now: func() time.Time { return time.Now().UTC() },
	}
	for _, item := range items {
		if item.Version == 0 {
			item.Version = 1
		}
		s.items[item.Kind][item.Code] = item
	}
	return s
}

func (s *MemoryStore) bucket(kind Kind) (map[string]Item, error) {
	b, ok := s.items[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidKind, kind)
	}
	return b, nil
}

// Get returns a copy of the stored item.
func (s *MemoryStore) Get(_ context.Context, code string, kind Kind) (Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, err := s.bucket(kind)
	if err != nil {
		return Item{}, err
	}
	item, ok := b[code]
	if !ok {
		return Item{}, ErrItemNotFound
	}
	return item, nil
}

// Create stores a new item at version 1.
func (s *MemoryStore) Create(_ context.Context, item Item) (Item, error) {
	if item.StockQuantity.IsNegative() {
		return Item{}, ErrNegativeStock
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	b, err := s.bucket(item.Kind)
	if err != nil {
		return Item{}, err
	}
	if _, exists := b[item.Code]; exists {
		return Item{}, ErrItemExists
	}
	item.Version = 1
	item.UpdatedAt = s.now()
	b[item.Code] = item
	return item, nil
}

// Update applies a compare-and-swap on Version.
func (s *MemoryStore) Update(_ context.Context, item Item) (Item, error) {
	if item.StockQuantity.IsNegative() {
		return Item{}, ErrNegativeStock
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	b, err := s.bucket(item.Kind)
	if err != nil {
		return Item{}, err
	}
	current, ok := b[item.Code]
	if !ok {
		return Item{}, ErrItemNotFound
	}
	if current.Version != item.Version {
		return Item{}, ErrVersionConflict
	}
	item.Version = current.Version + 1
	item.UpdatedAt = s.now()
	b[item.Code] = item
	return item, nil
}

// ListCodes returns codes for kind in ascending order.
func (s *MemoryStore) ListCodes(_ context.Context, kind Kind) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, err := s.bucket(kind)
	if err != nil {
		return nil, err
	}
	codes := make([]string, 0, len(b))
	for code := range b {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes, nil
}
