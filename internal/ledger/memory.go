package ledger

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-receiving/internal/catalog"
)

// MemoryStore keeps entries in a slice. Used by tests and local runs.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []Entry
	nextID  int64
	now     func() time.Time
}

// NewMemoryStore returns an empty ledger.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{nextID: 1, now: func() time.Time { return time.Now().UTC() }}
}

// Append stores entry with the next id.
func (s *MemoryStore) Append(_ context.Context, entry Entry) (Entry, error) {
	if err := validate(entry); err != nil {
		return Entry{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	entry.ID = s.nextID
	s.nextID++
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now()
	}
	s.entries = append(s.entries, entry)
	return entry, nil
}

// ListByItem returns the newest matching entries, at most the filter limit,
// in insertion order.
func (s *MemoryStore) ListByItem(_ context.Context, filter Filter) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []Entry{}
	for _, e := range s.entries {
		if e.ItemCode != filter.ItemCode || e.Kind != filter.Kind {
			continue
		}
		if !filter.From.IsZero() && e.CreatedAt.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && e.CreatedAt.After(filter.To) {
			continue
		}
		out = append(out, e)
	}
	if limit := filter.limit(); len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

// Balance replays every entry for the item.
func (s *MemoryStore) Balance(_ context.Context, code string, kind catalog.Kind) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	matched := []Entry{}
	for _, e := range s.entries {
		if e.ItemCode == code && e.Kind == kind {
			matched = append(matched, e)
		}
	}
	return Replay(matched), nil
}

// ListByReference returns entries stamped with refID under any kind of
// kind's namespace.
func (s *MemoryStore) ListByReference(_ context.Context, kind RefKind, refID string) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	kinds := kind.Namespace()
	out := []Entry{}
	for _, e := range s.entries {
		if e.RefID == refID && slices.Contains(kinds, e.RefKind) {
			out = append(out, e)
		}
	}
	return out, nil
}

// ItemCodes lists distinct codes with movements for kind.
func (s *MemoryStore) ItemCodes(_ context.Context, kind catalog.Kind) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := map[string]struct{}{}
	for _, e := range s.entries {
		if e.Kind == kind {
			seen[e.ItemCode] = struct{}{}
		}
	}
	codes := make([]string, 0, len(seen))
	for code := range seen {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes, nil
}

// Len returns the number of stored entries.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
