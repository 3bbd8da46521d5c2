package procurement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Snapshot is the replayed receiving state of an order together with the
// number of receipt events it was computed from.
type Snapshot struct {
	OrderID    string          `json:"order_id"`
	Number     string          `json:"number"`
	Status     Status          `json:"status"`
	EventCount int             `json:"event_count"`
	Remainders []LineRemainder `json:"remainders"`
	ComputedAt time.Time       `json:"computed_at"`
}

// RemainderCache stores snapshots in Redis. A nil cache or client is a
// cache that always misses.
type RemainderCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRemainderCache instantiates the cache.
func NewRemainderCache(client *redis.Client, ttl time.Duration) *RemainderCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RemainderCache{client: client, ttl: ttl}
}

func remainderKey(orderID string) string {
	return fmt.Sprintf("procurement:remainders:%s", orderID)
}

// Get returns the cached snapshot. The bool is false on a miss.
func (c *RemainderCache) Get(ctx context.Context, orderID string) (Snapshot, bool, error) {
	if c == nil || c.client == nil {
		return Snapshot{}, false, nil
	}
	payload, err := c.client.Get(ctx, remainderKey(orderID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Snapshot{}, false, nil
	}
	if err != nil {
		return Snapshot{}, false, err
	}
	var snap Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return Snapshot{}, false, err
	}
	return snap, true, nil
}

// Put overwrites the cached snapshot.
func (c *RemainderCache) Put(ctx context.Context, snap Snapshot) error {
	if c == nil || c.client == nil {
		return nil
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, remainderKey(snap.OrderID), raw, c.ttl).Err()
}

// Invalidate drops the cached snapshot.
func (c *RemainderCache) Invalidate(ctx context.Context, orderID string) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Del(ctx, remainderKey(orderID)).Err()
}
