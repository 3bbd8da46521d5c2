package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/odyssey-receiving/internal/shared"
)

// ErrLockHeld is returned when another holder owns the key.
var ErrLockHeld = fmt.Errorf("platform/cache: lock held by another caller: %w", shared.ErrConflict)

// Locker hands out short-lived exclusive locks backed by Redis.
type Locker struct {
	client *redislock.Client
	ttl    time.Duration
}

// NewLocker builds a Locker. ttl bounds how long a crashed holder blocks others.
func NewLocker(client *redis.Client, ttl time.Duration) *Locker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Locker{client: redislock.New(client), ttl: ttl}
}

// Acquire obtains key or fails fast with ErrLockHeld. The returned func
// releases the lock and is safe to call once.
func (l *Locker) Acquire(ctx context.Context, key string) (func(context.Context) error, error) {
	if l == nil || l.client == nil {
		return func(context.Context) error { return nil }, nil
	}
	lock, err := l.client.Obtain(ctx, key, l.ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, ErrLockHeld
	}
	if err != nil {
		return nil, fmt.Errorf("platform/cache: obtain %s: %w", key, err)
	}
	return func(ctx context.Context) error {
		if err := lock.Release(ctx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			return err
		}
		return nil
	}, nil
}
