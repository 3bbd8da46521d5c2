package shared

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// IdempotencyStore remembers request keys and the batch reference each one
// produced so a double-submitted receipt is not applied twice.
type IdempotencyStore struct {
	pool *pgxpool.Pool
}

// NewIdempotencyStore constructs the store.
func NewIdempotencyStore(pool *pgxpool.Pool) *IdempotencyStore {
	return &IdempotencyStore{pool: pool}
}

// DuplicateRequestError is returned when the key was already claimed.
type DuplicateRequestError struct {
	Key       string
	Reference string
}

func (e *DuplicateRequestError) Error() string {
	return fmt.Sprintf("request %q already processed as %s", e.Key, e.Reference)
}

// Is lets errors.Is match ErrConflict.
func (e *DuplicateRequestError) Is(target error) bool {
	return target == ErrConflict
}

// Claim records key for scope with the reference about to be produced. When
// the key already exists a *DuplicateRequestError carrying the original
// reference is returned.
func (s *IdempotencyStore) Claim(ctx context.Context, key, scope, reference string) error {
	if s == nil {
		return errors.New("idempotency store not initialised")
	}
	if key == "" || scope == "" {
		return errors.New("idempotency key and scope required")
	}
	_, err := s.pool.Exec(ctx, `INSERT INTO idempotency_keys (key, scope, reference, created_at) VALUES ($1, $2, $3, $4)`, key, scope, reference, time.Now().UTC())
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		return err
	}
	var existing string
	row := s.pool.QueryRow(ctx, `SELECT reference FROM idempotency_keys WHERE key=$1 AND scope=$2`, key, scope)
	if err := row.Scan(&existing); err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return err
	}
	return &DuplicateRequestError{Key: key, Reference: existing}
}

// Release removes a key, used when the request was rejected before any side effect.
func (s *IdempotencyStore) Release(ctx context.Context, key, scope string) error {
	if s == nil {
		return nil
	}
	if key == "" {
		return errors.New("idempotency key required")
	}
	_, err := s.pool.Exec(ctx, `DELETE FROM idempotency_keys WHERE key=$1 AND scope=$2`, key, scope)
	return err
}

// Cleanup removes entries older than retention.
func (s *IdempotencyStore) Cleanup(ctx context.Context, olderThan time.Duration) error {
	if s == nil {
		return nil
	}
	cutoff := time.Now().Add(-olderThan)
	_, err := s.pool.Exec(ctx, `DELETE FROM idempotency_keys WHERE created_at < $1`, cutoff)
	return err
}
