package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/odyssey-erp/odyssey-receiving/internal/shared"
)

const uniqueViolation = "23505"

// Classify tags driver errors with the shared error classes. Connection and
// timeout failures become shared.ErrStoreUnavailable, unique violations
// become shared.ErrConflict. Anything else is returned untouched.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, shared.ErrStoreUnavailable) || errors.Is(err, shared.ErrConflict) {
		return err
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == uniqueViolation {
			return fmt.Errorf("%w: %s", shared.ErrConflict, pgErr.Message)
		}
		return err
	}
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) || pgconn.Timeout(err) ||
		errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", shared.ErrStoreUnavailable, err)
	}
	return err
}
