package db

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-receiving/internal/shared"
)

func TestClassify(t *testing.T) {
	require.NoError(t, Classify(nil))

	dup := Classify(&pgconn.PgError{Code: "23505", Message: "duplicate key"})
	require.ErrorIs(t, dup, shared.ErrConflict)

	other := &pgconn.PgError{Code: "23514", Message: "check violation"}
	require.Same(t, other, Classify(other))

	timeout := Classify(fmt.Errorf("query: %w", context.DeadlineExceeded))
	require.ErrorIs(t, timeout, shared.ErrStoreUnavailable)
	require.True(t, shared.IsFatal(timeout))

	plain := errors.New("boom")
	require.Equal(t, plain, Classify(plain))
}
