package catalog

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-receiving/internal/shared"
)

func qty(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestApplyDeltaClampsAtZero(t *testing.T) {
	item := Item{Code: "B-200", Kind: KindTracked, StockQuantity: qty("5")}

	stock, effective := item.ApplyDelta(qty("-8"))
	require.True(t, stock.IsZero())
	require.True(t, effective.Equal(qty("-5")))

	stock, effective = item.ApplyDelta(qty("2.5"))
	require.True(t, stock.Equal(qty("7.5")))
	require.True(t, effective.Equal(qty("2.5")))
}

func TestApplyDeltaUntracked(t *testing.T) {
	item := Item{Code: "SVC-1", Kind: KindUntracked}
	stock, effective := item.ApplyDelta(qty("-3"))
	require.True(t, stock.IsZero())
	require.True(t, effective.Equal(qty("-3")))
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind(" Tracked ")
	require.NoError(t, err)
	require.Equal(t, KindTracked, k)

	_, err = ParseKind("stocked")
	require.ErrorIs(t, err, ErrInvalidKind)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestMemoryStoreVersionedUpdate(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(Item{Code: "A-100", Kind: KindTracked, StockQuantity: qty("1")})

	first, err := store.Get(ctx, "A-100", KindTracked)
	require.NoError(t, err)
	second, err := store.Get(ctx, "A-100", KindTracked)
	require.NoError(t, err)

	first.StockQuantity = qty("4")
	updated, err := store.Update(ctx, first)
	require.NoError(t, err)
	require.Equal(t, first.Version+1, updated.Version)

	second.StockQuantity = qty("9")
	_, err = store.Update(ctx, second)
	require.ErrorIs(t, err, ErrVersionConflict)
	require.ErrorIs(t, err, shared.ErrConflict)

	got, err := store.Get(ctx, "A-100", KindTracked)
	require.NoError(t, err)
	require.True(t, got.StockQuantity.Equal(qty("4")))
}

func TestMemoryStoreKindsAreSeparate(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(Item{Code: "X-1", Kind: KindUntracked})

	_, err := store.Get(ctx, "X-1", KindTracked)
	require.ErrorIs(t, err, ErrItemNotFound)
	require.ErrorIs(t, err, shared.ErrNotFound)

	_, err = store.Create(ctx, Item{Code: "X-1", Kind: KindTracked})
	require.NoError(t, err)
	_, err = store.Create(ctx, Item{Code: "X-1", Kind: KindTracked})
	require.ErrorIs(t, err, ErrItemExists)

	codes, err := store.ListCodes(ctx, KindTracked)
	require.NoError(t, err)
	require.Equal(t, []string{"X-1"}, codes)
}

func TestMemoryStoreRejectsNegativeStock(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(Item{Code: "A-1", Kind: KindTracked})
	item, err := store.Get(ctx, "A-1", KindTracked)
	require.NoError(t, err)
	item.StockQuantity = qty("-1")
	_, err = store.Update(ctx, item)
	require.ErrorIs(t, err, ErrNegativeStock)
}
