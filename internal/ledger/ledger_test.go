package ledger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-receiving/internal/catalog"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func trackedItem(code string) catalog.Item {
	return catalog.Item{Code: code, Kind: catalog.KindTracked, Description: "Widget", Unit: "pcs", Group: "hardware"}
}

func TestNewEntryInbound(t *testing.T) {
	entry := NewEntry(Movement{
		Item:      trackedItem("A-100"),
		Requested: dec("6"),
		Effective: dec("6"),
		UnitCost:  dec("7.25"),
		Ref:       Reference{Kind: RefSupplierOrder, ID: "ord-1", Number: "RC-1"},
	})
	require.Equal(t, DirectionIn, entry.Direction)
	require.True(t, entry.Quantity.Equal(dec("6")))
	require.True(t, entry.TotalCost.Equal(dec("43.5")))
	require.Equal(t, "Widget", entry.Description)
}

func TestNewEntryClampedOutbound(t *testing.T) {
	entry := NewEntry(Movement{
		Item:      trackedItem("B-200"),
		Requested: dec("-8"),
		Effective: dec("-5"),
		UnitCost:  dec("2"),
		Ref:       Reference{Kind: RefAdjustment, ID: "RD-1", Number: "RD-1"},
	})
	require.Equal(t, DirectionOut, entry.Direction)
	require.True(t, entry.Quantity.Equal(dec("5")))
	require.True(t, entry.RequestedQuantity.Equal(dec("8")))
	require.True(t, entry.TotalCost.Equal(dec("10")))
}

func TestNewEntryZeroEffectiveKeepsRequestedDirection(t *testing.T) {
	entry := NewEntry(Movement{
		Item:      trackedItem("B-200"),
		Requested: dec("-3"),
		Effective: decimal.Zero,
		UnitCost:  dec("2"),
		Ref:       Reference{Kind: RefAdjustment, ID: "RD-2"},
	})
	require.Equal(t, DirectionOut, entry.Direction)
	require.True(t, entry.Quantity.IsZero())
	require.True(t, entry.TotalCost.IsZero())
}

func TestMemoryStoreAppendOnly(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	ref := Reference{Kind: RefSupplierOrder, ID: "ord-1", Number: "RC-1"}
	for _, q := range []string{"6", "4"} {
		_, err := store.Append(ctx, NewEntry(Movement{Item: trackedItem("A-100"), Requested: dec(q), Effective: dec(q), UnitCost: dec("1"), Ref: ref}))
		require.NoError(t, err)
	}
	_, err := store.Append(ctx, NewEntry(Movement{Item: trackedItem("A-100"), Requested: dec("-3"), Effective: dec("-3"), UnitCost: dec("1"),
		Ref: Reference{Kind: RefAdjustment, ID: "RD-9"}}))
	require.NoError(t, err)

	entries, err := store.ListByItem(ctx, Filter{ItemCode: "A-100", Kind: catalog.KindTracked})
	require.NoError(t, err)
	require.Len(t, entries, 3)
	require.Equal(t, int64(1), entries[0].ID)
	require.True(t, Replay(entries).Equal(dec("7")))

	byRef, err := store.ListByReference(ctx, RefSupplierOrder, "ord-1")
	require.NoError(t, err)
	require.Len(t, byRef, 2)

	codes, err := store.ItemCodes(ctx, catalog.KindTracked)
	require.NoError(t, err)
	require.Equal(t, []string{"A-100"}, codes)

	balance, err := store.Balance(ctx, "A-100", catalog.KindTracked)
	require.NoError(t, err)
	require.True(t, balance.Equal(dec("7")))

	balance, err = store.Balance(ctx, "A-100", catalog.KindUntracked)
	require.NoError(t, err)
	require.True(t, balance.IsZero())
}

func TestListByItemKeepsNewestEntries(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	for i := 1; i <= DefaultListLimit+5; i++ {
		ref := Reference{Kind: RefDirectIntake, ID: fmt.Sprintf("RD-%d", i)}
		_, err := store.Append(ctx, NewEntry(Movement{Item: trackedItem("A-100"), Requested: dec("1"), Effective: dec("1"), UnitCost: dec("1"), Ref: ref}))
		require.NoError(t, err)
	}

	entries, err := store.ListByItem(ctx, Filter{ItemCode: "A-100", Kind: catalog.KindTracked})
	require.NoError(t, err)
	require.Len(t, entries, DefaultListLimit)
	require.Equal(t, int64(6), entries[0].ID)
	require.Equal(t, int64(DefaultListLimit+5), entries[len(entries)-1].ID)

	entries, err = store.ListByItem(ctx, Filter{ItemCode: "A-100", Kind: catalog.KindTracked, Limit: 3})
	require.NoError(t, err)
	require.Len(t, entries, 3)
	require.Equal(t, []string{"RD-203", "RD-204", "RD-205"}, []string{entries[0].RefID, entries[1].RefID, entries[2].RefID})
}

func TestListByReferenceSpansIntakeKinds(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	batch := "RD-0a1b2c3d4e5f"
	_, err := store.Append(ctx, NewEntry(Movement{Item: trackedItem("A-100"), Requested: dec("2"), Effective: dec("2"), UnitCost: dec("1"),
		Ref: Reference{Kind: RefDirectIntake, ID: batch, Number: batch}}))
	require.NoError(t, err)
	_, err = store.Append(ctx, NewEntry(Movement{Item: trackedItem("B-200"), Requested: dec("-1"), Effective: dec("-1"), UnitCost: dec("1"),
		Ref: Reference{Kind: RefAdjustment, ID: batch, Number: batch}}))
	require.NoError(t, err)
	_, err = store.Append(ctx, NewEntry(Movement{Item: trackedItem("A-100"), Requested: dec("1"), Effective: dec("1"), UnitCost: dec("1"),
		Ref: Reference{Kind: RefSupplierOrder, ID: batch}}))
	require.NoError(t, err)

	for _, kind := range []RefKind{RefDirectIntake, RefAdjustment} {
		entries, err := store.ListByReference(ctx, kind, batch)
		require.NoError(t, err)
		require.Len(t, entries, 2, kind)
		require.Equal(t, RefDirectIntake, entries[0].RefKind)
		require.Equal(t, RefAdjustment, entries[1].RefKind)
	}

	entries, err := store.ListByReference(ctx, RefSupplierOrder, batch)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestAppendRejectsMissingReference(t *testing.T) {
	_, err := NewMemoryStore().Append(context.Background(), Entry{ItemCode: "A-100", Quantity: dec("1")})
	require.ErrorIs(t, err, ErrInvalidEntry)
}

type failingWriter struct{}

func (failingWriter) Append(context.Context, Entry) (Entry, error) {
	return Entry{}, errors.New("disk full")
}

func TestBestEffortLogsFailure(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	failures := 0
	writer := NewBestEffort(failingWriter{}, logger, func() { failures++ })

	outcome := writer.Append(context.Background(), Entry{ItemCode: "A-100", RefKind: RefSupplierOrder, RefID: "ord-1"})
	require.False(t, outcome.Recorded)
	require.EqualError(t, outcome.Err, "disk full")
	require.Equal(t, 1, failures)
	require.Contains(t, buf.String(), "ledger append failed")
}

func TestBestEffortRecordsEntry(t *testing.T) {
	store := NewMemoryStore()
	writer := NewBestEffort(store, nil, nil)
	outcome := writer.Append(context.Background(), NewEntry(Movement{Item: trackedItem("A-100"), Requested: dec("1"), Effective: dec("1"),
		UnitCost: dec("1"), Ref: Reference{Kind: RefDirectIntake, ID: "RD-1"}}))
	require.True(t, outcome.Recorded)
	require.NoError(t, outcome.Err)
	require.Equal(t, 1, store.Len())
}
