package receiving

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-receiving/internal/catalog"
	"github.com/odyssey-erp/odyssey-receiving/internal/ledger"
	"github.com/odyssey-erp/odyssey-receiving/internal/pricing"
	"github.com/odyssey-erp/odyssey-receiving/internal/shared"
)

// lineSpec is a validated line ready to apply.
type lineSpec struct {
	Index       int
	ItemCode    string
	Kind        catalog.Kind
	Delta       decimal.Decimal
	UnitCost    decimal.NullDecimal
	Selling     decimal.NullDecimal
	Adjustment  bool
	Create      bool
	Description string
	Unit        string
	Group       string
}

func skippedLine(spec lineSpec) LineResult {
	return LineResult{
		Index:     spec.Index,
		ItemCode:  spec.ItemCode,
		Kind:      spec.Kind,
		Requested: spec.Delta,
		Status:    LineSkipped,
	}
}

// applyAll applies specs in order. ctx must not be cancellable: once the
// first line is written the batch runs to the end. A fatal store error marks
// the remaining lines skipped; earlier lines stay applied.
func (s *Service) applyAll(ctx context.Context, res *Result, specs []lineSpec, refFor func(lineSpec) ledger.Reference, notes string) {
	res.LedgerEntries = []ledger.Entry{}
	unrecorded := map[catalog.Kind][]string{}
	stopped := false
	for _, spec := range specs {
		if stopped {
			res.Lines = append(res.Lines, skippedLine(spec))
			s.metrics.line(res.Path, LineSkipped)
			continue
		}
		line, entry := s.applyLine(ctx, spec, refFor(spec), notes)
		res.Lines = append(res.Lines, line)
		s.metrics.line(res.Path, line.Status)
		if line.Status == LineApplied {
			res.Applied++
		} else {
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %s", spec.ItemCode, line.Stock.Error))
		}
		if line.Ledger.Recorded {
			res.LedgerEntries = append(res.LedgerEntries, entry)
		} else {
			unrecorded[spec.Kind] = append(unrecorded[spec.Kind], spec.ItemCode)
		}
		if shared.IsFatal(line.Stock.Err) {
			s.logger.Error("store unavailable, skipping remaining lines",
				slog.String("reference", res.Reference),
				slog.Int("remaining", len(specs)-spec.Index-1),
				slog.Any("error", line.Stock.Err))
			stopped = true
		}
	}
	s.scheduleReconcile(ctx, unrecorded)
}

// applyLine writes stock first so the ledger can record the effective delta,
// then appends the ledger entry whether or not the stock write succeeded.
func (s *Service) applyLine(ctx context.Context, spec lineSpec, ref ledger.Reference, notes string) (LineResult, ledger.Entry) {
	line := LineResult{
		Index:     spec.Index,
		ItemCode:  spec.ItemCode,
		Kind:      spec.Kind,
		Requested: spec.Delta,
	}
	item, stock := s.writeStock(ctx, spec)
	line.Stock = stock
	if stock.Applied {
		line.Status = LineApplied
	} else {
		line.Status = LineFailed
		s.logger.Warn("stock write failed",
			slog.String("item_code", spec.ItemCode),
			slog.String("kind", string(spec.Kind)),
			slog.String("reference", ref.Number),
			slog.Any("error", stock.Err))
	}

	effective := spec.Delta
	if stock.Applied {
		effective = stock.Effective
	}
	unitCost := item.Cost.Current
	if spec.UnitCost.Valid {
		unitCost = spec.UnitCost
	}
	entry := ledger.NewEntry(ledger.Movement{
		Item:      item,
		Requested: spec.Delta,
		Effective: effective,
		UnitCost:  pricing.Value(unitCost),
		Ref:       ref,
		Notes:     notes,
	})
	outcome := s.ledger.Append(ctx, entry)
	line.Ledger = LedgerOutcome{Recorded: outcome.Recorded, EntryID: outcome.Entry.ID, Err: outcome.Err}
	if outcome.Err != nil {
		line.Ledger.Error = outcome.Err.Error()
	}
	return line, outcome.Entry
}

// writeStock performs the read-modify-write of one catalog item under
// optimistic concurrency. The returned item is the stored record, or a
// placeholder built from the line when nothing could be read.
func (s *Service) writeStock(ctx context.Context, spec lineSpec) (catalog.Item, StockOutcome) {
	placeholder := catalog.Item{
		Code:        spec.ItemCode,
		Kind:        spec.Kind,
		Description: spec.Description,
		Unit:        spec.Unit,
		Group:       spec.Group,
	}
	var out StockOutcome
	for attempt := 1; attempt <= s.cfg.CASAttempts; attempt++ {
		out.Attempts = attempt
		current, err := s.catalog.Get(ctx, spec.ItemCode, spec.Kind)
		if errors.Is(err, catalog.ErrItemNotFound) && spec.Create {
			created, err := s.createItem(ctx, spec)
			if errors.Is(err, catalog.ErrItemExists) {
				continue
			}
			if err != nil {
				return placeholder, failed(out, err)
			}
			out.Applied = true
			out.Created = true
			out.Before = decimal.Zero
			out.After = created.StockQuantity
			out.Effective = created.StockQuantity
			if !created.Tracked() {
				out.Effective = spec.Delta
			}
			return created, out
		}
		if err != nil {
			return placeholder, failed(out, err)
		}

		stockAfter, effective := current.ApplyDelta(spec.Delta)
		prices := pricing.ShiftItem(current.Cost, current.Selling, spec.UnitCost, spec.Selling)
		out.Before = current.StockQuantity
		out.After = stockAfter
		out.Effective = effective
		out.PriceShifted = prices.Changed()
		if stockAfter.Equal(current.StockQuantity) && !prices.Changed() {
			out.Applied = true
			return current, out
		}

		next := current
		next.StockQuantity = stockAfter
		next.Cost = prices.Cost
		next.Selling = prices.Selling
		saved, err := s.catalog.Update(ctx, next)
		if errors.Is(err, catalog.ErrVersionConflict) {
			s.logger.Debug("catalog version conflict, retrying",
				slog.String("item_code", spec.ItemCode),
				slog.Int("attempt", attempt))
			continue
		}
		if err != nil {
			return current, failed(out, err)
		}
		out.Applied = true
		return saved, out
	}
	return placeholder, failed(out, fmt.Errorf("%w after %d attempts", catalog.ErrVersionConflict, s.cfg.CASAttempts))
}

func (s *Service) createItem(ctx context.Context, spec lineSpec) (catalog.Item, error) {
	item := catalog.Item{
		Code:        spec.ItemCode,
		Kind:        catalog.KindTracked,
		Description: spec.Description,
		Unit:        spec.Unit,
		Group:       spec.Group,
		Cost:        pricing.Field{Current: spec.UnitCost},
		Selling:     pricing.Field{Current: spec.Selling},
	}
	item.StockQuantity, _ = item.ApplyDelta(spec.Delta)
	created, err := s.catalog.Create(ctx, item)
	if err != nil {
		return catalog.Item{}, err
	}
	s.logger.Info("catalog item created by intake", slog.String("item_code", created.Code))
	return created, nil
}

func failed(out StockOutcome, err error) StockOutcome {
	out.Applied = false
	out.Err = err
	out.Error = err.Error()
	return out
}

func (s *Service) scheduleReconcile(ctx context.Context, codes map[catalog.Kind][]string) {
	if s.reconcile == nil || len(codes) == 0 {
		return
	}
	kinds := make([]string, 0, len(codes))
	for kind := range codes {
		kinds = append(kinds, string(kind))
	}
	sort.Strings(kinds)
	for _, kind := range kinds {
		if err := s.reconcile.EnqueueLedgerReconcile(ctx, catalog.Kind(kind), codes[catalog.Kind(kind)]); err != nil {
			s.logger.Warn("enqueue ledger reconcile", slog.String("kind", kind), slog.Any("error", err))
		}
	}
}
