package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-receiving/internal/catalog"
	jobmetrics "github.com/odyssey-erp/odyssey-receiving/internal/jobs"
	"github.com/odyssey-erp/odyssey-receiving/internal/ledger"
)

// Drift is one item whose stock disagrees with its ledger balance.
type Drift struct {
	ItemCode string          `json:"item_code"`
	Kind     catalog.Kind    `json:"kind"`
	Stock    decimal.Decimal `json:"stock"`
	Ledger   decimal.Decimal `json:"ledger"`
	Missing  bool            `json:"missing"`
}

// ReconcileReport summarises one reconcile run.
type ReconcileReport struct {
	Checked int     `json:"checked"`
	Drift   []Drift `json:"drift"`
}

// LedgerReconcileJob replays the movement ledger per item and compares the
// result with catalog stock. Drift is reported, never corrected.
type LedgerReconcileJob struct {
	Items   catalog.Store
	Entries ledger.Reader
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewLedgerReconcileJob wires dependencies for the reconcile handler.
func NewLedgerReconcileJob(items catalog.Store, entries ledger.Reader, logger *slog.Logger, metrics *jobmetrics.Metrics) *LedgerReconcileJob {
	return &LedgerReconcileJob{Items: items, Entries: entries, Logger: logger, Metrics: metrics}
}

// Handle processes TaskLedgerReconcile tasks.
func (j *LedgerReconcileJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("ledger reconcile: handler not configured")
	}
	var payload LedgerReconcilePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("ledger reconcile: decode payload: %v: %w", err, asynq.SkipRetry)
	}
	_, err := j.Run(ctx, payload)
	return err
}

// Run reconciles the items selected by payload.
func (j *LedgerReconcileJob) Run(ctx context.Context, payload LedgerReconcilePayload) (report ReconcileReport, err error) {
	tracker := j.Metrics.Track(TaskLedgerReconcile)
	defer func() {
		err = tracker.End(err)
	}()

	kinds := []catalog.Kind{payload.Kind}
	if payload.Kind == "" {
		kinds = []catalog.Kind{catalog.KindTracked}
	}
	report.Drift = []Drift{}
	for _, kind := range kinds {
		if kind != catalog.KindTracked {
			// Untracked items never hold stock, so there is nothing to compare.
			j.logger().Info("skip reconcile for kind without stock", slog.String("kind", string(kind)))
			continue
		}
		codes := payload.Codes
		if len(codes) == 0 {
			codes, err = j.knownCodes(ctx, kind)
			if err != nil {
				return report, err
			}
		}
		drifted := 0
		for _, code := range codes {
			drift, ok, checkErr := j.check(ctx, code, kind)
			if checkErr != nil {
				return report, checkErr
			}
			report.Checked++
			if !ok {
				continue
			}
			drifted++
			report.Drift = append(report.Drift, drift)
			j.logger().Warn("ledger drift",
				slog.String("item_code", code),
				slog.String("kind", string(kind)),
				slog.String("stock", drift.Stock.String()),
				slog.String("ledger", drift.Ledger.String()),
				slog.Bool("missing", drift.Missing))
		}
		j.Metrics.AddChecked(string(kind), len(codes))
		j.Metrics.AddDrift(string(kind), drifted)
	}
	j.logger().Info("ledger reconcile finished", slog.Int("checked", report.Checked), slog.Int("drift", len(report.Drift)))
	return report, nil
}

func (j *LedgerReconcileJob) check(ctx context.Context, code string, kind catalog.Kind) (Drift, bool, error) {
	balance, err := j.Entries.Balance(ctx, code, kind)
	if err != nil {
		return Drift{}, false, fmt.Errorf("ledger reconcile: balance %s: %w", code, err)
	}
	drift := Drift{ItemCode: code, Kind: kind, Ledger: balance}
	item, err := j.Items.Get(ctx, code, kind)
	switch {
	case errors.Is(err, catalog.ErrItemNotFound):
		drift.Missing = true
		return drift, true, nil
	case err != nil:
		return Drift{}, false, fmt.Errorf("ledger reconcile: load %s: %w", code, err)
	}
	drift.Stock = item.StockQuantity
	return drift, !item.StockQuantity.Equal(balance), nil
}

// knownCodes merges catalog codes with codes that only appear in the ledger.
func (j *LedgerReconcileJob) knownCodes(ctx context.Context, kind catalog.Kind) ([]string, error) {
	fromCatalog, err := j.Items.ListCodes(ctx, kind)
	if err != nil {
		return nil, fmt.Errorf("ledger reconcile: list catalog: %w", err)
	}
	fromLedger, err := j.Entries.ItemCodes(ctx, kind)
	if err != nil {
		return nil, fmt.Errorf("ledger reconcile: list ledger: %w", err)
	}
	seen := make(map[string]struct{}, len(fromCatalog)+len(fromLedger))
	codes := make([]string, 0, len(fromCatalog)+len(fromLedger))
	for _, code := range append(fromCatalog, fromLedger...) {
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes, nil
}

func (j *LedgerReconcileJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
