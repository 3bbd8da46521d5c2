package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/odyssey-receiving/internal/jobs"
	"github.com/odyssey-erp/odyssey-receiving/internal/procurement"
)

// RemainderRefresher rebuilds cached order remainders.
type RemainderRefresher interface {
	Refresh(ctx context.Context, orderID string) (procurement.Snapshot, error)
	ListReceivableOrders(ctx context.Context) ([]string, error)
}

// RemaindersRefreshJob repopulates the remainder cache.
type RemaindersRefreshJob struct {
	Orders  RemainderRefresher
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewRemaindersRefreshJob wires dependencies for the refresh handler.
func NewRemaindersRefreshJob(orders RemainderRefresher, logger *slog.Logger, metrics *jobmetrics.Metrics) *RemaindersRefreshJob {
	return &RemaindersRefreshJob{Orders: orders, Logger: logger, Metrics: metrics}
}

// Handle processes TaskRemaindersRefresh tasks.
func (j *RemaindersRefreshJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Orders == nil {
		return errors.New("remainders refresh: handler not configured")
	}
	var payload RemaindersRefreshPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("remainders refresh: decode payload: %v: %w", err, asynq.SkipRetry)
	}
	tracker := j.Metrics.Track(TaskRemaindersRefresh)
	defer func() {
		err = tracker.End(err)
	}()

	orders := []string{payload.OrderID}
	if payload.OrderID == "" {
		orders, err = j.Orders.ListReceivableOrders(ctx)
		if err != nil {
			return fmt.Errorf("remainders refresh: list orders: %w", err)
		}
	}
	logger := j.Logger
	if logger == nil {
		logger = slog.Default()
	}
	for _, id := range orders {
		snapshot, refreshErr := j.Orders.Refresh(ctx, id)
		if errors.Is(refreshErr, procurement.ErrOrderNotFound) {
			logger.Warn("remainders refresh: order vanished", slog.String("order_id", id))
			continue
		}
		if refreshErr != nil {
			return fmt.Errorf("remainders refresh %s: %w", id, refreshErr)
		}
		logger.Debug("remainders refreshed",
			slog.String("order_id", id),
			slog.String("status", string(snapshot.Status)),
			slog.Int("events", snapshot.EventCount))
	}
	return nil
}
