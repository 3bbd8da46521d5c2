package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-receiving/internal/catalog"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLedgerReconcile compares catalog stock with the movement ledger.
	TaskLedgerReconcile = "ledger:reconcile"
	// TaskRemaindersRefresh rebuilds the cached remainders of one supplier order.
	TaskRemaindersRefresh = "procurement:remainders-refresh"
	// TaskIdempotencyCleanup drops expired idempotency keys.
	TaskIdempotencyCleanup = "receiving:idempotency-cleanup"
)

// LedgerReconcilePayload selects the items to reconcile. An empty Kind covers
// every kind and empty Codes covers every known code of the kind.
type LedgerReconcilePayload struct {
	Kind  catalog.Kind `json:"kind,omitempty"`
	Codes []string     `json:"codes,omitempty"`
}

// NewLedgerReconcileTask builds a reconcile task.
func NewLedgerReconcileTask(payload LedgerReconcilePayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLedgerReconcile, body, asynq.Queue(QueueDefault), asynq.MaxRetry(5)), nil
}

// RemaindersRefreshPayload names the supplier order whose remainders are rebuilt.
type RemaindersRefreshPayload struct {
	OrderID string `json:"order_id"`
}

// NewRemaindersRefreshTask builds a refresh task for one order. An empty
// order ID refreshes every receivable order.
func NewRemaindersRefreshTask(orderID string) (*asynq.Task, error) {
	body, err := json.Marshal(RemaindersRefreshPayload{OrderID: orderID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskRemaindersRefresh, body, asynq.Queue(QueueDefault), asynq.MaxRetry(3)), nil
}

// IdempotencyCleanupPayload carries the retention window.
type IdempotencyCleanupPayload struct {
	Retention time.Duration `json:"retention"`
}

// NewIdempotencyCleanupTask builds a cleanup task.
func NewIdempotencyCleanupTask(retention time.Duration) (*asynq.Task, error) {
	body, err := json.Marshal(IdempotencyCleanupPayload{Retention: retention})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, body, asynq.Queue(QueueDefault), asynq.MaxRetry(1)), nil
}
