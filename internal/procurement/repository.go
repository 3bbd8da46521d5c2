package procurement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-receiving/internal/catalog"
	"github.com/odyssey-erp/odyssey-receiving/internal/platform/db"
)

// Store is the order and receipt-event persistence used by receiving.
type Store interface {
	GetOrder(ctx context.Context, orderID string) (Order, error)
	// ListReceiptEvents returns every event for the order, oldest first.
	ListReceiptEvents(ctx context.Context, orderID string) ([]ReceiptEvent, error)
	CountReceiptEvents(ctx context.Context, orderID string) (int, error)
	// AppendReceiptEvent stores event only while the order still has
	// expected events, and returns ErrConcurrentReceipt otherwise.
	AppendReceiptEvent(ctx context.Context, event ReceiptEvent, expected int) (ReceiptEvent, error)
	UpdateOrderStatus(ctx context.Context, orderID string, status Status) error
	ListReceivableOrders(ctx context.Context) ([]string, error)
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetOrder returns the order header and lines.
func (r *Repository) GetOrder(ctx context.Context, orderID string) (Order, error) {
	var (
		order  Order
		status string
	)
	err := r.pool.QueryRow(ctx, `SELECT id, number, supplier, status, updated_at FROM supplier_orders WHERE id=$1`, orderID).
		Scan(&order.ID, &order.Number, &order.Supplier, &status, &order.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, ErrOrderNotFound
		}
		return Order{}, db.Classify(err)
	}
	order.Status = Status(status)

	rows, err := r.pool.Query(ctx, `SELECT item_code, item_kind, quantity_ordered, unit_cost, description, unit
FROM supplier_order_lines WHERE order_id=$1 ORDER BY line_no`, orderID)
	if err != nil {
		return Order{}, db.Classify(err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			line OrderLine
			kind string
		)
		if err := rows.Scan(&line.ItemCode, &kind, &line.QuantityOrdered, &line.UnitCost, &line.Description, &line.Unit); err != nil {
			return Order{}, err
		}
		line.Kind = catalog.Kind(kind)
		order.Lines = append(order.Lines, line)
	}
	if err := rows.Err(); err != nil {
		return Order{}, db.Classify(err)
	}
	return order, nil
}

// ListReceiptEvents loads events and their items in two queries.
func (r *Repository) ListReceiptEvents(ctx context.Context, orderID string) ([]ReceiptEvent, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, order_id, reference, delivery_ref, notes, received_at
FROM receipt_events WHERE order_id=$1 ORDER BY received_at, id`, orderID)
	if err != nil {
		return nil, db.Classify(err)
	}
	events := []ReceiptEvent{}
	index := map[uuid.UUID]int{}
	for rows.Next() {
		var evt ReceiptEvent
		if err := rows.Scan(&evt.ID, &evt.OrderID, &evt.Reference, &evt.DeliveryRef, &evt.Notes, &evt.ReceivedAt); err != nil {
			rows.Close()
			return nil, err
		}
		index[evt.ID] = len(events)
		events = append(events, evt)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, db.Classify(err)
	}
	if len(events) == 0 {
		return events, nil
	}

	itemRows, err := r.pool.Query(ctx, `SELECT i.event_id, i.item_code, i.item_kind, i.quantity, i.unit_cost, i.description, i.unit
FROM receipt_event_items i JOIN receipt_events e ON e.id = i.event_id
WHERE e.order_id=$1 ORDER BY i.event_id, i.line_no`, orderID)
	if err != nil {
		return nil, db.Classify(err)
	}
	defer itemRows.Close()
	for itemRows.Next() {
		var (
			eventID uuid.UUID
			item    ReceivedItem
			kind    string
		)
		if err := itemRows.Scan(&eventID, &item.ItemCode, &kind, &item.Quantity, &item.UnitCost, &item.Description, &item.Unit); err != nil {
			return nil, err
		}
		item.Kind = catalog.Kind(kind)
		if i, ok := index[eventID]; ok {
			events[i].Items = append(events[i].Items, item)
		}
	}
	if err := itemRows.Err(); err != nil {
		return nil, db.Classify(err)
	}
	return events, nil
}

// CountReceiptEvents returns how many events the order has.
func (r *Repository) CountReceiptEvents(ctx context.Context, orderID string) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM receipt_events WHERE order_id=$1`, orderID).Scan(&count); err != nil {
		return 0, db.Classify(err)
	}
	return count, nil
}

// AppendReceiptEvent inserts the event and its items in one transaction. The
// order row is locked so the event count check and the insert serialise with
// other receipts of the same order.
func (r *Repository) AppendReceiptEvent(ctx context.Context, event ReceiptEvent, expected int) (ReceiptEvent, error) {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.ReceivedAt.IsZero() {
		event.ReceivedAt = time.Now().UTC()
	}
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var locked string
		if err := tx.QueryRow(ctx, `SELECT id FROM supplier_orders WHERE id=$1 FOR UPDATE`, event.OrderID).Scan(&locked); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrOrderNotFound
			}
			return db.Classify(err)
		}
		var count int
		if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM receipt_events WHERE order_id=$1`, event.OrderID).Scan(&count); err != nil {
			return db.Classify(err)
		}
		if count != expected {
			return fmt.Errorf("%w: %s has %d events, replayed %d", ErrConcurrentReceipt, event.OrderID, count, expected)
		}
		if _, err := tx.Exec(ctx, `INSERT INTO receipt_events (id, order_id, reference, delivery_ref, notes, received_at)
VALUES ($1,$2,$3,$4,$5,$6)`, event.ID, event.OrderID, event.Reference, event.DeliveryRef, event.Notes, event.ReceivedAt); err != nil {
			return db.Classify(err)
		}
		batch := &pgx.Batch{}
		for i, item := range event.Items {
			batch.Queue(`INSERT INTO receipt_event_items (event_id, line_no, item_code, item_kind, quantity, unit_cost, description, unit)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`, event.ID, i+1, item.ItemCode, string(item.Kind), item.Quantity, item.UnitCost, item.Description, item.Unit)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return db.Classify(err)
		}
		return nil
	})
	if err != nil {
		return ReceiptEvent{}, err
	}
	return event, nil
}

// UpdateOrderStatus writes the order status.
func (r *Repository) UpdateOrderStatus(ctx context.Context, orderID string, status Status) error {
	tag, err := r.pool.Exec(ctx, `UPDATE supplier_orders SET status=$2, updated_at=NOW() WHERE id=$1`, orderID, string(status))
	if err != nil {
		return db.Classify(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

// ListReceivableOrders returns ids of orders that can still be received.
func (r *Repository) ListReceivableOrders(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM supplier_orders WHERE status = ANY($1) ORDER BY id`,
		[]string{string(StatusInOrder), string(StatusOrdered), string(StatusPartiallyReceived)})
	if err != nil {
		return nil, db.Classify(err)
	}
	defer rows.Close()
	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, db.Classify(rows.Err())
}
