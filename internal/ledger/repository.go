package ledger

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-receiving/internal/catalog"
	"github.com/odyssey-erp/odyssey-receiving/internal/platform/db"
)

// Repository persists the movement ledger in PostgreSQL. It only ever inserts.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const entryColumns = `id, item_code, description, item_group, unit, item_kind, direction, quantity, requested_quantity,
unit_cost, total_cost, ref_kind, ref_id, ref_number, notes, created_at`

// Append inserts entry and returns it with its id and timestamp.
func (r *Repository) Append(ctx context.Context, entry Entry) (Entry, error) {
	if err := validate(entry); err != nil {
		return Entry{}, err
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	err := r.pool.QueryRow(ctx, `INSERT INTO movement_ledger (item_code, description, item_group, unit, item_kind, direction,
quantity, requested_quantity, unit_cost, total_cost, ref_kind, ref_id, ref_number, notes, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15) RETURNING id`,
		entry.ItemCode, entry.Description, entry.Group, entry.Unit, string(entry.Kind), string(entry.Direction),
		entry.Quantity, entry.RequestedQuantity, entry.UnitCost, entry.TotalCost,
		string(entry.RefKind), entry.RefID, entry.RefNumber, entry.Notes, entry.CreatedAt).Scan(&entry.ID)
	if err != nil {
		return Entry{}, db.Classify(err)
	}
	return entry, nil
}

// ListByItem returns the newest entries for one item up to the filter
// limit, oldest first.
func (r *Repository) ListByItem(ctx context.Context, filter Filter) ([]Entry, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+entryColumns+` FROM (
SELECT `+entryColumns+` FROM movement_ledger
WHERE item_code=$1 AND item_kind=$2 AND created_at BETWEEN COALESCE($3, '-infinity'::timestamptz) AND COALESCE($4, 'infinity'::timestamptz)
ORDER BY id DESC
LIMIT $5) newest
ORDER BY id ASC`, filter.ItemCode, string(filter.Kind), nullTime(filter.From), nullTime(filter.To), filter.limit())
	if err != nil {
		return nil, db.Classify(err)
	}
	return collectEntries(rows)
}

// ListByReference returns every entry stamped with refID under kind's
// namespace.
func (r *Repository) ListByReference(ctx context.Context, kind RefKind, refID string) ([]Entry, error) {
	kinds := []string{}
	for _, k := range kind.Namespace() {
		kinds = append(kinds, string(k))
	}
	rows, err := r.pool.Query(ctx, `SELECT `+entryColumns+` FROM movement_ledger
WHERE ref_kind = ANY($1) AND ref_id=$2 ORDER BY id ASC`, kinds, refID)
	if err != nil {
		return nil, db.Classify(err)
	}
	return collectEntries(rows)
}

// Balance sums IN minus OUT quantities for the item.
func (r *Repository) Balance(ctx context.Context, code string, kind catalog.Kind) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(CASE WHEN direction='IN' THEN quantity ELSE -quantity END), 0)
FROM movement_ledger WHERE item_code=$1 AND item_kind=$2`, code, string(kind)).Scan(&total)
	if err != nil {
		return decimal.Zero, db.Classify(err)
	}
	return total, nil
}

// ItemCodes lists distinct item codes that have at least one movement.
func (r *Repository) ItemCodes(ctx context.Context, kind catalog.Kind) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT item_code FROM movement_ledger WHERE item_kind=$1 ORDER BY item_code`, string(kind))
	if err != nil {
		return nil, db.Classify(err)
	}
	defer rows.Close()
	codes := []string{}
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}
		codes = append(codes, code)
	}
	return codes, db.Classify(rows.Err())
}

func collectEntries(rows pgx.Rows) ([]Entry, error) {
	defer rows.Close()
	entries := []Entry{}
	for rows.Next() {
		var (
			e                  Entry
			kind, dir, refKind string
		)
		if err := rows.Scan(&e.ID, &e.ItemCode, &e.Description, &e.Group, &e.Unit, &kind, &dir,
			&e.Quantity, &e.RequestedQuantity, &e.UnitCost, &e.TotalCost,
			&refKind, &e.RefID, &e.RefNumber, &e.Notes, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Kind = catalog.Kind(kind)
		e.Direction = Direction(dir)
		e.RefKind = RefKind(refKind)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, db.Classify(err)
	}
	return entries, nil
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
