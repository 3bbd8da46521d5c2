package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-receiving/internal/platform/db"
	"github.com/odyssey-erp/odyssey-receiving/internal/shared"
)

// Repository persists catalog items in PostgreSQL, one table per kind.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type table struct {
	name  string
	stock string
}

var tables = map[Kind]table{
	KindTracked:   {name: "catalog_tracked_items", stock: "stock_quantity"},
	KindUntracked: {name: "catalog_untracked_items", stock: "0::numeric"},
}

func tableFor(kind Kind) (table, error) {
	t, ok := tables[kind]
	if !ok {
		return table{}, fmt.Errorf("%w: %q", ErrInvalidKind, kind)
	}
	return t, nil
}

func (t table) columns() string {
	return `code, description, unit, item_group, ` + t.stock + `,
cost_price, cost_price_1, cost_price_2, cost_price_3,
selling_price, selling_price_1, selling_price_2, selling_price_3,
version, updated_at`
}

func scanItem(row pgx.Row, kind Kind) (Item, error) {
	item := Item{Kind: kind}
	err := row.Scan(&item.Code, &item.Description, &item.Unit, &item.Group, &item.StockQuantity,
		&item.Cost.Current, &item.Cost.History[0], &item.Cost.History[1], &item.Cost.History[2],
		&item.Selling.Current, &item.Selling.History[0], &item.Selling.History[1], &item.Selling.History[2],
		&item.Version, &item.UpdatedAt)
	return item, err
}

// Get loads an item from the table selected by kind.
func (r *Repository) Get(ctx context.Context, code string, kind Kind) (Item, error) {
	t, err := tableFor(kind)
	if err != nil {
		return Item{}, err
	}
	row := r.pool.QueryRow(ctx, `SELECT `+t.columns()+` FROM `+t.name+` WHERE code=$1`, code)
	item, err := scanItem(row, kind)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Item{}, ErrItemNotFound
		}
		return Item{}, db.Classify(err)
	}
	return item, nil
}

// Create inserts a new item at version 1.
func (r *Repository) Create(ctx context.Context, item Item) (Item, error) {
	if item.StockQuantity.IsNegative() {
		return Item{}, ErrNegativeStock
	}
	var row pgx.Row
	switch item.Kind {
	case KindTracked:
		row = r.pool.QueryRow(ctx, `INSERT INTO catalog_tracked_items (code, description, unit, item_group, stock_quantity,
cost_price, cost_price_1, cost_price_2, cost_price_3, selling_price, selling_price_1, selling_price_2, selling_price_3, version, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,1,NOW()) RETURNING version, updated_at`,
			item.Code, item.Description, item.Unit, item.Group, item.StockQuantity,
			item.Cost.Current, item.Cost.History[0], item.Cost.History[1], item.Cost.History[2],
			item.Selling.Current, item.Selling.History[0], item.Selling.History[1], item.Selling.History[2])
	case KindUntracked:
		row = r.pool.QueryRow(ctx, `INSERT INTO catalog_untracked_items (code, description, unit, item_group,
cost_price, cost_price_1, cost_price_2, cost_price_3, selling_price, selling_price_1, selling_price_2, selling_price_3, version, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,1,NOW()) RETURNING version, updated_at`,
			item.Code, item.Description, item.Unit, item.Group,
			item.Cost.Current, item.Cost.History[0], item.Cost.History[1], item.Cost.History[2],
			item.Selling.Current, item.Selling.History[0], item.Selling.History[1], item.Selling.History[2])
	default:
		return Item{}, fmt.Errorf("%w: %q", ErrInvalidKind, item.Kind)
	}
	if err := row.Scan(&item.Version, &item.UpdatedAt); err != nil {
		err = db.Classify(err)
		if errors.Is(err, shared.ErrConflict) {
			return Item{}, ErrItemExists
		}
		return Item{}, err
	}
	return item, nil
}

// Update writes item when the stored version equals item.Version.
func (r *Repository) Update(ctx context.Context, item Item) (Item, error) {
	if item.StockQuantity.IsNegative() {
		return Item{}, ErrNegativeStock
	}
	var row pgx.Row
	switch item.Kind {
	case KindTracked:
		row = r.pool.QueryRow(ctx, `UPDATE catalog_tracked_items SET description=$2, unit=$3, item_group=$4, stock_quantity=$5,
cost_price=$6, cost_price_1=$7, cost_price_2=$8, cost_price_3=$9,
selling_price=$10, selling_price_1=$11, selling_price_2=$12, selling_price_3=$13,
version=version+1, updated_at=NOW()
WHERE code=$1 AND version=$14 RETURNING version, updated_at`,
			item.Code, item.Description, item.Unit, item.Group, item.StockQuantity,
			item.Cost.Current, item.Cost.History[0], item.Cost.History[1], item.Cost.History[2],
			item.Selling.Current, item.Selling.History[0], item.Selling.History[1], item.Selling.History[2],
			item.Version)
	case KindUntracked:
		row = r.pool.QueryRow(ctx, `UPDATE catalog_untracked_items SET description=$2, unit=$3, item_group=$4,
cost_price=$5, cost_price_1=$6, cost_price_2=$7, cost_price_3=$8,
selling_price=$9, selling_price_1=$10, selling_price_2=$11, selling_price_3=$12,
version=version+1, updated_at=NOW()
WHERE code=$1 AND version=$13 RETURNING version, updated_at`,
			item.Code, item.Description, item.Unit, item.Group,
			item.Cost.Current, item.Cost.History[0], item.Cost.History[1], item.Cost.History[2],
			item.Selling.Current, item.Selling.History[0], item.Selling.History[1], item.Selling.History[2],
			item.Version)
	default:
		return Item{}, fmt.Errorf("%w: %q", ErrInvalidKind, item.Kind)
	}
	if err := row.Scan(&item.Version, &item.UpdatedAt); err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return Item{}, db.Classify(err)
		}
		if _, getErr := r.Get(ctx, item.Code, item.Kind); getErr != nil {
			return Item{}, getErr
		}
		return Item{}, ErrVersionConflict
	}
	return item, nil
}

// ListCodes returns every code stored for kind.
func (r *Repository) ListCodes(ctx context.Context, kind Kind) ([]string, error) {
	t, err := tableFor(kind)
	if err != nil {
		return nil, err
	}
	rows, err := r.pool.Query(ctx, `SELECT code FROM `+t.name+` ORDER BY code`)
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
	if err := rows.Err(); err != nil {
		return nil, db.Classify(err)
	}
	return codes, nil
}
