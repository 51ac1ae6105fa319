package ledger

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/platform/db"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Repository persists ledger data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

const balanceExpr = `COALESCE(SUM(CASE WHEN direction='in' THEN qty ELSE -qty END), 0)`

// WithTx runs fn inside a repeatable-read transaction with a Store bound to it.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, Store) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, NewPgStore(tx))
	})
}

// CurrentBalance sums signed quantities at call time. When warehouseID is nil
// the sum spans all warehouses for the product.
func (r *Repository) CurrentBalance(ctx context.Context, productID int64, warehouseID *int64) (decimal.Decimal, error) {
	q := psql.Select(balanceExpr).From("stock_movements").Where(sq.Eq{"product_id": productID})
	if warehouseID != nil {
		q = q.Where(sq.Eq{"warehouse_id": *warehouseID})
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return decimal.Zero, fmt.Errorf("ledger: build balance query: %w", err)
	}
	var balance decimal.Decimal
	if err := r.pool.QueryRow(ctx, sql, args...).Scan(&balance); err != nil {
		return decimal.Zero, fmt.Errorf("ledger: current balance: %w", err)
	}
	return balance, nil
}

// BulkBalance computes balances for many products in one aggregate query.
// Products without movements are reported as zero.
func (r *Repository) BulkBalance(ctx context.Context, productIDs []int64, warehouseID *int64) (map[int64]decimal.Decimal, error) {
	result := make(map[int64]decimal.Decimal, len(productIDs))
	for _, id := range productIDs {
		result[id] = decimal.Zero
	}
	if len(productIDs) == 0 {
		return result, nil
	}

	q := psql.Select("product_id", balanceExpr+" AS balance").
		From("stock_movements").
		Where(sq.Eq{"product_id": productIDs}).
		GroupBy("product_id")
	if warehouseID != nil {
		q = q.Where(sq.Eq{"warehouse_id": *warehouseID})
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("ledger: build bulk balance query: %w", err)
	}

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("ledger: bulk balance: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var productID int64
		var balance decimal.Decimal
		if err := rows.Scan(&productID, &balance); err != nil {
			return nil, err
		}
		result[productID] = balance
	}
	return result, rows.Err()
}

// StockValue sums the valuated amount for a product.
func (r *Repository) StockValue(ctx context.Context, productID int64, warehouseID *int64) (decimal.Decimal, error) {
	q := psql.Select("COALESCE(SUM(valuated_amount), 0)").From("stock_movements").Where(sq.Eq{"product_id": productID})
	if warehouseID != nil {
		q = q.Where(sq.Eq{"warehouse_id": *warehouseID})
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return decimal.Zero, fmt.Errorf("ledger: build stock value query: %w", err)
	}
	var value decimal.Decimal
	if err := r.pool.QueryRow(ctx, sql, args...).Scan(&value); err != nil {
		return decimal.Zero, fmt.Errorf("ledger: stock value: %w", err)
	}
	return value, nil
}

// ListMovements returns ledger rows matching the filter, newest first.
func (r *Repository) ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	q := psql.Select(
		"id", "product_id", "warehouse_id", "COALESCE(branch_id, 0) AS branch_id",
		"direction", "qty", "signed_qty", "unit_cost", "valuated_amount",
		"movement_type AS type", "reference", "COALESCE(reversal_of_id, 0) AS reversal_of_id",
		"COALESCE(created_by, 0) AS created_by", "created_at",
	).From("stock_movements")

	if filter.ProductID != 0 {
		q = q.Where(sq.Eq{"product_id": filter.ProductID})
	}
	if filter.WarehouseID != 0 {
		q = q.Where(sq.Eq{"warehouse_id": filter.WarehouseID})
	}
	if len(filter.Types) > 0 {
		types := make([]string, len(filter.Types))
		for i, t := range filter.Types {
			types[i] = string(t)
		}
		q = q.Where(sq.Eq{"movement_type": types})
	}
	if !filter.From.IsZero() {
		q = q.Where(sq.GtOrEq{"created_at": filter.From})
	}
	if !filter.To.IsZero() {
		q = q.Where(sq.LtOrEq{"created_at": filter.To})
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 200
	}
	q = q.OrderBy("created_at DESC", "id DESC").Limit(uint64(limit))
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("ledger: build list query: %w", err)
	}

	var movements []Movement
	if err := pgxscan.Select(ctx, r.pool, &movements, sql, args...); err != nil {
		return nil, fmt.Errorf("ledger: list movements: %w", err)
	}
	return movements, nil
}

// GetMovement fetches one ledger row.
func (r *Repository) GetMovement(ctx context.Context, id int64) (Movement, error) {
	var m Movement
	err := pgxscan.Get(ctx, r.pool, &m, `SELECT id, product_id, warehouse_id, COALESCE(branch_id, 0) AS branch_id,
direction, qty, signed_qty, unit_cost, valuated_amount, movement_type AS type, reference,
COALESCE(reversal_of_id, 0) AS reversal_of_id, COALESCE(created_by, 0) AS created_by, created_at
FROM stock_movements WHERE id=$1`, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Movement{}, shared.ErrNotFound
		}
		return Movement{}, fmt.Errorf("ledger: get movement: %w", err)
	}
	return m, nil
}

// RebuildStockLevel re-aggregates the cached counter for one key from the
// ledger sum. The counter is never authoritative; this repairs drift.
func (r *Repository) RebuildStockLevel(ctx context.Context, productID, warehouseID int64) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO stock_levels (product_id, warehouse_id, qty, updated_at)
SELECT $1, $2, `+balanceExpr+`, NOW()
FROM stock_movements WHERE product_id=$1 AND warehouse_id=$2
ON CONFLICT (product_id, warehouse_id) DO UPDATE SET qty=EXCLUDED.qty, updated_at=NOW()`, productID, warehouseID)
	return err
}

// ListStockKeys returns every (product, warehouse) pair present in the ledger.
func (r *Repository) ListStockKeys(ctx context.Context) ([]StockKey, error) {
	var keys []StockKey
	if err := pgxscan.Select(ctx, r.pool, &keys, `SELECT DISTINCT product_id, warehouse_id FROM stock_movements`); err != nil {
		return nil, fmt.Errorf("ledger: list stock keys: %w", err)
	}
	return keys, nil
}

// ListDriftedKeys returns keys whose cached stock level no longer matches the
// ledger sum, including keys missing a stock_levels row entirely.
func (r *Repository) ListDriftedKeys(ctx context.Context) ([]StockKey, error) {
	var keys []StockKey
	err := pgxscan.Select(ctx, r.pool, &keys, `SELECT m.product_id, m.warehouse_id
FROM (
	SELECT product_id, warehouse_id, SUM(CASE WHEN direction='in' THEN qty ELSE -qty END) AS balance
	FROM stock_movements GROUP BY product_id, warehouse_id
) m
LEFT JOIN stock_levels s ON s.product_id = m.product_id AND s.warehouse_id = m.warehouse_id
WHERE s.qty IS DISTINCT FROM m.balance`)
	if err != nil {
		return nil, fmt.Errorf("ledger: list drifted keys: %w", err)
	}
	return keys, nil
}

// StockKey identifies one (product, warehouse) ledger partition.
type StockKey struct {
	ProductID   int64
	WarehouseID int64
}
