package costing

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/platform/db"
)

// Repository persists cost batches in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type pgStore struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, Store) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &pgStore{tx: tx})
	})
}

const batchColumns = `id, product_id, warehouse_id, COALESCE(branch_id, 0), batch_number, quantity, unit_cost, created_at, updated_at`

// GetBatch fetches a batch by its (product, warehouse, batch number) key.
func (r *Repository) GetBatch(ctx context.Context, productID, warehouseID int64, batchNumber string) (CostBatch, error) {
	return scanBatch(r.pool.QueryRow(ctx, `SELECT `+batchColumns+` FROM cost_batches
WHERE product_id=$1 AND warehouse_id=$2 AND batch_number=$3`, productID, warehouseID, batchNumber))
}

// AverageUnitCost computes the quantity-weighted average across all batches.
func (r *Repository) AverageUnitCost(ctx context.Context, productID, warehouseID int64) (decimal.Decimal, error) {
	var cost decimal.Decimal
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(quantity * unit_cost) / NULLIF(SUM(quantity), 0), 0)
FROM cost_batches WHERE product_id=$1 AND warehouse_id=$2`, productID, warehouseID).Scan(&cost)
	if err != nil {
		return decimal.Zero, fmt.Errorf("costing: average unit cost: %w", err)
	}
	return cost.Round(costScale), nil
}

func (s *pgStore) GetBatchForUpdate(ctx context.Context, productID, warehouseID int64, batchNumber string) (CostBatch, error) {
	return scanBatch(s.tx.QueryRow(ctx, `SELECT `+batchColumns+` FROM cost_batches
WHERE product_id=$1 AND warehouse_id=$2 AND batch_number=$3 FOR UPDATE`, productID, warehouseID, batchNumber))
}

func (s *pgStore) InsertBatch(ctx context.Context, batch CostBatch) (int64, error) {
	var id int64
	err := s.tx.QueryRow(ctx, `INSERT INTO cost_batches (product_id, warehouse_id, branch_id, batch_number, quantity, unit_cost, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,NOW(),NOW()) RETURNING id`,
		batch.ProductID, batch.WarehouseID, nullInt(batch.BranchID), batch.BatchNumber, batch.Quantity, batch.UnitCost).Scan(&id)
	return id, err
}

func (s *pgStore) UpdateBatch(ctx context.Context, batch CostBatch) error {
	_, err := s.tx.Exec(ctx, `UPDATE cost_batches SET quantity=$2, unit_cost=$3, updated_at=NOW() WHERE id=$1`,
		batch.ID, batch.Quantity, batch.UnitCost)
	return err
}

func scanBatch(row pgx.Row) (CostBatch, error) {
	var b CostBatch
	err := row.Scan(&b.ID, &b.ProductID, &b.WarehouseID, &b.BranchID, &b.BatchNumber, &b.Quantity, &b.UnitCost, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return CostBatch{}, ErrBatchNotFound
		}
		return CostBatch{}, err
	}
	return b, nil
}

func nullInt(value int64) any {
	if value == 0 {
		return nil
	}
	return value
}
