package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Store is the transactional surface of the ledger. Transfer and checkout
// services bind one to their own transaction so header writes, item writes and
// ledger appends commit or roll back together.
type Store interface {
	// LockStock serializes writers for a (product, warehouse) key via the
	// stock_levels row. The row is created on first touch.
	LockStock(ctx context.Context, productID, warehouseID int64) error
	// SumBalance computes the signed quantity sum over the ledger. This is the
	// authoritative balance; stock_levels is a rebuildable cache.
	SumBalance(ctx context.Context, productID, warehouseID int64) (decimal.Decimal, error)
	InsertMovement(ctx context.Context, m Movement) (int64, error)
	ApplyStockLevel(ctx context.Context, productID, warehouseID int64, delta decimal.Decimal) error
}

// Append validates the input and appends one immutable row. It never checks
// for sufficient stock; the ledger is a pure fact log and sufficiency is the
// caller's responsibility via EnsureAvailable.
func Append(ctx context.Context, store Store, in MovementInput) (Movement, error) {
	if err := in.Validate(); err != nil {
		return Movement{}, err
	}

	signed := in.Qty
	if in.Direction == DirectionOut {
		signed = in.Qty.Neg()
	}

	m := Movement{
		ProductID:      in.ProductID,
		WarehouseID:    in.WarehouseID,
		BranchID:       in.BranchID,
		Direction:      in.Direction,
		Qty:            in.Qty,
		SignedQty:      signed,
		UnitCost:       in.UnitCost,
		ValuatedAmount: signed.Mul(in.UnitCost),
		Type:           in.Type,
		Reference:      in.Reference,
		ReversalOfID:   in.ReversalOfID,
		CreatedBy:      in.ActorID,
		CreatedAt:      time.Now().UTC(),
	}

	id, err := store.InsertMovement(ctx, m)
	if err != nil {
		return Movement{}, fmt.Errorf("ledger: insert movement: %w", err)
	}
	m.ID = id

	if err := store.ApplyStockLevel(ctx, in.ProductID, in.WarehouseID, signed); err != nil {
		return Movement{}, fmt.Errorf("ledger: apply stock level: %w", err)
	}

	return m, nil
}

// EnsureAvailable rejects an out movement that would overdraw the balance,
// unless negative stock is explicitly allowed. The caller must hold the
// (product, warehouse) lock for the duration of the check and the write.
func EnsureAvailable(ctx context.Context, store Store, productID, warehouseID int64, requested decimal.Decimal, allowNegative bool) error {
	if allowNegative {
		return nil
	}
	available, err := store.SumBalance(ctx, productID, warehouseID)
	if err != nil {
		return fmt.Errorf("ledger: sum balance: %w", err)
	}
	if requested.GreaterThan(available) {
		return &shared.InsufficientStockError{
			ProductID:   productID,
			WarehouseID: warehouseID,
			Available:   available,
			Requested:   requested,
		}
	}
	return nil
}

// pgQuerier matches both pgxpool.Pool and pgx.Tx.
type pgQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PgStore implements Store over a pgx transaction or pool.
type PgStore struct {
	q pgQuerier
}

// NewPgStore binds a Store to q, typically a pgx.Tx.
func NewPgStore(q pgQuerier) *PgStore {
	return &PgStore{q: q}
}

func (s *PgStore) LockStock(ctx context.Context, productID, warehouseID int64) error {
	if _, err := s.q.Exec(ctx, `INSERT INTO stock_levels (product_id, warehouse_id, qty, updated_at)
VALUES ($1, $2, 0, NOW())
ON CONFLICT (product_id, warehouse_id) DO NOTHING`, productID, warehouseID); err != nil {
		return err
	}
	var qty decimal.Decimal
	return s.q.QueryRow(ctx, `SELECT qty FROM stock_levels WHERE product_id=$1 AND warehouse_id=$2 FOR UPDATE`, productID, warehouseID).Scan(&qty)
}

func (s *PgStore) SumBalance(ctx context.Context, productID, warehouseID int64) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := s.q.QueryRow(ctx, `SELECT COALESCE(SUM(CASE WHEN direction='in' THEN qty ELSE -qty END), 0)
FROM stock_movements WHERE product_id=$1 AND warehouse_id=$2`, productID, warehouseID).Scan(&balance)
	return balance, err
}

func (s *PgStore) InsertMovement(ctx context.Context, m Movement) (int64, error) {
	var id int64
	err := s.q.QueryRow(ctx, `INSERT INTO stock_movements
(product_id, warehouse_id, branch_id, direction, qty, signed_qty, unit_cost, valuated_amount, movement_type, reference, reversal_of_id, created_by, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
RETURNING id`,
		m.ProductID, m.WarehouseID, nullInt(m.BranchID), string(m.Direction), m.Qty, m.SignedQty,
		m.UnitCost, m.ValuatedAmount, string(m.Type), m.Reference, nullInt(m.ReversalOfID),
		nullInt(m.CreatedBy), m.CreatedAt).Scan(&id)
	return id, err
}

func (s *PgStore) ApplyStockLevel(ctx context.Context, productID, warehouseID int64, delta decimal.Decimal) error {
	_, err := s.q.Exec(ctx, `UPDATE stock_levels SET qty = qty + $3, updated_at = NOW()
WHERE product_id=$1 AND warehouse_id=$2`, productID, warehouseID, delta)
	return err
}

func nullInt(value int64) any {
	if value == 0 {
		return nil
	}
	return value
}
