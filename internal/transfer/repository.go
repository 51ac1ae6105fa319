package transfer

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian-erp/internal/ledger"
	"github.com/meridian-erp/meridian-erp/internal/platform/db"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Repository persists transfers in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx executes the callback inside a repeatable-read transaction. The store
// shares the transaction with a ledger store so workflow writes and movement
// appends are atomic.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxStore) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &pgTxStore{tx: tx, ledger: ledger.NewPgStore(tx)})
	})
}

const transferColumns = `id, number, from_warehouse_id, to_warehouse_id,
COALESCE(from_branch_id, 0) AS from_branch_id, COALESCE(to_branch_id, 0) AS to_branch_id,
transfer_type AS type, status, priority, transfer_date, expected_delivery, actual_delivery,
COALESCE(reason, '') AS reason, COALESCE(notes, '') AS notes,
COALESCE(tracking_number, '') AS tracking_number, COALESCE(courier_name, '') AS courier_name,
COALESCE(vehicle_number, '') AS vehicle_number, COALESCE(driver_name, '') AS driver_name,
COALESCE(driver_phone, '') AS driver_phone,
shipping_cost, insurance_cost, total_cost, currency,
total_qty_requested, total_qty_shipped, total_qty_received, total_qty_damaged,
requested_by, COALESCE(approved_by, 0) AS approved_by, approved_at,
COALESCE(shipped_by, 0) AS shipped_by, shipped_at,
COALESCE(received_by, 0) AS received_by, received_at,
created_by, created_at, updated_at`

const itemColumns = `id, transfer_id, product_id, qty_requested, qty_approved, qty_shipped, qty_received, qty_damaged,
COALESCE(batch_number, '') AS batch_number, expiry_date, unit_cost,
COALESCE(condition_on_shipping, '') AS condition_on_shipping,
COALESCE(condition_on_receiving, '') AS condition_on_receiving,
COALESCE(damage_report, '') AS damage_report, COALESCE(notes, '') AS notes`

// GetTransfer fetches one transfer header.
func (r *Repository) GetTransfer(ctx context.Context, id int64) (Transfer, error) {
	return getTransfer(ctx, r.pool, id, false)
}

// ItemsForTransfer fetches the item lines of a transfer.
func (r *Repository) ItemsForTransfer(ctx context.Context, transferID int64) ([]TransferItem, error) {
	return itemsForTransfer(ctx, r.pool, transferID)
}

// TransitsForTransfer fetches the transit records of a transfer.
func (r *Repository) TransitsForTransfer(ctx context.Context, transferID int64) ([]TransitRecord, error) {
	var transits []TransitRecord
	err := pgxscan.Select(ctx, r.pool, &transits, `SELECT id, transfer_id, product_id, from_warehouse_id, to_warehouse_id,
quantity, unit_cost, COALESCE(batch_number, '') AS batch_number, expiry_date, status, shipped_at, expected_arrival, created_by
FROM inventory_transits WHERE transfer_id=$1 ORDER BY id`, transferID)
	if err != nil {
		return nil, fmt.Errorf("transfer: list transits: %w", err)
	}
	return transits, nil
}

// List returns transfers matching the filter, newest first.
func (r *Repository) List(ctx context.Context, filter Filter) ([]Transfer, error) {
	builder := psql.Select(transferColumns).From("stock_transfers")
	if filter.WarehouseID != 0 {
		builder = builder.Where(sq.Or{
			sq.Eq{"from_warehouse_id": filter.WarehouseID},
			sq.Eq{"to_warehouse_id": filter.WarehouseID},
		})
	}
	if filter.Status != "" {
		builder = builder.Where(sq.Eq{"status": string(filter.Status)})
	}
	if filter.Priority != "" {
		builder = builder.Where(sq.Eq{"priority": string(filter.Priority)})
	}
	if !filter.From.IsZero() {
		builder = builder.Where(sq.GtOrEq{"transfer_date": filter.From})
	}
	if !filter.To.IsZero() {
		builder = builder.Where(sq.LtOrEq{"transfer_date": filter.To})
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	builder = builder.OrderBy("created_at DESC").Limit(uint64(limit)).Offset(uint64(filter.Offset))

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("transfer: build list query: %w", err)
	}
	var transfers []Transfer
	if err := pgxscan.Select(ctx, r.pool, &transfers, query, args...); err != nil {
		return nil, fmt.Errorf("transfer: list: %w", err)
	}
	return transfers, nil
}

// Statistics aggregates transfer counts for a warehouse and period.
func (r *Repository) Statistics(ctx context.Context, warehouseID int64, from, to time.Time) (Statistics, error) {
	builder := psql.Select(
		`COUNT(*) AS total`,
		`COUNT(*) FILTER (WHERE status = 'pending') AS pending`,
		`COUNT(*) FILTER (WHERE status = 'approved') AS approved`,
		`COUNT(*) FILTER (WHERE status = 'in_transit') AS in_transit`,
		`COUNT(*) FILTER (WHERE status = 'completed') AS completed`,
		`COUNT(*) FILTER (WHERE status = 'cancelled') AS cancelled`,
		`COALESCE(SUM(total_qty_received), 0) AS total_received`,
		`COALESCE(SUM(total_cost), 0) AS total_cost`,
	).From("stock_transfers")
	if warehouseID != 0 {
		builder = builder.Where(sq.Or{
			sq.Eq{"from_warehouse_id": warehouseID},
			sq.Eq{"to_warehouse_id": warehouseID},
		})
	}
	if !from.IsZero() {
		builder = builder.Where(sq.GtOrEq{"transfer_date": from})
	}
	if !to.IsZero() {
		builder = builder.Where(sq.LtOrEq{"transfer_date": to})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return Statistics{}, fmt.Errorf("transfer: build statistics query: %w", err)
	}
	var stats Statistics
	if err := pgxscan.Get(ctx, r.pool, &stats, query, args...); err != nil {
		return Statistics{}, fmt.Errorf("transfer: statistics: %w", err)
	}
	return stats, nil
}

type pgTxStore struct {
	tx     pgx.Tx
	ledger *ledger.PgStore
}

func (s *pgTxStore) Ledger() ledger.Store {
	return s.ledger
}

func (s *pgTxStore) InsertTransfer(ctx context.Context, t Transfer) (int64, error) {
	var id int64
	err := s.tx.QueryRow(ctx, `INSERT INTO stock_transfers
(number, from_warehouse_id, to_warehouse_id, from_branch_id, to_branch_id, transfer_type, status, priority,
 transfer_date, expected_delivery, reason, notes,
 shipping_cost, insurance_cost, total_cost, currency,
 total_qty_requested, requested_by, created_by, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$20)
RETURNING id`,
		t.Number, t.FromWarehouseID, t.ToWarehouseID, nullInt(t.FromBranchID), nullInt(t.ToBranchID),
		string(t.Type), string(t.Status), string(t.Priority),
		t.TransferDate, t.ExpectedDelivery, t.Reason, t.Notes,
		t.ShippingCost, t.InsuranceCost, t.TotalCost, t.Currency,
		t.TotalQtyRequested, t.RequestedBy, t.CreatedBy, t.CreatedAt).Scan(&id)
	return id, err
}

func (s *pgTxStore) InsertItems(ctx context.Context, transferID int64, items []TransferItem) error {
	for _, item := range items {
		_, err := s.tx.Exec(ctx, `INSERT INTO stock_transfer_items
(transfer_id, product_id, qty_requested, qty_approved, batch_number, expiry_date, unit_cost, condition_on_shipping, notes)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
			transferID, item.ProductID, item.QtyRequested, item.QtyApproved,
			item.BatchNumber, item.ExpiryDate, item.UnitCost, item.ConditionOnShipping, item.Notes)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *pgTxStore) GetTransferForUpdate(ctx context.Context, id int64) (Transfer, error) {
	return getTransfer(ctx, s.tx, id, true)
}

func (s *pgTxStore) ItemsForTransfer(ctx context.Context, transferID int64) ([]TransferItem, error) {
	return itemsForTransfer(ctx, s.tx, transferID)
}

func (s *pgTxStore) UpdateItem(ctx context.Context, item TransferItem) error {
	_, err := s.tx.Exec(ctx, `UPDATE stock_transfer_items SET
qty_shipped=$2, qty_received=$3, qty_damaged=$4, condition_on_receiving=$5, damage_report=$6
WHERE id=$1`,
		item.ID, item.QtyShipped, item.QtyReceived, item.QtyDamaged, item.ConditionOnReceiving, item.DamageReport)
	return err
}

func (s *pgTxStore) UpdateTransfer(ctx context.Context, t Transfer) error {
	_, err := s.tx.Exec(ctx, `UPDATE stock_transfers SET
status=$2, expected_delivery=$3, actual_delivery=$4,
tracking_number=$5, courier_name=$6, vehicle_number=$7, driver_name=$8, driver_phone=$9,
total_qty_shipped=$10, total_qty_received=$11, total_qty_damaged=$12,
approved_by=$13, approved_at=$14, shipped_by=$15, shipped_at=$16, received_by=$17, received_at=$18,
updated_at=NOW()
WHERE id=$1`,
		t.ID, string(t.Status), t.ExpectedDelivery, t.ActualDelivery,
		t.TrackingNumber, t.CourierName, t.VehicleNumber, t.DriverName, t.DriverPhone,
		t.TotalQtyShipped, t.TotalQtyReceived, t.TotalQtyDamaged,
		nullInt(t.ApprovedBy), t.ApprovedAt, nullInt(t.ShippedBy), t.ShippedAt, nullInt(t.ReceivedBy), t.ReceivedAt)
	return err
}

func (s *pgTxStore) InsertHistory(ctx context.Context, entry HistoryEntry) error {
	_, err := s.tx.Exec(ctx, `INSERT INTO transfer_status_history
(transfer_id, from_status, to_status, notes, changed_by, changed_at)
VALUES ($1,$2,$3,$4,$5,$6)`,
		entry.TransferID, string(entry.FromStatus), string(entry.ToStatus), entry.Notes, entry.ChangedBy, entry.ChangedAt)
	return err
}

func (s *pgTxStore) InsertTransit(ctx context.Context, record TransitRecord) (int64, error) {
	var id int64
	err := s.tx.QueryRow(ctx, `INSERT INTO inventory_transits
(transfer_id, product_id, from_warehouse_id, to_warehouse_id, quantity, unit_cost, batch_number, expiry_date, status, shipped_at, expected_arrival, created_by)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
RETURNING id`,
		record.TransferID, record.ProductID, record.FromWarehouseID, record.ToWarehouseID,
		record.Quantity, record.UnitCost, record.BatchNumber, record.ExpiryDate,
		string(record.Status), record.ShippedAt, record.ExpectedArrival, record.CreatedBy).Scan(&id)
	return id, err
}

func (s *pgTxStore) CloseTransits(ctx context.Context, transferID int64, status TransitStatus) error {
	_, err := s.tx.Exec(ctx, `UPDATE inventory_transits SET status=$2 WHERE transfer_id=$1 AND status='in_transit'`,
		transferID, string(status))
	return err
}

func getTransfer(ctx context.Context, q pgxscan.Querier, id int64, forUpdate bool) (Transfer, error) {
	query := `SELECT ` + transferColumns + ` FROM stock_transfers WHERE id=$1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	var t Transfer
	if err := pgxscan.Get(ctx, q, &t, query, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Transfer{}, shared.ErrNotFound
		}
		return Transfer{}, fmt.Errorf("transfer: get: %w", err)
	}
	return t, nil
}

func itemsForTransfer(ctx context.Context, q pgxscan.Querier, transferID int64) ([]TransferItem, error) {
	var items []TransferItem
	err := pgxscan.Select(ctx, q, &items, `SELECT `+itemColumns+` FROM stock_transfer_items WHERE transfer_id=$1 ORDER BY id`, transferID)
	if err != nil {
		return nil, fmt.Errorf("transfer: list items: %w", err)
	}
	return items, nil
}

func nullInt(value int64) any {
	if value == 0 {
		return nil
	}
	return value
}
