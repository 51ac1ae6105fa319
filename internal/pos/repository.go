package pos

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian-erp/internal/ledger"
	"github.com/meridian-erp/meridian-erp/internal/platform/db"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Repository persists sales in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx executes the callback inside a repeatable-read transaction sharing a
// ledger store.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxStore) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &pgTxStore{tx: tx, ledger: ledger.NewPgStore(tx)})
	})
}

const saleColumns = `id, COALESCE(client_uuid::text, '') AS client_uuid, number,
COALESCE(branch_id, 0) AS branch_id, warehouse_id,
COALESCE(session_id, 0) AS session_id, cashier_id, channel, status,
subtotal, discount_percent, discount_amount, tax_amount, total,
payment_method, paid_amount, change_amount, created_at, updated_at`

// FindByClientUUID fetches the sale owning an idempotency key.
func (r *Repository) FindByClientUUID(ctx context.Context, clientUUID string) (Sale, error) {
	var sale Sale
	err := pgxscan.Get(ctx, r.pool, &sale, `SELECT `+saleColumns+` FROM sales WHERE client_uuid=$1`, clientUUID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Sale{}, shared.ErrNotFound
		}
		return Sale{}, fmt.Errorf("pos: find by client uuid: %w", err)
	}
	return sale, nil
}

// GetSale fetches one sale.
func (r *Repository) GetSale(ctx context.Context, id int64) (Sale, error) {
	var sale Sale
	err := pgxscan.Get(ctx, r.pool, &sale, `SELECT `+saleColumns+` FROM sales WHERE id=$1`, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Sale{}, shared.ErrNotFound
		}
		return Sale{}, fmt.Errorf("pos: get sale: %w", err)
	}
	return sale, nil
}

// LinesForSale fetches the lines of a sale.
func (r *Repository) LinesForSale(ctx context.Context, saleID int64) ([]SaleLine, error) {
	var lines []SaleLine
	err := pgxscan.Select(ctx, r.pool, &lines, `SELECT id, sale_id, product_id, qty, unit_price, unit_cost, discount_percent, line_total
FROM sale_items WHERE sale_id=$1 ORDER BY id`, saleID)
	if err != nil {
		return nil, fmt.Errorf("pos: list lines: %w", err)
	}
	return lines, nil
}

// List returns sales matching the filter, newest first.
func (r *Repository) List(ctx context.Context, filter Filter) ([]Sale, error) {
	builder := psql.Select(saleColumns).From("sales")
	if filter.WarehouseID != 0 {
		builder = builder.Where(sq.Eq{"warehouse_id": filter.WarehouseID})
	}
	if filter.CashierID != 0 {
		builder = builder.Where(sq.Eq{"cashier_id": filter.CashierID})
	}
	if filter.Status != "" {
		builder = builder.Where(sq.Eq{"status": string(filter.Status)})
	}
	if !filter.From.IsZero() {
		builder = builder.Where(sq.GtOrEq{"created_at": filter.From})
	}
	if !filter.To.IsZero() {
		builder = builder.Where(sq.LtOrEq{"created_at": filter.To})
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	builder = builder.OrderBy("created_at DESC").Limit(uint64(limit)).Offset(uint64(filter.Offset))

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("pos: build list query: %w", err)
	}
	var sales []Sale
	if err := pgxscan.Select(ctx, r.pool, &sales, query, args...); err != nil {
		return nil, fmt.Errorf("pos: list: %w", err)
	}
	return sales, nil
}

type pgTxStore struct {
	tx     pgx.Tx
	ledger *ledger.PgStore
}

func (s *pgTxStore) Ledger() ledger.Store {
	return s.ledger
}

func (s *pgTxStore) InsertSale(ctx context.Context, sale Sale) (int64, error) {
	var id int64
	err := s.tx.QueryRow(ctx, `INSERT INTO sales
(client_uuid, number, branch_id, warehouse_id, session_id, cashier_id, channel, status,
 subtotal, discount_percent, discount_amount, tax_amount, total,
 payment_method, paid_amount, change_amount, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$17)
RETURNING id`,
		nullStr(sale.ClientUUID), sale.Number, nullInt(sale.BranchID), sale.WarehouseID, nullInt(sale.SessionID),
		sale.CashierID, string(sale.Channel), string(sale.Status),
		sale.Subtotal, sale.DiscountPercent, sale.DiscountAmount, sale.TaxAmount, sale.Total,
		sale.PaymentMethod, sale.PaidAmount, sale.ChangeAmount, sale.CreatedAt).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return 0, ErrDuplicateSale
		}
		return 0, fmt.Errorf("pos: insert sale: %w", err)
	}
	return id, nil
}

func (s *pgTxStore) InsertLines(ctx context.Context, saleID int64, lines []SaleLine) error {
	for _, line := range lines {
		_, err := s.tx.Exec(ctx, `INSERT INTO sale_items (sale_id, product_id, qty, unit_price, unit_cost, discount_percent, line_total)
VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			saleID, line.ProductID, line.Qty, line.UnitPrice, line.UnitCost, line.DiscountPercent, line.LineTotal)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *pgTxStore) GetSaleForUpdate(ctx context.Context, id int64) (Sale, error) {
	var sale Sale
	err := pgxscan.Get(ctx, s.tx, &sale, `SELECT `+saleColumns+` FROM sales WHERE id=$1 FOR UPDATE`, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Sale{}, shared.ErrNotFound
		}
		return Sale{}, fmt.Errorf("pos: get sale: %w", err)
	}
	return sale, nil
}

func (s *pgTxStore) UpdateSaleStatus(ctx context.Context, id int64, status SaleStatus) error {
	_, err := s.tx.Exec(ctx, `UPDATE sales SET status=$2, updated_at=NOW() WHERE id=$1`, id, string(status))
	return err
}

func (s *pgTxStore) LinesForSale(ctx context.Context, saleID int64) ([]SaleLine, error) {
	var lines []SaleLine
	err := pgxscan.Select(ctx, s.tx, &lines, `SELECT id, sale_id, product_id, qty, unit_price, unit_cost, discount_percent, line_total
FROM sale_items WHERE sale_id=$1 ORDER BY id`, saleID)
	if err != nil {
		return nil, fmt.Errorf("pos: list lines: %w", err)
	}
	return lines, nil
}

func nullInt(value int64) any {
	if value == 0 {
		return nil
	}
	return value
}

func nullStr(value string) any {
	if value == "" {
		return nil
	}
	return value
}
