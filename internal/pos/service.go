package pos

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/ledger"
	"github.com/meridian-erp/meridian-erp/internal/masterdata"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// ErrDuplicateSale is returned by stores when the client UUID is already
// taken. The service resolves it by fetching the winner.
var ErrDuplicateSale = errors.New("pos: duplicate client uuid")

// Config carries checkout policy toggles.
type Config struct {
	// AllowNegativeStock permits selling below the ledger balance. Off by
	// default; some branches deliberately oversell fast-moving goods.
	AllowNegativeStock bool
	// RequireSession rejects checkouts without an open POS session.
	RequireSession bool
}

// TxStore exposes transactional operations used by checkout. Sale header,
// lines and ledger movements share one transaction.
type TxStore interface {
	InsertSale(ctx context.Context, sale Sale) (int64, error)
	InsertLines(ctx context.Context, saleID int64, lines []SaleLine) error
	GetSaleForUpdate(ctx context.Context, id int64) (Sale, error)
	UpdateSaleStatus(ctx context.Context, id int64, status SaleStatus) error
	LinesForSale(ctx context.Context, saleID int64) ([]SaleLine, error)
	Ledger() ledger.Store
}

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxStore) error) error
	FindByClientUUID(ctx context.Context, clientUUID string) (Sale, error)
	GetSale(ctx context.Context, id int64) (Sale, error)
	LinesForSale(ctx context.Context, saleID int64) ([]SaleLine, error)
	List(ctx context.Context, filter Filter) ([]Sale, error)
}

// MasterDataPort resolves product reference data.
type MasterDataPort interface {
	GetProducts(ctx context.Context, ids []int64) (map[int64]masterdata.Product, error)
	GetWarehouse(ctx context.Context, id int64) (masterdata.Warehouse, error)
}

// Detail bundles a sale with its lines.
type Detail struct {
	Sale  Sale
	Lines []SaleLine
}

// Service executes checkouts.
type Service struct {
	repo   RepositoryPort
	master MasterDataPort
	locks  *shared.KeyLocker
	audit  shared.AuditPort
	cfg    Config
}

// NewService builds Service.
func NewService(repo RepositoryPort, master MasterDataPort, locks *shared.KeyLocker, audit shared.AuditPort, cfg Config) *Service {
	return &Service{repo: repo, master: master, locks: locks, audit: audit, cfg: cfg}
}

// Checkout settles a basket. Replays with a known client UUID return the
// original sale without touching stock again; the unique index on client_uuid
// decides races between concurrent replays.
func (s *Service) Checkout(ctx context.Context, identity shared.Identity, in CheckoutInput) (Detail, error) {
	if err := in.Validate(); err != nil {
		return Detail{}, err
	}

	// Fast path before any policy or pricing check: a replay of a settled
	// sale returns it unchanged even if the catalog or the cashier's
	// allowance moved since the original commit.
	if in.ClientUUID != "" {
		if existing, err := s.repo.FindByClientUUID(ctx, in.ClientUUID); err == nil {
			return s.detail(ctx, existing)
		} else if !errors.Is(err, shared.ErrNotFound) {
			return Detail{}, err
		}
	}

	channel := in.channel()
	if s.cfg.RequireSession && channel == ChannelPOS && in.SessionID == 0 {
		return Detail{}, &shared.PolicyViolationError{Policy: "pos_session", Detail: "an open POS session is required"}
	}
	if in.DiscountPercent.GreaterThan(identity.MaxDiscountPercent) {
		return Detail{}, &shared.PolicyViolationError{
			Policy: "max_discount",
			Detail: fmt.Sprintf("discount %s%% exceeds cashier limit %s%%", in.DiscountPercent, identity.MaxDiscountPercent),
		}
	}
	for _, line := range in.Lines {
		if line.DiscountPercent.GreaterThan(identity.MaxDiscountPercent) {
			return Detail{}, &shared.PolicyViolationError{
				Policy: "max_discount",
				Detail: fmt.Sprintf("line discount %s%% on product %d exceeds cashier limit %s%%", line.DiscountPercent, line.ProductID, identity.MaxDiscountPercent),
			}
		}
	}

	warehouse, err := s.master.GetWarehouse(ctx, in.WarehouseID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return Detail{}, shared.NewValidationError("warehouse_id", "unknown warehouse")
		}
		return Detail{}, err
	}
	if !warehouse.IsActive {
		return Detail{}, &shared.IntegrityError{Reason: fmt.Sprintf("warehouse %d is inactive", in.WarehouseID)}
	}

	productIDs := make([]int64, 0, len(in.Lines))
	for _, line := range in.Lines {
		productIDs = append(productIDs, line.ProductID)
	}
	products, err := s.master.GetProducts(ctx, productIDs)
	if err != nil {
		return Detail{}, err
	}
	lines, subtotal, err := buildLines(in.Lines, products)
	if err != nil {
		return Detail{}, err
	}

	discountAmount := subtotal.Mul(in.DiscountPercent).Div(decimal.NewFromInt(100)).Round(2)
	total := subtotal.Sub(discountAmount).Add(in.TaxAmount)
	if in.PaidAmount.LessThan(total) {
		return Detail{}, shared.NewValidationError("paid_amount", "insufficient payment")
	}

	sale := Sale{
		ClientUUID:      in.ClientUUID,
		Number:          saleNumber(),
		BranchID:        identity.BranchID,
		WarehouseID:     in.WarehouseID,
		SessionID:       in.SessionID,
		CashierID:       identity.UserID,
		Channel:         channel,
		Status:          SaleCompleted,
		Subtotal:        subtotal,
		DiscountPercent: in.DiscountPercent,
		DiscountAmount:  discountAmount,
		TaxAmount:       in.TaxAmount,
		Total:           total,
		PaymentMethod:   in.PaymentMethod,
		PaidAmount:      in.PaidAmount,
		ChangeAmount:    in.PaidAmount.Sub(total),
		CreatedAt:       time.Now().UTC(),
	}

	release := s.locks.LockMany(lineLockKeys(lines, in.WarehouseID))
	err = s.repo.WithTx(ctx, func(ctx context.Context, store TxStore) error {
		for _, line := range lines {
			if err := store.Ledger().LockStock(ctx, line.ProductID, in.WarehouseID); err != nil {
				return fmt.Errorf("pos: lock stock: %w", err)
			}
			if err := ledger.EnsureAvailable(ctx, store.Ledger(), line.ProductID, in.WarehouseID, line.Qty, s.cfg.AllowNegativeStock); err != nil {
				return err
			}
		}

		id, err := store.InsertSale(ctx, sale)
		if err != nil {
			return err
		}
		sale.ID = id
		if err := store.InsertLines(ctx, id, lines); err != nil {
			return fmt.Errorf("pos: insert lines: %w", err)
		}
		for _, line := range lines {
			if _, err := ledger.Append(ctx, store.Ledger(), ledger.MovementInput{
				ProductID:   line.ProductID,
				WarehouseID: in.WarehouseID,
				BranchID:    identity.BranchID,
				Direction:   ledger.DirectionOut,
				Qty:         line.Qty,
				UnitCost:    line.UnitCost,
				Type:        ledger.MovementSale,
				Reference:   "POS Sale: " + sale.Number,
				ActorID:     identity.UserID,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	release()
	if err != nil {
		// Slow path: a concurrent replay won the insert race. The unique
		// index aborted our transaction, so fetch outside of it.
		if errors.Is(err, ErrDuplicateSale) && in.ClientUUID != "" {
			existing, fetchErr := s.repo.FindByClientUUID(ctx, in.ClientUUID)
			if fetchErr != nil {
				return Detail{}, &shared.ConcurrencyConflictError{Key: in.ClientUUID, Cause: fetchErr}
			}
			return s.detail(ctx, existing)
		}
		return Detail{}, err
	}

	s.recordAudit(ctx, identity.UserID, "pos:checkout", sale)
	return Detail{Sale: sale, Lines: lines}, nil
}

// Refund reverses a completed sale: every line returns to stock at its
// original cost via return_in movements.
func (s *Service) Refund(ctx context.Context, identity shared.Identity, saleID int64) (Sale, error) {
	sale, err := s.repo.GetSale(ctx, saleID)
	if err != nil {
		return Sale{}, err
	}
	lines, err := s.repo.LinesForSale(ctx, saleID)
	if err != nil {
		return Sale{}, err
	}

	release := s.locks.LockMany(lineLockKeys(lines, sale.WarehouseID))
	defer release()

	err = s.repo.WithTx(ctx, func(ctx context.Context, store TxStore) error {
		current, err := store.GetSaleForUpdate(ctx, saleID)
		if err != nil {
			return err
		}
		if current.Status != SaleCompleted {
			return &shared.InvalidStateTransitionError{Entity: "sale " + current.Number, Current: string(current.Status), Attempted: "refund"}
		}
		for _, line := range lines {
			if err := store.Ledger().LockStock(ctx, line.ProductID, current.WarehouseID); err != nil {
				return fmt.Errorf("pos: lock stock: %w", err)
			}
			if _, err := ledger.Append(ctx, store.Ledger(), ledger.MovementInput{
				ProductID:   line.ProductID,
				WarehouseID: current.WarehouseID,
				BranchID:    current.BranchID,
				Direction:   ledger.DirectionIn,
				Qty:         line.Qty,
				UnitCost:    line.UnitCost,
				Type:        ledger.MovementReturnIn,
				Reference:   "POS Refund: " + current.Number,
				ActorID:     identity.UserID,
			}); err != nil {
				return err
			}
		}
		if err := store.UpdateSaleStatus(ctx, saleID, SaleRefunded); err != nil {
			return fmt.Errorf("pos: update sale: %w", err)
		}
		sale = current
		sale.Status = SaleRefunded
		return nil
	})
	if err != nil {
		return Sale{}, err
	}

	s.recordAudit(ctx, identity.UserID, "pos:refund", sale)
	return sale, nil
}

// Get assembles the sale detail.
func (s *Service) Get(ctx context.Context, saleID int64) (Detail, error) {
	sale, err := s.repo.GetSale(ctx, saleID)
	if err != nil {
		return Detail{}, err
	}
	return s.detail(ctx, sale)
}

// List returns sales matching the filter.
func (s *Service) List(ctx context.Context, filter Filter) ([]Sale, error) {
	return s.repo.List(ctx, filter)
}

func (s *Service) detail(ctx context.Context, sale Sale) (Detail, error) {
	lines, err := s.repo.LinesForSale(ctx, sale.ID)
	if err != nil {
		return Detail{}, err
	}
	return Detail{Sale: sale, Lines: lines}, nil
}

// buildLines verifies each submitted price against the catalog and prices the
// lines, folding per-line discounts into the line total. A terminal sending a
// stale or tampered price is rejected outright rather than silently corrected.
func buildLines(input []CheckoutLine, products map[int64]masterdata.Product) ([]SaleLine, decimal.Decimal, error) {
	lines := make([]SaleLine, 0, len(input))
	subtotal := decimal.Zero
	for _, line := range input {
		product, ok := products[line.ProductID]
		if !ok {
			return nil, decimal.Zero, shared.NewValidationError("lines.product_id", fmt.Sprintf("unknown product %d", line.ProductID))
		}
		if !product.IsActive {
			return nil, decimal.Zero, &shared.IntegrityError{Reason: fmt.Sprintf("product %d is inactive", line.ProductID)}
		}
		if !line.UnitPrice.Equal(product.Price) {
			return nil, decimal.Zero, &shared.PolicyViolationError{
				Policy: "price_integrity",
				Detail: fmt.Sprintf("product %d priced %s, catalog says %s", line.ProductID, line.UnitPrice, product.Price),
			}
		}
		lineTotal := line.UnitPrice.Mul(line.Qty)
		if line.DiscountPercent.IsPositive() {
			lineTotal = lineTotal.Sub(lineTotal.Mul(line.DiscountPercent).Div(decimal.NewFromInt(100)).Round(2))
		}
		lines = append(lines, SaleLine{
			ProductID:       line.ProductID,
			Qty:             line.Qty,
			UnitPrice:       line.UnitPrice,
			UnitCost:        product.Cost,
			DiscountPercent: line.DiscountPercent,
			LineTotal:       lineTotal,
		})
		subtotal = subtotal.Add(lineTotal)
	}
	return lines, subtotal, nil
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, sale Sale) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "pos_sale",
		EntityID: sale.Number,
		Meta: map[string]any{
			"sale_id":      sale.ID,
			"warehouse_id": sale.WarehouseID,
			"total":        sale.Total.String(),
		},
	})
}

func lineLockKeys(lines []SaleLine, warehouseID int64) []string {
	keys := make([]string, 0, len(lines))
	for _, line := range lines {
		keys = append(keys, shared.StockLockKey(line.ProductID, warehouseID))
	}
	return keys
}

func saleNumber() string {
	return fmt.Sprintf("POS-%d", time.Now().UnixNano())
}
