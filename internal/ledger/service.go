package ledger

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, Store) error) error
	CurrentBalance(ctx context.Context, productID int64, warehouseID *int64) (decimal.Decimal, error)
	BulkBalance(ctx context.Context, productIDs []int64, warehouseID *int64) (map[int64]decimal.Decimal, error)
	StockValue(ctx context.Context, productID int64, warehouseID *int64) (decimal.Decimal, error)
	ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error)
	GetMovement(ctx context.Context, id int64) (Movement, error)
}

// Service coordinates ledger operations.
type Service struct {
	repo  RepositoryPort
	locks *shared.KeyLocker
	audit shared.AuditPort
}

// NewService builds Service.
func NewService(repo RepositoryPort, locks *shared.KeyLocker, audit shared.AuditPort) *Service {
	return &Service{repo: repo, locks: locks, audit: audit}
}

// Record appends one movement in its own transaction. Used by the standalone
// adjustment and receipt paths; transfer and checkout bind Append to their own
// transactions instead.
func (s *Service) Record(ctx context.Context, in MovementInput) (Movement, error) {
	if err := in.Validate(); err != nil {
		return Movement{}, err
	}

	release := s.locks.Lock(shared.StockLockKey(in.ProductID, in.WarehouseID))
	defer release()

	var movement Movement
	err := s.repo.WithTx(ctx, func(ctx context.Context, store Store) error {
		if err := store.LockStock(ctx, in.ProductID, in.WarehouseID); err != nil {
			return fmt.Errorf("ledger: lock stock: %w", err)
		}
		var err error
		movement, err = Append(ctx, store, in)
		return err
	})
	if err != nil {
		return Movement{}, err
	}

	s.recordAudit(ctx, in.ActorID, "ledger:record", movement)
	return movement, nil
}

// Reverse appends a compensating row for a previously recorded movement. The
// original row is never touched; the ledger stays strictly append-only.
func (s *Service) Reverse(ctx context.Context, movementID int64, reason string, actorID int64) (Movement, error) {
	original, err := s.repo.GetMovement(ctx, movementID)
	if err != nil {
		return Movement{}, err
	}
	if original.ReversalOfID != 0 {
		return Movement{}, &shared.IntegrityError{Reason: "cannot reverse a reversal row"}
	}

	direction := DirectionIn
	if original.Direction == DirectionIn {
		direction = DirectionOut
	}
	in := MovementInput{
		ProductID:    original.ProductID,
		WarehouseID:  original.WarehouseID,
		BranchID:     original.BranchID,
		Direction:    direction,
		Qty:          original.Qty,
		UnitCost:     original.UnitCost,
		Type:         MovementAdjustment,
		Reference:    reason,
		ReversalOfID: original.ID,
		ActorID:      actorID,
	}

	release := s.locks.Lock(shared.StockLockKey(in.ProductID, in.WarehouseID))
	defer release()

	var movement Movement
	err = s.repo.WithTx(ctx, func(ctx context.Context, store Store) error {
		if err := store.LockStock(ctx, in.ProductID, in.WarehouseID); err != nil {
			return fmt.Errorf("ledger: lock stock: %w", err)
		}
		var err error
		movement, err = Append(ctx, store, in)
		return err
	})
	if err != nil {
		return Movement{}, err
	}

	s.recordAudit(ctx, actorID, "ledger:reverse", movement)
	return movement, nil
}

// CurrentBalance derives the on-hand quantity from the ledger at call time.
func (s *Service) CurrentBalance(ctx context.Context, productID int64, warehouseID *int64) (decimal.Decimal, error) {
	if productID == 0 {
		return decimal.Zero, shared.NewValidationError("product_id", "required")
	}
	return s.repo.CurrentBalance(ctx, productID, warehouseID)
}

// BulkBalance is the batched balance form used by listing and reporting paths.
func (s *Service) BulkBalance(ctx context.Context, productIDs []int64, warehouseID *int64) (map[int64]decimal.Decimal, error) {
	return s.repo.BulkBalance(ctx, productIDs, warehouseID)
}

// StockValue sums the valuated amount for a product.
func (s *Service) StockValue(ctx context.Context, productID int64, warehouseID *int64) (decimal.Decimal, error) {
	if productID == 0 {
		return decimal.Zero, shared.NewValidationError("product_id", "required")
	}
	return s.repo.StockValue(ctx, productID, warehouseID)
}

// ListMovements lists ledger rows for reporting.
func (s *Service) ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	return s.repo.ListMovements(ctx, filter)
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, m Movement) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "stock_movement",
		EntityID: fmt.Sprintf("%d", m.ID),
		Meta: map[string]any{
			"product_id":   m.ProductID,
			"warehouse_id": m.WarehouseID,
			"direction":    string(m.Direction),
			"qty":          m.Qty.String(),
			"type":         string(m.Type),
		},
	})
}
