package costing

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// ErrBatchNotFound indicates a missing cost batch row.
var ErrBatchNotFound = errors.New("costing: batch not found")

// Store is the transactional surface for batch mutation.
type Store interface {
	GetBatchForUpdate(ctx context.Context, productID, warehouseID int64, batchNumber string) (CostBatch, error)
	InsertBatch(ctx context.Context, batch CostBatch) (int64, error)
	UpdateBatch(ctx context.Context, batch CostBatch) error
}

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, Store) error) error
	GetBatch(ctx context.Context, productID, warehouseID int64, batchNumber string) (CostBatch, error)
	AverageUnitCost(ctx context.Context, productID, warehouseID int64) (decimal.Decimal, error)
}

// Service computes moving weighted-average costs per batch.
type Service struct {
	repo  RepositoryPort
	locks *shared.KeyLocker
}

// NewService builds Service.
func NewService(repo RepositoryPort, locks *shared.KeyLocker) *Service {
	return &Service{repo: repo, locks: locks}
}

// AddToBatch creates the batch on first receipt, otherwise recomputes the
// running weighted average under a key-scoped lock.
func (s *Service) AddToBatch(ctx context.Context, in ReceiptInput) (CostBatch, error) {
	if err := in.Validate(); err != nil {
		return CostBatch{}, err
	}

	release := s.locks.Lock(shared.BatchLockKey(in.ProductID, in.WarehouseID, in.BatchNumber))
	defer release()

	var result CostBatch
	err := s.repo.WithTx(ctx, func(ctx context.Context, store Store) error {
		batch, err := store.GetBatchForUpdate(ctx, in.ProductID, in.WarehouseID, in.BatchNumber)
		if errors.Is(err, ErrBatchNotFound) {
			batch = CostBatch{
				ProductID:   in.ProductID,
				WarehouseID: in.WarehouseID,
				BranchID:    in.BranchID,
				BatchNumber: in.BatchNumber,
				Quantity:    in.Quantity,
				UnitCost:    in.UnitCost.Round(costScale),
			}
			id, err := store.InsertBatch(ctx, batch)
			if err != nil {
				return fmt.Errorf("costing: insert batch: %w", err)
			}
			batch.ID = id
			result = batch
			return nil
		}
		if err != nil {
			return fmt.Errorf("costing: get batch: %w", err)
		}

		batch.Quantity, batch.UnitCost = weightedAverage(batch.Quantity, batch.UnitCost, in.Quantity, in.UnitCost)
		if err := store.UpdateBatch(ctx, batch); err != nil {
			return fmt.Errorf("costing: update batch: %w", err)
		}
		result = batch
		return nil
	})
	if err != nil {
		return CostBatch{}, err
	}
	return result, nil
}

// GetBatch fetches a batch by key.
func (s *Service) GetBatch(ctx context.Context, productID, warehouseID int64, batchNumber string) (CostBatch, error) {
	return s.repo.GetBatch(ctx, productID, warehouseID, batchNumber)
}

// AverageUnitCost returns the quantity-weighted average cost across every
// batch of the key, used as the ledger's unit cost for consumption movements.
func (s *Service) AverageUnitCost(ctx context.Context, productID, warehouseID int64) (decimal.Decimal, error) {
	if productID == 0 || warehouseID == 0 {
		return decimal.Zero, shared.NewValidationError("product_id", "product and warehouse required")
	}
	return s.repo.AverageUnitCost(ctx, productID, warehouseID)
}
