package costing

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// costScale is the internal precision for unit costs. Presentation rounding
// happens only at the boundary.
const costScale = 6

// CostBatch tracks the cumulative quantity and running weighted-average unit
// cost for a (product, warehouse, batch number) key. It is mutated only by
// receipt events, never decremented by consumption.
type CostBatch struct {
	ID          int64
	ProductID   int64
	WarehouseID int64
	BranchID    int64
	BatchNumber string
	Quantity    decimal.Decimal
	UnitCost    decimal.Decimal
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ReceiptInput describes a batch receipt.
type ReceiptInput struct {
	ProductID   int64
	WarehouseID int64
	BranchID    int64
	Quantity    decimal.Decimal
	UnitCost    decimal.Decimal
	BatchNumber string
	ActorID     int64
}

// Validate rejects invalid input before any mutation.
func (in ReceiptInput) Validate() error {
	if in.ProductID == 0 {
		return shared.NewValidationError("product_id", "required")
	}
	if in.WarehouseID == 0 {
		return shared.NewValidationError("warehouse_id", "required")
	}
	if in.BatchNumber == "" {
		return shared.NewValidationError("batch_number", "required")
	}
	if !in.Quantity.IsPositive() {
		return shared.NewValidationError("quantity", "must be positive")
	}
	if in.UnitCost.IsNegative() {
		return &shared.IntegrityError{Reason: "batch unit cost must not be negative"}
	}
	return nil
}

// weightedAverage folds an incoming receipt into the running average. This is
// the quantity-weighted formula, not a pairwise mean of the two costs.
func weightedAverage(oldQty, oldCost, incomingQty, incomingCost decimal.Decimal) (decimal.Decimal, decimal.Decimal) {
	newQty := oldQty.Add(incomingQty)
	totalValue := oldQty.Mul(oldCost).Add(incomingQty.Mul(incomingCost))
	return newQty, totalValue.DivRound(newQty, costScale)
}
