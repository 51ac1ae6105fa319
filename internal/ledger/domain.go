package ledger

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Direction enumerates the two sides of a stock movement.
type Direction string

const (
	// DirectionIn increases on-hand quantity.
	DirectionIn Direction = "in"
	// DirectionOut decreases on-hand quantity.
	DirectionOut Direction = "out"
)

// Valid reports whether the direction is one of the closed set.
func (d Direction) Valid() bool {
	return d == DirectionIn || d == DirectionOut
}

// MovementType enumerates supported movement causes.
type MovementType string

const (
	MovementPurchase    MovementType = "purchase"
	MovementSale        MovementType = "sale"
	MovementTransferIn  MovementType = "transfer_in"
	MovementTransferOut MovementType = "transfer_out"
	MovementAdjustment  MovementType = "adjustment"
	MovementOpening     MovementType = "opening"
	MovementReturnIn    MovementType = "return_in"
	MovementReturnOut   MovementType = "return_out"
)

// Valid reports whether the movement type is one of the closed set.
func (t MovementType) Valid() bool {
	switch t {
	case MovementPurchase, MovementSale, MovementTransferIn, MovementTransferOut,
		MovementAdjustment, MovementOpening, MovementReturnIn, MovementReturnOut:
		return true
	}
	return false
}

// Movement is one immutable ledger row. Corrections never update a row in
// place; they append a compensating row referencing the original.
type Movement struct {
	ID             int64
	ProductID      int64
	WarehouseID    int64
	BranchID       int64
	Direction      Direction
	Qty            decimal.Decimal
	SignedQty      decimal.Decimal
	UnitCost       decimal.Decimal
	ValuatedAmount decimal.Decimal
	Type           MovementType
	Reference      string
	ReversalOfID   int64
	CreatedBy      int64
	CreatedAt      time.Time
}

// MovementInput describes a movement to append.
type MovementInput struct {
	ProductID    int64
	WarehouseID  int64
	BranchID     int64
	Direction    Direction
	Qty          decimal.Decimal
	UnitCost     decimal.Decimal
	Type         MovementType
	Reference    string
	ReversalOfID int64
	ActorID      int64
}

// Validate rejects malformed input before any side effect.
func (in MovementInput) Validate() error {
	if in.ProductID == 0 {
		return shared.NewValidationError("product_id", "required")
	}
	if in.WarehouseID == 0 {
		return shared.NewValidationError("warehouse_id", "required")
	}
	if !in.Direction.Valid() {
		return shared.NewValidationError("direction", "must be in or out")
	}
	if !in.Qty.IsPositive() {
		return shared.NewValidationError("qty", "must be positive")
	}
	if in.UnitCost.IsNegative() {
		return shared.NewValidationError("unit_cost", "must not be negative")
	}
	if !in.Type.Valid() {
		return shared.NewValidationError("movement_type", "unknown type")
	}
	return nil
}

// MovementFilter filters ledger listings.
type MovementFilter struct {
	ProductID   int64
	WarehouseID int64
	Types       []MovementType
	From        time.Time
	To          time.Time
	Limit       int
	Offset      int
}
