package transfer

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Status enumerates the transfer workflow states.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusInTransit Status = "in_transit"
	StatusReceived  Status = "received"
	StatusCompleted Status = "completed"
	StatusRejected  Status = "rejected"
	StatusCancelled Status = "cancelled"
)

// Valid reports whether the status is one of the closed set.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusPending, StatusApproved, StatusInTransit,
		StatusReceived, StatusCompleted, StatusRejected, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transition is permitted.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusRejected
}

// CanTransitionTo encodes the workflow state machine. Cancellation is
// reachable from any non-terminal state; rejection only from pending.
func (s Status) CanTransitionTo(next Status) bool {
	if next == StatusCancelled {
		return !s.Terminal()
	}
	switch s {
	case StatusDraft:
		return next == StatusPending
	case StatusPending:
		return next == StatusApproved || next == StatusRejected
	case StatusApproved:
		return next == StatusInTransit
	case StatusInTransit:
		return next == StatusReceived
	case StatusReceived:
		return next == StatusCompleted
	case StatusCompleted, StatusRejected, StatusCancelled:
		return false
	}
	return false
}

// Priority enumerates transfer urgency levels.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Valid reports whether the priority is one of the closed set.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Type distinguishes transfers between warehouses of one branch from
// transfers crossing branches.
type Type string

const (
	TypeInterWarehouse Type = "inter_warehouse"
	TypeInterBranch    Type = "inter_branch"
)

// Transfer is the workflow header. It is never hard-deleted.
type Transfer struct {
	ID               int64
	Number           string
	FromWarehouseID  int64
	ToWarehouseID    int64
	FromBranchID     int64
	ToBranchID       int64
	Type             Type
	Status           Status
	Priority         Priority
	TransferDate     time.Time
	ExpectedDelivery *time.Time
	ActualDelivery   *time.Time
	Reason           string
	Notes            string

	TrackingNumber string
	CourierName    string
	VehicleNumber  string
	DriverName     string
	DriverPhone    string

	ShippingCost  decimal.Decimal
	InsuranceCost decimal.Decimal
	TotalCost     decimal.Decimal
	Currency      string

	TotalQtyRequested decimal.Decimal
	TotalQtyShipped   decimal.Decimal
	TotalQtyReceived  decimal.Decimal
	TotalQtyDamaged   decimal.Decimal

	RequestedBy int64
	ApprovedBy  int64
	ApprovedAt  *time.Time
	ShippedBy   int64
	ShippedAt   *time.Time
	ReceivedBy  int64
	ReceivedAt  *time.Time
	CreatedBy   int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TransferItem is one product line of a transfer.
type TransferItem struct {
	ID                   int64
	TransferID           int64
	ProductID            int64
	QtyRequested         decimal.Decimal
	QtyApproved          decimal.Decimal
	QtyShipped           decimal.Decimal
	QtyReceived          decimal.Decimal
	QtyDamaged           decimal.Decimal
	BatchNumber          string
	ExpiryDate           *time.Time
	UnitCost             decimal.Decimal
	ConditionOnShipping  string
	ConditionOnReceiving string
	DamageReport         string
	Notes                string
}

// FullyReceived reports whether the shipped quantity was fully accounted for.
func (i TransferItem) FullyReceived() bool {
	return i.QtyReceived.GreaterThanOrEqual(i.QtyShipped)
}

// TransitStatus enumerates states of stock physically on the road.
type TransitStatus string

const (
	TransitInTransit TransitStatus = "in_transit"
	TransitReceived  TransitStatus = "received"
	TransitCancelled TransitStatus = "cancelled"
)

// TransitRecord represents quantity in motion between ship and receive. One
// row exists per (product, transfer) while in transit.
type TransitRecord struct {
	ID              int64
	TransferID      int64
	ProductID       int64
	FromWarehouseID int64
	ToWarehouseID   int64
	Quantity        decimal.Decimal
	UnitCost        decimal.Decimal
	BatchNumber     string
	ExpiryDate      *time.Time
	Status          TransitStatus
	ShippedAt       time.Time
	ExpectedArrival *time.Time
	CreatedBy       int64
}

// HistoryEntry records one status change for audit.
type HistoryEntry struct {
	ID         int64
	TransferID int64
	FromStatus Status
	ToStatus   Status
	Notes      string
	ChangedBy  int64
	ChangedAt  time.Time
}

// CreateItemInput is one requested line.
type CreateItemInput struct {
	ProductID   int64
	Qty         decimal.Decimal
	BatchNumber string
	ExpiryDate  *time.Time
	UnitCost    decimal.Decimal
	Condition   string
	Notes       string
}

// CreateInput describes a transfer request.
type CreateInput struct {
	FromWarehouseID  int64
	ToWarehouseID    int64
	FromBranchID     int64
	ToBranchID       int64
	TransferDate     time.Time
	ExpectedDelivery *time.Time
	Priority         Priority
	Reason           string
	Notes            string
	ShippingCost     decimal.Decimal
	InsuranceCost    decimal.Decimal
	Currency         string
	Items            []CreateItemInput
}

// Validate rejects malformed input before any side effect. The self-transfer
// check is an integrity rule, not a field validation.
func (in CreateInput) Validate() error {
	if in.FromWarehouseID == 0 {
		return shared.NewValidationError("from_warehouse_id", "required")
	}
	if in.ToWarehouseID == 0 {
		return shared.NewValidationError("to_warehouse_id", "required")
	}
	if in.FromWarehouseID == in.ToWarehouseID {
		return &shared.IntegrityError{Reason: "cannot transfer to the same warehouse"}
	}
	if len(in.Items) == 0 {
		return shared.NewValidationError("items", "at least one item required")
	}
	if in.Priority != "" && !in.Priority.Valid() {
		return shared.NewValidationError("priority", "unknown priority")
	}
	if in.ShippingCost.IsNegative() || in.InsuranceCost.IsNegative() {
		return shared.NewValidationError("shipping_cost", "costs must not be negative")
	}
	for _, item := range in.Items {
		if item.ProductID == 0 {
			return shared.NewValidationError("items.product_id", "required")
		}
		if !item.Qty.IsPositive() {
			return shared.NewValidationError("items.qty", "must be positive")
		}
		if item.UnitCost.IsNegative() {
			return shared.NewValidationError("items.unit_cost", "must not be negative")
		}
	}
	return nil
}

// transferType derives inter-branch vs inter-warehouse from the input.
func (in CreateInput) transferType() Type {
	if in.FromBranchID != 0 && in.ToBranchID != 0 && in.FromBranchID != in.ToBranchID {
		return TypeInterBranch
	}
	return TypeInterWarehouse
}

// ShipItemInput overrides the shipped quantity for one item.
type ShipItemInput struct {
	QtyShipped decimal.Decimal
}

// ShipInput carries dispatch data. Items is keyed by transfer item id;
// omitted items ship their approved quantity.
type ShipInput struct {
	TrackingNumber   string
	CourierName      string
	VehicleNumber    string
	DriverName       string
	DriverPhone      string
	ExpectedDelivery *time.Time
	Items            map[int64]ShipItemInput
}

// ReceiveItemInput records the received split for one item.
type ReceiveItemInput struct {
	QtyReceived  decimal.Decimal
	QtyDamaged   decimal.Decimal
	Condition    string
	DamageReport string
}

// ReceiveInput carries receiving data. Items is keyed by transfer item id;
// omitted items receive their shipped quantity undamaged.
type ReceiveInput struct {
	ActualDelivery *time.Time
	Items          map[int64]ReceiveItemInput
}

// Filter narrows transfer listings.
type Filter struct {
	WarehouseID int64
	Status      Status
	Priority    Priority
	From        time.Time
	To          time.Time
	Limit       int
	Offset      int
}

// Statistics aggregates transfer counts for a warehouse and period.
type Statistics struct {
	Total         int64
	Pending       int64
	Approved      int64
	InTransit     int64
	Completed     int64
	Cancelled     int64
	TotalReceived decimal.Decimal
	TotalCost     decimal.Decimal
}
