// Package pos implements point-of-sale checkout against the stock ledger.
// Checkout is idempotent on a client-generated UUID so a flaky connection can
// safely retry without selling the same basket twice.
package pos

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// SaleStatus enumerates the sale lifecycle.
type SaleStatus string

const (
	SaleCompleted SaleStatus = "completed"
	SaleRefunded  SaleStatus = "refunded"
)

// Channel enumerates where a sale originates. Online orders settle without an
// open register session.
type Channel string

const (
	ChannelPOS    Channel = "pos"
	ChannelOnline Channel = "online"
)

// Valid reports whether the channel is one of the closed set.
func (c Channel) Valid() bool {
	return c == ChannelPOS || c == ChannelOnline
}

// Sale is one completed checkout.
type Sale struct {
	ID              int64
	ClientUUID      string
	Number          string
	BranchID        int64
	WarehouseID     int64
	SessionID       int64
	CashierID       int64
	Channel         Channel
	Status          SaleStatus
	Subtotal        decimal.Decimal
	DiscountPercent decimal.Decimal
	DiscountAmount  decimal.Decimal
	TaxAmount       decimal.Decimal
	Total           decimal.Decimal
	PaymentMethod   string
	PaidAmount      decimal.Decimal
	ChangeAmount    decimal.Decimal
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// SaleLine is one product position of a sale.
type SaleLine struct {
	ID              int64
	SaleID          int64
	ProductID       int64
	Qty             decimal.Decimal
	UnitPrice       decimal.Decimal
	UnitCost        decimal.Decimal
	DiscountPercent decimal.Decimal
	LineTotal       decimal.Decimal
}

// CheckoutLine is one requested basket position. DiscountPercent applies to
// this line only and is checked against the cashier's allowance.
type CheckoutLine struct {
	ProductID       int64
	Qty             decimal.Decimal
	UnitPrice       decimal.Decimal
	DiscountPercent decimal.Decimal
}

// CheckoutInput describes a checkout request. ClientUUID is generated by the
// terminal and identifies the request, not the sale: replays with the same
// UUID return the original sale. Without one every request settles a new sale.
type CheckoutInput struct {
	ClientUUID      string
	WarehouseID     int64
	SessionID       int64
	Channel         Channel
	DiscountPercent decimal.Decimal
	TaxAmount       decimal.Decimal
	PaymentMethod   string
	PaidAmount      decimal.Decimal
	Lines           []CheckoutLine
}

// channel defaults to the register channel when the terminal sends none.
func (in CheckoutInput) channel() Channel {
	if in.Channel == "" {
		return ChannelPOS
	}
	return in.Channel
}

// Validate rejects malformed input before any side effect.
func (in CheckoutInput) Validate() error {
	if in.ClientUUID != "" {
		if _, err := uuid.Parse(in.ClientUUID); err != nil {
			return shared.NewValidationError("client_uuid", "must be a valid UUID")
		}
	}
	if in.Channel != "" && !in.Channel.Valid() {
		return shared.NewValidationError("channel", "must be pos or online")
	}
	if in.WarehouseID == 0 {
		return shared.NewValidationError("warehouse_id", "required")
	}
	if len(in.Lines) == 0 {
		return shared.NewValidationError("lines", "at least one line required")
	}
	if in.DiscountPercent.IsNegative() || in.DiscountPercent.GreaterThan(decimal.NewFromInt(100)) {
		return shared.NewValidationError("discount_percent", "must be between 0 and 100")
	}
	if in.TaxAmount.IsNegative() {
		return shared.NewValidationError("tax_amount", "must not be negative")
	}
	if in.PaymentMethod == "" {
		return shared.NewValidationError("payment_method", "required")
	}
	for _, line := range in.Lines {
		if line.ProductID == 0 {
			return shared.NewValidationError("lines.product_id", "required")
		}
		if !line.Qty.IsPositive() {
			return shared.NewValidationError("lines.qty", "must be positive")
		}
		if line.UnitPrice.IsNegative() {
			return shared.NewValidationError("lines.unit_price", "must not be negative")
		}
		if line.DiscountPercent.IsNegative() || line.DiscountPercent.GreaterThan(decimal.NewFromInt(100)) {
			return shared.NewValidationError("lines.discount_percent", "must be between 0 and 100")
		}
	}
	return nil
}

// Filter narrows sale listings.
type Filter struct {
	WarehouseID int64
	CashierID   int64
	Status      SaleStatus
	From        time.Time
	To          time.Time
	Limit       int
	Offset      int
}
