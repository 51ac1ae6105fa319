package shared

import "github.com/shopspring/decimal"

// Identity carries the acting user for a core operation. It is threaded through
// every service call explicitly; the core never reads ambient request state.
type Identity struct {
	UserID             int64
	BranchID           int64
	MaxDiscountPercent decimal.Decimal
	Capabilities       map[string]bool
}

// Can reports whether the identity holds a capability.
func (id Identity) Can(capability string) bool {
	return id.Capabilities[capability]
}
