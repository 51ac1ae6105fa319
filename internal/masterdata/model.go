// Package masterdata exposes read-only reference data consumed by the
// inventory core: products with their authoritative prices, warehouses and
// branches. Lifecycle management of these entities lives elsewhere.
package masterdata

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product carries the authoritative price and standard cost.
type Product struct {
	ID        int64           `json:"id"`
	Code      string          `json:"code"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Cost      decimal.Decimal `json:"cost"`
	IsActive  bool            `json:"is_active"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Warehouse is a stock-holding location belonging to a branch.
type Warehouse struct {
	ID       int64  `json:"id"`
	Code     string `json:"code"`
	Name     string `json:"name"`
	BranchID int64  `json:"branch_id"`
	IsActive bool   `json:"is_active"`
}

// Branch is an organizational unit owning warehouses.
type Branch struct {
	ID       int64  `json:"id"`
	Code     string `json:"code"`
	Name     string `json:"name"`
	IsActive bool   `json:"is_active"`
}
