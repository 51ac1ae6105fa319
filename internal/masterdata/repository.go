package masterdata

import (
	"context"
	"errors"
	"fmt"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Repository reads reference data from PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetProduct fetches one product.
func (r *Repository) GetProduct(ctx context.Context, id int64) (Product, error) {
	var p Product
	err := pgxscan.Get(ctx, r.pool, &p, `SELECT id, code, name, price, cost, is_active, created_at, updated_at FROM products WHERE id=$1`, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, shared.ErrNotFound
		}
		return Product{}, fmt.Errorf("masterdata: get product: %w", err)
	}
	return p, nil
}

// GetProducts fetches many products in one query, keyed by id.
func (r *Repository) GetProducts(ctx context.Context, ids []int64) (map[int64]Product, error) {
	result := make(map[int64]Product, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	var products []Product
	err := pgxscan.Select(ctx, r.pool, &products, `SELECT id, code, name, price, cost, is_active, created_at, updated_at FROM products WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("masterdata: get products: %w", err)
	}
	for _, p := range products {
		result[p.ID] = p
	}
	return result, nil
}

// GetWarehouse fetches one warehouse.
func (r *Repository) GetWarehouse(ctx context.Context, id int64) (Warehouse, error) {
	var w Warehouse
	err := pgxscan.Get(ctx, r.pool, &w, `SELECT id, code, name, branch_id, is_active FROM warehouses WHERE id=$1`, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Warehouse{}, shared.ErrNotFound
		}
		return Warehouse{}, fmt.Errorf("masterdata: get warehouse: %w", err)
	}
	return w, nil
}

// GetBranch fetches one branch.
func (r *Repository) GetBranch(ctx context.Context, id int64) (Branch, error) {
	var b Branch
	err := pgxscan.Get(ctx, r.pool, &b, `SELECT id, code, name, is_active FROM branches WHERE id=$1`, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Branch{}, shared.ErrNotFound
		}
		return Branch{}, fmt.Errorf("masterdata: get branch: %w", err)
	}
	return b, nil
}
