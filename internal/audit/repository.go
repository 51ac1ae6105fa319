package audit

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgxpool"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Repository reads audit trail rows from PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListEntries fetches trail rows matching the filters, newest first.
func (r *Repository) ListEntries(ctx context.Context, filters Filters, limit, offset int) ([]Entry, error) {
	builder := psql.Select("id", "actor_id", "action", "entity", "entity_id", "meta", "occurred_at").
		From("audit_logs").
		OrderBy("occurred_at DESC", "id DESC").
		Limit(uint64(limit)).
		Offset(uint64(offset))

	if !filters.From.IsZero() {
		builder = builder.Where(sq.GtOrEq{"occurred_at": filters.From})
	}
	if !filters.To.IsZero() {
		builder = builder.Where(sq.LtOrEq{"occurred_at": filters.To})
	}
	if filters.ActorID != 0 {
		builder = builder.Where(sq.Eq{"actor_id": filters.ActorID})
	}
	if filters.Entity != "" {
		builder = builder.Where(sq.Eq{"entity": filters.Entity})
	}
	if filters.Action != "" {
		builder = builder.Where(sq.Eq{"action": filters.Action})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("audit: build query: %w", err)
	}

	var entries []Entry
	if err := pgxscan.Select(ctx, r.pool, &entries, query, args...); err != nil {
		return nil, fmt.Errorf("audit: list entries: %w", err)
	}
	return entries, nil
}
