package audit_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/audit"
)

type memRepo struct {
	entries []audit.Entry
	last    struct {
		filters audit.Filters
		limit   int
		offset  int
	}
}

func (r *memRepo) ListEntries(_ context.Context, filters audit.Filters, limit, offset int) ([]audit.Entry, error) {
	r.last.filters = filters
	r.last.limit = limit
	r.last.offset = offset

	var matched []audit.Entry
	for _, e := range r.entries {
		if filters.ActorID != 0 && e.ActorID != filters.ActorID {
			continue
		}
		if filters.Entity != "" && e.Entity != filters.Entity {
			continue
		}
		if filters.Action != "" && e.Action != filters.Action {
			continue
		}
		matched = append(matched, e)
	}
	if offset >= len(matched) {
		return nil, nil
	}
	matched = matched[offset:]
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func seedEntries(n int) []audit.Entry {
	entries := make([]audit.Entry, 0, n)
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		entries = append(entries, audit.Entry{
			ID:         int64(n - i),
			ActorID:    int64(i%3 + 1),
			Action:     "ledger:record",
			Entity:     "stock_movement",
			EntityID:   "1",
			OccurredAt: base.Add(-time.Duration(i) * time.Minute),
		})
	}
	return entries
}

func TestTrailPagesWithLookahead(t *testing.T) {
	repo := &memRepo{entries: seedEntries(25)}
	svc := audit.NewService(repo)
	ctx := context.Background()

	result, err := svc.Trail(ctx, audit.Filters{})
	require.NoError(t, err)
	require.Len(t, result.Rows, 20)
	require.True(t, result.Paging.HasNext)
	require.Equal(t, 1, result.Paging.Page)
	require.Equal(t, 2, result.Paging.NextPage)
	require.Zero(t, result.Paging.PrevPage)
	// One extra row is fetched to detect the next page.
	require.Equal(t, 21, repo.last.limit)

	result, err = svc.Trail(ctx, audit.Filters{Page: 2})
	require.NoError(t, err)
	require.Len(t, result.Rows, 5)
	require.False(t, result.Paging.HasNext)
	require.Equal(t, 1, result.Paging.PrevPage)
	require.Zero(t, result.Paging.NextPage)
	require.Equal(t, 20, repo.last.offset)
}

func TestTrailClampsPageSize(t *testing.T) {
	repo := &memRepo{entries: seedEntries(80)}
	svc := audit.NewService(repo)

	result, err := svc.Trail(context.Background(), audit.Filters{PageSize: 500})
	require.NoError(t, err)
	require.Len(t, result.Rows, 50)
	require.Equal(t, 50, result.Paging.PageSize)
}

func TestTrailFiltersByActor(t *testing.T) {
	repo := &memRepo{entries: seedEntries(9)}
	svc := audit.NewService(repo)

	result, err := svc.Trail(context.Background(), audit.Filters{ActorID: 2})
	require.NoError(t, err)
	require.Len(t, result.Rows, 3)
	for _, row := range result.Rows {
		require.EqualValues(t, 2, row.ActorID)
	}
}

func TestTrailRequiresRepository(t *testing.T) {
	svc := audit.NewService(nil)
	_, err := svc.Trail(context.Background(), audit.Filters{})
	require.Error(t, err)
}
