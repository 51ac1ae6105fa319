package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	jobmetrics "github.com/meridian-erp/meridian-erp/internal/jobs"
	"github.com/meridian-erp/meridian-erp/internal/ledger"
	"github.com/meridian-erp/meridian-erp/internal/observability"
)

const reconcileConcurrency = 8

// Reconciler rebuilds stock level rows that diverged from the ledger sum.
// Divergence should not happen while every write path updates the counter in
// the same transaction, but operators can also mutate data directly; the
// ledger always wins.
type Reconciler struct {
	repo    *ledger.Repository
	logger  *slog.Logger
	metrics *observability.Metrics
	jobs    *jobmetrics.Metrics
}

// NewReconciler constructs a Reconciler.
func NewReconciler(repo *ledger.Repository, logger *slog.Logger, metrics *observability.Metrics, jobs *jobmetrics.Metrics) *Reconciler {
	return &Reconciler{repo: repo, logger: logger, metrics: metrics, jobs: jobs}
}

// Handle processes TaskStockReconcile tasks.
func (r *Reconciler) Handle(ctx context.Context, t *asynq.Task) error {
	var payload StockReconcilePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	tracker := r.jobs.Track("stock_reconcile")

	if payload.ProductID != 0 && payload.WarehouseID != 0 {
		err := r.repo.RebuildStockLevel(ctx, payload.ProductID, payload.WarehouseID)
		if err == nil {
			r.metrics.ReconcileRun()
		}
		return tracker.End(err)
	}

	keys, err := r.repo.ListDriftedKeys(ctx)
	if err != nil {
		return tracker.End(err)
	}
	if len(keys) == 0 {
		r.metrics.ReconcileRun()
		return tracker.End(nil)
	}

	r.logger.Warn("stock levels drifted from ledger", slog.Int("keys", len(keys)))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(reconcileConcurrency)
	for _, key := range keys {
		key := key
		g.Go(func() error {
			return r.repo.RebuildStockLevel(ctx, key.ProductID, key.WarehouseID)
		})
	}
	if err := g.Wait(); err != nil {
		return tracker.End(err)
	}

	r.metrics.ReconcileDrift(len(keys))
	r.metrics.ReconcileRun()
	return tracker.End(nil)
}
