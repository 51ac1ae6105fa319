// Package jobs wires background processing on top of Asynq: the periodic
// stock level reconcile and the worker/scheduler plumbing around it.
package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskStockReconcile rebuilds drifted stock level rows from the ledger.
	TaskStockReconcile = "stock:reconcile"
)

// StockReconcilePayload scopes a reconcile run. Zero values mean "everything
// that drifted".
type StockReconcilePayload struct {
	ProductID   int64 `json:"product_id,omitempty"`
	WarehouseID int64 `json:"warehouse_id,omitempty"`
}

// NewStockReconcileTask constructs an Asynq task.
func NewStockReconcileTask(payload StockReconcilePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskStockReconcile, data), nil
}
