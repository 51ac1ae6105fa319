package transfer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/ledger"
	"github.com/meridian-erp/meridian-erp/internal/masterdata"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// TxStore exposes transactional operations used by the service. Every
// transition runs against one store so header, items, ledger rows and transit
// rows commit or roll back together.
type TxStore interface {
	InsertTransfer(ctx context.Context, t Transfer) (int64, error)
	InsertItems(ctx context.Context, transferID int64, items []TransferItem) error
	GetTransferForUpdate(ctx context.Context, id int64) (Transfer, error)
	ItemsForTransfer(ctx context.Context, transferID int64) ([]TransferItem, error)
	UpdateItem(ctx context.Context, item TransferItem) error
	UpdateTransfer(ctx context.Context, t Transfer) error
	InsertHistory(ctx context.Context, entry HistoryEntry) error
	InsertTransit(ctx context.Context, record TransitRecord) (int64, error)
	CloseTransits(ctx context.Context, transferID int64, status TransitStatus) error
	Ledger() ledger.Store
}

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxStore) error) error
	GetTransfer(ctx context.Context, id int64) (Transfer, error)
	ItemsForTransfer(ctx context.Context, transferID int64) ([]TransferItem, error)
	TransitsForTransfer(ctx context.Context, transferID int64) ([]TransitRecord, error)
	List(ctx context.Context, filter Filter) ([]Transfer, error)
	Statistics(ctx context.Context, warehouseID int64, from, to time.Time) (Statistics, error)
}

// MasterDataPort resolves warehouse reference data.
type MasterDataPort interface {
	GetWarehouse(ctx context.Context, id int64) (masterdata.Warehouse, error)
}

// Detail bundles a transfer with its items and transit records.
type Detail struct {
	Transfer Transfer
	Items    []TransferItem
	Transits []TransitRecord
}

// Service drives the transfer workflow state machine.
type Service struct {
	repo   RepositoryPort
	master MasterDataPort
	locks  *shared.KeyLocker
	audit  shared.AuditPort
}

// NewService builds Service.
func NewService(repo RepositoryPort, master MasterDataPort, locks *shared.KeyLocker, audit shared.AuditPort) *Service {
	return &Service{repo: repo, master: master, locks: locks, audit: audit}
}

// Create validates the request and produces a pending transfer with
// auto-approved quantities. No ledger entries are written: creation reserves
// intent, not stock.
func (s *Service) Create(ctx context.Context, identity shared.Identity, in CreateInput) (Detail, error) {
	if err := in.Validate(); err != nil {
		return Detail{}, err
	}
	if err := s.checkWarehouse(ctx, "from_warehouse_id", in.FromWarehouseID); err != nil {
		return Detail{}, err
	}
	if err := s.checkWarehouse(ctx, "to_warehouse_id", in.ToWarehouseID); err != nil {
		return Detail{}, err
	}

	release := s.locks.LockMany(sourceLockKeys(in))
	defer release()

	now := time.Now().UTC()
	header := Transfer{
		Number:            transferNumber(),
		FromWarehouseID:   in.FromWarehouseID,
		ToWarehouseID:     in.ToWarehouseID,
		FromBranchID:      in.FromBranchID,
		ToBranchID:        in.ToBranchID,
		Type:              in.transferType(),
		Status:            StatusPending,
		Priority:          in.Priority,
		TransferDate:      in.TransferDate,
		ExpectedDelivery:  in.ExpectedDelivery,
		Reason:            in.Reason,
		Notes:             in.Notes,
		ShippingCost:      in.ShippingCost,
		InsuranceCost:     in.InsuranceCost,
		TotalCost:         in.ShippingCost.Add(in.InsuranceCost),
		Currency:          in.Currency,
		RequestedBy:       identity.UserID,
		CreatedBy:         identity.UserID,
		CreatedAt:         now,
	}
	if header.Priority == "" {
		header.Priority = PriorityMedium
	}
	if header.Currency == "" {
		header.Currency = "USD"
	}
	if header.TransferDate.IsZero() {
		header.TransferDate = now
	}

	items := make([]TransferItem, 0, len(in.Items))
	for _, itemIn := range in.Items {
		condition := itemIn.Condition
		if condition == "" {
			condition = "good"
		}
		items = append(items, TransferItem{
			ProductID:           itemIn.ProductID,
			QtyRequested:        itemIn.Qty,
			QtyApproved:         itemIn.Qty,
			BatchNumber:         itemIn.BatchNumber,
			ExpiryDate:          itemIn.ExpiryDate,
			UnitCost:            itemIn.UnitCost,
			ConditionOnShipping: condition,
			Notes:               itemIn.Notes,
		})
		header.TotalQtyRequested = header.TotalQtyRequested.Add(itemIn.Qty)
	}

	var detail Detail
	err := s.repo.WithTx(ctx, func(ctx context.Context, store TxStore) error {
		for _, item := range items {
			if err := store.Ledger().LockStock(ctx, item.ProductID, in.FromWarehouseID); err != nil {
				return fmt.Errorf("transfer: lock stock: %w", err)
			}
			if err := ledger.EnsureAvailable(ctx, store.Ledger(), item.ProductID, in.FromWarehouseID, item.QtyRequested, false); err != nil {
				return err
			}
		}

		id, err := store.InsertTransfer(ctx, header)
		if err != nil {
			return fmt.Errorf("transfer: insert header: %w", err)
		}
		header.ID = id
		if err := store.InsertItems(ctx, id, items); err != nil {
			return fmt.Errorf("transfer: insert items: %w", err)
		}
		if err := store.InsertHistory(ctx, HistoryEntry{
			TransferID: id,
			FromStatus: StatusDraft,
			ToStatus:   StatusPending,
			Notes:      in.Reason,
			ChangedBy:  identity.UserID,
			ChangedAt:  now,
		}); err != nil {
			return fmt.Errorf("transfer: insert history: %w", err)
		}
		detail = Detail{Transfer: header, Items: items}
		return nil
	})
	if err != nil {
		return Detail{}, err
	}

	s.recordAudit(ctx, identity.UserID, "transfer:create", header)
	return detail, nil
}

// Approve re-validates stock availability for every item before flipping the
// transfer to approved. The key locks are held across the validation and the
// transition so the balance cannot move in between.
func (s *Service) Approve(ctx context.Context, identity shared.Identity, transferID int64) (Transfer, error) {
	items, err := s.repo.ItemsForTransfer(ctx, transferID)
	if err != nil {
		return Transfer{}, err
	}
	header, err := s.repo.GetTransfer(ctx, transferID)
	if err != nil {
		return Transfer{}, err
	}

	release := s.locks.LockMany(itemLockKeys(items, header.FromWarehouseID))
	defer release()

	var result Transfer
	err = s.repo.WithTx(ctx, func(ctx context.Context, store TxStore) error {
		current, err := store.GetTransferForUpdate(ctx, transferID)
		if err != nil {
			return err
		}
		if current.Status != StatusPending {
			return &shared.InvalidStateTransitionError{Entity: "transfer " + current.Number, Current: string(current.Status), Attempted: "approve"}
		}
		txItems, err := store.ItemsForTransfer(ctx, transferID)
		if err != nil {
			return err
		}
		for _, item := range txItems {
			if err := store.Ledger().LockStock(ctx, item.ProductID, current.FromWarehouseID); err != nil {
				return fmt.Errorf("transfer: lock stock: %w", err)
			}
			if err := ledger.EnsureAvailable(ctx, store.Ledger(), item.ProductID, current.FromWarehouseID, item.QtyApproved, false); err != nil {
				return err
			}
		}

		now := time.Now().UTC()
		current.Status = StatusApproved
		current.ApprovedBy = identity.UserID
		current.ApprovedAt = &now
		if err := store.UpdateTransfer(ctx, current); err != nil {
			return fmt.Errorf("transfer: update header: %w", err)
		}
		if err := store.InsertHistory(ctx, HistoryEntry{
			TransferID: transferID,
			FromStatus: StatusPending,
			ToStatus:   StatusApproved,
			ChangedBy:  identity.UserID,
			ChangedAt:  now,
		}); err != nil {
			return fmt.Errorf("transfer: insert history: %w", err)
		}
		result = current
		return nil
	})
	if err != nil {
		return Transfer{}, err
	}

	s.recordAudit(ctx, identity.UserID, "transfer:approve", result)
	return result, nil
}

// Ship records a transfer_out movement at the source warehouse per item,
// opens transit records and advances the transfer to in_transit.
func (s *Service) Ship(ctx context.Context, identity shared.Identity, transferID int64, in ShipInput) (Transfer, error) {
	items, err := s.repo.ItemsForTransfer(ctx, transferID)
	if err != nil {
		return Transfer{}, err
	}
	header, err := s.repo.GetTransfer(ctx, transferID)
	if err != nil {
		return Transfer{}, err
	}

	release := s.locks.LockMany(itemLockKeys(items, header.FromWarehouseID))
	defer release()

	var result Transfer
	err = s.repo.WithTx(ctx, func(ctx context.Context, store TxStore) error {
		current, err := store.GetTransferForUpdate(ctx, transferID)
		if err != nil {
			return err
		}
		if current.Status != StatusApproved {
			return &shared.InvalidStateTransitionError{Entity: "transfer " + current.Number, Current: string(current.Status), Attempted: "ship"}
		}
		txItems, err := store.ItemsForTransfer(ctx, transferID)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		totalShipped := decimal.Zero
		for _, item := range txItems {
			qtyToShip := item.QtyApproved
			if override, ok := in.Items[item.ID]; ok {
				qtyToShip = override.QtyShipped
			}
			if !qtyToShip.IsPositive() {
				return shared.NewValidationError("qty_shipped", "must be positive")
			}
			if qtyToShip.GreaterThan(item.QtyApproved) {
				return shared.NewValidationError("qty_shipped", "exceeds approved quantity")
			}

			if err := store.Ledger().LockStock(ctx, item.ProductID, current.FromWarehouseID); err != nil {
				return fmt.Errorf("transfer: lock stock: %w", err)
			}
			if err := ledger.EnsureAvailable(ctx, store.Ledger(), item.ProductID, current.FromWarehouseID, qtyToShip, false); err != nil {
				return err
			}
			if _, err := ledger.Append(ctx, store.Ledger(), ledger.MovementInput{
				ProductID:   item.ProductID,
				WarehouseID: current.FromWarehouseID,
				BranchID:    current.FromBranchID,
				Direction:   ledger.DirectionOut,
				Qty:         qtyToShip,
				UnitCost:    item.UnitCost,
				Type:        ledger.MovementTransferOut,
				Reference:   "Transfer Out: " + current.Number,
				ActorID:     identity.UserID,
			}); err != nil {
				return err
			}

			item.QtyShipped = qtyToShip
			if err := store.UpdateItem(ctx, item); err != nil {
				return fmt.Errorf("transfer: update item: %w", err)
			}
			if _, err := store.InsertTransit(ctx, TransitRecord{
				TransferID:      transferID,
				ProductID:       item.ProductID,
				FromWarehouseID: current.FromWarehouseID,
				ToWarehouseID:   current.ToWarehouseID,
				Quantity:        qtyToShip,
				UnitCost:        item.UnitCost,
				BatchNumber:     item.BatchNumber,
				ExpiryDate:      item.ExpiryDate,
				Status:          TransitInTransit,
				ShippedAt:       now,
				ExpectedArrival: in.ExpectedDelivery,
				CreatedBy:       identity.UserID,
			}); err != nil {
				return fmt.Errorf("transfer: insert transit: %w", err)
			}
			totalShipped = totalShipped.Add(qtyToShip)
		}

		current.Status = StatusInTransit
		current.TotalQtyShipped = totalShipped
		current.ShippedBy = identity.UserID
		current.ShippedAt = &now
		current.TrackingNumber = in.TrackingNumber
		current.CourierName = in.CourierName
		current.VehicleNumber = in.VehicleNumber
		current.DriverName = in.DriverName
		current.DriverPhone = in.DriverPhone
		if in.ExpectedDelivery != nil {
			current.ExpectedDelivery = in.ExpectedDelivery
		}
		if err := store.UpdateTransfer(ctx, current); err != nil {
			return fmt.Errorf("transfer: update header: %w", err)
		}
		if err := store.InsertHistory(ctx, HistoryEntry{
			TransferID: transferID,
			FromStatus: StatusApproved,
			ToStatus:   StatusInTransit,
			Notes:      in.TrackingNumber,
			ChangedBy:  identity.UserID,
			ChangedAt:  now,
		}); err != nil {
			return fmt.Errorf("transfer: insert history: %w", err)
		}
		result = current
		return nil
	})
	if err != nil {
		return Transfer{}, err
	}

	s.recordAudit(ctx, identity.UserID, "transfer:ship", result)
	return result, nil
}

// Receive splits each item into good and damaged quantity. Good stock becomes
// a transfer_in movement at the destination; damage is recorded as a separate
// adjustment so it stays visible. The transfer auto-completes when every item
// is fully received.
func (s *Service) Receive(ctx context.Context, identity shared.Identity, transferID int64, in ReceiveInput) (Transfer, error) {
	items, err := s.repo.ItemsForTransfer(ctx, transferID)
	if err != nil {
		return Transfer{}, err
	}
	header, err := s.repo.GetTransfer(ctx, transferID)
	if err != nil {
		return Transfer{}, err
	}

	release := s.locks.LockMany(itemLockKeys(items, header.ToWarehouseID))
	defer release()

	var result Transfer
	err = s.repo.WithTx(ctx, func(ctx context.Context, store TxStore) error {
		current, err := store.GetTransferForUpdate(ctx, transferID)
		if err != nil {
			return err
		}
		if current.Status != StatusInTransit {
			return &shared.InvalidStateTransitionError{Entity: "transfer " + current.Number, Current: string(current.Status), Attempted: "receive"}
		}
		txItems, err := store.ItemsForTransfer(ctx, transferID)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		totalReceived := decimal.Zero
		totalDamaged := decimal.Zero
		fullyReceived := true
		for _, item := range txItems {
			data, ok := in.Items[item.ID]
			qtyReceived := item.QtyShipped
			qtyDamaged := decimal.Zero
			condition := "good"
			damageReport := ""
			if ok {
				qtyReceived = data.QtyReceived
				qtyDamaged = data.QtyDamaged
				if data.Condition != "" {
					condition = data.Condition
				}
				damageReport = data.DamageReport
			}
			if qtyReceived.IsNegative() || qtyDamaged.IsNegative() {
				return shared.NewValidationError("qty_received", "must not be negative")
			}
			if qtyDamaged.GreaterThan(qtyReceived) {
				return shared.NewValidationError("qty_damaged", "exceeds received quantity")
			}
			if qtyReceived.GreaterThan(item.QtyShipped) {
				return shared.NewValidationError("qty_received", "exceeds shipped quantity")
			}

			qtyGood := qtyReceived.Sub(qtyDamaged)
			if err := store.Ledger().LockStock(ctx, item.ProductID, current.ToWarehouseID); err != nil {
				return fmt.Errorf("transfer: lock stock: %w", err)
			}
			if qtyGood.IsPositive() {
				if _, err := ledger.Append(ctx, store.Ledger(), ledger.MovementInput{
					ProductID:   item.ProductID,
					WarehouseID: current.ToWarehouseID,
					BranchID:    current.ToBranchID,
					Direction:   ledger.DirectionIn,
					Qty:         qtyGood,
					UnitCost:    item.UnitCost,
					Type:        ledger.MovementTransferIn,
					Reference:   "Transfer In: " + current.Number,
					ActorID:     identity.UserID,
				}); err != nil {
					return err
				}
			}
			if qtyDamaged.IsPositive() {
				if _, err := ledger.Append(ctx, store.Ledger(), ledger.MovementInput{
					ProductID:   item.ProductID,
					WarehouseID: current.ToWarehouseID,
					BranchID:    current.ToBranchID,
					Direction:   ledger.DirectionIn,
					Qty:         qtyDamaged,
					UnitCost:    item.UnitCost,
					Type:        ledger.MovementAdjustment,
					Reference:   "Transfer Damage: " + current.Number,
					ActorID:     identity.UserID,
				}); err != nil {
					return err
				}
			}

			item.QtyReceived = qtyReceived
			item.QtyDamaged = qtyDamaged
			item.ConditionOnReceiving = condition
			item.DamageReport = damageReport
			if err := store.UpdateItem(ctx, item); err != nil {
				return fmt.Errorf("transfer: update item: %w", err)
			}

			totalReceived = totalReceived.Add(qtyReceived)
			totalDamaged = totalDamaged.Add(qtyDamaged)
			if !item.FullyReceived() {
				fullyReceived = false
			}
		}

		if err := store.CloseTransits(ctx, transferID, TransitReceived); err != nil {
			return fmt.Errorf("transfer: close transits: %w", err)
		}

		current.TotalQtyReceived = totalReceived
		current.TotalQtyDamaged = totalDamaged
		current.ReceivedBy = identity.UserID
		current.ReceivedAt = &now
		current.ActualDelivery = in.ActualDelivery
		if current.ActualDelivery == nil {
			current.ActualDelivery = &now
		}
		current.Status = StatusReceived
		if err := store.InsertHistory(ctx, HistoryEntry{
			TransferID: transferID,
			FromStatus: StatusInTransit,
			ToStatus:   StatusReceived,
			ChangedBy:  identity.UserID,
			ChangedAt:  now,
		}); err != nil {
			return fmt.Errorf("transfer: insert history: %w", err)
		}
		if fullyReceived {
			current.Status = StatusCompleted
			if err := store.InsertHistory(ctx, HistoryEntry{
				TransferID: transferID,
				FromStatus: StatusReceived,
				ToStatus:   StatusCompleted,
				ChangedBy:  identity.UserID,
				ChangedAt:  now,
			}); err != nil {
				return fmt.Errorf("transfer: insert history: %w", err)
			}
		}
		if err := store.UpdateTransfer(ctx, current); err != nil {
			return fmt.Errorf("transfer: update header: %w", err)
		}
		result = current
		return nil
	})
	if err != nil {
		return Transfer{}, err
	}

	s.recordAudit(ctx, identity.UserID, "transfer:receive", result)
	return result, nil
}

// Reject declines a pending transfer.
func (s *Service) Reject(ctx context.Context, identity shared.Identity, transferID int64, reason string) (Transfer, error) {
	var result Transfer
	err := s.repo.WithTx(ctx, func(ctx context.Context, store TxStore) error {
		current, err := store.GetTransferForUpdate(ctx, transferID)
		if err != nil {
			return err
		}
		if current.Status != StatusPending {
			return &shared.InvalidStateTransitionError{Entity: "transfer " + current.Number, Current: string(current.Status), Attempted: "reject"}
		}
		now := time.Now().UTC()
		current.Status = StatusRejected
		if err := store.UpdateTransfer(ctx, current); err != nil {
			return fmt.Errorf("transfer: update header: %w", err)
		}
		if err := store.InsertHistory(ctx, HistoryEntry{
			TransferID: transferID,
			FromStatus: StatusPending,
			ToStatus:   StatusRejected,
			Notes:      reason,
			ChangedBy:  identity.UserID,
			ChangedAt:  now,
		}); err != nil {
			return fmt.Errorf("transfer: insert history: %w", err)
		}
		result = current
		return nil
	})
	if err != nil {
		return Transfer{}, err
	}

	s.recordAudit(ctx, identity.UserID, "transfer:reject", result)
	return result, nil
}

// Cancel aborts a transfer from any non-terminal state. Stock already shipped
// is returned to the source warehouse via compensating adjustments so the
// ledger never shows quantity as vanished.
func (s *Service) Cancel(ctx context.Context, identity shared.Identity, transferID int64, reason string) (Transfer, error) {
	items, err := s.repo.ItemsForTransfer(ctx, transferID)
	if err != nil {
		return Transfer{}, err
	}
	header, err := s.repo.GetTransfer(ctx, transferID)
	if err != nil {
		return Transfer{}, err
	}

	release := s.locks.LockMany(itemLockKeys(items, header.FromWarehouseID))
	defer release()

	var result Transfer
	err = s.repo.WithTx(ctx, func(ctx context.Context, store TxStore) error {
		current, err := store.GetTransferForUpdate(ctx, transferID)
		if err != nil {
			return err
		}
		if current.Status.Terminal() {
			return &shared.InvalidStateTransitionError{Entity: "transfer " + current.Number, Current: string(current.Status), Attempted: "cancel"}
		}

		now := time.Now().UTC()
		if current.Status == StatusInTransit {
			txItems, err := store.ItemsForTransfer(ctx, transferID)
			if err != nil {
				return err
			}
			for _, item := range txItems {
				if !item.QtyShipped.IsPositive() {
					continue
				}
				if err := store.Ledger().LockStock(ctx, item.ProductID, current.FromWarehouseID); err != nil {
					return fmt.Errorf("transfer: lock stock: %w", err)
				}
				if _, err := ledger.Append(ctx, store.Ledger(), ledger.MovementInput{
					ProductID:   item.ProductID,
					WarehouseID: current.FromWarehouseID,
					BranchID:    current.FromBranchID,
					Direction:   ledger.DirectionIn,
					Qty:         item.QtyShipped,
					UnitCost:    item.UnitCost,
					Type:        ledger.MovementAdjustment,
					Reference:   "Transfer Cancelled: " + current.Number,
					ActorID:     identity.UserID,
				}); err != nil {
					return err
				}
			}
			if err := store.CloseTransits(ctx, transferID, TransitCancelled); err != nil {
				return fmt.Errorf("transfer: close transits: %w", err)
			}
		}

		fromStatus := current.Status
		current.Status = StatusCancelled
		if err := store.UpdateTransfer(ctx, current); err != nil {
			return fmt.Errorf("transfer: update header: %w", err)
		}
		if err := store.InsertHistory(ctx, HistoryEntry{
			TransferID: transferID,
			FromStatus: fromStatus,
			ToStatus:   StatusCancelled,
			Notes:      reason,
			ChangedBy:  identity.UserID,
			ChangedAt:  now,
		}); err != nil {
			return fmt.Errorf("transfer: insert history: %w", err)
		}
		result = current
		return nil
	})
	if err != nil {
		return Transfer{}, err
	}

	s.recordAudit(ctx, identity.UserID, "transfer:cancel", result)
	return result, nil
}

// Get assembles the transfer detail.
func (s *Service) Get(ctx context.Context, transferID int64) (Detail, error) {
	header, err := s.repo.GetTransfer(ctx, transferID)
	if err != nil {
		return Detail{}, err
	}
	items, err := s.repo.ItemsForTransfer(ctx, transferID)
	if err != nil {
		return Detail{}, err
	}
	transits, err := s.repo.TransitsForTransfer(ctx, transferID)
	if err != nil {
		return Detail{}, err
	}
	return Detail{Transfer: header, Items: items, Transits: transits}, nil
}

// List returns transfers matching the filter.
func (s *Service) List(ctx context.Context, filter Filter) ([]Transfer, error) {
	return s.repo.List(ctx, filter)
}

// Statistics aggregates transfer counts for dashboards.
func (s *Service) Statistics(ctx context.Context, warehouseID int64, from, to time.Time) (Statistics, error) {
	return s.repo.Statistics(ctx, warehouseID, from, to)
}

func (s *Service) checkWarehouse(ctx context.Context, field string, id int64) error {
	warehouse, err := s.master.GetWarehouse(ctx, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return shared.NewValidationError(field, "unknown warehouse")
		}
		return err
	}
	if !warehouse.IsActive {
		return &shared.IntegrityError{Reason: fmt.Sprintf("warehouse %d is inactive", id)}
	}
	return nil
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, t Transfer) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "stock_transfer",
		EntityID: t.Number,
		Meta: map[string]any{
			"transfer_id":    t.ID,
			"from_warehouse": t.FromWarehouseID,
			"to_warehouse":   t.ToWarehouseID,
			"status":         string(t.Status),
		},
	})
}

func sourceLockKeys(in CreateInput) []string {
	keys := make([]string, 0, len(in.Items))
	for _, item := range in.Items {
		keys = append(keys, shared.StockLockKey(item.ProductID, in.FromWarehouseID))
	}
	return keys
}

func itemLockKeys(items []TransferItem, warehouseID int64) []string {
	keys := make([]string, 0, len(items))
	for _, item := range items {
		keys = append(keys, shared.StockLockKey(item.ProductID, warehouseID))
	}
	return keys
}

func transferNumber() string {
	return fmt.Sprintf("TRF-%d", time.Now().UnixNano())
}
