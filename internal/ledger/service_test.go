package ledger_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/ledger"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

type memStore struct {
	nextID    int64
	movements []ledger.Movement
	levels    map[string]decimal.Decimal
	locked    []string
}

func newMemStore() *memStore {
	return &memStore{nextID: 1, levels: make(map[string]decimal.Decimal)}
}

func (s *memStore) LockStock(_ context.Context, productID, warehouseID int64) error {
	s.locked = append(s.locked, shared.StockLockKey(productID, warehouseID))
	return nil
}

func (s *memStore) SumBalance(_ context.Context, productID, warehouseID int64) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, m := range s.movements {
		if m.ProductID == productID && m.WarehouseID == warehouseID {
			total = total.Add(m.SignedQty)
		}
	}
	return total, nil
}

func (s *memStore) InsertMovement(_ context.Context, m ledger.Movement) (int64, error) {
	m.ID = s.nextID
	s.nextID++
	s.movements = append(s.movements, m)
	return m.ID, nil
}

func (s *memStore) ApplyStockLevel(_ context.Context, productID, warehouseID int64, delta decimal.Decimal) error {
	key := shared.StockLockKey(productID, warehouseID)
	s.levels[key] = s.levels[key].Add(delta)
	return nil
}

type memRepo struct {
	store *memStore
}

func newMemRepo() *memRepo {
	return &memRepo{store: newMemStore()}
}

func (r *memRepo) WithTx(ctx context.Context, fn func(context.Context, ledger.Store) error) error {
	return fn(ctx, r.store)
}

func (r *memRepo) CurrentBalance(ctx context.Context, productID int64, warehouseID *int64) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, m := range r.store.movements {
		if m.ProductID != productID {
			continue
		}
		if warehouseID != nil && m.WarehouseID != *warehouseID {
			continue
		}
		total = total.Add(m.SignedQty)
	}
	return total, nil
}

func (r *memRepo) BulkBalance(ctx context.Context, productIDs []int64, warehouseID *int64) (map[int64]decimal.Decimal, error) {
	out := make(map[int64]decimal.Decimal, len(productIDs))
	for _, id := range productIDs {
		balance, err := r.CurrentBalance(ctx, id, warehouseID)
		if err != nil {
			return nil, err
		}
		out[id] = balance
	}
	return out, nil
}

func (r *memRepo) StockValue(_ context.Context, productID int64, warehouseID *int64) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, m := range r.store.movements {
		if m.ProductID != productID {
			continue
		}
		if warehouseID != nil && m.WarehouseID != *warehouseID {
			continue
		}
		total = total.Add(m.ValuatedAmount)
	}
	return total, nil
}

func (r *memRepo) ListMovements(_ context.Context, filter ledger.MovementFilter) ([]ledger.Movement, error) {
	var out []ledger.Movement
	for _, m := range r.store.movements {
		if filter.ProductID != 0 && m.ProductID != filter.ProductID {
			continue
		}
		if filter.WarehouseID != 0 && m.WarehouseID != filter.WarehouseID {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func (r *memRepo) GetMovement(_ context.Context, id int64) (ledger.Movement, error) {
	for _, m := range r.store.movements {
		if m.ID == id {
			return m, nil
		}
	}
	return ledger.Movement{}, shared.ErrNotFound
}

func newService(repo *memRepo) *ledger.Service {
	return ledger.NewService(repo, shared.NewKeyLocker(), nil)
}

func dec(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

func TestAppendSignsQuantityByDirection(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()

	in, err := ledger.Append(ctx, store, ledger.MovementInput{
		ProductID: 1, WarehouseID: 2, Direction: ledger.DirectionIn,
		Qty: dec("10"), UnitCost: dec("4.50"), Type: ledger.MovementPurchase,
	})
	require.NoError(t, err)
	require.True(t, in.SignedQty.Equal(dec("10")))
	require.True(t, in.ValuatedAmount.Equal(dec("45")))

	out, err := ledger.Append(ctx, store, ledger.MovementInput{
		ProductID: 1, WarehouseID: 2, Direction: ledger.DirectionOut,
		Qty: dec("3"), UnitCost: dec("4.50"), Type: ledger.MovementSale,
	})
	require.NoError(t, err)
	require.True(t, out.SignedQty.Equal(dec("-3")))
	require.True(t, out.ValuatedAmount.Equal(dec("-13.5")))

	balance, err := store.SumBalance(ctx, 1, 2)
	require.NoError(t, err)
	require.True(t, balance.Equal(dec("7")))
	require.True(t, store.levels[shared.StockLockKey(1, 2)].Equal(dec("7")))
}

func TestAppendRejectsInvalidInput(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()

	cases := []struct {
		name string
		in   ledger.MovementInput
	}{
		{"missing product", ledger.MovementInput{WarehouseID: 2, Direction: ledger.DirectionIn, Qty: dec("1"), Type: ledger.MovementPurchase}},
		{"missing warehouse", ledger.MovementInput{ProductID: 1, Direction: ledger.DirectionIn, Qty: dec("1"), Type: ledger.MovementPurchase}},
		{"bad direction", ledger.MovementInput{ProductID: 1, WarehouseID: 2, Direction: "sideways", Qty: dec("1"), Type: ledger.MovementPurchase}},
		{"zero qty", ledger.MovementInput{ProductID: 1, WarehouseID: 2, Direction: ledger.DirectionIn, Qty: decimal.Zero, Type: ledger.MovementPurchase}},
		{"negative qty", ledger.MovementInput{ProductID: 1, WarehouseID: 2, Direction: ledger.DirectionIn, Qty: dec("-5"), Type: ledger.MovementPurchase}},
		{"negative cost", ledger.MovementInput{ProductID: 1, WarehouseID: 2, Direction: ledger.DirectionIn, Qty: dec("1"), UnitCost: dec("-1"), Type: ledger.MovementPurchase}},
		{"unknown type", ledger.MovementInput{ProductID: 1, WarehouseID: 2, Direction: ledger.DirectionIn, Qty: dec("1"), Type: "teleport"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ledger.Append(ctx, store, tc.in)
			var verr *shared.ValidationError
			require.ErrorAs(t, err, &verr)
		})
	}
	require.Empty(t, store.movements)
}

func TestEnsureAvailableRejectsOverdraw(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()

	_, err := ledger.Append(ctx, store, ledger.MovementInput{
		ProductID: 1, WarehouseID: 2, Direction: ledger.DirectionIn,
		Qty: dec("5"), Type: ledger.MovementOpening,
	})
	require.NoError(t, err)

	require.NoError(t, ledger.EnsureAvailable(ctx, store, 1, 2, dec("5"), false))

	err = ledger.EnsureAvailable(ctx, store, 1, 2, dec("5.0001"), false)
	var insErr *shared.InsufficientStockError
	require.ErrorAs(t, err, &insErr)
	require.True(t, insErr.Available.Equal(dec("5")))
	require.True(t, insErr.Requested.Equal(dec("5.0001")))

	require.NoError(t, ledger.EnsureAvailable(ctx, store, 1, 2, dec("9999"), true))
}

func TestRecordAppendsUnderLock(t *testing.T) {
	repo := newMemRepo()
	svc := newService(repo)
	ctx := context.Background()

	m, err := svc.Record(ctx, ledger.MovementInput{
		ProductID: 7, WarehouseID: 3, Direction: ledger.DirectionIn,
		Qty: dec("12"), UnitCost: dec("2"), Type: ledger.MovementAdjustment,
		Reference: "Cycle count", ActorID: 42,
	})
	require.NoError(t, err)
	require.NotZero(t, m.ID)
	require.Equal(t, int64(42), m.CreatedBy)
	require.Contains(t, repo.store.locked, shared.StockLockKey(7, 3))

	balance, err := svc.CurrentBalance(ctx, 7, nil)
	require.NoError(t, err)
	require.True(t, balance.Equal(dec("12")))
}

func TestReverseAppendsCompensatingRow(t *testing.T) {
	repo := newMemRepo()
	svc := newService(repo)
	ctx := context.Background()

	original, err := svc.Record(ctx, ledger.MovementInput{
		ProductID: 1, WarehouseID: 2, Direction: ledger.DirectionOut,
		Qty: dec("4"), UnitCost: dec("3"), Type: ledger.MovementSale,
	})
	require.NoError(t, err)

	reversal, err := svc.Reverse(ctx, original.ID, "Keying error", 9)
	require.NoError(t, err)
	require.Equal(t, ledger.DirectionIn, reversal.Direction)
	require.Equal(t, ledger.MovementAdjustment, reversal.Type)
	require.Equal(t, original.ID, reversal.ReversalOfID)
	require.True(t, reversal.Qty.Equal(original.Qty))

	balance, err := svc.CurrentBalance(ctx, 1, nil)
	require.NoError(t, err)
	require.True(t, balance.IsZero())

	// The original row is untouched; only a new row was appended.
	movements, err := svc.ListMovements(ctx, ledger.MovementFilter{ProductID: 1})
	require.NoError(t, err)
	require.Len(t, movements, 2)
	require.Equal(t, ledger.DirectionOut, movements[0].Direction)
}

func TestReverseRejectsReversalRow(t *testing.T) {
	repo := newMemRepo()
	svc := newService(repo)
	ctx := context.Background()

	original, err := svc.Record(ctx, ledger.MovementInput{
		ProductID: 1, WarehouseID: 2, Direction: ledger.DirectionIn,
		Qty: dec("4"), Type: ledger.MovementPurchase,
	})
	require.NoError(t, err)

	reversal, err := svc.Reverse(ctx, original.ID, "Wrong product", 9)
	require.NoError(t, err)

	_, err = svc.Reverse(ctx, reversal.ID, "Changed my mind", 9)
	var intErr *shared.IntegrityError
	require.ErrorAs(t, err, &intErr)
}

func TestBalanceMatchesSignedSum(t *testing.T) {
	repo := newMemRepo()
	svc := newService(repo)
	ctx := context.Background()

	steps := []struct {
		direction ledger.Direction
		qty       string
		typ       ledger.MovementType
	}{
		{ledger.DirectionIn, "100", ledger.MovementOpening},
		{ledger.DirectionOut, "12.5", ledger.MovementSale},
		{ledger.DirectionIn, "30", ledger.MovementPurchase},
		{ledger.DirectionOut, "7.25", ledger.MovementTransferOut},
		{ledger.DirectionIn, "2", ledger.MovementReturnIn},
	}
	for _, step := range steps {
		_, err := svc.Record(ctx, ledger.MovementInput{
			ProductID: 5, WarehouseID: 1, Direction: step.direction,
			Qty: dec(step.qty), Type: step.typ,
		})
		require.NoError(t, err)
	}

	balance, err := svc.CurrentBalance(ctx, 5, nil)
	require.NoError(t, err)
	require.True(t, balance.Equal(dec("112.25")))

	expected := decimal.Zero
	movements, err := svc.ListMovements(ctx, ledger.MovementFilter{ProductID: 5})
	require.NoError(t, err)
	for _, m := range movements {
		expected = expected.Add(m.SignedQty)
	}
	require.True(t, balance.Equal(expected))
}

func TestStockValueSumsValuatedAmounts(t *testing.T) {
	repo := newMemRepo()
	svc := newService(repo)
	ctx := context.Background()

	_, err := svc.Record(ctx, ledger.MovementInput{
		ProductID: 5, WarehouseID: 1, Direction: ledger.DirectionIn,
		Qty: dec("10"), UnitCost: dec("2.50"), Type: ledger.MovementPurchase,
	})
	require.NoError(t, err)
	_, err = svc.Record(ctx, ledger.MovementInput{
		ProductID: 5, WarehouseID: 1, Direction: ledger.DirectionOut,
		Qty: dec("4"), UnitCost: dec("2.50"), Type: ledger.MovementSale,
	})
	require.NoError(t, err)

	value, err := svc.StockValue(ctx, 5, nil)
	require.NoError(t, err)
	require.True(t, value.Equal(dec("15")))
}

func TestBulkBalanceCoversRequestedProducts(t *testing.T) {
	repo := newMemRepo()
	svc := newService(repo)
	ctx := context.Background()

	_, err := svc.Record(ctx, ledger.MovementInput{
		ProductID: 1, WarehouseID: 1, Direction: ledger.DirectionIn,
		Qty: dec("8"), Type: ledger.MovementOpening,
	})
	require.NoError(t, err)

	balances, err := svc.BulkBalance(ctx, []int64{1, 2}, nil)
	require.NoError(t, err)
	require.True(t, balances[1].Equal(dec("8")))
	require.True(t, balances[2].IsZero())
}
