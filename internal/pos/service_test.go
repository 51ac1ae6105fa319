package pos_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/ledger"
	"github.com/meridian-erp/meridian-erp/internal/masterdata"
	"github.com/meridian-erp/meridian-erp/internal/pos"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

const clientUUID = "7b41cbf2-8fd3-4b08-a25a-4bc21a7f5fd1"

type memLedger struct {
	movements []ledger.Movement
	seed      map[string]decimal.Decimal
	nextID    int64
}

func (m *memLedger) LockStock(_ context.Context, _, _ int64) error { return nil }

func (m *memLedger) SumBalance(_ context.Context, productID, warehouseID int64) (decimal.Decimal, error) {
	balance := m.seed[shared.StockLockKey(productID, warehouseID)]
	for _, mv := range m.movements {
		if mv.ProductID == productID && mv.WarehouseID == warehouseID {
			balance = balance.Add(mv.SignedQty)
		}
	}
	return balance, nil
}

func (m *memLedger) InsertMovement(_ context.Context, mv ledger.Movement) (int64, error) {
	m.nextID++
	mv.ID = m.nextID
	m.movements = append(m.movements, mv)
	return mv.ID, nil
}

func (m *memLedger) ApplyStockLevel(_ context.Context, _, _ int64, _ decimal.Decimal) error {
	return nil
}

type memRepo struct {
	led    *memLedger
	sales  map[int64]pos.Sale
	byUUID map[string]int64
	lines  map[int64][]pos.SaleLine
	nextID int64

	// failNextInsert simulates losing the unique-index race to a
	// concurrent replay.
	failNextInsert bool
}

func newMemRepo() *memRepo {
	return &memRepo{
		led:    &memLedger{seed: make(map[string]decimal.Decimal)},
		sales:  make(map[int64]pos.Sale),
		byUUID: make(map[string]int64),
		lines:  make(map[int64][]pos.SaleLine),
	}
}

func (r *memRepo) WithTx(ctx context.Context, fn func(context.Context, pos.TxStore) error) error {
	return fn(ctx, r)
}

func (r *memRepo) Ledger() ledger.Store { return r.led }

func (r *memRepo) InsertSale(_ context.Context, sale pos.Sale) (int64, error) {
	if r.failNextInsert {
		r.failNextInsert = false
		return 0, pos.ErrDuplicateSale
	}
	// Empty UUIDs persist as NULL, which never collides on the unique index.
	if sale.ClientUUID != "" {
		if _, ok := r.byUUID[sale.ClientUUID]; ok {
			return 0, pos.ErrDuplicateSale
		}
	}
	r.nextID++
	sale.ID = r.nextID
	r.sales[sale.ID] = sale
	if sale.ClientUUID != "" {
		r.byUUID[sale.ClientUUID] = sale.ID
	}
	return sale.ID, nil
}

func (r *memRepo) InsertLines(_ context.Context, saleID int64, lines []pos.SaleLine) error {
	for _, line := range lines {
		r.nextID++
		line.ID = r.nextID
		line.SaleID = saleID
		r.lines[saleID] = append(r.lines[saleID], line)
	}
	return nil
}

func (r *memRepo) FindByClientUUID(_ context.Context, uuid string) (pos.Sale, error) {
	id, ok := r.byUUID[uuid]
	if !ok {
		return pos.Sale{}, shared.ErrNotFound
	}
	return r.sales[id], nil
}

func (r *memRepo) GetSale(_ context.Context, id int64) (pos.Sale, error) {
	sale, ok := r.sales[id]
	if !ok {
		return pos.Sale{}, shared.ErrNotFound
	}
	return sale, nil
}

func (r *memRepo) GetSaleForUpdate(ctx context.Context, id int64) (pos.Sale, error) {
	return r.GetSale(ctx, id)
}

func (r *memRepo) UpdateSaleStatus(_ context.Context, id int64, status pos.SaleStatus) error {
	sale, ok := r.sales[id]
	if !ok {
		return shared.ErrNotFound
	}
	sale.Status = status
	r.sales[id] = sale
	return nil
}

func (r *memRepo) LinesForSale(_ context.Context, saleID int64) ([]pos.SaleLine, error) {
	lines := make([]pos.SaleLine, len(r.lines[saleID]))
	copy(lines, r.lines[saleID])
	return lines, nil
}

func (r *memRepo) List(_ context.Context, _ pos.Filter) ([]pos.Sale, error) {
	return nil, nil
}

type memMaster struct {
	catalog map[int64]masterdata.Product
}

func newMemMaster() *memMaster {
	return &memMaster{catalog: map[int64]masterdata.Product{
		100: {ID: 100, Code: "SKU-100", Price: decimal.RequireFromString("25.00"), Cost: decimal.RequireFromString("16.50"), IsActive: true},
		200: {ID: 200, Code: "SKU-200", Price: decimal.RequireFromString("9.99"), Cost: decimal.RequireFromString("4.00"), IsActive: true},
		300: {ID: 300, Code: "SKU-300", Price: decimal.RequireFromString("5.00"), Cost: decimal.RequireFromString("2.00"), IsActive: false},
	}}
}

func (m *memMaster) GetProducts(_ context.Context, ids []int64) (map[int64]masterdata.Product, error) {
	result := make(map[int64]masterdata.Product, len(ids))
	for _, id := range ids {
		if product, ok := m.catalog[id]; ok {
			result[id] = product
		}
	}
	return result, nil
}

func (m *memMaster) GetWarehouse(_ context.Context, id int64) (masterdata.Warehouse, error) {
	if id != 1 {
		return masterdata.Warehouse{}, shared.ErrNotFound
	}
	return masterdata.Warehouse{ID: 1, Code: "WH-A", BranchID: 10, IsActive: true}, nil
}

func newService(repo *memRepo, cfg pos.Config) *pos.Service {
	return newServiceWith(repo, newMemMaster(), cfg)
}

func newServiceWith(repo *memRepo, master *memMaster, cfg pos.Config) *pos.Service {
	return pos.NewService(repo, master, shared.NewKeyLocker(), nil, cfg)
}

func cashier() shared.Identity {
	return shared.Identity{UserID: 7, BranchID: 10, MaxDiscountPercent: decimal.RequireFromString("10")}
}

func checkoutInput() pos.CheckoutInput {
	return pos.CheckoutInput{
		ClientUUID:    clientUUID,
		WarehouseID:   1,
		SessionID:     4,
		PaymentMethod: "cash",
		PaidAmount:    decimal.RequireFromString("100.00"),
		Lines: []pos.CheckoutLine{
			{ProductID: 100, Qty: decimal.RequireFromString("2"), UnitPrice: decimal.RequireFromString("25.00")},
			{ProductID: 200, Qty: decimal.RequireFromString("3"), UnitPrice: decimal.RequireFromString("9.99")},
		},
	}
}

func seedStock(repo *memRepo, productID int64, qty string) {
	repo.led.seed[shared.StockLockKey(productID, 1)] = decimal.RequireFromString(qty)
}

func TestCheckoutSettlesBasket(t *testing.T) {
	repo := newMemRepo()
	seedStock(repo, 100, "10")
	seedStock(repo, 200, "10")
	svc := newService(repo, pos.Config{})

	detail, err := svc.Checkout(context.Background(), cashier(), checkoutInput())
	require.NoError(t, err)

	require.Equal(t, pos.SaleCompleted, detail.Sale.Status)
	require.True(t, detail.Sale.Subtotal.Equal(decimal.RequireFromString("79.97")))
	require.True(t, detail.Sale.Total.Equal(decimal.RequireFromString("79.97")))
	require.True(t, detail.Sale.ChangeAmount.Equal(decimal.RequireFromString("20.03")))
	require.Len(t, detail.Lines, 2)
	require.True(t, detail.Lines[0].UnitCost.Equal(decimal.RequireFromString("16.50")))

	require.Len(t, repo.led.movements, 2)
	for _, mv := range repo.led.movements {
		require.Equal(t, ledger.MovementSale, mv.Type)
		require.Equal(t, ledger.DirectionOut, mv.Direction)
	}

	balance, _ := repo.led.SumBalance(context.Background(), 100, 1)
	require.True(t, balance.Equal(decimal.RequireFromString("8")))
}

func TestCheckoutAppliesDiscountWithinLimit(t *testing.T) {
	repo := newMemRepo()
	seedStock(repo, 100, "10")
	seedStock(repo, 200, "10")
	svc := newService(repo, pos.Config{})

	in := checkoutInput()
	in.DiscountPercent = decimal.RequireFromString("10")
	detail, err := svc.Checkout(context.Background(), cashier(), in)
	require.NoError(t, err)

	require.True(t, detail.Sale.DiscountAmount.Equal(decimal.RequireFromString("8.00")))
	require.True(t, detail.Sale.Total.Equal(decimal.RequireFromString("71.97")))
}

func TestCheckoutReplayReturnsOriginalSale(t *testing.T) {
	repo := newMemRepo()
	seedStock(repo, 100, "10")
	seedStock(repo, 200, "10")
	svc := newService(repo, pos.Config{})
	ctx := context.Background()

	first, err := svc.Checkout(ctx, cashier(), checkoutInput())
	require.NoError(t, err)

	second, err := svc.Checkout(ctx, cashier(), checkoutInput())
	require.NoError(t, err)

	require.Equal(t, first.Sale.ID, second.Sale.ID)
	require.Equal(t, first.Sale.Number, second.Sale.Number)

	// Stock moved exactly once.
	require.Len(t, repo.led.movements, 2)
}

func TestCheckoutReplaySurvivesCatalogRepricing(t *testing.T) {
	repo := newMemRepo()
	seedStock(repo, 100, "10")
	seedStock(repo, 200, "10")
	master := newMemMaster()
	svc := newServiceWith(repo, master, pos.Config{})
	ctx := context.Background()

	first, err := svc.Checkout(ctx, cashier(), checkoutInput())
	require.NoError(t, err)

	// The catalog moves between the original commit and the retry. The retry
	// still carries the old prices, so re-running the price check would
	// reject a sale that already settled.
	product := master.catalog[100]
	product.Price = decimal.RequireFromString("30.00")
	master.catalog[100] = product

	second, err := svc.Checkout(ctx, cashier(), checkoutInput())
	require.NoError(t, err)
	require.Equal(t, first.Sale.ID, second.Sale.ID)
	require.True(t, second.Sale.Total.Equal(first.Sale.Total))

	require.Len(t, repo.led.movements, 2)
}

func TestCheckoutWithoutClientUUIDSettlesEachRequest(t *testing.T) {
	repo := newMemRepo()
	seedStock(repo, 100, "10")
	seedStock(repo, 200, "10")
	svc := newService(repo, pos.Config{})
	ctx := context.Background()

	in := checkoutInput()
	in.ClientUUID = ""

	first, err := svc.Checkout(ctx, cashier(), in)
	require.NoError(t, err)
	second, err := svc.Checkout(ctx, cashier(), in)
	require.NoError(t, err)

	require.NotEqual(t, first.Sale.ID, second.Sale.ID)
	require.Len(t, repo.led.movements, 4)
}

func TestCheckoutRejectsMalformedClientUUID(t *testing.T) {
	svc := newService(newMemRepo(), pos.Config{})

	in := checkoutInput()
	in.ClientUUID = "not-a-uuid"
	_, err := svc.Checkout(context.Background(), cashier(), in)

	var validationErr *shared.ValidationError
	require.ErrorAs(t, err, &validationErr)
	require.Equal(t, "client_uuid", validationErr.Field)
}

func TestCheckoutLosingInsertRaceFetchesWinner(t *testing.T) {
	repo := newMemRepo()
	seedStock(repo, 100, "10")
	seedStock(repo, 200, "10")
	svc := newService(repo, pos.Config{})
	ctx := context.Background()

	winner, err := svc.Checkout(ctx, cashier(), checkoutInput())
	require.NoError(t, err)

	// Force the insert path: pretend the fast-path lookup raced and missed.
	delete(repo.byUUID, clientUUID)
	repo.failNextInsert = true
	repo.byUUID[clientUUID] = winner.Sale.ID

	replay, err := svc.Checkout(ctx, cashier(), checkoutInput())
	require.NoError(t, err)
	require.Equal(t, winner.Sale.ID, replay.Sale.ID)
}

func TestCheckoutAppliesLineDiscount(t *testing.T) {
	repo := newMemRepo()
	seedStock(repo, 100, "10")
	seedStock(repo, 200, "10")
	svc := newService(repo, pos.Config{})

	in := checkoutInput()
	in.Lines[0].DiscountPercent = decimal.RequireFromString("10")
	detail, err := svc.Checkout(context.Background(), cashier(), in)
	require.NoError(t, err)

	// 2 x 25.00 less 10% on the first line, the second untouched.
	require.True(t, detail.Lines[0].LineTotal.Equal(decimal.RequireFromString("45.00")))
	require.True(t, detail.Lines[0].DiscountPercent.Equal(decimal.RequireFromString("10")))
	require.True(t, detail.Lines[1].LineTotal.Equal(decimal.RequireFromString("29.97")))
	require.True(t, detail.Sale.Subtotal.Equal(decimal.RequireFromString("74.97")))
	require.True(t, detail.Sale.Total.Equal(decimal.RequireFromString("74.97")))
}

func TestCheckoutRejectsLineDiscountAboveCashierLimit(t *testing.T) {
	repo := newMemRepo()
	seedStock(repo, 100, "10")
	seedStock(repo, 200, "10")
	svc := newService(repo, pos.Config{})

	in := checkoutInput()
	in.Lines[1].DiscountPercent = decimal.RequireFromString("15")
	_, err := svc.Checkout(context.Background(), cashier(), in)

	var policyErr *shared.PolicyViolationError
	require.ErrorAs(t, err, &policyErr)
	require.Equal(t, "max_discount", policyErr.Policy)
}

func TestCheckoutRejectsDiscountAboveCashierLimit(t *testing.T) {
	svc := newService(newMemRepo(), pos.Config{})

	in := checkoutInput()
	in.DiscountPercent = decimal.RequireFromString("15")
	_, err := svc.Checkout(context.Background(), cashier(), in)

	var policyErr *shared.PolicyViolationError
	require.ErrorAs(t, err, &policyErr)
	require.Equal(t, "max_discount", policyErr.Policy)
}

func TestCheckoutRejectsTamperedPrice(t *testing.T) {
	repo := newMemRepo()
	seedStock(repo, 100, "10")
	svc := newService(repo, pos.Config{})

	in := checkoutInput()
	in.Lines = []pos.CheckoutLine{
		{ProductID: 100, Qty: decimal.RequireFromString("1"), UnitPrice: decimal.RequireFromString("1.00")},
	}
	_, err := svc.Checkout(context.Background(), cashier(), in)

	var policyErr *shared.PolicyViolationError
	require.ErrorAs(t, err, &policyErr)
	require.Equal(t, "price_integrity", policyErr.Policy)
}

func TestCheckoutRejectsInactiveProduct(t *testing.T) {
	svc := newService(newMemRepo(), pos.Config{})

	in := checkoutInput()
	in.Lines = []pos.CheckoutLine{
		{ProductID: 300, Qty: decimal.RequireFromString("1"), UnitPrice: decimal.RequireFromString("5.00")},
	}
	_, err := svc.Checkout(context.Background(), cashier(), in)

	var integrityErr *shared.IntegrityError
	require.ErrorAs(t, err, &integrityErr)
}

func TestCheckoutRejectsOverdraw(t *testing.T) {
	repo := newMemRepo()
	seedStock(repo, 100, "1")
	seedStock(repo, 200, "10")
	svc := newService(repo, pos.Config{})

	_, err := svc.Checkout(context.Background(), cashier(), checkoutInput())

	var stockErr *shared.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	require.Equal(t, int64(100), stockErr.ProductID)
}

func TestCheckoutAllowsOverdrawWhenConfigured(t *testing.T) {
	repo := newMemRepo()
	svc := newService(repo, pos.Config{AllowNegativeStock: true})

	_, err := svc.Checkout(context.Background(), cashier(), checkoutInput())
	require.NoError(t, err)

	balance, _ := repo.led.SumBalance(context.Background(), 100, 1)
	require.True(t, balance.Equal(decimal.RequireFromString("-2")))
}

func TestCheckoutRequiresSessionWhenConfigured(t *testing.T) {
	svc := newService(newMemRepo(), pos.Config{RequireSession: true})

	in := checkoutInput()
	in.SessionID = 0
	_, err := svc.Checkout(context.Background(), cashier(), in)

	var policyErr *shared.PolicyViolationError
	require.ErrorAs(t, err, &policyErr)
	require.Equal(t, "pos_session", policyErr.Policy)
}

func TestCheckoutOnlineChannelSkipsSessionRequirement(t *testing.T) {
	repo := newMemRepo()
	seedStock(repo, 100, "10")
	seedStock(repo, 200, "10")
	svc := newService(repo, pos.Config{RequireSession: true})

	in := checkoutInput()
	in.Channel = pos.ChannelOnline
	in.SessionID = 0
	detail, err := svc.Checkout(context.Background(), cashier(), in)
	require.NoError(t, err)
	require.Equal(t, pos.ChannelOnline, detail.Sale.Channel)
}

func TestCheckoutRejectsInsufficientPayment(t *testing.T) {
	repo := newMemRepo()
	seedStock(repo, 100, "10")
	seedStock(repo, 200, "10")
	svc := newService(repo, pos.Config{})

	in := checkoutInput()
	in.PaidAmount = decimal.RequireFromString("50.00")
	_, err := svc.Checkout(context.Background(), cashier(), in)

	var validationErr *shared.ValidationError
	require.ErrorAs(t, err, &validationErr)
}

func TestRefundReturnsStock(t *testing.T) {
	repo := newMemRepo()
	seedStock(repo, 100, "10")
	seedStock(repo, 200, "10")
	svc := newService(repo, pos.Config{})
	ctx := context.Background()

	detail, err := svc.Checkout(ctx, cashier(), checkoutInput())
	require.NoError(t, err)

	refunded, err := svc.Refund(ctx, cashier(), detail.Sale.ID)
	require.NoError(t, err)
	require.Equal(t, pos.SaleRefunded, refunded.Status)

	var returns int
	for _, mv := range repo.led.movements {
		if mv.Type == ledger.MovementReturnIn {
			returns++
		}
	}
	require.Equal(t, 2, returns)

	balance, _ := repo.led.SumBalance(ctx, 100, 1)
	require.True(t, balance.Equal(decimal.RequireFromString("10")))

	// Refunding twice is rejected.
	_, err = svc.Refund(ctx, cashier(), detail.Sale.ID)
	var stateErr *shared.InvalidStateTransitionError
	require.ErrorAs(t, err, &stateErr)
}
