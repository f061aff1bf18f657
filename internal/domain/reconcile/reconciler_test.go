package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supplyhub/internal/core/apperror"
	"supplyhub/internal/core/id"
	"supplyhub/internal/core/types"
	"supplyhub/internal/domain/inventory"
	"supplyhub/internal/domain/orders"
	"supplyhub/internal/infrastructure/storage/local"
)

// failingLedger fails lot creation, as when the lot tables are unavailable.
type failingLedger struct {
	*local.LedgerRepo
}

var errLedgerDown = errors.New("stock_lots unavailable")

func (failingLedger) CreateLot(context.Context, *inventory.StockLot) error {
	return errLedgerDown
}

type harness struct {
	store    *local.Store
	txm      *local.TxManager
	orders   *local.OrderRepo
	products *local.ProductRepo
	ledger   *local.LedgerRepo
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := local.New()
	return &harness{
		store:    store,
		txm:      local.NewTxManager(store),
		orders:   local.NewOrderRepo(store),
		products: local.NewProductRepo(store),
		ledger:   local.NewLedgerRepo(store),
	}
}

func (h *harness) reconciler(ledger inventory.LotLedger, cfg Config) *Reconciler {
	return New(Deps{
		Products:  h.products,
		Ledger:    ledger,
		Items:     h.orders,
		TxManager: h.txm,
	}, cfg)
}

func (h *harness) product(t *testing.T, pid inventory.ProductID, name string, stock int64) {
	t.Helper()
	require.NoError(t, h.products.Create(context.Background(), &inventory.Product{
		ID:            pid,
		Name:          name,
		PurchasePrice: types.MustMoney("2.00"),
		Stock:         types.NewQuantity(stock),
		CreatedAt:     time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}))
}

// order persists an order with the given lines.
func (h *harness) order(t *testing.T, items ...orders.OrderItem) (*orders.Order, []orders.OrderItem) {
	t.Helper()
	ctx := context.Background()
	o := orders.NewOrder(3)
	o.OrderNumber = "PO-2026-000042"
	require.NoError(t, h.orders.Create(ctx, o))
	for i := range items {
		items[i].OrderID = o.ID
		items[i].LineNo = i + 1
		items[i].Recalculate()
		require.NoError(t, h.orders.AddItem(ctx, &items[i]))
	}
	return o, items
}

func (h *harness) run(t *testing.T, r *Reconciler, o *orders.Order, items []orders.OrderItem, from, to orders.Status) (*orders.Outcome, error) {
	t.Helper()
	var out *orders.Outcome
	err := h.txm.RunInTransaction(context.Background(), func(ctx context.Context) error {
		var err error
		out, err = r.Reconcile(ctx, o, items, from, to)
		return err
	})
	return out, err
}

func (h *harness) stock(t *testing.T, pid inventory.ProductID) types.Quantity {
	t.Helper()
	p, err := h.products.GetByID(context.Background(), pid)
	require.NoError(t, err)
	return p.Stock
}

func bound(pid inventory.ProductID, qty int64, price string) orders.OrderItem {
	return orders.OrderItem{
		ProductID:       &pid,
		QuantityOrdered: types.NewQuantity(qty),
		UnitPrice:       types.MustMoney(price),
	}
}

func TestReconcile_AddStock(t *testing.T) {
	h := newHarness(t)
	h.product(t, 7, "Farine", 0)
	o, items := h.order(t, bound(7, 10, "5"))

	out, err := h.run(t, h.reconciler(h.ledger, DefaultConfig()), o, items, orders.StatusPending, orders.StatusConfirmed)
	require.NoError(t, err)

	assert.Equal(t, orders.ActionAddStock, out.Action)
	require.Len(t, out.Lots, 1)
	assert.Equal(t, types.NewQuantity(10), out.Lots[0].Delta)
	require.Len(t, out.Movements, 1)
	assert.Equal(t, inventory.MovementIn, out.Movements[0].MovementType)
	assert.Equal(t, o.ID.String(), out.Movements[0].ReferenceID)
	assert.Equal(t, types.NewQuantity(10), out.StockAfter[7])
	assert.False(t, out.ReconciliationNeeded)

	assert.Equal(t, types.NewQuantity(10), h.stock(t, 7))
}

// Stock recorded before lot tracking gets an opening lot, so lot sums keep
// matching the product stock.
func TestReconcile_AddStockOpensLegacyBalance(t *testing.T) {
	h := newHarness(t)
	h.product(t, 7, "Farine", 4)
	o, items := h.order(t, bound(7, 10, "5"))

	_, err := h.run(t, h.reconciler(h.ledger, DefaultConfig()), o, items, orders.StatusPending, orders.StatusConfirmed)
	require.NoError(t, err)

	lots, err := h.ledger.GetProductLots(context.Background(), 7, inventory.LotQuery{})
	require.NoError(t, err)
	require.Len(t, lots, 2)
	assert.Equal(t, "LOT-INIT-007", lots[0].LotNumber)
	assert.Equal(t, types.NewQuantity(4), lots[0].Quantity)
	assert.Equal(t, types.NewQuantity(14), h.stock(t, 7))
}

func TestReconcile_RemoveStockFIFO(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.product(t, 7, "Farine", 0)

	d1 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	d2 := d1.AddDate(0, 1, 0)
	older := &inventory.StockLot{ProductID: 7, LotNumber: "LOT-A", Quantity: types.NewQuantity(3), InitialQuantity: types.NewQuantity(3), PurchasePrice: types.MustMoney("1"), PurchaseDate: d1, Status: inventory.LotAvailable}
	newer := &inventory.StockLot{ProductID: 7, LotNumber: "LOT-B", Quantity: types.NewQuantity(5), InitialQuantity: types.NewQuantity(5), PurchasePrice: types.MustMoney("2"), PurchaseDate: d2, Status: inventory.LotAvailable}
	// Insert newest first so ordering cannot come from insertion.
	require.NoError(t, h.ledger.CreateLot(ctx, newer))
	require.NoError(t, h.ledger.CreateLot(ctx, older))
	_, err := h.ledger.SyncProductStock(ctx, 7)
	require.NoError(t, err)

	o, items := h.order(t, bound(7, 4, "2"))
	out, err := h.run(t, h.reconciler(h.ledger, DefaultConfig()), o, items, orders.StatusConfirmed, orders.StatusCancelled)
	require.NoError(t, err)

	require.Len(t, out.Lots, 2)
	assert.Equal(t, "LOT-A", out.Lots[0].LotNumber)
	assert.Equal(t, types.NewQuantity(-3), out.Lots[0].Delta)
	assert.True(t, out.Lots[0].Remaining.IsZero())
	assert.Equal(t, "LOT-B", out.Lots[1].LotNumber)
	assert.Equal(t, types.NewQuantity(-1), out.Lots[1].Delta)
	assert.Equal(t, types.NewQuantity(4), out.Lots[1].Remaining)

	require.Len(t, out.Movements, 2)
	assert.True(t, types.MustMoney("1").Equal(out.Movements[0].UnitCost))
	assert.Equal(t, types.NewQuantity(4), h.stock(t, 7))

	cost, err := h.ledger.CalculateAverageCost(ctx, 7)
	require.NoError(t, err)
	assert.True(t, types.MustMoney("2").Equal(cost))
}

func TestReconcile_RemoveStockMergesLinesOfSameProduct(t *testing.T) {
	h := newHarness(t)
	h.product(t, 7, "Farine", 0)
	o, items := h.order(t, bound(7, 4, "5"), bound(7, 6, "5"))
	r := h.reconciler(h.ledger, DefaultConfig())

	_, err := h.run(t, r, o, items, orders.StatusPending, orders.StatusConfirmed)
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantity(10), h.stock(t, 7))

	out, err := h.run(t, r, o, items, orders.StatusConfirmed, orders.StatusCancelled)
	require.NoError(t, err)
	assert.True(t, out.StockAfter[7].IsZero())
	assert.True(t, h.stock(t, 7).IsZero())
}

func TestReconcile_Shortfall(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.product(t, 7, "Farine", 0)
	h.product(t, 8, "Sucre", 0)
	o, items := h.order(t, bound(7, 2, "1"), bound(8, 10, "1"))
	r := h.reconciler(h.ledger, DefaultConfig())

	_, err := h.run(t, r, o, items, orders.StatusPending, orders.StatusConfirmed)
	require.NoError(t, err)
	lots, err := h.ledger.GetProductLots(ctx, 8, inventory.LotQuery{})
	require.NoError(t, err)
	_, err = h.ledger.ConsumeLot(ctx, lots[0].ID, types.NewQuantity(3))
	require.NoError(t, err)

	_, err = h.run(t, r, o, items, orders.StatusConfirmed, orders.StatusCancelled)
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeInsufficientStock, appErr.Code)
	assert.InDelta(t, 3.0, appErr.Details["shortfall"], 1e-9)

	// Product 7 was drained before product 8 failed; the transaction undid it.
	assert.Equal(t, types.NewQuantity(2), h.stock(t, 7))
	lots, err = h.ledger.GetProductLots(ctx, 7, inventory.LotQuery{})
	require.NoError(t, err)
	require.Len(t, lots, 1)
	assert.Equal(t, types.NewQuantity(2), lots[0].Quantity)
}

func TestReconcile_PartialRemoval(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.product(t, 7, "Farine", 0)
	h.product(t, 8, "Sucre", 0)
	o, items := h.order(t, bound(7, 2, "1"), bound(8, 10, "1"))
	cfg := DefaultConfig()
	cfg.PartialRemoval = true
	r := h.reconciler(h.ledger, cfg)

	_, err := h.run(t, r, o, items, orders.StatusPending, orders.StatusConfirmed)
	require.NoError(t, err)
	lots, err := h.ledger.GetProductLots(ctx, 8, inventory.LotQuery{})
	require.NoError(t, err)
	_, err = h.ledger.ConsumeLot(ctx, lots[0].ID, types.NewQuantity(3))
	require.NoError(t, err)

	out, err := h.run(t, r, o, items, orders.StatusConfirmed, orders.StatusCancelled)
	require.NoError(t, err)
	assert.True(t, out.ReconciliationNeeded)
	require.Len(t, out.Shortfalls, 1)
	assert.Equal(t, orders.Shortfall{
		ProductID: 8,
		Requested: types.NewQuantity(10),
		Removed:   types.NewQuantity(7),
		Missing:   types.NewQuantity(3),
	}, out.Shortfalls[0])

	assert.True(t, h.stock(t, 7).IsZero())
	assert.True(t, h.stock(t, 8).IsZero())
	assert.Len(t, out.Movements, 2)
}

func TestReconcile_NoAction(t *testing.T) {
	h := newHarness(t)
	h.product(t, 7, "Farine", 0)
	o, items := h.order(t, bound(7, 1, "1"))

	out, err := h.run(t, h.reconciler(h.ledger, DefaultConfig()), o, items, orders.StatusConfirmed, orders.StatusShipped)
	require.NoError(t, err)
	assert.Equal(t, orders.ActionNone, out.Action)
	assert.True(t, h.stock(t, 7).IsZero())
}

func TestReconcile_DirectPatchFallback(t *testing.T) {
	h := newHarness(t)
	h.product(t, 7, "Farine", 2)
	o, items := h.order(t, bound(7, 10, "5"))

	out, err := h.run(t, h.reconciler(failingLedger{h.ledger}, DefaultConfig()), o, items, orders.StatusPending, orders.StatusConfirmed)
	require.NoError(t, err)

	assert.True(t, out.ReconciliationNeeded)
	require.Len(t, out.DirectPatches, 1)
	patch := out.DirectPatches[0]
	assert.Equal(t, types.NewQuantity(2), patch.PreviousStock)
	assert.Equal(t, types.NewQuantity(12), patch.NewStock)
	assert.Contains(t, patch.Reason, errLedgerDown.Error())
	assert.Empty(t, out.Lots)

	assert.Equal(t, types.NewQuantity(12), h.stock(t, 7))

	// The opening lot created inside the failed scope was rolled back.
	lots, err := h.ledger.GetProductLots(context.Background(), 7, inventory.LotQuery{IncludeEmpty: true})
	require.NoError(t, err)
	assert.Empty(t, lots)
}

func TestReconcile_FallbackDisabled(t *testing.T) {
	h := newHarness(t)
	h.product(t, 7, "Farine", 2)
	o, items := h.order(t, bound(7, 10, "5"))

	cfg := DefaultConfig()
	cfg.DirectPatchFallback = false
	_, err := h.run(t, h.reconciler(failingLedger{h.ledger}, cfg), o, items, orders.StatusPending, orders.StatusConfirmed)
	assert.ErrorIs(t, err, errLedgerDown)
	assert.Equal(t, types.NewQuantity(2), h.stock(t, 7))
}

func TestReconcile_MissingProductSkipped(t *testing.T) {
	h := newHarness(t)
	o, items := h.order(t, bound(99, 1, "1"))

	out, err := h.run(t, h.reconciler(h.ledger, DefaultConfig()), o, items, orders.StatusPending, orders.StatusConfirmed)
	require.NoError(t, err)
	assert.Equal(t, []id.ID{items[0].ID}, out.SkippedItems)
	assert.True(t, out.ReconciliationNeeded)
}

func TestEnsureProductIDs_Idempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.product(t, 8, "Sucre", 0)
	h.product(t, 9, "Sel", 0)
	require.NoError(t, h.products.Update(ctx, &inventory.Product{ID: 9, Name: "Sel", Reference: "SEL-1KG"}))

	o, items := h.order(t,
		orders.OrderItem{ProductName: "SUCRE", QuantityOrdered: types.NewQuantity(1), UnitPrice: types.MustMoney("1")},
		orders.OrderItem{ProductName: "Sel fin", ProductReference: "sel-1kg", QuantityOrdered: types.NewQuantity(1), UnitPrice: types.MustMoney("1")},
		orders.OrderItem{ProductName: "Miel", QuantityOrdered: types.NewQuantity(1), UnitPrice: types.MustMoney("8.00")},
		orders.OrderItem{ProductName: "miel", QuantityOrdered: types.NewQuantity(2), UnitPrice: types.MustMoney("8.00")},
	)

	resolver := NewProductResolver(h.products, h.orders, DefaultConfig())
	n, err := resolver.EnsureProductIDs(ctx, o, items)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	assert.Equal(t, inventory.ProductID(8), *items[0].ProductID)
	assert.Equal(t, inventory.ProductID(9), *items[1].ProductID)
	assert.Equal(t, *items[2].ProductID, *items[3].ProductID, "same name resolves to one product")

	miel, err := h.products.GetByID(ctx, *items[2].ProductID)
	require.NoError(t, err)
	assert.True(t, types.MustMoney("10.4").Equal(miel.SalePrice))
	require.NotNil(t, miel.SupplierID)
	assert.Equal(t, o.SupplierID, *miel.SupplierID)

	n, err = resolver.EnsureProductIDs(ctx, o, items)
	require.NoError(t, err)
	assert.Zero(t, n)

	stored, err := h.orders.GetItems(ctx, o.ID)
	require.NoError(t, err)
	for _, it := range stored {
		assert.True(t, it.HasProduct())
	}

	all, err := h.products.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
