package orders_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"supplyhub/internal/core/types"
	"supplyhub/internal/domain/events"
	"supplyhub/internal/domain/inventory"
	"supplyhub/internal/domain/orders"
	"supplyhub/internal/domain/reconcile"
	"supplyhub/internal/infrastructure/numerator"
	"supplyhub/internal/infrastructure/storage/local"
)

const testSupplier inventory.SupplierID = 3

type fixture struct {
	store     *local.Store
	repo      *local.OrderRepo
	products  *local.ProductRepo
	suppliers *local.SupplierRepo
	ledger    *local.LedgerRepo
	svc       *orders.Service

	mu        sync.Mutex
	published []events.Event
}

type fixtureOption func(*orders.Deps, *reconcile.Config)

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()
	return newFixtureWith(t, orders.DefaultConfig(), opts...)
}

func newFixtureWith(t *testing.T, cfg orders.Config, opts ...fixtureOption) *fixture {
	t.Helper()

	store := local.New()
	f := &fixture{
		store:     store,
		repo:      local.NewOrderRepo(store),
		products:  local.NewProductRepo(store),
		suppliers: local.NewSupplierRepo(store),
		ledger:    local.NewLedgerRepo(store),
	}
	txm := local.NewTxManager(store)

	bus := events.NewBus()
	bus.SubscribeAll(func(_ context.Context, e events.Event) error {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.published = append(f.published, e)
		return nil
	})

	deps := orders.Deps{
		Repo:      f.repo,
		TxManager: txm,
		Numerator: numerator.New(local.NewSequenceRepo(store)),
		Suppliers: f.suppliers,
		Products:  f.products,
		Movements: f.ledger,
		Publisher: bus,
	}
	rcfg := reconcile.DefaultConfig()
	for _, opt := range opts {
		opt(&deps, &rcfg)
	}
	if deps.Reconciler == nil {
		deps.Reconciler = reconcile.New(reconcile.Deps{
			Products:  f.products,
			Ledger:    f.ledger,
			Items:     f.repo,
			TxManager: txm,
		}, rcfg)
	}

	f.svc = orders.NewService(deps, cfg)

	require.NoError(t, f.suppliers.Save(context.Background(), &inventory.Supplier{
		ID:          testSupplier,
		Name:        "Grossiste Nord",
		ContactName: "Claire",
		Phone:       "0102030405",
		Email:       "nord@example.com",
		Active:      true,
	}))
	return f
}

func (f *fixture) addProduct(t *testing.T, pid inventory.ProductID, name string, stock int64) {
	t.Helper()
	require.NoError(t, f.products.Create(context.Background(), &inventory.Product{
		ID:            pid,
		Name:          name,
		PurchasePrice: types.MustMoney("4.00"),
		SalePrice:     types.MustMoney("6.00"),
		Stock:         types.NewQuantity(stock),
		CreatedAt:     time.Now().UTC().Add(-24 * time.Hour),
	}))
}

func (f *fixture) createOrder(t *testing.T, items ...orders.ItemInput) *orders.CreatedOrder {
	t.Helper()
	created, err := f.svc.CreateOrder(context.Background(), orders.CreateInput{
		SupplierID: testSupplier,
		Items:      items,
	})
	require.NoError(t, err)
	return created
}

func (f *fixture) stock(t *testing.T, pid inventory.ProductID) types.Quantity {
	t.Helper()
	p, err := f.products.GetByID(context.Background(), pid)
	require.NoError(t, err)
	return p.Stock
}

func (f *fixture) lots(t *testing.T, pid inventory.ProductID) []inventory.StockLot {
	t.Helper()
	lots, err := f.ledger.GetProductLots(context.Background(), pid, inventory.LotQuery{IncludeEmpty: true})
	require.NoError(t, err)
	return lots
}

func (f *fixture) eventsOf(typ events.Type) []events.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []events.Event
	for _, e := range f.published {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

func line(pid inventory.ProductID, qty int64, price string) orders.ItemInput {
	return orders.ItemInput{
		ProductID:       &pid,
		QuantityOrdered: types.NewQuantity(qty),
		UnitPrice:       types.MustMoney(price),
	}
}

func namedLine(name string, qty int64, price string) orders.ItemInput {
	return orders.ItemInput{
		ProductName:     name,
		QuantityOrdered: types.NewQuantity(qty),
		UnitPrice:       types.MustMoney(price),
	}
}

func ptr[T any](v T) *T { return &v }
