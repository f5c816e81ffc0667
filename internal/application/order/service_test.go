package order

import (
	"context"
	"fmt"
	"testing"

	"github.com/mochizuki-dev/marketplace/internal/application/inventory"
	"github.com/mochizuki-dev/marketplace/internal/domain/cart"
	domain "github.com/mochizuki-dev/marketplace/internal/domain/order"
	"github.com/mochizuki-dev/marketplace/internal/domain/product"
	"github.com/mochizuki-dev/marketplace/internal/domain/store"
	"github.com/mochizuki-dev/marketplace/internal/infrastructure/memory"
	"github.com/stretchr/testify/require"
)

type seqIDGenerator struct{ n int }

func (g *seqIDGenerator) NewID() string {
	g.n++
	return fmt.Sprintf("order-%d", g.n)
}

type fixture struct {
	service  *Service
	orders   *memory.OrderRepository
	stores   *memory.StoreRepository
	products *memory.ProductRepository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	orders := memory.NewOrderRepository()
	stores := memory.NewStoreRepository()
	products := memory.NewProductRepository()

	require.NoError(t, stores.Save(ctx, store.New("store-1", "Books", map[string]int{
		"prod-1": 10,
		"prod-2": 10,
	})))
	require.NoError(t, products.Save(ctx, &product.Product{ID: "prod-1", StoreID: "store-1", Price: 10.0}))
	require.NoError(t, products.Save(ctx, &product.Product{ID: "prod-2", StoreID: "store-1", Price: 5.0}))

	guard := inventory.NewGuard(stores, nil)
	return &fixture{
		service:  NewService(orders, products, guard, &seqIDGenerator{}, nil, nil),
		orders:   orders,
		stores:   stores,
		products: products,
	}
}

func (f *fixture) stock(t *testing.T, storeID, productID string) int {
	t.Helper()
	st, err := f.stores.FindByID(context.Background(), storeID)
	require.NoError(t, err)
	qty, _ := st.Stock(productID)
	return qty
}

func newCart(t *testing.T, items map[string]map[string]int) *cart.Cart {
	t.Helper()
	c := cart.New()
	for storeID, basket := range items {
		for productID, qty := range basket {
			require.NoError(t, c.AddItem(storeID, productID, qty))
		}
	}
	return c
}

func TestCreatePendingOrders_PricesAndReserves(t *testing.T) {
	f := newFixture(t)
	c := newCart(t, map[string]map[string]int{
		"store-1": {"prod-1": 2, "prod-2": 3},
	})

	orders, err := f.service.CreatePendingOrders(context.Background(), domain.NewBuyer("alice"), c)
	require.NoError(t, err)
	require.Len(t, orders, 1)

	o := orders[0]
	require.Equal(t, domain.StatusPending, o.Status)
	require.Equal(t, 35.0, o.TotalPrice)
	require.Equal(t, o.TotalPrice, o.FinalPrice, "v1 pricing has no discounts")
	require.Equal(t, "alice", o.Buyer.Name)

	require.Equal(t, 8, f.stock(t, "store-1", "prod-1"))
	require.Equal(t, 7, f.stock(t, "store-1", "prod-2"))

	persisted, err := f.orders.FindByID(context.Background(), o.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusPending, persisted.Status)
}

func TestCreatePendingOrders_OnePerStore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.stores.Save(ctx, store.New("store-2", "Games", map[string]int{"prod-3": 5})))
	require.NoError(t, f.products.Save(ctx, &product.Product{ID: "prod-3", StoreID: "store-2", Price: 20.0}))

	c := newCart(t, map[string]map[string]int{
		"store-1": {"prod-1": 1},
		"store-2": {"prod-3": 1},
	})

	orders, err := f.service.CreatePendingOrders(ctx, domain.NewBuyer("alice"), c)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	require.Equal(t, "store-1", orders[0].StoreID)
	require.Equal(t, "store-2", orders[1].StoreID)
}

func TestCreatePendingOrders_JointValidationBlocksEveryStore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.stores.Save(ctx, store.New("store-2", "Games", map[string]int{"prod-3": 1})))
	require.NoError(t, f.products.Save(ctx, &product.Product{ID: "prod-3", StoreID: "store-2", Price: 20.0}))

	c := newCart(t, map[string]map[string]int{
		"store-1": {"prod-1": 1}, // valid on its own
		"store-2": {"prod-3": 2}, // exceeds stock
	})

	orders, err := f.service.CreatePendingOrders(ctx, domain.NewBuyer("alice"), c)
	require.Nil(t, orders)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Len(t, verr.Problems, 1)
	require.Contains(t, verr.Problems[0], store.ReasonInsufficientStock)

	// All-or-nothing at the cart level: the valid store is untouched too.
	require.Equal(t, 10, f.stock(t, "store-1", "prod-1"))
	require.Equal(t, 1, f.stock(t, "store-2", "prod-3"))

	created, err := f.orders.FindByBuyer(ctx, "alice")
	require.NoError(t, err)
	require.Empty(t, created)
}

func TestCreatePendingOrders_UnknownCatalogProduct(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	st, err := f.stores.FindByID(ctx, "store-1")
	require.NoError(t, err)
	st.SetStock("prod-ghost", 5)
	require.NoError(t, f.stores.Save(ctx, st))

	c := newCart(t, map[string]map[string]int{
		"store-1": {"prod-ghost": 1},
	})

	_, err = f.service.CreatePendingOrders(ctx, domain.NewBuyer("alice"), c)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Contains(t, verr.Problems[0], "not in catalog")
}

func TestFinalizeOrders_AttachesRefsAndMarksPaid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := newCart(t, map[string]map[string]int{"store-1": {"prod-1": 1}})

	orders, err := f.service.CreatePendingOrders(ctx, domain.NewBuyer("alice"), c)
	require.NoError(t, err)

	refs := map[string]string{orders[0].ID: "ship-tx-1"}
	require.NoError(t, f.service.FinalizeOrders(ctx, orders, "pay-tx-1", refs))

	persisted, err := f.orders.FindByID(ctx, orders[0].ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusPaid, persisted.Status)
	require.Equal(t, "pay-tx-1", persisted.PaymentRef)
	require.Equal(t, "ship-tx-1", persisted.ShipmentRef)
}

func TestFinalizeOrders_RefusesNonPendingOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := newCart(t, map[string]map[string]int{"store-1": {"prod-1": 1}})

	orders, err := f.service.CreatePendingOrders(ctx, domain.NewBuyer("alice"), c)
	require.NoError(t, err)
	require.True(t, orders[0].Cancel())

	err = f.service.FinalizeOrders(ctx, orders, "pay-tx-1", nil)
	require.ErrorIs(t, err, ErrFinalize)
}

func TestCancelOrders_RestoresStockAndKeepsAuditRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := newCart(t, map[string]map[string]int{"store-1": {"prod-1": 4}})

	orders, err := f.service.CreatePendingOrders(ctx, domain.NewBuyer("alice"), c)
	require.NoError(t, err)
	require.Equal(t, 6, f.stock(t, "store-1", "prod-1"))

	failures := f.service.CancelOrders(ctx, orders)
	require.Empty(t, failures)
	require.Equal(t, 10, f.stock(t, "store-1", "prod-1"))

	persisted, err := f.orders.FindByID(ctx, orders[0].ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusCanceled, persisted.Status)
}

func TestCancelOrders_SkipsTerminalOrders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := newCart(t, map[string]map[string]int{"store-1": {"prod-1": 4}})

	orders, err := f.service.CreatePendingOrders(ctx, domain.NewBuyer("alice"), c)
	require.NoError(t, err)

	require.Empty(t, f.service.CancelOrders(ctx, orders))
	// A second cancel of the same batch must not restore stock twice.
	require.Empty(t, f.service.CancelOrders(ctx, orders))
	require.Equal(t, 10, f.stock(t, "store-1", "prod-1"))
}

func TestMarkShippedAndCompleted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := newCart(t, map[string]map[string]int{"store-1": {"prod-1": 1}})

	orders, err := f.service.CreatePendingOrders(ctx, domain.NewBuyer("alice"), c)
	require.NoError(t, err)
	orderID := orders[0].ID

	require.Error(t, f.service.MarkShipped(ctx, orderID), "cannot ship an unpaid order")

	require.NoError(t, f.service.FinalizeOrders(ctx, orders, "pay-tx-1", nil))
	require.NoError(t, f.service.MarkShipped(ctx, orderID))
	require.NoError(t, f.service.MarkCompleted(ctx, orderID))

	persisted, err := f.orders.FindByID(ctx, orderID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusCompleted, persisted.Status)
}
