package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phenrril/storefront/internal/adapters/repo/memory"
	"github.com/phenrril/storefront/internal/domain"
)

type fakeGateway struct {
	mu     sync.Mutex
	result domain.PaymentResult
	err    error
	calls  int
}

func (g *fakeGateway) InitiatePayment(ctx context.Context, o *domain.Order, data domain.PaymentData) (domain.PaymentResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	return g.result, g.err
}

// methodGateway accepts only the listed payment methods.
type methodGateway struct {
	*fakeGateway
	methods []string
}

func (g methodGateway) Supports(method string) bool {
	for _, m := range g.methods {
		if m == method {
			return true
		}
	}
	return false
}

type fakeNotifier struct {
	mu     sync.Mutex
	err    error
	orders []uuid.UUID
}

func (n *fakeNotifier) OrderPlaced(ctx context.Context, o *domain.Order) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.orders = append(n.orders, o.ID)
	return n.err
}

type orderFixture struct {
	*fixture
	gateway  *fakeGateway
	notifier *fakeNotifier
	carts    *memory.CartStore
	uc       *OrderUC
}

func newOrderFixture() *orderFixture {
	f := newFixture()
	of := &orderFixture{
		fixture:  f,
		gateway:  &fakeGateway{result: domain.PaymentResult{Success: true, ProviderReference: "ref-1"}},
		notifier: &fakeNotifier{},
		carts:    memory.NewCartStore(),
	}
	of.uc = &OrderUC{
		Store:     f.store,
		Cart:      f.cart,
		Inventory: f.inventory,
		Gateway:   of.gateway,
		Notifier:  of.notifier,
		Carts:     of.carts,
		TaxRate:   dec("0.10"),
	}
	return of
}

func placeInput(items ...domain.CartItem) PlaceOrderInput {
	return PlaceOrderInput{
		Holder: "user-1",
		Items:  items,
		Order: OrderData{
			PaymentMethod:  "card",
			ShippingMethod: "courier",
			ShippingCost:   dec("5.00"),
			DiscountAmount: dec("2.00"),
			Email:          "a@b.c",
			Name:           "Ana",
		},
		Shipping: domain.Address{FullName: "Ana", Line1: "Main 1", City: "Rosario", Country: "AR"},
	}
}

func TestCreateOrderFromCart(t *testing.T) {
	f := newOrderFixture()
	ctx := context.Background()
	p := f.simpleProduct(t, 1000, 10)
	shirt := f.variantProduct(t, 5000)
	v := f.addVariant(t, shirt, 3, cents(6000), "Size", "L", "Color", "Red")
	require.NoError(t, f.carts.Save(ctx, "user-1", []domain.CartItem{lineFor(p, nil, 1, "10.00")}))

	res, err := f.uc.CreateOrderFromCart(ctx, placeInput(
		lineFor(p, nil, 2, "10.00"),
		lineFor(shirt, v, 3, "60.00"),
	))
	require.NoError(t, err)
	assert.Equal(t, StageCompleted, res.Stage)

	o, err := f.uc.GetOrder(ctx, res.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusNew, o.Status)
	assert.Equal(t, domain.PaymentStatusPaid, o.PaymentStatus)
	assert.Equal(t, "ref-1", o.PaymentReference)
	assert.Equal(t, "200.00", o.Subtotal.StringFixed(2))
	assert.Equal(t, "20.00", o.TaxAmount.StringFixed(2))
	assert.Equal(t, "223.00", o.GrandTotal.StringFixed(2))
	require.Len(t, o.Items, 2)
	require.NotNil(t, o.Address)
	assert.Equal(t, "Rosario", o.Address.City)
	assert.True(t, o.Notified)

	var shirtLine domain.OrderItem
	for _, it := range o.Items {
		if it.VariantID != nil {
			shirtLine = it
		}
	}
	assert.Equal(t, v.SKU, shirtLine.SKU)
	assert.Equal(t, domain.OptionsOf("Size", "L", "Color", "Red"), shirtLine.Options)

	assert.Equal(t, 8, f.reload(t, p.ID).StockQuantity)
	assert.Equal(t, 0, f.variantStock(t, v.ID))

	changes := map[uuid.UUID]StockChange{}
	for _, c := range res.StockChanges {
		changes[c.ProductID] = c
	}
	assert.Equal(t, domain.StockStatusOutOfStock, changes[shirt.ID].Status)
	assert.Equal(t, 8, changes[p.ID].Remaining)

	cart, err := f.carts.Load(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, cart)
	assert.Equal(t, []uuid.UUID{o.ID}, f.notifier.orders)
}

func TestCreateOrderFailsFastOnShortStock(t *testing.T) {
	f := newOrderFixture()
	ctx := context.Background()
	p := f.simpleProduct(t, 1000, 10)
	shirt := f.variantProduct(t, 5000)
	v := f.addVariant(t, shirt, 3, nil, "Size", "L")

	_, err := f.uc.CreateOrderFromCart(ctx, placeInput(
		lineFor(p, nil, 1, "10.00"),
		lineFor(shirt, v, 5, "50.00"),
	))
	var short *domain.InsufficientStockError
	require.ErrorAs(t, err, &short)
	assert.Equal(t, 5, short.Requested)
	assert.Equal(t, 3, short.Available)

	assert.Zero(t, f.store.CountOrders())
	assert.Equal(t, 10, f.reload(t, p.ID).StockQuantity)
	assert.Equal(t, 3, f.variantStock(t, v.ID))
	assert.Zero(t, f.gateway.calls)
}

func TestCreateOrderAggregatesSameVariant(t *testing.T) {
	f := newOrderFixture()
	ctx := context.Background()
	p := f.simpleProduct(t, 1000, 3)

	a := lineFor(p, nil, 2, "10.00")
	b := lineFor(p, nil, 2, "10.00")
	b.SelectedOptions = domain.OptionsOf("Engraving", "yes")
	_, err := f.uc.CreateOrderFromCart(ctx, placeInput(a, b))
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
	assert.Equal(t, 3, f.reload(t, p.ID).StockQuantity)
}

func TestCreateOrderRejectsInvalidCart(t *testing.T) {
	f := newOrderFixture()
	ctx := context.Background()
	p := f.simpleProduct(t, 9999, 10)

	_, err := f.uc.CreateOrderFromCart(ctx, placeInput(lineFor(p, nil, 1, "199.99")))
	var rejected *CartRejectedError
	require.ErrorAs(t, err, &rejected)
	assert.ErrorIs(t, err, domain.ErrCartInvalid)
	assert.Contains(t, rejected.Result.ItemErrors[0][0], "Price mismatch detected")
	assert.Zero(t, f.store.CountOrders())

	_, err = f.uc.CreateOrderFromCart(ctx, placeInput())
	assert.ErrorIs(t, err, domain.ErrCartInvalid)

	in := placeInput(lineFor(p, nil, 1, "99.99"))
	in.Holder = ""
	_, err = f.uc.CreateOrderFromCart(ctx, in)
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
}

func TestCreateOrderPaymentFailureKeepsOrder(t *testing.T) {
	f := newOrderFixture()
	ctx := context.Background()
	p := f.simpleProduct(t, 1000, 5)
	f.gateway.result = domain.PaymentResult{Success: false, Reason: "card declined"}

	res, err := f.uc.CreateOrderFromCart(ctx, placeInput(lineFor(p, nil, 2, "10.00")))
	var perr *domain.PaymentError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "card declined", perr.Reason)
	require.NotNil(t, res)
	assert.Equal(t, StageFailed, res.Stage)

	o, err := f.uc.GetOrder(ctx, perr.OrderID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusFailed, o.PaymentStatus)
	assert.Equal(t, 3, f.reload(t, p.ID).StockQuantity)
	assert.Empty(t, f.notifier.orders)

	o, err = f.uc.ConfirmPayment(ctx, o.ID, domain.PaymentStatusPaid, "retry-1")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPaid, o.PaymentStatus)
	assert.Equal(t, []uuid.UUID{o.ID}, f.notifier.orders)

	_, err = f.uc.ConfirmPayment(ctx, o.ID, domain.PaymentStatusFailed, "")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestCreateOrderGatewayErrorAndPending(t *testing.T) {
	f := newOrderFixture()
	ctx := context.Background()
	p := f.simpleProduct(t, 1000, 5)

	f.gateway.result = domain.PaymentResult{}
	f.gateway.err = errors.New("timeout")
	_, err := f.uc.CreateOrderFromCart(ctx, placeInput(lineFor(p, nil, 1, "10.00")))
	var perr *domain.PaymentError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "timeout", perr.Reason)

	f.gateway.err = nil
	f.gateway.result = domain.PaymentResult{Success: true, Status: domain.PaymentStatusPending}
	res, err := f.uc.CreateOrderFromCart(ctx, placeInput(lineFor(p, nil, 1, "10.00")))
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPending, res.Order.PaymentStatus)
}

func TestNotificationFailureDoesNotFailOrder(t *testing.T) {
	f := newOrderFixture()
	ctx := context.Background()
	p := f.simpleProduct(t, 1000, 5)
	f.notifier.err = errors.New("broker down")

	res, err := f.uc.CreateOrderFromCart(ctx, placeInput(lineFor(p, nil, 1, "10.00")))
	require.NoError(t, err)
	o, err := f.uc.GetOrder(ctx, res.Order.ID)
	require.NoError(t, err)
	assert.False(t, o.Notified)
	assert.Equal(t, domain.PaymentStatusPaid, o.PaymentStatus)
}

func TestCreateOrderFulfillsHolderReservations(t *testing.T) {
	f := newOrderFixture()
	ctx := context.Background()
	p := f.simpleProduct(t, 1000, 5)
	ruc := &ReservationUC{Store: f.store, Inventory: f.inventory}
	hold, err := ruc.Reserve(ctx, ReserveInput{Holder: "user-1", ProductID: p.ID, Quantity: 2})
	require.NoError(t, err)

	_, err = f.uc.CreateOrderFromCart(ctx, placeInput(lineFor(p, nil, 2, "10.00")))
	require.NoError(t, err)

	got, err := f.store.Reservations().FindByID(ctx, hold.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ReservationFulfilled, got.Status)
	assert.Equal(t, 3, f.reload(t, p.ID).StockQuantity)
}

func TestConcurrentCheckoutsForLastUnit(t *testing.T) {
	f := newOrderFixture()
	ctx := context.Background()
	shirt := f.variantProduct(t, 5000)
	v := f.addVariant(t, shirt, 1, nil, "Size", "M")

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			in := placeInput(lineFor(shirt, v, 1, "50.00"))
			in.Holder = uuid.NewString()
			_, errs[i] = f.uc.CreateOrderFromCart(ctx, in)
		}(i)
	}
	wg.Wait()

	ok, short := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, domain.ErrInsufficientStock):
			short++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, short)
	assert.Equal(t, 1, f.store.CountOrders())
	assert.Zero(t, f.variantStock(t, v.ID))
}

func TestCreateOrderRejectsUnsupportedPaymentMethod(t *testing.T) {
	f := newOrderFixture()
	f.uc.Gateway = methodGateway{fakeGateway: f.gateway, methods: []string{"cod"}}
	p := f.simpleProduct(t, 1000, 1)

	in := placeInput(lineFor(p, nil, 1, "10.00"))
	in.Order.PaymentMethod = "card"
	_, err := f.uc.CreateOrderFromCart(context.Background(), in)

	var verr domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "payment_method", verr.Field)
	assert.Equal(t, 1, f.reload(t, p.ID).StockQuantity)
	assert.Equal(t, 0, f.store.CountOrders())
	assert.Zero(t, f.gateway.calls)

	in.Order.PaymentMethod = "cod"
	_, err = f.uc.CreateOrderFromCart(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, 0, f.reload(t, p.ID).StockQuantity)
}

// racingStore takes one extra unit on every product decrement, as if another
// checkout committed between the inventory check and the update.
type racingStore struct{ *memory.Store }

func (s racingStore) Transaction(ctx context.Context, fn func(r domain.Repos) error) error {
	return s.Store.Transaction(ctx, func(r domain.Repos) error { return fn(racingRepos{r}) })
}

type racingRepos struct{ domain.Repos }

func (r racingRepos) Products() domain.ProductRepo { return racingProducts{r.Repos.Products()} }

type racingProducts struct{ domain.ProductRepo }

func (p racingProducts) DecrementProductStock(ctx context.Context, id uuid.UUID, qty int) error {
	return p.ProductRepo.DecrementProductStock(ctx, id, qty+1)
}

func TestStockChangesReadAfterDecrement(t *testing.T) {
	f := newOrderFixture()
	f.uc.Store = racingStore{f.store}
	p := f.simpleProduct(t, 1000, 5)

	res, err := f.uc.CreateOrderFromCart(context.Background(), placeInput(lineFor(p, nil, 2, "10.00")))
	require.NoError(t, err)
	require.Len(t, res.StockChanges, 1)
	assert.Equal(t, 2, f.reload(t, p.ID).StockQuantity)
	assert.Equal(t, 2, res.StockChanges[0].Remaining)
}
