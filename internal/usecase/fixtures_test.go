package usecase

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/phenrril/storefront/internal/adapters/repo/memory"
	"github.com/phenrril/storefront/internal/domain"
)

type fixture struct {
	store     *memory.Store
	inventory *InventoryUC
	cart      *CartUC
	products  *ProductUC
}

func newFixture() *fixture {
	st := memory.NewStore()
	return &fixture{
		store:     st,
		inventory: &InventoryUC{Products: st.Products()},
		cart:      &CartUC{Products: st.Products(), Rules: DefaultCartRules(), Secret: []byte("test-secret")},
		products:  &ProductUC{Store: st},
	}
}

func (f *fixture) simpleProduct(t *testing.T, priceCents int64, stock int) *domain.Product {
	t.Helper()
	p := &domain.Product{
		ID:             uuid.New(),
		Name:           "Mug " + uuid.NewString()[:6],
		PriceCents:     priceCents,
		Active:         true,
		TrackInventory: true,
		StockQuantity:  stock,
	}
	require.NoError(t, f.store.Products().Save(context.Background(), p))
	return p
}

func (f *fixture) variantProduct(t *testing.T, priceCents int64) *domain.Product {
	t.Helper()
	p := &domain.Product{
		ID:             uuid.New(),
		Name:           "Shirt " + uuid.NewString()[:6],
		PriceCents:     priceCents,
		Active:         true,
		HasVariants:    true,
		TrackInventory: true,
	}
	require.NoError(t, f.store.Products().Save(context.Background(), p))
	return p
}

func (f *fixture) addVariant(t *testing.T, p *domain.Product, stock int, override *int64, opts ...string) *domain.Variant {
	t.Helper()
	v := &domain.Variant{
		ID:                 uuid.New(),
		ProductID:          p.ID,
		SKU:                "SKU-" + uuid.NewString()[:8],
		Options:            domain.OptionsOf(opts...),
		OverridePriceCents: override,
		StockQuantity:      stock,
		IsActive:           true,
	}
	require.NoError(t, f.store.Products().SaveVariant(context.Background(), v))
	return v
}

func (f *fixture) reload(t *testing.T, id uuid.UUID) *domain.Product {
	t.Helper()
	p, err := f.store.Products().FindByID(context.Background(), id)
	require.NoError(t, err)
	return p
}

func (f *fixture) variantStock(t *testing.T, id uuid.UUID) int {
	t.Helper()
	v, err := f.store.Products().FindVariant(context.Background(), id)
	require.NoError(t, err)
	return v.StockQuantity
}

func cents(c int64) *int64 { return &c }

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func lineFor(p *domain.Product, v *domain.Variant, qty int, unit string) domain.CartItem {
	it := domain.CartItem{
		ProductID:   p.ID,
		Quantity:    qty,
		UnitAmount:  dec(unit),
		TotalAmount: dec(unit).Mul(decimal.NewFromInt(int64(qty))),
	}
	if v != nil {
		id := v.ID
		it.VariantID = &id
	}
	return it
}
