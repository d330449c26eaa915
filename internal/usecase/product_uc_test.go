package usecase

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phenrril/storefront/internal/domain"
)

func TestCreateVariantRejectsDuplicateOptions(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	p := f.variantProduct(t, 5000)
	f.addVariant(t, p, 3, nil, "Size", "Large", "Color", "Red")

	dup := &domain.Variant{ProductID: p.ID, Options: domain.OptionsOf("color", " Red", "size", "Large"), IsActive: true}
	err := f.products.CreateVariant(ctx, dup)
	assert.ErrorIs(t, err, domain.ErrDuplicateVariant)

	other := &domain.Variant{ProductID: p.ID, Options: domain.OptionsOf("Size", "Small", "Color", "Red"), IsActive: true}
	require.NoError(t, f.products.CreateVariant(ctx, other))
	assert.NotEqual(t, uuid.Nil, other.ID)
}

func TestSetDefaultVariantKeepsOne(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	p := f.variantProduct(t, 5000)
	a := f.addVariant(t, p, 1, nil, "Size", "S")
	b := f.addVariant(t, p, 1, nil, "Size", "M")

	require.NoError(t, f.products.SetDefaultVariant(ctx, a.ID))
	require.NoError(t, f.products.SetDefaultVariant(ctx, b.ID))

	vs, err := f.products.ListVariants(ctx, p.ID)
	require.NoError(t, err)
	defaults := 0
	for _, v := range vs {
		if v.IsDefault {
			defaults++
			assert.Equal(t, b.ID, v.ID)
		}
	}
	assert.Equal(t, 1, defaults)
}

func TestGetPriceForVariant(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	p := f.variantProduct(t, 50000)
	plain := f.addVariant(t, p, 5, nil, "Size", "Medium")
	f.addVariant(t, p, 5, cents(60000), "Size", "Large")

	q, err := f.products.GetPriceForVariant(ctx, p.ID, nil, domain.OptionsOf("Size", "Large"))
	require.NoError(t, err)
	assert.Equal(t, "600.00", q.Price.StringFixed(2))
	assert.EqualValues(t, 60000, q.PriceCents)
	assert.True(t, q.HasOverride)

	q, err = f.products.GetPriceForVariant(ctx, p.ID, &plain.ID, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 50000, q.PriceCents)
	assert.False(t, q.HasOverride)

	q, err = f.products.GetPriceForVariant(ctx, p.ID, nil, domain.OptionsOf("Size", "Tiny"))
	require.NoError(t, err)
	assert.Nil(t, q.VariantID)
	assert.EqualValues(t, 50000, q.PriceCents)
}

func TestConvertModes(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	p := f.simpleProduct(t, 1000, 12)

	assert.ErrorIs(t, f.products.ConvertToVariantMode(ctx, p.ID, nil), domain.ErrNoVariants)

	err := f.products.ConvertToVariantMode(ctx, p.ID, []domain.Variant{
		{Options: domain.OptionsOf("Size", "S"), StockQuantity: 4},
		{Options: domain.OptionsOf("Size", "M"), StockQuantity: 6},
	})
	require.NoError(t, err)
	got := f.reload(t, p.ID)
	assert.True(t, got.HasVariants)
	assert.Zero(t, got.StockQuantity)
	assert.Equal(t, 10, f.inventory.TotalStock(got))
	defaults := 0
	for _, v := range got.Variants {
		if v.IsDefault {
			defaults++
		}
	}
	assert.Equal(t, 1, defaults)

	require.NoError(t, f.products.ConvertToSimpleMode(ctx, p.ID, 7))
	got = f.reload(t, p.ID)
	assert.False(t, got.HasVariants)
	assert.Equal(t, 7, got.StockQuantity)
	assert.Empty(t, got.ActiveVariants())
}

func TestConvertToVariantModeRollsBackOnDuplicate(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	p := f.simpleProduct(t, 1000, 12)

	err := f.products.ConvertToVariantMode(ctx, p.ID, []domain.Variant{
		{Options: domain.OptionsOf("Size", "S")},
		{Options: domain.OptionsOf("size", "S")},
	})
	assert.ErrorIs(t, err, domain.ErrDuplicateVariant)

	got := f.reload(t, p.ID)
	assert.False(t, got.HasVariants)
	assert.Equal(t, 12, got.StockQuantity)
	assert.Empty(t, got.Variants)
}

func TestRestock(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	p := f.simpleProduct(t, 1000, 2)
	shirt := f.variantProduct(t, 5000)
	v := f.addVariant(t, shirt, 1, nil, "Size", "S")

	require.NoError(t, f.products.Restock(ctx, p.ID, nil, 3))
	assert.Equal(t, 5, f.reload(t, p.ID).StockQuantity)

	require.NoError(t, f.products.Restock(ctx, shirt.ID, &v.ID, 4))
	assert.Equal(t, 5, f.variantStock(t, v.ID))

	var verr domain.ValidationError
	require.ErrorAs(t, f.products.Restock(ctx, shirt.ID, nil, 1), &verr)
	assert.Equal(t, "Please select product options", verr.Message)
	require.ErrorAs(t, f.products.Restock(ctx, p.ID, &v.ID, 1), &verr)
	assert.Equal(t, "Variant does not belong to the specified product", verr.Message)
}

func TestCreateAppliesDefaults(t *testing.T) {
	f := newFixture()
	f.products.LowStockThreshold = 8
	ctx := context.Background()

	p := &domain.Product{Name: "Phone  Stand", PriceCents: 900, Active: true, HasVariants: true, StockQuantity: 4}
	require.NoError(t, f.products.Create(ctx, p))
	assert.NotEqual(t, uuid.Nil, p.ID)
	assert.Equal(t, "phone-stand", p.Slug)
	assert.Equal(t, 0, p.StockQuantity)
	assert.Equal(t, 8, p.LowStockThreshold)

	own := &domain.Product{Name: "Cable", LowStockThreshold: 2}
	require.NoError(t, f.products.Create(ctx, own))
	assert.Equal(t, 2, own.LowStockThreshold)

	err := f.products.Create(ctx, &domain.Product{Name: "Broken", StockQuantity: -1})
	var verr domain.ValidationError
	assert.ErrorAs(t, err, &verr)
}
