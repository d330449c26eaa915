package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/phenrril/storefront/internal/domain"
)

func TestTransactionRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	p := &domain.Product{Name: "Phone", PriceCents: 9999, TrackInventory: true, StockQuantity: 3, Active: true}
	require.NoError(t, s.Products().Save(ctx, p))

	boom := errors.New("boom")
	err := s.Transaction(ctx, func(r domain.Repos) error {
		require.NoError(t, r.Products().DecrementProductStock(ctx, p.ID, 2))
		require.NoError(t, r.Orders().Create(ctx, &domain.Order{Holder: "u1"}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := s.Products().FindByID(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, 3, got.StockQuantity)
	require.Equal(t, 0, s.CountOrders())
}

func TestDecrementNeverGoesNegative(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	p := &domain.Product{Name: "Case", TrackInventory: true, StockQuantity: 1}
	require.NoError(t, s.Products().Save(ctx, p))

	require.ErrorIs(t, s.Products().DecrementProductStock(ctx, p.ID, 2), domain.ErrInsufficientStock)
	require.NoError(t, s.Products().DecrementProductStock(ctx, p.ID, 1))
	require.ErrorIs(t, s.Products().DecrementProductStock(ctx, p.ID, 1), domain.ErrInsufficientStock)

	got, _ := s.Products().FindByID(ctx, p.ID)
	require.Equal(t, 0, got.StockQuantity)
}

func TestSaveVariantKeepsSingleDefault(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	productID := uuid.New()
	a := &domain.Variant{ProductID: productID, IsActive: true, IsDefault: true}
	b := &domain.Variant{ProductID: productID, IsActive: true}
	require.NoError(t, s.Products().SaveVariant(ctx, a))
	require.NoError(t, s.Products().SaveVariant(ctx, b))

	b.IsDefault = true
	require.NoError(t, s.Products().SaveVariant(ctx, b))

	vs, err := s.Products().ListVariants(ctx, productID)
	require.NoError(t, err)
	defaults := 0
	for _, v := range vs {
		if v.IsDefault {
			defaults++
			require.Equal(t, b.ID, v.ID)
		}
	}
	require.Equal(t, 1, defaults)
}

func TestLockItem(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	p := &domain.Product{Name: "Case", TrackInventory: true, StockQuantity: 1}
	require.NoError(t, s.Products().Save(ctx, p))
	v := &domain.Variant{ID: uuid.New(), ProductID: p.ID, StockQuantity: 1, IsActive: true}
	require.NoError(t, s.Products().SaveVariant(ctx, v))

	require.NoError(t, s.Transaction(ctx, func(r domain.Repos) error {
		return r.Products().LockItem(ctx, p.ID, &v.ID)
	}))
	require.NoError(t, s.Products().LockItem(ctx, p.ID, nil))
	missing := uuid.New()
	require.ErrorIs(t, s.Products().LockItem(ctx, p.ID, &missing), domain.ErrNotFound)
	require.ErrorIs(t, s.Products().LockItem(ctx, missing, nil), domain.ErrNotFound)
}
