package usecase

import (
	"context"

	"github.com/phenrril/storefront/internal/domain"
)

// reduceStock takes qty units off the right counter: the variant when one is
// given, the product otherwise. Untracked products are never decremented.
func reduceStock(ctx context.Context, products domain.ProductRepo, p *domain.Product, v *domain.Variant, qty int) error {
	if !p.TrackInventory {
		return nil
	}
	if v != nil {
		return products.DecrementVariantStock(ctx, v.ID, qty)
	}
	return products.DecrementProductStock(ctx, p.ID, qty)
}

// availableFor is ledger stock minus active holds; untracked items are
// unlimited and ignore holds.
func availableFor(inv *InventoryUC, p *domain.Product, v *domain.Variant, held int) int {
	if !p.TrackInventory {
		return domain.UnlimitedStock
	}
	ledger := inv.TotalStock(p)
	if v != nil {
		ledger = inv.VariantStock(p, v)
	}
	if a := ledger - held; a > 0 {
		return a
	}
	return 0
}
