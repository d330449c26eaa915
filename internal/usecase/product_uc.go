package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/phenrril/storefront/internal/domain"
)

type ProductUC struct {
	Store domain.Store
	// LowStockThreshold is applied to new products that do not set their own.
	LowStockThreshold int
}

type PriceQuote struct {
	Price       decimal.Decimal `json:"price"`
	PriceCents  int64           `json:"price_cents"`
	HasOverride bool            `json:"has_override"`
	VariantID   *uuid.UUID      `json:"variant_id,omitempty"`
}

func (uc *ProductUC) List(ctx context.Context, f domain.ProductFilter) ([]domain.Product, int64, error) {
	if f.PageSize == 0 {
		f.PageSize = 20
	}
	return uc.Store.Products().List(ctx, f)
}

func (uc *ProductUC) GetByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	if id == uuid.Nil {
		return nil, errors.New("product id")
	}
	return uc.Store.Products().FindByID(ctx, id)
}

func (uc *ProductUC) Create(ctx context.Context, p *domain.Product) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Slug == "" {
		p.Slug = strings.ToLower(strings.Join(strings.Fields(p.Name), "-"))
	}
	if p.StockQuantity < 0 {
		return domain.ValidationError{Field: "stock_quantity", Message: "Stock cannot be negative"}
	}
	if p.HasVariants {
		p.StockQuantity = 0
	}
	if p.LowStockThreshold <= 0 && uc.LowStockThreshold > 0 {
		p.LowStockThreshold = uc.LowStockThreshold
	}
	return uc.Store.Products().Save(ctx, p)
}

// --- Variants ---

func (uc *ProductUC) CreateVariant(ctx context.Context, v *domain.Variant) error {
	if v == nil {
		return errors.New("variant nil")
	}
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return uc.saveVariant(ctx, v)
}

func (uc *ProductUC) UpdateVariant(ctx context.Context, v *domain.Variant) error {
	if v == nil || v.ID == uuid.Nil {
		return errors.New("variant id")
	}
	return uc.saveVariant(ctx, v)
}

func (uc *ProductUC) saveVariant(ctx context.Context, v *domain.Variant) error {
	if v.StockQuantity < 0 {
		return domain.ValidationError{Field: "stock_quantity", Message: "Stock cannot be negative"}
	}
	v.Options = v.Options.Canonical()
	return uc.Store.Transaction(ctx, func(r domain.Repos) error {
		if _, err := r.Products().FindByID(ctx, v.ProductID); err != nil {
			return err
		}
		siblings, err := r.Products().ListVariants(ctx, v.ProductID)
		if err != nil {
			return err
		}
		if err := checkDuplicate(siblings, v); err != nil {
			return err
		}
		return r.Products().SaveVariant(ctx, v)
	})
}

// checkDuplicate rejects a second active variant with the same option set.
func checkDuplicate(siblings []domain.Variant, v *domain.Variant) error {
	if !v.IsActive {
		return nil
	}
	key := v.Options.Key()
	for _, s := range siblings {
		if s.ID != v.ID && s.IsActive && s.Options.Key() == key {
			return fmt.Errorf("%w: %s", domain.ErrDuplicateVariant, key)
		}
	}
	return nil
}

// SetDefaultVariant makes id the product's only default variant.
func (uc *ProductUC) SetDefaultVariant(ctx context.Context, id uuid.UUID) error {
	return uc.Store.Transaction(ctx, func(r domain.Repos) error {
		v, err := r.Products().FindVariant(ctx, id)
		if err != nil {
			return err
		}
		if !v.IsActive {
			return domain.ValidationError{Field: "variant_id", Message: "Product variant is no longer available"}
		}
		v.IsDefault = true
		return r.Products().SaveVariant(ctx, v)
	})
}

// DeactivateVariant hides a variant without deleting it; historical order
// lines keep pointing at it.
func (uc *ProductUC) DeactivateVariant(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return errors.New("variant id")
	}
	return uc.Store.Transaction(ctx, func(r domain.Repos) error {
		v, err := r.Products().FindVariant(ctx, id)
		if err != nil {
			return err
		}
		v.IsActive = false
		v.IsDefault = false
		return r.Products().SaveVariant(ctx, v)
	})
}

func (uc *ProductUC) ListVariants(ctx context.Context, productID uuid.UUID) ([]domain.Variant, error) {
	if productID == uuid.Nil {
		return nil, errors.New("product id")
	}
	return uc.Store.Products().ListVariants(ctx, productID)
}

// GetPriceForVariant resolves the price for a variant id or, failing that, for
// the first active variant matching sel. The product price is returned when
// neither resolves.
func (uc *ProductUC) GetPriceForVariant(ctx context.Context, productID uuid.UUID, variantID *uuid.UUID, sel domain.Options) (PriceQuote, error) {
	p, err := uc.Store.Products().FindByID(ctx, productID)
	if err != nil {
		return PriceQuote{}, err
	}
	var v *domain.Variant
	if variantID != nil {
		for i := range p.Variants {
			if p.Variants[i].ID == *variantID && p.Variants[i].IsActive {
				v = &p.Variants[i]
				break
			}
		}
	}
	if v == nil && len(sel) > 0 {
		v = p.FindVariantByOptions(sel)
	}
	if v == nil {
		return PriceQuote{Price: p.Price(), PriceCents: p.PriceCents}, nil
	}
	cents := v.EffectivePriceCents(p)
	id := v.ID
	return PriceQuote{
		Price:       domain.CentsToDecimal(cents),
		PriceCents:  cents,
		HasOverride: v.OverridePriceCents != nil,
		VariantID:   &id,
	}, nil
}

// ConvertToVariantMode switches a simple product to variant stock. The
// product's own counter is cleared; stock lives on the variants from now on.
func (uc *ProductUC) ConvertToVariantMode(ctx context.Context, productID uuid.UUID, variants []domain.Variant) error {
	if len(variants) == 0 {
		return domain.ErrNoVariants
	}
	return uc.Store.Transaction(ctx, func(r domain.Repos) error {
		p, err := r.Products().FindByID(ctx, productID)
		if err != nil {
			return err
		}
		existing, err := r.Products().ListVariants(ctx, productID)
		if err != nil {
			return err
		}
		hasDefault := false
		for _, v := range existing {
			hasDefault = hasDefault || (v.IsActive && v.IsDefault)
		}
		for i := range variants {
			v := &variants[i]
			if v.ID == uuid.Nil {
				v.ID = uuid.New()
			}
			if v.StockQuantity < 0 {
				return domain.ValidationError{Index: i, Field: "stock_quantity", Message: "Stock cannot be negative"}
			}
			v.ProductID = p.ID
			v.IsActive = true
			v.Options = v.Options.Canonical()
			if err := checkDuplicate(existing, v); err != nil {
				return err
			}
			if !hasDefault {
				v.IsDefault = true
				hasDefault = true
			}
			if err := r.Products().SaveVariant(ctx, v); err != nil {
				return err
			}
			existing = append(existing, *v)
		}
		p.HasVariants = true
		p.StockQuantity = 0
		return r.Products().Save(ctx, p)
	})
}

// ConvertToSimpleMode deactivates every variant and puts stock back on the
// product counter.
func (uc *ProductUC) ConvertToSimpleMode(ctx context.Context, productID uuid.UUID, stock int) error {
	if stock < 0 {
		return domain.ValidationError{Field: "stock_quantity", Message: "Stock cannot be negative"}
	}
	return uc.Store.Transaction(ctx, func(r domain.Repos) error {
		p, err := r.Products().FindByID(ctx, productID)
		if err != nil {
			return err
		}
		variants, err := r.Products().ListVariants(ctx, productID)
		if err != nil {
			return err
		}
		for i := range variants {
			v := &variants[i]
			if !v.IsActive && !v.IsDefault {
				continue
			}
			v.IsActive = false
			v.IsDefault = false
			if err := r.Products().SaveVariant(ctx, v); err != nil {
				return err
			}
		}
		p.HasVariants = false
		p.StockQuantity = stock
		return r.Products().Save(ctx, p)
	})
}

// Restock adds units to a variant or, for simple products, to the product.
func (uc *ProductUC) Restock(ctx context.Context, productID uuid.UUID, variantID *uuid.UUID, qty int) error {
	if qty <= 0 {
		return domain.ValidationError{Field: "quantity", Message: "Quantity must be greater than 0"}
	}
	return uc.Store.Transaction(ctx, func(r domain.Repos) error {
		p, err := r.Products().FindByID(ctx, productID)
		if err != nil {
			return err
		}
		if variantID == nil {
			if p.HasVariants {
				return domain.ValidationError{Field: "variant_id", Message: "Please select product options"}
			}
			return r.Products().IncrementProductStock(ctx, p.ID, qty)
		}
		v, err := r.Products().FindVariant(ctx, *variantID)
		if err != nil {
			return err
		}
		if v.ProductID != p.ID {
			return domain.ValidationError{Field: "variant_id", Message: "Variant does not belong to the specified product"}
		}
		return r.Products().IncrementVariantStock(ctx, v.ID, qty)
	})
}
