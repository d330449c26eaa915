package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/phenrril/storefront/internal/domain"
)

// CartRules are the limits a cart is checked against.
type CartRules struct {
	PriceEpsilon decimal.Decimal
	MaxQuantity  int
	MaxItems     int
	MaxTotal     decimal.Decimal
}

func DefaultCartRules() CartRules {
	return CartRules{
		PriceEpsilon: decimal.New(1, -2),
		MaxQuantity:  100,
		MaxItems:     50,
		MaxTotal:     decimal.NewFromInt(50000),
	}
}

// CartUC re-derives everything the client claims about its cart from the
// catalog. Validation results are returned as data.
type CartUC struct {
	Products domain.ProductRepo
	Limiter  domain.RateLimiter
	Rules    CartRules
	Secret   []byte
}

type ItemValidation struct {
	Valid          bool            `json:"valid"`
	Errors         []string        `json:"errors"`
	CorrectedPrice decimal.Decimal `json:"corrected_price"`

	product *domain.Product
	variant *domain.Variant
}

type CartValidation struct {
	Valid          bool              `json:"valid"`
	ItemErrors     map[int][]string  `json:"item_errors,omitempty"`
	CartErrors     map[string]string `json:"cart_errors,omitempty"`
	CorrectedItems []domain.CartItem `json:"corrected_items"`
	TotalValue     decimal.Decimal   `json:"total_value"`

	lines []cartLine
}

// cartLine is a corrected item with the catalog rows it was checked against.
type cartLine struct {
	item    domain.CartItem
	product *domain.Product
	variant *domain.Variant
}

// Errors flattens the result into user facing messages, items first in
// cart order.
func (c *CartValidation) Errors() []domain.ValidationError {
	var out []domain.ValidationError
	idx := make([]int, 0, len(c.ItemErrors))
	for i := range c.ItemErrors {
		idx = append(idx, i)
	}
	sort.Ints(idx)
	for _, i := range idx {
		for _, msg := range c.ItemErrors[i] {
			out = append(out, domain.ValidationError{Index: i, Message: msg})
		}
	}
	for _, field := range []string{"cart_size", "cart_total"} {
		if msg, ok := c.CartErrors[field]; ok {
			out = append(out, domain.ValidationError{Index: -1, Field: field, Message: msg})
		}
	}
	return out
}

// CartRejectedError is returned by checkout when validation fails.
type CartRejectedError struct {
	Result *CartValidation
}

func (e *CartRejectedError) Error() string {
	n := len(e.Result.ItemErrors) + len(e.Result.CartErrors)
	return fmt.Sprintf("cart is invalid: %d problem(s)", n)
}

func (e *CartRejectedError) Is(target error) bool { return target == domain.ErrCartInvalid }

func (uc *CartUC) ValidateCartItem(ctx context.Context, item domain.CartItem) ItemValidation {
	return uc.validateItem(ctx, uc.Products, item)
}

func (uc *CartUC) validateItem(ctx context.Context, products domain.ProductRepo, item domain.CartItem) ItemValidation {
	res := ItemValidation{Errors: []string{}}
	p, err := products.FindByID(ctx, item.ProductID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			log.Error().Err(err).Str("product_id", item.ProductID.String()).Msg("cart validation: product lookup")
		}
		res.Errors = append(res.Errors, "Product not found")
		return res
	}
	res.product = p
	if !p.Active {
		res.Errors = append(res.Errors, "Product is no longer available")
	}

	expected := p.Price()
	if item.VariantID != nil {
		v, err := products.FindVariant(ctx, *item.VariantID)
		switch {
		case err != nil:
			res.Errors = append(res.Errors, "Product variant not found")
			res.CorrectedPrice = expected
			return res
		case v.ProductID != p.ID:
			res.Errors = append(res.Errors, "Variant does not belong to the specified product")
			res.CorrectedPrice = expected
			return res
		}
		if !v.IsActive {
			res.Errors = append(res.Errors, "Product variant is no longer available")
		}
		res.variant = v
		expected = domain.CentsToDecimal(v.EffectivePriceCents(p))
	} else if p.HasVariants {
		res.Errors = append(res.Errors, "Please select product options")
	}
	res.CorrectedPrice = expected

	eps := uc.Rules.PriceEpsilon
	if item.UnitAmount.Sub(expected).Abs().GreaterThan(eps) {
		res.Errors = append(res.Errors, fmt.Sprintf("Price mismatch detected. Expected: %s, Got: %s",
			expected.StringFixed(2), item.UnitAmount.StringFixed(2)))
	}
	if item.Quantity <= 0 {
		res.Errors = append(res.Errors, "Quantity must be greater than 0")
	} else if item.Quantity > uc.Rules.MaxQuantity {
		res.Errors = append(res.Errors, fmt.Sprintf("Quantity cannot exceed %d", uc.Rules.MaxQuantity))
	}
	expectedTotal := expected.Mul(decimal.NewFromInt(int64(item.Quantity)))
	if item.TotalAmount.Sub(expectedTotal).Abs().GreaterThan(eps) {
		res.Errors = append(res.Errors, "Total amount calculation error")
	}

	res.Valid = len(res.Errors) == 0
	return res
}

func (uc *CartUC) ValidateCart(ctx context.Context, items []domain.CartItem) *CartValidation {
	return uc.validateCart(ctx, uc.Products, items)
}

func (uc *CartUC) validateCart(ctx context.Context, products domain.ProductRepo, items []domain.CartItem) *CartValidation {
	res := &CartValidation{
		ItemErrors:     map[int][]string{},
		CartErrors:     map[string]string{},
		CorrectedItems: []domain.CartItem{},
		TotalValue:     decimal.Zero,
	}
	for i, item := range items {
		r := uc.validateItem(ctx, products, item)
		if !r.Valid {
			res.ItemErrors[i] = r.Errors
			continue
		}
		fixed := item
		fixed.UnitAmount = r.CorrectedPrice
		fixed.TotalAmount = r.CorrectedPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))
		fixed.Name = r.product.Name
		if r.variant != nil {
			fixed.SelectedOptions = r.variant.Options.Clone()
		}
		fixed.ItemKey = domain.ItemKeyFor(fixed.ProductID, fixed.VariantID, fixed.SelectedOptions)
		res.CorrectedItems = append(res.CorrectedItems, fixed)
		res.TotalValue = res.TotalValue.Add(fixed.TotalAmount)
		res.lines = append(res.lines, cartLine{item: fixed, product: r.product, variant: r.variant})
	}
	if len(items) > uc.Rules.MaxItems {
		res.CartErrors["cart_size"] = fmt.Sprintf("Cart cannot contain more than %d items", uc.Rules.MaxItems)
	}
	if res.TotalValue.GreaterThan(uc.Rules.MaxTotal) {
		res.CartErrors["cart_total"] = fmt.Sprintf("Cart total cannot exceed %s", uc.Rules.MaxTotal.StringFixed(2))
	}
	res.Valid = len(res.ItemErrors) == 0 && len(res.CartErrors) == 0
	return res
}
