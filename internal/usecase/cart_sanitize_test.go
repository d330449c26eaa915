package usecase

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phenrril/storefront/internal/domain"
)

func TestValidateCartItemStructure(t *testing.T) {
	uc := &CartUC{Rules: DefaultCartRules()}
	pid := uuid.NewString()

	_, ok := uc.ValidateCartItemStructure("nope")
	assert.False(t, ok)
	_, ok = uc.ValidateCartItemStructure(map[string]any{"product_id": "x", "quantity": 1, "unit_amount": 1})
	assert.False(t, ok)
	_, ok = uc.ValidateCartItemStructure(map[string]any{"product_id": pid, "unit_amount": 1})
	assert.False(t, ok)
	_, ok = uc.ValidateCartItemStructure(map[string]any{"product_id": pid, "quantity": "two", "unit_amount": 1})
	assert.False(t, ok)
	_, ok = uc.ValidateCartItemStructure(map[string]any{"product_id": pid, "quantity": "2", "unit_amount": "9.50"})
	assert.True(t, ok)
}

func TestSanitizeCartItem(t *testing.T) {
	uc := &CartUC{Rules: DefaultCartRules()}
	pid := uuid.New()

	item := uc.SanitizeCartItem(map[string]any{
		"product_id":  pid.String(),
		"variant_id":  "",
		"quantity":    500.0,
		"unit_amount": -4.0,
		"name":        `<b>Nice</b> mug<script>alert(1)</script> see https://evil.example/x`,
		"selected_options": map[string]any{
			" Color ": "<i>Red</i>",
			"Size":    42,
		},
	})
	assert.Equal(t, pid, item.ProductID)
	assert.Nil(t, item.VariantID)
	assert.Equal(t, 100, item.Quantity)
	assert.True(t, item.UnitAmount.IsZero())
	assert.True(t, item.TotalAmount.IsZero())
	assert.Equal(t, "Nice mug see", item.Name)
	assert.Equal(t, domain.OptionsOf("Color", "Red", "Size", "42"), item.SelectedOptions)
	assert.Equal(t, domain.ItemKeyFor(pid, nil, item.SelectedOptions), item.ItemKey)

	low := uc.SanitizeCartItem(map[string]any{"product_id": pid.String(), "quantity": 0, "unit_amount": "12.5"})
	assert.Equal(t, 1, low.Quantity)
	assert.Equal(t, "12.50", low.TotalAmount.StringFixed(2))

	assert.Equal(t, domain.CartItem{}, uc.SanitizeCartItem([]any{1, 2}))
}

func TestDecodeCart(t *testing.T) {
	uc := &CartUC{Rules: DefaultCartRules()}
	pid := uuid.New()
	vid := uuid.New()

	payload := `[{"product_id":"` + pid.String() + `","variant_id":"` + vid.String() + `","quantity":2,` +
		`"unit_amount":19.99,"total_amount":39.98,"selected_options":{"Size":"L","Color":"Blue"}}]`
	items, err := uc.DecodeCart([]byte(payload))
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, vid, *items[0].VariantID)
	assert.Equal(t, "39.98", items[0].TotalAmount.StringFixed(2))
	assert.Equal(t, domain.OptionsOf("Size", "L", "Color", "Blue"), items[0].SelectedOptions)

	_, err = uc.DecodeCart([]byte(`{"product_id":"x"}`))
	var ierr *domain.IntegrityError
	assert.ErrorAs(t, err, &ierr)

	_, err = uc.DecodeCart([]byte(`[{"product_id":"` + pid.String() + `","quantity":1}]`))
	assert.ErrorAs(t, err, &ierr)
}
