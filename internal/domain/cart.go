package domain

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CartItem arrives from the client and is never trusted.
type CartItem struct {
	ItemKey         string          `json:"item_key"`
	ProductID       uuid.UUID       `json:"product_id"`
	VariantID       *uuid.UUID      `json:"variant_id,omitempty"`
	Name            string          `json:"name,omitempty"`
	Quantity        int             `json:"quantity"`
	UnitAmount      decimal.Decimal `json:"unit_amount"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	SelectedOptions Options         `json:"selected_options,omitempty"`
}

// ItemKeyFor tells apart different selections of the same product or variant.
func ItemKeyFor(productID uuid.UUID, variantID *uuid.UUID, opts Options) string {
	k := productID.String()
	if variantID != nil {
		k += ":" + variantID.String()
	} else {
		k += ":-"
	}
	if key := opts.Key(); key != "" {
		k += ":" + key
	}
	return k
}

// Identity is the caller of a cart operation. UserID is empty for anonymous
// visitors.
type Identity struct {
	UserID string
	IP     string
}

func (i Identity) Authenticated() bool { return i.UserID != "" }

func (i Identity) LimitKey() string {
	if i.UserID != "" {
		return "user:" + i.UserID
	}
	return "ip:" + i.IP
}
