package usecase

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cast"

	"github.com/phenrril/storefront/internal/domain"
)

const (
	maxNameLen   = 180
	maxOptionLen = 60
)

var urlPattern = regexp.MustCompile(`(?i)\b(?:(?:https?|ftp)://|www\.|javascript:|data:)\S*`)

// ValidateCartItemStructure reports whether raw is an object with a usable
// product id and numeric quantity and unit amount.
func (uc *CartUC) ValidateCartItemStructure(raw any) (map[string]any, bool) {
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, false
	}
	if _, err := uuid.Parse(cast.ToString(m["product_id"])); err != nil {
		return nil, false
	}
	if _, err := cast.ToFloat64E(m["quantity"]); err != nil || m["quantity"] == nil {
		return nil, false
	}
	if _, err := toDecimal(m["unit_amount"]); err != nil {
		return nil, false
	}
	return m, true
}

// SanitizeCartItem coerces an untrusted item into a CartItem: ids parsed,
// quantity clamped, money non-negative, text stripped of markup and links.
// A malformed item comes back as the zero CartItem.
func (uc *CartUC) SanitizeCartItem(raw any) domain.CartItem {
	m, ok := uc.ValidateCartItemStructure(raw)
	if !ok {
		return domain.CartItem{}
	}
	item := domain.CartItem{
		ProductID: uuid.MustParse(cast.ToString(m["product_id"])),
		Quantity:  clamp(cast.ToInt(m["quantity"]), 1, uc.Rules.MaxQuantity),
		Name:      cleanText(cast.ToString(m["name"]), maxNameLen),
	}
	if s := strings.TrimSpace(cast.ToString(m["variant_id"])); s != "" {
		if id, err := uuid.Parse(s); err == nil {
			item.VariantID = &id
		}
	}
	unit, _ := toDecimal(m["unit_amount"])
	item.UnitAmount = nonNegative(unit)
	if total, err := toDecimal(m["total_amount"]); err == nil && m["total_amount"] != nil {
		item.TotalAmount = nonNegative(total)
	} else {
		item.TotalAmount = item.UnitAmount.Mul(decimal.NewFromInt(int64(item.Quantity)))
	}
	item.SelectedOptions = sanitizeOptions(m["selected_options"])
	item.ItemKey = domain.ItemKeyFor(item.ProductID, item.VariantID, item.SelectedOptions)
	return item
}

// DecodeCart turns an untrusted JSON array into sanitized items. Any
// malformed entry rejects the whole cart.
func (uc *CartUC) DecodeCart(payload []byte) ([]domain.CartItem, error) {
	var raws []json.RawMessage
	if err := json.Unmarshal(payload, &raws); err != nil {
		return nil, &domain.IntegrityError{Reason: "cart payload is not a list"}
	}
	items := make([]domain.CartItem, 0, len(raws))
	for i, raw := range raws {
		var m map[string]any
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, &domain.IntegrityError{Reason: fmt.Sprintf("item %d is not an object", i)}
		}
		// decoded again to keep option order
		var ordered struct {
			SelectedOptions domain.Options `json:"selected_options"`
		}
		if err := json.Unmarshal(raw, &ordered); err == nil && ordered.SelectedOptions != nil {
			m["selected_options"] = ordered.SelectedOptions
		}
		if _, ok := uc.ValidateCartItemStructure(m); !ok {
			return nil, &domain.IntegrityError{Reason: fmt.Sprintf("item %d is malformed", i)}
		}
		items = append(items, uc.SanitizeCartItem(m))
	}
	return items, nil
}

func sanitizeOptions(v any) domain.Options {
	var opts domain.Options
	switch o := v.(type) {
	case domain.Options:
		opts = o.Clone()
	case map[string]any:
		names := make([]string, 0, len(o))
		for k := range o {
			names = append(names, k)
		}
		sort.Strings(names)
		for _, k := range names {
			opts = append(opts, domain.Option{Name: k, Value: cast.ToString(o[k])})
		}
	default:
		return nil
	}
	for i := range opts {
		opts[i].Name = cleanText(opts[i].Name, maxOptionLen)
		opts[i].Value = cleanText(opts[i].Value, maxOptionLen)
	}
	return opts.Canonical()
}

var angle = strings.NewReplacer("<", "", ">", "")

// cleanText drops markup (script and style bodies included) and anything that
// looks like a link.
func cleanText(s string, max int) string {
	if strings.ContainsAny(s, "<>&") {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
		if err != nil {
			return ""
		}
		doc.Find("script,style,iframe,object,embed").Remove()
		s = angle.Replace(doc.Text())
	}
	s = urlPattern.ReplaceAllString(s, "")
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > max {
		s = strings.TrimSpace(string(r[:max]))
	}
	return s
}

func toDecimal(v any) (decimal.Decimal, error) {
	switch n := v.(type) {
	case nil:
		return decimal.Zero, fmt.Errorf("missing amount")
	case decimal.Decimal:
		return n, nil
	case json.Number:
		return decimal.NewFromString(n.String())
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(strings.TrimSpace(s))
}

func nonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}
