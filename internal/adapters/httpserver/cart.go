package httpserver

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/phenrril/storefront/internal/domain"
	"github.com/phenrril/storefront/internal/usecase"
)

const (
	cartCookie = "cart"
	cartMaxAge = 60 * 60 * 24 * 7
)

// loadCart returns the caller's cart from the signed cookie, falling back to
// the stored copy for signed-in customers. A cookie that fails the integrity
// check is an error, never an empty cart.
func (s *Server) loadCart(r *http.Request, id domain.Identity) ([]domain.CartItem, error) {
	c, err := r.Cookie(cartCookie)
	if err != nil || c.Value == "" {
		if id.Authenticated() && s.carts != nil {
			return s.carts.Load(r.Context(), holderFor(id))
		}
		return nil, nil
	}
	hash, enc, ok := strings.Cut(c.Value, ".")
	if !ok {
		return nil, &domain.IntegrityError{Reason: "malformed cart cookie"}
	}
	payload, err := base64.RawURLEncoding.DecodeString(enc)
	if err != nil {
		return nil, &domain.IntegrityError{Reason: "malformed cart cookie"}
	}
	items, err := s.cart.DecodeCart(payload)
	if err != nil {
		return nil, err
	}
	if !s.cart.VerifyCartIntegrity(items, hash) {
		return nil, &domain.IntegrityError{Reason: "cart hash mismatch"}
	}
	return items, nil
}

// storeCart writes the signed cookie and mirrors the cart to the cart store.
func (s *Server) storeCart(w http.ResponseWriter, r *http.Request, id domain.Identity, items []domain.CartItem) {
	if len(items) == 0 {
		s.clearCart(w, r, id)
		return
	}
	b, _ := json.Marshal(items)
	val := s.cart.GenerateCartHash(items) + "." + base64.RawURLEncoding.EncodeToString(b)
	http.SetCookie(w, &http.Cookie{
		Name:     cartCookie,
		Value:    val,
		Path:     "/",
		MaxAge:   cartMaxAge,
		HttpOnly: true,
		Secure:   s.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	if s.carts == nil {
		return
	}
	if err := s.carts.Save(r.Context(), holderFor(id), items); err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).Msg("cart store save")
	}
}

func (s *Server) clearCart(w http.ResponseWriter, r *http.Request, id domain.Identity) {
	http.SetCookie(w, &http.Cookie{Name: cartCookie, Value: "", Path: "/", MaxAge: -1, HttpOnly: true})
	if s.carts == nil {
		return
	}
	if err := s.carts.Clear(r.Context(), holderFor(id)); err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).Msg("cart store clear")
	}
}

func (s *Server) handleCart(w http.ResponseWriter, r *http.Request) {
	id := s.identity(r)
	items, err := s.loadCart(r, id)
	if err != nil {
		s.clearCart(w, r, id)
		writeError(w, r, err)
		return
	}
	if items == nil {
		items = []domain.CartItem{}
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, map[string]any{
		"items":      items,
		"validation": s.cart.ValidateCart(r.Context(), items),
	})
}

// handleCartAdd accepts one untrusted item, prices it from the catalog and
// merges it into the cart by item key.
func (s *Server) handleCartAdd(w http.ResponseWriter, r *http.Request) {
	id := s.identity(r)
	if perm := s.cart.ValidateCartPermissions(r.Context(), id, usecase.CartOpModify); !perm.Allowed {
		writeError(w, r, perm.Err)
		return
	}
	var raw any
	if err := decodeJSON(r, 8<<10, &raw); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "json"})
		return
	}
	if _, ok := s.cart.ValidateCartItemStructure(raw); !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid cart item"})
		return
	}
	item := s.cart.SanitizeCartItem(raw)
	res := s.cart.ValidateCartItem(r.Context(), item)
	if !res.Valid {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"error": "invalid cart item", "item": res})
		return
	}

	items, err := s.loadCart(r, id)
	if err != nil {
		items = nil
	}
	merged := false
	for i := range items {
		if items[i].ItemKey == item.ItemKey {
			items[i].Quantity += item.Quantity
			if items[i].Quantity > s.cart.Rules.MaxQuantity {
				items[i].Quantity = s.cart.Rules.MaxQuantity
			}
			items[i].UnitAmount = res.CorrectedPrice
			items[i].TotalAmount = res.CorrectedPrice.Mul(decimal.NewFromInt(int64(items[i].Quantity)))
			merged = true
			break
		}
	}
	if !merged {
		item.UnitAmount = res.CorrectedPrice
		item.TotalAmount = res.CorrectedPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))
		items = append(items, item)
	}

	v := s.cart.ValidateCart(r.Context(), items)
	if len(v.CartErrors) > 0 {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"error": "cart is invalid", "validation": v})
		return
	}
	s.storeCart(w, r, id, items)
	writeJSON(w, http.StatusCreated, map[string]any{"items": items, "validation": v})
}

func (s *Server) handleCartRemove(w http.ResponseWriter, r *http.Request) {
	id := s.identity(r)
	if perm := s.cart.ValidateCartPermissions(r.Context(), id, usecase.CartOpModify); !perm.Allowed {
		writeError(w, r, perm.Err)
		return
	}
	key := r.PathValue("key")
	items, err := s.loadCart(r, id)
	if err != nil {
		s.clearCart(w, r, id)
		writeError(w, r, err)
		return
	}
	out := make([]domain.CartItem, 0, len(items))
	for _, it := range items {
		if it.ItemKey != key {
			out = append(out, it)
		}
	}
	s.storeCart(w, r, id, out)
	writeJSON(w, http.StatusOK, map[string]any{"items": out})
}

// apiCartValidate checks a client-held cart. When a hash is sent it must
// match the items exactly.
func (s *Server) apiCartValidate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Items json.RawMessage `json:"items"`
		Hash  string          `json:"hash"`
	}
	if err := decodeJSON(r, 64<<10, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "json"})
		return
	}
	items, err := s.cart.DecodeCart(req.Items)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if req.Hash != "" && !s.cart.VerifyCartIntegrity(items, req.Hash) {
		writeError(w, r, &domain.IntegrityError{Reason: "cart hash mismatch"})
		return
	}
	v := s.cart.ValidateCart(r.Context(), items)
	writeJSON(w, http.StatusOK, map[string]any{
		"validation": v,
		"errors":     v.Errors(),
		"hash":       s.cart.GenerateCartHash(v.CorrectedItems),
	})
}
