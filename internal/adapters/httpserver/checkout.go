package httpserver

import (
	"encoding/json"
	"io"
	"net/http"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/phenrril/storefront/internal/domain"
	"github.com/phenrril/storefront/internal/usecase"
)

var emailRe = regexp.MustCompile(`^[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}$`)

type checkoutRequest struct {
	PaymentMethod  string             `json:"payment_method"`
	ShippingMethod string             `json:"shipping_method"`
	ShippingCost   decimal.Decimal    `json:"shipping_cost"`
	DiscountAmount decimal.Decimal    `json:"discount_amount"`
	Email          string             `json:"email"`
	Name           string             `json:"name"`
	Phone          string             `json:"phone"`
	Payment        domain.PaymentData `json:"payment"`
	Shipping       struct {
		FullName   string `json:"full_name"`
		Line1      string `json:"line1"`
		Line2      string `json:"line2"`
		City       string `json:"city"`
		Province   string `json:"province"`
		PostalCode string `json:"postal_code"`
		Country    string `json:"country"`
		Phone      string `json:"phone"`
	} `json:"shipping"`
}

func (s *Server) apiCheckout(w http.ResponseWriter, r *http.Request) {
	id := s.identity(r)
	if perm := s.cart.ValidateCartPermissions(r.Context(), id, usecase.CartOpPlaceOrder); !perm.Allowed {
		writeError(w, r, perm.Err)
		return
	}
	var req checkoutRequest
	if err := decodeJSON(r, 16<<10, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "json"})
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if !emailRe.MatchString(req.Email) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "email"})
		return
	}
	if strings.TrimSpace(req.PaymentMethod) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "payment_method"})
		return
	}
	if req.ShippingCost.IsNegative() || req.DiscountAmount.IsNegative() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "amounts cannot be negative"})
		return
	}

	items, err := s.loadCart(r, id)
	if err != nil {
		s.clearCart(w, r, id)
		writeError(w, r, err)
		return
	}
	in := usecase.PlaceOrderInput{
		Holder: id.UserID,
		Items:  items,
		Order: usecase.OrderData{
			PaymentMethod:  req.PaymentMethod,
			ShippingMethod: req.ShippingMethod,
			ShippingCost:   req.ShippingCost,
			DiscountAmount: req.DiscountAmount,
			Email:          req.Email,
			Name:           strings.TrimSpace(req.Name),
			Phone:          strings.TrimSpace(req.Phone),
			Payment:        req.Payment,
		},
		Shipping: domain.Address{
			FullName:   req.Shipping.FullName,
			Line1:      req.Shipping.Line1,
			Line2:      req.Shipping.Line2,
			City:       req.Shipping.City,
			Province:   req.Shipping.Province,
			PostalCode: req.Shipping.PostalCode,
			Country:    req.Shipping.Country,
			Phone:      req.Shipping.Phone,
		},
	}
	res, err := s.orders.CreateOrderFromCart(r.Context(), in)
	if err != nil {
		// on a payment failure the order exists and the cart is kept for a retry
		writeError(w, r, err)
		return
	}
	s.clearCart(w, r, id)
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusCreated, map[string]any{
		"order_id":       res.Order.ID,
		"status":         res.Order.Status,
		"payment_status": res.Order.PaymentStatus,
		"subtotal":       res.Order.Subtotal.StringFixed(2),
		"tax_amount":     res.Order.TaxAmount.StringFixed(2),
		"grand_total":    res.Order.GrandTotal.StringFixed(2),
		"redirect_url":   res.Payment.RedirectURL,
		"stock_changes":  res.StockChanges,
	})
}

// webhookMP always answers 200 so the provider stops retrying; problems are
// logged.
func (s *Server) webhookMP(w http.ResponseWriter, r *http.Request) {
	logger := zerolog.Ctx(r.Context())
	if s.payments == nil {
		w.WriteHeader(http.StatusOK)
		return
	}
	body, _ := io.ReadAll(io.LimitReader(r.Body, 65536))
	var evt struct {
		Type   string `json:"type"`
		Action string `json:"action"`
		Data   struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	_ = json.Unmarshal(body, &evt)
	payID := evt.Data.ID
	if payID == "" {
		payID = r.URL.Query().Get("id")
	}
	if payID == "" {
		logger.Warn().Msg("webhook without payment id")
		w.WriteHeader(http.StatusOK)
		return
	}
	status, extRef, err := s.payments.PaymentInfo(r.Context(), payID)
	if err != nil {
		logger.Error().Err(err).Str("payment_id", payID).Msg("payment info")
		w.WriteHeader(http.StatusOK)
		return
	}
	orderID, ok := s.payments.VerifyExternalRef(extRef)
	if !ok {
		logger.Warn().Str("ext", extRef).Msg("invalid external ref")
		w.WriteHeader(http.StatusOK)
		return
	}
	uid, err := uuid.Parse(orderID)
	if err != nil {
		w.WriteHeader(http.StatusOK)
		return
	}
	if status == domain.PaymentStatusPending {
		w.WriteHeader(http.StatusOK)
		return
	}
	if _, err := s.orders.ConfirmPayment(r.Context(), uid, status, payID); err != nil {
		logger.Error().Err(err).Str("order_id", orderID).Str("status", string(status)).Msg("confirm payment")
	}
	w.WriteHeader(http.StatusOK)
}
