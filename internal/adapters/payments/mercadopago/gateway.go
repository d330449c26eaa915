package mercadopago

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/phenrril/storefront/internal/domain"
)

type Config struct {
	Token      string
	APIBase    string
	BaseURL    string
	Secret     string
	Currency   string
	Production bool
}

type Gateway struct {
	cfg        Config
	httpClient *http.Client
}

func NewGateway(cfg Config) *Gateway {
	if cfg.APIBase == "" {
		cfg.APIBase = "https://api.mercadopago.com"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:8080"
	}
	if cfg.Secret == "" {
		cfg.Secret = "dev"
	}
	if cfg.Currency == "" {
		cfg.Currency = "ARS"
	}
	cfg.APIBase = strings.TrimRight(cfg.APIBase, "/")
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Gateway{cfg: cfg, httpClient: &http.Client{Timeout: 10 * time.Second}}
}

type mpItem struct {
	Title      string  `json:"title"`
	Quantity   int     `json:"quantity"`
	UnitPrice  float64 `json:"unit_price"`
	CurrencyID string  `json:"currency_id"`
}

type mpPreferenceRequest struct {
	Items             []mpItem          `json:"items"`
	Payer             map[string]string `json:"payer,omitempty"`
	BackURLs          map[string]string `json:"back_urls,omitempty"`
	AutoReturn        string            `json:"auto_return,omitempty"`
	NotificationURL   string            `json:"notification_url,omitempty"`
	ExternalReference string            `json:"external_reference,omitempty"`
}

type mpPrefResp struct {
	ID               string `json:"id"`
	InitPoint        string `json:"init_point"`
	SandboxInitPoint string `json:"sandbox_init_point"`
}

type mpPaymentResp struct {
	ID                int64  `json:"id"`
	Status            string `json:"status"`
	ExternalReference string `json:"external_reference"`
}

func (g *Gateway) signExternal(orderID string) string {
	h := hmac.New(sha256.New, []byte(g.cfg.Secret))
	h.Write([]byte(orderID))
	return hex.EncodeToString(h.Sum(nil))[:24]
}

// InitiatePayment creates a checkout preference. The buyer still has to pay
// on the provider page, so a created preference is reported as pending.
func (g *Gateway) InitiatePayment(ctx context.Context, o *domain.Order, data domain.PaymentData) (domain.PaymentResult, error) {
	if g.cfg.Token == "" {
		return domain.PaymentResult{Reason: "payment provider not configured"}, errors.New("mercadopago: MP_ACCESS_TOKEN missing")
	}
	if o == nil {
		return domain.PaymentResult{Reason: "no order"}, errors.New("mercadopago: nil order")
	}
	items := make([]mpItem, 0, len(o.Items)+3)
	for _, it := range o.Items {
		items = append(items, mpItem{Title: it.Title, Quantity: it.Quantity, UnitPrice: it.UnitAmount.InexactFloat64(), CurrencyID: g.cfg.Currency})
	}
	if o.TaxAmount.IsPositive() {
		items = append(items, mpItem{Title: "Tax", Quantity: 1, UnitPrice: o.TaxAmount.InexactFloat64(), CurrencyID: g.cfg.Currency})
	}
	if o.ShippingCost.IsPositive() {
		items = append(items, mpItem{Title: "Shipping", Quantity: 1, UnitPrice: o.ShippingCost.InexactFloat64(), CurrencyID: g.cfg.Currency})
	}
	if o.DiscountAmount.IsPositive() {
		items = append(items, mpItem{Title: "Discount", Quantity: 1, UnitPrice: o.DiscountAmount.Neg().InexactFloat64(), CurrencyID: g.cfg.Currency})
	}

	back := g.cfg.BaseURL + "/orders/" + o.ID.String()
	payload := mpPreferenceRequest{
		Items:             items,
		Payer:             map[string]string{"email": o.Email},
		BackURLs:          map[string]string{"success": back, "pending": back, "failure": back},
		NotificationURL:   g.cfg.BaseURL + "/webhooks/mp",
		ExternalReference: o.ID.String() + "|" + g.signExternal(o.ID.String()),
	}
	// production credentials reject auto_return with a localhost back url
	if strings.HasPrefix(g.cfg.Token, "TEST-") || !strings.Contains(g.cfg.BaseURL, "localhost") {
		payload.AutoReturn = "approved"
	}
	if email := data["email"]; email != "" {
		payload.Payer["email"] = email
	}

	buf, err := json.Marshal(payload)
	if err != nil {
		return domain.PaymentResult{Reason: "could not build payment request"}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.APIBase+"/checkout/preferences", bytes.NewReader(buf))
	if err != nil {
		return domain.PaymentResult{Reason: "could not build payment request"}, err
	}
	req.Header.Set("Authorization", "Bearer "+g.cfg.Token)
	req.Header.Set("Content-Type", "application/json")
	res, err := g.httpClient.Do(req)
	if err != nil {
		return domain.PaymentResult{Reason: "payment provider unreachable"}, fmt.Errorf("mercadopago: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		body, _ := io.ReadAll(res.Body)
		var mpError struct {
			Message string `json:"message"`
		}
		reason := fmt.Sprintf("payment provider returned status %d", res.StatusCode)
		if json.Unmarshal(body, &mpError) == nil && mpError.Message != "" {
			reason = mpError.Message
		}
		if res.StatusCode == http.StatusUnauthorized || res.StatusCode == http.StatusForbidden {
			reason = "payment provider rejected the credentials"
		}
		return domain.PaymentResult{Reason: reason}, fmt.Errorf("mercadopago: preference status %d: %s", res.StatusCode, string(body))
	}
	var pref mpPrefResp
	if err := json.NewDecoder(res.Body).Decode(&pref); err != nil {
		return domain.PaymentResult{Reason: "invalid payment provider response"}, err
	}
	if pref.ID == "" {
		return domain.PaymentResult{Reason: "invalid payment provider response"}, errors.New("mercadopago: empty preference id")
	}
	initPoint := pref.InitPoint
	if strings.HasPrefix(g.cfg.Token, "TEST-") && !g.cfg.Production && pref.SandboxInitPoint != "" {
		initPoint = pref.SandboxInitPoint
	}
	return domain.PaymentResult{
		Success:           true,
		Status:            domain.PaymentStatusPending,
		ProviderReference: pref.ID,
		RedirectURL:       initPoint,
	}, nil
}

// PaymentInfo looks up a payment notified by webhook and returns its mapped
// status and the external reference it was created with.
func (g *Gateway) PaymentInfo(ctx context.Context, paymentID string) (domain.PaymentStatus, string, error) {
	if g.cfg.Token == "" || paymentID == "" {
		return "", "", errors.New("mercadopago: params")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.cfg.APIBase+"/v1/payments/"+paymentID, nil)
	if err != nil {
		return "", "", err
	}
	req.Header.Set("Authorization", "Bearer "+g.cfg.Token)
	res, err := g.httpClient.Do(req)
	if err != nil {
		return "", "", err
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		b, _ := io.ReadAll(res.Body)
		return "", "", fmt.Errorf("mercadopago: payment status %d: %s", res.StatusCode, string(b))
	}
	var pr mpPaymentResp
	if err := json.NewDecoder(res.Body).Decode(&pr); err != nil {
		return "", "", err
	}
	return MapStatus(pr.Status), pr.ExternalReference, nil
}

func MapStatus(s string) domain.PaymentStatus {
	switch s {
	case "approved", "authorized":
		return domain.PaymentStatusPaid
	case "rejected", "cancelled", "refunded", "charged_back":
		return domain.PaymentStatusFailed
	}
	return domain.PaymentStatusPending
}

// VerifyExternalRef checks the signature appended to the order id.
func (g *Gateway) VerifyExternalRef(ext string) (string, bool) {
	parts := strings.Split(ext, "|")
	if len(parts) != 2 {
		return "", false
	}
	orderID, sig := parts[0], parts[1]
	return orderID, hmac.Equal([]byte(g.signExternal(orderID)), []byte(sig))
}
