package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/phenrril/storefront/internal/domain"
)

type Telegram struct {
	token   string
	chatIDs []string
	apiBase string
	client  *http.Client
}

func NewTelegram(token string, chatIDs []string) *Telegram {
	return &Telegram{
		token:   token,
		chatIDs: chatIDs,
		apiBase: "https://api.telegram.org",
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (t *Telegram) OrderPlaced(ctx context.Context, o *domain.Order) error {
	if t.token == "" || len(t.chatIDs) == 0 {
		return fmt.Errorf("telegram not configured")
	}
	text := orderText(o)
	apiURL := t.apiBase + "/bot" + t.token + "/sendMessage"
	var lastErr error
	for _, id := range t.chatIDs {
		form := url.Values{}
		form.Set("chat_id", id)
		form.Set("text", text)
		form.Set("disable_web_page_preview", "1")
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, strings.NewReader(form.Encode()))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		resp, err := t.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		func() {
			defer resp.Body.Close()
			if resp.StatusCode >= 300 {
				body, _ := io.ReadAll(resp.Body)
				lastErr = fmt.Errorf("telegram status %d: %s", resp.StatusCode, string(body))
			}
		}()
	}
	return lastErr
}

func orderText(o *domain.Order) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Order %s - payment %s\n", o.ID, o.PaymentStatus)
	fmt.Fprintf(&b, "Name: %s\nEmail: %s\nPhone: %s\n", o.Name, o.Email, o.Phone)
	if a := o.Address; a != nil && a.Line1 != "" {
		fmt.Fprintf(&b, "Ship (%s) to: %s, %s %s %s\n", o.ShippingMethod, a.Line1, a.City, a.Province, a.PostalCode)
	} else {
		b.WriteString("Pickup\n")
	}
	b.WriteString("Items:\n")
	for _, it := range o.Items {
		fmt.Fprintf(&b, "- %s x%d - $%s", it.Title, it.Quantity, it.UnitAmount.StringFixed(2))
		if len(it.Options) > 0 {
			parts := make([]string, 0, len(it.Options))
			for _, op := range it.Options {
				parts = append(parts, op.Name+": "+op.Value)
			}
			fmt.Fprintf(&b, " (%s)", strings.Join(parts, ", "))
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Total: $%s (shipping: $%s)\n", o.GrandTotal.StringFixed(2), o.ShippingCost.StringFixed(2))
	return b.String()
}
