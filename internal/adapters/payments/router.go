package payments

import (
	"context"
	"fmt"
	"strings"

	"github.com/phenrril/storefront/internal/domain"
)

// Router picks a gateway by the order's payment method.
type Router struct {
	gateways map[string]domain.PaymentGateway
}

func NewRouter() *Router { return &Router{gateways: map[string]domain.PaymentGateway{}} }

func (r *Router) Register(gw domain.PaymentGateway, methods ...string) *Router {
	for _, m := range methods {
		r.gateways[methodKey(m)] = gw
	}
	return r
}

func (r *Router) Supports(method string) bool {
	_, ok := r.gateways[methodKey(method)]
	return ok
}

func (r *Router) InitiatePayment(ctx context.Context, o *domain.Order, data domain.PaymentData) (domain.PaymentResult, error) {
	gw, ok := r.gateways[methodKey(o.PaymentMethod)]
	if !ok {
		return domain.PaymentResult{Reason: "Unsupported payment method"}, fmt.Errorf("payments: no gateway for %q", o.PaymentMethod)
	}
	return gw.InitiatePayment(ctx, o, data)
}

func methodKey(m string) string { return strings.ToLower(strings.TrimSpace(m)) }
