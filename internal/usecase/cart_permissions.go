package usecase

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/phenrril/storefront/internal/domain"
)

type CartOperation string

const (
	CartOpModify     CartOperation = "cart_modify"
	CartOpPlaceOrder CartOperation = "place_order"
)

type PermissionResult struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
	Err     error  `json:"-"`
}

// ValidateCartPermissions gates cart operations: placing an order needs a
// signed-in customer, and every operation is rate limited per identity. A
// limiter outage lets the request through.
func (uc *CartUC) ValidateCartPermissions(ctx context.Context, id domain.Identity, op CartOperation) PermissionResult {
	if op == CartOpPlaceOrder && !id.Authenticated() {
		return PermissionResult{Reason: "Authentication required to place orders", Err: domain.ErrUnauthenticated}
	}
	if uc.Limiter == nil {
		return PermissionResult{Allowed: true}
	}
	key := string(op) + ":" + id.LimitKey()
	ok, err := uc.Limiter.Allow(ctx, key)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("rate limiter unavailable, allowing request")
		return PermissionResult{Allowed: true}
	}
	if !ok {
		return PermissionResult{Reason: "Too many requests. Please try again later.", Err: domain.ErrRateLimited}
	}
	return PermissionResult{Allowed: true}
}
