package offline

import (
	"context"

	"github.com/phenrril/storefront/internal/domain"
)

// Gateway accepts payments settled outside the system, such as cash on
// delivery or bank transfer. They stay pending until confirmed by staff.
type Gateway struct{}

func (Gateway) InitiatePayment(ctx context.Context, o *domain.Order, data domain.PaymentData) (domain.PaymentResult, error) {
	return domain.PaymentResult{
		Success:           true,
		Status:            domain.PaymentStatusPending,
		ProviderReference: "offline:" + o.ID.String(),
	}, nil
}
