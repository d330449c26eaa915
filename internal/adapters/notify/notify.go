package notify

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/phenrril/storefront/internal/domain"
)

// Multi fans an order out to every notifier and joins their errors.
type Multi []domain.Notifier

func (m Multi) OrderPlaced(ctx context.Context, o *domain.Order) error {
	var errs []error
	for _, n := range m {
		if err := n.OrderPlaced(ctx, o); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Log only writes the order to the log; used when no channel is configured.
type Log struct{}

func (Log) OrderPlaced(ctx context.Context, o *domain.Order) error {
	log.Info().
		Str("order_id", o.ID.String()).
		Str("payment_status", string(o.PaymentStatus)).
		Str("grand_total", o.GrandTotal.StringFixed(2)).
		Int("items", len(o.Items)).
		Msg("order placed")
	return nil
}
