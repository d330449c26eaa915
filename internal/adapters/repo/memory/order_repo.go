package memory

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/phenrril/storefront/internal/domain"
)

type orderRepo struct {
	s  *Store
	tx bool
}

func (r *orderRepo) Create(ctx context.Context, o *domain.Order) error {
	return r.s.locked(r.tx, func(st *state) error {
		if o.ID == uuid.Nil {
			o.ID = uuid.New()
		}
		for i := range o.Items {
			if o.Items[i].ID == uuid.Nil {
				o.Items[i].ID = uuid.New()
			}
			o.Items[i].OrderID = o.ID
		}
		if o.Address != nil {
			if o.Address.ID == uuid.Nil {
				o.Address.ID = uuid.New()
			}
			o.Address.OrderID = o.ID
		}
		now := time.Now()
		o.CreatedAt, o.UpdatedAt = now, now
		st.orders[o.ID] = cloneOrder(*o)
		return nil
	})
}

func (r *orderRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	var out *domain.Order
	err := r.s.locked(r.tx, func(st *state) error {
		o, ok := st.orders[id]
		if !ok {
			return domain.ErrNotFound
		}
		c := cloneOrder(o)
		out = &c
		return nil
	})
	return out, err
}

func (r *orderRepo) UpdatePaymentStatus(ctx context.Context, id uuid.UUID, status domain.PaymentStatus, reference string) error {
	return r.s.locked(r.tx, func(st *state) error {
		o, ok := st.orders[id]
		if !ok {
			return domain.ErrNotFound
		}
		o.PaymentStatus = status
		if reference != "" {
			o.PaymentReference = reference
		}
		o.UpdatedAt = time.Now()
		st.orders[id] = o
		return nil
	})
}

func (r *orderRepo) MarkNotified(ctx context.Context, id uuid.UUID) error {
	return r.s.locked(r.tx, func(st *state) error {
		o, ok := st.orders[id]
		if !ok {
			return domain.ErrNotFound
		}
		o.Notified = true
		st.orders[id] = o
		return nil
	})
}

// CountOrders reports how many orders are stored.
func (s *Store) CountOrders() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.st.orders)
}
