package memory

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/phenrril/storefront/internal/domain"
)

type reservationRepo struct {
	s  *Store
	tx bool
}

func (r *reservationRepo) Create(ctx context.Context, res *domain.Reservation) error {
	return r.s.locked(r.tx, func(st *state) error {
		if res.ID == uuid.Nil {
			res.ID = uuid.New()
		}
		now := time.Now()
		res.CreatedAt, res.UpdatedAt = now, now
		st.reservations[res.ID] = *res
		return nil
	})
}

func (r *reservationRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.Reservation, error) {
	var out *domain.Reservation
	err := r.s.locked(r.tx, func(st *state) error {
		res, ok := st.reservations[id]
		if !ok {
			return domain.ErrNotFound
		}
		out = &res
		return nil
	})
	return out, err
}

func (r *reservationRepo) ActiveQuantity(ctx context.Context, productID uuid.UUID, variantID *uuid.UUID, now time.Time) (int, error) {
	total := 0
	err := r.s.locked(r.tx, func(st *state) error {
		for _, res := range st.reservations {
			if res.Status == domain.ReservationActive && !res.Expired(now) && res.SameItem(productID, variantID) {
				total += res.Quantity
			}
		}
		return nil
	})
	return total, err
}

func (r *reservationRepo) Transition(ctx context.Context, id uuid.UUID, from, to domain.ReservationStatus) (bool, error) {
	changed := false
	err := r.s.locked(r.tx, func(st *state) error {
		res, ok := st.reservations[id]
		if !ok {
			return domain.ErrNotFound
		}
		if res.Status != from {
			return nil
		}
		res.Status = to
		res.UpdatedAt = time.Now()
		st.reservations[id] = res
		changed = true
		return nil
	})
	return changed, err
}

func (r *reservationRepo) Extend(ctx context.Context, id uuid.UUID, expiresAt time.Time) error {
	return r.s.locked(r.tx, func(st *state) error {
		res, ok := st.reservations[id]
		if !ok || res.Status != domain.ReservationActive {
			return domain.ErrNotFound
		}
		res.ExpiresAt = expiresAt
		res.UpdatedAt = time.Now()
		st.reservations[id] = res
		return nil
	})
}

func (r *reservationRepo) CancelByHolder(ctx context.Context, holder string) (int64, error) {
	return r.bulk(func(res domain.Reservation) bool { return res.Holder == holder }, domain.ReservationCancelled)
}

func (r *reservationRepo) FulfillByHolder(ctx context.Context, holder string, productID uuid.UUID, variantID *uuid.UUID) (int64, error) {
	return r.bulk(func(res domain.Reservation) bool {
		return res.Holder == holder && res.SameItem(productID, variantID)
	}, domain.ReservationFulfilled)
}

func (r *reservationRepo) ExpireBefore(ctx context.Context, now time.Time) (int64, error) {
	return r.bulk(func(res domain.Reservation) bool { return res.Expired(now) }, domain.ReservationExpired)
}

func (r *reservationRepo) bulk(match func(domain.Reservation) bool, to domain.ReservationStatus) (int64, error) {
	var n int64
	err := r.s.locked(r.tx, func(st *state) error {
		for id, res := range st.reservations {
			if res.Status != domain.ReservationActive || !match(res) {
				continue
			}
			res.Status = to
			res.UpdatedAt = time.Now()
			st.reservations[id] = res
			n++
		}
		return nil
	})
	return n, err
}
