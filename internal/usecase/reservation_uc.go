package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/phenrril/storefront/internal/domain"
)

const DefaultReservationTTL = 15 * time.Minute

// ReservationUC manages soft holds. Holds only lower computed availability;
// the stock counters move when a hold is fulfilled.
type ReservationUC struct {
	Store     domain.Store
	Inventory *InventoryUC
	TTL       time.Duration
	Now       func() time.Time
}

type ReserveInput struct {
	Holder    string
	ProductID uuid.UUID
	VariantID *uuid.UUID
	Quantity  int
	TTL       time.Duration
}

func (uc *ReservationUC) now() time.Time {
	if uc.Now != nil {
		return uc.Now()
	}
	return time.Now()
}

func (uc *ReservationUC) ttl(d time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	if uc.TTL > 0 {
		return uc.TTL
	}
	return DefaultReservationTTL
}

func (uc *ReservationUC) Reserve(ctx context.Context, in ReserveInput) (*domain.Reservation, error) {
	if in.Holder == "" {
		return nil, domain.ValidationError{Field: "holder", Message: "A reservation holder is required"}
	}
	if in.Quantity <= 0 {
		return nil, domain.ValidationError{Field: "quantity", Message: "Quantity must be greater than 0"}
	}
	now := uc.now()
	res := &domain.Reservation{
		ID:        uuid.New(),
		Holder:    in.Holder,
		ProductID: in.ProductID,
		VariantID: in.VariantID,
		Quantity:  in.Quantity,
		Status:    domain.ReservationActive,
		ExpiresAt: now.Add(uc.ttl(in.TTL)),
	}
	err := uc.Store.Transaction(ctx, func(r domain.Repos) error {
		if err := r.Products().LockItem(ctx, in.ProductID, in.VariantID); err != nil {
			return err
		}
		p, v, err := loadItem(ctx, r.Products(), in.ProductID, in.VariantID)
		if err != nil {
			return err
		}
		available, err := uc.available(ctx, r, p, v, now)
		if err != nil {
			return err
		}
		if in.Quantity > available {
			return &domain.InsufficientStockError{ProductID: p.ID, VariantID: in.VariantID, Requested: in.Quantity, Available: available}
		}
		return r.Reservations().Create(ctx, res)
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Available is ledger stock minus the active holds on the item.
func (uc *ReservationUC) Available(ctx context.Context, productID uuid.UUID, variantID *uuid.UUID) (int, error) {
	p, v, err := loadItem(ctx, uc.Store.Products(), productID, variantID)
	if err != nil {
		return 0, err
	}
	return uc.available(ctx, uc.Store, p, v, uc.now())
}

func (uc *ReservationUC) available(ctx context.Context, r domain.Repos, p *domain.Product, v *domain.Variant, now time.Time) (int, error) {
	var vid *uuid.UUID
	if v != nil {
		vid = &v.ID
	}
	held, err := r.Reservations().ActiveQuantity(ctx, p.ID, vid, now)
	if err != nil {
		return 0, err
	}
	return availableFor(uc.Inventory, p, v, held), nil
}

func (uc *ReservationUC) Extend(ctx context.Context, id uuid.UUID, ttl time.Duration) (*domain.Reservation, error) {
	var out *domain.Reservation
	err := uc.Store.Transaction(ctx, func(r domain.Repos) error {
		res, err := r.Reservations().FindByID(ctx, id)
		if err != nil {
			return err
		}
		now := uc.now()
		if res.Status != domain.ReservationActive || res.Expired(now) {
			return fmt.Errorf("%w: reservation is %s", domain.ErrInvalidTransition, res.Status)
		}
		res.ExpiresAt = now.Add(uc.ttl(ttl))
		if err := r.Reservations().Extend(ctx, id, res.ExpiresAt); err != nil {
			return err
		}
		out = res
		return nil
	})
	return out, err
}

func (uc *ReservationUC) Release(ctx context.Context, id uuid.UUID) error {
	return uc.transition(ctx, id, domain.ReservationCancelled)
}

// ReleaseByReference cancels every active hold of a holder, e.g. when a cart
// is abandoned.
func (uc *ReservationUC) ReleaseByReference(ctx context.Context, holder string) (int64, error) {
	return uc.Store.Reservations().CancelByHolder(ctx, holder)
}

// Fulfill turns a hold into a real stock decrement. The hold stays active if
// the decrement fails.
func (uc *ReservationUC) Fulfill(ctx context.Context, id uuid.UUID) error {
	return uc.Store.Transaction(ctx, func(r domain.Repos) error {
		res, err := r.Reservations().FindByID(ctx, id)
		if err != nil {
			return err
		}
		if res.Status != domain.ReservationActive {
			return fmt.Errorf("%w: reservation is %s", domain.ErrInvalidTransition, res.Status)
		}
		if res.Expired(uc.now()) {
			return fmt.Errorf("%w: reservation expired", domain.ErrInvalidTransition)
		}
		p, v, err := loadItem(ctx, r.Products(), res.ProductID, res.VariantID)
		if err != nil {
			return err
		}
		if err := reduceStock(ctx, r.Products(), p, v, res.Quantity); err != nil {
			return err
		}
		ok, err := r.Reservations().Transition(ctx, id, domain.ReservationActive, domain.ReservationFulfilled)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrInvalidTransition
		}
		return nil
	})
}

func (uc *ReservationUC) CleanupExpired(ctx context.Context) (int64, error) {
	return uc.Store.Reservations().ExpireBefore(ctx, uc.now())
}

func (uc *ReservationUC) transition(ctx context.Context, id uuid.UUID, to domain.ReservationStatus) error {
	if _, err := uc.Store.Reservations().FindByID(ctx, id); err != nil {
		return err
	}
	ok, err := uc.Store.Reservations().Transition(ctx, id, domain.ReservationActive, to)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrInvalidTransition
	}
	return nil
}

// loadItem resolves a product and optional variant and checks they can be
// sold together.
func loadItem(ctx context.Context, products domain.ProductRepo, productID uuid.UUID, variantID *uuid.UUID) (*domain.Product, *domain.Variant, error) {
	p, err := products.FindByID(ctx, productID)
	if err != nil {
		return nil, nil, err
	}
	if variantID == nil {
		if p.HasVariants {
			return nil, nil, domain.ValidationError{Field: "variant_id", Message: "Please select product options"}
		}
		return p, nil, nil
	}
	v, err := products.FindVariant(ctx, *variantID)
	if err != nil {
		return nil, nil, err
	}
	if v.ProductID != p.ID {
		return nil, nil, domain.ValidationError{Field: "variant_id", Message: "Variant does not belong to the specified product"}
	}
	if !v.IsActive {
		return nil, nil, domain.ValidationError{Field: "variant_id", Message: "Product variant is no longer available"}
	}
	return p, v, nil
}

// ReservationSweeper expires stale holds on a fixed interval.
type ReservationSweeper struct {
	Reservations *ReservationUC
	Interval     time.Duration
}

func (s *ReservationSweeper) Run(ctx context.Context) error {
	interval := s.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			n, err := s.Reservations.CleanupExpired(ctx)
			if err != nil {
				log.Error().Err(err).Msg("reservation cleanup")
				continue
			}
			if n > 0 {
				log.Info().Int64("expired", n).Msg("reservations expired")
			}
		}
	}
}
