package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/phenrril/storefront/internal/domain"
)

type ReservationRepo struct{ db *gorm.DB }

func NewReservationRepo(db *gorm.DB) *ReservationRepo { return &ReservationRepo{db: db} }

func (r *ReservationRepo) Create(ctx context.Context, res *domain.Reservation) error {
	if res.ID == uuid.Nil {
		res.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(res).Error
}

func (r *ReservationRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.Reservation, error) {
	var res domain.Reservation
	if err := r.db.WithContext(ctx).First(&res, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &res, nil
}

func (r *ReservationRepo) ActiveQuantity(ctx context.Context, productID uuid.UUID, variantID *uuid.UUID, now time.Time) (int, error) {
	var total int64
	q := itemScope(r.db.WithContext(ctx).Model(&domain.Reservation{}), productID, variantID).
		Where("status = ? AND expires_at > ?", domain.ReservationActive, now)
	if err := q.Select("COALESCE(SUM(quantity), 0)").Scan(&total).Error; err != nil {
		return 0, err
	}
	return int(total), nil
}

func (r *ReservationRepo) Transition(ctx context.Context, id uuid.UUID, from, to domain.ReservationStatus) (bool, error) {
	res := r.db.WithContext(ctx).Model(&domain.Reservation{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]any{"status": to, "updated_at": time.Now()})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *ReservationRepo) Extend(ctx context.Context, id uuid.UUID, expiresAt time.Time) error {
	res := r.db.WithContext(ctx).Model(&domain.Reservation{}).
		Where("id = ? AND status = ?", id, domain.ReservationActive).
		Updates(map[string]any{"expires_at": expiresAt, "updated_at": time.Now()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *ReservationRepo) CancelByHolder(ctx context.Context, holder string) (int64, error) {
	return r.bulk(r.db.WithContext(ctx).Where("holder = ?", holder), domain.ReservationCancelled)
}

func (r *ReservationRepo) FulfillByHolder(ctx context.Context, holder string, productID uuid.UUID, variantID *uuid.UUID) (int64, error) {
	return r.bulk(itemScope(r.db.WithContext(ctx).Where("holder = ?", holder), productID, variantID), domain.ReservationFulfilled)
}

func (r *ReservationRepo) ExpireBefore(ctx context.Context, now time.Time) (int64, error) {
	return r.bulk(r.db.WithContext(ctx).Where("expires_at <= ?", now), domain.ReservationExpired)
}

func (r *ReservationRepo) bulk(q *gorm.DB, to domain.ReservationStatus) (int64, error) {
	res := q.Model(&domain.Reservation{}).
		Where("status = ?", domain.ReservationActive).
		Updates(map[string]any{"status": to, "updated_at": time.Now()})
	return res.RowsAffected, res.Error
}

func itemScope(q *gorm.DB, productID uuid.UUID, variantID *uuid.UUID) *gorm.DB {
	q = q.Where("product_id = ?", productID)
	if variantID == nil {
		return q.Where("variant_id IS NULL")
	}
	return q.Where("variant_id = ?", *variantID)
}
