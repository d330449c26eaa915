package domain

import (
	"time"

	"github.com/google/uuid"
)

type ReservationStatus string

const (
	ReservationActive    ReservationStatus = "active"
	ReservationFulfilled ReservationStatus = "fulfilled"
	ReservationCancelled ReservationStatus = "cancelled"
	ReservationExpired   ReservationStatus = "expired"
)

// Reservation is a soft hold: it lowers computed availability without
// touching the stock counters until it is fulfilled.
type Reservation struct {
	ID        uuid.UUID         `gorm:"type:uuid;primaryKey"`
	Holder    string            `gorm:"size:140;index"`
	ProductID uuid.UUID         `gorm:"type:uuid;index:idx_reservations_item"`
	VariantID *uuid.UUID        `gorm:"type:uuid;index:idx_reservations_item"`
	Quantity  int               `gorm:"not null"`
	Status    ReservationStatus `gorm:"type:varchar(20);index"`
	ExpiresAt time.Time         `gorm:"index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (r *Reservation) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// SameItem reports whether the reservation holds the given product/variant.
func (r *Reservation) SameItem(productID uuid.UUID, variantID *uuid.UUID) bool {
	if r.ProductID != productID {
		return false
	}
	if r.VariantID == nil || variantID == nil {
		return r.VariantID == nil && variantID == nil
	}
	return *r.VariantID == *variantID
}
