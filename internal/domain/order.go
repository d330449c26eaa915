package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusNew        OrderStatus = "new"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusFailed  PaymentStatus = "failed"
)

// CanTransitionTo reports the allowed payment status moves. Orders are
// otherwise immutable once created.
func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	switch s {
	case PaymentStatusPending:
		return next == PaymentStatusPaid || next == PaymentStatusFailed
	case PaymentStatusFailed:
		return next == PaymentStatusPaid
	}
	return false
}

type Order struct {
	ID               uuid.UUID       `gorm:"type:uuid;primaryKey"`
	Holder           string          `gorm:"size:140;index"`
	Status           OrderStatus     `gorm:"type:varchar(30);index"`
	PaymentStatus    PaymentStatus   `gorm:"type:varchar(20);index"`
	PaymentMethod    string          `gorm:"size:30;index"`
	PaymentReference string          `gorm:"size:140"`
	ShippingMethod   string          `gorm:"size:30"`
	ShippingCost     decimal.Decimal `gorm:"type:decimal(12,2);default:0"`
	Subtotal         decimal.Decimal `gorm:"type:decimal(12,2);default:0"`
	TaxRate          decimal.Decimal `gorm:"type:decimal(6,4);default:0"`
	TaxAmount        decimal.Decimal `gorm:"type:decimal(12,2);default:0"`
	DiscountAmount   decimal.Decimal `gorm:"type:decimal(12,2);default:0"`
	GrandTotal       decimal.Decimal `gorm:"type:decimal(12,2)"`
	Email            string          `gorm:"size:140"`
	Name             string          `gorm:"size:140"`
	Phone            string          `gorm:"size:50"`
	Notified         bool            `gorm:"not null;default:false"`
	Items            []OrderItem
	Address          *Address

	CreatedAt time.Time
	UpdatedAt time.Time
}

// OrderItem is a snapshot taken at purchase time; later catalog edits do not
// reach it.
type OrderItem struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey"`
	OrderID     uuid.UUID       `gorm:"type:uuid;index"`
	ProductID   uuid.UUID       `gorm:"type:uuid;index"`
	VariantID   *uuid.UUID      `gorm:"type:uuid;index"`
	Title       string          `gorm:"size:180"`
	SKU         string          `gorm:"size:120"`
	Options     Options         `gorm:"type:jsonb;serializer:json"`
	Quantity    int             `gorm:"not null"`
	UnitAmount  decimal.Decimal `gorm:"type:decimal(12,2)"`
	TotalAmount decimal.Decimal `gorm:"type:decimal(12,2)"`
}

type Address struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	OrderID    uuid.UUID `gorm:"type:uuid;uniqueIndex"`
	FullName   string    `gorm:"size:140"`
	Line1      string    `gorm:"size:255"`
	Line2      string    `gorm:"size:255"`
	City       string    `gorm:"size:80"`
	Province   string    `gorm:"size:80"`
	PostalCode string    `gorm:"size:20"`
	Country    string    `gorm:"size:60"`
	Phone      string    `gorm:"size:50"`
}

type PaymentData map[string]string

type PaymentResult struct {
	Success           bool
	Status            PaymentStatus
	ProviderReference string
	RedirectURL       string
	Reason            string
}
