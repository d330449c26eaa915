package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type ProductRepo interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Product, error)
	FindVariant(ctx context.Context, id uuid.UUID) (*Variant, error)
	ListVariants(ctx context.Context, productID uuid.UUID) ([]Variant, error)
	ActiveVariantsFor(ctx context.Context, productIDs []uuid.UUID) (map[uuid.UUID][]Variant, error)
	List(ctx context.Context, f ProductFilter) ([]Product, int64, error)
	Save(ctx context.Context, p *Product) error
	SaveVariant(ctx context.Context, v *Variant) error
	DecrementProductStock(ctx context.Context, id uuid.UUID, qty int) error
	DecrementVariantStock(ctx context.Context, id uuid.UUID, qty int) error
	IncrementProductStock(ctx context.Context, id uuid.UUID, qty int) error
	IncrementVariantStock(ctx context.Context, id uuid.UUID, qty int) error
	// LockItem holds the stock row of an item until the enclosing
	// transaction ends. Outside a transaction it only checks existence.
	LockItem(ctx context.Context, productID uuid.UUID, variantID *uuid.UUID) error
}

type OrderRepo interface {
	Create(ctx context.Context, o *Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*Order, error)
	UpdatePaymentStatus(ctx context.Context, id uuid.UUID, status PaymentStatus, reference string) error
	MarkNotified(ctx context.Context, id uuid.UUID) error
}

type ReservationRepo interface {
	Create(ctx context.Context, r *Reservation) error
	FindByID(ctx context.Context, id uuid.UUID) (*Reservation, error)
	ActiveQuantity(ctx context.Context, productID uuid.UUID, variantID *uuid.UUID, now time.Time) (int, error)
	Transition(ctx context.Context, id uuid.UUID, from, to ReservationStatus) (bool, error)
	Extend(ctx context.Context, id uuid.UUID, expiresAt time.Time) error
	CancelByHolder(ctx context.Context, holder string) (int64, error)
	FulfillByHolder(ctx context.Context, holder string, productID uuid.UUID, variantID *uuid.UUID) (int64, error)
	ExpireBefore(ctx context.Context, now time.Time) (int64, error)
}

type Repos interface {
	Products() ProductRepo
	Orders() OrderRepo
	Reservations() ReservationRepo
}

// Store runs fn inside one all-or-nothing unit; any error returned by fn
// rolls back every write made through the Repos it was given.
type Store interface {
	Repos
	Transaction(ctx context.Context, fn func(r Repos) error) error
}

type PaymentGateway interface {
	InitiatePayment(ctx context.Context, o *Order, data PaymentData) (PaymentResult, error)
}

// MethodSupporter is implemented by gateways that can tell before an order is
// placed whether a payment method will be accepted.
type MethodSupporter interface {
	Supports(method string) bool
}

type Notifier interface {
	OrderPlaced(ctx context.Context, o *Order) error
}

type CartStore interface {
	Load(ctx context.Context, holder string) ([]CartItem, error)
	Save(ctx context.Context, holder string, items []CartItem) error
	Clear(ctx context.Context, holder string) error
}

type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}
