package domain

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrDuplicateVariant  = errors.New("a variant with these options already exists")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrUnauthenticated   = errors.New("authentication required")
	ErrRateLimited       = errors.New("too many requests")
	ErrCartInvalid       = errors.New("cart is invalid")
	ErrNoVariants        = errors.New("at least one variant is required")
)

// ValidationError is user facing and returned as data, never raised.
type ValidationError struct {
	Index   int    `json:"index"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// InsufficientStockError carries the available count so callers can offer a
// corrected quantity.
type InsufficientStockError struct {
	ProductID uuid.UUID
	VariantID *uuid.UUID
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("Insufficient stock available. Requested: %d, Available: %d", e.Requested, e.Available)
}

func (e *InsufficientStockError) Is(target error) bool { return target == ErrInsufficientStock }

// IntegrityError marks a tampered or malformed cart; the whole cart is rejected.
type IntegrityError struct {
	Reason string
}

func (e *IntegrityError) Error() string { return "cart integrity check failed: " + e.Reason }

// TransactionError is returned when the atomic order commit aborts. The
// caller should re-validate the cart and may retry once.
type TransactionError struct {
	Stage string
	Err   error
}

func (e *TransactionError) Error() string {
	return fmt.Sprintf("order transaction failed at %s: %v", e.Stage, e.Err)
}

func (e *TransactionError) Unwrap() error { return e.Err }

// PaymentError is returned after the order was persisted; the order stays with
// payment_status=failed.
type PaymentError struct {
	OrderID uuid.UUID
	Reason  string
	Err     error
}

func (e *PaymentError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("payment for order %s failed: %s: %v", e.OrderID, e.Reason, e.Err)
	}
	return fmt.Sprintf("payment for order %s failed: %s", e.OrderID, e.Reason)
}

func (e *PaymentError) Unwrap() error { return e.Err }
