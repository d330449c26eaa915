package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/phenrril/storefront/internal/domain"
)

type OrderUC struct {
	Store     domain.Store
	Cart      *CartUC
	Inventory *InventoryUC
	Gateway   domain.PaymentGateway
	Notifier  domain.Notifier
	Carts     domain.CartStore
	TaxRate   decimal.Decimal
}

type OrderData struct {
	PaymentMethod  string
	ShippingMethod string
	ShippingCost   decimal.Decimal
	DiscountAmount decimal.Decimal
	TaxRate        *decimal.Decimal
	Email          string
	Name           string
	Phone          string
	Payment        domain.PaymentData
}

type PlaceOrderInput struct {
	Holder   string
	Items    []domain.CartItem
	Order    OrderData
	Shipping domain.Address
}

// StockChange is the stock left on an item after checkout.
type StockChange struct {
	ProductID uuid.UUID          `json:"product_id"`
	VariantID *uuid.UUID         `json:"variant_id,omitempty"`
	Remaining int                `json:"remaining"`
	Status    domain.StockStatus `json:"status"`
}

type OrderResult struct {
	Order        *domain.Order
	Payment      domain.PaymentResult
	StockChanges []StockChange
	Stage        OrderStage
}

// skuDemand is the total quantity a cart asks of one stock counter.
type skuDemand struct {
	product *domain.Product
	variant *domain.Variant
	qty     int
}

// CreateOrderFromCart re-validates the cart, checks and takes stock, and
// persists the order in one transaction; payment runs after the commit.
// Either the order exists with every decrement applied or nothing changed.
func (uc *OrderUC) CreateOrderFromCart(ctx context.Context, in PlaceOrderInput) (*OrderResult, error) {
	stage := StageValidating
	logger := log.With().Str("holder", in.Holder).Logger()
	advance := func(s OrderStage) {
		logger.Debug().Str("from", stage.String()).Str("to", s.String()).Msg("order stage")
		stage = s
	}
	fail := func(err error) (*OrderResult, error) {
		logger.Error().Err(err).Str("stage", stage.String()).Array("cart", cartSnapshot(in.Items)).Msg("order failed")
		stage = StageFailed
		return nil, err
	}

	if in.Holder == "" {
		return fail(domain.ErrUnauthenticated)
	}
	if len(in.Items) == 0 {
		return fail(fmt.Errorf("%w: cart is empty", domain.ErrCartInvalid))
	}
	if ms, ok := uc.Gateway.(domain.MethodSupporter); ok && !ms.Supports(in.Order.PaymentMethod) {
		return fail(domain.ValidationError{Field: "payment_method", Message: "Unsupported payment method"})
	}

	var (
		order   *domain.Order
		changes []StockChange
	)
	err := uc.Store.Transaction(ctx, func(r domain.Repos) error {
		validation := uc.Cart.validateCart(ctx, r.Products(), in.Items)
		if !validation.Valid {
			return &CartRejectedError{Result: validation}
		}

		advance(StageInventoryChecking)
		demands, err := uc.checkInventory(validation.lines)
		if err != nil {
			return err
		}

		advance(StagePersisting)
		order = uc.buildOrder(in, validation)
		if err := r.Orders().Create(ctx, order); err != nil {
			return &domain.TransactionError{Stage: stage.String(), Err: err}
		}

		advance(StageInventoryDecrementing)
		for _, d := range demands {
			if err := reduceStock(ctx, r.Products(), d.product, d.variant, d.qty); err != nil {
				return &domain.TransactionError{Stage: stage.String(), Err: err}
			}
			var vid *uuid.UUID
			if d.variant != nil {
				vid = &d.variant.ID
			}
			if _, err := r.Reservations().FulfillByHolder(ctx, in.Holder, d.product.ID, vid); err != nil {
				return &domain.TransactionError{Stage: stage.String(), Err: err}
			}
			change, err := uc.stockAfter(ctx, r.Products(), d, vid)
			if err != nil {
				return &domain.TransactionError{Stage: stage.String(), Err: err}
			}
			changes = append(changes, change)
		}
		return nil
	})
	if err != nil {
		var rejected *CartRejectedError
		var short *domain.InsufficientStockError
		var txErr *domain.TransactionError
		if !errors.As(err, &rejected) && !errors.As(err, &short) && !errors.As(err, &txErr) {
			err = &domain.TransactionError{Stage: stage.String(), Err: err}
		}
		return fail(err)
	}

	advance(StagePaymentInitiating)
	result := &OrderResult{Order: order, StockChanges: changes}
	pay, perr := uc.Gateway.InitiatePayment(ctx, order, in.Order.Payment)
	result.Payment = pay
	if perr != nil || !pay.Success {
		reason := pay.Reason
		if reason == "" && perr != nil {
			reason = perr.Error()
		}
		if err := uc.Store.Orders().UpdatePaymentStatus(ctx, order.ID, domain.PaymentStatusFailed, pay.ProviderReference); err != nil {
			logger.Error().Err(err).Str("order_id", order.ID.String()).Msg("mark payment failed")
		}
		order.PaymentStatus = domain.PaymentStatusFailed
		result.Stage = StageFailed
		_, err := fail(&domain.PaymentError{OrderID: order.ID, Reason: reason, Err: perr})
		return result, err
	}

	status := pay.Status
	if status == "" {
		status = domain.PaymentStatusPaid
	}
	if err := uc.Store.Orders().UpdatePaymentStatus(ctx, order.ID, status, pay.ProviderReference); err != nil {
		logger.Error().Err(err).Str("order_id", order.ID.String()).Msg("update payment status")
	} else {
		order.PaymentStatus = status
		order.PaymentReference = pay.ProviderReference
	}

	if uc.Carts != nil {
		if err := uc.Carts.Clear(ctx, in.Holder); err != nil {
			logger.Warn().Err(err).Msg("clear cart")
		}
	}
	uc.notify(ctx, order)

	advance(StageCompleted)
	result.Stage = stage
	for _, c := range changes {
		if c.Status != domain.StockStatusInStock {
			logger.Info().Str("product_id", c.ProductID.String()).Str("status", string(c.Status)).Int("remaining", c.Remaining).Msg("stock status changed")
		}
	}
	return result, nil
}

// checkInventory sums quantities per stock counter so two lines of the same
// variant cannot each pass on their own.
func (uc *OrderUC) checkInventory(lines []cartLine) ([]skuDemand, error) {
	index := map[string]int{}
	var demands []skuDemand
	for _, l := range lines {
		key := l.product.ID.String()
		if l.variant != nil {
			key += ":" + l.variant.ID.String()
		}
		if i, ok := index[key]; ok {
			demands[i].qty += l.item.Quantity
			continue
		}
		index[key] = len(demands)
		demands = append(demands, skuDemand{product: l.product, variant: l.variant, qty: l.item.Quantity})
	}
	for _, d := range demands {
		check := uc.Inventory.ValidateQuantity(d.product, d.qty, d.variant)
		if check.Valid {
			continue
		}
		var vid *uuid.UUID
		if d.variant != nil {
			vid = &d.variant.ID
		}
		return nil, &domain.InsufficientStockError{ProductID: d.product.ID, VariantID: vid, Requested: d.qty, Available: check.Available}
	}
	return demands, nil
}

// stockAfter reads the counter back after the decrement. The row is held by
// this transaction, so the value includes concurrent checkouts that
// committed first.
func (uc *OrderUC) stockAfter(ctx context.Context, products domain.ProductRepo, d skuDemand, vid *uuid.UUID) (StockChange, error) {
	c := StockChange{ProductID: d.product.ID, VariantID: vid}
	if !d.product.TrackInventory {
		c.Remaining = domain.UnlimitedStock
		c.Status = domain.StockStatusInStock
		return c, nil
	}
	if d.variant != nil {
		v, err := products.FindVariant(ctx, d.variant.ID)
		if err != nil {
			return c, err
		}
		c.Remaining = v.StockQuantity
		c.Status = domain.StatusFor(c.Remaining, v.Threshold(d.product))
		return c, nil
	}
	p, err := products.FindByID(ctx, d.product.ID)
	if err != nil {
		return c, err
	}
	c.Remaining = p.StockQuantity
	c.Status = domain.StatusFor(c.Remaining, p.Threshold())
	return c, nil
}

func (uc *OrderUC) buildOrder(in PlaceOrderInput, v *CartValidation) *domain.Order {
	rate := uc.TaxRate
	if in.Order.TaxRate != nil {
		rate = *in.Order.TaxRate
	}
	subtotal := v.TotalValue
	tax := subtotal.Mul(rate).Round(2)
	grand := subtotal.Add(tax).Add(in.Order.ShippingCost).Sub(in.Order.DiscountAmount)
	if grand.IsNegative() {
		grand = decimal.Zero
	}

	o := &domain.Order{
		ID:             uuid.New(),
		Holder:         in.Holder,
		Status:         domain.OrderStatusNew,
		PaymentStatus:  domain.PaymentStatusPending,
		PaymentMethod:  in.Order.PaymentMethod,
		ShippingMethod: in.Order.ShippingMethod,
		ShippingCost:   in.Order.ShippingCost,
		Subtotal:       subtotal,
		TaxRate:        rate,
		TaxAmount:      tax,
		DiscountAmount: in.Order.DiscountAmount,
		GrandTotal:     grand,
		Email:          in.Order.Email,
		Name:           in.Order.Name,
		Phone:          in.Order.Phone,
	}
	for _, l := range v.lines {
		item := domain.OrderItem{
			ID:          uuid.New(),
			OrderID:     o.ID,
			ProductID:   l.product.ID,
			VariantID:   l.item.VariantID,
			Title:       l.product.Name,
			Options:     l.item.SelectedOptions.Clone(),
			Quantity:    l.item.Quantity,
			UnitAmount:  l.item.UnitAmount,
			TotalAmount: l.item.TotalAmount,
		}
		if l.variant != nil {
			item.SKU = l.variant.SKU
		}
		o.Items = append(o.Items, item)
	}
	addr := in.Shipping
	addr.ID = uuid.New()
	addr.OrderID = o.ID
	o.Address = &addr
	return o
}

func (uc *OrderUC) notify(ctx context.Context, o *domain.Order) {
	if uc.Notifier == nil || o.Notified {
		return
	}
	if err := uc.Notifier.OrderPlaced(ctx, o); err != nil {
		log.Warn().Err(err).Str("order_id", o.ID.String()).Msg("order notification")
		return
	}
	if err := uc.Store.Orders().MarkNotified(ctx, o.ID); err != nil {
		log.Warn().Err(err).Str("order_id", o.ID.String()).Msg("mark notified")
		return
	}
	o.Notified = true
}

// ConfirmPayment applies an asynchronous payment outcome, e.g. from a
// provider webhook. Repeating the current status is a no-op.
func (uc *OrderUC) ConfirmPayment(ctx context.Context, orderID uuid.UUID, status domain.PaymentStatus, reference string) (*domain.Order, error) {
	o, err := uc.Store.Orders().FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.PaymentStatus == status {
		return o, nil
	}
	if !o.PaymentStatus.CanTransitionTo(status) {
		return nil, fmt.Errorf("%w: payment %s -> %s", domain.ErrInvalidTransition, o.PaymentStatus, status)
	}
	if err := uc.Store.Orders().UpdatePaymentStatus(ctx, orderID, status, reference); err != nil {
		return nil, err
	}
	o.PaymentStatus = status
	if reference != "" {
		o.PaymentReference = reference
	}
	if status == domain.PaymentStatusPaid {
		uc.notify(ctx, o)
	}
	return o, nil
}

func (uc *OrderUC) GetOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	return uc.Store.Orders().FindByID(ctx, id)
}

// cartSnapshot logs what was in the cart without any payment data.
type cartSnapshot []domain.CartItem

func (c cartSnapshot) MarshalZerologArray(a *zerolog.Array) {
	for _, it := range c {
		a.Object(snapshotItem(it))
	}
}

type snapshotItem domain.CartItem

func (s snapshotItem) MarshalZerologObject(e *zerolog.Event) {
	e.Str("product_id", s.ProductID.String())
	if s.VariantID != nil {
		e.Str("variant_id", s.VariantID.String())
	}
	e.Int("quantity", s.Quantity).Str("unit_amount", s.UnitAmount.String())
}
