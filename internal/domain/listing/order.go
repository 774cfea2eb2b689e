package listing

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/wholesale/backend/internal/domain/shared"
	"github.com/wholesale/backend/internal/domain/shared/valueobject"
)

// OrderStatus represents the status of a retail order
type OrderStatus string

const (
	OrderPlaced             OrderStatus = "PLACED"
	OrderPartiallyCancelled OrderStatus = "PARTIALLY_CANCELLED"
	OrderCancelled          OrderStatus = "CANCELLED"
	OrderDelivered          OrderStatus = "DELIVERED"
)

// IsOpen reports whether units of the order may still be cancelled
func (s OrderStatus) IsOpen() bool {
	return s == OrderPlaced || s == OrderPartiallyCancelled
}

// Refundable reports whether a refund of the order returns its outstanding
// units to stock
func (s OrderStatus) Refundable() bool {
	return s.IsOpen() || s == OrderDelivered
}

// Order is a buyer's purchase from one listing
type Order struct {
	shared.BaseAggregateRoot
	ListingID         uuid.UUID
	AllocationID      uuid.UUID
	BuyerID           uuid.UUID
	SellerID          uuid.UUID
	Quantity          int64
	CancelledQuantity int64
	UnitPrice         decimal.Decimal
	TaxAmount         decimal.Decimal
	TotalAmount       decimal.Decimal
	Status            OrderStatus
	DeliveredAt       *time.Time
}

// NewOrder prices an order from a listing. taxAmount is precomputed upstream.
func NewOrder(l *Listing, buyer shared.Actor, quantity int64, taxAmount decimal.Decimal) (*Order, error) {
	if err := buyer.Require(shared.CapPlaceOrder); err != nil {
		return nil, err
	}
	if quantity <= 0 {
		return nil, shared.NewValidationError("INVALID_QUANTITY", "Quantity must be positive")
	}
	if taxAmount.IsNegative() {
		return nil, shared.NewValidationError("INVALID_TAX", "Tax amount cannot be negative")
	}
	if !l.IsLive() {
		return nil, ErrNotLive
	}
	if buyer.ID == l.SellerID {
		return nil, shared.NewValidationError("SELF_PURCHASE", "Sellers cannot buy from their own listing")
	}
	tax := valueobject.RoundMoney(taxAmount)
	o := &Order{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		ListingID:         l.ID,
		AllocationID:      l.AllocationID,
		BuyerID:           buyer.ID,
		SellerID:          l.SellerID,
		Quantity:          quantity,
		UnitPrice:         l.RetailPrice,
		TaxAmount:         tax,
		TotalAmount:       l.RetailPrice.Mul(decimal.NewFromInt(quantity)).Add(tax),
		Status:            OrderPlaced,
	}
	o.AddDomainEvent(NewOrderEvent(EventTypeOrderPlaced, o, 0))
	return o, nil
}

// OutstandingQuantity is the number of units not yet cancelled
func (o *Order) OutstandingQuantity() int64 {
	return o.Quantity - o.CancelledQuantity
}

// CheckCancel validates cancelling quantity units
func (o *Order) CheckCancel(actor shared.Actor, quantity int64) error {
	if actor.ID != o.BuyerID && actor.ID != o.SellerID && !actor.Can(shared.CapManageEscrow) {
		return shared.NewAuthorizationError("NOT_ORDER_PARTY", "Only the buyer or seller may cancel this order")
	}
	if quantity <= 0 {
		return shared.NewValidationError("INVALID_QUANTITY", "Quantity must be positive")
	}
	if !o.Status.IsOpen() {
		return shared.NewStateConflictError("ORDER_CLOSED", fmt.Sprintf("Cannot cancel an order in %s status", o.Status))
	}
	if quantity > o.OutstandingQuantity() {
		return shared.NewValidationError("CANCEL_EXCEEDS_ORDER",
			fmt.Sprintf("Cannot cancel %d units, %d outstanding", quantity, o.OutstandingQuantity()))
	}
	return nil
}

// RefundAmountFor is the amount returned to the buyer when quantity units
// are cancelled. Tax is returned in proportion to the cancelled units.
func (o *Order) RefundAmountFor(quantity int64) decimal.Decimal {
	goods := o.UnitPrice.Mul(decimal.NewFromInt(quantity))
	tax := decimal.Zero
	if o.Quantity > 0 && o.TaxAmount.IsPositive() {
		tax = o.TaxAmount.Mul(decimal.NewFromInt(quantity)).Div(decimal.NewFromInt(o.Quantity))
	}
	return valueobject.RoundMoney(goods.Add(tax))
}

// StatusAfterCancelling returns the status once cancelled units reach total
func StatusAfterCancelling(quantity, cancelled int64) OrderStatus {
	if cancelled >= quantity {
		return OrderCancelled
	}
	return OrderPartiallyCancelled
}
