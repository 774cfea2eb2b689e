package escrow

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/wholesale/backend/internal/domain/shared"
	"github.com/wholesale/backend/internal/domain/shared/valueobject"
)

// Status represents the status of an order escrow
type Status string

const (
	StatusHold     Status = "HOLD"
	StatusFrozen   Status = "FROZEN"
	StatusReleased Status = "RELEASED"
	StatusRefunded Status = "REFUNDED"
)

// IsSettled reports whether funds have left the escrow
func (s Status) IsSettled() bool {
	return s == StatusReleased || s == StatusRefunded
}

// ReleaseCondition names what must happen before funds go to the dealer
type ReleaseCondition string

const (
	ReleaseOnDelivery ReleaseCondition = "DELIVERY_CONFIRMED"
	ReleaseByAdmin    ReleaseCondition = "ADMIN_RELEASE"
)

// Escrow errors
var (
	ErrConditionNotMet   = shared.NewStateConflictError("RELEASE_CONDITION_NOT_MET", "Escrow release condition has not been met")
	ErrAlreadyReleased   = shared.NewStateConflictError("ESCROW_ALREADY_RELEASED", "Escrow funds were already released")
	ErrAlreadyRefunded   = shared.NewStateConflictError("ESCROW_ALREADY_REFUNDED", "Escrow funds were already refunded")
	ErrFrozen            = shared.NewStateConflictError("ESCROW_FROZEN", "Escrow is frozen by a dispute")
	ErrRefundExceedsHeld = shared.NewCapacityError("REFUND_EXCEEDS_HELD", "Refund exceeds the amount held for the dealer")
	ErrNotEscrowParty    = shared.NewAuthorizationError("NOT_ESCROW_PARTY", "Actor is not a party to this escrow")
)

// Escrow holds a captured order payment until its release condition is met.
// PlatformFee is fixed when the escrow is created.
type Escrow struct {
	shared.BaseAggregateRoot
	OrderID              uuid.UUID
	BuyerID              uuid.UUID
	SellerID             uuid.UUID
	Status               Status
	Amount               decimal.Decimal
	PlatformFee          decimal.Decimal
	DealerAmount         decimal.Decimal
	RefundedAmount       decimal.Decimal
	ReleaseCondition     ReleaseCondition
	TransactionID        string
	ForceReleaseApproved bool
	DeliveryConfirmedAt  *time.Time
	ReleasedAt           *time.Time
	RefundedAt           *time.Time
	RefundConfirmation   string
}

// Hold describes the captured payment being placed in escrow
type Hold struct {
	OrderID       uuid.UUID
	BuyerID       uuid.UUID
	SellerID      uuid.UUID
	Amount        decimal.Decimal
	FeeRate       decimal.Decimal
	TransactionID string
}

// NewEscrow computes the platform fee and dealer amount and puts the funds on HOLD
func NewEscrow(h Hold) (*Escrow, error) {
	if h.OrderID == uuid.Nil {
		return nil, shared.NewValidationError("INVALID_ORDER", "Order ID is required")
	}
	if !valueobject.IsPositive(h.Amount) {
		return nil, shared.NewValidationError("INVALID_AMOUNT", "Escrow amount must be positive")
	}
	if h.FeeRate.IsNegative() || h.FeeRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return nil, shared.NewValidationError("INVALID_FEE_RATE", "Fee rate must be in [0, 1)")
	}
	if h.TransactionID == "" {
		return nil, shared.NewValidationError("MISSING_TRANSACTION", "A captured transaction is required")
	}

	amount := valueobject.RoundMoney(h.Amount)
	fee := valueobject.RoundMoney(amount.Mul(h.FeeRate))
	e := &Escrow{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		OrderID:           h.OrderID,
		BuyerID:           h.BuyerID,
		SellerID:          h.SellerID,
		Status:            StatusHold,
		Amount:            amount,
		PlatformFee:       fee,
		DealerAmount:      amount.Sub(fee),
		RefundedAmount:    decimal.Zero,
		ReleaseCondition:  ReleaseOnDelivery,
		TransactionID:     h.TransactionID,
	}
	e.AddDomainEvent(NewEscrowEvent(EventTypeHeld, e))
	return e, nil
}

// ReleaseConditionMet reports whether a normal release may proceed
func (e *Escrow) ReleaseConditionMet() bool {
	switch e.ReleaseCondition {
	case ReleaseByAdmin:
		return e.ForceReleaseApproved
	default:
		return e.DeliveryConfirmedAt != nil || e.ForceReleaseApproved
	}
}

// IsParty reports whether the actor is the buyer or the seller
func (e *Escrow) IsParty(actorID uuid.UUID) bool {
	return actorID == e.BuyerID || actorID == e.SellerID
}

// CheckRelease explains why a release cannot happen, or returns nil. A
// settled RELEASED escrow returns nil so callers treat it as a no-op.
func (e *Escrow) CheckRelease(actor shared.Actor) error {
	if !e.IsParty(actor.ID) && !actor.Can(shared.CapForceEscrowRelease) {
		return ErrNotEscrowParty
	}
	switch e.Status {
	case StatusReleased:
		return nil
	case StatusRefunded:
		return ErrAlreadyRefunded
	case StatusFrozen:
		return ErrFrozen
	}
	if !e.ReleaseConditionMet() {
		return ErrConditionNotMet
	}
	return nil
}

// CheckRefund explains why a refund cannot happen, or returns nil
func (e *Escrow) CheckRefund() error {
	if e.Status == StatusReleased {
		return ErrAlreadyReleased
	}
	return nil
}

// ApplyPartialRefund moves amount from the dealer's share to the buyer.
// The platform fee is unchanged.
func (e *Escrow) ApplyPartialRefund(amount decimal.Decimal) error {
	if !valueobject.IsPositive(amount) {
		return shared.NewValidationError("INVALID_AMOUNT", "Refund amount must be positive")
	}
	if e.Status.IsSettled() {
		return shared.NewStateConflictError("ESCROW_SETTLED", fmt.Sprintf("Escrow is already %s", e.Status))
	}
	amount = valueobject.RoundMoney(amount)
	if amount.GreaterThan(e.DealerAmount) {
		return ErrRefundExceedsHeld
	}
	e.DealerAmount = e.DealerAmount.Sub(amount)
	e.RefundedAmount = e.RefundedAmount.Add(amount)
	e.Touch()
	return nil
}
