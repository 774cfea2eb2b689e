package allocation

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/wholesale/backend/internal/domain/shared"
	"github.com/wholesale/backend/internal/domain/shared/valueobject"
)

// MinRetailMarkup is the factor applied to the negotiated price to obtain
// the minimum retail price.
var MinRetailMarkup = decimal.RequireFromString("1.05")

// Type identifies how an allocation came to exist
type Type string

const (
	TypeIndividual Type = "INDIVIDUAL"
	TypeGroup      Type = "GROUP"
	TypeDirect     Type = "DIRECT"
)

// IsValid checks if the type is known
func (t Type) IsValid() bool {
	return t == TypeIndividual || t == TypeGroup || t == TypeDirect
}

// Status represents the status of an allocation
type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusDepleted Status = "DEPLETED"
	StatusRevoked  Status = "REVOKED"
)

// IsValid checks if the status is known
func (s Status) IsValid() bool {
	return s == StatusActive || s == StatusDepleted || s == StatusRevoked
}

// String returns the string representation of Status
func (s Status) String() string {
	return string(s)
}

// Allocation errors
var (
	ErrRevoked     = shared.NewStateConflictError("ALLOCATION_REVOKED", "Allocation has been revoked")
	ErrNotActive   = shared.NewStateConflictError("ALLOCATION_NOT_ACTIVE", "Allocation is not active")
	ErrDuplicate   = shared.NewDomainError(shared.KindDuplicate, "DUPLICATE_ALLOCATION", "An allocation already exists for this negotiation and seller")
	ErrInvalidQty  = shared.NewValidationError("INVALID_QUANTITY", "Quantity must be positive")
	ErrInvariant   = shared.NewIntegrityError("ALLOCATION_INVARIANT_VIOLATED", "Allocation counters are inconsistent")
	ErrNotRevoker  = shared.NewAuthorizationError("NOT_ALLOWED_TO_REVOKE", "Only the manufacturer of the allocation or an admin may revoke it")
	ErrEmptyReason = shared.NewValidationError("REVOKE_REASON_REQUIRED", "A revocation reason is required")
)

// Allocation is a reserved, salable quantity of a product granted to a seller
// at a negotiated price. Counters satisfy
// RemainingQuantity == AllocatedQuantity - SoldQuantity and
// 0 <= SoldQuantity <= AllocatedQuantity.
type Allocation struct {
	shared.BaseAggregateRoot
	NegotiationID     *uuid.UUID
	Type              Type
	GroupID           *uuid.UUID
	SellerID          uuid.UUID
	ManufacturerID    uuid.UUID
	ProductID         uuid.UUID
	AllocatedQuantity int64
	SoldQuantity      int64
	RemainingQuantity int64
	NegotiatedPrice   decimal.Decimal
	MinRetailPrice    decimal.Decimal
	Status            Status
	RevokedReason     string
	RevokedBy         *uuid.UUID
	RevokedAt         *time.Time
}

// Grant describes the terms of a new allocation
type Grant struct {
	NegotiationID   *uuid.UUID
	Type            Type
	GroupID         *uuid.UUID
	SellerID        uuid.UUID
	ManufacturerID  uuid.UUID
	ProductID       uuid.UUID
	Quantity        int64
	NegotiatedPrice decimal.Decimal
}

// MinRetailPriceFor returns negotiatedPrice × 1.05 rounded to cents
func MinRetailPriceFor(negotiatedPrice decimal.Decimal) decimal.Decimal {
	return valueobject.RoundMoney(negotiatedPrice.Mul(MinRetailMarkup))
}

// NewAllocation creates an ACTIVE allocation with nothing sold
func NewAllocation(g Grant) (*Allocation, error) {
	if !g.Type.IsValid() {
		return nil, shared.NewValidationError("INVALID_TYPE", fmt.Sprintf("Unknown allocation type %q", g.Type))
	}
	if g.Type != TypeDirect && g.NegotiationID == nil {
		return nil, shared.NewValidationError("NEGOTIATION_REQUIRED", "Negotiated allocations need a negotiation")
	}
	if g.Type == TypeGroup && g.GroupID == nil {
		return nil, shared.NewValidationError("GROUP_REQUIRED", "Group allocations need a group")
	}
	if g.SellerID == uuid.Nil || g.ManufacturerID == uuid.Nil || g.ProductID == uuid.Nil {
		return nil, shared.NewValidationError("INVALID_PARTY", "Seller, manufacturer and product are required")
	}
	if g.Quantity <= 0 {
		return nil, ErrInvalidQty
	}
	if !valueobject.IsPositive(g.NegotiatedPrice) {
		return nil, shared.NewValidationError("INVALID_PRICE", "Negotiated price must be positive")
	}

	price := valueobject.RoundMoney(g.NegotiatedPrice)
	a := &Allocation{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		NegotiationID:     g.NegotiationID,
		Type:              g.Type,
		GroupID:           g.GroupID,
		SellerID:          g.SellerID,
		ManufacturerID:    g.ManufacturerID,
		ProductID:         g.ProductID,
		AllocatedQuantity: g.Quantity,
		SoldQuantity:      0,
		RemainingQuantity: g.Quantity,
		NegotiatedPrice:   price,
		MinRetailPrice:    MinRetailPriceFor(price),
		Status:            StatusActive,
	}
	a.AddDomainEvent(NewCreatedEvent(a))
	return a, nil
}

// CheckInvariant verifies the counter invariant
func (a *Allocation) CheckInvariant() error {
	if a.SoldQuantity < 0 || a.SoldQuantity > a.AllocatedQuantity ||
		a.AllocatedQuantity-a.SoldQuantity != a.RemainingQuantity {
		return shared.NewIntegrityError(ErrInvariant.Code, fmt.Sprintf(
			"allocation %s: allocated=%d sold=%d remaining=%d",
			a.ID, a.AllocatedQuantity, a.SoldQuantity, a.RemainingQuantity))
	}
	if a.Status == StatusActive && a.RemainingQuantity == 0 {
		return shared.NewIntegrityError(ErrInvariant.Code, fmt.Sprintf(
			"allocation %s is ACTIVE with nothing remaining", a.ID))
	}
	return nil
}

// Consume applies the in-memory form of the ledger's consume rule. The
// repository performs the same rule as one conditional update.
func (a *Allocation) Consume(quantity int64) error {
	if quantity <= 0 {
		return ErrInvalidQty
	}
	switch a.Status {
	case StatusRevoked:
		return ErrRevoked
	case StatusDepleted:
		return Insufficient(a.RemainingQuantity, quantity)
	}
	if a.RemainingQuantity < quantity {
		return Insufficient(a.RemainingQuantity, quantity)
	}
	a.SoldQuantity += quantity
	a.RemainingQuantity -= quantity
	if a.RemainingQuantity == 0 {
		a.Status = StatusDepleted
	}
	a.Touch()
	return a.CheckInvariant()
}

// Restore returns quantity to the allocation, clamped so SoldQuantity never
// drops below zero. It returns the quantity actually restored.
func (a *Allocation) Restore(quantity int64) (int64, error) {
	if quantity <= 0 {
		return 0, ErrInvalidQty
	}
	restored := min(quantity, a.SoldQuantity)
	a.SoldQuantity -= restored
	a.RemainingQuantity = a.AllocatedQuantity - a.SoldQuantity
	if a.Status == StatusDepleted && a.RemainingQuantity > 0 {
		a.Status = StatusActive
	}
	a.Touch()
	return restored, a.CheckInvariant()
}

// CanRevoke checks that actor may revoke this allocation
func (a *Allocation) CanRevoke(actor shared.Actor) error {
	if !actor.IsActive() {
		return shared.ErrAccountInactive
	}
	if !actor.Can(shared.CapRevokeAllocation) {
		return ErrNotRevoker
	}
	if !actor.IsAdmin() && actor.ID != a.ManufacturerID {
		return ErrNotRevoker
	}
	return nil
}

// Revoke moves an ACTIVE allocation to REVOKED. Placed orders are untouched.
func (a *Allocation) Revoke(actor shared.Actor, reason string) error {
	if err := a.CanRevoke(actor); err != nil {
		return err
	}
	if reason == "" {
		return ErrEmptyReason
	}
	if a.Status != StatusActive {
		return shared.NewStateConflictError(ErrNotActive.Code,
			fmt.Sprintf("Cannot revoke an allocation in %s status", a.Status))
	}
	now := time.Now()
	actorID := actor.ID
	a.Status = StatusRevoked
	a.RevokedReason = reason
	a.RevokedBy = &actorID
	a.RevokedAt = &now
	a.UpdatedAt = now
	a.AddDomainEvent(NewRevokedEvent(a))
	return nil
}

// IsSellable reports whether orders may consume from the allocation
func (a *Allocation) IsSellable() bool {
	return a.Status == StatusActive && a.RemainingQuantity > 0
}

// Insufficient builds the CAPACITY error returned when a consume cannot fit
func Insufficient(remaining, requested int64) error {
	return shared.NewCapacityError(shared.ErrInsufficientStock.Code,
		fmt.Sprintf("Insufficient stock: %d remaining, %d requested", remaining, requested))
}
