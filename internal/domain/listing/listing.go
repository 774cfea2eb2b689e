package listing

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/wholesale/backend/internal/domain/allocation"
	"github.com/wholesale/backend/internal/domain/shared"
	"github.com/wholesale/backend/internal/domain/shared/valueobject"
)

// AllocationStatus records whether the listing is backed by an approved allocation
type AllocationStatus string

const (
	AllocationPending  AllocationStatus = "PENDING"
	AllocationApproved AllocationStatus = "APPROVED"
	AllocationRejected AllocationStatus = "REJECTED"
	AllocationNone     AllocationStatus = "NONE"
)

// Listing errors
var (
	ErrPriceTooLow  = shared.NewValidationError("PRICE_TOO_LOW", "Retail price is below the minimum retail price")
	ErrNoAllocation = shared.NewStateConflictError("NO_ALLOCATION", "Listing requires an active allocation")
	ErrNotOwner     = shared.NewAuthorizationError("NOT_LISTING_OWNER", "Only the allocation's seller may manage this listing")
	ErrNotLive      = shared.NewStateConflictError("LISTING_NOT_LIVE", "Listing is not live")
)

// Listing is a seller's retail listing drawing down one allocation.
// Its own SoldQuantity never exceeds AllocatedStock.
type Listing struct {
	shared.BaseAggregateRoot
	ProductID         uuid.UUID
	SellerID          uuid.UUID
	AllocationID      uuid.UUID
	Stock             int64
	AllocatedStock    int64
	SoldQuantity      int64
	RemainingQuantity int64
	RetailPrice       decimal.Decimal
	AllocationStatus  AllocationStatus
	Active            bool
}

// CheckPrice enforces the allocation's minimum retail price
func CheckPrice(a *allocation.Allocation, retailPrice decimal.Decimal) error {
	if !valueobject.IsPositive(retailPrice) {
		return shared.NewValidationError("INVALID_PRICE", "Retail price must be positive")
	}
	if retailPrice.LessThan(a.MinRetailPrice) {
		return shared.NewValidationError(ErrPriceTooLow.Code,
			fmt.Sprintf("Retail price %s is below the minimum %s", retailPrice.StringFixed(2), a.MinRetailPrice.StringFixed(2)))
	}
	return nil
}

// CheckBacking verifies the allocation may back a listing by actor
func CheckBacking(a *allocation.Allocation, actor shared.Actor) error {
	if err := actor.Require(shared.CapListInventory); err != nil {
		return err
	}
	if a.SellerID != actor.ID {
		return ErrNotOwner
	}
	if a.Status != allocation.StatusActive {
		return shared.NewStateConflictError(ErrNoAllocation.Code,
			fmt.Sprintf("Allocation %s is %s", a.ID, a.Status))
	}
	return nil
}

// NewListing creates a live listing for the allocation's remaining stock
func NewListing(a *allocation.Allocation, actor shared.Actor, retailPrice decimal.Decimal) (*Listing, error) {
	if err := CheckBacking(a, actor); err != nil {
		return nil, err
	}
	if err := CheckPrice(a, retailPrice); err != nil {
		return nil, err
	}
	l := &Listing{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		ProductID:         a.ProductID,
		SellerID:          a.SellerID,
		AllocationID:      a.ID,
		Stock:             a.RemainingQuantity,
		AllocatedStock:    a.RemainingQuantity,
		RemainingQuantity: a.RemainingQuantity,
		RetailPrice:       valueobject.RoundMoney(retailPrice),
		AllocationStatus:  AllocationApproved,
		Active:            true,
	}
	l.AddDomainEvent(NewListedEvent(l))
	return l, nil
}

// Relist re-activates an existing listing against the allocation's current
// remaining stock and a new price.
func (l *Listing) Relist(a *allocation.Allocation, actor shared.Actor, retailPrice decimal.Decimal) error {
	if err := CheckBacking(a, actor); err != nil {
		return err
	}
	if err := CheckPrice(a, retailPrice); err != nil {
		return err
	}
	l.AllocatedStock = l.SoldQuantity + a.RemainingQuantity
	l.RemainingQuantity = a.RemainingQuantity
	l.Stock = l.RemainingQuantity
	l.RetailPrice = valueobject.RoundMoney(retailPrice)
	l.AllocationStatus = AllocationApproved
	l.Active = true
	l.Touch()
	l.AddDomainEvent(NewListedEvent(l))
	return nil
}

// Delist takes the listing offline
func (l *Listing) Delist(actor shared.Actor) error {
	if actor.ID != l.SellerID {
		return ErrNotOwner
	}
	l.Active = false
	l.Touch()
	return nil
}

// IsLive reports whether buyers may order from the listing
func (l *Listing) IsLive() bool {
	return l.Active && l.AllocationStatus == AllocationApproved
}

// CheckInvariant verifies the listing counters
func (l *Listing) CheckInvariant() error {
	if l.SoldQuantity < 0 || l.SoldQuantity > l.AllocatedStock ||
		l.AllocatedStock-l.SoldQuantity != l.RemainingQuantity {
		return shared.NewIntegrityError("LISTING_INVARIANT_VIOLATED", fmt.Sprintf(
			"listing %s: allocated=%d sold=%d remaining=%d",
			l.ID, l.AllocatedStock, l.SoldQuantity, l.RemainingQuantity))
	}
	return nil
}
