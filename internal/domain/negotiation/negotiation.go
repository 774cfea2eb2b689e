package negotiation

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/wholesale/backend/internal/domain/shared"
	"github.com/wholesale/backend/internal/domain/shared/valueobject"
)

// Status represents the status of a negotiation
type Status string

const (
	StatusOpen           Status = "OPEN"
	StatusAccepted       Status = "ACCEPTED"
	StatusRejected       Status = "REJECTED"
	StatusOrderRequested Status = "ORDER_REQUESTED"
	StatusOrderFulfilled Status = "ORDER_FULFILLED"
)

// IsValid checks if the status is a valid Status
func (s Status) IsValid() bool {
	switch s {
	case StatusOpen, StatusAccepted, StatusRejected, StatusOrderRequested, StatusOrderFulfilled:
		return true
	}
	return false
}

// String returns the string representation of Status
func (s Status) String() string {
	return string(s)
}

// IsTerminal reports whether no transition leaves the status
func (s Status) IsTerminal() bool {
	return s == StatusRejected || s == StatusOrderFulfilled
}

// CanTransitionTo checks if the status can transition to the target status.
// The machine is a strict DAG: OPEN→ACCEPTED→ORDER_REQUESTED→ORDER_FULFILLED
// with OPEN→REJECTED as the only other edge.
func (s Status) CanTransitionTo(target Status) bool {
	switch s {
	case StatusOpen:
		return target == StatusAccepted || target == StatusRejected
	case StatusAccepted:
		return target == StatusOrderRequested
	case StatusOrderRequested:
		return target == StatusOrderFulfilled
	}
	return false
}

// Negotiation is the offer/counter-offer record between a seller and a
// manufacturer for a quantity of one product. A negotiation with a GroupID is
// conducted by the group's creator on behalf of every participant.
type Negotiation struct {
	shared.BaseAggregateRoot
	SellerID       uuid.UUID
	ManufacturerID uuid.UUID
	ProductID      uuid.UUID
	GroupID        *uuid.UUID
	Quantity       int64
	CurrentOffer   decimal.Decimal
	LastOfferBy    uuid.UUID
	Status         Status
	AcceptedAt     *time.Time
	RejectedAt     *time.Time
	RequestedAt    *time.Time
	FulfilledAt    *time.Time
}

// NewNegotiation opens a negotiation with the seller's proposed price
func NewNegotiation(sellerID, manufacturerID, productID uuid.UUID, quantity int64, price decimal.Decimal, groupID *uuid.UUID) (*Negotiation, error) {
	if sellerID == uuid.Nil || manufacturerID == uuid.Nil {
		return nil, shared.NewValidationError("INVALID_PARTY", "Seller and manufacturer are required")
	}
	if sellerID == manufacturerID {
		return nil, shared.NewValidationError("INVALID_PARTY", "Seller and manufacturer must differ")
	}
	if productID == uuid.Nil {
		return nil, shared.NewValidationError("INVALID_PRODUCT", "Product ID cannot be empty")
	}
	if quantity <= 0 {
		return nil, shared.NewValidationError("INVALID_QUANTITY", "Quantity must be positive")
	}
	if !valueobject.IsPositive(price) {
		return nil, shared.NewValidationError("INVALID_PRICE", "Price must be positive")
	}

	n := &Negotiation{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		SellerID:          sellerID,
		ManufacturerID:    manufacturerID,
		ProductID:         productID,
		GroupID:           groupID,
		Quantity:          quantity,
		CurrentOffer:      valueobject.RoundMoney(price),
		LastOfferBy:       sellerID,
		Status:            StatusOpen,
	}
	n.AddDomainEvent(NewProposedEvent(n))
	return n, nil
}

// IsGroup reports whether the negotiation is conducted for a collaboration group
func (n *Negotiation) IsGroup() bool {
	return n.GroupID != nil
}

// IsParty reports whether actorID is one of the two negotiating parties
func (n *Negotiation) IsParty(actorID uuid.UUID) bool {
	return actorID == n.SellerID || actorID == n.ManufacturerID
}

// Counterparty returns the other party relative to actorID
func (n *Negotiation) Counterparty(actorID uuid.UUID) uuid.UUID {
	if actorID == n.SellerID {
		return n.ManufacturerID
	}
	return n.SellerID
}

// Authorize checks that the actor may act on this negotiation
func (n *Negotiation) Authorize(actor shared.Actor) error {
	if err := actor.Require(shared.CapNegotiate); err != nil {
		return err
	}
	if !n.IsParty(actor.ID) {
		return shared.NewAuthorizationError("NOT_A_PARTY", "Only the negotiating parties may act on this negotiation")
	}
	return nil
}

// CounterOffer replaces the current offer. At least one of newPrice and
// newQuantity must be given. The status does not change.
func (n *Negotiation) CounterOffer(actor shared.Actor, newPrice *decimal.Decimal, newQuantity *int64) error {
	if err := n.Authorize(actor); err != nil {
		return err
	}
	if n.Status != StatusOpen {
		return n.invalidTransition("counter-offer on")
	}
	if newPrice == nil && newQuantity == nil {
		return shared.NewValidationError("EMPTY_OFFER", "A counter-offer must change the price or the quantity")
	}
	if newPrice != nil && !valueobject.IsPositive(*newPrice) {
		return shared.NewValidationError("INVALID_PRICE", "Price must be positive")
	}
	if newQuantity != nil && *newQuantity <= 0 {
		return shared.NewValidationError("INVALID_QUANTITY", "Quantity must be positive")
	}

	if newPrice != nil {
		n.CurrentOffer = valueobject.RoundMoney(*newPrice)
	}
	if newQuantity != nil {
		n.Quantity = *newQuantity
	}
	n.LastOfferBy = actor.ID
	n.Touch()
	n.AddDomainEvent(NewCounterOfferedEvent(n, n.Counterparty(actor.ID)))
	return nil
}

// Accept locks the current offer
func (n *Negotiation) Accept(actor shared.Actor) error {
	if err := n.Authorize(actor); err != nil {
		return err
	}
	if err := n.transition(StatusAccepted); err != nil {
		return err
	}
	n.AcceptedAt = stamp(n.UpdatedAt)
	n.AddDomainEvent(NewStatusChangedEvent(EventTypeAccepted, n, n.Counterparty(actor.ID)))
	return nil
}

// Reject closes the negotiation permanently
func (n *Negotiation) Reject(actor shared.Actor) error {
	if err := n.Authorize(actor); err != nil {
		return err
	}
	if err := n.transition(StatusRejected); err != nil {
		return err
	}
	n.RejectedAt = stamp(n.UpdatedAt)
	n.AddDomainEvent(NewStatusChangedEvent(EventTypeRejected, n, n.Counterparty(actor.ID)))
	return nil
}

// RequestOrder asks the manufacturer to produce the accepted deal
func (n *Negotiation) RequestOrder(actor shared.Actor) error {
	if err := n.Authorize(actor); err != nil {
		return err
	}
	if err := n.transition(StatusOrderRequested); err != nil {
		return err
	}
	n.RequestedAt = stamp(n.UpdatedAt)
	n.AddDomainEvent(NewStatusChangedEvent(EventTypeOrderRequested, n, n.Counterparty(actor.ID)))
	return nil
}

// Fulfill closes the negotiation; the caller cuts the allocations in the
// same transaction.
func (n *Negotiation) Fulfill(actor shared.Actor) error {
	if err := n.Authorize(actor); err != nil {
		return err
	}
	if err := n.transition(StatusOrderFulfilled); err != nil {
		return err
	}
	n.FulfilledAt = stamp(n.UpdatedAt)
	n.AddDomainEvent(NewStatusChangedEvent(EventTypeFulfilled, n, n.SellerID, n.ManufacturerID))
	return nil
}

// SetCommittedQuantity pins the quantity of a group negotiation to the
// group's committed total when the order is requested.
func (n *Negotiation) SetCommittedQuantity(quantity int64) error {
	if !n.IsGroup() {
		return shared.NewValidationError("NOT_A_GROUP_NEGOTIATION", "Only group negotiations take a committed quantity")
	}
	if quantity <= 0 {
		return shared.NewValidationError("INVALID_QUANTITY", "Quantity must be positive")
	}
	n.Quantity = quantity
	return nil
}

func (n *Negotiation) transition(target Status) error {
	if !n.Status.CanTransitionTo(target) {
		return n.invalidTransition(fmt.Sprintf("move to %s from", target))
	}
	n.Status = target
	n.Touch()
	return nil
}

func (n *Negotiation) invalidTransition(action string) error {
	return shared.NewStateConflictError("INVALID_TRANSITION",
		fmt.Sprintf("Cannot %s a negotiation in %s status", action, n.Status))
}

func stamp(t time.Time) *time.Time {
	return &t
}
