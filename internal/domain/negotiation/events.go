package negotiation

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/wholesale/backend/internal/domain/shared"
)

// AggregateTypeNegotiation is the aggregate type name
const AggregateTypeNegotiation = "Negotiation"

// Event type constants
const (
	EventTypeProposed       = "NegotiationProposed"
	EventTypeCounterOffered = "NegotiationCounterOffered"
	EventTypeAccepted       = "NegotiationAccepted"
	EventTypeRejected       = "NegotiationRejected"
	EventTypeOrderRequested = "NegotiationOrderRequested"
	EventTypeFulfilled      = "NegotiationFulfilled"
)

// ProposedEvent is raised when a seller opens a negotiation
type ProposedEvent struct {
	shared.BaseDomainEvent
	SellerID       uuid.UUID       `json:"seller_id"`
	ManufacturerID uuid.UUID       `json:"manufacturer_id"`
	ProductID      uuid.UUID       `json:"product_id"`
	Quantity       int64           `json:"quantity"`
	Price          decimal.Decimal `json:"price"`
}

// NewProposedEvent creates a ProposedEvent
func NewProposedEvent(n *Negotiation) *ProposedEvent {
	return &ProposedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeProposed, AggregateTypeNegotiation, n.ID, n.ManufacturerID),
		SellerID:        n.SellerID,
		ManufacturerID:  n.ManufacturerID,
		ProductID:       n.ProductID,
		Quantity:        n.Quantity,
		Price:           n.CurrentOffer,
	}
}

// CounterOfferedEvent is raised when either party changes the offer
type CounterOfferedEvent struct {
	shared.BaseDomainEvent
	OfferedBy uuid.UUID       `json:"offered_by"`
	Quantity  int64           `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

// NewCounterOfferedEvent creates a CounterOfferedEvent
func NewCounterOfferedEvent(n *Negotiation, recipient uuid.UUID) *CounterOfferedEvent {
	return &CounterOfferedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeCounterOffered, AggregateTypeNegotiation, n.ID, recipient),
		OfferedBy:       n.LastOfferBy,
		Quantity:        n.Quantity,
		Price:           n.CurrentOffer,
	}
}

// StatusChangedEvent is raised on every status transition after proposal
type StatusChangedEvent struct {
	shared.BaseDomainEvent
	Status   Status          `json:"status"`
	Quantity int64           `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
	GroupID  *uuid.UUID      `json:"group_id,omitempty"`
}

// NewStatusChangedEvent creates a StatusChangedEvent of the given type
func NewStatusChangedEvent(eventType string, n *Negotiation, recipients ...uuid.UUID) *StatusChangedEvent {
	return &StatusChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(eventType, AggregateTypeNegotiation, n.ID, recipients...),
		Status:          n.Status,
		Quantity:        n.Quantity,
		Price:           n.CurrentOffer,
		GroupID:         n.GroupID,
	}
}
