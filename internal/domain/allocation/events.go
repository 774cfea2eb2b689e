package allocation

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/wholesale/backend/internal/domain/shared"
)

// AggregateTypeAllocation is the aggregate type name
const AggregateTypeAllocation = "Allocation"

// Event type constants
const (
	EventTypeCreated  = "AllocationCreated"
	EventTypeDepleted = "AllocationDepleted"
	EventTypeRevoked  = "AllocationRevoked"
)

// CreatedEvent is raised when an allocation is cut
type CreatedEvent struct {
	shared.BaseDomainEvent
	Type              Type            `json:"allocation_type"`
	NegotiationID     *uuid.UUID      `json:"negotiation_id,omitempty"`
	GroupID           *uuid.UUID      `json:"group_id,omitempty"`
	ProductID         uuid.UUID       `json:"product_id"`
	AllocatedQuantity int64           `json:"allocated_quantity"`
	MinRetailPrice    decimal.Decimal `json:"min_retail_price"`
}

// NewCreatedEvent creates a CreatedEvent
func NewCreatedEvent(a *Allocation) *CreatedEvent {
	return &CreatedEvent{
		BaseDomainEvent:   shared.NewBaseDomainEvent(EventTypeCreated, AggregateTypeAllocation, a.ID, a.SellerID),
		Type:              a.Type,
		NegotiationID:     a.NegotiationID,
		GroupID:           a.GroupID,
		ProductID:         a.ProductID,
		AllocatedQuantity: a.AllocatedQuantity,
		MinRetailPrice:    a.MinRetailPrice,
	}
}

// DepletedEvent is raised when the last unit of an allocation is sold
type DepletedEvent struct {
	shared.BaseDomainEvent
	ProductID uuid.UUID `json:"product_id"`
}

// NewDepletedEvent creates a DepletedEvent
func NewDepletedEvent(a *Allocation) *DepletedEvent {
	return &DepletedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeDepleted, AggregateTypeAllocation, a.ID, a.SellerID, a.ManufacturerID),
		ProductID:       a.ProductID,
	}
}

// RevokedEvent is raised when a human actor revokes an allocation
type RevokedEvent struct {
	shared.BaseDomainEvent
	Reason    string    `json:"reason"`
	RevokedBy uuid.UUID `json:"revoked_by"`
}

// NewRevokedEvent creates a RevokedEvent
func NewRevokedEvent(a *Allocation) *RevokedEvent {
	e := &RevokedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeRevoked, AggregateTypeAllocation, a.ID, a.SellerID),
		Reason:          a.RevokedReason,
	}
	if a.RevokedBy != nil {
		e.RevokedBy = *a.RevokedBy
	}
	return e
}
