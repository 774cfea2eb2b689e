package dispute

import (
	"github.com/google/uuid"
	"github.com/wholesale/backend/internal/domain/shared"
)

const (
	AggregateTypeDispute   = "Dispute"
	EventTypeStatusChanged = "DisputeStatusChanged"
)

// StatusChangedEvent is raised on every dispute transition, including opening
type StatusChangedEvent struct {
	shared.BaseDomainEvent
	OrderID    uuid.UUID  `json:"order_id"`
	From       Status     `json:"from,omitempty"`
	To         Status     `json:"to"`
	ActorID    uuid.UUID  `json:"actor_id"`
	Resolution Resolution `json:"resolution,omitempty"`
}

// NewStatusChangedEvent creates a StatusChangedEvent notifying both parties
func NewStatusChangedEvent(d *Dispute, from Status, actorID uuid.UUID) *StatusChangedEvent {
	return &StatusChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeStatusChanged, AggregateTypeDispute, d.ID, d.BuyerID, d.SellerID),
		OrderID:         d.OrderID,
		From:            from,
		To:              d.Status,
		ActorID:         actorID,
		Resolution:      d.Resolution,
	}
}
