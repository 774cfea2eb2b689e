package event

import (
	"github.com/wholesale/backend/internal/domain/allocation"
	"github.com/wholesale/backend/internal/domain/collaboration"
	"github.com/wholesale/backend/internal/domain/dispute"
	"github.com/wholesale/backend/internal/domain/escrow"
	"github.com/wholesale/backend/internal/domain/listing"
	"github.com/wholesale/backend/internal/domain/negotiation"
)

// RegisterAllEvents registers every marketplace event so the outbox
// processor can rebuild it from its stored payload.
func RegisterAllEvents(s *EventSerializer) {
	s.Register(negotiation.EventTypeProposed, &negotiation.ProposedEvent{})
	s.Register(negotiation.EventTypeCounterOffered, &negotiation.CounterOfferedEvent{})
	for _, t := range []string{
		negotiation.EventTypeAccepted,
		negotiation.EventTypeRejected,
		negotiation.EventTypeOrderRequested,
		negotiation.EventTypeFulfilled,
	} {
		s.Register(t, &negotiation.StatusChangedEvent{})
	}

	s.Register(allocation.EventTypeCreated, &allocation.CreatedEvent{})
	s.Register(allocation.EventTypeDepleted, &allocation.DepletedEvent{})
	s.Register(allocation.EventTypeRevoked, &allocation.RevokedEvent{})

	for _, t := range []string{
		collaboration.EventTypeGroupCreated,
		collaboration.EventTypeGroupJoined,
		collaboration.EventTypeGroupLeft,
		collaboration.EventTypeGroupLocked,
		collaboration.EventTypeGroupCompleted,
		collaboration.EventTypeGroupCancelled,
		collaboration.EventTypeContributionPaid,
	} {
		s.Register(t, &collaboration.GroupEvent{})
	}

	s.Register(listing.EventTypeListed, &listing.ListedEvent{})
	for _, t := range []string{
		listing.EventTypeOrderPlaced,
		listing.EventTypeOrderCancelled,
		listing.EventTypeOrderDelivered,
	} {
		s.Register(t, &listing.OrderEvent{})
	}

	for _, t := range []string{
		escrow.EventTypeHeld,
		escrow.EventTypeFrozen,
		escrow.EventTypeReleased,
		escrow.EventTypeRefunded,
		escrow.EventTypePartiallyRefunded,
	} {
		s.Register(t, &escrow.EscrowEvent{})
	}
	for _, t := range []string{
		escrow.EventTypeCustomCreated,
		escrow.EventTypeCustomStatusChanged,
		escrow.EventTypeCustomReleased,
		escrow.EventTypeCustomRefunded,
	} {
		s.Register(t, &escrow.CustomEscrowEvent{})
	}

	s.Register(dispute.EventTypeStatusChanged, &dispute.StatusChangedEvent{})
}
