package collaboration

import (
	"github.com/google/uuid"
	"github.com/wholesale/backend/internal/domain/shared"
)

// AggregateTypeGroup is the aggregate type name
const AggregateTypeGroup = "CollaborationGroup"

// Event type constants
const (
	EventTypeGroupCreated     = "GroupCreated"
	EventTypeGroupJoined      = "GroupJoined"
	EventTypeGroupLeft        = "GroupLeft"
	EventTypeGroupLocked      = "GroupLocked"
	EventTypeGroupCompleted   = "GroupCompleted"
	EventTypeGroupCancelled   = "GroupCancelled"
	EventTypeContributionPaid = "GroupContributionPaid"
)

// GroupEvent carries a snapshot of the group counters
type GroupEvent struct {
	shared.BaseDomainEvent
	Status          GroupStatus `json:"status"`
	CurrentQuantity int64       `json:"current_quantity"`
	TargetQuantity  int64       `json:"target_quantity"`
	MemberCount     int         `json:"member_count"`
	SellerID        *uuid.UUID  `json:"seller_id,omitempty"`
}

// NewGroupEvent creates a GroupEvent notifying the creator
func NewGroupEvent(eventType string, g *Group) *GroupEvent {
	return &GroupEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(eventType, AggregateTypeGroup, g.ID, g.CreatorID),
		Status:          g.Status,
		CurrentQuantity: g.CurrentQuantity,
		TargetQuantity:  g.TargetQuantity,
		MemberCount:     g.MemberCount,
	}
}

// NewMemberEvent creates a GroupEvent about one seller's membership change
func NewMemberEvent(eventType string, g *Group, sellerID uuid.UUID) *GroupEvent {
	e := NewGroupEvent(eventType, g)
	e.SellerID = &sellerID
	e.NotifyList = append(e.NotifyList, sellerID)
	return e
}
