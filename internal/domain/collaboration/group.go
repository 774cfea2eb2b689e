package collaboration

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/wholesale/backend/internal/domain/shared"
)

// DefaultMaxMembers is the ceiling on concurrently joined participants
const DefaultMaxMembers = 4

// GroupStatus represents the status of a collaboration group
type GroupStatus string

const (
	GroupStatusCreated   GroupStatus = "CREATED"
	GroupStatusActive    GroupStatus = "ACTIVE"
	GroupStatusLocked    GroupStatus = "LOCKED"
	GroupStatusCompleted GroupStatus = "COMPLETED"
	GroupStatusCancelled GroupStatus = "CANCELLED"
)

// IsValid checks if the status is known
func (s GroupStatus) IsValid() bool {
	switch s {
	case GroupStatusCreated, GroupStatusActive, GroupStatusLocked, GroupStatusCompleted, GroupStatusCancelled:
		return true
	}
	return false
}

// AcceptsMembershipChanges reports whether sellers may join or leave
func (s GroupStatus) AcceptsMembershipChanges() bool {
	return s == GroupStatusCreated || s == GroupStatusActive
}

// IsTerminal reports whether the group is finished
func (s GroupStatus) IsTerminal() bool {
	return s == GroupStatusCompleted || s == GroupStatusCancelled
}

// Group errors
var (
	ErrGroupFull      = shared.NewCapacityError("GROUP_FULL", "Group has reached its member ceiling")
	ErrGroupClosed    = shared.NewStateConflictError("GROUP_CLOSED", "Group no longer accepts membership changes")
	ErrNotEligible    = shared.NewAuthorizationError("COLLABORATION_NOT_ELIGIBLE", "Seller lacks a collaboration-eligible subscription")
	ErrNotVerified    = shared.NewAuthorizationError("SELLER_NOT_VERIFIED", "Seller does not hold a verified badge")
	ErrNotCreator     = shared.NewAuthorizationError("NOT_GROUP_CREATOR", "Only the group creator may do this")
	ErrNotParticipant = shared.NewStateConflictError("NOT_A_PARTICIPANT", "Seller has not joined this group")
	ErrRemoved        = shared.NewAuthorizationError("PARTICIPANT_REMOVED", "Seller was removed from this group")
	ErrAlreadyJoined  = shared.NewDomainError(shared.KindDuplicate, "ALREADY_JOINED", "Seller already joined this group")
)

// Group is a pooled-demand construct that lets several sellers jointly reach
// a manufacturer's minimum order quantity.
type Group struct {
	shared.BaseAggregateRoot
	CreatorID            uuid.UUID
	Category             string
	ProductID            *uuid.UUID
	TargetQuantity       int64
	CurrentQuantity      int64
	MemberCount          int
	MaxMembers           int
	RequiredDeliveryDate time.Time
	Status               GroupStatus
}

// NewGroup creates a group in CREATED status
func NewGroup(creatorID uuid.UUID, category string, targetQuantity int64, requiredDeliveryDate time.Time, productID *uuid.UUID) (*Group, error) {
	if creatorID == uuid.Nil {
		return nil, shared.NewValidationError("INVALID_CREATOR", "Creator is required")
	}
	if category == "" {
		return nil, shared.NewValidationError("INVALID_CATEGORY", "Category is required")
	}
	if targetQuantity <= 0 {
		return nil, shared.NewValidationError("INVALID_TARGET_QUANTITY", "Target quantity must be positive")
	}
	if !requiredDeliveryDate.After(time.Now()) {
		return nil, shared.NewValidationError("INVALID_DELIVERY_DATE", "Required delivery date must be in the future")
	}

	g := &Group{
		BaseAggregateRoot:    shared.NewBaseAggregateRoot(),
		CreatorID:            creatorID,
		Category:             category,
		ProductID:            productID,
		TargetQuantity:       targetQuantity,
		MaxMembers:           DefaultMaxMembers,
		RequiredDeliveryDate: requiredDeliveryDate,
		Status:               GroupStatusCreated,
	}
	g.AddDomainEvent(NewGroupEvent(EventTypeGroupCreated, g))
	return g, nil
}

// CheckJoin validates a join against the in-memory state. The repository
// re-applies the same conditions atomically.
func (g *Group) CheckJoin(quantityCommitment int64) error {
	if quantityCommitment <= 0 {
		return shared.NewValidationError("INVALID_QUANTITY", "Quantity commitment must be positive")
	}
	if !g.Status.AcceptsMembershipChanges() {
		return g.closed()
	}
	if g.MemberCount >= g.MaxMembers {
		return ErrGroupFull
	}
	return nil
}

// ApplyJoin adds a commitment to the counters, locking the group once the
// target is reached.
func (g *Group) ApplyJoin(quantityCommitment int64) error {
	if err := g.CheckJoin(quantityCommitment); err != nil {
		return err
	}
	g.CurrentQuantity += quantityCommitment
	g.MemberCount++
	g.Status = NextStatusAfterJoin(g.CurrentQuantity, g.TargetQuantity)
	g.Touch()
	return nil
}

// ApplyLeave removes a commitment from the counters
func (g *Group) ApplyLeave(quantityCommitment int64) error {
	if !g.Status.AcceptsMembershipChanges() {
		return g.closed()
	}
	if g.MemberCount <= 0 || g.CurrentQuantity < quantityCommitment {
		return shared.NewIntegrityError("GROUP_COUNTERS_INCONSISTENT",
			fmt.Sprintf("group %s cannot release %d from %d", g.ID, quantityCommitment, g.CurrentQuantity))
	}
	g.CurrentQuantity -= quantityCommitment
	g.MemberCount--
	g.Touch()
	return nil
}

// NextStatusAfterJoin is LOCKED when the target is met and ACTIVE otherwise
func NextStatusAfterJoin(current, target int64) GroupStatus {
	if current >= target {
		return GroupStatusLocked
	}
	return GroupStatusActive
}

// Cancel abandons the group before fulfillment
func (g *Group) Cancel(actor shared.Actor) error {
	if actor.ID != g.CreatorID && !actor.IsAdmin() {
		return ErrNotCreator
	}
	if g.Status.IsTerminal() {
		return g.closed()
	}
	g.Status = GroupStatusCancelled
	g.Touch()
	g.AddDomainEvent(NewGroupEvent(EventTypeGroupCancelled, g))
	return nil
}

// Complete marks a LOCKED group as fulfilled
func (g *Group) Complete() error {
	if g.Status != GroupStatusLocked {
		return shared.NewStateConflictError("GROUP_NOT_LOCKED",
			fmt.Sprintf("Cannot complete a group in %s status", g.Status))
	}
	g.Status = GroupStatusCompleted
	g.Touch()
	g.AddDomainEvent(NewGroupEvent(EventTypeGroupCompleted, g))
	return nil
}

// RequireLocked returns a STATE_CONFLICT unless the group is LOCKED
func (g *Group) RequireLocked() error {
	if g.Status != GroupStatusLocked {
		return shared.NewStateConflictError("GROUP_NOT_LOCKED",
			fmt.Sprintf("Group must be LOCKED, it is %s", g.Status))
	}
	return nil
}

func (g *Group) closed() error {
	return shared.NewStateConflictError(ErrGroupClosed.Code,
		fmt.Sprintf("Group is %s and no longer accepts this change", g.Status))
}
