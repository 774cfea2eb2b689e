package collaboration

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// GroupRepository persists groups and their participants. Join and Leave
// apply membership and counter changes as conditional updates in one
// transaction.
type GroupRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Group, error)
	Create(ctx context.Context, g *Group) error

	// Join inserts or re-activates the participant and moves the counters.
	// It fails with ErrGroupFull, a GROUP_CLOSED state conflict,
	// ErrAlreadyJoined or ErrRemoved without applying anything.
	Join(ctx context.Context, groupID, sellerID uuid.UUID, quantityCommitment int64) (*Group, *Participant, error)

	// Invite records an INVITED participant
	Invite(ctx context.Context, p *Participant) error

	// Leave marks the JOINED participant LEFT and releases its commitment
	Leave(ctx context.Context, groupID, sellerID uuid.UUID) (*Group, *Participant, error)

	// UpdateStatus moves the group from one status to another, failing with a
	// state conflict if the stored status is not from
	UpdateStatus(ctx context.Context, groupID uuid.UUID, from, to GroupStatus) error

	FindParticipants(ctx context.Context, groupID uuid.UUID) ([]Participant, error)
	FindParticipant(ctx context.Context, groupID, sellerID uuid.UUID) (*Participant, error)
	SetParticipantPayment(ctx context.Context, groupID, sellerID uuid.UUID, status PaymentStatus) error
}

// ContributionRepository persists contributions. (group, seller) is unique.
type ContributionRepository interface {
	// CreateBatch inserts all contributions or none
	CreateBatch(ctx context.Context, contributions []Contribution) error
	FindByGroup(ctx context.Context, groupID uuid.UUID) ([]Contribution, error)
	FindOne(ctx context.Context, groupID, sellerID uuid.UUID) (*Contribution, error)

	// Transition moves one contribution between statuses if it is currently
	// in from; it reports whether a row changed.
	Transition(ctx context.Context, id uuid.UUID, from, to ContributionStatus, transactionID string) (bool, error)

	// TransitionGroup moves every contribution of a group in from to to and
	// returns how many rows changed
	TransitionGroup(ctx context.Context, groupID uuid.UUID, from, to ContributionStatus) (int64, error)

	// SumByGroup returns Σ amount and Σ quantity over a group's contributions
	SumByGroup(ctx context.Context, groupID uuid.UUID) (decimal.Decimal, int64, error)
}
