package collaboration

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/wholesale/backend/internal/domain/shared"
)

// ContributionStatus represents the status of a participant's contribution
type ContributionStatus string

const (
	ContributionPending   ContributionStatus = "PENDING"
	ContributionPaid      ContributionStatus = "PAID"
	ContributionRefunded  ContributionStatus = "REFUNDED"
	ContributionAllocated ContributionStatus = "ALLOCATED"
)

// CanTransitionTo checks if the status can transition to the target status
func (s ContributionStatus) CanTransitionTo(target ContributionStatus) bool {
	switch s {
	case ContributionPending:
		return target == ContributionPaid || target == ContributionRefunded
	case ContributionPaid:
		return target == ContributionAllocated || target == ContributionRefunded
	}
	return false
}

// Contribution is one participant's share of a group deal. Its amount is the
// exact product of the negotiated price and the participant's commitment.
type Contribution struct {
	ID                 uuid.UUID
	GroupID            uuid.UUID
	SellerID           uuid.UUID
	NegotiationID      uuid.UUID
	RequestedQuantity  int64
	ContributionAmount decimal.Decimal
	Paid               bool
	TransactionID      string
	Status             ContributionStatus
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// NewContribution opens a PENDING contribution for a participant
func NewContribution(groupID, negotiationID uuid.UUID, participant Participant, negotiatedPrice decimal.Decimal) (*Contribution, error) {
	if !participant.IsMember() {
		return nil, shared.NewStateConflictError(ErrNotParticipant.Code,
			fmt.Sprintf("Participant %s is %s", participant.SellerID, participant.Status))
	}
	if participant.QuantityCommitment <= 0 {
		return nil, shared.NewValidationError("INVALID_QUANTITY", "Quantity commitment must be positive")
	}
	now := time.Now()
	return &Contribution{
		ID:                 uuid.New(),
		GroupID:            groupID,
		SellerID:           participant.SellerID,
		NegotiationID:      negotiationID,
		RequestedQuantity:  participant.QuantityCommitment,
		ContributionAmount: negotiatedPrice.Mul(decimal.NewFromInt(participant.QuantityCommitment)),
		Status:             ContributionPending,
		CreatedAt:          now,
		UpdatedAt:          now,
	}, nil
}

// BuildContributions opens one contribution per JOINED participant
func BuildContributions(groupID, negotiationID uuid.UUID, participants []Participant, negotiatedPrice decimal.Decimal) ([]Contribution, error) {
	out := make([]Contribution, 0, len(participants))
	for _, p := range participants {
		if !p.IsMember() {
			continue
		}
		c, err := NewContribution(groupID, negotiationID, p, negotiatedPrice)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	if len(out) == 0 {
		return nil, shared.NewStateConflictError("NO_PARTICIPANTS", "Group has no joined participants")
	}
	return out, nil
}

// Reconcile checks Σ contributionAmount == negotiatedPrice × Σ requestedQuantity
func Reconcile(contributions []Contribution, negotiatedPrice decimal.Decimal) error {
	total := decimal.Zero
	var quantity int64
	for _, c := range contributions {
		total = total.Add(c.ContributionAmount)
		quantity += c.RequestedQuantity
	}
	expected := negotiatedPrice.Mul(decimal.NewFromInt(quantity))
	if !total.Equal(expected) {
		return shared.NewIntegrityError("CONTRIBUTIONS_UNRECONCILED",
			fmt.Sprintf("contributions sum to %s, expected %s", total, expected))
	}
	return nil
}

// TotalQuantity sums the requested quantities
func TotalQuantity(contributions []Contribution) int64 {
	var q int64
	for _, c := range contributions {
		q += c.RequestedQuantity
	}
	return q
}
