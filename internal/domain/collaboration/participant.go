package collaboration

import (
	"time"

	"github.com/google/uuid"
)

// ParticipantStatus represents a seller's membership status in a group
type ParticipantStatus string

const (
	ParticipantInvited ParticipantStatus = "INVITED"
	ParticipantJoined  ParticipantStatus = "JOINED"
	ParticipantLeft    ParticipantStatus = "LEFT"
	ParticipantRemoved ParticipantStatus = "REMOVED"
)

// PaymentStatus tracks a participant's contribution payment
type PaymentStatus string

const (
	PaymentUnpaid   PaymentStatus = "UNPAID"
	PaymentPaid     PaymentStatus = "PAID"
	PaymentRefunded PaymentStatus = "REFUNDED"
)

// Participant is one seller's membership in a group. There is exactly one
// row per (group, seller); leaving and rejoining reuse it.
type Participant struct {
	ID                 uuid.UUID
	GroupID            uuid.UUID
	SellerID           uuid.UUID
	QuantityCommitment int64
	Status             ParticipantStatus
	PaymentStatus      PaymentStatus
	JoinedAt           *time.Time
	LeftAt             *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// NewJoinedParticipant creates a JOINED participant
func NewJoinedParticipant(groupID, sellerID uuid.UUID, quantityCommitment int64) *Participant {
	now := time.Now()
	return &Participant{
		ID:                 uuid.New(),
		GroupID:            groupID,
		SellerID:           sellerID,
		QuantityCommitment: quantityCommitment,
		Status:             ParticipantJoined,
		PaymentStatus:      PaymentUnpaid,
		JoinedAt:           &now,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

// NewInvitedParticipant creates an INVITED participant with no commitment
func NewInvitedParticipant(groupID, sellerID uuid.UUID) *Participant {
	p := NewJoinedParticipant(groupID, sellerID, 0)
	p.Status = ParticipantInvited
	p.JoinedAt = nil
	return p
}

// IsMember reports whether the participant currently counts toward the group
func (p *Participant) IsMember() bool {
	return p.Status == ParticipantJoined
}
