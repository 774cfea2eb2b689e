package collaboration

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/wholesale/backend/internal/domain/collaboration"
)

// CreateGroupRequest opens a collaboration group
type CreateGroupRequest struct {
	Category             string     `json:"category" binding:"required,max=100"`
	ProductID            *uuid.UUID `json:"product_id"`
	TargetQuantity       int64      `json:"target_quantity" binding:"required,gt=0"`
	RequiredDeliveryDate time.Time  `json:"required_delivery_date" binding:"required"`
}

// JoinRequest commits a quantity to a group
type JoinRequest struct {
	QuantityCommitment int64 `json:"quantity_commitment" binding:"required,gt=0"`
}

// InviteRequest names the seller to invite
type InviteRequest struct {
	SellerID uuid.UUID `json:"seller_id" binding:"required"`
}

// PayContributionRequest optionally carries the payer's payment method token
type PayContributionRequest struct {
	PaymentMethod string `json:"payment_method" binding:"max=255"`
}

// GroupResponse is the API view of a group
type GroupResponse struct {
	ID                   uuid.UUID  `json:"id"`
	CreatorID            uuid.UUID  `json:"creator_id"`
	Category             string     `json:"category"`
	ProductID            *uuid.UUID `json:"product_id,omitempty"`
	TargetQuantity       int64      `json:"target_quantity"`
	CurrentQuantity      int64      `json:"current_quantity"`
	MemberCount          int        `json:"member_count"`
	MaxMembers           int        `json:"max_members"`
	RequiredDeliveryDate time.Time  `json:"required_delivery_date"`
	Status               string     `json:"status"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// ParticipantResponse is the API view of a group participant
type ParticipantResponse struct {
	SellerID           uuid.UUID  `json:"seller_id"`
	QuantityCommitment int64      `json:"quantity_commitment"`
	Status             string     `json:"status"`
	PaymentStatus      string     `json:"payment_status"`
	JoinedAt           *time.Time `json:"joined_at,omitempty"`
	LeftAt             *time.Time `json:"left_at,omitempty"`
}

// ContributionResponse is the API view of a contribution
type ContributionResponse struct {
	ID                 uuid.UUID       `json:"id"`
	SellerID           uuid.UUID       `json:"seller_id"`
	NegotiationID      uuid.UUID       `json:"negotiation_id"`
	RequestedQuantity  int64           `json:"requested_quantity"`
	ContributionAmount decimal.Decimal `json:"contribution_amount"`
	Paid               bool            `json:"paid"`
	TransactionID      string          `json:"transaction_id,omitempty"`
	Status             string          `json:"status"`
}

// ContributionSummary reports a group's contributions with their totals
type ContributionSummary struct {
	Contributions []ContributionResponse `json:"contributions"`
	TotalAmount   decimal.Decimal        `json:"total_amount"`
	TotalQuantity int64                  `json:"total_quantity"`
}

// MembershipResponse reports the group after a membership change
type MembershipResponse struct {
	Group       GroupResponse       `json:"group"`
	Participant ParticipantResponse `json:"participant"`
}

// ToGroupResponse converts the domain group
func ToGroupResponse(g *collaboration.Group) GroupResponse {
	return GroupResponse{
		ID:                   g.ID,
		CreatorID:            g.CreatorID,
		Category:             g.Category,
		ProductID:            g.ProductID,
		TargetQuantity:       g.TargetQuantity,
		CurrentQuantity:      g.CurrentQuantity,
		MemberCount:          g.MemberCount,
		MaxMembers:           g.MaxMembers,
		RequiredDeliveryDate: g.RequiredDeliveryDate,
		Status:               string(g.Status),
		CreatedAt:            g.CreatedAt,
		UpdatedAt:            g.UpdatedAt,
	}
}

// ToParticipantResponse converts a participant
func ToParticipantResponse(p *collaboration.Participant) ParticipantResponse {
	return ParticipantResponse{
		SellerID:           p.SellerID,
		QuantityCommitment: p.QuantityCommitment,
		Status:             string(p.Status),
		PaymentStatus:      string(p.PaymentStatus),
		JoinedAt:           p.JoinedAt,
		LeftAt:             p.LeftAt,
	}
}

// ToContributionResponse converts a contribution
func ToContributionResponse(c *collaboration.Contribution) ContributionResponse {
	return ContributionResponse{
		ID:                 c.ID,
		SellerID:           c.SellerID,
		NegotiationID:      c.NegotiationID,
		RequestedQuantity:  c.RequestedQuantity,
		ContributionAmount: c.ContributionAmount,
		Paid:               c.Paid,
		TransactionID:      c.TransactionID,
		Status:             string(c.Status),
	}
}
