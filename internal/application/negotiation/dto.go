package negotiation

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/wholesale/backend/internal/domain/negotiation"
)

// ProposeRequest opens a negotiation. The proposing seller is the caller.
type ProposeRequest struct {
	ManufacturerID uuid.UUID       `json:"manufacturer_id" binding:"required"`
	ProductID      uuid.UUID       `json:"product_id" binding:"required"`
	Quantity       int64           `json:"quantity" binding:"required,gt=0"`
	Price          decimal.Decimal `json:"price" binding:"decimal_gt0"`
	GroupID        *uuid.UUID      `json:"group_id"`
	Message        string          `json:"message" binding:"max=2000"`
}

// CounterOfferRequest changes the price, the quantity or both
type CounterOfferRequest struct {
	Price    *decimal.Decimal `json:"price"`
	Quantity *int64           `json:"quantity" binding:"omitempty,gt=0"`
	Message  string           `json:"message" binding:"max=2000"`
}

// ListFilter filters the caller's negotiations
type ListFilter struct {
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	Status   string `form:"status" binding:"omitempty,oneof=OPEN ACCEPTED REJECTED ORDER_REQUESTED ORDER_FULFILLED"`
}

// NegotiationResponse is the API view of a negotiation
type NegotiationResponse struct {
	ID             uuid.UUID       `json:"id"`
	SellerID       uuid.UUID       `json:"seller_id"`
	ManufacturerID uuid.UUID       `json:"manufacturer_id"`
	ProductID      uuid.UUID       `json:"product_id"`
	GroupID        *uuid.UUID      `json:"group_id,omitempty"`
	Quantity       int64           `json:"quantity"`
	CurrentOffer   decimal.Decimal `json:"current_offer"`
	LastOfferBy    uuid.UUID       `json:"last_offer_by"`
	Status         string          `json:"status"`
	AcceptedAt     *time.Time      `json:"accepted_at,omitempty"`
	RejectedAt     *time.Time      `json:"rejected_at,omitempty"`
	RequestedAt    *time.Time      `json:"requested_at,omitempty"`
	FulfilledAt    *time.Time      `json:"fulfilled_at,omitempty"`
	Version        int             `json:"version"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// FulfillmentResponse reports the negotiation and the allocations cut from it
type FulfillmentResponse struct {
	Negotiation   NegotiationResponse `json:"negotiation"`
	AllocationIDs []uuid.UUID         `json:"allocation_ids"`
}

// MessageResponse is one entry of a negotiation's message history
type MessageResponse struct {
	ID        uuid.UUID      `json:"id"`
	ActorID   uuid.UUID      `json:"actor_id"`
	Action    string         `json:"action"`
	Body      string         `json:"body"`
	Payload   map[string]any `json:"payload,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// ToNegotiationResponse converts the domain negotiation
func ToNegotiationResponse(n *negotiation.Negotiation) NegotiationResponse {
	return NegotiationResponse{
		ID:             n.ID,
		SellerID:       n.SellerID,
		ManufacturerID: n.ManufacturerID,
		ProductID:      n.ProductID,
		GroupID:        n.GroupID,
		Quantity:       n.Quantity,
		CurrentOffer:   n.CurrentOffer,
		LastOfferBy:    n.LastOfferBy,
		Status:         n.Status.String(),
		AcceptedAt:     n.AcceptedAt,
		RejectedAt:     n.RejectedAt,
		RequestedAt:    n.RequestedAt,
		FulfilledAt:    n.FulfilledAt,
		Version:        n.Version,
		CreatedAt:      n.CreatedAt,
		UpdatedAt:      n.UpdatedAt,
	}
}
