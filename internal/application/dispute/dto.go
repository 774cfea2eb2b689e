package dispute

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/wholesale/backend/internal/domain/dispute"
)

// OpenDisputeRequest opens a dispute on an order
type OpenDisputeRequest struct {
	OrderID uuid.UUID `json:"order_id" binding:"required"`
	Reason  string    `json:"reason" binding:"required,max=2000"`
}

// AssignRequest hands a dispute to an admin
type AssignRequest struct {
	AdminID uuid.UUID `json:"admin_id" binding:"required"`
}

// NoteRequest carries a free-text note for the dispute log
type NoteRequest struct {
	Note string `json:"note" binding:"max=4000"`
}

// EvidenceRequest submits one piece of evidence
type EvidenceRequest struct {
	Note string `json:"note" binding:"required,max=4000"`
}

// ResolveRequest records the outcome of a dispute
type ResolveRequest struct {
	Resolution   string            `json:"resolution" binding:"required,oneof=REFUND PARTIAL_REFUND RELEASE"`
	Summary      string            `json:"summary" binding:"required,max=2000"`
	RefundAmount *decimal.Decimal  `json:"refund_amount"`
	Attributes   map[string]string `json:"attributes"`
}

// ListFilter filters disputes for review
type ListFilter struct {
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	Status   string `form:"status" binding:"omitempty,oneof=OPEN UNDER_REVIEW EVIDENCE_COLLECTION IN_PROGRESS RESOLVED CLOSED"`
}

// DisputeResponse is the API view of a dispute
type DisputeResponse struct {
	ID              uuid.UUID         `json:"id"`
	OrderID         uuid.UUID         `json:"order_id"`
	BuyerID         uuid.UUID         `json:"buyer_id"`
	SellerID        uuid.UUID         `json:"seller_id"`
	OpenedBy        uuid.UUID         `json:"opened_by"`
	Reason          string            `json:"reason"`
	Status          string            `json:"status"`
	AssignedAdminID *uuid.UUID        `json:"assigned_admin_id,omitempty"`
	Resolution      string            `json:"resolution,omitempty"`
	Metadata        *dispute.Metadata `json:"metadata,omitempty"`
	ResolvedAt      *time.Time        `json:"resolved_at,omitempty"`
	ClosedAt        *time.Time        `json:"closed_at,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// LogEntryResponse is one entry of a dispute's log
type LogEntryResponse struct {
	ID        uuid.UUID      `json:"id"`
	ActorID   uuid.UUID      `json:"actor_id"`
	Action    string         `json:"action"`
	Body      string         `json:"body,omitempty"`
	Payload   map[string]any `json:"payload,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// ToDisputeResponse converts the domain dispute
func ToDisputeResponse(d *dispute.Dispute) DisputeResponse {
	return DisputeResponse{
		ID:              d.ID,
		OrderID:         d.OrderID,
		BuyerID:         d.BuyerID,
		SellerID:        d.SellerID,
		OpenedBy:        d.OpenedBy,
		Reason:          d.Reason,
		Status:          string(d.Status),
		AssignedAdminID: d.AssignedAdminID,
		Resolution:      string(d.Resolution),
		Metadata:        d.Metadata,
		ResolvedAt:      d.ResolvedAt,
		ClosedAt:        d.ClosedAt,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}
}
