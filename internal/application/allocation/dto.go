package allocation

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/wholesale/backend/internal/domain/allocation"
)

// GrantDirectRequest grants stock to a seller without a negotiation
type GrantDirectRequest struct {
	SellerID  uuid.UUID       `json:"seller_id" binding:"required"`
	ProductID uuid.UUID       `json:"product_id" binding:"required"`
	Quantity  int64           `json:"quantity" binding:"required,gt=0"`
	Price     decimal.Decimal `json:"price" binding:"decimal_gt0"`
}

// RevokeRequest carries the mandatory revocation reason
type RevokeRequest struct {
	Reason string `json:"reason" binding:"required,max=500"`
}

// ListFilter filters the caller's allocations
type ListFilter struct {
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	Status   string `form:"status" binding:"omitempty,oneof=ACTIVE DEPLETED REVOKED"`
}

// AllocationResponse is the API view of an allocation
type AllocationResponse struct {
	ID                uuid.UUID       `json:"id"`
	NegotiationID     *uuid.UUID      `json:"negotiation_id,omitempty"`
	Type              string          `json:"type"`
	GroupID           *uuid.UUID      `json:"group_id,omitempty"`
	SellerID          uuid.UUID       `json:"seller_id"`
	ManufacturerID    uuid.UUID       `json:"manufacturer_id"`
	ProductID         uuid.UUID       `json:"product_id"`
	AllocatedQuantity int64           `json:"allocated_quantity"`
	SoldQuantity      int64           `json:"sold_quantity"`
	RemainingQuantity int64           `json:"remaining_quantity"`
	NegotiatedPrice   decimal.Decimal `json:"negotiated_price"`
	MinRetailPrice    decimal.Decimal `json:"min_retail_price"`
	Status            string          `json:"status"`
	RevokedReason     string          `json:"revoked_reason,omitempty"`
	RevokedAt         *time.Time      `json:"revoked_at,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// ToAllocationResponse converts the domain allocation
func ToAllocationResponse(a *allocation.Allocation) AllocationResponse {
	return AllocationResponse{
		ID:                a.ID,
		NegotiationID:     a.NegotiationID,
		Type:              string(a.Type),
		GroupID:           a.GroupID,
		SellerID:          a.SellerID,
		ManufacturerID:    a.ManufacturerID,
		ProductID:         a.ProductID,
		AllocatedQuantity: a.AllocatedQuantity,
		SoldQuantity:      a.SoldQuantity,
		RemainingQuantity: a.RemainingQuantity,
		NegotiatedPrice:   a.NegotiatedPrice,
		MinRetailPrice:    a.MinRetailPrice,
		Status:            a.Status.String(),
		RevokedReason:     a.RevokedReason,
		RevokedAt:         a.RevokedAt,
		CreatedAt:         a.CreatedAt,
		UpdatedAt:         a.UpdatedAt,
	}
}
