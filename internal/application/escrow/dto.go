package escrow

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/wholesale/backend/internal/domain/escrow"
)

// RefundRequest carries the reason recorded with a refund
type RefundRequest struct {
	Reason string `json:"reason" binding:"max=500"`
}

// CreateCustomEscrowRequest opens a two-phase escrow for a custom order.
// Exactly one of GroupID and BuyerID names the payers.
type CreateCustomEscrowRequest struct {
	CustomRequestID   uuid.UUID       `json:"custom_request_id" binding:"required"`
	ManufacturerID    uuid.UUID       `json:"manufacturer_id" binding:"required"`
	TotalAmount       decimal.Decimal `json:"total_amount" binding:"decimal_gt0"`
	AdvancePercentage decimal.Decimal `json:"advance_percentage"`
	GroupID           *uuid.UUID      `json:"group_id"`
	BuyerID           *uuid.UUID      `json:"buyer_id"`
}

// PayShareRequest pays the caller's share of one phase
type PayShareRequest struct {
	PaymentMethod string `json:"payment_method" binding:"max=255"`
}

// EscrowResponse is the API view of an order escrow
type EscrowResponse struct {
	ID                   uuid.UUID       `json:"id"`
	OrderID              uuid.UUID       `json:"order_id"`
	BuyerID              uuid.UUID       `json:"buyer_id"`
	SellerID             uuid.UUID       `json:"seller_id"`
	Status               string          `json:"status"`
	Amount               decimal.Decimal `json:"amount"`
	PlatformFee          decimal.Decimal `json:"platform_fee"`
	DealerAmount         decimal.Decimal `json:"dealer_amount"`
	RefundedAmount       decimal.Decimal `json:"refunded_amount"`
	ReleaseCondition     string          `json:"release_condition"`
	ForceReleaseApproved bool            `json:"force_release_approved"`
	DeliveryConfirmedAt  *time.Time      `json:"delivery_confirmed_at,omitempty"`
	ReleasedAt           *time.Time      `json:"released_at,omitempty"`
	RefundedAt           *time.Time      `json:"refunded_at,omitempty"`
	RefundConfirmation   string          `json:"refund_confirmation,omitempty"`
	CreatedAt            time.Time       `json:"created_at"`
}

// PayerResponse is one payer's split of a custom escrow
type PayerResponse struct {
	SellerID     uuid.UUID       `json:"seller_id"`
	ShareAmount  decimal.Decimal `json:"share_amount"`
	AdvanceShare decimal.Decimal `json:"advance_share"`
	BalanceShare decimal.Decimal `json:"balance_share"`
	AdvancePaid  bool            `json:"advance_paid"`
	BalancePaid  bool            `json:"balance_paid"`
}

// CustomEscrowResponse is the API view of a custom order escrow
type CustomEscrowResponse struct {
	ID                uuid.UUID       `json:"id"`
	CustomRequestID   uuid.UUID       `json:"custom_request_id"`
	ManufacturerID    uuid.UUID       `json:"manufacturer_id"`
	GroupID           *uuid.UUID      `json:"group_id,omitempty"`
	Status            string          `json:"status"`
	TotalAmount       decimal.Decimal `json:"total_amount"`
	AdvancePercentage decimal.Decimal `json:"advance_percentage"`
	AdvanceAmount     decimal.Decimal `json:"advance_amount"`
	BalanceAmount     decimal.Decimal `json:"balance_amount"`
	Payers            []PayerResponse `json:"payers"`
	ReleasedAt        *time.Time      `json:"released_at,omitempty"`
	RefundedAt        *time.Time      `json:"refunded_at,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
}

// ToEscrowResponse converts the domain escrow
func ToEscrowResponse(e *escrow.Escrow) EscrowResponse {
	return EscrowResponse{
		ID:                   e.ID,
		OrderID:              e.OrderID,
		BuyerID:              e.BuyerID,
		SellerID:             e.SellerID,
		Status:               string(e.Status),
		Amount:               e.Amount,
		PlatformFee:          e.PlatformFee,
		DealerAmount:         e.DealerAmount,
		RefundedAmount:       e.RefundedAmount,
		ReleaseCondition:     string(e.ReleaseCondition),
		ForceReleaseApproved: e.ForceReleaseApproved,
		DeliveryConfirmedAt:  e.DeliveryConfirmedAt,
		ReleasedAt:           e.ReleasedAt,
		RefundedAt:           e.RefundedAt,
		RefundConfirmation:   e.RefundConfirmation,
		CreatedAt:            e.CreatedAt,
	}
}

// ToCustomEscrowResponse converts the domain custom escrow
func ToCustomEscrowResponse(e *escrow.CustomOrderEscrow) CustomEscrowResponse {
	payers := make([]PayerResponse, len(e.Participants))
	for i, p := range e.Participants {
		payers[i] = PayerResponse{
			SellerID:     p.SellerID,
			ShareAmount:  p.ShareAmount,
			AdvanceShare: p.AdvanceShare,
			BalanceShare: p.BalanceShare,
			AdvancePaid:  p.AdvancePaid,
			BalancePaid:  p.BalancePaid,
		}
	}
	return CustomEscrowResponse{
		ID:                e.ID,
		CustomRequestID:   e.CustomRequestID,
		ManufacturerID:    e.ManufacturerID,
		GroupID:           e.GroupID,
		Status:            string(e.Status),
		TotalAmount:       e.TotalAmount,
		AdvancePercentage: e.AdvancePercentage,
		AdvanceAmount:     e.AdvanceAmount,
		BalanceAmount:     e.BalanceAmount,
		Payers:            payers,
		ReleasedAt:        e.ReleasedAt,
		RefundedAt:        e.RefundedAt,
		CreatedAt:         e.CreatedAt,
	}
}
