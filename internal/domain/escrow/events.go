package escrow

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/wholesale/backend/internal/domain/shared"
)

// Aggregate type constants
const (
	AggregateTypeEscrow       = "Escrow"
	AggregateTypeCustomEscrow = "CustomOrderEscrow"
)

// Event type constants
const (
	EventTypeHeld                = "EscrowHeld"
	EventTypeFrozen              = "EscrowFrozen"
	EventTypeReleased            = "EscrowReleased"
	EventTypeRefunded            = "EscrowRefunded"
	EventTypePartiallyRefunded   = "EscrowPartiallyRefunded"
	EventTypeCustomCreated       = "CustomEscrowCreated"
	EventTypeCustomStatusChanged = "CustomEscrowStatusChanged"
	EventTypeCustomReleased      = "CustomEscrowReleased"
	EventTypeCustomRefunded      = "CustomEscrowRefunded"
)

// EscrowEvent carries an order escrow snapshot
type EscrowEvent struct {
	shared.BaseDomainEvent
	OrderID        uuid.UUID       `json:"order_id"`
	Status         Status          `json:"status"`
	Amount         decimal.Decimal `json:"amount"`
	DealerAmount   decimal.Decimal `json:"dealer_amount"`
	PlatformFee    decimal.Decimal `json:"platform_fee"`
	RefundedAmount decimal.Decimal `json:"refunded_amount"`
}

// NewEscrowEvent creates an EscrowEvent notifying buyer and seller
func NewEscrowEvent(eventType string, e *Escrow) *EscrowEvent {
	return &EscrowEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(eventType, AggregateTypeEscrow, e.ID, e.BuyerID, e.SellerID),
		OrderID:         e.OrderID,
		Status:          e.Status,
		Amount:          e.Amount,
		DealerAmount:    e.DealerAmount,
		PlatformFee:     e.PlatformFee,
		RefundedAmount:  e.RefundedAmount,
	}
}

// CustomEscrowEvent carries a custom escrow snapshot
type CustomEscrowEvent struct {
	shared.BaseDomainEvent
	CustomRequestID uuid.UUID    `json:"custom_request_id"`
	Status          CustomStatus `json:"status"`
	PaidBy          *uuid.UUID   `json:"paid_by,omitempty"`
}

// NewCustomEscrowEvent creates a CustomEscrowEvent notifying every payer and
// the manufacturer
func NewCustomEscrowEvent(eventType string, e *CustomOrderEscrow, paidBy *uuid.UUID) *CustomEscrowEvent {
	recipients := []uuid.UUID{e.ManufacturerID}
	for _, p := range e.Participants {
		recipients = append(recipients, p.SellerID)
	}
	return &CustomEscrowEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(eventType, AggregateTypeCustomEscrow, e.ID, recipients...),
		CustomRequestID: e.CustomRequestID,
		Status:          e.Status,
		PaidBy:          paidBy,
	}
}
