package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/wholesale/backend/internal/domain/escrow"
	"github.com/wholesale/backend/internal/domain/shared"
)

// EscrowModel is the persistence model for an order escrow
type EscrowModel struct {
	AggregateModel
	OrderID              uuid.UUID               `gorm:"type:uuid;not null;uniqueIndex"`
	BuyerID              uuid.UUID               `gorm:"type:uuid;not null;index"`
	SellerID             uuid.UUID               `gorm:"type:uuid;not null;index"`
	Status               escrow.Status           `gorm:"type:varchar(20);not null;index"`
	Amount               decimal.Decimal         `gorm:"type:numeric(18,2);not null"`
	PlatformFee          decimal.Decimal         `gorm:"type:numeric(18,2);not null"`
	DealerAmount         decimal.Decimal         `gorm:"type:numeric(18,2);not null"`
	RefundedAmount       decimal.Decimal         `gorm:"type:numeric(18,2);not null;default:0"`
	ReleaseCondition     escrow.ReleaseCondition `gorm:"type:varchar(30);not null"`
	TransactionID        string                  `gorm:"type:varchar(100);not null"`
	ForceReleaseApproved bool                    `gorm:"not null;default:false"`
	DeliveryConfirmedAt  *time.Time
	ReleasedAt           *time.Time
	RefundedAt           *time.Time
	RefundConfirmation   string `gorm:"type:varchar(100)"`
}

// TableName returns the table name for GORM
func (EscrowModel) TableName() string {
	return "escrows"
}

// ToDomain converts the model to a domain Escrow
func (m *EscrowModel) ToDomain() *escrow.Escrow {
	return &escrow.Escrow{
		BaseAggregateRoot:    m.ToAggregateRoot(),
		OrderID:              m.OrderID,
		BuyerID:              m.BuyerID,
		SellerID:             m.SellerID,
		Status:               m.Status,
		Amount:               m.Amount,
		PlatformFee:          m.PlatformFee,
		DealerAmount:         m.DealerAmount,
		RefundedAmount:       m.RefundedAmount,
		ReleaseCondition:     m.ReleaseCondition,
		TransactionID:        m.TransactionID,
		ForceReleaseApproved: m.ForceReleaseApproved,
		DeliveryConfirmedAt:  m.DeliveryConfirmedAt,
		ReleasedAt:           m.ReleasedAt,
		RefundedAt:           m.RefundedAt,
		RefundConfirmation:   m.RefundConfirmation,
	}
}

// EscrowModelFromDomain creates a model from a domain Escrow
func EscrowModelFromDomain(e *escrow.Escrow) *EscrowModel {
	m := &EscrowModel{
		OrderID:              e.OrderID,
		BuyerID:              e.BuyerID,
		SellerID:             e.SellerID,
		Status:               e.Status,
		Amount:               e.Amount,
		PlatformFee:          e.PlatformFee,
		DealerAmount:         e.DealerAmount,
		RefundedAmount:       e.RefundedAmount,
		ReleaseCondition:     e.ReleaseCondition,
		TransactionID:        e.TransactionID,
		ForceReleaseApproved: e.ForceReleaseApproved,
		DeliveryConfirmedAt:  e.DeliveryConfirmedAt,
		ReleasedAt:           e.ReleasedAt,
		RefundedAt:           e.RefundedAt,
		RefundConfirmation:   e.RefundConfirmation,
	}
	m.FromDomainAggregateRoot(e.BaseAggregateRoot)
	return m
}

// CustomEscrowModel is the header row of a custom order escrow
type CustomEscrowModel struct {
	AggregateModel
	CustomRequestID   uuid.UUID           `gorm:"type:uuid;not null;uniqueIndex"`
	ManufacturerID    uuid.UUID           `gorm:"type:uuid;not null;index"`
	GroupID           *uuid.UUID          `gorm:"type:uuid;index"`
	TotalAmount       decimal.Decimal     `gorm:"type:numeric(18,2);not null"`
	AdvancePercentage decimal.Decimal     `gorm:"type:numeric(5,2);not null"`
	AdvanceAmount     decimal.Decimal     `gorm:"type:numeric(18,2);not null"`
	BalanceAmount     decimal.Decimal     `gorm:"type:numeric(18,2);not null"`
	Status            escrow.CustomStatus `gorm:"type:varchar(20);not null;index"`
	ReleasedAt        *time.Time
	RefundedAt        *time.Time
	Participants      []CustomEscrowPaymentModel `gorm:"foreignKey:EscrowID;references:ID"`
}

// TableName returns the table name for GORM
func (CustomEscrowModel) TableName() string {
	return "custom_order_escrows"
}

// ToDomain converts the model and its loaded payers to a domain CustomOrderEscrow
func (m *CustomEscrowModel) ToDomain() *escrow.CustomOrderEscrow {
	participants := make([]escrow.ParticipantPayment, len(m.Participants))
	for i := range m.Participants {
		participants[i] = *m.Participants[i].ToDomain()
	}
	return &escrow.CustomOrderEscrow{
		BaseAggregateRoot: m.ToAggregateRoot(),
		CustomRequestID:   m.CustomRequestID,
		ManufacturerID:    m.ManufacturerID,
		GroupID:           m.GroupID,
		TotalAmount:       m.TotalAmount,
		AdvancePercentage: m.AdvancePercentage,
		AdvanceAmount:     m.AdvanceAmount,
		BalanceAmount:     m.BalanceAmount,
		Participants:      participants,
		Status:            m.Status,
		ReleasedAt:        m.ReleasedAt,
		RefundedAt:        m.RefundedAt,
	}
}

// CustomEscrowModelFromDomain creates a header model with its payers
func CustomEscrowModelFromDomain(e *escrow.CustomOrderEscrow) *CustomEscrowModel {
	m := &CustomEscrowModel{
		CustomRequestID:   e.CustomRequestID,
		ManufacturerID:    e.ManufacturerID,
		GroupID:           e.GroupID,
		TotalAmount:       e.TotalAmount,
		AdvancePercentage: e.AdvancePercentage,
		AdvanceAmount:     e.AdvanceAmount,
		BalanceAmount:     e.BalanceAmount,
		Status:            e.Status,
		ReleasedAt:        e.ReleasedAt,
		RefundedAt:        e.RefundedAt,
		Participants:      make([]CustomEscrowPaymentModel, len(e.Participants)),
	}
	m.FromDomainAggregateRoot(e.BaseAggregateRoot)
	for i := range e.Participants {
		m.Participants[i] = *CustomEscrowPaymentModelFromDomain(&e.Participants[i], e.CreatedAt, e.UpdatedAt)
	}
	return m
}

// CustomEscrowPaymentModel is one payer's split of a custom escrow
type CustomEscrowPaymentModel struct {
	BaseModel
	EscrowID             uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_custom_escrow_payments_escrow_seller,priority:1"`
	SellerID             uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_custom_escrow_payments_escrow_seller,priority:2;index"`
	ShareAmount          decimal.Decimal `gorm:"type:numeric(18,2);not null"`
	AdvanceShare         decimal.Decimal `gorm:"type:numeric(18,2);not null"`
	BalanceShare         decimal.Decimal `gorm:"type:numeric(18,2);not null"`
	AdvancePaid          bool            `gorm:"not null;default:false"`
	BalancePaid          bool            `gorm:"not null;default:false"`
	AdvanceTransactionID string          `gorm:"type:varchar(100)"`
	BalanceTransactionID string          `gorm:"type:varchar(100)"`
	AdvanceRefundID      string          `gorm:"type:varchar(100)"`
	BalanceRefundID      string          `gorm:"type:varchar(100)"`
}

// TableName returns the table name for GORM
func (CustomEscrowPaymentModel) TableName() string {
	return "custom_escrow_payments"
}

// ToDomain converts the model to a domain ParticipantPayment
func (m *CustomEscrowPaymentModel) ToDomain() *escrow.ParticipantPayment {
	return &escrow.ParticipantPayment{
		ID:                   m.ID,
		EscrowID:             m.EscrowID,
		SellerID:             m.SellerID,
		ShareAmount:          m.ShareAmount,
		AdvanceShare:         m.AdvanceShare,
		BalanceShare:         m.BalanceShare,
		AdvancePaid:          m.AdvancePaid,
		BalancePaid:          m.BalancePaid,
		AdvanceTransactionID: m.AdvanceTransactionID,
		BalanceTransactionID: m.BalanceTransactionID,
		AdvanceRefundID:      m.AdvanceRefundID,
		BalanceRefundID:      m.BalanceRefundID,
	}
}

// CustomEscrowPaymentModelFromDomain creates a payer model stamped with the
// header's timestamps
func CustomEscrowPaymentModelFromDomain(p *escrow.ParticipantPayment, createdAt, updatedAt time.Time) *CustomEscrowPaymentModel {
	m := &CustomEscrowPaymentModel{
		EscrowID:             p.EscrowID,
		SellerID:             p.SellerID,
		ShareAmount:          p.ShareAmount,
		AdvanceShare:         p.AdvanceShare,
		BalanceShare:         p.BalanceShare,
		AdvancePaid:          p.AdvancePaid,
		BalancePaid:          p.BalancePaid,
		AdvanceTransactionID: p.AdvanceTransactionID,
		BalanceTransactionID: p.BalanceTransactionID,
		AdvanceRefundID:      p.AdvanceRefundID,
		BalanceRefundID:      p.BalanceRefundID,
	}
	m.FromDomainBaseEntity(shared.BaseEntity{ID: p.ID, CreatedAt: createdAt, UpdatedAt: updatedAt})
	return m
}
