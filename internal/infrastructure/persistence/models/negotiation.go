package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/wholesale/backend/internal/domain/negotiation"
)

// NegotiationModel is the persistence model for the Negotiation aggregate
type NegotiationModel struct {
	AggregateModel
	SellerID       uuid.UUID          `gorm:"type:uuid;not null;index"`
	ManufacturerID uuid.UUID          `gorm:"type:uuid;not null;index"`
	ProductID      uuid.UUID          `gorm:"type:uuid;not null;index"`
	GroupID        *uuid.UUID         `gorm:"type:uuid;index"`
	Quantity       int64              `gorm:"not null"`
	CurrentOffer   decimal.Decimal    `gorm:"type:numeric(18,2);not null"`
	LastOfferBy    uuid.UUID          `gorm:"type:uuid;not null"`
	Status         negotiation.Status `gorm:"type:varchar(20);not null;index"`
	AcceptedAt     *time.Time
	RejectedAt     *time.Time
	RequestedAt    *time.Time
	FulfilledAt    *time.Time
}

// TableName returns the table name for GORM
func (NegotiationModel) TableName() string {
	return "negotiations"
}

// ToDomain converts the model to a domain Negotiation
func (m *NegotiationModel) ToDomain() *negotiation.Negotiation {
	return &negotiation.Negotiation{
		BaseAggregateRoot: m.ToAggregateRoot(),
		SellerID:          m.SellerID,
		ManufacturerID:    m.ManufacturerID,
		ProductID:         m.ProductID,
		GroupID:           m.GroupID,
		Quantity:          m.Quantity,
		CurrentOffer:      m.CurrentOffer,
		LastOfferBy:       m.LastOfferBy,
		Status:            m.Status,
		AcceptedAt:        m.AcceptedAt,
		RejectedAt:        m.RejectedAt,
		RequestedAt:       m.RequestedAt,
		FulfilledAt:       m.FulfilledAt,
	}
}

// NegotiationModelFromDomain creates a model from a domain Negotiation
func NegotiationModelFromDomain(n *negotiation.Negotiation) *NegotiationModel {
	m := &NegotiationModel{
		SellerID:       n.SellerID,
		ManufacturerID: n.ManufacturerID,
		ProductID:      n.ProductID,
		GroupID:        n.GroupID,
		Quantity:       n.Quantity,
		CurrentOffer:   n.CurrentOffer,
		LastOfferBy:    n.LastOfferBy,
		Status:         n.Status,
		AcceptedAt:     n.AcceptedAt,
		RejectedAt:     n.RejectedAt,
		RequestedAt:    n.RequestedAt,
		FulfilledAt:    n.FulfilledAt,
	}
	m.FromDomainAggregateRoot(n.BaseAggregateRoot)
	return m
}
