package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/wholesale/backend/internal/domain/allocation"
)

// AllocationModel is the persistence model for the Allocation ledger row.
// (negotiation_id, seller_id) is unique; DIRECT allocations carry a NULL
// negotiation_id and never collide.
type AllocationModel struct {
	AggregateModel
	NegotiationID     *uuid.UUID        `gorm:"type:uuid;uniqueIndex:idx_allocations_negotiation_seller,priority:1"`
	Type              allocation.Type   `gorm:"type:varchar(20);not null"`
	GroupID           *uuid.UUID        `gorm:"type:uuid;index"`
	SellerID          uuid.UUID         `gorm:"type:uuid;not null;uniqueIndex:idx_allocations_negotiation_seller,priority:2;index"`
	ManufacturerID    uuid.UUID         `gorm:"type:uuid;not null;index"`
	ProductID         uuid.UUID         `gorm:"type:uuid;not null"`
	AllocatedQuantity int64             `gorm:"not null"`
	SoldQuantity      int64             `gorm:"not null;default:0"`
	RemainingQuantity int64             `gorm:"not null"`
	NegotiatedPrice   decimal.Decimal   `gorm:"type:numeric(18,2);not null"`
	MinRetailPrice    decimal.Decimal   `gorm:"type:numeric(18,2);not null"`
	Status            allocation.Status `gorm:"type:varchar(20);not null;index"`
	RevokedReason     string            `gorm:"type:text"`
	RevokedBy         *uuid.UUID        `gorm:"type:uuid"`
	RevokedAt         *time.Time
}

// TableName returns the table name for GORM
func (AllocationModel) TableName() string {
	return "allocations"
}

// ToDomain converts the model to a domain Allocation
func (m *AllocationModel) ToDomain() *allocation.Allocation {
	return &allocation.Allocation{
		BaseAggregateRoot: m.ToAggregateRoot(),
		NegotiationID:     m.NegotiationID,
		Type:              m.Type,
		GroupID:           m.GroupID,
		SellerID:          m.SellerID,
		ManufacturerID:    m.ManufacturerID,
		ProductID:         m.ProductID,
		AllocatedQuantity: m.AllocatedQuantity,
		SoldQuantity:      m.SoldQuantity,
		RemainingQuantity: m.RemainingQuantity,
		NegotiatedPrice:   m.NegotiatedPrice,
		MinRetailPrice:    m.MinRetailPrice,
		Status:            m.Status,
		RevokedReason:     m.RevokedReason,
		RevokedBy:         m.RevokedBy,
		RevokedAt:         m.RevokedAt,
	}
}

// AllocationModelFromDomain creates a model from a domain Allocation
func AllocationModelFromDomain(a *allocation.Allocation) *AllocationModel {
	m := &AllocationModel{
		NegotiationID:     a.NegotiationID,
		Type:              a.Type,
		GroupID:           a.GroupID,
		SellerID:          a.SellerID,
		ManufacturerID:    a.ManufacturerID,
		ProductID:         a.ProductID,
		AllocatedQuantity: a.AllocatedQuantity,
		SoldQuantity:      a.SoldQuantity,
		RemainingQuantity: a.RemainingQuantity,
		NegotiatedPrice:   a.NegotiatedPrice,
		MinRetailPrice:    a.MinRetailPrice,
		Status:            a.Status,
		RevokedReason:     a.RevokedReason,
		RevokedBy:         a.RevokedBy,
		RevokedAt:         a.RevokedAt,
	}
	m.FromDomainAggregateRoot(a.BaseAggregateRoot)
	return m
}
