package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/wholesale/backend/internal/domain/collaboration"
	"github.com/wholesale/backend/internal/domain/shared"
)

// GroupModel is the persistence model for the collaboration Group aggregate
type GroupModel struct {
	AggregateModel
	CreatorID            uuid.UUID                 `gorm:"type:uuid;not null;index"`
	Category             string                    `gorm:"type:varchar(100);not null"`
	ProductID            *uuid.UUID                `gorm:"type:uuid"`
	TargetQuantity       int64                     `gorm:"not null"`
	CurrentQuantity      int64                     `gorm:"not null;default:0"`
	MemberCount          int                       `gorm:"not null;default:0"`
	MaxMembers           int                       `gorm:"not null"`
	RequiredDeliveryDate time.Time                 `gorm:"not null"`
	Status               collaboration.GroupStatus `gorm:"type:varchar(20);not null;index"`
}

// TableName returns the table name for GORM
func (GroupModel) TableName() string {
	return "collaboration_groups"
}

// ToDomain converts the model to a domain Group
func (m *GroupModel) ToDomain() *collaboration.Group {
	return &collaboration.Group{
		BaseAggregateRoot:    m.ToAggregateRoot(),
		CreatorID:            m.CreatorID,
		Category:             m.Category,
		ProductID:            m.ProductID,
		TargetQuantity:       m.TargetQuantity,
		CurrentQuantity:      m.CurrentQuantity,
		MemberCount:          m.MemberCount,
		MaxMembers:           m.MaxMembers,
		RequiredDeliveryDate: m.RequiredDeliveryDate,
		Status:               m.Status,
	}
}

// GroupModelFromDomain creates a model from a domain Group
func GroupModelFromDomain(g *collaboration.Group) *GroupModel {
	m := &GroupModel{
		CreatorID:            g.CreatorID,
		Category:             g.Category,
		ProductID:            g.ProductID,
		TargetQuantity:       g.TargetQuantity,
		CurrentQuantity:      g.CurrentQuantity,
		MemberCount:          g.MemberCount,
		MaxMembers:           g.MaxMembers,
		RequiredDeliveryDate: g.RequiredDeliveryDate,
		Status:               g.Status,
	}
	m.FromDomainAggregateRoot(g.BaseAggregateRoot)
	return m
}

// ParticipantModel is one row per (group, seller)
type ParticipantModel struct {
	BaseModel
	GroupID            uuid.UUID                       `gorm:"type:uuid;not null;uniqueIndex:idx_group_participants_group_seller,priority:1"`
	SellerID           uuid.UUID                       `gorm:"type:uuid;not null;uniqueIndex:idx_group_participants_group_seller,priority:2;index"`
	QuantityCommitment int64                           `gorm:"not null;default:0"`
	Status             collaboration.ParticipantStatus `gorm:"type:varchar(20);not null"`
	PaymentStatus      collaboration.PaymentStatus     `gorm:"type:varchar(20);not null;default:'UNPAID'"`
	JoinedAt           *time.Time
	LeftAt             *time.Time
}

// TableName returns the table name for GORM
func (ParticipantModel) TableName() string {
	return "group_participants"
}

// ToDomain converts the model to a domain Participant
func (m *ParticipantModel) ToDomain() *collaboration.Participant {
	return &collaboration.Participant{
		ID:                 m.ID,
		GroupID:            m.GroupID,
		SellerID:           m.SellerID,
		QuantityCommitment: m.QuantityCommitment,
		Status:             m.Status,
		PaymentStatus:      m.PaymentStatus,
		JoinedAt:           m.JoinedAt,
		LeftAt:             m.LeftAt,
		CreatedAt:          m.CreatedAt,
		UpdatedAt:          m.UpdatedAt,
	}
}

// ParticipantModelFromDomain creates a model from a domain Participant
func ParticipantModelFromDomain(p *collaboration.Participant) *ParticipantModel {
	m := &ParticipantModel{
		GroupID:            p.GroupID,
		SellerID:           p.SellerID,
		QuantityCommitment: p.QuantityCommitment,
		Status:             p.Status,
		PaymentStatus:      p.PaymentStatus,
		JoinedAt:           p.JoinedAt,
		LeftAt:             p.LeftAt,
	}
	m.FromDomainBaseEntity(shared.BaseEntity{ID: p.ID, CreatedAt: p.CreatedAt, UpdatedAt: p.UpdatedAt})
	return m
}

// ContributionModel is one participant's share of a group deal
type ContributionModel struct {
	BaseModel
	GroupID            uuid.UUID                        `gorm:"type:uuid;not null;uniqueIndex:idx_group_contributions_group_seller,priority:1"`
	SellerID           uuid.UUID                        `gorm:"type:uuid;not null;uniqueIndex:idx_group_contributions_group_seller,priority:2"`
	NegotiationID      uuid.UUID                        `gorm:"type:uuid;not null;index"`
	RequestedQuantity  int64                            `gorm:"not null"`
	ContributionAmount decimal.Decimal                  `gorm:"type:numeric(18,2);not null"`
	Paid               bool                             `gorm:"not null;default:false"`
	TransactionID      string                           `gorm:"type:varchar(100)"`
	Status             collaboration.ContributionStatus `gorm:"type:varchar(20);not null;index"`
}

// TableName returns the table name for GORM
func (ContributionModel) TableName() string {
	return "group_contributions"
}

// ToDomain converts the model to a domain Contribution
func (m *ContributionModel) ToDomain() *collaboration.Contribution {
	return &collaboration.Contribution{
		ID:                 m.ID,
		GroupID:            m.GroupID,
		SellerID:           m.SellerID,
		NegotiationID:      m.NegotiationID,
		RequestedQuantity:  m.RequestedQuantity,
		ContributionAmount: m.ContributionAmount,
		Paid:               m.Paid,
		TransactionID:      m.TransactionID,
		Status:             m.Status,
		CreatedAt:          m.CreatedAt,
		UpdatedAt:          m.UpdatedAt,
	}
}

// ContributionModelFromDomain creates a model from a domain Contribution
func ContributionModelFromDomain(c *collaboration.Contribution) *ContributionModel {
	m := &ContributionModel{
		GroupID:            c.GroupID,
		SellerID:           c.SellerID,
		NegotiationID:      c.NegotiationID,
		RequestedQuantity:  c.RequestedQuantity,
		ContributionAmount: c.ContributionAmount,
		Paid:               c.Paid,
		TransactionID:      c.TransactionID,
		Status:             c.Status,
	}
	m.FromDomainBaseEntity(shared.BaseEntity{ID: c.ID, CreatedAt: c.CreatedAt, UpdatedAt: c.UpdatedAt})
	return m
}
