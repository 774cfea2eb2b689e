package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/wholesale/backend/internal/domain/dispute"
	"go.uber.org/zap"
)

// modelLogger reports rows whose JSON columns cannot be decoded
var modelLogger = zap.L().Named("persistence.models")

// DisputeModel is the persistence model for the Dispute aggregate
type DisputeModel struct {
	AggregateModel
	OrderID         uuid.UUID          `gorm:"type:uuid;not null;uniqueIndex"`
	BuyerID         uuid.UUID          `gorm:"type:uuid;not null;index"`
	SellerID        uuid.UUID          `gorm:"type:uuid;not null;index"`
	OpenedBy        uuid.UUID          `gorm:"type:uuid;not null"`
	Reason          string             `gorm:"type:text;not null"`
	Status          dispute.Status     `gorm:"type:varchar(30);not null;index"`
	AssignedAdminID *uuid.UUID         `gorm:"type:uuid;index"`
	Resolution      dispute.Resolution `gorm:"type:varchar(20)"`
	MetadataJSON    string             `gorm:"column:resolution_metadata;type:jsonb"`
	ResolvedAt      *time.Time
	ClosedAt        *time.Time
}

// TableName returns the table name for GORM
func (DisputeModel) TableName() string {
	return "disputes"
}

// ToDomain converts the model to a domain Dispute
func (m *DisputeModel) ToDomain() *dispute.Dispute {
	d := &dispute.Dispute{
		BaseAggregateRoot: m.ToAggregateRoot(),
		OrderID:           m.OrderID,
		BuyerID:           m.BuyerID,
		SellerID:          m.SellerID,
		OpenedBy:          m.OpenedBy,
		Reason:            m.Reason,
		Status:            m.Status,
		AssignedAdminID:   m.AssignedAdminID,
		Resolution:        m.Resolution,
		ResolvedAt:        m.ResolvedAt,
		ClosedAt:          m.ClosedAt,
	}
	if m.MetadataJSON != "" && m.MetadataJSON != "null" {
		var meta dispute.Metadata
		if err := json.Unmarshal([]byte(m.MetadataJSON), &meta); err != nil {
			modelLogger.Warn("failed to parse resolution_metadata JSON",
				zap.String("dispute_id", m.ID.String()),
				zap.Error(err))
		} else {
			d.Metadata = &meta
		}
	}
	return d
}

// DisputeModelFromDomain creates a model from a domain Dispute
func DisputeModelFromDomain(d *dispute.Dispute) *DisputeModel {
	m := &DisputeModel{
		OrderID:         d.OrderID,
		BuyerID:         d.BuyerID,
		SellerID:        d.SellerID,
		OpenedBy:        d.OpenedBy,
		Reason:          d.Reason,
		Status:          d.Status,
		AssignedAdminID: d.AssignedAdminID,
		Resolution:      d.Resolution,
		ResolvedAt:      d.ResolvedAt,
		ClosedAt:        d.ClosedAt,
	}
	m.MetadataJSON = "null"
	if d.Metadata != nil {
		if raw, err := json.Marshal(d.Metadata); err == nil {
			m.MetadataJSON = string(raw)
		}
	}
	m.FromDomainAggregateRoot(d.BaseAggregateRoot)
	return m
}
