package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/wholesale/backend/internal/domain/audit"
	"go.uber.org/zap"
)

// AuditEntryModel is an append-only row. The Postgres schema rejects UPDATE
// and DELETE on this table with a trigger.
type AuditEntryModel struct {
	ID          uuid.UUID    `gorm:"type:uuid;primary_key"`
	Stream      audit.Stream `gorm:"type:varchar(50);not null;index:idx_audit_entries_stream_aggregate,priority:1"`
	AggregateID uuid.UUID    `gorm:"type:uuid;not null;index:idx_audit_entries_stream_aggregate,priority:2"`
	ActorID     uuid.UUID    `gorm:"type:uuid;not null"`
	Action      string       `gorm:"type:varchar(100);not null"`
	Body        string       `gorm:"type:text"`
	PayloadJSON string       `gorm:"column:payload;type:jsonb"`
	CreatedAt   time.Time    `gorm:"not null;index:idx_audit_entries_stream_aggregate,priority:3"`
}

// TableName returns the table name for GORM
func (AuditEntryModel) TableName() string {
	return "audit_entries"
}

// ToDomain converts the model to a domain Entry
func (m *AuditEntryModel) ToDomain() *audit.Entry {
	e := &audit.Entry{
		ID:          m.ID,
		Stream:      m.Stream,
		AggregateID: m.AggregateID,
		ActorID:     m.ActorID,
		Action:      m.Action,
		Body:        m.Body,
		CreatedAt:   m.CreatedAt,
	}
	if m.PayloadJSON != "" && m.PayloadJSON != "null" {
		if err := json.Unmarshal([]byte(m.PayloadJSON), &e.Payload); err != nil {
			modelLogger.Warn("failed to parse audit payload JSON",
				zap.String("entry_id", m.ID.String()),
				zap.Error(err))
		}
	}
	return e
}

// AuditEntryModelFromDomain creates a model from a domain Entry
func AuditEntryModelFromDomain(e *audit.Entry) (*AuditEntryModel, error) {
	m := &AuditEntryModel{
		ID:          e.ID,
		Stream:      e.Stream,
		AggregateID: e.AggregateID,
		ActorID:     e.ActorID,
		Action:      e.Action,
		Body:        e.Body,
		PayloadJSON: "null",
		CreatedAt:   e.CreatedAt,
	}
	if len(e.Payload) > 0 {
		raw, err := json.Marshal(e.Payload)
		if err != nil {
			return nil, err
		}
		m.PayloadJSON = string(raw)
	}
	return m, nil
}
