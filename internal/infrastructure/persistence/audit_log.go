package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/wholesale/backend/internal/domain/audit"
	"github.com/wholesale/backend/internal/domain/shared"
	"github.com/wholesale/backend/internal/infrastructure/persistence/models"
	"github.com/wholesale/backend/internal/infrastructure/telemetry"
	"gorm.io/gorm"
)

// GormAuditLog implements audit.Log. It only ever inserts; Postgres
// additionally rejects UPDATE and DELETE on audit_entries with a trigger.
type GormAuditLog struct {
	db      *gorm.DB
	metrics *telemetry.MarketplaceMetrics
}

// NewGormAuditLog creates an audit log. metrics may be nil.
func NewGormAuditLog(db *gorm.DB, metrics *telemetry.MarketplaceMetrics) *GormAuditLog {
	return &GormAuditLog{db: db, metrics: metrics}
}

// Append writes one entry
func (l *GormAuditLog) Append(ctx context.Context, e *audit.Entry) error {
	model, err := models.AuditEntryModelFromDomain(e)
	if err != nil {
		return err
	}
	if err := l.db.WithContext(ctx).Create(model).Error; err != nil {
		return translate(err, nil)
	}
	l.metrics.AuditAppended(ctx, string(e.Stream))
	return nil
}

// List returns one aggregate's entries in a stream, oldest first
func (l *GormAuditLog) List(ctx context.Context, stream audit.Stream, aggregateID uuid.UUID, filter shared.Filter) ([]audit.Entry, int64, error) {
	query := l.db.WithContext(ctx).Model(&models.AuditEntryModel{}).
		Where("stream = ? AND aggregate_id = ?", stream, aggregateID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []models.AuditEntryModel
	if err := query.Order("created_at ASC").Order("id ASC").
		Offset(filter.Offset()).Limit(filter.Limit()).
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	out := make([]audit.Entry, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out, total, nil
}

var _ audit.Log = (*GormAuditLog)(nil)
