package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/wholesale/backend/internal/domain/dispute"
	"github.com/wholesale/backend/internal/domain/shared"
	"github.com/wholesale/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormDisputeRepository implements dispute.DisputeRepository using GORM
type GormDisputeRepository struct {
	db *gorm.DB
}

// NewGormDisputeRepository creates a new GormDisputeRepository
func NewGormDisputeRepository(db *gorm.DB) *GormDisputeRepository {
	return &GormDisputeRepository{db: db}
}

// FindByID finds a dispute by ID
func (r *GormDisputeRepository) FindByID(ctx context.Context, id uuid.UUID) (*dispute.Dispute, error) {
	return r.findOne(ctx, "id = ?", id)
}

// FindByOrderID finds the dispute raised on an order
func (r *GormDisputeRepository) FindByOrderID(ctx context.Context, orderID uuid.UUID) (*dispute.Dispute, error) {
	return r.findOne(ctx, "order_id = ?", orderID)
}

// FindByStatus lists disputes in a status for the admin queue
func (r *GormDisputeRepository) FindByStatus(ctx context.Context, status dispute.Status, filter shared.Filter) ([]dispute.Dispute, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.DisputeModel{}).Where("status = ?", status)
	if adminID, ok := filter.Filters["assigned_admin_id"].(uuid.UUID); ok {
		query = query.Where("assigned_admin_id = ?", adminID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []models.DisputeModel
	if err := paginate(query, filter, DisputeSortFields).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	out := make([]dispute.Dispute, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out, total, nil
}

// Create inserts a dispute; an order carries at most one
func (r *GormDisputeRepository) Create(ctx context.Context, d *dispute.Dispute) error {
	return translate(r.db.WithContext(ctx).Create(models.DisputeModelFromDomain(d)).Error, dispute.ErrAlreadyDisputed)
}

// SaveWithLock persists d if nobody changed it since it was loaded
func (r *GormDisputeRepository) SaveWithLock(ctx context.Context, d *dispute.Dispute) error {
	model := models.DisputeModelFromDomain(d)
	model.Version = d.Version + 1
	if err := updateWithVersion(ctx, r.db, model, d.ID, d.Version); err != nil {
		return err
	}
	d.IncrementVersion()
	return nil
}

func (r *GormDisputeRepository) findOne(ctx context.Context, cond string, arg any) (*dispute.Dispute, error) {
	var model models.DisputeModel
	if err := r.db.WithContext(ctx).Where(cond, arg).First(&model).Error; err != nil {
		return nil, translate(err, nil)
	}
	return model.ToDomain(), nil
}

var _ dispute.DisputeRepository = (*GormDisputeRepository)(nil)
