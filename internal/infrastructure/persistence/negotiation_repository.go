package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/wholesale/backend/internal/domain/negotiation"
	"github.com/wholesale/backend/internal/domain/shared"
	"github.com/wholesale/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormNegotiationRepository implements negotiation.NegotiationRepository using GORM
type GormNegotiationRepository struct {
	db *gorm.DB
}

// NewGormNegotiationRepository creates a new GormNegotiationRepository
func NewGormNegotiationRepository(db *gorm.DB) *GormNegotiationRepository {
	return &GormNegotiationRepository{db: db}
}

// FindByID finds a negotiation by ID
func (r *GormNegotiationRepository) FindByID(ctx context.Context, id uuid.UUID) (*negotiation.Negotiation, error) {
	var model models.NegotiationModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		return nil, translate(err, nil)
	}
	return model.ToDomain(), nil
}

// FindByParty lists negotiations where partyID is the seller or the manufacturer
func (r *GormNegotiationRepository) FindByParty(ctx context.Context, partyID uuid.UUID, filter shared.Filter) ([]negotiation.Negotiation, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.NegotiationModel{}).
		Where("seller_id = ? OR manufacturer_id = ?", partyID, partyID)
	if status, ok := filter.Filters["status"].(string); ok && status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.NegotiationModel
	if err := paginate(query, filter, NegotiationSortFields).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	out := make([]negotiation.Negotiation, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out, total, nil
}

// Create inserts a new negotiation
func (r *GormNegotiationRepository) Create(ctx context.Context, n *negotiation.Negotiation) error {
	return translate(r.db.WithContext(ctx).Create(models.NegotiationModelFromDomain(n)).Error, nil)
}

// SaveWithLock persists n if nobody changed it since it was loaded
func (r *GormNegotiationRepository) SaveWithLock(ctx context.Context, n *negotiation.Negotiation) error {
	model := models.NegotiationModelFromDomain(n)
	model.Version = n.Version + 1
	if err := updateWithVersion(ctx, r.db, model, n.ID, n.Version); err != nil {
		return err
	}
	n.IncrementVersion()
	return nil
}

var _ negotiation.NegotiationRepository = (*GormNegotiationRepository)(nil)
