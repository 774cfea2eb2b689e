package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/wholesale/backend/internal/domain/collaboration"
	"github.com/wholesale/backend/internal/domain/negotiation"
	"github.com/wholesale/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormProductCatalog serves the local catalog_products read model
type GormProductCatalog struct {
	db *gorm.DB
}

// NewGormProductCatalog creates a new GormProductCatalog
func NewGormProductCatalog(db *gorm.DB) *GormProductCatalog {
	return &GormProductCatalog{db: db}
}

// Product returns the product or shared.ErrNotFound
func (c *GormProductCatalog) Product(ctx context.Context, productID uuid.UUID) (*negotiation.Product, error) {
	var model models.CatalogProductModel
	if err := c.db.WithContext(ctx).Where("id = ?", productID).First(&model).Error; err != nil {
		return nil, translate(err, nil)
	}
	return model.ToDomain(), nil
}

// Upsert writes a catalog row, replacing an older copy
func (c *GormProductCatalog) Upsert(ctx context.Context, p negotiation.Product) error {
	model := models.CatalogProductModel{
		ID:             p.ID,
		ManufacturerID: p.ManufacturerID,
		Name:           p.Name,
		Category:       p.Category,
		BasePrice:      p.BasePrice,
		Active:         p.Active,
		UpdatedAt:      time.Now(),
	}
	return c.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&model).Error
}

// GormSellerEligibility answers eligibility checks from seller_profiles.
// A seller without a profile row is neither eligible nor verified.
type GormSellerEligibility struct {
	db *gorm.DB
}

// NewGormSellerEligibility creates a new GormSellerEligibility
func NewGormSellerEligibility(db *gorm.DB) *GormSellerEligibility {
	return &GormSellerEligibility{db: db}
}

// CollaborationEligible reports an active subscription that includes collaboration
func (e *GormSellerEligibility) CollaborationEligible(ctx context.Context, sellerID uuid.UUID) (bool, error) {
	p, err := e.profile(ctx, sellerID)
	if err != nil || p == nil {
		return false, err
	}
	return p.SubscriptionActive && p.CollaborationEligible, nil
}

// IsVerified reports whether the seller holds a verified badge
func (e *GormSellerEligibility) IsVerified(ctx context.Context, sellerID uuid.UUID) (bool, error) {
	p, err := e.profile(ctx, sellerID)
	if err != nil || p == nil {
		return false, err
	}
	return p.Verified, nil
}

// Upsert writes a seller profile, replacing an older copy
func (e *GormSellerEligibility) Upsert(ctx context.Context, profile *models.SellerProfileModel) error {
	profile.UpdatedAt = time.Now()
	return e.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "seller_id"}},
		UpdateAll: true,
	}).Create(profile).Error
}

func (e *GormSellerEligibility) profile(ctx context.Context, sellerID uuid.UUID) (*models.SellerProfileModel, error) {
	var rows []models.SellerProfileModel
	if err := e.db.WithContext(ctx).Where("seller_id = ?", sellerID).Limit(1).Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

var (
	_ negotiation.ProductCatalog      = (*GormProductCatalog)(nil)
	_ collaboration.SellerEligibility = (*GormSellerEligibility)(nil)
)
