package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/wholesale/backend/internal/domain/allocation"
	"github.com/wholesale/backend/internal/domain/listing"
	"github.com/wholesale/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormIntegrityScanner pages through counter-carrying aggregates in id order
// for the background integrity sweep. It reads outside any business
// transaction and never locks.
type GormIntegrityScanner struct {
	db *gorm.DB
}

// NewGormIntegrityScanner creates a new GormIntegrityScanner
func NewGormIntegrityScanner(db *gorm.DB) *GormIntegrityScanner {
	return &GormIntegrityScanner{db: db}
}

// ScanAllocations returns up to limit allocations with an id greater than
// after. Pass uuid.Nil to start from the beginning.
func (s *GormIntegrityScanner) ScanAllocations(ctx context.Context, after uuid.UUID, limit int) ([]allocation.Allocation, error) {
	var rows []models.AllocationModel
	if err := s.page(ctx, after, limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return toAllocations(rows), nil
}

// ScanListings returns up to limit listings with an id greater than after
func (s *GormIntegrityScanner) ScanListings(ctx context.Context, after uuid.UUID, limit int) ([]listing.Listing, error) {
	var rows []models.ListingModel
	if err := s.page(ctx, after, limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]listing.Listing, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out, nil
}

func (s *GormIntegrityScanner) page(ctx context.Context, after uuid.UUID, limit int) *gorm.DB {
	query := s.db.WithContext(ctx).Order("id ASC").Limit(limit)
	if after != uuid.Nil {
		query = query.Where("id > ?", after)
	}
	return query
}
