package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/wholesale/backend/internal/domain/shared"
	"gorm.io/gorm"
)

// updateWithVersion writes every column of model if the stored row still
// carries expectedVersion. model must already hold expectedVersion+1.
func updateWithVersion(ctx context.Context, db *gorm.DB, model any, id uuid.UUID, expectedVersion int) error {
	result := db.WithContext(ctx).
		Model(model).
		Where("id = ? AND version = ?", id, expectedVersion).
		Select("*").
		Omit("id", "created_at").
		Updates(model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}
