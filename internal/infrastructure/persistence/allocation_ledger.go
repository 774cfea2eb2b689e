package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/wholesale/backend/internal/domain/allocation"
	"github.com/wholesale/backend/internal/domain/shared"
	"github.com/wholesale/backend/internal/infrastructure/logger"
	"github.com/wholesale/backend/internal/infrastructure/persistence/models"
	"github.com/wholesale/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormAllocationLedger implements allocation.Ledger. Each counter change is
// a single conditional UPDATE followed by a re-read and invariant check in
// the same transaction; a failed check rolls the change back.
type GormAllocationLedger struct {
	db      *gorm.DB
	metrics *telemetry.MarketplaceMetrics
}

// NewGormAllocationLedger creates a ledger. metrics may be nil.
func NewGormAllocationLedger(db *gorm.DB, metrics *telemetry.MarketplaceMetrics) *GormAllocationLedger {
	return &GormAllocationLedger{db: db, metrics: metrics}
}

// FindByID finds an allocation by ID
func (r *GormAllocationLedger) FindByID(ctx context.Context, id uuid.UUID) (*allocation.Allocation, error) {
	return r.load(r.db.WithContext(ctx), id)
}

// FindBySeller lists a seller's allocations
func (r *GormAllocationLedger) FindBySeller(ctx context.Context, sellerID uuid.UUID, filter shared.Filter) ([]allocation.Allocation, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.AllocationModel{}).Where("seller_id = ?", sellerID)
	if status, ok := filter.Filters["status"].(string); ok && status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []models.AllocationModel
	if err := paginate(query, filter, AllocationSortFields).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return toAllocations(rows), total, nil
}

// FindByNegotiation lists the allocations cut from a negotiation
func (r *GormAllocationLedger) FindByNegotiation(ctx context.Context, negotiationID uuid.UUID) ([]allocation.Allocation, error) {
	var rows []models.AllocationModel
	if err := r.db.WithContext(ctx).
		Where("negotiation_id = ?", negotiationID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return toAllocations(rows), nil
}

// Create inserts an allocation; (negotiation_id, seller_id) is unique
func (r *GormAllocationLedger) Create(ctx context.Context, a *allocation.Allocation) error {
	if err := a.CheckInvariant(); err != nil {
		return err
	}
	return translate(r.db.WithContext(ctx).Create(models.AllocationModelFromDomain(a)).Error, allocation.ErrDuplicate)
}

// Consume sells quantity units from an ACTIVE allocation
func (r *GormAllocationLedger) Consume(ctx context.Context, id uuid.UUID, quantity int64) (*allocation.Allocation, error) {
	if quantity <= 0 {
		return nil, allocation.ErrInvalidQty
	}

	var updated *allocation.Allocation
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.AllocationModel{}).
			Where("id = ? AND status = ? AND remaining_quantity >= ?", id, allocation.StatusActive, quantity).
			Updates(map[string]any{
				"sold_quantity":      gorm.Expr("sold_quantity + ?", quantity),
				"remaining_quantity": gorm.Expr("remaining_quantity - ?", quantity),
				"status":             gorm.Expr("CASE WHEN remaining_quantity - ? = 0 THEN ? ELSE status END", quantity, allocation.StatusDepleted),
				"version":            gorm.Expr("version + 1"),
				"updated_at":         time.Now(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return r.rejectConsume(ctx, tx, id, quantity)
		}

		a, err := r.verify(ctx, tx, id, "consume")
		if err != nil {
			return err
		}
		updated = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	r.metrics.Consumed(ctx, quantity)
	return updated, nil
}

// rejectConsume explains why the conditional update matched nothing
func (r *GormAllocationLedger) rejectConsume(ctx context.Context, tx *gorm.DB, id uuid.UUID, quantity int64) error {
	current, err := r.load(tx, id)
	if err != nil {
		return err
	}
	if current.Status == allocation.StatusRevoked {
		r.metrics.ConsumeRejected(ctx, "revoked")
		return allocation.ErrRevoked
	}
	r.metrics.ConsumeRejected(ctx, "insufficient")
	return allocation.Insufficient(current.RemainingQuantity, quantity)
}

// Restore returns up to quantity units, clamped at zero sold
func (r *GormAllocationLedger) Restore(ctx context.Context, id uuid.UUID, quantity int64) (*allocation.Allocation, error) {
	if quantity <= 0 {
		return nil, allocation.ErrInvalidQty
	}

	var (
		updated  *allocation.Allocation
		restored int64
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// the row stays locked until commit so before and after bracket only
		// this update
		before, err := r.load(tx.Clauses(clause.Locking{Strength: "UPDATE"}), id)
		if err != nil {
			return err
		}

		delta := gorm.Expr("CASE WHEN sold_quantity < ? THEN sold_quantity ELSE ? END", quantity, quantity)
		res := tx.Model(&models.AllocationModel{}).
			Where("id = ?", id).
			Updates(map[string]any{
				"sold_quantity":      gorm.Expr("sold_quantity - ?", delta),
				"remaining_quantity": gorm.Expr("remaining_quantity + ?", delta),
				"status": gorm.Expr("CASE WHEN status = ? AND sold_quantity > 0 THEN ? ELSE status END",
					allocation.StatusDepleted, allocation.StatusActive),
				"version":    gorm.Expr("version + 1"),
				"updated_at": time.Now(),
			})
		if res.Error != nil {
			return res.Error
		}

		a, err := r.verify(ctx, tx, id, "restore")
		if err != nil {
			return err
		}
		restored = before.SoldQuantity - a.SoldQuantity
		updated = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	r.metrics.Restored(ctx, restored)
	return updated, nil
}

// Revoke persists a revocation. Only an ACTIVE allocation can be revoked.
func (r *GormAllocationLedger) Revoke(ctx context.Context, a *allocation.Allocation) error {
	if a.Status != allocation.StatusRevoked {
		return fmt.Errorf("revoke: allocation %s is %s in memory", a.ID, a.Status)
	}
	res := r.db.WithContext(ctx).Model(&models.AllocationModel{}).
		Where("id = ? AND status = ?", a.ID, allocation.StatusActive).
		Updates(map[string]any{
			"status":         allocation.StatusRevoked,
			"revoked_reason": a.RevokedReason,
			"revoked_by":     a.RevokedBy,
			"revoked_at":     a.RevokedAt,
			"version":        gorm.Expr("version + 1"),
			"updated_at":     a.UpdatedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		if _, err := r.load(r.db.WithContext(ctx), a.ID); err != nil {
			return err
		}
		return allocation.ErrNotActive
	}
	a.IncrementVersion()
	return nil
}

// verify re-reads the row inside tx and checks the counter invariant
func (r *GormAllocationLedger) verify(ctx context.Context, tx *gorm.DB, id uuid.UUID, op string) (*allocation.Allocation, error) {
	a, err := r.load(tx, id)
	if err != nil {
		return nil, err
	}
	if err := a.CheckInvariant(); err != nil {
		r.metrics.IntegrityViolation(ctx, "allocation."+op)
		logger.L(ctx).DPanic("allocation invariant violated, rolling back",
			zap.String("allocation_id", id.String()),
			zap.String("operation", op),
			zap.Int64("allocated", a.AllocatedQuantity),
			zap.Int64("sold", a.SoldQuantity),
			zap.Int64("remaining", a.RemainingQuantity),
			zap.String("status", a.Status.String()),
		)
		return nil, err
	}
	return a, nil
}

func (r *GormAllocationLedger) load(db *gorm.DB, id uuid.UUID) (*allocation.Allocation, error) {
	var model models.AllocationModel
	if err := db.Where("id = ?", id).First(&model).Error; err != nil {
		return nil, translate(err, nil)
	}
	return model.ToDomain(), nil
}

func toAllocations(rows []models.AllocationModel) []allocation.Allocation {
	out := make([]allocation.Allocation, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out
}

var _ allocation.Ledger = (*GormAllocationLedger)(nil)
