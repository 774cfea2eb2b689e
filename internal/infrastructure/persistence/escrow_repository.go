package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/wholesale/backend/internal/domain/escrow"
	"github.com/wholesale/backend/internal/domain/shared"
	"github.com/wholesale/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	errDuplicateEscrow       = shared.NewDomainError(shared.KindDuplicate, "DUPLICATE_ESCROW", "An escrow already exists for this order")
	errDuplicateCustomEscrow = shared.NewDomainError(shared.KindDuplicate, "DUPLICATE_CUSTOM_ESCROW", "An escrow already exists for this custom request")
)

// GormEscrowRepository implements escrow.EscrowRepository using GORM.
// Every settlement is a conditional update on status, so a replayed call
// changes nothing and reports false.
type GormEscrowRepository struct {
	db *gorm.DB
}

// NewGormEscrowRepository creates a new GormEscrowRepository
func NewGormEscrowRepository(db *gorm.DB) *GormEscrowRepository {
	return &GormEscrowRepository{db: db}
}

// FindByOrderID finds the escrow of an order
func (r *GormEscrowRepository) FindByOrderID(ctx context.Context, orderID uuid.UUID) (*escrow.Escrow, error) {
	return r.load(r.db.WithContext(ctx), orderID, false)
}

// Create inserts a new escrow
func (r *GormEscrowRepository) Create(ctx context.Context, e *escrow.Escrow) error {
	return translate(r.db.WithContext(ctx).Create(models.EscrowModelFromDomain(e)).Error, errDuplicateEscrow)
}

// ConfirmDelivery stamps the delivery confirmation once
func (r *GormEscrowRepository) ConfirmDelivery(ctx context.Context, orderID uuid.UUID, at time.Time) (bool, error) {
	return r.transition(ctx, orderID,
		[]escrow.Status{escrow.StatusHold, escrow.StatusFrozen},
		"delivery_confirmed_at IS NULL",
		map[string]any{"delivery_confirmed_at": at})
}

// Freeze blocks settlement while a dispute is open
func (r *GormEscrowRepository) Freeze(ctx context.Context, orderID uuid.UUID) (bool, error) {
	return r.transition(ctx, orderID,
		[]escrow.Status{escrow.StatusHold}, "",
		map[string]any{"status": escrow.StatusFrozen})
}

// Unfreeze returns a FROZEN escrow to HOLD
func (r *GormEscrowRepository) Unfreeze(ctx context.Context, orderID uuid.UUID, approveForce bool) (bool, error) {
	updates := map[string]any{"status": escrow.StatusHold}
	if approveForce {
		updates["force_release_approved"] = true
	}
	return r.transition(ctx, orderID, []escrow.Status{escrow.StatusFrozen}, "", updates)
}

// MarkReleased moves HOLD to RELEASED when the release condition holds
func (r *GormEscrowRepository) MarkReleased(ctx context.Context, orderID uuid.UUID, at time.Time) (bool, error) {
	return r.transition(ctx, orderID,
		[]escrow.Status{escrow.StatusHold},
		"(force_release_approved = TRUE OR (release_condition = '"+string(escrow.ReleaseOnDelivery)+"' AND delivery_confirmed_at IS NOT NULL))",
		map[string]any{"status": escrow.StatusReleased, "released_at": at})
}

// MarkRefunded moves HOLD or FROZEN to REFUNDED
func (r *GormEscrowRepository) MarkRefunded(ctx context.Context, orderID uuid.UUID, at time.Time) (bool, error) {
	return r.transition(ctx, orderID,
		[]escrow.Status{escrow.StatusHold, escrow.StatusFrozen}, "",
		map[string]any{"status": escrow.StatusRefunded, "refunded_at": at})
}

// ApplyPartialRefund moves amount from the dealer share to refunded. The
// arithmetic runs in decimal under a row lock rather than in SQL so numeric
// precision never depends on the driver.
func (r *GormEscrowRepository) ApplyPartialRefund(ctx context.Context, orderID uuid.UUID, amount decimal.Decimal) (bool, error) {
	changed := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		e, err := r.load(tx, orderID, true)
		if err != nil {
			return err
		}
		if err := e.ApplyPartialRefund(amount); err != nil {
			return err
		}
		res := tx.Model(&models.EscrowModel{}).
			Where("id = ? AND version = ?", e.ID, e.Version).
			Updates(map[string]any{
				"dealer_amount":   e.DealerAmount,
				"refunded_amount": e.RefundedAmount,
				"version":         gorm.Expr("version + 1"),
				"updated_at":      e.UpdatedAt,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return shared.ErrConcurrencyConflict
		}
		changed = true
		return nil
	})
	return changed, err
}

// RecordRefundConfirmation stores the gateway's refund reference
func (r *GormEscrowRepository) RecordRefundConfirmation(ctx context.Context, orderID uuid.UUID, confirmationID string) error {
	res := r.db.WithContext(ctx).Model(&models.EscrowModel{}).
		Where("order_id = ?", orderID).
		Updates(map[string]any{"refund_confirmation": confirmationID, "updated_at": time.Now()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// transition applies updates when the escrow is in one of from and cond
// holds. A missing escrow is NOT_FOUND; a guard miss is (false, nil).
func (r *GormEscrowRepository) transition(ctx context.Context, orderID uuid.UUID, from []escrow.Status, cond string, updates map[string]any) (bool, error) {
	db := r.db.WithContext(ctx)
	updates["version"] = gorm.Expr("version + 1")
	updates["updated_at"] = time.Now()

	query := db.Model(&models.EscrowModel{}).Where("order_id = ? AND status IN ?", orderID, from)
	if cond != "" {
		query = query.Where(cond)
	}
	res := query.Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		if _, err := r.load(db, orderID, false); err != nil {
			return false, err
		}
		return false, nil
	}
	return true, nil
}

func (r *GormEscrowRepository) load(db *gorm.DB, orderID uuid.UUID, lock bool) (*escrow.Escrow, error) {
	if lock {
		db = db.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var model models.EscrowModel
	if err := db.Where("order_id = ?", orderID).First(&model).Error; err != nil {
		return nil, translate(err, nil)
	}
	return model.ToDomain(), nil
}

// GormCustomEscrowRepository implements escrow.CustomEscrowRepository using GORM
type GormCustomEscrowRepository struct {
	db *gorm.DB
}

// NewGormCustomEscrowRepository creates a new GormCustomEscrowRepository
func NewGormCustomEscrowRepository(db *gorm.DB) *GormCustomEscrowRepository {
	return &GormCustomEscrowRepository{db: db}
}

// FindByID finds a custom escrow with its payers
func (r *GormCustomEscrowRepository) FindByID(ctx context.Context, id uuid.UUID) (*escrow.CustomOrderEscrow, error) {
	return r.load(r.db.WithContext(ctx), "id = ?", id, false)
}

// FindByCustomRequest finds the escrow of a custom request
func (r *GormCustomEscrowRepository) FindByCustomRequest(ctx context.Context, customRequestID uuid.UUID) (*escrow.CustomOrderEscrow, error) {
	return r.load(r.db.WithContext(ctx), "custom_request_id = ?", customRequestID, false)
}

// Create inserts the header and its payers in one transaction
func (r *GormCustomEscrowRepository) Create(ctx context.Context, e *escrow.CustomOrderEscrow) error {
	model := models.CustomEscrowModelFromDomain(e)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return translate(tx.Create(model).Error, errDuplicateCustomEscrow)
	})
}

// Update loads the escrow under a row lock, applies fn and writes the
// header and every payer back
func (r *GormCustomEscrowRepository) Update(ctx context.Context, id uuid.UUID, fn func(e *escrow.CustomOrderEscrow) error) (*escrow.CustomOrderEscrow, error) {
	var updated *escrow.CustomOrderEscrow
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		e, err := r.load(tx, "id = ?", id, true)
		if err != nil {
			return err
		}
		if err := fn(e); err != nil {
			return err
		}

		header := models.CustomEscrowModelFromDomain(e)
		payers := header.Participants
		header.Participants = nil
		header.Version = e.Version + 1
		if err := updateWithVersion(ctx, tx, header, e.ID, e.Version); err != nil {
			return err
		}
		for i := range payers {
			if err := tx.Model(&models.CustomEscrowPaymentModel{}).
				Where("id = ?", payers[i].ID).
				Select("*").
				Omit("id", "escrow_id", "seller_id", "created_at").
				Updates(&payers[i]).Error; err != nil {
				return err
			}
		}
		e.IncrementVersion()
		updated = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *GormCustomEscrowRepository) load(db *gorm.DB, cond string, arg any, lock bool) (*escrow.CustomOrderEscrow, error) {
	if lock {
		db = db.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var model models.CustomEscrowModel
	if err := db.Where(cond, arg).First(&model).Error; err != nil {
		return nil, translate(err, nil)
	}
	if err := db.Session(&gorm.Session{NewDB: true}).
		Where("escrow_id = ?", model.ID).
		Order("created_at ASC, seller_id ASC").
		Find(&model.Participants).Error; err != nil {
		return nil, err
	}
	return model.ToDomain(), nil
}

var (
	_ escrow.EscrowRepository       = (*GormEscrowRepository)(nil)
	_ escrow.CustomEscrowRepository = (*GormCustomEscrowRepository)(nil)
)
