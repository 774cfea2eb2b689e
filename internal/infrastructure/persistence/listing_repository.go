package persistence

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/wholesale/backend/internal/domain/allocation"
	"github.com/wholesale/backend/internal/domain/listing"
	"github.com/wholesale/backend/internal/domain/shared"
	"github.com/wholesale/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormListingRepository implements listing.ListingRepository using GORM
type GormListingRepository struct {
	db *gorm.DB
}

// NewGormListingRepository creates a new GormListingRepository
func NewGormListingRepository(db *gorm.DB) *GormListingRepository {
	return &GormListingRepository{db: db}
}

// FindByID finds a listing by ID
func (r *GormListingRepository) FindByID(ctx context.Context, id uuid.UUID) (*listing.Listing, error) {
	return r.load(r.db.WithContext(ctx), id)
}

// FindByAllocationAndSeller finds the seller's listing for an allocation
func (r *GormListingRepository) FindByAllocationAndSeller(ctx context.Context, allocationID, sellerID uuid.UUID) (*listing.Listing, error) {
	var model models.ListingModel
	if err := r.db.WithContext(ctx).
		Where("allocation_id = ? AND seller_id = ?", allocationID, sellerID).
		First(&model).Error; err != nil {
		return nil, translate(err, nil)
	}
	return model.ToDomain(), nil
}

// FindBySeller lists a seller's listings, optionally only live ones
func (r *GormListingRepository) FindBySeller(ctx context.Context, sellerID uuid.UUID, filter shared.Filter) ([]listing.Listing, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.ListingModel{}).Where("seller_id = ?", sellerID)
	if active, ok := filter.Filters["active"].(bool); ok {
		query = query.Where("active = ?", active)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []models.ListingModel
	if err := paginate(query, filter, ListingSortFields).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	out := make([]listing.Listing, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out, total, nil
}

// Create inserts a listing; one listing per (allocation, seller)
func (r *GormListingRepository) Create(ctx context.Context, l *listing.Listing) error {
	if err := l.CheckInvariant(); err != nil {
		return err
	}
	return translate(r.db.WithContext(ctx).Create(models.ListingModelFromDomain(l)).Error,
		shared.NewDomainError(shared.KindDuplicate, "DUPLICATE_LISTING", "A listing already exists for this allocation"))
}

// SaveWithLock persists l if nobody changed it since it was loaded
func (r *GormListingRepository) SaveWithLock(ctx context.Context, l *listing.Listing) error {
	if err := l.CheckInvariant(); err != nil {
		return err
	}
	model := models.ListingModelFromDomain(l)
	model.Version = l.Version + 1
	if err := updateWithVersion(ctx, r.db, model, l.ID, l.Version); err != nil {
		return err
	}
	l.IncrementVersion()
	return nil
}

// Consume moves quantity from remaining to sold on a live listing
func (r *GormListingRepository) Consume(ctx context.Context, id uuid.UUID, quantity int64) error {
	if quantity <= 0 {
		return allocation.ErrInvalidQty
	}
	db := r.db.WithContext(ctx)
	res := db.Model(&models.ListingModel{}).
		Where("id = ? AND active = ? AND allocation_status = ? AND remaining_quantity >= ?",
			id, true, listing.AllocationApproved, quantity).
		Updates(map[string]any{
			"sold_quantity":      gorm.Expr("sold_quantity + ?", quantity),
			"remaining_quantity": gorm.Expr("remaining_quantity - ?", quantity),
			"stock":              gorm.Expr("remaining_quantity - ?", quantity),
			"version":            gorm.Expr("version + 1"),
			"updated_at":         time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		current, err := r.load(db, id)
		if err != nil {
			return err
		}
		if !current.IsLive() {
			return listing.ErrNotLive
		}
		return allocation.Insufficient(current.RemainingQuantity, quantity)
	}
	return nil
}

// Restore moves up to quantity back from sold to remaining
func (r *GormListingRepository) Restore(ctx context.Context, id uuid.UUID, quantity int64) error {
	if quantity <= 0 {
		return allocation.ErrInvalidQty
	}
	delta := gorm.Expr("CASE WHEN sold_quantity < ? THEN sold_quantity ELSE ? END", quantity, quantity)
	res := r.db.WithContext(ctx).Model(&models.ListingModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"sold_quantity":      gorm.Expr("sold_quantity - ?", delta),
			"remaining_quantity": gorm.Expr("remaining_quantity + ?", delta),
			"stock":              gorm.Expr("remaining_quantity + ?", delta),
			"version":            gorm.Expr("version + 1"),
			"updated_at":         time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *GormListingRepository) load(db *gorm.DB, id uuid.UUID) (*listing.Listing, error) {
	var model models.ListingModel
	if err := db.Where("id = ?", id).First(&model).Error; err != nil {
		return nil, translate(err, nil)
	}
	return model.ToDomain(), nil
}

var (
	openOrderStatuses       = []listing.OrderStatus{listing.OrderPlaced, listing.OrderPartiallyCancelled}
	refundableOrderStatuses = []listing.OrderStatus{listing.OrderPlaced, listing.OrderPartiallyCancelled, listing.OrderDelivered}
)

// GormOrderRepository implements listing.OrderRepository using GORM
type GormOrderRepository struct {
	db *gorm.DB
}

// NewGormOrderRepository creates a new GormOrderRepository
func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// FindByID finds an order by ID
func (r *GormOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*listing.Order, error) {
	return r.load(r.db.WithContext(ctx), id)
}

// FindByBuyer lists a buyer's orders
func (r *GormOrderRepository) FindByBuyer(ctx context.Context, buyerID uuid.UUID, filter shared.Filter) ([]listing.Order, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.OrderModel{}).Where("buyer_id = ?", buyerID)
	if status, ok := filter.Filters["status"].(string); ok && status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []models.OrderModel
	if err := paginate(query, filter, OrderSortFields).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	out := make([]listing.Order, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out, total, nil
}

// Create inserts a new order
func (r *GormOrderRepository) Create(ctx context.Context, o *listing.Order) error {
	return translate(r.db.WithContext(ctx).Create(models.OrderModelFromDomain(o)).Error, nil)
}

// Cancel adds quantity to the cancelled units of an open order
func (r *GormOrderRepository) Cancel(ctx context.Context, id uuid.UUID, quantity int64) (*listing.Order, error) {
	return r.cancel(ctx, id, quantity, openOrderStatuses)
}

// Reverse adds quantity to the cancelled units of an open or delivered order
func (r *GormOrderRepository) Reverse(ctx context.Context, id uuid.UUID, quantity int64) (*listing.Order, error) {
	return r.cancel(ctx, id, quantity, refundableOrderStatuses)
}

func (r *GormOrderRepository) cancel(ctx context.Context, id uuid.UUID, quantity int64, statuses []listing.OrderStatus) (*listing.Order, error) {
	if quantity <= 0 {
		return nil, allocation.ErrInvalidQty
	}
	var updated *listing.Order
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.OrderModel{}).
			Where("id = ? AND status IN ? AND quantity - cancelled_quantity >= ?", id, statuses, quantity).
			Updates(map[string]any{
				"cancelled_quantity": gorm.Expr("cancelled_quantity + ?", quantity),
				"status": gorm.Expr("CASE WHEN cancelled_quantity + ? >= quantity THEN ? ELSE ? END",
					quantity, listing.OrderCancelled, listing.OrderPartiallyCancelled),
				"version":    gorm.Expr("version + 1"),
				"updated_at": time.Now(),
			})
		if res.Error != nil {
			return res.Error
		}
		current, err := r.load(tx, id)
		if err != nil {
			return err
		}
		if res.RowsAffected == 0 {
			if !slices.Contains(statuses, current.Status) {
				return shared.NewStateConflictError("ORDER_CLOSED",
					fmt.Sprintf("Cannot cancel an order in %s status", current.Status))
			}
			return shared.NewValidationError("CANCEL_EXCEEDS_ORDER",
				fmt.Sprintf("Cannot cancel %d units, %d outstanding", quantity, current.OutstandingQuantity()))
		}
		updated = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// MarkDelivered moves an open order to DELIVERED
func (r *GormOrderRepository) MarkDelivered(ctx context.Context, id uuid.UUID) (*listing.Order, error) {
	var updated *listing.Order
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.OrderModel{}).
			Where("id = ? AND status IN ?", id, openOrderStatuses).
			Updates(map[string]any{
				"status":       listing.OrderDelivered,
				"delivered_at": time.Now(),
				"version":      gorm.Expr("version + 1"),
				"updated_at":   time.Now(),
			})
		if res.Error != nil {
			return res.Error
		}
		current, err := r.load(tx, id)
		if err != nil {
			return err
		}
		if res.RowsAffected == 0 {
			return shared.NewStateConflictError("ORDER_CLOSED",
				fmt.Sprintf("Cannot deliver an order in %s status", current.Status))
		}
		updated = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *GormOrderRepository) load(db *gorm.DB, id uuid.UUID) (*listing.Order, error) {
	var model models.OrderModel
	if err := db.Where("id = ?", id).First(&model).Error; err != nil {
		return nil, translate(err, nil)
	}
	return model.ToDomain(), nil
}

var (
	_ listing.ListingRepository = (*GormListingRepository)(nil)
	_ listing.OrderRepository   = (*GormOrderRepository)(nil)
)
