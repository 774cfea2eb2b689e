package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/wholesale/backend/internal/domain/collaboration"
	"github.com/wholesale/backend/internal/domain/shared"
	"github.com/wholesale/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

var openGroupStatuses = []collaboration.GroupStatus{
	collaboration.GroupStatusCreated,
	collaboration.GroupStatusActive,
}

// GormGroupRepository implements collaboration.GroupRepository using GORM
type GormGroupRepository struct {
	db *gorm.DB
}

// NewGormGroupRepository creates a new GormGroupRepository
func NewGormGroupRepository(db *gorm.DB) *GormGroupRepository {
	return &GormGroupRepository{db: db}
}

// FindByID finds a group by ID
func (r *GormGroupRepository) FindByID(ctx context.Context, id uuid.UUID) (*collaboration.Group, error) {
	return r.loadGroup(r.db.WithContext(ctx), id)
}

// Create inserts a new group
func (r *GormGroupRepository) Create(ctx context.Context, g *collaboration.Group) error {
	return translate(r.db.WithContext(ctx).Create(models.GroupModelFromDomain(g)).Error, nil)
}

var rejoinableStatuses = []collaboration.ParticipantStatus{
	collaboration.ParticipantLeft,
	collaboration.ParticipantInvited,
}

// Join admits sellerID with quantityCommitment. The participant row moves
// first under a status guard, so concurrent joins of the same seller
// serialise on that row and only one reaches the group counters. The
// counters then move in one conditional update guarded by status and the
// member ceiling, so two sellers racing for the last seat cannot both win.
func (r *GormGroupRepository) Join(ctx context.Context, groupID, sellerID uuid.UUID, quantityCommitment int64) (*collaboration.Group, *collaboration.Participant, error) {
	if quantityCommitment <= 0 {
		return nil, nil, shared.NewValidationError("INVALID_QUANTITY", "Quantity commitment must be positive")
	}

	var (
		group       *collaboration.Group
		participant *collaboration.Participant
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := r.loadParticipant(tx, groupID, sellerID)
		if err != nil && !shared.IsKind(err, shared.KindNotFound) {
			return err
		}
		if existing == nil {
			participant = collaboration.NewJoinedParticipant(groupID, sellerID, quantityCommitment)
			if err := tx.Create(models.ParticipantModelFromDomain(participant)).Error; err != nil {
				return translate(err, collaboration.ErrAlreadyJoined)
			}
		} else {
			if participant, err = r.rejoin(tx, existing, quantityCommitment); err != nil {
				return err
			}
		}

		if err := r.admit(tx, groupID, quantityCommitment); err != nil {
			return err
		}
		group, err = r.loadGroup(tx, groupID)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return group, participant, nil
}

// rejoin moves a LEFT or INVITED row back to JOINED. A snapshot that went
// stale in the meantime matches no row.
func (r *GormGroupRepository) rejoin(tx *gorm.DB, p *collaboration.Participant, quantityCommitment int64) (*collaboration.Participant, error) {
	switch p.Status {
	case collaboration.ParticipantJoined:
		return nil, collaboration.ErrAlreadyJoined
	case collaboration.ParticipantRemoved:
		return nil, collaboration.ErrRemoved
	}

	now := time.Now()
	res := tx.Model(&models.ParticipantModel{}).
		Where("id = ? AND status IN ?", p.ID, rejoinableStatuses).
		Updates(map[string]any{
			"status":              collaboration.ParticipantJoined,
			"quantity_commitment": quantityCommitment,
			"joined_at":           now,
			"left_at":             nil,
			"updated_at":          now,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, r.participantMoved(tx, p.GroupID, p.SellerID)
	}

	joined := *p
	joined.Status = collaboration.ParticipantJoined
	joined.QuantityCommitment = quantityCommitment
	joined.JoinedAt, joined.LeftAt, joined.UpdatedAt = &now, nil, now
	return &joined, nil
}

func (r *GormGroupRepository) admit(tx *gorm.DB, groupID uuid.UUID, quantityCommitment int64) error {
	res := tx.Model(&models.GroupModel{}).
		Where("id = ? AND status IN ? AND member_count < max_members", groupID, openGroupStatuses).
		Updates(map[string]any{
			"current_quantity": gorm.Expr("current_quantity + ?", quantityCommitment),
			"member_count":     gorm.Expr("member_count + 1"),
			"status": gorm.Expr("CASE WHEN current_quantity + ? >= target_quantity THEN ? ELSE ? END",
				quantityCommitment, collaboration.GroupStatusLocked, collaboration.GroupStatusActive),
			"version":    gorm.Expr("version + 1"),
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		current, err := r.loadGroup(tx, groupID)
		if err != nil {
			return err
		}
		if err := current.CheckJoin(quantityCommitment); err != nil {
			return err
		}
		return shared.ErrConcurrencyConflict
	}
	return nil
}

// participantMoved explains why a guarded participant update matched no row
func (r *GormGroupRepository) participantMoved(tx *gorm.DB, groupID, sellerID uuid.UUID) error {
	current, err := r.loadParticipant(tx, groupID, sellerID)
	if err != nil {
		return err
	}
	switch current.Status {
	case collaboration.ParticipantJoined:
		return collaboration.ErrAlreadyJoined
	case collaboration.ParticipantRemoved:
		return collaboration.ErrRemoved
	}
	return shared.ErrConcurrencyConflict
}

// Invite records an INVITED participant
func (r *GormGroupRepository) Invite(ctx context.Context, p *collaboration.Participant) error {
	return translate(r.db.WithContext(ctx).Create(models.ParticipantModelFromDomain(p)).Error, collaboration.ErrAlreadyJoined)
}

// Leave marks the participant LEFT and releases its commitment
func (r *GormGroupRepository) Leave(ctx context.Context, groupID, sellerID uuid.UUID) (*collaboration.Group, *collaboration.Participant, error) {
	var (
		group       *collaboration.Group
		participant *collaboration.Participant
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := r.loadParticipant(tx, groupID, sellerID)
		if err != nil {
			if shared.IsKind(err, shared.KindNotFound) {
				return collaboration.ErrNotParticipant
			}
			return err
		}
		if participant, err = r.leave(tx, p); err != nil {
			return err
		}
		group, err = r.loadGroup(tx, groupID)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return group, participant, nil
}

// leave flips a JOINED row with the snapshot's commitment to LEFT, then
// releases exactly that commitment. Only one of two concurrent leaves can
// match the row; the other sees LEFT after the first commits.
func (r *GormGroupRepository) leave(tx *gorm.DB, p *collaboration.Participant) (*collaboration.Participant, error) {
	if !p.IsMember() {
		return nil, collaboration.ErrNotParticipant
	}

	now := time.Now()
	res := tx.Model(&models.ParticipantModel{}).
		Where("id = ? AND status = ? AND quantity_commitment = ?",
			p.ID, collaboration.ParticipantJoined, p.QuantityCommitment).
		Updates(map[string]any{
			"status":     collaboration.ParticipantLeft,
			"left_at":    now,
			"updated_at": now,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		current, err := r.loadParticipant(tx, p.GroupID, p.SellerID)
		if err != nil {
			return nil, err
		}
		if current.IsMember() {
			return nil, shared.ErrConcurrencyConflict
		}
		return nil, collaboration.ErrNotParticipant
	}

	res = tx.Model(&models.GroupModel{}).
		Where("id = ? AND status IN ? AND member_count > 0 AND current_quantity >= ?",
			p.GroupID, openGroupStatuses, p.QuantityCommitment).
		Updates(map[string]any{
			"current_quantity": gorm.Expr("current_quantity - ?", p.QuantityCommitment),
			"member_count":     gorm.Expr("member_count - 1"),
			"version":          gorm.Expr("version + 1"),
			"updated_at":       now,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		current, err := r.loadGroup(tx, p.GroupID)
		if err != nil {
			return nil, err
		}
		if err := current.ApplyLeave(p.QuantityCommitment); err != nil {
			return nil, err
		}
		return nil, shared.ErrConcurrencyConflict
	}

	left := *p
	left.Status, left.LeftAt, left.UpdatedAt = collaboration.ParticipantLeft, &now, now
	return &left, nil
}

// UpdateStatus moves the group from one status to another
func (r *GormGroupRepository) UpdateStatus(ctx context.Context, groupID uuid.UUID, from, to collaboration.GroupStatus) error {
	db := r.db.WithContext(ctx)
	res := db.Model(&models.GroupModel{}).
		Where("id = ? AND status = ?", groupID, from).
		Updates(map[string]any{
			"status":     to,
			"version":    gorm.Expr("version + 1"),
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		current, err := r.loadGroup(db, groupID)
		if err != nil {
			return err
		}
		return shared.NewStateConflictError("GROUP_STATUS_CHANGED",
			fmt.Sprintf("Group is %s, expected %s", current.Status, from))
	}
	return nil
}

// FindParticipants lists every participant row of a group
func (r *GormGroupRepository) FindParticipants(ctx context.Context, groupID uuid.UUID) ([]collaboration.Participant, error) {
	var rows []models.ParticipantModel
	if err := r.db.WithContext(ctx).
		Where("group_id = ?", groupID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]collaboration.Participant, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out, nil
}

// FindParticipant finds one seller's participant row
func (r *GormGroupRepository) FindParticipant(ctx context.Context, groupID, sellerID uuid.UUID) (*collaboration.Participant, error) {
	return r.loadParticipant(r.db.WithContext(ctx), groupID, sellerID)
}

// SetParticipantPayment records the participant's payment status
func (r *GormGroupRepository) SetParticipantPayment(ctx context.Context, groupID, sellerID uuid.UUID, status collaboration.PaymentStatus) error {
	res := r.db.WithContext(ctx).Model(&models.ParticipantModel{}).
		Where("group_id = ? AND seller_id = ?", groupID, sellerID).
		Updates(map[string]any{"payment_status": status, "updated_at": time.Now()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *GormGroupRepository) loadGroup(db *gorm.DB, id uuid.UUID) (*collaboration.Group, error) {
	var model models.GroupModel
	if err := db.Where("id = ?", id).First(&model).Error; err != nil {
		return nil, translate(err, nil)
	}
	return model.ToDomain(), nil
}

func (r *GormGroupRepository) loadParticipant(db *gorm.DB, groupID, sellerID uuid.UUID) (*collaboration.Participant, error) {
	var model models.ParticipantModel
	if err := db.Where("group_id = ? AND seller_id = ?", groupID, sellerID).First(&model).Error; err != nil {
		return nil, translate(err, nil)
	}
	return model.ToDomain(), nil
}

// GormContributionRepository implements collaboration.ContributionRepository using GORM
type GormContributionRepository struct {
	db *gorm.DB
}

// NewGormContributionRepository creates a new GormContributionRepository
func NewGormContributionRepository(db *gorm.DB) *GormContributionRepository {
	return &GormContributionRepository{db: db}
}

// CreateBatch inserts all contributions or none
func (r *GormContributionRepository) CreateBatch(ctx context.Context, contributions []collaboration.Contribution) error {
	if len(contributions) == 0 {
		return nil
	}
	rows := make([]*models.ContributionModel, len(contributions))
	for i := range contributions {
		rows[i] = models.ContributionModelFromDomain(&contributions[i])
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return translate(tx.Create(rows).Error, nil)
	})
}

// FindByGroup lists a group's contributions
func (r *GormContributionRepository) FindByGroup(ctx context.Context, groupID uuid.UUID) ([]collaboration.Contribution, error) {
	var rows []models.ContributionModel
	if err := r.db.WithContext(ctx).
		Where("group_id = ?", groupID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]collaboration.Contribution, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out, nil
}

// FindOne finds one seller's contribution to a group
func (r *GormContributionRepository) FindOne(ctx context.Context, groupID, sellerID uuid.UUID) (*collaboration.Contribution, error) {
	var model models.ContributionModel
	if err := r.db.WithContext(ctx).
		Where("group_id = ? AND seller_id = ?", groupID, sellerID).
		First(&model).Error; err != nil {
		return nil, translate(err, nil)
	}
	return model.ToDomain(), nil
}

// Transition moves one contribution from one status to another
func (r *GormContributionRepository) Transition(ctx context.Context, id uuid.UUID, from, to collaboration.ContributionStatus, transactionID string) (bool, error) {
	if !from.CanTransitionTo(to) {
		return false, shared.ErrInvalidTransition
	}
	updates := map[string]any{"status": to, "updated_at": time.Now()}
	if to == collaboration.ContributionPaid {
		updates["paid"] = true
	}
	if transactionID != "" {
		updates["transaction_id"] = transactionID
	}
	res := r.db.WithContext(ctx).Model(&models.ContributionModel{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// TransitionGroup moves every contribution of a group in from to to
func (r *GormContributionRepository) TransitionGroup(ctx context.Context, groupID uuid.UUID, from, to collaboration.ContributionStatus) (int64, error) {
	if !from.CanTransitionTo(to) {
		return 0, shared.ErrInvalidTransition
	}
	res := r.db.WithContext(ctx).Model(&models.ContributionModel{}).
		Where("group_id = ? AND status = ?", groupID, from).
		Updates(map[string]any{"status": to, "updated_at": time.Now()})
	return res.RowsAffected, res.Error
}

// SumByGroup returns Σ amount and Σ quantity over a group's contributions.
// Amounts are summed in decimal so the result never depends on how the
// driver returns numeric aggregates.
func (r *GormContributionRepository) SumByGroup(ctx context.Context, groupID uuid.UUID) (decimal.Decimal, int64, error) {
	contributions, err := r.FindByGroup(ctx, groupID)
	if err != nil {
		return decimal.Zero, 0, err
	}
	total := decimal.Zero
	for _, c := range contributions {
		total = total.Add(c.ContributionAmount)
	}
	return total, collaboration.TotalQuantity(contributions), nil
}

var (
	_ collaboration.GroupRepository        = (*GormGroupRepository)(nil)
	_ collaboration.ContributionRepository = (*GormContributionRepository)(nil)
)
