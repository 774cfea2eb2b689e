package dispute

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/wholesale/backend/internal/domain/shared"
	"github.com/wholesale/backend/internal/domain/shared/valueobject"
)

// Status represents the status of a dispute
type Status string

const (
	StatusOpen               Status = "OPEN"
	StatusUnderReview        Status = "UNDER_REVIEW"
	StatusEvidenceCollection Status = "EVIDENCE_COLLECTION"
	StatusInProgress         Status = "IN_PROGRESS"
	StatusResolved           Status = "RESOLVED"
	StatusClosed             Status = "CLOSED"
)

var sequence = []Status{
	StatusOpen,
	StatusUnderReview,
	StatusEvidenceCollection,
	StatusInProgress,
	StatusResolved,
	StatusClosed,
}

// IsValid checks if the status is a known value
func (s Status) IsValid() bool {
	for _, known := range sequence {
		if s == known {
			return true
		}
	}
	return false
}

// Next returns the only status reachable from s
func (s Status) Next() (Status, bool) {
	for i, known := range sequence {
		if s == known && i+1 < len(sequence) {
			return sequence[i+1], true
		}
	}
	return "", false
}

// CanTransitionTo reports whether target directly follows s
func (s Status) CanTransitionTo(target Status) bool {
	next, ok := s.Next()
	return ok && next == target
}

// Resolution is the outcome chosen by the resolving admin
type Resolution string

const (
	ResolutionRefund        Resolution = "REFUND"
	ResolutionPartialRefund Resolution = "PARTIAL_REFUND"
	ResolutionRelease       Resolution = "RELEASE"
)

// IsValid checks if the resolution is a known value
func (r Resolution) IsValid() bool {
	switch r {
	case ResolutionRefund, ResolutionPartialRefund, ResolutionRelease:
		return true
	}
	return false
}

// Metadata records why and how a dispute was resolved
type Metadata struct {
	Summary      string            `json:"summary"`
	RefundAmount *decimal.Decimal  `json:"refund_amount,omitempty"`
	Attributes   map[string]string `json:"attributes,omitempty"`
}

// Dispute errors
var (
	ErrNotDisputeParty  = shared.NewAuthorizationError("NOT_DISPUTE_PARTY", "Only the buyer or seller of the order may do this")
	ErrNotAssigned      = shared.NewStateConflictError("NO_ASSIGNED_ADMIN", "Dispute has no assigned admin")
	ErrNotAssignee      = shared.NewAuthorizationError("NOT_ASSIGNED_ADMIN", "Only the assigned admin may do this")
	ErrMissingMetadata  = shared.NewValidationError("RESOLUTION_METADATA_REQUIRED", "Resolution metadata is required")
	ErrEmptyReason      = shared.NewValidationError("REASON_REQUIRED", "A dispute reason is required")
	ErrEvidenceClosed   = shared.NewStateConflictError("EVIDENCE_CLOSED", "Evidence can only be added during evidence collection")
	ErrInvalidOutcome   = shared.NewValidationError("INVALID_RESOLUTION", "Unknown resolution")
	ErrInvalidRefundAmt = shared.NewValidationError("INVALID_REFUND_AMOUNT", "A partial refund needs a positive refund amount")
	ErrAlreadyDisputed  = shared.NewDomainError(shared.KindDuplicate, "DISPUTE_EXISTS", "A dispute is already open for this order")
)

// Dispute gates the settlement of one order's escrow
type Dispute struct {
	shared.BaseAggregateRoot
	OrderID         uuid.UUID
	BuyerID         uuid.UUID
	SellerID        uuid.UUID
	OpenedBy        uuid.UUID
	Reason          string
	Status          Status
	AssignedAdminID *uuid.UUID
	Resolution      Resolution
	Metadata        *Metadata
	ResolvedAt      *time.Time
	ClosedAt        *time.Time
}

// NewDispute opens a dispute on an order. Only the order's buyer or seller
// may open one.
func NewDispute(orderID, buyerID, sellerID uuid.UUID, actor shared.Actor, reason string) (*Dispute, error) {
	if !actor.IsActive() {
		return nil, shared.ErrAccountInactive
	}
	if actor.ID != buyerID && actor.ID != sellerID {
		return nil, ErrNotDisputeParty
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, ErrEmptyReason
	}
	d := &Dispute{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		OrderID:           orderID,
		BuyerID:           buyerID,
		SellerID:          sellerID,
		OpenedBy:          actor.ID,
		Reason:            reason,
		Status:            StatusOpen,
	}
	d.AddDomainEvent(NewStatusChangedEvent(d, "", actor.ID))
	return d, nil
}

// IsParty reports whether actorID is the buyer or the seller
func (d *Dispute) IsParty(actorID uuid.UUID) bool {
	return actorID == d.BuyerID || actorID == d.SellerID
}

func (d *Dispute) isAssignee(actorID uuid.UUID) bool {
	return d.AssignedAdminID != nil && *d.AssignedAdminID == actorID
}

func (d *Dispute) transition(to Status, actorID uuid.UUID) error {
	if !d.Status.CanTransitionTo(to) {
		return shared.NewStateConflictError("INVALID_TRANSITION",
			fmt.Sprintf("Cannot move dispute from %s to %s", d.Status, to))
	}
	from := d.Status
	d.Status = to
	d.Touch()
	d.AddDomainEvent(NewStatusChangedEvent(d, from, actorID))
	return nil
}

// Assign hands the dispute to an admin for review
func (d *Dispute) Assign(actor shared.Actor, adminID uuid.UUID) error {
	if err := actor.Require(shared.CapReviewDisputes); err != nil {
		return err
	}
	if adminID == uuid.Nil {
		return shared.NewValidationError("INVALID_ADMIN", "Admin ID is required")
	}
	if err := d.transition(StatusUnderReview, actor.ID); err != nil {
		return err
	}
	d.AssignedAdminID = &adminID
	return nil
}

// Advance moves an assigned dispute one step towards IN_PROGRESS
func (d *Dispute) Advance(actor shared.Actor) error {
	if err := d.requireHandler(actor); err != nil {
		return err
	}
	next, ok := d.Status.Next()
	if !ok || next == StatusResolved || next == StatusClosed || d.Status == StatusOpen {
		return shared.NewStateConflictError("INVALID_TRANSITION",
			fmt.Sprintf("Dispute in %s cannot be advanced", d.Status))
	}
	return d.transition(next, actor.ID)
}

// CheckEvidence validates that actor may submit evidence now
func (d *Dispute) CheckEvidence(actor shared.Actor) error {
	if !actor.IsActive() {
		return shared.ErrAccountInactive
	}
	if !d.IsParty(actor.ID) && !d.isAssignee(actor.ID) {
		return ErrNotDisputeParty
	}
	if d.Status != StatusEvidenceCollection {
		return ErrEvidenceClosed
	}
	return nil
}

// Resolve records the outcome. The dispute must be IN_PROGRESS, assigned and
// carry metadata.
func (d *Dispute) Resolve(actor shared.Actor, resolution Resolution, metadata *Metadata) error {
	if err := actor.Require(shared.CapResolveDisputes); err != nil {
		return err
	}
	if d.AssignedAdminID == nil {
		return ErrNotAssigned
	}
	if !resolution.IsValid() {
		return ErrInvalidOutcome
	}
	if metadata == nil || strings.TrimSpace(metadata.Summary) == "" {
		return ErrMissingMetadata
	}
	if resolution == ResolutionPartialRefund {
		if metadata.RefundAmount == nil || !valueobject.IsPositive(*metadata.RefundAmount) {
			return ErrInvalidRefundAmt
		}
	}
	if err := d.transition(StatusResolved, actor.ID); err != nil {
		return err
	}
	now := time.Now()
	d.Resolution = resolution
	d.Metadata = metadata
	d.ResolvedAt = &now
	return nil
}

// Close archives a resolved dispute; its history is kept
func (d *Dispute) Close(actor shared.Actor) error {
	if !actor.IsActive() {
		return shared.ErrAccountInactive
	}
	if !d.IsParty(actor.ID) && d.requireHandler(actor) != nil {
		return ErrNotAssignee
	}
	if err := d.transition(StatusClosed, actor.ID); err != nil {
		return err
	}
	now := time.Now()
	d.ClosedAt = &now
	return nil
}

// requireHandler allows the assigned admin or any admin who may resolve
func (d *Dispute) requireHandler(actor shared.Actor) error {
	if !actor.IsActive() {
		return shared.ErrAccountInactive
	}
	if d.isAssignee(actor.ID) || actor.Can(shared.CapResolveDisputes) {
		return nil
	}
	return ErrNotAssignee
}
