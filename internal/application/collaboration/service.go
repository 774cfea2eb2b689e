package collaboration

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/wholesale/backend/internal/application/txn"
	"github.com/wholesale/backend/internal/domain/audit"
	"github.com/wholesale/backend/internal/domain/collaboration"
	"github.com/wholesale/backend/internal/domain/escrow"
	"github.com/wholesale/backend/internal/domain/shared"
	"github.com/wholesale/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// Audit actions on the group stream
const (
	ActionCreated          = "CREATED"
	ActionJoined           = "JOINED"
	ActionInvited          = "INVITED"
	ActionLeft             = "LEFT"
	ActionCancelled        = "CANCELLED"
	ActionContributionPaid = "CONTRIBUTION_PAID"
	ActionRefunded         = "CONTRIBUTION_REFUNDED"
)

// Service manages collaboration groups and the payment of their
// contributions
type Service struct {
	scope       txn.TransactionScope
	eligibility collaboration.SellerEligibility
	gateway     escrow.PaymentGateway
	currency    string
}

// NewService creates a new collaboration Service
func NewService(scope txn.TransactionScope, eligibility collaboration.SellerEligibility, gateway escrow.PaymentGateway, currency string) *Service {
	return &Service{scope: scope, eligibility: eligibility, gateway: gateway, currency: currency}
}

// CreateGroup opens a group owned by the calling seller
func (s *Service) CreateGroup(ctx context.Context, actor shared.Actor, req CreateGroupRequest) (*GroupResponse, error) {
	if err := actor.Require(shared.CapJoinGroup); err != nil {
		return nil, err
	}
	g, err := collaboration.NewGroup(actor.ID, req.Category, req.TargetQuantity, req.RequiredDeliveryDate, req.ProductID)
	if err != nil {
		return nil, err
	}
	err = s.scope.Execute(ctx, func(repos txn.Repositories) error {
		if err := repos.Groups().Create(ctx, g); err != nil {
			return err
		}
		if err := txn.AppendAudit(ctx, repos, audit.StreamGroup, g.ID, actor.ID, ActionCreated, "",
			map[string]any{"target_quantity": g.TargetQuantity, "category": g.Category}); err != nil {
			return err
		}
		return txn.StageFrom(ctx, repos, g)
	})
	if err != nil {
		return nil, err
	}
	logger.L(ctx).Info("Collaboration group created",
		zap.String("group_id", g.ID.String()),
		zap.Int64("target_quantity", g.TargetQuantity))
	resp := ToGroupResponse(g)
	return &resp, nil
}

// checkEligible applies the subscription and verification gates
func (s *Service) checkEligible(ctx context.Context, actor shared.Actor) error {
	if err := actor.Require(shared.CapJoinGroup); err != nil {
		return err
	}
	eligible, err := s.eligibility.CollaborationEligible(ctx, actor.ID)
	if err != nil {
		return fmt.Errorf("eligibility lookup: %w", err)
	}
	if !eligible {
		return collaboration.ErrNotEligible
	}
	verified, err := s.eligibility.IsVerified(ctx, actor.ID)
	if err != nil {
		return fmt.Errorf("verification lookup: %w", err)
	}
	if !verified {
		return collaboration.ErrNotVerified
	}
	return nil
}

// Join adds the calling seller's commitment. The group locks once its
// target quantity is reached.
func (s *Service) Join(ctx context.Context, actor shared.Actor, groupID uuid.UUID, req JoinRequest) (*MembershipResponse, error) {
	if err := s.checkEligible(ctx, actor); err != nil {
		return nil, err
	}
	var resp MembershipResponse
	err := s.scope.Execute(ctx, func(repos txn.Repositories) error {
		g, p, err := repos.Groups().Join(ctx, groupID, actor.ID, req.QuantityCommitment)
		if err != nil {
			return err
		}
		events := []shared.DomainEvent{collaboration.NewMemberEvent(collaboration.EventTypeGroupJoined, g, actor.ID)}
		if g.Status == collaboration.GroupStatusLocked {
			events = append(events, collaboration.NewGroupEvent(collaboration.EventTypeGroupLocked, g))
		}
		if err := txn.AppendAudit(ctx, repos, audit.StreamGroup, g.ID, actor.ID, ActionJoined, "", map[string]any{
			"quantity_commitment": req.QuantityCommitment,
			"current_quantity":    g.CurrentQuantity,
			"status":              string(g.Status),
		}); err != nil {
			return err
		}
		if err := repos.Stage(ctx, events...); err != nil {
			return err
		}
		resp = MembershipResponse{Group: ToGroupResponse(g), Participant: ToParticipantResponse(p)}
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.L(ctx).Info("Seller joined group",
		zap.String("group_id", groupID.String()),
		zap.Int64("quantity_commitment", req.QuantityCommitment),
		zap.String("group_status", resp.Group.Status))
	return &resp, nil
}

// Invite lets the creator invite a seller; the invitee still has to join
func (s *Service) Invite(ctx context.Context, actor shared.Actor, groupID uuid.UUID, req InviteRequest) (*ParticipantResponse, error) {
	var resp ParticipantResponse
	err := s.scope.Execute(ctx, func(repos txn.Repositories) error {
		g, err := repos.Groups().FindByID(ctx, groupID)
		if err != nil {
			return err
		}
		if g.CreatorID != actor.ID {
			return collaboration.ErrNotCreator
		}
		if !g.Status.AcceptsMembershipChanges() {
			return shared.NewStateConflictError(collaboration.ErrGroupClosed.Code,
				fmt.Sprintf("Group is %s", g.Status))
		}
		p := collaboration.NewInvitedParticipant(groupID, req.SellerID)
		if err := repos.Groups().Invite(ctx, p); err != nil {
			return err
		}
		resp = ToParticipantResponse(p)
		return txn.AppendAudit(ctx, repos, audit.StreamGroup, g.ID, actor.ID, ActionInvited, "",
			map[string]any{"seller_id": req.SellerID.String()})
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// Leave withdraws the calling seller's commitment while the group is open
func (s *Service) Leave(ctx context.Context, actor shared.Actor, groupID uuid.UUID) (*MembershipResponse, error) {
	var resp MembershipResponse
	err := s.scope.Execute(ctx, func(repos txn.Repositories) error {
		g, p, err := repos.Groups().Leave(ctx, groupID, actor.ID)
		if err != nil {
			return err
		}
		if err := txn.AppendAudit(ctx, repos, audit.StreamGroup, g.ID, actor.ID, ActionLeft, "",
			map[string]any{"released_quantity": p.QuantityCommitment}); err != nil {
			return err
		}
		if err := repos.Stage(ctx, collaboration.NewMemberEvent(collaboration.EventTypeGroupLeft, g, actor.ID)); err != nil {
			return err
		}
		resp = MembershipResponse{Group: ToGroupResponse(g), Participant: ToParticipantResponse(p)}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// PayContribution captures the calling seller's contribution and marks it
// PAID. A capture whose contribution can no longer move to PAID is refunded
// unless the contribution already records that same transaction.
func (s *Service) PayContribution(ctx context.Context, actor shared.Actor, groupID uuid.UUID, req PayContributionRequest) (*ContributionResponse, error) {
	var c *collaboration.Contribution
	err := s.scope.Execute(ctx, func(repos txn.Repositories) error {
		var err error
		c, err = repos.Contributions().FindOne(ctx, groupID, actor.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if c.Status != collaboration.ContributionPending {
		return nil, shared.NewStateConflictError("CONTRIBUTION_NOT_PENDING",
			fmt.Sprintf("Contribution is %s", c.Status))
	}

	capture, err := s.gateway.Capture(ctx, escrow.CaptureRequest{
		PayerID:        actor.ID,
		Amount:         c.ContributionAmount,
		Currency:       s.currency,
		Reference:      c.ID.String(),
		Description:    "Group contribution " + groupID.String(),
		IdempotencyKey: "contribution:" + c.ID.String() + ":" + uuid.NewString(),
		PaymentMethod:  req.PaymentMethod,
	})
	if err != nil {
		return nil, escrow.ClassifyGatewayError(err)
	}

	err = s.scope.Execute(ctx, func(repos txn.Repositories) error {
		moved, err := repos.Contributions().Transition(ctx, c.ID, collaboration.ContributionPending, collaboration.ContributionPaid, capture.TransactionID)
		if err != nil {
			return err
		}
		if !moved {
			return shared.NewStateConflictError("CONTRIBUTION_NOT_PENDING", "Contribution changed before the payment was recorded")
		}
		if err := repos.Groups().SetParticipantPayment(ctx, groupID, actor.ID, collaboration.PaymentPaid); err != nil {
			return err
		}
		g, err := repos.Groups().FindByID(ctx, groupID)
		if err != nil {
			return err
		}
		if err := txn.AppendAudit(ctx, repos, audit.StreamGroup, groupID, actor.ID, ActionContributionPaid, "", map[string]any{
			"contribution_id": c.ID.String(),
			"amount":          c.ContributionAmount.StringFixed(2),
			"transaction_id":  capture.TransactionID,
		}); err != nil {
			return err
		}
		return repos.Stage(ctx, collaboration.NewMemberEvent(collaboration.EventTypeContributionPaid, g, actor.ID))
	})
	if err != nil {
		if recorded := s.paidBy(ctx, groupID, actor.ID, capture.TransactionID); recorded != nil {
			resp := ToContributionResponse(recorded)
			return &resp, nil
		}
		if _, refundErr := s.gateway.Refund(ctx, capture.TransactionID, capture.Amount); refundErr != nil {
			logger.L(ctx).Error("Failed to reverse contribution capture",
				zap.String("transaction_id", capture.TransactionID),
				zap.Error(refundErr))
		}
		return nil, err
	}

	c.Status = collaboration.ContributionPaid
	c.Paid = true
	c.TransactionID = capture.TransactionID
	logger.L(ctx).Info("Contribution paid",
		zap.String("group_id", groupID.String()),
		zap.String("transaction_id", capture.TransactionID))
	resp := ToContributionResponse(c)
	return &resp, nil
}

// paidBy returns the seller's contribution when it is PAID by transactionID
func (s *Service) paidBy(ctx context.Context, groupID, sellerID uuid.UUID, transactionID string) *collaboration.Contribution {
	var c *collaboration.Contribution
	err := s.scope.Execute(ctx, func(repos txn.Repositories) error {
		var err error
		c, err = repos.Contributions().FindOne(ctx, groupID, sellerID)
		return err
	})
	if err != nil || c.Status != collaboration.ContributionPaid || c.TransactionID != transactionID {
		return nil
	}
	return c
}

// Cancel abandons the group. Pending contributions are voided and paid ones
// are refunded through the gateway after the cancellation commits.
func (s *Service) Cancel(ctx context.Context, actor shared.Actor, groupID uuid.UUID) (*GroupResponse, error) {
	var (
		resp     GroupResponse
		refunds  []collaboration.Contribution
		previous collaboration.GroupStatus
	)
	err := s.scope.Execute(ctx, func(repos txn.Repositories) error {
		g, err := repos.Groups().FindByID(ctx, groupID)
		if err != nil {
			return err
		}
		previous = g.Status
		if err := g.Cancel(actor); err != nil {
			return err
		}
		if err := repos.Groups().UpdateStatus(ctx, g.ID, previous, collaboration.GroupStatusCancelled); err != nil {
			return err
		}

		contributions, err := repos.Contributions().FindByGroup(ctx, g.ID)
		if err != nil {
			return err
		}
		for _, c := range contributions {
			if c.Status != collaboration.ContributionPaid {
				continue
			}
			moved, err := repos.Contributions().Transition(ctx, c.ID, collaboration.ContributionPaid, collaboration.ContributionRefunded, c.TransactionID)
			if err != nil {
				return err
			}
			if !moved {
				return shared.ErrConcurrencyConflict
			}
			if err := repos.Groups().SetParticipantPayment(ctx, g.ID, c.SellerID, collaboration.PaymentRefunded); err != nil {
				return err
			}
			refunds = append(refunds, c)
		}
		if _, err := repos.Contributions().TransitionGroup(ctx, g.ID, collaboration.ContributionPending, collaboration.ContributionRefunded); err != nil {
			return err
		}

		if err := txn.AppendAudit(ctx, repos, audit.StreamGroup, g.ID, actor.ID, ActionCancelled, "", map[string]any{
			"previous_status": string(previous),
			"refunds":         len(refunds),
		}); err != nil {
			return err
		}
		if err := txn.StageFrom(ctx, repos, g); err != nil {
			return err
		}
		resp = ToGroupResponse(g)
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, c := range refunds {
		s.refundContribution(ctx, actor, c)
	}
	logger.L(ctx).Info("Collaboration group cancelled",
		zap.String("group_id", groupID.String()),
		zap.String("previous_status", string(previous)),
		zap.Int("refunds", len(refunds)))
	return &resp, nil
}

func (s *Service) refundContribution(ctx context.Context, actor shared.Actor, c collaboration.Contribution) {
	confirmation, err := s.gateway.Refund(ctx, c.TransactionID, c.ContributionAmount)
	if err != nil {
		logger.L(ctx).Error("Contribution refund failed, manual reversal required",
			zap.String("contribution_id", c.ID.String()),
			zap.String("transaction_id", c.TransactionID),
			zap.Error(err))
		return
	}
	err = s.scope.Execute(ctx, func(repos txn.Repositories) error {
		return txn.AppendAudit(ctx, repos, audit.StreamGroup, c.GroupID, actor.ID, ActionRefunded, "", map[string]any{
			"seller_id":       c.SellerID.String(),
			"amount":          confirmation.Amount.StringFixed(2),
			"confirmation_id": confirmation.ConfirmationID,
		})
	})
	if err != nil {
		logger.L(ctx).Warn("Failed to record contribution refund", zap.Error(err))
	}
}

// Get returns one group
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*GroupResponse, error) {
	var resp GroupResponse
	err := s.scope.Execute(ctx, func(repos txn.Repositories) error {
		g, err := repos.Groups().FindByID(ctx, id)
		if err != nil {
			return err
		}
		resp = ToGroupResponse(g)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// Participants lists the group's participants in every status
func (s *Service) Participants(ctx context.Context, groupID uuid.UUID) ([]ParticipantResponse, error) {
	var out []ParticipantResponse
	err := s.scope.Execute(ctx, func(repos txn.Repositories) error {
		if _, err := repos.Groups().FindByID(ctx, groupID); err != nil {
			return err
		}
		participants, err := repos.Groups().FindParticipants(ctx, groupID)
		if err != nil {
			return err
		}
		out = make([]ParticipantResponse, len(participants))
		for i := range participants {
			out[i] = ToParticipantResponse(&participants[i])
		}
		return nil
	})
	return out, err
}

// Contributions lists the group's contributions with their reconciled totals
func (s *Service) Contributions(ctx context.Context, groupID uuid.UUID) (*ContributionSummary, error) {
	var summary ContributionSummary
	err := s.scope.Execute(ctx, func(repos txn.Repositories) error {
		contributions, err := repos.Contributions().FindByGroup(ctx, groupID)
		if err != nil {
			return err
		}
		summary.TotalAmount, summary.TotalQuantity, err = repos.Contributions().SumByGroup(ctx, groupID)
		if err != nil {
			return err
		}
		summary.Contributions = make([]ContributionResponse, len(contributions))
		for i := range contributions {
			summary.Contributions[i] = ToContributionResponse(&contributions[i])
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &summary, nil
}
