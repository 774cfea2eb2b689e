package escrow

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

// Custom escrow stream actions
const (
	ActionCustomCreated  = "CUSTOM_CREATED"
	ActionAdvancePaid    = "ADVANCE_PAID"
	ActionBalancePaid    = "BALANCE_PAID"
	ActionCustomReleased = "CUSTOM_RELEASED"
	ActionCustomRefunded = "CUSTOM_REFUNDED"
	ActionReversed       = "PAYMENT_REVERSED"
	ActionReversalFailed = "PAYMENT_REVERSAL_FAILED"
)

var errNotCustomManager = shared.NewAuthorizationError("NOT_CUSTOM_ESCROW_MANAGER",
	"Only the manufacturer or an escrow manager may manage this custom escrow")

// CreateCustom opens the escrow of a custom order. Group escrows split the
// cost along the members' contribution amounts; a single buyer pays it all.
func (s *Service) CreateCustom(ctx context.Context, actor shared.Actor, req CreateCustomEscrowRequest) (*CustomEscrowResponse, error) {
	if actor.ID != req.ManufacturerID && !actor.Can(shared.CapManageEscrow) {
		return nil, errNotCustomManager
	}
	if (req.GroupID == nil) == (req.BuyerID == nil) {
		return nil, shared.NewValidationError("PAYERS_REQUIRED", "Exactly one of group_id and buyer_id is required")
	}

	var resp CustomEscrowResponse
	err := s.scope.Execute(ctx, func(repos txn.Repositories) error {
		weights, err := s.weights(ctx, repos, req)
		if err != nil {
			return err
		}
		e, err := escrow.NewCustomOrderEscrow(escrow.CustomTerms{
			CustomRequestID:   req.CustomRequestID,
			ManufacturerID:    req.ManufacturerID,
			GroupID:           req.GroupID,
			TotalAmount:       req.TotalAmount,
			AdvancePercentage: req.AdvancePercentage,
			Weights:           weights,
		})
		if err != nil {
			return err
		}
		if err := repos.CustomEscrows().Create(ctx, e); err != nil {
			return err
		}
		if err := txn.AppendAudit(ctx, repos, audit.StreamSettlement, e.ID, actor.ID, ActionCustomCreated, "", map[string]any{
			"custom_request_id": e.CustomRequestID.String(),
			"total_amount":      e.TotalAmount.StringFixed(2),
			"advance_amount":    e.AdvanceAmount.StringFixed(2),
			"payers":            len(e.Participants),
		}); err != nil {
			return err
		}
		if err := txn.StageFrom(ctx, repos, e); err != nil {
			return err
		}
		resp = ToCustomEscrowResponse(e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (s *Service) weights(ctx context.Context, repos txn.Repositories, req CreateCustomEscrowRequest) ([]escrow.Weight, error) {
	if req.BuyerID != nil {
		return []escrow.Weight{{SellerID: *req.BuyerID, Amount: req.TotalAmount}}, nil
	}
	contributions, err := repos.Contributions().FindByGroup(ctx, *req.GroupID)
	if err != nil {
		return nil, err
	}
	var weights []escrow.Weight
	for _, c := range contributions {
		if c.Status == collaboration.ContributionRefunded {
			continue
		}
		weights = append(weights, escrow.Weight{SellerID: c.SellerID, Amount: c.ContributionAmount})
	}
	if len(weights) == 0 {
		return nil, shared.NewStateConflictError("NO_CONTRIBUTIONS", "Group has no contributions to split the order across")
	}
	return weights, nil
}

// GetCustom returns a custom escrow to its payers, its manufacturer and admins
func (s *Service) GetCustom(ctx context.Context, actor shared.Actor, id uuid.UUID) (*CustomEscrowResponse, error) {
	var resp CustomEscrowResponse
	err := s.scope.Execute(ctx, func(repos txn.Repositories) error {
		e, err := repos.CustomEscrows().FindByID(ctx, id)
		if err != nil {
			return err
		}
		if !e.IsPayer(actor.ID) && e.ManufacturerID != actor.ID && !actor.IsAdmin() {
			return shared.ErrNotFound
		}
		resp = ToCustomEscrowResponse(e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// PayAdvance captures the caller's advance share
func (s *Service) PayAdvance(ctx context.Context, actor shared.Actor, id uuid.UUID, req PayShareRequest) (*CustomEscrowResponse, error) {
	return s.payShare(ctx, actor, id, escrow.PhaseAdvance, req)
}

// PayBalance captures the caller's balance share
func (s *Service) PayBalance(ctx context.Context, actor shared.Actor, id uuid.UUID, req PayShareRequest) (*CustomEscrowResponse, error) {
	return s.payShare(ctx, actor, id, escrow.PhaseBalance, req)
}

// payShare captures the share outside any transaction, then records it under
// the escrow's row lock. A capture the escrow refuses to record is refunded
// unless the escrow already holds that same transaction. Each call captures
// under its own idempotency key so a retry never gets back a reversed capture.
func (s *Service) payShare(ctx context.Context, actor shared.Actor, id uuid.UUID, phase escrow.Phase, req PayShareRequest) (*CustomEscrowResponse, error) {
	var current *escrow.CustomOrderEscrow
	err := s.scope.Execute(ctx, func(repos txn.Repositories) error {
		var err error
		current, err = repos.CustomEscrows().FindByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	amount, err := current.CheckPayment(actor.ID, phase)
	if err != nil {
		return nil, err
	}

	capture, err := s.gateway.Capture(ctx, escrow.CaptureRequest{
		PayerID:        actor.ID,
		Amount:         amount,
		Currency:       s.currency,
		Reference:      id.String(),
		Description:    fmt.Sprintf("Custom order %s %s share", current.CustomRequestID, phase),
		IdempotencyKey: fmt.Sprintf("custom:%s:%s:%s:%s", id, actor.ID, phase, uuid.NewString()),
		PaymentMethod:  req.PaymentMethod,
	})
	if err != nil {
		return nil, escrow.ClassifyGatewayError(err)
	}

	action := ActionAdvancePaid
	if phase == escrow.PhaseBalance {
		action = ActionBalancePaid
	}
	var resp CustomEscrowResponse
	err = s.scope.Execute(ctx, func(repos txn.Repositories) error {
		e, err := repos.CustomEscrows().Update(ctx, id, func(e *escrow.CustomOrderEscrow) error {
			return e.RecordPayment(actor.ID, phase, capture.TransactionID)
		})
		if err != nil {
			return err
		}
		if err := txn.AppendAudit(ctx, repos, audit.StreamSettlement, id, actor.ID, action, "", map[string]any{
			"amount":         capture.Amount.StringFixed(2),
			"transaction_id": capture.TransactionID,
			"status":         string(e.Status),
		}); err != nil {
			return err
		}
		if err := txn.StageFrom(ctx, repos, e); err != nil {
			return err
		}
		resp = ToCustomEscrowResponse(e)
		return nil
	})
	if err != nil {
		if recorded := s.recordedShare(ctx, id, actor.ID, phase, capture.TransactionID); recorded != nil {
			return recorded, nil
		}
		if _, refundErr := s.gateway.Refund(ctx, capture.TransactionID, capture.Amount); refundErr != nil {
			logger.L(ctx).Error("Failed to refund unrecorded share payment, manual reversal required",
				zap.String("escrow_id", id.String()),
				zap.String("transaction_id", capture.TransactionID),
				zap.Error(refundErr))
		}
		return nil, err
	}
	return &resp, nil
}

// recordedShare returns the escrow when sellerID's phase is already paid by
// transactionID, or nil when that capture is not on record.
func (s *Service) recordedShare(ctx context.Context, id, sellerID uuid.UUID, phase escrow.Phase, transactionID string) *CustomEscrowResponse {
	var e *escrow.CustomOrderEscrow
	err := s.scope.Execute(ctx, func(repos txn.Repositories) error {
		var err error
		e, err = repos.CustomEscrows().FindByID(ctx, id)
		return err
	})
	if err != nil {
		return nil
	}
	p, err := e.Participant(sellerID)
	if err != nil || !p.IsPaid(phase) {
		return nil
	}
	recorded := p.AdvanceTransactionID
	if phase == escrow.PhaseBalance {
		recorded = p.BalanceTransactionID
	}
	if recorded != transactionID {
		return nil
	}
	resp := ToCustomEscrowResponse(e)
	return &resp
}

// ReleaseCustom pays a fully paid custom escrow out to the manufacturer.
// Releasing twice changes nothing.
func (s *Service) ReleaseCustom(ctx context.Context, actor shared.Actor, id uuid.UUID) (*CustomEscrowResponse, error) {
	var (
		resp    CustomEscrowResponse
		changed bool
	)
	err := s.scope.Execute(ctx, func(repos txn.Repositories) error {
		e, err := repos.CustomEscrows().Update(ctx, id, func(e *escrow.CustomOrderEscrow) error {
			if !e.IsPayer(actor.ID) && !actor.Can(shared.CapForceEscrowRelease) {
				return escrow.ErrNotEscrowParty
			}
			var err error
			changed, err = e.Release()
			return err
		})
		if err != nil {
			return err
		}
		if changed {
			if err := txn.AppendAudit(ctx, repos, audit.StreamSettlement, id, actor.ID, ActionCustomReleased, "", map[string]any{
				"manufacturer_id": e.ManufacturerID.String(),
				"amount":          e.TotalAmount.StringFixed(2),
			}); err != nil {
				return err
			}
			if err := txn.StageFrom(ctx, repos, e); err != nil {
				return err
			}
		}
		resp = ToCustomEscrowResponse(e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if changed {
		s.metrics.EscrowSettled(ctx, string(escrow.CustomReleased))
	}
	return &resp, nil
}

// RefundCustom closes a custom escrow and reverses every captured share.
// Refunding twice changes nothing.
func (s *Service) RefundCustom(ctx context.Context, actor shared.Actor, id uuid.UUID, req RefundRequest) (*CustomEscrowResponse, error) {
	var (
		resp      CustomEscrowResponse
		reversals []escrow.Reversal
	)
	err := s.scope.Execute(ctx, func(repos txn.Repositories) error {
		var changed bool
		e, err := repos.CustomEscrows().Update(ctx, id, func(e *escrow.CustomOrderEscrow) error {
			if e.ManufacturerID != actor.ID && !actor.Can(shared.CapManageEscrow) {
				return errNotCustomManager
			}
			var err error
			reversals, changed, err = e.Refund()
			return err
		})
		if err != nil {
			return err
		}
		if changed {
			if err := txn.AppendAudit(ctx, repos, audit.StreamSettlement, id, actor.ID, ActionCustomRefunded, req.Reason, map[string]any{
				"reversals": len(reversals),
			}); err != nil {
				return err
			}
			if err := txn.StageFrom(ctx, repos, e); err != nil {
				return err
			}
		}
		resp = ToCustomEscrowResponse(e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(reversals) > 0 {
		s.metrics.EscrowSettled(ctx, string(escrow.CustomRefunded))
		s.reverse(ctx, actor.ID, id, reversals)
	}
	return &resp, nil
}

// reverse returns each captured share through the gateway and stores the
// confirmations. Failures are recorded for manual follow-up.
func (s *Service) reverse(ctx context.Context, actorID, id uuid.UUID, reversals []escrow.Reversal) {
	confirmations := make(map[int]string, len(reversals))
	for i, r := range reversals {
		confirmation, err := s.gateway.Refund(ctx, r.TransactionID, r.Amount)
		if err != nil {
			logger.L(ctx).Error("Failed to reverse custom escrow payment",
				zap.String("escrow_id", id.String()),
				zap.String("seller_id", r.SellerID.String()),
				zap.String("transaction_id", r.TransactionID),
				zap.Error(err))
			continue
		}
		confirmations[i] = confirmation.ConfirmationID
	}

	err := s.scope.Execute(ctx, func(repos txn.Repositories) error {
		if _, err := repos.CustomEscrows().Update(ctx, id, func(e *escrow.CustomOrderEscrow) error {
			for i, confirmationID := range confirmations {
				e.RecordReversal(reversals[i], confirmationID)
			}
			return nil
		}); err != nil {
			return err
		}
		for i, r := range reversals {
			action, payload := ActionReversed, map[string]any{
				"seller_id":      r.SellerID.String(),
				"phase":          string(r.Phase),
				"amount":         r.Amount.StringFixed(2),
				"transaction_id": r.TransactionID,
			}
			if confirmationID, ok := confirmations[i]; ok {
				payload["confirmation_id"] = confirmationID
			} else {
				action = ActionReversalFailed
			}
			if err := txn.AppendAudit(ctx, repos, audit.StreamSettlement, id, actorID, action, "", payload); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		logger.L(ctx).Warn("Failed to record custom escrow reversals",
			zap.String("escrow_id", id.String()),
			zap.Error(err))
	}
}
