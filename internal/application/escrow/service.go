package escrow

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/wholesale/backend/internal/application/txn"
	"github.com/wholesale/backend/internal/domain/audit"
	"github.com/wholesale/backend/internal/domain/escrow"
	"github.com/wholesale/backend/internal/domain/listing"
	"github.com/wholesale/backend/internal/domain/shared"
	"github.com/wholesale/backend/internal/infrastructure/logger"
	"github.com/wholesale/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// Settlement stream actions
const (
	ActionHeld              = "HELD"
	ActionDeliveryConfirmed = "DELIVERY_CONFIRMED"
	ActionReleased          = "RELEASED"
	ActionRefunded          = "REFUNDED"
	ActionPartiallyRefunded = "PARTIALLY_REFUNDED"
	ActionFrozen            = "FROZEN"
	ActionUnfrozen          = "UNFROZEN"
	ActionRefundIssued      = "REFUND_ISSUED"
	ActionRefundFailed      = "REFUND_FAILED"
)

var errNotRefunder = shared.NewAuthorizationError("NOT_ALLOWED_TO_REFUND", "Only the seller or an escrow manager may refund")

// Service holds order payments until delivery and settles them. It also
// runs the two-phase escrows of custom orders.
type Service struct {
	scope    txn.TransactionScope
	gateway  escrow.PaymentGateway
	metrics  *telemetry.MarketplaceMetrics
	feeRate  decimal.Decimal
	currency string
}

// NewService creates a new escrow Service. feeRate is the platform's share
// of every order escrow.
func NewService(scope txn.TransactionScope, gateway escrow.PaymentGateway, metrics *telemetry.MarketplaceMetrics, feeRate decimal.Decimal, currency string) *Service {
	return &Service{scope: scope, gateway: gateway, metrics: metrics, feeRate: feeRate, currency: currency}
}

// PendingRefund is a refund committed to the ledger that still has to be
// returned through the gateway
type PendingRefund struct {
	OrderID       uuid.UUID
	TransactionID string
	Amount        decimal.Decimal
}

// Hold places a captured order payment in escrow
func (s *Service) Hold(ctx context.Context, actorID uuid.UUID, o *listing.Order, capture *escrow.Capture) (*escrow.Escrow, error) {
	var e *escrow.Escrow
	err := s.scope.Execute(ctx, func(repos txn.Repositories) error {
		var err error
		e, err = escrow.NewEscrow(escrow.Hold{
			OrderID:       o.ID,
			BuyerID:       o.BuyerID,
			SellerID:      o.SellerID,
			Amount:        capture.Amount,
			FeeRate:       s.feeRate,
			TransactionID: capture.TransactionID,
		})
		if err != nil {
			return err
		}
		if err := repos.Escrows().Create(ctx, e); err != nil {
			return err
		}
		if err := txn.AppendAudit(ctx, repos, audit.StreamSettlement, o.ID, actorID, ActionHeld, "", map[string]any{
			"amount":         e.Amount.StringFixed(2),
			"platform_fee":   e.PlatformFee.StringFixed(2),
			"dealer_amount":  e.DealerAmount.StringFixed(2),
			"transaction_id": e.TransactionID,
		}); err != nil {
			return err
		}
		return txn.StageFrom(ctx, repos, e)
	})
	if err != nil {
		return nil, err
	}
	return e, nil
}

// Get returns the escrow of an order to its parties and escrow managers
func (s *Service) Get(ctx context.Context, actor shared.Actor, orderID uuid.UUID) (*EscrowResponse, error) {
	var resp EscrowResponse
	err := s.scope.Execute(ctx, func(repos txn.Repositories) error {
		e, err := repos.Escrows().FindByOrderID(ctx, orderID)
		if err != nil {
			return err
		}
		if !e.IsParty(actor.ID) && !actor.IsAdmin() {
			return shared.ErrNotFound
		}
		resp = ToEscrowResponse(e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// ConfirmDelivery records the buyer's confirmation that the order arrived,
// which satisfies the release condition
func (s *Service) ConfirmDelivery(ctx context.Context, actor shared.Actor, orderID uuid.UUID) (*EscrowResponse, error) {
	var resp EscrowResponse
	err := s.scope.Execute(ctx, func(repos txn.Repositories) error {
		o, err := repos.Orders().FindByID(ctx, orderID)
		if err != nil {
			return err
		}
		if o.BuyerID != actor.ID {
			return shared.NewAuthorizationError("NOT_BUYER", "Only the buyer may confirm delivery")
		}
		if o, err = repos.Orders().MarkDelivered(ctx, orderID); err != nil {
			return err
		}
		if _, err := repos.Escrows().ConfirmDelivery(ctx, orderID, time.Now()); err != nil {
			return err
		}
		if err := repos.Stage(ctx, listing.NewOrderEvent(listing.EventTypeOrderDelivered, o, 0)); err != nil {
			return err
		}
		if err := txn.AppendAudit(ctx, repos, audit.StreamSettlement, orderID, actor.ID, ActionDeliveryConfirmed, "", nil); err != nil {
			return err
		}
		e, err := repos.Escrows().FindByOrderID(ctx, orderID)
		if err != nil {
			return err
		}
		resp = ToEscrowResponse(e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// Release pays the dealer amount out to the seller. Releasing a released
// escrow changes nothing and writes no second settlement entry.
func (s *Service) Release(ctx context.Context, actor shared.Actor, orderID uuid.UUID) (*EscrowResponse, error) {
	var (
		resp    EscrowResponse
		changed bool
	)
	err := s.scope.Execute(ctx, func(repos txn.Repositories) error {
		e, err := repos.Escrows().FindByOrderID(ctx, orderID)
		if err != nil {
			return err
		}
		if err := e.CheckRelease(actor); err != nil {
			return err
		}
		if e, changed, err = ReleaseWithin(ctx, repos, actor.ID, orderID); err != nil {
			return err
		}
		resp = ToEscrowResponse(e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if changed {
		s.metrics.EscrowSettled(ctx, string(escrow.StatusReleased))
		logger.L(ctx).Info("Escrow released",
			zap.String("order_id", orderID.String()),
			zap.String("dealer_amount", resp.DealerAmount.StringFixed(2)))
	}
	return &resp, nil
}

// Refund returns everything still held to the buyer and the order's
// outstanding units to stock. Refunding a refunded escrow changes nothing.
func (s *Service) Refund(ctx context.Context, actor shared.Actor, orderID uuid.UUID, req RefundRequest) (*EscrowResponse, error) {
	var (
		resp    EscrowResponse
		pending *PendingRefund
	)
	err := s.scope.Execute(ctx, func(repos txn.Repositories) error {
		e, err := repos.Escrows().FindByOrderID(ctx, orderID)
		if err != nil {
			return err
		}
		if e.SellerID != actor.ID && !actor.Can(shared.CapManageEscrow) {
			return errNotRefunder
		}
		if pending, err = RefundWithin(ctx, repos, actor.ID, orderID, req.Reason); err != nil {
			return err
		}
		if e, err = repos.Escrows().FindByOrderID(ctx, orderID); err != nil {
			return err
		}
		resp = ToEscrowResponse(e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if pending != nil {
		s.metrics.EscrowSettled(ctx, string(escrow.StatusRefunded))
		if confirmation := s.PayBack(ctx, actor.ID, *pending); confirmation != "" {
			resp.RefundConfirmation = confirmation
		}
	}
	return &resp, nil
}

// PayBack returns a committed refund through the gateway and records the
// outcome. A failed refund is logged and recorded for manual follow-up; it
// never undoes the committed settlement.
func (s *Service) PayBack(ctx context.Context, actorID uuid.UUID, p PendingRefund) string {
	if !p.Amount.IsPositive() {
		return ""
	}
	confirmation, err := s.gateway.Refund(ctx, p.TransactionID, p.Amount)
	action, payload := ActionRefundIssued, map[string]any{"amount": p.Amount.StringFixed(2)}
	if err != nil {
		logger.L(ctx).Error("Gateway refund failed",
			zap.String("order_id", p.OrderID.String()),
			zap.String("transaction_id", p.TransactionID),
			zap.Error(err))
		action = ActionRefundFailed
		payload["error"] = err.Error()
	} else {
		payload["confirmation_id"] = confirmation.ConfirmationID
	}

	err = s.scope.Execute(ctx, func(repos txn.Repositories) error {
		if confirmation != nil {
			if err := repos.Escrows().RecordRefundConfirmation(ctx, p.OrderID, confirmation.ConfirmationID); err != nil {
				return err
			}
		}
		return txn.AppendAudit(ctx, repos, audit.StreamSettlement, p.OrderID, actorID, action, "", payload)
	})
	if err != nil {
		logger.L(ctx).Warn("Failed to record refund outcome",
			zap.String("order_id", p.OrderID.String()),
			zap.Error(err))
	}
	if confirmation == nil {
		return ""
	}
	return confirmation.ConfirmationID
}

// ReleaseWithin moves a HOLD escrow whose release condition holds to
// RELEASED inside the caller's transaction and appends the settlement entry.
// It reports false when the escrow was already released.
func ReleaseWithin(ctx context.Context, repos txn.Repositories, actorID, orderID uuid.UUID) (*escrow.Escrow, bool, error) {
	e, err := repos.Escrows().FindByOrderID(ctx, orderID)
	if err != nil {
		return nil, false, err
	}
	if e.Status == escrow.StatusReleased {
		return e, false, nil
	}

	now := time.Now()
	changed, err := repos.Escrows().MarkReleased(ctx, orderID, now)
	if err != nil {
		return nil, false, err
	}
	if !changed {
		current, err := repos.Escrows().FindByOrderID(ctx, orderID)
		if err != nil {
			return nil, false, err
		}
		switch current.Status {
		case escrow.StatusReleased:
			return current, false, nil
		case escrow.StatusRefunded:
			return nil, false, escrow.ErrAlreadyRefunded
		case escrow.StatusFrozen:
			return nil, false, escrow.ErrFrozen
		}
		return nil, false, escrow.ErrConditionNotMet
	}

	e.Status = escrow.StatusReleased
	e.ReleasedAt = &now
	if err := txn.AppendAudit(ctx, repos, audit.StreamSettlement, orderID, actorID, ActionReleased, "", map[string]any{
		"seller_id":     e.SellerID.String(),
		"dealer_amount": e.DealerAmount.StringFixed(2),
		"platform_fee":  e.PlatformFee.StringFixed(2),
	}); err != nil {
		return nil, false, err
	}
	if err := repos.Stage(ctx, escrow.NewEscrowEvent(escrow.EventTypeReleased, e)); err != nil {
		return nil, false, err
	}
	return e, true, nil
}

// RefundWithin moves a HOLD or FROZEN escrow to REFUNDED inside the caller's
// transaction. Units the order still has outstanding, delivered or not, go
// back to the listing and the allocation. It returns nil when the escrow was
// already refunded.
func RefundWithin(ctx context.Context, repos txn.Repositories, actorID, orderID uuid.UUID, reason string) (*PendingRefund, error) {
	e, err := repos.Escrows().FindByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if e.Status == escrow.StatusRefunded {
		return nil, nil
	}
	if err := e.CheckRefund(); err != nil {
		return nil, err
	}

	now := time.Now()
	changed, err := repos.Escrows().MarkRefunded(ctx, orderID, now)
	if err != nil {
		return nil, err
	}
	if !changed {
		return nil, shared.ErrConcurrencyConflict
	}

	var restored int64
	o, err := repos.Orders().FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.Status.Refundable() && o.OutstandingQuantity() > 0 {
		restored = o.OutstandingQuantity()
		if _, _, err := txn.RefundUnits(ctx, repos, orderID, restored); err != nil {
			return nil, err
		}
	}

	amount := e.Amount.Sub(e.RefundedAmount)
	e.Status = escrow.StatusRefunded
	e.RefundedAt = &now
	if err := txn.AppendAudit(ctx, repos, audit.StreamSettlement, orderID, actorID, ActionRefunded, reason, map[string]any{
		"amount":            amount.StringFixed(2),
		"restored_quantity": restored,
	}); err != nil {
		return nil, err
	}
	if err := repos.Stage(ctx, escrow.NewEscrowEvent(escrow.EventTypeRefunded, e)); err != nil {
		return nil, err
	}
	return &PendingRefund{OrderID: orderID, TransactionID: e.TransactionID, Amount: amount}, nil
}

// PartialRefundWithin moves amount from the dealer's share back to the buyer
// inside the caller's transaction. Stock is not touched.
func PartialRefundWithin(ctx context.Context, repos txn.Repositories, actorID, orderID uuid.UUID, amount decimal.Decimal, reason string) (*PendingRefund, error) {
	if _, err := repos.Escrows().ApplyPartialRefund(ctx, orderID, amount); err != nil {
		return nil, err
	}
	e, err := repos.Escrows().FindByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := txn.AppendAudit(ctx, repos, audit.StreamSettlement, orderID, actorID, ActionPartiallyRefunded, reason, map[string]any{
		"amount":        amount.StringFixed(2),
		"dealer_amount": e.DealerAmount.StringFixed(2),
	}); err != nil {
		return nil, err
	}
	if err := repos.Stage(ctx, escrow.NewEscrowEvent(escrow.EventTypePartiallyRefunded, e)); err != nil {
		return nil, err
	}
	return &PendingRefund{OrderID: orderID, TransactionID: e.TransactionID, Amount: amount}, nil
}

// FreezeWithin stops a HOLD escrow from settling while a dispute is open
func FreezeWithin(ctx context.Context, repos txn.Repositories, actorID, orderID uuid.UUID) error {
	changed, err := repos.Escrows().Freeze(ctx, orderID)
	if err != nil {
		return err
	}
	e, err := repos.Escrows().FindByOrderID(ctx, orderID)
	if err != nil {
		return err
	}
	if !changed {
		if e.Status == escrow.StatusFrozen {
			return escrow.ErrFrozen
		}
		return shared.NewStateConflictError("ESCROW_SETTLED", "Escrow is already "+string(e.Status))
	}
	if err := txn.AppendAudit(ctx, repos, audit.StreamSettlement, orderID, actorID, ActionFrozen, "", nil); err != nil {
		return err
	}
	return repos.Stage(ctx, escrow.NewEscrowEvent(escrow.EventTypeFrozen, e))
}

// UnfreezeWithin returns a FROZEN escrow to HOLD. approveForce lets the
// escrow release without a delivery confirmation.
func UnfreezeWithin(ctx context.Context, repos txn.Repositories, actorID, orderID uuid.UUID, approveForce bool) error {
	changed, err := repos.Escrows().Unfreeze(ctx, orderID, approveForce)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	return txn.AppendAudit(ctx, repos, audit.StreamSettlement, orderID, actorID, ActionUnfrozen, "",
		map[string]any{"force_release_approved": approveForce})
}
