package listing

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	escrowapp "github.com/wholesale/backend/internal/application/escrow"
	"github.com/wholesale/backend/internal/application/txn"
	"github.com/wholesale/backend/internal/domain/audit"
	"github.com/wholesale/backend/internal/domain/escrow"
	"github.com/wholesale/backend/internal/domain/listing"
	"github.com/wholesale/backend/internal/domain/shared"
	"github.com/wholesale/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// Settlement stream actions written by order handling
const (
	ActionOrderCancelled  = "ORDER_CANCELLED"
	ActionCheckoutVoided  = "CHECKOUT_VOIDED"
	checkoutCapturePrefix = "order:"
)

// Checkout places an order, captures its total and holds the funds in
// escrow. Stock is reserved before the capture; a failed capture returns it.
func (s *Service) Checkout(ctx context.Context, actor shared.Actor, req CheckoutRequest) (*CheckoutResponse, error) {
	o, err := s.placeOrder(ctx, actor, req)
	if err != nil {
		return nil, err
	}

	capture, err := s.gateway.Capture(ctx, escrow.CaptureRequest{
		PayerID:        actor.ID,
		Amount:         o.TotalAmount,
		Currency:       s.currency,
		Reference:      o.ID.String(),
		Description:    "Order " + o.ID.String(),
		IdempotencyKey: checkoutCapturePrefix + o.ID.String(),
		PaymentMethod:  req.PaymentMethod,
	})
	if err != nil {
		logger.L(ctx).Warn("Checkout capture failed, returning stock",
			zap.String("order_id", o.ID.String()),
			zap.Error(err))
		s.voidOrder(ctx, actor, o, "")
		return nil, escrow.ClassifyGatewayError(err)
	}

	e, err := s.settlements.Hold(ctx, actor.ID, o, capture)
	if err != nil {
		logger.L(ctx).Error("Failed to hold captured funds, reversing checkout",
			zap.String("order_id", o.ID.String()),
			zap.String("transaction_id", capture.TransactionID),
			zap.Error(err))
		s.voidOrder(ctx, actor, o, capture.TransactionID)
		return nil, err
	}

	logger.L(ctx).Info("Order placed",
		zap.String("order_id", o.ID.String()),
		zap.Int64("quantity", o.Quantity),
		zap.String("total", o.TotalAmount.StringFixed(2)))
	resp := toCheckoutResponse(o, e)
	return &resp, nil
}

// placeOrder draws the quantity from the listing and its allocation and
// records the order, all or nothing
func (s *Service) placeOrder(ctx context.Context, actor shared.Actor, req CheckoutRequest) (*listing.Order, error) {
	var o *listing.Order
	err := s.scope.Execute(ctx, func(repos txn.Repositories) error {
		l, err := repos.Listings().FindByID(ctx, req.ListingID)
		if err != nil {
			return err
		}
		o, err = listing.NewOrder(l, actor, req.Quantity, req.TaxAmount)
		if err != nil {
			return err
		}
		if err := repos.Listings().Consume(ctx, l.ID, req.Quantity); err != nil {
			return err
		}
		a, err := repos.Allocations().Consume(ctx, l.AllocationID, req.Quantity)
		if err != nil {
			return err
		}
		if err := repos.Orders().Create(ctx, o); err != nil {
			return err
		}
		if events := depletedEvents(a); len(events) > 0 {
			if err := repos.Stage(ctx, events...); err != nil {
				return err
			}
		}
		return txn.StageFrom(ctx, repos, o)
	})
	if err != nil {
		return nil, err
	}
	return o, nil
}

// voidOrder cancels every unit of an order whose payment never settled into
// escrow, refunding transactionID when funds were captured
func (s *Service) voidOrder(ctx context.Context, actor shared.Actor, o *listing.Order, transactionID string) {
	if transactionID != "" {
		if _, err := s.gateway.Refund(ctx, transactionID, o.TotalAmount); err != nil {
			logger.L(ctx).Error("Failed to refund voided checkout, manual reversal required",
				zap.String("order_id", o.ID.String()),
				zap.String("transaction_id", transactionID),
				zap.Error(err))
		}
	}
	err := s.scope.Execute(ctx, func(repos txn.Repositories) error {
		if _, _, err := txn.ReturnUnits(ctx, repos, o.ID, o.Quantity); err != nil {
			return err
		}
		return txn.AppendAudit(ctx, repos, audit.StreamSettlement, o.ID, actor.ID, ActionCheckoutVoided, "",
			map[string]any{"quantity": o.Quantity, "transaction_id": transactionID})
	})
	if err != nil {
		logger.L(ctx).Error("Failed to return stock of voided checkout",
			zap.String("order_id", o.ID.String()),
			zap.Error(err))
	}
}

// CancelOrder cancels quantity outstanding units, returns them to the
// listing and the allocation and refunds their price from escrow. Cancelling
// the last units refunds everything still held.
func (s *Service) CancelOrder(ctx context.Context, actor shared.Actor, orderID uuid.UUID, req CancelOrderRequest) (*CancelOrderResponse, error) {
	var (
		o       *listing.Order
		pending *escrowapp.PendingRefund
	)
	err := s.scope.Execute(ctx, func(repos txn.Repositories) error {
		current, err := repos.Orders().FindByID(ctx, orderID)
		if err != nil {
			return err
		}
		if err := current.CheckCancel(actor, req.Quantity); err != nil {
			return err
		}
		if o, _, err = txn.ReturnUnits(ctx, repos, orderID, req.Quantity); err != nil {
			return err
		}

		if o.Status == listing.OrderCancelled {
			pending, err = escrowapp.RefundWithin(ctx, repos, actor.ID, orderID, "order cancelled")
		} else {
			pending, err = escrowapp.PartialRefundWithin(ctx, repos, actor.ID, orderID,
				current.RefundAmountFor(req.Quantity), "units cancelled")
		}
		if err != nil {
			return err
		}
		return txn.AppendAudit(ctx, repos, audit.StreamSettlement, orderID, actor.ID, ActionOrderCancelled, "", map[string]any{
			"quantity":     req.Quantity,
			"order_status": string(o.Status),
		})
	})
	if err != nil {
		return nil, err
	}

	resp := CancelOrderResponse{Order: ToOrderResponse(o), RefundAmount: decimal.Zero}
	if pending != nil {
		resp.RefundAmount = pending.Amount
		resp.Confirmation = s.settlements.PayBack(ctx, actor.ID, *pending)
	}
	logger.L(ctx).Info("Order cancelled",
		zap.String("order_id", orderID.String()),
		zap.Int64("quantity", req.Quantity),
		zap.String("refund", resp.RefundAmount.StringFixed(2)))
	return &resp, nil
}

// GetOrder returns an order visible to its buyer, its seller or an admin
func (s *Service) GetOrder(ctx context.Context, actor shared.Actor, id uuid.UUID) (*OrderResponse, error) {
	var resp OrderResponse
	err := s.scope.Execute(ctx, func(repos txn.Repositories) error {
		o, err := repos.Orders().FindByID(ctx, id)
		if err != nil {
			return err
		}
		if o.BuyerID != actor.ID && o.SellerID != actor.ID && !actor.IsAdmin() {
			return shared.ErrNotFound
		}
		resp = ToOrderResponse(o)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListOrders returns the caller's purchases
func (s *Service) ListOrders(ctx context.Context, actor shared.Actor, filter ListFilter) (shared.Paginated[OrderResponse], error) {
	domainFilter := toDomainFilter(filter)
	var (
		items []OrderResponse
		total int64
	)
	err := s.scope.Execute(ctx, func(repos txn.Repositories) error {
		rows, n, err := repos.Orders().FindByBuyer(ctx, actor.ID, domainFilter)
		if err != nil {
			return err
		}
		total = n
		items = make([]OrderResponse, len(rows))
		for i := range rows {
			items[i] = ToOrderResponse(&rows[i])
		}
		return nil
	})
	if err != nil {
		return shared.Paginated[OrderResponse]{}, err
	}
	return shared.NewPaginated(items, total, domainFilter.Page, domainFilter.Limit()), nil
}
