package allocation

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/wholesale/backend/internal/application/txn"
	"github.com/wholesale/backend/internal/domain/allocation"
	"github.com/wholesale/backend/internal/domain/audit"
	"github.com/wholesale/backend/internal/domain/negotiation"
	"github.com/wholesale/backend/internal/domain/shared"
	"github.com/wholesale/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// Audit actions on the allocation stream
const (
	ActionGranted = "GRANTED"
	ActionRevoked = "REVOKED"
)

// Service exposes the allocation ledger. Negotiated allocations are cut by
// negotiation fulfillment; consumption happens through orders.
type Service struct {
	scope   txn.TransactionScope
	catalog negotiation.ProductCatalog
}

// NewService creates a new allocation Service
func NewService(scope txn.TransactionScope, catalog negotiation.ProductCatalog) *Service {
	return &Service{scope: scope, catalog: catalog}
}

// GrantDirect lets a manufacturer grant stock of its own product to a
// seller without negotiating
func (s *Service) GrantDirect(ctx context.Context, actor shared.Actor, req GrantDirectRequest) (*AllocationResponse, error) {
	if err := actor.Require(shared.CapManufacture); err != nil {
		return nil, err
	}
	p, err := s.catalog.Product(ctx, req.ProductID)
	if err != nil {
		if shared.IsKind(err, shared.KindNotFound) {
			return nil, shared.NewValidationError("UNKNOWN_PRODUCT", "Product does not exist")
		}
		return nil, fmt.Errorf("catalog lookup: %w", err)
	}
	if p.ManufacturerID != actor.ID {
		return nil, shared.NewAuthorizationError("NOT_PRODUCT_OWNER", "Only the product's manufacturer may grant it")
	}

	a, err := allocation.NewAllocation(allocation.Grant{
		Type:            allocation.TypeDirect,
		SellerID:        req.SellerID,
		ManufacturerID:  actor.ID,
		ProductID:       req.ProductID,
		Quantity:        req.Quantity,
		NegotiatedPrice: req.Price,
	})
	if err != nil {
		return nil, err
	}

	err = s.scope.Execute(ctx, func(repos txn.Repositories) error {
		if err := repos.Allocations().Create(ctx, a); err != nil {
			return err
		}
		if err := txn.AppendAudit(ctx, repos, audit.StreamAllocation, a.ID, actor.ID, ActionGranted, "", map[string]any{
			"seller_id": a.SellerID.String(),
			"quantity":  a.AllocatedQuantity,
			"price":     a.NegotiatedPrice.StringFixed(2),
		}); err != nil {
			return err
		}
		return txn.StageFrom(ctx, repos, a)
	})
	if err != nil {
		return nil, err
	}

	logger.L(ctx).Info("Direct allocation granted",
		zap.String("allocation_id", a.ID.String()),
		zap.String("seller_id", a.SellerID.String()),
		zap.Int64("quantity", a.AllocatedQuantity))
	resp := ToAllocationResponse(a)
	return &resp, nil
}

// Revoke blocks further consumption. Orders already placed stay as they are.
func (s *Service) Revoke(ctx context.Context, actor shared.Actor, id uuid.UUID, req RevokeRequest) (*AllocationResponse, error) {
	var resp AllocationResponse
	err := s.scope.Execute(ctx, func(repos txn.Repositories) error {
		a, err := repos.Allocations().FindByID(ctx, id)
		if err != nil {
			return err
		}
		if err := a.Revoke(actor, req.Reason); err != nil {
			return err
		}
		if err := repos.Allocations().Revoke(ctx, a); err != nil {
			return err
		}
		if err := txn.AppendAudit(ctx, repos, audit.StreamAllocation, a.ID, actor.ID, ActionRevoked, req.Reason, map[string]any{
			"sold_quantity":      a.SoldQuantity,
			"remaining_quantity": a.RemainingQuantity,
		}); err != nil {
			return err
		}
		if err := txn.StageFrom(ctx, repos, a); err != nil {
			return err
		}
		resp = ToAllocationResponse(a)
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.L(ctx).Warn("Allocation revoked",
		zap.String("allocation_id", id.String()),
		zap.String("reason", req.Reason))
	return &resp, nil
}

// Get returns an allocation visible to its seller, its manufacturer or an admin
func (s *Service) Get(ctx context.Context, actor shared.Actor, id uuid.UUID) (*AllocationResponse, error) {
	var resp AllocationResponse
	err := s.scope.Execute(ctx, func(repos txn.Repositories) error {
		a, err := repos.Allocations().FindByID(ctx, id)
		if err != nil {
			return err
		}
		if a.SellerID != actor.ID && a.ManufacturerID != actor.ID && !actor.IsAdmin() {
			return shared.ErrNotFound
		}
		resp = ToAllocationResponse(a)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// List returns the calling seller's allocations
func (s *Service) List(ctx context.Context, actor shared.Actor, filter ListFilter) (shared.Paginated[AllocationResponse], error) {
	domainFilter := shared.DefaultFilter()
	if filter.Page > 0 {
		domainFilter.Page = filter.Page
	}
	if filter.PageSize > 0 {
		domainFilter.PageSize = filter.PageSize
	}
	if filter.Status != "" {
		domainFilter.Filters["status"] = filter.Status
	}

	var (
		items []AllocationResponse
		total int64
	)
	err := s.scope.Execute(ctx, func(repos txn.Repositories) error {
		rows, n, err := repos.Allocations().FindBySeller(ctx, actor.ID, domainFilter)
		if err != nil {
			return err
		}
		total = n
		items = make([]AllocationResponse, len(rows))
		for i := range rows {
			items[i] = ToAllocationResponse(&rows[i])
		}
		return nil
	})
	if err != nil {
		return shared.Paginated[AllocationResponse]{}, err
	}
	return shared.NewPaginated(items, total, domainFilter.Page, domainFilter.Limit()), nil
}

// History returns the allocation's audit trail, oldest first
func (s *Service) History(ctx context.Context, actor shared.Actor, id uuid.UUID) ([]audit.Entry, error) {
	if _, err := s.Get(ctx, actor, id); err != nil {
		return nil, err
	}
	filter := shared.DefaultFilter()
	filter.PageSize = 100
	var entries []audit.Entry
	err := s.scope.Execute(ctx, func(repos txn.Repositories) error {
		var err error
		entries, _, err = repos.Audit().List(ctx, audit.StreamAllocation, id, filter)
		return err
	})
	return entries, err
}
