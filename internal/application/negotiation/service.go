package negotiation

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/wholesale/backend/internal/application/txn"
	"github.com/wholesale/backend/internal/domain/allocation"
	"github.com/wholesale/backend/internal/domain/audit"
	"github.com/wholesale/backend/internal/domain/collaboration"
	"github.com/wholesale/backend/internal/domain/negotiation"
	"github.com/wholesale/backend/internal/domain/shared"
	"github.com/wholesale/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// Message actions recorded in the negotiation message stream
const (
	ActionProposed       = "PROPOSED"
	ActionCounterOffered = "COUNTER_OFFERED"
	ActionAccepted       = "ACCEPTED"
	ActionRejected       = "REJECTED"
	ActionOrderRequested = "ORDER_REQUESTED"
	ActionFulfilled      = "FULFILLED"
)

// Service drives negotiations from proposal to fulfillment. Fulfillment cuts
// the allocations, including the group fan-out, in the same transaction as
// the status change.
type Service struct {
	scope   txn.TransactionScope
	catalog negotiation.ProductCatalog
}

// NewService creates a new negotiation Service
func NewService(scope txn.TransactionScope, catalog negotiation.ProductCatalog) *Service {
	return &Service{scope: scope, catalog: catalog}
}

// Propose opens a negotiation from the calling seller to a manufacturer
func (s *Service) Propose(ctx context.Context, actor shared.Actor, req ProposeRequest) (*NegotiationResponse, error) {
	if err := actor.Require(shared.CapNegotiate); err != nil {
		return nil, err
	}
	if actor.Role != shared.RoleSeller {
		return nil, shared.NewAuthorizationError("SELLER_ONLY", "Only sellers may propose a negotiation")
	}
	if err := s.checkProduct(ctx, req.ProductID, req.ManufacturerID); err != nil {
		return nil, err
	}

	n, err := negotiation.NewNegotiation(actor.ID, req.ManufacturerID, req.ProductID, req.Quantity, req.Price, req.GroupID)
	if err != nil {
		return nil, err
	}

	err = s.scope.Execute(ctx, func(repos txn.Repositories) error {
		if n.IsGroup() {
			g, err := repos.Groups().FindByID(ctx, *n.GroupID)
			if err != nil {
				return err
			}
			if g.CreatorID != actor.ID {
				return collaboration.ErrNotCreator
			}
			if g.Status.IsTerminal() {
				return shared.NewStateConflictError(collaboration.ErrGroupClosed.Code,
					fmt.Sprintf("Group is %s", g.Status))
			}
			if g.ProductID != nil && *g.ProductID != n.ProductID {
				return shared.NewValidationError("GROUP_PRODUCT_MISMATCH", "The group was formed for a different product")
			}
		}
		if err := repos.Negotiations().Create(ctx, n); err != nil {
			return err
		}
		if err := txn.AppendAudit(ctx, repos, audit.StreamNegotiationMessages, n.ID, actor.ID, ActionProposed, req.Message, offerPayload(n)); err != nil {
			return err
		}
		return txn.StageFrom(ctx, repos, n)
	})
	if err != nil {
		return nil, err
	}

	logger.L(ctx).Info("Negotiation proposed",
		zap.String("negotiation_id", n.ID.String()),
		zap.String("manufacturer_id", n.ManufacturerID.String()),
		zap.Int64("quantity", n.Quantity))
	resp := ToNegotiationResponse(n)
	return &resp, nil
}

func (s *Service) checkProduct(ctx context.Context, productID, manufacturerID uuid.UUID) error {
	p, err := s.catalog.Product(ctx, productID)
	if err != nil {
		if shared.IsKind(err, shared.KindNotFound) {
			return shared.NewValidationError("UNKNOWN_PRODUCT", "Product does not exist")
		}
		return fmt.Errorf("catalog lookup: %w", err)
	}
	if !p.Active {
		return shared.NewValidationError("PRODUCT_INACTIVE", "Product is not available")
	}
	if p.ManufacturerID != manufacturerID {
		return shared.NewValidationError("PRODUCT_MANUFACTURER_MISMATCH", "Product does not belong to the manufacturer")
	}
	return nil
}

// CounterOffer replaces the current offer and records the message
func (s *Service) CounterOffer(ctx context.Context, actor shared.Actor, id uuid.UUID, req CounterOfferRequest) (*NegotiationResponse, error) {
	return s.mutate(ctx, id, func(repos txn.Repositories, n *negotiation.Negotiation) error {
		if err := n.CounterOffer(actor, req.Price, req.Quantity); err != nil {
			return err
		}
		return txn.AppendAudit(ctx, repos, audit.StreamNegotiationMessages, n.ID, actor.ID, ActionCounterOffered, req.Message, offerPayload(n))
	})
}

// Accept locks the current offer
func (s *Service) Accept(ctx context.Context, actor shared.Actor, id uuid.UUID) (*NegotiationResponse, error) {
	return s.mutate(ctx, id, func(repos txn.Repositories, n *negotiation.Negotiation) error {
		if err := n.Accept(actor); err != nil {
			return err
		}
		return txn.AppendAudit(ctx, repos, audit.StreamNegotiationMessages, n.ID, actor.ID, ActionAccepted, "", offerPayload(n))
	})
}

// Reject closes the negotiation permanently
func (s *Service) Reject(ctx context.Context, actor shared.Actor, id uuid.UUID) (*NegotiationResponse, error) {
	return s.mutate(ctx, id, func(repos txn.Repositories, n *negotiation.Negotiation) error {
		if err := n.Reject(actor); err != nil {
			return err
		}
		return txn.AppendAudit(ctx, repos, audit.StreamNegotiationMessages, n.ID, actor.ID, ActionRejected, "", nil)
	})
}

// RequestOrder asks the manufacturer to produce an accepted deal. For a group
// negotiation the group must be LOCKED; one PENDING contribution is opened
// per joined participant and the quantity becomes the committed total.
func (s *Service) RequestOrder(ctx context.Context, actor shared.Actor, id uuid.UUID) (*NegotiationResponse, error) {
	return s.mutate(ctx, id, func(repos txn.Repositories, n *negotiation.Negotiation) error {
		if n.IsGroup() {
			if err := n.Authorize(actor); err != nil {
				return err
			}
			if err := s.openContributions(ctx, repos, n); err != nil {
				return err
			}
		}
		if err := n.RequestOrder(actor); err != nil {
			return err
		}
		return txn.AppendAudit(ctx, repos, audit.StreamNegotiationMessages, n.ID, actor.ID, ActionOrderRequested, "", offerPayload(n))
	})
}

func (s *Service) openContributions(ctx context.Context, repos txn.Repositories, n *negotiation.Negotiation) error {
	if n.Status != negotiation.StatusAccepted {
		return shared.NewStateConflictError("INVALID_TRANSITION",
			fmt.Sprintf("Cannot request an order for a negotiation in %s status", n.Status))
	}
	g, err := repos.Groups().FindByID(ctx, *n.GroupID)
	if err != nil {
		return err
	}
	if err := g.RequireLocked(); err != nil {
		return err
	}
	participants, err := repos.Groups().FindParticipants(ctx, g.ID)
	if err != nil {
		return err
	}
	contributions, err := collaboration.BuildContributions(g.ID, n.ID, participants, n.CurrentOffer)
	if err != nil {
		return err
	}
	if err := collaboration.Reconcile(contributions, n.CurrentOffer); err != nil {
		return err
	}
	if err := repos.Contributions().CreateBatch(ctx, contributions); err != nil {
		return err
	}
	return n.SetCommittedQuantity(collaboration.TotalQuantity(contributions))
}

// Fulfill closes the negotiation and cuts its allocations atomically
func (s *Service) Fulfill(ctx context.Context, actor shared.Actor, id uuid.UUID) (*FulfillmentResponse, error) {
	var allocationIDs []uuid.UUID
	resp, err := s.mutate(ctx, id, func(repos txn.Repositories, n *negotiation.Negotiation) error {
		if err := n.Fulfill(actor); err != nil {
			return err
		}
		var (
			cut []*allocation.Allocation
			err error
		)
		if n.IsGroup() {
			cut, err = s.fanOut(ctx, repos, n)
		} else {
			var a *allocation.Allocation
			a, err = cutAllocation(ctx, repos, n, allocation.TypeIndividual, n.SellerID, n.Quantity)
			cut = []*allocation.Allocation{a}
		}
		if err != nil {
			return err
		}
		for _, a := range cut {
			allocationIDs = append(allocationIDs, a.ID)
		}
		return txn.AppendAudit(ctx, repos, audit.StreamNegotiationMessages, n.ID, actor.ID, ActionFulfilled, "",
			map[string]any{"allocations": len(cut), "quantity": n.Quantity})
	})
	if err != nil {
		return nil, err
	}
	logger.L(ctx).Info("Negotiation fulfilled",
		zap.String("negotiation_id", id.String()),
		zap.Int("allocations", len(allocationIDs)))
	return &FulfillmentResponse{Negotiation: *resp, AllocationIDs: allocationIDs}, nil
}

// fanOut cuts one GROUP allocation per paid contribution, marks every
// contribution ALLOCATED and completes the group
func (s *Service) fanOut(ctx context.Context, repos txn.Repositories, n *negotiation.Negotiation) ([]*allocation.Allocation, error) {
	g, err := repos.Groups().FindByID(ctx, *n.GroupID)
	if err != nil {
		return nil, err
	}
	if err := g.RequireLocked(); err != nil {
		return nil, err
	}
	contributions, err := repos.Contributions().FindByGroup(ctx, g.ID)
	if err != nil {
		return nil, err
	}
	if len(contributions) == 0 {
		return nil, shared.NewStateConflictError("NO_CONTRIBUTIONS", "Group has no contributions to allocate")
	}
	for _, c := range contributions {
		if c.Status != collaboration.ContributionPaid {
			return nil, shared.NewStateConflictError("CONTRIBUTIONS_UNPAID",
				fmt.Sprintf("Contribution of seller %s is %s", c.SellerID, c.Status))
		}
	}
	if err := collaboration.Reconcile(contributions, n.CurrentOffer); err != nil {
		return nil, err
	}

	cut := make([]*allocation.Allocation, 0, len(contributions))
	for _, c := range contributions {
		a, err := cutAllocation(ctx, repos, n, allocation.TypeGroup, c.SellerID, c.RequestedQuantity)
		if err != nil {
			return nil, err
		}
		cut = append(cut, a)
	}

	moved, err := repos.Contributions().TransitionGroup(ctx, g.ID, collaboration.ContributionPaid, collaboration.ContributionAllocated)
	if err != nil {
		return nil, err
	}
	if moved != int64(len(contributions)) {
		return nil, shared.ErrConcurrencyConflict
	}
	if err := g.Complete(); err != nil {
		return nil, err
	}
	if err := repos.Groups().UpdateStatus(ctx, g.ID, collaboration.GroupStatusLocked, collaboration.GroupStatusCompleted); err != nil {
		return nil, err
	}
	if err := txn.AppendAudit(ctx, repos, audit.StreamGroup, g.ID, n.ManufacturerID, "COMPLETED", "",
		map[string]any{"negotiation_id": n.ID.String(), "allocations": len(cut)}); err != nil {
		return nil, err
	}
	return cut, txn.StageFrom(ctx, repos, g)
}

func cutAllocation(ctx context.Context, repos txn.Repositories, n *negotiation.Negotiation, typ allocation.Type, sellerID uuid.UUID, quantity int64) (*allocation.Allocation, error) {
	negotiationID := n.ID
	a, err := allocation.NewAllocation(allocation.Grant{
		NegotiationID:   &negotiationID,
		Type:            typ,
		GroupID:         n.GroupID,
		SellerID:        sellerID,
		ManufacturerID:  n.ManufacturerID,
		ProductID:       n.ProductID,
		Quantity:        quantity,
		NegotiatedPrice: n.CurrentOffer,
	})
	if err != nil {
		return nil, err
	}
	if err := repos.Allocations().Create(ctx, a); err != nil {
		return nil, err
	}
	if err := txn.AppendAudit(ctx, repos, audit.StreamAllocation, a.ID, n.ManufacturerID, "CREATED", "",
		map[string]any{"negotiation_id": n.ID.String(), "quantity": quantity, "min_retail_price": a.MinRetailPrice.StringFixed(2)}); err != nil {
		return nil, err
	}
	return a, txn.StageFrom(ctx, repos, a)
}

// Get returns one negotiation visible to the actor
func (s *Service) Get(ctx context.Context, actor shared.Actor, id uuid.UUID) (*NegotiationResponse, error) {
	var resp NegotiationResponse
	err := s.scope.Execute(ctx, func(repos txn.Repositories) error {
		n, err := repos.Negotiations().FindByID(ctx, id)
		if err != nil {
			return err
		}
		if !n.IsParty(actor.ID) && !actor.IsAdmin() {
			return shared.ErrNotFound
		}
		resp = ToNegotiationResponse(n)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// List returns the actor's negotiations
func (s *Service) List(ctx context.Context, actor shared.Actor, filter ListFilter) (shared.Paginated[NegotiationResponse], error) {
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
		items []NegotiationResponse
		total int64
	)
	err := s.scope.Execute(ctx, func(repos txn.Repositories) error {
		rows, n, err := repos.Negotiations().FindByParty(ctx, actor.ID, domainFilter)
		if err != nil {
			return err
		}
		total = n
		items = make([]NegotiationResponse, len(rows))
		for i := range rows {
			items[i] = ToNegotiationResponse(&rows[i])
		}
		return nil
	})
	if err != nil {
		return shared.Paginated[NegotiationResponse]{}, err
	}
	return shared.NewPaginated(items, total, domainFilter.Page, domainFilter.Limit()), nil
}

// Messages returns the negotiation's message history, oldest first
func (s *Service) Messages(ctx context.Context, actor shared.Actor, id uuid.UUID, page, pageSize int) (shared.Paginated[MessageResponse], error) {
	filter := shared.DefaultFilter()
	if page > 0 {
		filter.Page = page
	}
	if pageSize > 0 {
		filter.PageSize = pageSize
	}
	var (
		items []MessageResponse
		total int64
	)
	err := s.scope.Execute(ctx, func(repos txn.Repositories) error {
		n, err := repos.Negotiations().FindByID(ctx, id)
		if err != nil {
			return err
		}
		if !n.IsParty(actor.ID) && !actor.IsAdmin() {
			return shared.ErrNotFound
		}
		entries, count, err := repos.Audit().List(ctx, audit.StreamNegotiationMessages, id, filter)
		if err != nil {
			return err
		}
		total = count
		items = make([]MessageResponse, len(entries))
		for i, e := range entries {
			items[i] = MessageResponse{ID: e.ID, ActorID: e.ActorID, Action: e.Action, Body: e.Body, Payload: e.Payload, CreatedAt: e.CreatedAt}
		}
		return nil
	})
	if err != nil {
		return shared.Paginated[MessageResponse]{}, err
	}
	return shared.NewPaginated(items, total, filter.Page, filter.Limit()), nil
}

// mutate loads a negotiation, applies fn and saves it under its version
func (s *Service) mutate(ctx context.Context, id uuid.UUID, fn func(repos txn.Repositories, n *negotiation.Negotiation) error) (*NegotiationResponse, error) {
	var resp NegotiationResponse
	err := s.scope.Execute(ctx, func(repos txn.Repositories) error {
		n, err := repos.Negotiations().FindByID(ctx, id)
		if err != nil {
			return err
		}
		if err := fn(repos, n); err != nil {
			return err
		}
		if err := repos.Negotiations().SaveWithLock(ctx, n); err != nil {
			return err
		}
		if err := txn.StageFrom(ctx, repos, n); err != nil {
			return err
		}
		resp = ToNegotiationResponse(n)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func offerPayload(n *negotiation.Negotiation) map[string]any {
	return map[string]any{
		"price":    n.CurrentOffer.StringFixed(2),
		"quantity": n.Quantity,
		"status":   n.Status.String(),
	}
}
