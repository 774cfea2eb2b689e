package listing

import (
	"context"

	"github.com/google/uuid"
	escrowapp "github.com/wholesale/backend/internal/application/escrow"
	"github.com/wholesale/backend/internal/application/txn"
	"github.com/wholesale/backend/internal/domain/allocation"
	"github.com/wholesale/backend/internal/domain/escrow"
	"github.com/wholesale/backend/internal/domain/listing"
	"github.com/wholesale/backend/internal/domain/shared"
	"github.com/wholesale/backend/internal/domain/shared/valueobject"
	"github.com/wholesale/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// Service manages retail listings and the orders placed against them.
// Stock only moves through orders; there is no way to set it directly.
type Service struct {
	scope       txn.TransactionScope
	gateway     escrow.PaymentGateway
	settlements *escrowapp.Service
	currency    string
}

// NewService creates a new listing Service. Captured order payments are
// handed to settlements to hold in escrow.
func NewService(scope txn.TransactionScope, gateway escrow.PaymentGateway, settlements *escrowapp.Service, currency string) *Service {
	return &Service{scope: scope, gateway: gateway, settlements: settlements, currency: currency}
}

// List puts an allocation on sale, or re-activates its existing listing
// against the allocation's current remaining stock
func (s *Service) List(ctx context.Context, actor shared.Actor, req CreateListingRequest) (*ListingResponse, error) {
	var resp ListingResponse
	err := s.scope.Execute(ctx, func(repos txn.Repositories) error {
		a, err := repos.Allocations().FindByID(ctx, req.AllocationID)
		if err != nil {
			if shared.IsKind(err, shared.KindNotFound) {
				return listing.ErrNoAllocation
			}
			return err
		}

		l, err := repos.Listings().FindByAllocationAndSeller(ctx, a.ID, actor.ID)
		switch {
		case err == nil:
			if err := l.Relist(a, actor, req.RetailPrice); err != nil {
				return err
			}
			if err := repos.Listings().SaveWithLock(ctx, l); err != nil {
				return err
			}
		case shared.IsKind(err, shared.KindNotFound):
			l, err = listing.NewListing(a, actor, req.RetailPrice)
			if err != nil {
				return err
			}
			if err := repos.Listings().Create(ctx, l); err != nil {
				return err
			}
		default:
			return err
		}

		if err := l.CheckInvariant(); err != nil {
			return err
		}
		if err := txn.StageFrom(ctx, repos, l); err != nil {
			return err
		}
		resp = ToListingResponse(l)
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.L(ctx).Info("Allocation listed",
		zap.String("listing_id", resp.ID.String()),
		zap.String("allocation_id", req.AllocationID.String()),
		zap.String("retail_price", resp.RetailPrice.StringFixed(2)))
	return &resp, nil
}

// UpdatePrice changes the retail price, still bounded by the allocation's
// minimum retail price
func (s *Service) UpdatePrice(ctx context.Context, actor shared.Actor, id uuid.UUID, req UpdatePriceRequest) (*ListingResponse, error) {
	return s.mutate(ctx, actor, id, func(repos txn.Repositories, l *listing.Listing) error {
		a, err := repos.Allocations().FindByID(ctx, l.AllocationID)
		if err != nil {
			return err
		}
		if err := listing.CheckPrice(a, req.RetailPrice); err != nil {
			return err
		}
		l.RetailPrice = valueobject.RoundMoney(req.RetailPrice)
		l.Touch()
		return nil
	})
}

// Delist takes a listing offline; placed orders are unaffected
func (s *Service) Delist(ctx context.Context, actor shared.Actor, id uuid.UUID) (*ListingResponse, error) {
	return s.mutate(ctx, actor, id, func(_ txn.Repositories, l *listing.Listing) error {
		return l.Delist(actor)
	})
}

func (s *Service) mutate(ctx context.Context, actor shared.Actor, id uuid.UUID, fn func(repos txn.Repositories, l *listing.Listing) error) (*ListingResponse, error) {
	var resp ListingResponse
	err := s.scope.Execute(ctx, func(repos txn.Repositories) error {
		l, err := repos.Listings().FindByID(ctx, id)
		if err != nil {
			return err
		}
		if l.SellerID != actor.ID {
			return listing.ErrNotOwner
		}
		if err := fn(repos, l); err != nil {
			return err
		}
		if err := repos.Listings().SaveWithLock(ctx, l); err != nil {
			return err
		}
		resp = ToListingResponse(l)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// Get returns one listing
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*ListingResponse, error) {
	var resp ListingResponse
	err := s.scope.Execute(ctx, func(repos txn.Repositories) error {
		l, err := repos.Listings().FindByID(ctx, id)
		if err != nil {
			return err
		}
		resp = ToListingResponse(l)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListMine returns the calling seller's listings
func (s *Service) ListMine(ctx context.Context, actor shared.Actor, filter ListFilter) (shared.Paginated[ListingResponse], error) {
	domainFilter := toDomainFilter(ListFilter{Page: filter.Page, PageSize: filter.PageSize})
	switch filter.Status {
	case "ACTIVE":
		domainFilter.Filters["active"] = true
	case "INACTIVE":
		domainFilter.Filters["active"] = false
	}
	var (
		items []ListingResponse
		total int64
	)
	err := s.scope.Execute(ctx, func(repos txn.Repositories) error {
		rows, n, err := repos.Listings().FindBySeller(ctx, actor.ID, domainFilter)
		if err != nil {
			return err
		}
		total = n
		items = make([]ListingResponse, len(rows))
		for i := range rows {
			items[i] = ToListingResponse(&rows[i])
		}
		return nil
	})
	if err != nil {
		return shared.Paginated[ListingResponse]{}, err
	}
	return shared.NewPaginated(items, total, domainFilter.Page, domainFilter.Limit()), nil
}

func toDomainFilter(filter ListFilter) shared.Filter {
	f := shared.DefaultFilter()
	if filter.Page > 0 {
		f.Page = filter.Page
	}
	if filter.PageSize > 0 {
		f.PageSize = filter.PageSize
	}
	if filter.Status != "" {
		f.Filters["status"] = filter.Status
	}
	return f
}

// depletedEvents returns the depletion event when a consume emptied the
// allocation
func depletedEvents(a *allocation.Allocation) []shared.DomainEvent {
	if a.Status != allocation.StatusDepleted {
		return nil
	}
	return []shared.DomainEvent{allocation.NewDepletedEvent(a)}
}
