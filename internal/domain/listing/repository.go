package listing

import (
	"context"

	"github.com/google/uuid"
	"github.com/wholesale/backend/internal/domain/shared"
)

// ListingRepository persists listings. Counter changes are conditional
// updates so a listing never sells more than its allocated stock.
type ListingRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Listing, error)
	FindByAllocationAndSeller(ctx context.Context, allocationID, sellerID uuid.UUID) (*Listing, error)
	FindBySeller(ctx context.Context, sellerID uuid.UUID, filter shared.Filter) ([]Listing, int64, error)
	Create(ctx context.Context, l *Listing) error
	SaveWithLock(ctx context.Context, l *Listing) error

	// Consume moves quantity from remaining to sold on a live listing
	Consume(ctx context.Context, id uuid.UUID, quantity int64) error

	// Restore moves up to quantity back from sold to remaining
	Restore(ctx context.Context, id uuid.UUID, quantity int64) error
}

// OrderRepository persists retail orders
type OrderRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Order, error)
	FindByBuyer(ctx context.Context, buyerID uuid.UUID, filter shared.Filter) ([]Order, int64, error)
	Create(ctx context.Context, o *Order) error

	// Cancel adds quantity to the cancelled units if at least that many are
	// still outstanding on an open order, and returns the updated order
	Cancel(ctx context.Context, id uuid.UUID, quantity int64) (*Order, error)

	// Reverse is Cancel for a refunded order, which may already be DELIVERED
	Reverse(ctx context.Context, id uuid.UUID, quantity int64) (*Order, error)

	// MarkDelivered moves an open order to DELIVERED
	MarkDelivered(ctx context.Context, id uuid.UUID) (*Order, error)
}
