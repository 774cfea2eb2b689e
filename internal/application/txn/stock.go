package txn

import (
	"context"

	"github.com/google/uuid"
	"github.com/wholesale/backend/internal/domain/allocation"
	"github.com/wholesale/backend/internal/domain/listing"
)

// ReturnUnits cancels quantity outstanding units of an order and returns
// exactly that quantity to its listing and its allocation. A revoked
// allocation gets its counters back but stays REVOKED.
func ReturnUnits(ctx context.Context, repos Repositories, orderID uuid.UUID, quantity int64) (*listing.Order, *allocation.Allocation, error) {
	o, err := repos.Orders().Cancel(ctx, orderID, quantity)
	if err != nil {
		return nil, nil, err
	}
	return restock(ctx, repos, o, quantity)
}

// RefundUnits is ReturnUnits for an order whose payment is refunded. The
// order may already be DELIVERED.
func RefundUnits(ctx context.Context, repos Repositories, orderID uuid.UUID, quantity int64) (*listing.Order, *allocation.Allocation, error) {
	o, err := repos.Orders().Reverse(ctx, orderID, quantity)
	if err != nil {
		return nil, nil, err
	}
	return restock(ctx, repos, o, quantity)
}

func restock(ctx context.Context, repos Repositories, o *listing.Order, quantity int64) (*listing.Order, *allocation.Allocation, error) {
	if err := repos.Listings().Restore(ctx, o.ListingID, quantity); err != nil {
		return nil, nil, err
	}
	a, err := repos.Allocations().Restore(ctx, o.AllocationID, quantity)
	if err != nil {
		return nil, nil, err
	}
	if err := repos.Stage(ctx, listing.NewOrderEvent(listing.EventTypeOrderCancelled, o, quantity)); err != nil {
		return nil, nil, err
	}
	return o, a, nil
}
