package allocation

import (
	"context"

	"github.com/google/uuid"
	"github.com/wholesale/backend/internal/domain/shared"
)

// Ledger is the persistence boundary for allocations. Every counter mutation
// is a single conditional update in the store and every mutation re-checks
// the invariant before its transaction commits.
type Ledger interface {
	// FindByID finds an allocation by ID
	FindByID(ctx context.Context, id uuid.UUID) (*Allocation, error)

	// FindBySeller lists a seller's allocations
	FindBySeller(ctx context.Context, sellerID uuid.UUID, filter shared.Filter) ([]Allocation, int64, error)

	// FindByNegotiation lists the allocations cut from a negotiation
	FindByNegotiation(ctx context.Context, negotiationID uuid.UUID) ([]Allocation, error)

	// Create inserts an allocation. A second allocation for the same
	// (negotiation, seller) pair fails with ErrDuplicate.
	Create(ctx context.Context, a *Allocation) error

	// Consume adds quantity to sold and removes it from remaining if and only
	// if the allocation is ACTIVE with enough remaining, moving it to
	// DEPLETED when remaining reaches zero. It returns the updated allocation.
	Consume(ctx context.Context, id uuid.UUID, quantity int64) (*Allocation, error)

	// Restore returns up to quantity units, clamped at zero sold. It returns
	// the updated allocation.
	Restore(ctx context.Context, id uuid.UUID, quantity int64) (*Allocation, error)

	// Revoke persists a revocation of an ACTIVE allocation
	Revoke(ctx context.Context, a *Allocation) error
}
