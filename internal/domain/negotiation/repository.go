package negotiation

import (
	"context"

	"github.com/google/uuid"
	"github.com/wholesale/backend/internal/domain/shared"
)

// NegotiationRepository defines the interface for negotiation persistence
type NegotiationRepository interface {
	// FindByID finds a negotiation by ID
	FindByID(ctx context.Context, id uuid.UUID) (*Negotiation, error)

	// FindByParty lists negotiations where the actor is seller or manufacturer
	FindByParty(ctx context.Context, partyID uuid.UUID, filter shared.Filter) ([]Negotiation, int64, error)

	// Create inserts a new negotiation
	Create(ctx context.Context, n *Negotiation) error

	// SaveWithLock updates the negotiation if its stored version equals the
	// in-memory version, then bumps the version. A stale version yields
	// shared.ErrConcurrencyConflict.
	SaveWithLock(ctx context.Context, n *Negotiation) error
}
