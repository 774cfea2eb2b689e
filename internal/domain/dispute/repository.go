package dispute

import (
	"context"

	"github.com/google/uuid"
	"github.com/wholesale/backend/internal/domain/shared"
)

// DisputeRepository persists disputes. Disputes are never deleted.
type DisputeRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Dispute, error)
	FindByOrderID(ctx context.Context, orderID uuid.UUID) (*Dispute, error)
	FindByStatus(ctx context.Context, status Status, filter shared.Filter) ([]Dispute, int64, error)

	// Create inserts the dispute; a second dispute for an order is a duplicate
	Create(ctx context.Context, d *Dispute) error
	SaveWithLock(ctx context.Context, d *Dispute) error
}
