package escrow

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EscrowRepository persists order escrows. Each settlement method is a
// conditional update and reports whether it changed the row, which makes
// repeated calls harmless.
type EscrowRepository interface {
	FindByOrderID(ctx context.Context, orderID uuid.UUID) (*Escrow, error)

	// Create inserts the escrow; a second escrow for an order is a duplicate
	Create(ctx context.Context, e *Escrow) error

	ConfirmDelivery(ctx context.Context, orderID uuid.UUID, at time.Time) (bool, error)
	Freeze(ctx context.Context, orderID uuid.UUID) (bool, error)

	// Unfreeze returns a FROZEN escrow to HOLD, optionally approving a
	// forced release
	Unfreeze(ctx context.Context, orderID uuid.UUID, approveForce bool) (bool, error)

	// MarkReleased moves HOLD to RELEASED when the release condition holds
	MarkReleased(ctx context.Context, orderID uuid.UUID, at time.Time) (bool, error)

	// MarkRefunded moves HOLD or FROZEN to REFUNDED
	MarkRefunded(ctx context.Context, orderID uuid.UUID, at time.Time) (bool, error)

	// ApplyPartialRefund moves amount from the dealer share to refunded
	ApplyPartialRefund(ctx context.Context, orderID uuid.UUID, amount decimal.Decimal) (bool, error)

	RecordRefundConfirmation(ctx context.Context, orderID uuid.UUID, confirmationID string) error
}

// CustomEscrowRepository persists custom order escrows with their payers
type CustomEscrowRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*CustomOrderEscrow, error)
	FindByCustomRequest(ctx context.Context, customRequestID uuid.UUID) (*CustomOrderEscrow, error)

	// Create inserts the escrow and its payers; customRequestID is unique
	Create(ctx context.Context, e *CustomOrderEscrow) error

	// Update loads the escrow under a row lock, applies fn and writes the
	// header and payers back in the same transaction
	Update(ctx context.Context, id uuid.UUID, fn func(e *CustomOrderEscrow) error) (*CustomOrderEscrow, error)
}
