package escrow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/wholesale/backend/internal/domain/shared"
)

// Gateway errors
var (
	ErrCaptureDeclined    = errors.New("payment: capture declined")
	ErrGatewayUnavailable = errors.New("payment: gateway temporarily unavailable")
	ErrUnknownTransaction = errors.New("payment: unknown transaction")
)

// CaptureRequest asks the gateway to capture funds from a payer
type CaptureRequest struct {
	PayerID        uuid.UUID
	Amount         decimal.Decimal
	Currency       string
	Reference      string
	Description    string
	IdempotencyKey string
	// PaymentMethod is the gateway token supplied by the payer's client.
	// Empty means the provider's configured default.
	PaymentMethod string
}

// Capture is the gateway's confirmation of captured funds
type Capture struct {
	TransactionID string
	Amount        decimal.Decimal
	CapturedAt    time.Time
}

// RefundConfirmation is the gateway's confirmation of returned funds
type RefundConfirmation struct {
	ConfirmationID string
	TransactionID  string
	Amount         decimal.Decimal
	RefundedAt     time.Time
}

// PaymentGateway is the external capability that captures and refunds funds
type PaymentGateway interface {
	Capture(ctx context.Context, req CaptureRequest) (*Capture, error)
	Refund(ctx context.Context, transactionID string, amount decimal.Decimal) (*RefundConfirmation, error)
}

// ClassifyGatewayError maps a failed capture onto a domain error the payer
// can act on. Other failures are wrapped unchanged.
func ClassifyGatewayError(err error) error {
	switch {
	case errors.Is(err, ErrCaptureDeclined):
		return shared.NewValidationError("PAYMENT_DECLINED", "The payment was declined")
	case errors.Is(err, ErrGatewayUnavailable):
		return shared.NewStateConflictError("PAYMENT_UNAVAILABLE", "The payment provider is unavailable, retry later")
	}
	return fmt.Errorf("payment capture: %w", err)
}
