package payment

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/wholesale/backend/internal/domain/escrow"
	"github.com/wholesale/backend/internal/domain/shared/valueobject"
	"go.uber.org/zap"
)

type sandboxCapture struct {
	amount   decimal.Decimal
	refunded decimal.Decimal
}

// SandboxGateway is an in-process gateway for development and tests. Every
// capture succeeds unless its payer was marked with Decline.
type SandboxGateway struct {
	mu         sync.Mutex
	captures   map[string]*sandboxCapture
	idempotent map[string]string
	declined   map[uuid.UUID]struct{}
	offline    bool
	logger     *zap.Logger
}

// NewSandboxGateway creates an empty SandboxGateway
func NewSandboxGateway(logger *zap.Logger) *SandboxGateway {
	return &SandboxGateway{
		captures:   make(map[string]*sandboxCapture),
		idempotent: make(map[string]string),
		declined:   make(map[uuid.UUID]struct{}),
		logger:     logger,
	}
}

// Decline makes every later capture from payerID fail
func (g *SandboxGateway) Decline(payerID uuid.UUID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.declined[payerID] = struct{}{}
}

// SetOffline makes every call fail with escrow.ErrGatewayUnavailable
func (g *SandboxGateway) SetOffline(offline bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.offline = offline
}

// Capture records a successful capture. Repeating an idempotency key returns
// the original transaction.
func (g *SandboxGateway) Capture(_ context.Context, req escrow.CaptureRequest) (*escrow.Capture, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.offline {
		return nil, escrow.ErrGatewayUnavailable
	}
	amount := valueobject.RoundMoney(req.Amount)
	if !valueobject.IsPositive(amount) {
		return nil, fmt.Errorf("sandbox: capture amount must be positive, got %s", req.Amount)
	}
	if _, ok := g.declined[req.PayerID]; ok {
		return nil, escrow.ErrCaptureDeclined
	}
	if id, ok := g.idempotent[req.IdempotencyKey]; ok && req.IdempotencyKey != "" {
		return &escrow.Capture{TransactionID: id, Amount: g.captures[id].amount, CapturedAt: time.Now()}, nil
	}

	id := "sbx_" + uuid.NewString()
	g.captures[id] = &sandboxCapture{amount: amount, refunded: decimal.Zero}
	if req.IdempotencyKey != "" {
		g.idempotent[req.IdempotencyKey] = id
	}
	g.logger.Debug("Sandbox capture",
		zap.String("transaction_id", id),
		zap.String("reference", req.Reference),
		zap.String("amount", amount.StringFixed(2)))
	return &escrow.Capture{TransactionID: id, Amount: amount, CapturedAt: time.Now()}, nil
}

// Refund returns up to the captured amount not yet refunded
func (g *SandboxGateway) Refund(_ context.Context, transactionID string, amount decimal.Decimal) (*escrow.RefundConfirmation, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.offline {
		return nil, escrow.ErrGatewayUnavailable
	}
	c, ok := g.captures[transactionID]
	if !ok {
		return nil, escrow.ErrUnknownTransaction
	}
	amount = valueobject.RoundMoney(amount)
	if !valueobject.IsPositive(amount) || amount.GreaterThan(c.amount.Sub(c.refunded)) {
		return nil, fmt.Errorf("sandbox: cannot refund %s of %s (%s already refunded)", amount, c.amount, c.refunded)
	}
	c.refunded = c.refunded.Add(amount)
	return &escrow.RefundConfirmation{
		ConfirmationID: "sbx_re_" + uuid.NewString(),
		TransactionID:  transactionID,
		Amount:         amount,
		RefundedAt:     time.Now(),
	}, nil
}

// Refunded reports the total refunded against transactionID
func (g *SandboxGateway) Refunded(transactionID string) decimal.Decimal {
	g.mu.Lock()
	defer g.mu.Unlock()
	if c, ok := g.captures[transactionID]; ok {
		return c.refunded
	}
	return decimal.Zero
}

var _ escrow.PaymentGateway = (*SandboxGateway)(nil)
