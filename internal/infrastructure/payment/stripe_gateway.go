package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/client"
	"github.com/wholesale/backend/internal/domain/escrow"
	"github.com/wholesale/backend/internal/domain/shared/valueobject"
	"go.uber.org/zap"
)

// StripeConfig holds configuration for the Stripe gateway
type StripeConfig struct {
	// SecretKey is the Stripe secret API key (sk_test_xxx or sk_live_xxx)
	SecretKey string

	// Currency is the ISO currency code charged, lower case ("usd")
	Currency string

	// DefaultPaymentMethod is used when a capture carries none
	DefaultPaymentMethod string

	// Timeout bounds each HTTP call to Stripe
	Timeout time.Duration
}

// Validate validates the Stripe configuration
func (c *StripeConfig) Validate() error {
	if c.SecretKey == "" {
		return fmt.Errorf("stripe: secret key is required")
	}
	if !strings.HasPrefix(c.SecretKey, "sk_") && !strings.HasPrefix(c.SecretKey, "rk_") {
		return fmt.Errorf("stripe: secret key must start with sk_ or rk_")
	}
	if c.Currency == "" {
		return fmt.Errorf("stripe: currency is required")
	}
	return nil
}

// StripeGateway captures funds with PaymentIntents and returns them with Refunds
type StripeGateway struct {
	config *StripeConfig
	api    *client.API
	logger *zap.Logger
}

// NewStripeGateway creates a Stripe-backed escrow.PaymentGateway. backend may
// be nil, in which case the default HTTP backend is used.
func NewStripeGateway(config *StripeConfig, backend stripe.Backend, logger *zap.Logger) (*StripeGateway, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if backend == nil {
		timeout := config.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		backend = stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
			HTTPClient:        &http.Client{Timeout: timeout},
			MaxNetworkRetries: stripe.Int64(2),
		})
	}
	api := &client.API{}
	api.Init(config.SecretKey, &stripe.Backends{API: backend})
	return &StripeGateway{config: config, api: api, logger: logger}, nil
}

// Capture creates and confirms a PaymentIntent for the requested amount
func (g *StripeGateway) Capture(ctx context.Context, req escrow.CaptureRequest) (*escrow.Capture, error) {
	amount := valueobject.RoundMoney(req.Amount)
	if !valueobject.IsPositive(amount) {
		return nil, fmt.Errorf("stripe: capture amount must be positive, got %s", req.Amount)
	}
	currency := req.Currency
	if currency == "" {
		currency = g.config.Currency
	}
	method := req.PaymentMethod
	if method == "" {
		method = g.config.DefaultPaymentMethod
	}

	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(toMinorUnits(amount)),
		Currency:      stripe.String(strings.ToLower(currency)),
		Confirm:       stripe.Bool(true),
		CaptureMethod: stripe.String(string(stripe.PaymentIntentCaptureMethodAutomatic)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled:        stripe.Bool(true),
			AllowRedirects: stripe.String("never"),
		},
	}
	if method != "" {
		params.PaymentMethod = stripe.String(method)
	}
	if req.Description != "" {
		params.Description = stripe.String(req.Description)
	}
	params.Context = ctx
	params.AddMetadata("payer_id", req.PayerID.String())
	params.AddMetadata("reference", req.Reference)
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	pi, err := g.api.PaymentIntents.New(params)
	if err != nil {
		g.logger.Warn("Stripe capture failed",
			zap.String("reference", req.Reference),
			zap.String("payer_id", req.PayerID.String()),
			zap.Error(err))
		return nil, classifyStripeError("capture", err)
	}
	if pi.Status != stripe.PaymentIntentStatusSucceeded {
		g.logger.Warn("Stripe payment intent not settled",
			zap.String("payment_intent", pi.ID),
			zap.String("status", string(pi.Status)))
		return nil, fmt.Errorf("stripe: payment intent %s is %s: %w", pi.ID, pi.Status, escrow.ErrCaptureDeclined)
	}

	g.logger.Info("Captured Stripe payment",
		zap.String("payment_intent", pi.ID),
		zap.String("reference", req.Reference),
		zap.String("amount", amount.StringFixed(2)))

	return &escrow.Capture{
		TransactionID: pi.ID,
		Amount:        fromMinorUnits(pi.AmountReceived),
		CapturedAt:    time.Unix(pi.Created, 0),
	}, nil
}

// Refund returns amount of the captured PaymentIntent transactionID
func (g *StripeGateway) Refund(ctx context.Context, transactionID string, amount decimal.Decimal) (*escrow.RefundConfirmation, error) {
	amount = valueobject.RoundMoney(amount)
	if !valueobject.IsPositive(amount) {
		return nil, fmt.Errorf("stripe: refund amount must be positive, got %s", amount)
	}

	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(transactionID),
		Amount:        stripe.Int64(toMinorUnits(amount)),
		Reason:        stripe.String(string(stripe.RefundReasonRequestedByCustomer)),
	}
	params.Context = ctx
	params.SetIdempotencyKey("refund-" + transactionID + "-" + amount.StringFixed(2))

	r, err := g.api.Refunds.New(params)
	if err != nil {
		g.logger.Warn("Stripe refund failed",
			zap.String("payment_intent", transactionID),
			zap.Error(err))
		return nil, classifyStripeError("refund", err)
	}
	if r.Status == stripe.RefundStatusFailed || r.Status == stripe.RefundStatusCanceled {
		return nil, fmt.Errorf("stripe: refund %s is %s: %w", r.ID, r.Status, escrow.ErrCaptureDeclined)
	}

	g.logger.Info("Refunded Stripe payment",
		zap.String("payment_intent", transactionID),
		zap.String("refund", r.ID),
		zap.String("amount", amount.StringFixed(2)))

	return &escrow.RefundConfirmation{
		ConfirmationID: r.ID,
		TransactionID:  transactionID,
		Amount:         fromMinorUnits(r.Amount),
		RefundedAt:     time.Unix(r.Created, 0),
	}, nil
}

// classifyStripeError maps Stripe failures onto the gateway error set
func classifyStripeError(op string, err error) error {
	var se *stripe.Error
	if !errors.As(err, &se) {
		return fmt.Errorf("stripe: %s: %w: %v", op, escrow.ErrGatewayUnavailable, err)
	}
	switch {
	case se.Code == stripe.ErrorCodeResourceMissing:
		return fmt.Errorf("stripe: %s: %w: %s", op, escrow.ErrUnknownTransaction, se.Msg)
	case se.Type == stripe.ErrorTypeCard:
		return fmt.Errorf("stripe: %s: %w: %s", op, escrow.ErrCaptureDeclined, se.Msg)
	case se.HTTPStatusCode == http.StatusTooManyRequests, se.HTTPStatusCode >= 500, se.Type == stripe.ErrorTypeAPI:
		return fmt.Errorf("stripe: %s: %w: %s", op, escrow.ErrGatewayUnavailable, se.Msg)
	default:
		return fmt.Errorf("stripe: %s failed: %w", op, err)
	}
}

func toMinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

func fromMinorUnits(v int64) decimal.Decimal {
	return decimal.New(v, -2)
}

var _ escrow.PaymentGateway = (*StripeGateway)(nil)
