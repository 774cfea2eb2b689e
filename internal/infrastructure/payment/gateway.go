// Package payment provides escrow.PaymentGateway implementations.
package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wholesale/backend/internal/domain/escrow"
	"github.com/wholesale/backend/internal/infrastructure/config"
	"github.com/wholesale/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// Provider names accepted in payment.provider
const (
	ProviderSandbox = "sandbox"
	ProviderStripe  = "stripe"
)

// NewGateway builds the configured gateway wrapped with latency metrics
func NewGateway(cfg config.PaymentConfig, metrics *telemetry.MarketplaceMetrics, logger *zap.Logger) (escrow.PaymentGateway, error) {
	var gw escrow.PaymentGateway
	switch cfg.Provider {
	case ProviderSandbox, "":
		gw = NewSandboxGateway(logger)
	case ProviderStripe:
		stripeGW, err := NewStripeGateway(&StripeConfig{
			SecretKey:            cfg.StripeSecretKey,
			Currency:             cfg.Currency,
			DefaultPaymentMethod: cfg.StripePaymentMethod,
			Timeout:              cfg.StripeTimeout,
		}, nil, logger)
		if err != nil {
			return nil, err
		}
		gw = stripeGW
	default:
		return nil, fmt.Errorf("payment: unsupported provider %q", cfg.Provider)
	}
	return Instrument(gw, cfg.Provider, metrics), nil
}

// Instrument records the latency and outcome of every call to gw
func Instrument(gw escrow.PaymentGateway, provider string, metrics *telemetry.MarketplaceMetrics) escrow.PaymentGateway {
	if metrics == nil {
		return gw
	}
	return &instrumentedGateway{next: gw, provider: provider, metrics: metrics}
}

type instrumentedGateway struct {
	next     escrow.PaymentGateway
	provider string
	metrics  *telemetry.MarketplaceMetrics
}

func (g *instrumentedGateway) Capture(ctx context.Context, req escrow.CaptureRequest) (*escrow.Capture, error) {
	start := time.Now()
	c, err := g.next.Capture(ctx, req)
	g.metrics.GatewayCall(ctx, g.provider, "capture", time.Since(start), err)
	return c, err
}

func (g *instrumentedGateway) Refund(ctx context.Context, transactionID string, amount decimal.Decimal) (*escrow.RefundConfirmation, error) {
	start := time.Now()
	r, err := g.next.Refund(ctx, transactionID, amount)
	g.metrics.GatewayCall(ctx, g.provider, "refund", time.Since(start), err)
	return r, err
}
