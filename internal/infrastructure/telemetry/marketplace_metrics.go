package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// MarketplaceMetrics holds the business instruments recorded by persistence
// and application services. A nil *MarketplaceMetrics records nothing.
type MarketplaceMetrics struct {
	integrityViolations *Counter
	unitsConsumed       *Counter
	unitsRestored       *Counter
	consumeRejected     *Counter
	escrowSettlements   *Counter
	auditAppends        *Counter
	outboxDeliveries    *Counter
	gatewayLatency      *Histogram
}

// NewMarketplaceMetrics registers the marketplace instruments on meter.
func NewMarketplaceMetrics(meter metric.Meter) (*MarketplaceMetrics, error) {
	m := &MarketplaceMetrics{}
	var err error
	if m.integrityViolations, err = NewCounter(meter, "marketplace.integrity_violations",
		"Ledger or contribution invariant violations detected after a write", "{violation}"); err != nil {
		return nil, err
	}
	if m.unitsConsumed, err = NewCounter(meter, "marketplace.allocation.units_consumed",
		"Units consumed from allocations", "{unit}"); err != nil {
		return nil, err
	}
	if m.unitsRestored, err = NewCounter(meter, "marketplace.allocation.units_restored",
		"Units restored to allocations", "{unit}"); err != nil {
		return nil, err
	}
	if m.consumeRejected, err = NewCounter(meter, "marketplace.allocation.consume_rejected",
		"Consume attempts rejected by the ledger", "{attempt}"); err != nil {
		return nil, err
	}
	if m.escrowSettlements, err = NewCounter(meter, "marketplace.escrow.settlements",
		"Escrow settlements by outcome", "{settlement}"); err != nil {
		return nil, err
	}
	if m.auditAppends, err = NewCounter(meter, "marketplace.audit.appends",
		"Audit entries appended per stream", "{entry}"); err != nil {
		return nil, err
	}
	if m.outboxDeliveries, err = NewCounter(meter, "marketplace.outbox.deliveries",
		"Outbox delivery attempts by event type and outcome", "{attempt}"); err != nil {
		return nil, err
	}
	if m.gatewayLatency, err = NewHistogram(meter, HistogramOpts{
		Name:        "marketplace.payment.gateway_duration",
		Description: "Payment gateway call latency",
		Unit:        "s",
		Boundaries:  GatewayDurationBuckets,
	}); err != nil {
		return nil, err
	}
	return m, nil
}

// IntegrityViolation counts a detected invariant breach for operation.
func (m *MarketplaceMetrics) IntegrityViolation(ctx context.Context, operation string) {
	if m == nil {
		return
	}
	m.integrityViolations.Inc(ctx, AttrOperation.String(operation))
}

// Consumed counts units moved from remaining to sold.
func (m *MarketplaceMetrics) Consumed(ctx context.Context, units int64) {
	if m == nil {
		return
	}
	m.unitsConsumed.Add(ctx, units)
}

// Restored counts units moved back from sold to remaining.
func (m *MarketplaceMetrics) Restored(ctx context.Context, units int64) {
	if m == nil || units == 0 {
		return
	}
	m.unitsRestored.Add(ctx, units)
}

// ConsumeRejected counts a consume attempt refused for reason.
func (m *MarketplaceMetrics) ConsumeRejected(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	m.consumeRejected.Inc(ctx, AttrOutcome.String(reason))
}

// EscrowSettled counts an escrow release or refund.
func (m *MarketplaceMetrics) EscrowSettled(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.escrowSettlements.Inc(ctx, AttrOutcome.String(outcome))
}

// AuditAppended counts an entry written to stream.
func (m *MarketplaceMetrics) AuditAppended(ctx context.Context, stream string) {
	if m == nil {
		return
	}
	m.auditAppends.Inc(ctx, AttrStream.String(stream))
}

// OutboxDelivered counts one delivery attempt of eventType. outcome is
// sent, retry or dead.
func (m *MarketplaceMetrics) OutboxDelivered(ctx context.Context, eventType, outcome string) {
	if m == nil {
		return
	}
	m.outboxDeliveries.Inc(ctx, AttrEventType.String(eventType), AttrOutcome.String(outcome))
}

// GatewayCall records the latency of a payment gateway call.
func (m *MarketplaceMetrics) GatewayCall(ctx context.Context, provider, operation string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.gatewayLatency.RecordDuration(ctx, elapsed,
		AttrProvider.String(provider), AttrOperation.String(operation), AttrOutcome.String(outcome))
}
