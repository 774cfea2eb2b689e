package event

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wholesale/backend/internal/domain/shared"
	"github.com/wholesale/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// OutboxProcessorConfig holds configuration for the outbox processor
type OutboxProcessorConfig struct {
	BatchSize    int
	PollInterval time.Duration
	// Delivered entries older than CleanupRetention are purged every
	// CleanupInterval. Zero retention keeps them forever.
	CleanupRetention time.Duration
	CleanupInterval  time.Duration
}

// DefaultOutboxProcessorConfig polls every 2s and keeps a week of history
func DefaultOutboxProcessorConfig() OutboxProcessorConfig {
	return OutboxProcessorConfig{
		BatchSize:        100,
		PollInterval:     2 * time.Second,
		CleanupRetention: 7 * 24 * time.Hour,
		CleanupInterval:  time.Hour,
	}
}

// Delivery outcomes recorded per attempt
const (
	DeliverySent  = "sent"
	DeliveryRetry = "retry"
	DeliveryDead  = "dead"
)

// OutboxProcessorOption configures an OutboxProcessor
type OutboxProcessorOption func(*OutboxProcessor)

// WithProcessorMetrics records every delivery attempt on metrics
func WithProcessorMetrics(metrics *telemetry.MarketplaceMetrics) OutboxProcessorOption {
	return func(p *OutboxProcessor) { p.metrics = metrics }
}

// OutboxProcessor moves committed marketplace events from outbox_events to
// the event bus. An entry is claimed before delivery so two instances never
// deliver the same batch, but a crash after publish and before the status
// update redelivers it; handlers deduplicate by event id.
type OutboxProcessor struct {
	repo       shared.OutboxRepository
	bus        shared.EventPublisher
	serializer *EventSerializer
	config     OutboxProcessorConfig
	metrics    *telemetry.MarketplaceMetrics
	logger     *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewOutboxProcessor creates a processor; call Start to begin polling
func NewOutboxProcessor(
	repo shared.OutboxRepository,
	bus shared.EventPublisher,
	serializer *EventSerializer,
	config OutboxProcessorConfig,
	logger *zap.Logger,
	opts ...OutboxProcessorOption,
) *OutboxProcessor {
	p := &OutboxProcessor{
		repo:       repo,
		bus:        bus,
		serializer: serializer,
		config:     config,
		logger:     logger.Named("outbox"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start launches the delivery loop and, when retention is set, the purge loop
func (p *OutboxProcessor) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	p.wg.Add(1)
	go p.every(ctx, p.config.PollInterval, func(ctx context.Context) { p.ProcessBatch(ctx) })

	if p.config.CleanupRetention > 0 {
		p.wg.Add(1)
		go p.every(ctx, p.config.CleanupInterval, p.purge)
	}
	return nil
}

// Stop cancels the loops and waits for them, bounded by ctx
func (p *OutboxProcessor) Stop(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *OutboxProcessor) every(ctx context.Context, interval time.Duration, fn func(context.Context)) {
	defer p.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn(ctx)
		}
	}
}

// ProcessBatch delivers one batch of new entries followed by one batch of
// failed entries whose backoff has elapsed. It returns how many were sent.
func (p *OutboxProcessor) ProcessBatch(ctx context.Context) int {
	sent := 0
	for _, find := range []func() ([]*shared.OutboxEntry, error){
		func() ([]*shared.OutboxEntry, error) { return p.repo.FindPending(ctx, p.config.BatchSize) },
		func() ([]*shared.OutboxEntry, error) {
			return p.repo.FindRetryable(ctx, time.Now(), p.config.BatchSize)
		},
	} {
		entries, err := find()
		if err != nil {
			p.logger.Error("Failed to load outbox entries", zap.Error(err))
			return sent
		}
		sent += p.deliverAll(ctx, entries)
	}
	return sent
}

func (p *OutboxProcessor) deliverAll(ctx context.Context, entries []*shared.OutboxEntry) int {
	if len(entries) == 0 {
		return 0
	}
	ids := make([]uuid.UUID, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}
	claimed, err := p.repo.MarkProcessing(ctx, ids)
	if err != nil {
		p.logger.Error("Failed to claim outbox entries", zap.Error(err))
		return 0
	}

	sent := 0
	for _, entry := range claimed {
		outcome := p.deliver(ctx, entry)
		p.metrics.OutboxDelivered(ctx, entry.EventType, outcome)
		if outcome == DeliverySent {
			sent++
		}
		if err := p.repo.Update(ctx, entry); err != nil {
			p.logger.Error("Failed to record outbox delivery",
				zap.String("event_id", entry.EventID.String()),
				zap.String("outcome", outcome),
				zap.Error(err),
			)
		}
	}
	return sent
}

func (p *OutboxProcessor) deliver(ctx context.Context, entry *shared.OutboxEntry) string {
	event, err := p.serializer.Deserialize(entry.EventType, entry.Payload)
	if err == nil {
		err = p.bus.Publish(ctx, event)
	}
	if err == nil {
		entry.MarkSent()
		return DeliverySent
	}

	entry.MarkFailed(err.Error())
	log := p.logger.With(
		zap.String("event_id", entry.EventID.String()),
		zap.String("event_type", entry.EventType),
		zap.String("aggregate_id", entry.AggregateID.String()),
		zap.Int("retry_count", entry.RetryCount),
		zap.Error(err),
	)
	if entry.IsDead() {
		log.Error("Outbox entry dead-lettered")
		return DeliveryDead
	}
	log.Warn("Outbox delivery failed, will retry")
	return DeliveryRetry
}

func (p *OutboxProcessor) purge(ctx context.Context) {
	cutoff := time.Now().Add(-p.config.CleanupRetention)
	deleted, err := p.repo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		p.logger.Error("Failed to purge delivered outbox entries", zap.Error(err))
		return
	}
	if deleted > 0 {
		p.logger.Info("Purged delivered outbox entries", zap.Int64("deleted", deleted))
	}
}
