package event

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/wholesale/backend/internal/domain/shared"
	"go.uber.org/zap"
)

var errOutboxUnavailable = shared.NewDomainError(shared.KindIntegrity, "OUTBOX_UNAVAILABLE", "Outbox storage is unavailable")

// OutboxService lets operators inspect and replay dead-lettered notifications
type OutboxService struct {
	repo   shared.OutboxRepository
	logger *zap.Logger
}

// NewOutboxService creates a new outbox service
func NewOutboxService(repo shared.OutboxRepository, logger *zap.Logger) *OutboxService {
	return &OutboxService{repo: repo, logger: logger}
}

// OutboxEntryDTO is the operator view of one outbox entry
type OutboxEntryDTO struct {
	ID            uuid.UUID  `json:"id"`
	EventID       uuid.UUID  `json:"event_id"`
	EventType     string     `json:"event_type"`
	AggregateID   uuid.UUID  `json:"aggregate_id"`
	AggregateType string     `json:"aggregate_type"`
	Status        string     `json:"status"`
	RetryCount    int        `json:"retry_count"`
	MaxRetries    int        `json:"max_retries"`
	LastError     string     `json:"last_error,omitempty"`
	NextRetryAt   *time.Time `json:"next_retry_at,omitempty"`
	ProcessedAt   *time.Time `json:"processed_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// OutboxStatsDTO counts entries per delivery status
type OutboxStatsDTO struct {
	Pending    int64 `json:"pending"`
	Processing int64 `json:"processing"`
	Sent       int64 `json:"sent"`
	Failed     int64 `json:"failed"`
	Dead       int64 `json:"dead"`
	Total      int64 `json:"total"`
}

// ListDead returns dead-lettered entries, newest first
func (s *OutboxService) ListDead(ctx context.Context, filter shared.Filter) (shared.Paginated[OutboxEntryDTO], error) {
	page := max(filter.Page, 1)
	entries, total, err := s.repo.FindDead(ctx, page, filter.Limit())
	if err != nil {
		s.logger.Error("failed to list dead letters", zap.Error(err))
		return shared.Paginated[OutboxEntryDTO]{}, errOutboxUnavailable
	}
	items := make([]OutboxEntryDTO, len(entries))
	for i, e := range entries {
		items[i] = toOutboxEntryDTO(e)
	}
	return shared.NewPaginated(items, total, page, filter.Limit()), nil
}

// RetryDead puts one dead-lettered entry back in the delivery queue
func (s *OutboxService) RetryDead(ctx context.Context, id uuid.UUID) (*OutboxEntryDTO, error) {
	entry, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := entry.ResetForRetry(); err != nil {
		return nil, shared.NewStateConflictError("OUTBOX_NOT_DEAD", err.Error())
	}
	if err := s.repo.Update(ctx, entry); err != nil {
		s.logger.Error("failed to reset outbox entry", zap.Error(err), zap.String("id", id.String()))
		return nil, errOutboxUnavailable
	}

	s.logger.Info("dead letter reset for retry",
		zap.String("id", id.String()),
		zap.String("event_type", entry.EventType),
	)
	dto := toOutboxEntryDTO(entry)
	return &dto, nil
}

// RetryAllDead resets every dead-lettered entry and returns how many moved
func (s *OutboxService) RetryAllDead(ctx context.Context) (int64, error) {
	const pageSize = 100
	var count int64
	for {
		// Reset entries leave the DEAD set, so the first page always holds
		// the next batch.
		entries, _, err := s.repo.FindDead(ctx, 1, pageSize)
		if err != nil {
			return count, errOutboxUnavailable
		}
		moved := 0
		for _, entry := range entries {
			if entry.ResetForRetry() != nil {
				continue
			}
			if err := s.repo.Update(ctx, entry); err != nil {
				s.logger.Error("failed to reset outbox entry", zap.Error(err), zap.String("id", entry.ID.String()))
				continue
			}
			moved++
		}
		count += int64(moved)
		if len(entries) < pageSize || moved == 0 {
			break
		}
	}
	s.logger.Info("dead letters reset for retry", zap.Int64("count", count))
	return count, nil
}

// Stats counts entries per status
func (s *OutboxService) Stats(ctx context.Context) (*OutboxStatsDTO, error) {
	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		s.logger.Error("failed to count outbox entries", zap.Error(err))
		return nil, errOutboxUnavailable
	}
	stats := &OutboxStatsDTO{
		Pending:    counts[shared.OutboxStatusPending],
		Processing: counts[shared.OutboxStatusProcessing],
		Sent:       counts[shared.OutboxStatusSent],
		Failed:     counts[shared.OutboxStatusFailed],
		Dead:       counts[shared.OutboxStatusDead],
	}
	for _, n := range counts {
		stats.Total += n
	}
	return stats, nil
}

func toOutboxEntryDTO(entry *shared.OutboxEntry) OutboxEntryDTO {
	return OutboxEntryDTO{
		ID:            entry.ID,
		EventID:       entry.EventID,
		EventType:     entry.EventType,
		AggregateID:   entry.AggregateID,
		AggregateType: entry.AggregateType,
		Status:        string(entry.Status),
		RetryCount:    entry.RetryCount,
		MaxRetries:    entry.MaxRetries,
		LastError:     entry.LastError,
		NextRetryAt:   entry.NextRetryAt,
		ProcessedAt:   entry.ProcessedAt,
		CreatedAt:     entry.CreatedAt,
	}
}
