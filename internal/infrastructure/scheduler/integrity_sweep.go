package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wholesale/backend/internal/domain/allocation"
	"github.com/wholesale/backend/internal/domain/listing"
	"github.com/wholesale/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// IntegrityScanner pages through aggregates in id order
type IntegrityScanner interface {
	ScanAllocations(ctx context.Context, after uuid.UUID, limit int) ([]allocation.Allocation, error)
	ScanListings(ctx context.Context, after uuid.UUID, limit int) ([]listing.Listing, error)
}

// SweepReport summarises one completed sweep
type SweepReport struct {
	Kind       JobKind
	Scanned    int
	Violations []uuid.UUID
	FinishedAt time.Time
}

// IntegritySweep re-checks the counter invariant of every allocation and
// listing. Mutations already verify inside their transaction, so a
// violation found here means the store was changed out of band.
type IntegritySweep struct {
	scanner   IntegrityScanner
	metrics   *telemetry.MarketplaceMetrics
	logger    *zap.Logger
	batchSize int

	mu   sync.Mutex
	last map[JobKind]SweepReport
}

// NewIntegritySweep creates the sweep executor. metrics may be nil.
func NewIntegritySweep(scanner IntegrityScanner, metrics *telemetry.MarketplaceMetrics, logger *zap.Logger) *IntegritySweep {
	return &IntegritySweep{
		scanner:   scanner,
		metrics:   metrics,
		logger:    logger,
		batchSize: 500,
		last:      make(map[JobKind]SweepReport),
	}
}

// Execute implements JobExecutor. Violations are reported, not returned:
// only a failed scan is an error worth retrying.
func (s *IntegritySweep) Execute(ctx context.Context, job *Job) error {
	var (
		report SweepReport
		err    error
	)
	switch job.Kind {
	case JobAllocationSweep:
		report, err = sweep(ctx, s, job.Kind, s.scanner.ScanAllocations,
			func(a allocation.Allocation) (uuid.UUID, error) { return a.ID, a.CheckInvariant() })
	case JobListingSweep:
		report, err = sweep(ctx, s, job.Kind, s.scanner.ScanListings,
			func(l listing.Listing) (uuid.UUID, error) { return l.ID, l.CheckInvariant() })
	default:
		return fmt.Errorf("%w: %s", ErrUnknownJobKind, job.Kind)
	}
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.last[job.Kind] = report
	s.mu.Unlock()

	s.logger.Info("Integrity sweep finished",
		zap.String("kind", string(job.Kind)),
		zap.Int("scanned", report.Scanned),
		zap.Int("violations", len(report.Violations)),
	)
	return nil
}

// LastReport returns the most recent completed sweep of kind
func (s *IntegritySweep) LastReport(kind JobKind) (SweepReport, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.last[kind]
	return r, ok
}

func sweep[T any](
	ctx context.Context,
	s *IntegritySweep,
	kind JobKind,
	scan func(context.Context, uuid.UUID, int) ([]T, error),
	check func(T) (uuid.UUID, error),
) (SweepReport, error) {
	report := SweepReport{Kind: kind}
	after := uuid.Nil
	for {
		batch, err := scan(ctx, after, s.batchSize)
		if err != nil {
			return report, fmt.Errorf("scan %s after %s: %w", kind, after, err)
		}
		for _, item := range batch {
			id, violation := check(item)
			after = id
			report.Scanned++
			if violation == nil {
				continue
			}
			report.Violations = append(report.Violations, id)
			s.metrics.IntegrityViolation(ctx, "sweep."+string(kind))
			s.logger.Error("Integrity violation found by sweep",
				zap.String("kind", string(kind)),
				zap.String("id", id.String()),
				zap.Error(violation),
			)
		}
		if len(batch) < s.batchSize {
			break
		}
	}
	report.FinishedAt = time.Now()
	return report, nil
}
