package persistence

import (
	"context"

	"github.com/wholesale/backend/internal/application/txn"
	"github.com/wholesale/backend/internal/domain/allocation"
	"github.com/wholesale/backend/internal/domain/audit"
	"github.com/wholesale/backend/internal/domain/collaboration"
	"github.com/wholesale/backend/internal/domain/dispute"
	"github.com/wholesale/backend/internal/domain/escrow"
	"github.com/wholesale/backend/internal/domain/listing"
	"github.com/wholesale/backend/internal/domain/negotiation"
	"github.com/wholesale/backend/internal/domain/shared"
	"github.com/wholesale/backend/internal/infrastructure/telemetry"
	"gorm.io/gorm"
)

// GormTransactionScope implements txn.TransactionScope using GORM transactions.
// Events are staged through the outbox saver on the same transaction handle.
type GormTransactionScope struct {
	db      *gorm.DB
	outbox  shared.OutboxEventSaver
	metrics *telemetry.MarketplaceMetrics
}

// NewGormTransactionScope creates a new GormTransactionScope. metrics may be nil.
func NewGormTransactionScope(db *gorm.DB, outbox shared.OutboxEventSaver, metrics *telemetry.MarketplaceMetrics) *GormTransactionScope {
	return &GormTransactionScope{db: db, outbox: outbox, metrics: metrics}
}

// Execute runs fn within a database transaction
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos txn.Repositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTransactionalRepositories{tx: tx, outbox: s.outbox, metrics: s.metrics})
	})
}

// gormTransactionalRepositories builds repositories bound to one transaction
type gormTransactionalRepositories struct {
	tx      *gorm.DB
	outbox  shared.OutboxEventSaver
	metrics *telemetry.MarketplaceMetrics
}

func (r *gormTransactionalRepositories) Negotiations() negotiation.NegotiationRepository {
	return NewGormNegotiationRepository(r.tx)
}

func (r *gormTransactionalRepositories) Allocations() allocation.Ledger {
	return NewGormAllocationLedger(r.tx, r.metrics)
}

func (r *gormTransactionalRepositories) Groups() collaboration.GroupRepository {
	return NewGormGroupRepository(r.tx)
}

func (r *gormTransactionalRepositories) Contributions() collaboration.ContributionRepository {
	return NewGormContributionRepository(r.tx)
}

func (r *gormTransactionalRepositories) Listings() listing.ListingRepository {
	return NewGormListingRepository(r.tx)
}

func (r *gormTransactionalRepositories) Orders() listing.OrderRepository {
	return NewGormOrderRepository(r.tx)
}

func (r *gormTransactionalRepositories) Escrows() escrow.EscrowRepository {
	return NewGormEscrowRepository(r.tx)
}

func (r *gormTransactionalRepositories) CustomEscrows() escrow.CustomEscrowRepository {
	return NewGormCustomEscrowRepository(r.tx)
}

func (r *gormTransactionalRepositories) Disputes() dispute.DisputeRepository {
	return NewGormDisputeRepository(r.tx)
}

func (r *gormTransactionalRepositories) Audit() audit.Log {
	return NewGormAuditLog(r.tx, r.metrics)
}

func (r *gormTransactionalRepositories) Stage(ctx context.Context, events ...shared.DomainEvent) error {
	if len(events) == 0 || r.outbox == nil {
		return nil
	}
	return r.outbox.SaveEvents(ctx, r.tx, events...)
}

var (
	_ txn.TransactionScope = (*GormTransactionScope)(nil)
	_ txn.Repositories     = (*gormTransactionalRepositories)(nil)
)
