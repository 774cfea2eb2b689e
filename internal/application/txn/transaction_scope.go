// Package txn defines the unit of work shared by the marketplace services.
package txn

import (
	"context"

	"github.com/google/uuid"
	"github.com/wholesale/backend/internal/domain/allocation"
	"github.com/wholesale/backend/internal/domain/audit"
	"github.com/wholesale/backend/internal/domain/collaboration"
	"github.com/wholesale/backend/internal/domain/dispute"
	"github.com/wholesale/backend/internal/domain/escrow"
	"github.com/wholesale/backend/internal/domain/listing"
	"github.com/wholesale/backend/internal/domain/negotiation"
	"github.com/wholesale/backend/internal/domain/shared"
)

// TransactionScope runs fn in one database transaction. If fn returns an
// error every write made through repos, staged events included, is rolled
// back.
type TransactionScope interface {
	Execute(ctx context.Context, fn func(repos Repositories) error) error
}

// Repositories exposes every repository bound to the current transaction
type Repositories interface {
	Negotiations() negotiation.NegotiationRepository
	Allocations() allocation.Ledger
	Groups() collaboration.GroupRepository
	Contributions() collaboration.ContributionRepository
	Listings() listing.ListingRepository
	Orders() listing.OrderRepository
	Escrows() escrow.EscrowRepository
	CustomEscrows() escrow.CustomEscrowRepository
	Disputes() dispute.DisputeRepository
	Audit() audit.Log

	// Stage records events in the outbox; they are delivered only after
	// the transaction commits
	Stage(ctx context.Context, events ...shared.DomainEvent) error
}

// StageFrom stages and clears the pending events of each aggregate
func StageFrom(ctx context.Context, repos Repositories, aggregates ...shared.AggregateRoot) error {
	var events []shared.DomainEvent
	for _, agg := range aggregates {
		events = append(events, agg.GetDomainEvents()...)
	}
	if len(events) == 0 {
		return nil
	}
	if err := repos.Stage(ctx, events...); err != nil {
		return err
	}
	for _, agg := range aggregates {
		agg.ClearDomainEvents()
	}
	return nil
}

// AppendAudit builds one audit entry and appends it in the transaction
func AppendAudit(ctx context.Context, repos Repositories, stream audit.Stream, aggregateID, actorID uuid.UUID, action, body string, payload map[string]any) error {
	entry, err := audit.NewEntry(stream, aggregateID, actorID, action, body, payload)
	if err != nil {
		return err
	}
	return repos.Audit().Append(ctx, entry)
}
