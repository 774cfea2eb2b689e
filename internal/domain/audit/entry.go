package audit

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/wholesale/backend/internal/domain/shared"
)

// Stream groups entries that belong to one history
type Stream string

const (
	StreamNegotiationMessages Stream = "negotiation.messages"
	StreamDisputeLog          Stream = "dispute.log"
	StreamAllocation          Stream = "allocation.ledger"
	StreamSettlement          Stream = "escrow.settlements"
	StreamGroup               Stream = "group.activity"
)

// Entry is one immutable audit record or chat message
type Entry struct {
	ID          uuid.UUID
	Stream      Stream
	AggregateID uuid.UUID
	ActorID     uuid.UUID
	Action      string
	Body        string
	Payload     map[string]any
	CreatedAt   time.Time
}

// NewEntry builds an entry ready to append
func NewEntry(stream Stream, aggregateID, actorID uuid.UUID, action, body string, payload map[string]any) (*Entry, error) {
	if stream == "" || aggregateID == uuid.Nil {
		return nil, shared.NewValidationError("INVALID_AUDIT_ENTRY", "Stream and aggregate are required")
	}
	if strings.TrimSpace(action) == "" {
		return nil, shared.NewValidationError("INVALID_AUDIT_ENTRY", "Action is required")
	}
	return &Entry{
		ID:          uuid.New(),
		Stream:      stream,
		AggregateID: aggregateID,
		ActorID:     actorID,
		Action:      action,
		Body:        body,
		Payload:     payload,
		CreatedAt:   time.Now(),
	}, nil
}

// Log is an append-only store; it exposes no update or delete
type Log interface {
	Append(ctx context.Context, e *Entry) error

	// List returns the entries of one aggregate in a stream, oldest first
	List(ctx context.Context, stream Stream, aggregateID uuid.UUID, filter shared.Filter) ([]Entry, int64, error)
}
