package dispute

import (
	"context"

	"github.com/google/uuid"
	escrowapp "github.com/wholesale/backend/internal/application/escrow"
	"github.com/wholesale/backend/internal/application/txn"
	"github.com/wholesale/backend/internal/domain/audit"
	"github.com/wholesale/backend/internal/domain/dispute"
	"github.com/wholesale/backend/internal/domain/shared"
	"github.com/wholesale/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// Dispute log actions
const (
	ActionOpened   = "OPENED"
	ActionAssigned = "ASSIGNED"
	ActionAdvanced = "ADVANCED"
	ActionEvidence = "EVIDENCE_ADDED"
	ActionResolved = "RESOLVED"
	ActionClosed   = "CLOSED"
)

// Service moves disputes through review and applies their outcome to the
// order's escrow. Every step is written to the dispute log.
type Service struct {
	scope       txn.TransactionScope
	settlements *escrowapp.Service
}

// NewService creates a new dispute Service
func NewService(scope txn.TransactionScope, settlements *escrowapp.Service) *Service {
	return &Service{scope: scope, settlements: settlements}
}

// Open disputes an order and freezes its escrow in the same transaction
func (s *Service) Open(ctx context.Context, actor shared.Actor, req OpenDisputeRequest) (*DisputeResponse, error) {
	var resp DisputeResponse
	err := s.scope.Execute(ctx, func(repos txn.Repositories) error {
		o, err := repos.Orders().FindByID(ctx, req.OrderID)
		if err != nil {
			return err
		}
		d, err := dispute.NewDispute(o.ID, o.BuyerID, o.SellerID, actor, req.Reason)
		if err != nil {
			return err
		}
		if err := repos.Disputes().Create(ctx, d); err != nil {
			return err
		}
		if err := escrowapp.FreezeWithin(ctx, repos, actor.ID, o.ID); err != nil {
			return err
		}
		if err := txn.AppendAudit(ctx, repos, audit.StreamDisputeLog, d.ID, actor.ID, ActionOpened, d.Reason,
			map[string]any{"order_id": o.ID.String()}); err != nil {
			return err
		}
		if err := txn.StageFrom(ctx, repos, d); err != nil {
			return err
		}
		resp = ToDisputeResponse(d)
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.L(ctx).Info("Dispute opened",
		zap.String("dispute_id", resp.ID.String()),
		zap.String("order_id", req.OrderID.String()))
	return &resp, nil
}

// Assign hands an OPEN dispute to an admin and starts the review
func (s *Service) Assign(ctx context.Context, actor shared.Actor, id uuid.UUID, req AssignRequest) (*DisputeResponse, error) {
	return s.mutate(ctx, actor, id, ActionAssigned, "", func(_ txn.Repositories, d *dispute.Dispute) (map[string]any, error) {
		if err := d.Assign(actor, req.AdminID); err != nil {
			return nil, err
		}
		return map[string]any{"admin_id": req.AdminID.String()}, nil
	})
}

// Advance moves a dispute under review one step towards IN_PROGRESS
func (s *Service) Advance(ctx context.Context, actor shared.Actor, id uuid.UUID, req NoteRequest) (*DisputeResponse, error) {
	return s.mutate(ctx, actor, id, ActionAdvanced, req.Note, func(_ txn.Repositories, d *dispute.Dispute) (map[string]any, error) {
		if err := d.Advance(actor); err != nil {
			return nil, err
		}
		return map[string]any{"status": string(d.Status)}, nil
	})
}

// AddEvidence appends a party's or the assignee's evidence to the log. The
// dispute itself does not change.
func (s *Service) AddEvidence(ctx context.Context, actor shared.Actor, id uuid.UUID, req EvidenceRequest) (*LogEntryResponse, error) {
	var resp LogEntryResponse
	err := s.scope.Execute(ctx, func(repos txn.Repositories) error {
		d, err := repos.Disputes().FindByID(ctx, id)
		if err != nil {
			return err
		}
		if err := d.CheckEvidence(actor); err != nil {
			return err
		}
		entry, err := audit.NewEntry(audit.StreamDisputeLog, id, actor.ID, ActionEvidence, req.Note, nil)
		if err != nil {
			return err
		}
		if err := repos.Audit().Append(ctx, entry); err != nil {
			return err
		}
		resp = toLogEntryResponse(*entry)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// Resolve records the outcome of an IN_PROGRESS dispute and settles the
// escrow accordingly. REFUND returns the held funds and the outstanding
// units, PARTIAL_REFUND returns part of the dealer's share and releases the
// rest, RELEASE lifts the freeze and pays the dealer.
func (s *Service) Resolve(ctx context.Context, actor shared.Actor, id uuid.UUID, req ResolveRequest) (*DisputeResponse, error) {
	metadata := &dispute.Metadata{Summary: req.Summary, RefundAmount: req.RefundAmount, Attributes: req.Attributes}
	resolution := dispute.Resolution(req.Resolution)

	var pending *escrowapp.PendingRefund
	resp, err := s.mutate(ctx, actor, id, ActionResolved, req.Summary, func(repos txn.Repositories, d *dispute.Dispute) (map[string]any, error) {
		if err := d.Resolve(actor, resolution, metadata); err != nil {
			return nil, err
		}
		var err error
		switch resolution {
		case dispute.ResolutionRefund:
			pending, err = escrowapp.RefundWithin(ctx, repos, actor.ID, d.OrderID, req.Summary)
		case dispute.ResolutionPartialRefund:
			pending, err = s.partialRefund(ctx, repos, actor.ID, d, req.Summary)
		case dispute.ResolutionRelease:
			err = s.forceRelease(ctx, repos, actor.ID, d)
		}
		if err != nil {
			return nil, err
		}
		payload := map[string]any{"resolution": req.Resolution}
		if req.RefundAmount != nil {
			payload["refund_amount"] = req.RefundAmount.StringFixed(2)
		}
		return payload, nil
	})
	if err != nil {
		return nil, err
	}
	if pending != nil {
		s.settlements.PayBack(ctx, actor.ID, *pending)
	}
	logger.L(ctx).Info("Dispute resolved",
		zap.String("dispute_id", id.String()),
		zap.String("resolution", req.Resolution))
	return resp, nil
}

func (s *Service) partialRefund(ctx context.Context, repos txn.Repositories, actorID uuid.UUID, d *dispute.Dispute, reason string) (*escrowapp.PendingRefund, error) {
	pending, err := escrowapp.PartialRefundWithin(ctx, repos, actorID, d.OrderID, *d.Metadata.RefundAmount, reason)
	if err != nil {
		return nil, err
	}
	if err := s.forceRelease(ctx, repos, actorID, d); err != nil {
		return nil, err
	}
	return pending, nil
}

// forceRelease lifts the dispute's freeze with a forced-release approval and
// pays out whatever the dealer is still owed
func (s *Service) forceRelease(ctx context.Context, repos txn.Repositories, actorID uuid.UUID, d *dispute.Dispute) error {
	if err := escrowapp.UnfreezeWithin(ctx, repos, actorID, d.OrderID, true); err != nil {
		return err
	}
	_, _, err := escrowapp.ReleaseWithin(ctx, repos, actorID, d.OrderID)
	return err
}

// Close archives a resolved dispute
func (s *Service) Close(ctx context.Context, actor shared.Actor, id uuid.UUID) (*DisputeResponse, error) {
	return s.mutate(ctx, actor, id, ActionClosed, "", func(_ txn.Repositories, d *dispute.Dispute) (map[string]any, error) {
		return nil, d.Close(actor)
	})
}

// mutate loads the dispute, applies fn, saves it and logs action with the
// payload fn returns, all in one transaction
func (s *Service) mutate(ctx context.Context, actor shared.Actor, id uuid.UUID, action, body string, fn func(repos txn.Repositories, d *dispute.Dispute) (map[string]any, error)) (*DisputeResponse, error) {
	var resp DisputeResponse
	err := s.scope.Execute(ctx, func(repos txn.Repositories) error {
		d, err := repos.Disputes().FindByID(ctx, id)
		if err != nil {
			return err
		}
		from := d.Status
		payload, err := fn(repos, d)
		if err != nil {
			return err
		}
		if err := repos.Disputes().SaveWithLock(ctx, d); err != nil {
			return err
		}
		if payload == nil {
			payload = map[string]any{}
		}
		payload["from"] = string(from)
		payload["to"] = string(d.Status)
		if err := txn.AppendAudit(ctx, repos, audit.StreamDisputeLog, id, actor.ID, action, body, payload); err != nil {
			return err
		}
		if err := txn.StageFrom(ctx, repos, d); err != nil {
			return err
		}
		resp = ToDisputeResponse(d)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// Get returns a dispute to its parties and admins
func (s *Service) Get(ctx context.Context, actor shared.Actor, id uuid.UUID) (*DisputeResponse, error) {
	var resp DisputeResponse
	err := s.scope.Execute(ctx, func(repos txn.Repositories) error {
		d, err := repos.Disputes().FindByID(ctx, id)
		if err != nil {
			return err
		}
		if !d.IsParty(actor.ID) && !actor.IsAdmin() {
			return shared.ErrNotFound
		}
		resp = ToDisputeResponse(d)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// Log returns a dispute's history, oldest first
func (s *Service) Log(ctx context.Context, actor shared.Actor, id uuid.UUID, page, pageSize int) (shared.Paginated[LogEntryResponse], error) {
	filter := shared.DefaultFilter()
	if page > 0 {
		filter.Page = page
	}
	if pageSize > 0 {
		filter.PageSize = pageSize
	}
	var (
		items []LogEntryResponse
		total int64
	)
	err := s.scope.Execute(ctx, func(repos txn.Repositories) error {
		d, err := repos.Disputes().FindByID(ctx, id)
		if err != nil {
			return err
		}
		if !d.IsParty(actor.ID) && !actor.IsAdmin() {
			return shared.ErrNotFound
		}
		entries, count, err := repos.Audit().List(ctx, audit.StreamDisputeLog, id, filter)
		if err != nil {
			return err
		}
		total = count
		items = make([]LogEntryResponse, len(entries))
		for i, e := range entries {
			items[i] = toLogEntryResponse(e)
		}
		return nil
	})
	if err != nil {
		return shared.Paginated[LogEntryResponse]{}, err
	}
	return shared.NewPaginated(items, total, filter.Page, filter.Limit()), nil
}

// List returns disputes in a status for reviewers
func (s *Service) List(ctx context.Context, actor shared.Actor, filter ListFilter) (shared.Paginated[DisputeResponse], error) {
	if err := actor.Require(shared.CapReviewDisputes); err != nil {
		return shared.Paginated[DisputeResponse]{}, err
	}
	f := shared.DefaultFilter()
	if filter.Page > 0 {
		f.Page = filter.Page
	}
	if filter.PageSize > 0 {
		f.PageSize = filter.PageSize
	}
	status := dispute.StatusOpen
	if filter.Status != "" {
		status = dispute.Status(filter.Status)
	}
	var (
		items []DisputeResponse
		total int64
	)
	err := s.scope.Execute(ctx, func(repos txn.Repositories) error {
		rows, n, err := repos.Disputes().FindByStatus(ctx, status, f)
		if err != nil {
			return err
		}
		total = n
		items = make([]DisputeResponse, len(rows))
		for i := range rows {
			items[i] = ToDisputeResponse(&rows[i])
		}
		return nil
	})
	if err != nil {
		return shared.Paginated[DisputeResponse]{}, err
	}
	return shared.NewPaginated(items, total, f.Page, f.Limit()), nil
}

func toLogEntryResponse(e audit.Entry) LogEntryResponse {
	return LogEntryResponse{ID: e.ID, ActorID: e.ActorID, Action: e.Action, Body: e.Body, Payload: e.Payload, CreatedAt: e.CreatedAt}
}
