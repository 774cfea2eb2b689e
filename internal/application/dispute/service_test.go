package dispute

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	escrowapp "github.com/wholesale/backend/internal/application/escrow"
	"github.com/wholesale/backend/internal/application/txn"
	"github.com/wholesale/backend/internal/domain/audit"
	"github.com/wholesale/backend/internal/domain/dispute"
	"github.com/wholesale/backend/internal/domain/escrow"
	"github.com/wholesale/backend/internal/domain/listing"
	"github.com/wholesale/backend/internal/domain/shared"
	"github.com/wholesale/backend/internal/infrastructure/persistence/models"
	"github.com/wholesale/backend/internal/testutil"
)

type fixture struct {
	env          *testutil.Env
	svc          *Service
	settlements  *escrowapp.Service
	seller       shared.Actor
	buyer        shared.Actor
	manager      shared.Actor
	allocationID uuid.UUID
}

func newFixture(t *testing.T) fixture {
	env := testutil.NewEnv(t)
	seller := env.SeedSeller(t, true)
	settlements := escrowapp.NewService(env.Scope, env.Gateway, nil, testutil.DefaultFeeRate, "usd")
	return fixture{
		env:          env,
		svc:          NewService(env.Scope, settlements),
		settlements:  settlements,
		seller:       seller,
		buyer:        testutil.Customer(),
		manager:      testutil.Admin(shared.AdminDisputeManager),
		allocationID: env.SeedAllocation(t, seller, 50, "10.00").ID,
	}
}

// placeOrder sells quantity units at 20.00 each and returns the order with
// its capture reference
func (f fixture) placeOrder(t *testing.T, quantity int64) (*listing.Order, string) {
	t.Helper()
	ctx := context.Background()
	var o *listing.Order
	err := f.env.Scope.Execute(ctx, func(repos txn.Repositories) error {
		a, err := repos.Allocations().FindByID(ctx, f.allocationID)
		if err != nil {
			return err
		}
		l, err := listing.NewListing(a, f.seller, decimal.NewFromInt(20))
		if err != nil {
			return err
		}
		if err := repos.Listings().Create(ctx, l); err != nil {
			return err
		}
		if o, err = listing.NewOrder(l, f.buyer, quantity, decimal.Zero); err != nil {
			return err
		}
		if err := repos.Listings().Consume(ctx, l.ID, quantity); err != nil {
			return err
		}
		if _, err := repos.Allocations().Consume(ctx, a.ID, quantity); err != nil {
			return err
		}
		return repos.Orders().Create(ctx, o)
	})
	require.NoError(t, err)

	capture, err := f.env.Gateway.Capture(ctx, escrow.CaptureRequest{PayerID: f.buyer.ID, Amount: o.TotalAmount})
	require.NoError(t, err)
	_, err = f.settlements.Hold(ctx, f.buyer.ID, o, capture)
	require.NoError(t, err)
	return o, capture.TransactionID
}

// inProgress opens a dispute on a fresh order and walks it to IN_PROGRESS
func (f fixture) inProgress(t *testing.T, quantity int64) (*DisputeResponse, *listing.Order, string) {
	t.Helper()
	ctx := context.Background()
	o, txID := f.placeOrder(t, quantity)

	d, err := f.svc.Open(ctx, f.buyer, OpenDisputeRequest{OrderID: o.ID, Reason: "half the cartons were crushed"})
	require.NoError(t, err)
	_, err = f.svc.Assign(ctx, f.manager, d.ID, AssignRequest{AdminID: f.manager.ID})
	require.NoError(t, err)
	_, err = f.svc.Advance(ctx, f.manager, d.ID, NoteRequest{})
	require.NoError(t, err)
	d, err = f.svc.Advance(ctx, f.manager, d.ID, NoteRequest{Note: "evidence reviewed"})
	require.NoError(t, err)
	require.Equal(t, "IN_PROGRESS", d.Status)
	return d, o, txID
}

func (f fixture) escrowOf(t *testing.T, orderID uuid.UUID) models.EscrowModel {
	t.Helper()
	var e models.EscrowModel
	require.NoError(t, f.env.DB.First(&e, "order_id = ?", orderID).Error)
	return e
}

func (f fixture) allocationRemaining(t *testing.T) int64 {
	t.Helper()
	var a models.AllocationModel
	require.NoError(t, f.env.DB.First(&a, "id = ?", f.allocationID).Error)
	return a.RemainingQuantity
}

func TestService_OpenFreezesEscrow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o, _ := f.placeOrder(t, 2)

	_, err := f.svc.Open(ctx, testutil.Customer(), OpenDisputeRequest{OrderID: o.ID, Reason: "late"})
	assert.ErrorIs(t, err, dispute.ErrNotDisputeParty)

	d, err := f.svc.Open(ctx, f.seller, OpenDisputeRequest{OrderID: o.ID, Reason: "buyer refuses delivery"})
	require.NoError(t, err)
	assert.Equal(t, "OPEN", d.Status)
	assert.Equal(t, escrow.StatusFrozen, f.escrowOf(t, o.ID).Status)

	_, err = f.svc.Open(ctx, f.buyer, OpenDisputeRequest{OrderID: o.ID, Reason: "again"})
	assert.ErrorIs(t, err, dispute.ErrAlreadyDisputed)
	assert.Equal(t, int64(1), f.env.Count(t, &models.DisputeModel{}))

	_, err = f.settlements.ConfirmDelivery(ctx, f.buyer, o.ID)
	require.NoError(t, err)
	_, err = f.settlements.Release(ctx, f.seller, o.ID)
	assert.ErrorIs(t, err, escrow.ErrFrozen)
}

func TestService_OpenOnSettledEscrowRollsBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o, _ := f.placeOrder(t, 1)

	_, err := f.settlements.ConfirmDelivery(ctx, f.buyer, o.ID)
	require.NoError(t, err)
	_, err = f.settlements.Release(ctx, f.buyer, o.ID)
	require.NoError(t, err)

	_, err = f.svc.Open(ctx, f.buyer, OpenDisputeRequest{OrderID: o.ID, Reason: "wrong colour"})
	testutil.RequireKind(t, err, shared.KindStateConflict)
	assert.Zero(t, f.env.Count(t, &models.DisputeModel{}))
}

func TestService_ReviewFlowIsLogged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o, _ := f.placeOrder(t, 1)

	d, err := f.svc.Open(ctx, f.buyer, OpenDisputeRequest{OrderID: o.ID, Reason: "never arrived"})
	require.NoError(t, err)

	_, err = f.svc.Assign(ctx, f.buyer, d.ID, AssignRequest{AdminID: f.buyer.ID})
	testutil.RequireKind(t, err, shared.KindAuthorization)

	_, err = f.svc.AddEvidence(ctx, f.buyer, d.ID, EvidenceRequest{Note: "tracking number"})
	assert.ErrorIs(t, err, dispute.ErrEvidenceClosed)

	_, err = f.svc.Assign(ctx, f.manager, d.ID, AssignRequest{AdminID: f.manager.ID})
	require.NoError(t, err)
	collecting, err := f.svc.Advance(ctx, f.manager, d.ID, NoteRequest{Note: "requesting proof"})
	require.NoError(t, err)
	assert.Equal(t, "EVIDENCE_COLLECTION", collecting.Status)

	entry, err := f.svc.AddEvidence(ctx, f.buyer, d.ID, EvidenceRequest{Note: "tracking number"})
	require.NoError(t, err)
	assert.Equal(t, ActionEvidence, entry.Action)
	_, err = f.svc.AddEvidence(ctx, testutil.Customer(), d.ID, EvidenceRequest{Note: "me too"})
	assert.ErrorIs(t, err, dispute.ErrNotDisputeParty)

	log, err := f.svc.Log(ctx, f.seller, d.ID, 1, 50)
	require.NoError(t, err)
	require.Equal(t, int64(4), log.Total)
	actions := make([]string, len(log.Items))
	for i, e := range log.Items {
		actions[i] = e.Action
	}
	assert.Equal(t, []string{ActionOpened, ActionAssigned, ActionAdvanced, ActionEvidence}, actions)

	_, err = f.svc.Log(ctx, testutil.Customer(), d.ID, 1, 50)
	testutil.RequireKind(t, err, shared.KindNotFound)

	under, err := f.svc.List(ctx, f.manager, ListFilter{Status: "EVIDENCE_COLLECTION"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), under.Total)
	_, err = f.svc.List(ctx, f.seller, ListFilter{})
	testutil.RequireKind(t, err, shared.KindAuthorization)
}

func TestService_ResolveRequiresMetadata(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d, _, _ := f.inProgress(t, 1)

	_, err := f.svc.Resolve(ctx, f.manager, d.ID, ResolveRequest{Resolution: "REFUND", Summary: "  "})
	assert.ErrorIs(t, err, dispute.ErrMissingMetadata)

	_, err = f.svc.Resolve(ctx, f.manager, d.ID, ResolveRequest{Resolution: "PARTIAL_REFUND", Summary: "split"})
	assert.ErrorIs(t, err, dispute.ErrInvalidRefundAmt)

	_, err = f.svc.Resolve(ctx, testutil.Admin(""), d.ID, ResolveRequest{Resolution: "REFUND", Summary: "x"})
	testutil.RequireKind(t, err, shared.KindAuthorization)

	got, err := f.svc.Get(ctx, f.buyer, d.ID)
	require.NoError(t, err)
	assert.Equal(t, "IN_PROGRESS", got.Status)
}

func TestService_ResolveRefund(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d, o, txID := f.inProgress(t, 3)
	require.Equal(t, int64(47), f.allocationRemaining(t))

	resolved, err := f.svc.Resolve(ctx, f.manager, d.ID, ResolveRequest{
		Resolution: "REFUND",
		Summary:    "goods unusable",
		Attributes: map[string]string{"carrier": "acme"},
	})
	require.NoError(t, err)
	assert.Equal(t, "RESOLVED", resolved.Status)
	assert.Equal(t, "REFUND", resolved.Resolution)
	require.NotNil(t, resolved.Metadata)
	assert.Equal(t, "acme", resolved.Metadata.Attributes["carrier"])

	e := f.escrowOf(t, o.ID)
	assert.Equal(t, escrow.StatusRefunded, e.Status)
	assert.NotEmpty(t, e.RefundConfirmation)
	assert.True(t, decimal.NewFromInt(60).Equal(f.env.Gateway.Refunded(txID)))
	assert.Equal(t, int64(50), f.allocationRemaining(t))

	closed, err := f.svc.Close(ctx, f.buyer, d.ID)
	require.NoError(t, err)
	assert.Equal(t, "CLOSED", closed.Status)
	assert.NotNil(t, closed.ClosedAt)

	_, err = f.svc.Close(ctx, f.buyer, d.ID)
	testutil.RequireKind(t, err, shared.KindStateConflict)

	log := f.env.AuditEntries(t, audit.StreamDisputeLog, d.ID)
	assert.Equal(t, ActionClosed, log[len(log)-1].Action)
}

func TestService_ResolveRefundAfterDeliveryRestoresUnits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o, txID := f.placeOrder(t, 4)
	_, err := f.settlements.ConfirmDelivery(ctx, f.buyer, o.ID)
	require.NoError(t, err)
	require.Equal(t, int64(46), f.allocationRemaining(t))

	d, err := f.svc.Open(ctx, f.buyer, OpenDisputeRequest{OrderID: o.ID, Reason: "wrong model delivered"})
	require.NoError(t, err)
	_, err = f.svc.Assign(ctx, f.manager, d.ID, AssignRequest{AdminID: f.manager.ID})
	require.NoError(t, err)
	_, err = f.svc.Advance(ctx, f.manager, d.ID, NoteRequest{})
	require.NoError(t, err)
	_, err = f.svc.Advance(ctx, f.manager, d.ID, NoteRequest{Note: "photos match the complaint"})
	require.NoError(t, err)

	_, err = f.svc.Resolve(ctx, f.manager, d.ID, ResolveRequest{Resolution: "REFUND", Summary: "full refund"})
	require.NoError(t, err)

	assert.Equal(t, escrow.StatusRefunded, f.escrowOf(t, o.ID).Status)
	assert.True(t, decimal.NewFromInt(80).Equal(f.env.Gateway.Refunded(txID)))
	assert.Equal(t, int64(50), f.allocationRemaining(t))

	var order models.OrderModel
	require.NoError(t, f.env.DB.First(&order, "id = ?", o.ID).Error)
	assert.Equal(t, listing.OrderCancelled, order.Status)
	assert.Equal(t, int64(4), order.CancelledQuantity)
}

func TestService_ResolvePartialRefundReleasesRest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d, o, txID := f.inProgress(t, 3)

	amount := decimal.NewFromInt(20)
	_, err := f.svc.Resolve(ctx, f.manager, d.ID, ResolveRequest{
		Resolution:   "PARTIAL_REFUND",
		Summary:      "one carton damaged",
		RefundAmount: &amount,
	})
	require.NoError(t, err)

	e := f.escrowOf(t, o.ID)
	assert.Equal(t, escrow.StatusReleased, e.Status)
	assert.True(t, decimal.NewFromInt(37).Equal(e.DealerAmount))
	assert.True(t, decimal.NewFromInt(20).Equal(e.RefundedAmount))
	assert.True(t, decimal.NewFromInt(20).Equal(f.env.Gateway.Refunded(txID)))
	assert.Equal(t, int64(47), f.allocationRemaining(t))
}

func TestService_ResolveReleaseOverridesFreeze(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d, o, txID := f.inProgress(t, 2)

	_, err := f.svc.Resolve(ctx, f.manager, d.ID, ResolveRequest{Resolution: "RELEASE", Summary: "claim unfounded"})
	require.NoError(t, err)

	e := f.escrowOf(t, o.ID)
	assert.Equal(t, escrow.StatusReleased, e.Status)
	assert.True(t, e.ForceReleaseApproved)
	assert.True(t, f.env.Gateway.Refunded(txID).IsZero())

	settlements := f.env.AuditEntries(t, audit.StreamSettlement, o.ID)
	var released int
	for _, entry := range settlements {
		if entry.Action == escrowapp.ActionReleased {
			released++
		}
	}
	assert.Equal(t, 1, released)
}
