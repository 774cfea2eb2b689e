package escrow

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wholesale/backend/internal/application/txn"
	"github.com/wholesale/backend/internal/domain/audit"
	"github.com/wholesale/backend/internal/domain/collaboration"
	"github.com/wholesale/backend/internal/domain/escrow"
	"github.com/wholesale/backend/internal/domain/listing"
	"github.com/wholesale/backend/internal/domain/shared"
	"github.com/wholesale/backend/internal/infrastructure/persistence/models"
	"github.com/wholesale/backend/internal/testutil"
)

type fixture struct {
	env          *testutil.Env
	svc          *Service
	seller       shared.Actor
	buyer        shared.Actor
	allocationID uuid.UUID
}

func newFixture(t *testing.T) fixture {
	env := testutil.NewEnv(t)
	seller := env.SeedSeller(t, true)
	return fixture{
		env:          env,
		svc:          NewService(env.Scope, env.Gateway, nil, testutil.DefaultFeeRate, "usd"),
		seller:       seller,
		buyer:        testutil.Customer(),
		allocationID: env.SeedAllocation(t, seller, 50, "10.00").ID,
	}
}

// placeOrder sells quantity units at 20.00 each and holds the captured total
func (f fixture) placeOrder(t *testing.T, quantity int64) *listing.Order {
	t.Helper()
	ctx := context.Background()
	var o *listing.Order
	err := f.env.Scope.Execute(ctx, func(repos txn.Repositories) error {
		a, err := repos.Allocations().FindByID(ctx, f.allocationID)
		if err != nil {
			return err
		}
		l, err := repos.Listings().FindByAllocationAndSeller(ctx, a.ID, f.seller.ID)
		if shared.IsKind(err, shared.KindNotFound) {
			if l, err = listing.NewListing(a, f.seller, decimal.NewFromInt(20)); err != nil {
				return err
			}
			err = repos.Listings().Create(ctx, l)
		}
		if err != nil {
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
	_, err = f.svc.Hold(ctx, f.buyer.ID, o, capture)
	require.NoError(t, err)
	return o
}

func (f fixture) allocationRemaining(t *testing.T) int64 {
	t.Helper()
	var a models.AllocationModel
	require.NoError(t, f.env.DB.First(&a, "id = ?", f.allocationID).Error)
	return a.RemainingQuantity
}

func countActions(entries []audit.Entry, action string) int {
	n := 0
	for _, e := range entries {
		if e.Action == action {
			n++
		}
	}
	return n
}

func TestService_HoldSplitsFee(t *testing.T) {
	f := newFixture(t)
	o := f.placeOrder(t, 3)

	e, err := f.svc.Get(context.Background(), f.seller, o.ID)
	require.NoError(t, err)
	assert.Equal(t, "HOLD", e.Status)
	assert.True(t, decimal.NewFromInt(60).Equal(e.Amount))
	assert.True(t, decimal.NewFromInt(3).Equal(e.PlatformFee))
	assert.True(t, decimal.NewFromInt(57).Equal(e.DealerAmount))

	_, err = f.svc.Get(context.Background(), testutil.Customer(), o.ID)
	testutil.RequireKind(t, err, shared.KindNotFound)
}

func TestService_ReleaseTwiceWritesOnePayout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.placeOrder(t, 2)

	_, err := f.svc.Release(ctx, f.seller, o.ID)
	assert.ErrorIs(t, err, escrow.ErrConditionNotMet)

	_, err = f.svc.ConfirmDelivery(ctx, f.seller, o.ID)
	testutil.RequireKind(t, err, shared.KindAuthorization)

	confirmed, err := f.svc.ConfirmDelivery(ctx, f.buyer, o.ID)
	require.NoError(t, err)
	require.NotNil(t, confirmed.DeliveryConfirmedAt)

	_, err = f.svc.Release(ctx, testutil.Customer(), o.ID)
	assert.ErrorIs(t, err, escrow.ErrNotEscrowParty)

	first, err := f.svc.Release(ctx, f.seller, o.ID)
	require.NoError(t, err)
	assert.Equal(t, "RELEASED", first.Status)

	second, err := f.svc.Release(ctx, f.buyer, o.ID)
	require.NoError(t, err)
	assert.Equal(t, "RELEASED", second.Status)

	entries := f.env.AuditEntries(t, audit.StreamSettlement, o.ID)
	assert.Equal(t, 1, countActions(entries, ActionReleased))

	var order models.OrderModel
	require.NoError(t, f.env.DB.First(&order, "id = ?", o.ID).Error)
	assert.Equal(t, listing.OrderDelivered, order.Status)

	_, err = f.svc.Refund(ctx, f.seller, o.ID, RefundRequest{})
	assert.ErrorIs(t, err, escrow.ErrAlreadyReleased)
}

func TestService_RefundRestoresOutstandingUnits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.placeOrder(t, 5)
	require.Equal(t, int64(45), f.allocationRemaining(t))

	_, err := f.svc.Refund(ctx, f.buyer, o.ID, RefundRequest{})
	testutil.RequireKind(t, err, shared.KindAuthorization)

	refunded, err := f.svc.Refund(ctx, f.seller, o.ID, RefundRequest{Reason: "out of stock"})
	require.NoError(t, err)
	assert.Equal(t, "REFUNDED", refunded.Status)
	assert.NotEmpty(t, refunded.RefundConfirmation)
	assert.Equal(t, int64(50), f.allocationRemaining(t))

	var e models.EscrowModel
	require.NoError(t, f.env.DB.First(&e, "order_id = ?", o.ID).Error)
	assert.True(t, decimal.NewFromInt(100).Equal(f.env.Gateway.Refunded(e.TransactionID)))

	again, err := f.svc.Refund(ctx, testutil.Admin(shared.AdminFinance), o.ID, RefundRequest{})
	require.NoError(t, err)
	assert.Equal(t, "REFUNDED", again.Status)
	assert.True(t, decimal.NewFromInt(100).Equal(f.env.Gateway.Refunded(e.TransactionID)))
	assert.Equal(t, int64(50), f.allocationRemaining(t))

	_, err = f.svc.Release(ctx, f.seller, o.ID)
	assert.ErrorIs(t, err, escrow.ErrAlreadyRefunded)
}

func TestService_FrozenEscrowCannotRelease(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.placeOrder(t, 1)
	_, err := f.svc.ConfirmDelivery(ctx, f.buyer, o.ID)
	require.NoError(t, err)

	require.NoError(t, f.env.Scope.Execute(ctx, func(repos txn.Repositories) error {
		return FreezeWithin(ctx, repos, f.buyer.ID, o.ID)
	}))
	err = f.env.Scope.Execute(ctx, func(repos txn.Repositories) error {
		return FreezeWithin(ctx, repos, f.buyer.ID, o.ID)
	})
	assert.ErrorIs(t, err, escrow.ErrFrozen)

	_, err = f.svc.Release(ctx, f.seller, o.ID)
	assert.ErrorIs(t, err, escrow.ErrFrozen)

	require.NoError(t, f.env.Scope.Execute(ctx, func(repos txn.Repositories) error {
		return UnfreezeWithin(ctx, repos, f.buyer.ID, o.ID, false)
	}))
	released, err := f.svc.Release(ctx, f.seller, o.ID)
	require.NoError(t, err)
	assert.Equal(t, "RELEASED", released.Status)
}

func TestService_PartialRefundKeepsFee(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.placeOrder(t, 4)

	var pending *PendingRefund
	require.NoError(t, f.env.Scope.Execute(ctx, func(repos txn.Repositories) error {
		var err error
		pending, err = PartialRefundWithin(ctx, repos, f.seller.ID, o.ID, decimal.NewFromInt(30), "damaged")
		return err
	}))
	assert.NotEmpty(t, f.svc.PayBack(ctx, f.seller.ID, *pending))

	e, err := f.svc.Get(ctx, f.buyer, o.ID)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(4).Equal(e.PlatformFee))
	assert.True(t, decimal.NewFromInt(46).Equal(e.DealerAmount))
	assert.True(t, decimal.NewFromInt(30).Equal(e.RefundedAmount))
	assert.Equal(t, int64(46), f.allocationRemaining(t))

	err = f.env.Scope.Execute(ctx, func(repos txn.Repositories) error {
		_, err := PartialRefundWithin(ctx, repos, f.seller.ID, o.ID, decimal.NewFromInt(47), "")
		return err
	})
	assert.ErrorIs(t, err, escrow.ErrRefundExceedsHeld)
}

// groupWithContributions joins sellers to a fresh group with one unit each
// and opens their contributions at price
func groupWithContributions(t *testing.T, env *testutil.Env, price string, sellers ...shared.Actor) uuid.UUID {
	t.Helper()
	ctx := context.Background()
	g, err := collaboration.NewGroup(sellers[0].ID, "custom", int64(len(sellers)), time.Now().Add(30*24*time.Hour), nil)
	require.NoError(t, err)
	require.NoError(t, env.Scope.Execute(ctx, func(repos txn.Repositories) error {
		if err := repos.Groups().Create(ctx, g); err != nil {
			return err
		}
		for _, s := range sellers {
			if _, _, err := repos.Groups().Join(ctx, g.ID, s.ID, 1); err != nil {
				return err
			}
		}
		participants, err := repos.Groups().FindParticipants(ctx, g.ID)
		if err != nil {
			return err
		}
		contributions, err := collaboration.BuildContributions(g.ID, uuid.New(), participants, decimal.RequireFromString(price))
		if err != nil {
			return err
		}
		return repos.Contributions().CreateBatch(ctx, contributions)
	}))
	return g.ID
}

func TestService_CustomEscrowGroupPhases(t *testing.T) {
	env := testutil.NewEnv(t)
	svc := NewService(env.Scope, env.Gateway, nil, testutil.DefaultFeeRate, "usd")
	ctx := context.Background()
	manufacturer := testutil.Manufacturer()
	sellers := []shared.Actor{env.SeedSeller(t, true), env.SeedSeller(t, true), env.SeedSeller(t, true)}
	groupID := groupWithContributions(t, env, "10", sellers...)

	_, err := svc.CreateCustom(ctx, testutil.Manufacturer(), CreateCustomEscrowRequest{
		CustomRequestID: uuid.New(), ManufacturerID: manufacturer.ID, TotalAmount: decimal.NewFromInt(100), GroupID: &groupID,
	})
	testutil.RequireKind(t, err, shared.KindAuthorization)

	created, err := svc.CreateCustom(ctx, manufacturer, CreateCustomEscrowRequest{
		CustomRequestID:   uuid.New(),
		ManufacturerID:    manufacturer.ID,
		TotalAmount:       decimal.NewFromInt(100),
		AdvancePercentage: decimal.NewFromInt(30),
		GroupID:           &groupID,
	})
	require.NoError(t, err)
	assert.Equal(t, "CREATED", created.Status)
	assert.True(t, decimal.NewFromInt(30).Equal(created.AdvanceAmount))
	require.Len(t, created.Payers, 3)
	shares, advances := decimal.Zero, decimal.Zero
	for _, p := range created.Payers {
		shares = shares.Add(p.ShareAmount)
		advances = advances.Add(p.AdvanceShare)
	}
	assert.True(t, decimal.NewFromInt(100).Equal(shares))
	assert.True(t, decimal.NewFromInt(30).Equal(advances))

	_, err = svc.PayBalance(ctx, sellers[0], created.ID, PayShareRequest{})
	testutil.RequireKind(t, err, shared.KindStateConflict)

	resp, err := svc.PayAdvance(ctx, sellers[0], created.ID, PayShareRequest{})
	require.NoError(t, err)
	assert.Equal(t, "ADVANCE_PENDING", resp.Status)

	_, err = svc.PayAdvance(ctx, sellers[0], created.ID, PayShareRequest{})
	assert.ErrorIs(t, err, escrow.ErrAlreadyPaid)

	for _, s := range sellers[1:] {
		resp, err = svc.PayAdvance(ctx, s, created.ID, PayShareRequest{})
		require.NoError(t, err)
	}
	assert.Equal(t, "ADVANCE_PAID", resp.Status)

	_, err = svc.ReleaseCustom(ctx, sellers[0], created.ID)
	testutil.RequireKind(t, err, shared.KindStateConflict)

	for _, s := range sellers {
		resp, err = svc.PayBalance(ctx, s, created.ID, PayShareRequest{})
		require.NoError(t, err)
	}
	assert.Equal(t, "BALANCE_PAID", resp.Status)

	released, err := svc.ReleaseCustom(ctx, sellers[1], created.ID)
	require.NoError(t, err)
	assert.Equal(t, "RELEASED", released.Status)
	_, err = svc.ReleaseCustom(ctx, testutil.Admin(shared.AdminFinance), created.ID)
	require.NoError(t, err)

	entries := env.AuditEntries(t, audit.StreamSettlement, created.ID)
	assert.Equal(t, 1, countActions(entries, ActionCustomReleased))
	assert.Equal(t, 3, countActions(entries, ActionAdvancePaid))

	_, err = svc.RefundCustom(ctx, manufacturer, created.ID, RefundRequest{})
	assert.ErrorIs(t, err, escrow.ErrAlreadyReleased)
}

func TestService_CustomEscrowRefundReversesCaptures(t *testing.T) {
	env := testutil.NewEnv(t)
	svc := NewService(env.Scope, env.Gateway, nil, testutil.DefaultFeeRate, "usd")
	ctx := context.Background()
	manufacturer := testutil.Manufacturer()
	buyer := testutil.Customer()

	created, err := svc.CreateCustom(ctx, manufacturer, CreateCustomEscrowRequest{
		CustomRequestID:   uuid.New(),
		ManufacturerID:    manufacturer.ID,
		TotalAmount:       decimal.RequireFromString("250.00"),
		AdvancePercentage: decimal.NewFromInt(40),
		BuyerID:           &buyer.ID,
	})
	require.NoError(t, err)

	_, err = svc.PayAdvance(ctx, testutil.Customer(), created.ID, PayShareRequest{})
	assert.ErrorIs(t, err, escrow.ErrNotParticipant)

	paid, err := svc.PayAdvance(ctx, buyer, created.ID, PayShareRequest{})
	require.NoError(t, err)
	assert.Equal(t, "ADVANCE_PAID", paid.Status)

	_, err = svc.RefundCustom(ctx, buyer, created.ID, RefundRequest{})
	testutil.RequireKind(t, err, shared.KindAuthorization)

	refunded, err := svc.RefundCustom(ctx, manufacturer, created.ID, RefundRequest{Reason: "cancelled"})
	require.NoError(t, err)
	assert.Equal(t, "REFUNDED", refunded.Status)

	var payer models.CustomEscrowPaymentModel
	require.NoError(t, env.DB.First(&payer, "escrow_id = ?", created.ID).Error)
	assert.NotEmpty(t, payer.AdvanceRefundID)
	assert.True(t, decimal.NewFromInt(100).Equal(env.Gateway.Refunded(payer.AdvanceTransactionID)))

	_, err = svc.RefundCustom(ctx, manufacturer, created.ID, RefundRequest{})
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(100).Equal(env.Gateway.Refunded(payer.AdvanceTransactionID)))
}

func createBuyerEscrow(t *testing.T, svc *Service, buyer shared.Actor) *CustomEscrowResponse {
	t.Helper()
	manufacturer := testutil.Manufacturer()
	created, err := svc.CreateCustom(context.Background(), manufacturer, CreateCustomEscrowRequest{
		CustomRequestID:   uuid.New(),
		ManufacturerID:    manufacturer.ID,
		TotalAmount:       decimal.NewFromInt(100),
		AdvancePercentage: decimal.NewFromInt(30),
		BuyerID:           &buyer.ID,
	})
	require.NoError(t, err)
	return created
}

func TestService_ConcurrentAdvancePaymentsKeepRecordedCapture(t *testing.T) {
	env := testutil.NewEnv(t)
	gateway := env.HookGateway()
	gateway.AfterCapture = testutil.CaptureBarrier(2)
	svc := NewService(env.Scope, gateway, nil, testutil.DefaultFeeRate, "usd")
	ctx := context.Background()
	buyer := testutil.Customer()
	created := createBuyerEscrow(t, svc, buyer)

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.PayAdvance(ctx, buyer, created.ID, PayShareRequest{})
		}(i)
	}
	wg.Wait()

	failures := 0
	for _, err := range errs {
		if err != nil {
			assert.ErrorIs(t, err, escrow.ErrAlreadyPaid)
			failures++
		}
	}
	assert.Equal(t, 1, failures)

	var payer models.CustomEscrowPaymentModel
	require.NoError(t, env.DB.First(&payer, "escrow_id = ?", created.ID).Error)
	assert.True(t, payer.AdvancePaid)
	assert.True(t, env.Gateway.Refunded(payer.AdvanceTransactionID).IsZero(), "recorded advance must stay captured")

	captures := gateway.Captures()
	require.Len(t, captures, 2)
	assert.NotEqual(t, captures[0], captures[1])
	for _, id := range captures {
		if id != payer.AdvanceTransactionID {
			assert.True(t, decimal.NewFromInt(30).Equal(env.Gateway.Refunded(id)))
		}
	}
	entries := env.AuditEntries(t, audit.StreamSettlement, created.ID)
	assert.Equal(t, 1, countActions(entries, ActionAdvancePaid))
}

func TestService_AdvanceRetryAfterReversedCaptureChargesAgain(t *testing.T) {
	env := testutil.NewEnv(t)
	gateway := env.HookGateway()
	svc := NewService(env.Scope, gateway, nil, testutil.DefaultFeeRate, "usd")
	ctx := context.Background()
	buyer := testutil.Customer()
	created := createBuyerEscrow(t, svc, buyer)

	setStatus := func(status escrow.CustomStatus) {
		require.NoError(t, env.DB.Model(&models.CustomEscrowModel{}).
			Where("id = ?", created.ID).Update("status", status).Error)
	}
	gateway.AfterCapture = func(*escrow.Capture) { setStatus(escrow.CustomRefunded) }
	_, err := svc.PayAdvance(ctx, buyer, created.ID, PayShareRequest{})
	testutil.RequireKind(t, err, shared.KindStateConflict)

	gateway.AfterCapture = nil
	setStatus(escrow.CustomCreated)
	paid, err := svc.PayAdvance(ctx, buyer, created.ID, PayShareRequest{})
	require.NoError(t, err)
	assert.Equal(t, "ADVANCE_PAID", paid.Status)

	captures := gateway.Captures()
	require.Len(t, captures, 2)
	assert.True(t, decimal.NewFromInt(30).Equal(env.Gateway.Refunded(captures[0])))

	var payer models.CustomEscrowPaymentModel
	require.NoError(t, env.DB.First(&payer, "escrow_id = ?", created.ID).Error)
	assert.Equal(t, captures[1], payer.AdvanceTransactionID)
	assert.True(t, env.Gateway.Refunded(payer.AdvanceTransactionID).IsZero())
}

func TestService_CustomEscrowNeedsOnePayerSource(t *testing.T) {
	env := testutil.NewEnv(t)
	svc := NewService(env.Scope, env.Gateway, nil, testutil.DefaultFeeRate, "usd")
	manufacturer := testutil.Manufacturer()

	_, err := svc.CreateCustom(context.Background(), manufacturer, CreateCustomEscrowRequest{
		CustomRequestID: uuid.New(),
		ManufacturerID:  manufacturer.ID,
		TotalAmount:     decimal.NewFromInt(10),
	})
	testutil.RequireKind(t, err, shared.KindValidation)
}
