package listing

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	escrowapp "github.com/wholesale/backend/internal/application/escrow"
	"github.com/wholesale/backend/internal/domain/allocation"
	"github.com/wholesale/backend/internal/domain/audit"
	"github.com/wholesale/backend/internal/domain/escrow"
	"github.com/wholesale/backend/internal/domain/listing"
	"github.com/wholesale/backend/internal/domain/shared"
	"github.com/wholesale/backend/internal/infrastructure/persistence/models"
	"github.com/wholesale/backend/internal/testutil"
)

type fixture struct {
	env    *testutil.Env
	svc    *Service
	seller shared.Actor
	buyer  shared.Actor
	alloc  *allocation.Allocation
}

func newFixture(t *testing.T, quantity int64) fixture {
	env := testutil.NewEnv(t)
	seller := env.SeedSeller(t, true)
	return fixture{
		env:    env,
		svc:    NewService(env.Scope, env.Gateway, escrowapp.NewService(env.Scope, env.Gateway, nil, testutil.DefaultFeeRate, "usd"), "usd"),
		seller: seller,
		buyer:  testutil.Customer(),
		alloc:  env.SeedAllocation(t, seller, quantity, "9.00"),
	}
}

func (f fixture) list(t *testing.T, price string) *ListingResponse {
	t.Helper()
	l, err := f.svc.List(context.Background(), f.seller, CreateListingRequest{
		AllocationID: f.alloc.ID,
		RetailPrice:  decimal.RequireFromString(price),
	})
	require.NoError(t, err)
	return l
}

func (f fixture) remaining(t *testing.T, listingID uuid.UUID) (int64, int64) {
	t.Helper()
	var l models.ListingModel
	require.NoError(t, f.env.DB.First(&l, "id = ?", listingID).Error)
	var a models.AllocationModel
	require.NoError(t, f.env.DB.First(&a, "id = ?", f.alloc.ID).Error)
	return l.RemainingQuantity, a.RemainingQuantity
}

func TestService_ListEnforcesMinRetailPrice(t *testing.T) {
	f := newFixture(t, 100)
	ctx := context.Background()

	_, err := f.svc.List(ctx, f.seller, CreateListingRequest{
		AllocationID: f.alloc.ID,
		RetailPrice:  decimal.RequireFromString("9.30"),
	})
	assert.ErrorIs(t, err, listing.ErrPriceTooLow)

	l := f.list(t, "9.45")
	assert.True(t, l.Active)
	assert.Equal(t, int64(100), l.RemainingQuantity)

	_, err = f.svc.UpdatePrice(ctx, f.seller, l.ID, UpdatePriceRequest{RetailPrice: decimal.RequireFromString("9.44")})
	assert.ErrorIs(t, err, listing.ErrPriceTooLow)

	other := f.env.SeedSeller(t, true)
	_, err = f.svc.UpdatePrice(ctx, other, l.ID, UpdatePriceRequest{RetailPrice: decimal.NewFromInt(12)})
	assert.ErrorIs(t, err, listing.ErrNotOwner)

	_, err = f.svc.List(ctx, other, CreateListingRequest{AllocationID: f.alloc.ID, RetailPrice: decimal.NewFromInt(12)})
	testutil.RequireKind(t, err, shared.KindAuthorization)
}

func TestService_DelistAndRelist(t *testing.T) {
	f := newFixture(t, 50)
	ctx := context.Background()
	l := f.list(t, "10.00")

	delisted, err := f.svc.Delist(ctx, f.seller, l.ID)
	require.NoError(t, err)
	assert.False(t, delisted.Active)

	_, err = f.svc.Checkout(ctx, f.buyer, CheckoutRequest{ListingID: l.ID, Quantity: 1})
	assert.ErrorIs(t, err, listing.ErrNotLive)

	relisted := f.list(t, "11.00")
	assert.Equal(t, l.ID, relisted.ID)
	assert.True(t, relisted.Active)
	assert.True(t, decimal.NewFromInt(11).Equal(relisted.RetailPrice))

	mine, err := f.svc.ListMine(ctx, f.seller, ListFilter{Status: "ACTIVE"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), mine.Total)
}

func TestService_CheckoutHoldsFundsInEscrow(t *testing.T) {
	f := newFixture(t, 100)
	ctx := context.Background()
	l := f.list(t, "9.45")

	resp, err := f.svc.Checkout(ctx, f.buyer, CheckoutRequest{
		ListingID: l.ID,
		Quantity:  10,
		TaxAmount: decimal.RequireFromString("1.50"),
	})
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("96.00").Equal(resp.Order.TotalAmount))
	assert.Equal(t, "HOLD", resp.EscrowStatus)
	assert.True(t, decimal.RequireFromString("4.80").Equal(resp.PlatformFee))
	assert.True(t, decimal.RequireFromString("91.20").Equal(resp.DealerAmount))

	listingLeft, allocationLeft := f.remaining(t, l.ID)
	assert.Equal(t, int64(90), listingLeft)
	assert.Equal(t, int64(90), allocationLeft)

	entries := f.env.AuditEntries(t, audit.StreamSettlement, resp.Order.ID)
	require.Len(t, entries, 1)
	assert.Equal(t, escrowapp.ActionHeld, entries[0].Action)

	got, err := f.svc.GetOrder(ctx, f.seller, resp.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, "PLACED", got.Status)
	_, err = f.svc.GetOrder(ctx, testutil.Customer(), resp.Order.ID)
	testutil.RequireKind(t, err, shared.KindNotFound)

	orders, err := f.svc.ListOrders(ctx, f.buyer, ListFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), orders.Total)
}

func TestService_CheckoutRejections(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()
	l := f.list(t, "9.45")

	_, err := f.svc.Checkout(ctx, f.buyer, CheckoutRequest{ListingID: l.ID, Quantity: 6})
	testutil.RequireKind(t, err, shared.KindCapacity)

	_, err = f.svc.Checkout(ctx, f.seller, CheckoutRequest{ListingID: l.ID, Quantity: 1})
	testutil.RequireKind(t, err, shared.KindValidation)

	_, err = f.svc.Checkout(ctx, testutil.Manufacturer(), CheckoutRequest{ListingID: l.ID, Quantity: 1})
	testutil.RequireKind(t, err, shared.KindAuthorization)

	assert.Zero(t, f.env.Count(t, &models.OrderModel{}))
	listingLeft, allocationLeft := f.remaining(t, l.ID)
	assert.Equal(t, int64(5), listingLeft)
	assert.Equal(t, int64(5), allocationLeft)
}

func TestService_CheckoutDepletesAllocation(t *testing.T) {
	f := newFixture(t, 3)
	l := f.list(t, "9.45")

	_, err := f.svc.Checkout(context.Background(), f.buyer, CheckoutRequest{ListingID: l.ID, Quantity: 3})
	require.NoError(t, err)

	var a models.AllocationModel
	require.NoError(t, f.env.DB.First(&a, "id = ?", f.alloc.ID).Error)
	assert.Equal(t, allocation.StatusDepleted, a.Status)
	assert.Equal(t, int64(1), f.env.Count(t, &models.OutboxEntryModel{}, "event_type = ?", allocation.EventTypeDepleted))
}

func TestService_DeclinedCaptureReturnsStock(t *testing.T) {
	f := newFixture(t, 20)
	ctx := context.Background()
	l := f.list(t, "9.45")

	f.env.Gateway.Decline(f.buyer.ID)
	_, err := f.svc.Checkout(ctx, f.buyer, CheckoutRequest{ListingID: l.ID, Quantity: 7})
	testutil.RequireKind(t, err, shared.KindValidation)

	listingLeft, allocationLeft := f.remaining(t, l.ID)
	assert.Equal(t, int64(20), listingLeft)
	assert.Equal(t, int64(20), allocationLeft)
	assert.Equal(t, int64(1), f.env.Count(t, &models.OrderModel{}, "status = ?", listing.OrderCancelled))
	assert.Zero(t, f.env.Count(t, &models.EscrowModel{}))
}

func TestService_GatewayOfflineIsConflict(t *testing.T) {
	f := newFixture(t, 20)
	l := f.list(t, "9.45")

	f.env.Gateway.SetOffline(true)
	_, err := f.svc.Checkout(context.Background(), f.buyer, CheckoutRequest{ListingID: l.ID, Quantity: 2})
	testutil.RequireKind(t, err, shared.KindStateConflict)

	listingLeft, _ := f.remaining(t, l.ID)
	assert.Equal(t, int64(20), listingLeft)
}

func TestService_CancelOrderRestoresExactly(t *testing.T) {
	f := newFixture(t, 100)
	ctx := context.Background()
	l := f.list(t, "9.45")
	placed, err := f.svc.Checkout(ctx, f.buyer, CheckoutRequest{
		ListingID: l.ID,
		Quantity:  10,
		TaxAmount: decimal.RequireFromString("1.50"),
	})
	require.NoError(t, err)
	orderID := placed.Order.ID

	partial, err := f.svc.CancelOrder(ctx, f.buyer, orderID, CancelOrderRequest{Quantity: 4})
	require.NoError(t, err)
	assert.Equal(t, "PARTIALLY_CANCELLED", partial.Order.Status)
	assert.True(t, decimal.RequireFromString("38.40").Equal(partial.RefundAmount))
	assert.NotEmpty(t, partial.Confirmation)

	listingLeft, allocationLeft := f.remaining(t, l.ID)
	assert.Equal(t, int64(94), listingLeft)
	assert.Equal(t, int64(94), allocationLeft)

	var e models.EscrowModel
	require.NoError(t, f.env.DB.First(&e, "order_id = ?", orderID).Error)
	assert.True(t, decimal.RequireFromString("52.80").Equal(e.DealerAmount))
	assert.Equal(t, escrow.StatusHold, e.Status)

	_, err = f.svc.CancelOrder(ctx, f.buyer, orderID, CancelOrderRequest{Quantity: 7})
	testutil.RequireKind(t, err, shared.KindValidation)

	rest, err := f.svc.CancelOrder(ctx, f.seller, orderID, CancelOrderRequest{Quantity: 6})
	require.NoError(t, err)
	assert.Equal(t, "CANCELLED", rest.Order.Status)
	assert.True(t, decimal.RequireFromString("57.60").Equal(rest.RefundAmount))
	assert.True(t, decimal.RequireFromString("96.00").Equal(f.env.Gateway.Refunded(placed.TransactionID)))

	listingLeft, allocationLeft = f.remaining(t, l.ID)
	assert.Equal(t, int64(100), listingLeft)
	assert.Equal(t, int64(100), allocationLeft)

	require.NoError(t, f.env.DB.First(&e, "order_id = ?", orderID).Error)
	assert.Equal(t, escrow.StatusRefunded, e.Status)

	_, err = f.svc.CancelOrder(ctx, f.buyer, orderID, CancelOrderRequest{Quantity: 1})
	testutil.RequireKind(t, err, shared.KindStateConflict)

	_, err = f.svc.CancelOrder(ctx, testutil.Customer(), orderID, CancelOrderRequest{Quantity: 1})
	testutil.RequireKind(t, err, shared.KindAuthorization)
}
