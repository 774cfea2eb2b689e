package persistence

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wholesale/backend/internal/domain/listing"
	"github.com/wholesale/backend/internal/domain/shared"
)

func TestGormListingRepository_ConsumeAndRestore(t *testing.T) {
	db := newTestDB(t)
	ledger := NewGormAllocationLedger(db, nil)
	repo := NewGormListingRepository(db)
	ctx := context.Background()

	a := newLedgerAllocation(t, uuid.New(), uuid.New(), 30)
	require.NoError(t, ledger.Create(ctx, a))
	seller := shared.NewActor(a.SellerID, shared.RoleSeller)
	l, err := listing.NewListing(a, seller, decimal.NewFromInt(1000))
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, l))

	dup, err := listing.NewListing(a, seller, decimal.NewFromInt(1000))
	require.NoError(t, err)
	assert.True(t, shared.IsKind(repo.Create(ctx, dup), shared.KindDuplicate))

	require.NoError(t, repo.Consume(ctx, l.ID, 25))
	assert.ErrorIs(t, repo.Consume(ctx, l.ID, 6), shared.ErrInsufficientStock)

	require.NoError(t, repo.Restore(ctx, l.ID, 10))
	stored, err := repo.FindByID(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(15), stored.SoldQuantity)
	assert.Equal(t, int64(15), stored.RemainingQuantity)
	assert.NoError(t, stored.CheckInvariant())

	require.NoError(t, stored.Delist(seller))
	require.NoError(t, repo.SaveWithLock(ctx, stored))
	assert.ErrorIs(t, repo.Consume(ctx, l.ID, 1), listing.ErrNotLive)

	found, err := repo.FindByAllocationAndSeller(ctx, a.ID, a.SellerID)
	require.NoError(t, err)
	assert.Equal(t, l.ID, found.ID)

	f := shared.DefaultFilter()
	f.Filters["active"] = false
	offline, total, err := repo.FindBySeller(ctx, a.SellerID, f)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Len(t, offline, 1)
}

func TestGormListingRepository_SaveWithStaleVersion(t *testing.T) {
	db := newTestDB(t)
	repo := NewGormListingRepository(db)
	ctx := context.Background()
	a := newLedgerAllocation(t, uuid.New(), uuid.New(), 10)
	seller := shared.NewActor(a.SellerID, shared.RoleSeller)
	l, err := listing.NewListing(a, seller, decimal.NewFromInt(1000))
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, l))

	first, err := repo.FindByID(ctx, l.ID)
	require.NoError(t, err)
	second, err := repo.FindByID(ctx, l.ID)
	require.NoError(t, err)

	require.NoError(t, first.Delist(seller))
	require.NoError(t, repo.SaveWithLock(ctx, first))
	require.NoError(t, second.Delist(seller))
	assert.ErrorIs(t, repo.SaveWithLock(ctx, second), shared.ErrConcurrencyConflict)
}

func TestGormOrderRepository_PartialCancel(t *testing.T) {
	db := newTestDB(t)
	orders := NewGormOrderRepository(db)
	ctx := context.Background()

	a := newLedgerAllocation(t, uuid.New(), uuid.New(), 30)
	l, err := listing.NewListing(a, shared.NewActor(a.SellerID, shared.RoleSeller), decimal.NewFromInt(1000))
	require.NoError(t, err)
	buyer := shared.NewActor(uuid.New(), shared.RoleCustomer)
	o, err := listing.NewOrder(l, buyer, 5, decimal.Zero)
	require.NoError(t, err)
	require.NoError(t, orders.Create(ctx, o))

	updated, err := orders.Cancel(ctx, o.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, listing.OrderPartiallyCancelled, updated.Status)
	assert.Equal(t, int64(3), updated.OutstandingQuantity())

	_, err = orders.Cancel(ctx, o.ID, 4)
	assert.True(t, shared.IsKind(err, shared.KindValidation))

	updated, err = orders.Cancel(ctx, o.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, listing.OrderCancelled, updated.Status)

	_, err = orders.Cancel(ctx, o.ID, 1)
	assert.True(t, shared.IsKind(err, shared.KindStateConflict))

	_, err = orders.MarkDelivered(ctx, o.ID)
	assert.True(t, shared.IsKind(err, shared.KindStateConflict))

	mine, total, err := orders.FindByBuyer(ctx, buyer.ID, shared.DefaultFilter())
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, o.ID, mine[0].ID)
}

func TestGormOrderRepository_ReverseDeliveredOrder(t *testing.T) {
	db := newTestDB(t)
	orders := NewGormOrderRepository(db)
	ctx := context.Background()

	a := newLedgerAllocation(t, uuid.New(), uuid.New(), 30)
	l, err := listing.NewListing(a, shared.NewActor(a.SellerID, shared.RoleSeller), decimal.NewFromInt(1000))
	require.NoError(t, err)
	o, err := listing.NewOrder(l, shared.NewActor(uuid.New(), shared.RoleCustomer), 4, decimal.Zero)
	require.NoError(t, err)
	require.NoError(t, orders.Create(ctx, o))
	_, err = orders.MarkDelivered(ctx, o.ID)
	require.NoError(t, err)

	_, err = orders.Cancel(ctx, o.ID, 4)
	assert.True(t, shared.IsKind(err, shared.KindStateConflict))

	reversed, err := orders.Reverse(ctx, o.ID, 4)
	require.NoError(t, err)
	assert.Equal(t, listing.OrderCancelled, reversed.Status)
	assert.Equal(t, int64(0), reversed.OutstandingQuantity())

	_, err = orders.Reverse(ctx, o.ID, 1)
	assert.True(t, shared.IsKind(err, shared.KindStateConflict))
}
