package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wholesale/backend/internal/domain/escrow"
	"github.com/wholesale/backend/internal/domain/shared"
)

func createTestEscrow(t *testing.T, repo *GormEscrowRepository, amount string) *escrow.Escrow {
	t.Helper()
	e, err := escrow.NewEscrow(escrow.Hold{
		OrderID:       uuid.New(),
		BuyerID:       uuid.New(),
		SellerID:      uuid.New(),
		Amount:        decimal.RequireFromString(amount),
		FeeRate:       decimal.RequireFromString("0.05"),
		TransactionID: "pi_" + uuid.NewString(),
	})
	require.NoError(t, err)
	require.NoError(t, repo.Create(context.Background(), e))
	return e
}

func TestGormEscrowRepository_ReleaseHappensOnce(t *testing.T) {
	repo := NewGormEscrowRepository(newTestDB(t))
	ctx := context.Background()
	e := createTestEscrow(t, repo, "100.00")

	changed, err := repo.MarkReleased(ctx, e.OrderID, time.Now())
	require.NoError(t, err)
	assert.False(t, changed, "release before delivery must not match")

	changed, err = repo.ConfirmDelivery(ctx, e.OrderID, time.Now())
	require.NoError(t, err)
	assert.True(t, changed)
	changed, err = repo.ConfirmDelivery(ctx, e.OrderID, time.Now())
	require.NoError(t, err)
	assert.False(t, changed)

	changed, err = repo.MarkReleased(ctx, e.OrderID, time.Now())
	require.NoError(t, err)
	assert.True(t, changed)
	changed, err = repo.MarkReleased(ctx, e.OrderID, time.Now())
	require.NoError(t, err)
	assert.False(t, changed)

	stored, err := repo.FindByOrderID(ctx, e.OrderID)
	require.NoError(t, err)
	assert.Equal(t, escrow.StatusReleased, stored.Status)
	assert.Equal(t, "5.00", stored.PlatformFee.StringFixed(2))
	assert.Equal(t, "95.00", stored.DealerAmount.StringFixed(2))
	assert.NotNil(t, stored.ReleasedAt)

	changed, err = repo.MarkRefunded(ctx, e.OrderID, time.Now())
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestGormEscrowRepository_FreezeAndForceRelease(t *testing.T) {
	repo := NewGormEscrowRepository(newTestDB(t))
	ctx := context.Background()
	e := createTestEscrow(t, repo, "80.00")

	changed, err := repo.Freeze(ctx, e.OrderID)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = repo.MarkReleased(ctx, e.OrderID, time.Now())
	require.NoError(t, err)
	assert.False(t, changed, "frozen escrow cannot be released")

	changed, err = repo.Unfreeze(ctx, e.OrderID, true)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = repo.MarkReleased(ctx, e.OrderID, time.Now())
	require.NoError(t, err)
	assert.True(t, changed)

	_, err = repo.Freeze(ctx, uuid.New())
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestGormEscrowRepository_PartialRefund(t *testing.T) {
	repo := NewGormEscrowRepository(newTestDB(t))
	ctx := context.Background()
	e := createTestEscrow(t, repo, "200.00")

	changed, err := repo.ApplyPartialRefund(ctx, e.OrderID, decimal.RequireFromString("40.10"))
	require.NoError(t, err)
	assert.True(t, changed)

	_, err = repo.ApplyPartialRefund(ctx, e.OrderID, decimal.RequireFromString("150.00"))
	assert.ErrorIs(t, err, escrow.ErrRefundExceedsHeld)

	stored, err := repo.FindByOrderID(ctx, e.OrderID)
	require.NoError(t, err)
	assert.Equal(t, "149.90", stored.DealerAmount.StringFixed(2))
	assert.Equal(t, "40.10", stored.RefundedAmount.StringFixed(2))
	assert.Equal(t, "10.00", stored.PlatformFee.StringFixed(2))

	changed, err = repo.MarkRefunded(ctx, e.OrderID, time.Now())
	require.NoError(t, err)
	assert.True(t, changed)
	require.NoError(t, repo.RecordRefundConfirmation(ctx, e.OrderID, "re_1"))

	_, err = repo.ApplyPartialRefund(ctx, e.OrderID, decimal.NewFromInt(1))
	assert.True(t, shared.IsKind(err, shared.KindStateConflict))
}

func TestGormEscrowRepository_DuplicateOrder(t *testing.T) {
	repo := NewGormEscrowRepository(newTestDB(t))
	e := createTestEscrow(t, repo, "10.00")

	again, err := escrow.NewEscrow(escrow.Hold{
		OrderID:       e.OrderID,
		BuyerID:       e.BuyerID,
		SellerID:      e.SellerID,
		Amount:        decimal.NewFromInt(10),
		FeeRate:       decimal.Zero,
		TransactionID: "pi_other",
	})
	require.NoError(t, err)
	err = repo.Create(context.Background(), again)
	assert.True(t, shared.IsKind(err, shared.KindDuplicate))
}

func TestGormCustomEscrowRepository_PhasesRoundTrip(t *testing.T) {
	repo := NewGormCustomEscrowRepository(newTestDB(t))
	ctx := context.Background()
	alice, bob := uuid.New(), uuid.New()

	e, err := escrow.NewCustomOrderEscrow(escrow.CustomTerms{
		CustomRequestID:   uuid.New(),
		ManufacturerID:    uuid.New(),
		TotalAmount:       decimal.NewFromInt(1000),
		AdvancePercentage: decimal.NewFromInt(30),
		Weights: []escrow.Weight{
			{SellerID: alice, Amount: decimal.NewFromInt(600)},
			{SellerID: bob, Amount: decimal.NewFromInt(400)},
		},
	})
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, e))

	updated, err := repo.Update(ctx, e.ID, func(e *escrow.CustomOrderEscrow) error {
		return e.RecordPayment(alice, escrow.PhaseAdvance, "pi_a1")
	})
	require.NoError(t, err)
	assert.Equal(t, escrow.CustomAdvancePending, updated.Status)

	_, err = repo.Update(ctx, e.ID, func(e *escrow.CustomOrderEscrow) error {
		return e.RecordPayment(alice, escrow.PhaseAdvance, "pi_a2")
	})
	assert.ErrorIs(t, err, escrow.ErrAlreadyPaid)

	_, err = repo.Update(ctx, e.ID, func(e *escrow.CustomOrderEscrow) error {
		return e.RecordPayment(bob, escrow.PhaseAdvance, "pi_b1")
	})
	require.NoError(t, err)

	stored, err := repo.FindByCustomRequest(ctx, e.CustomRequestID)
	require.NoError(t, err)
	assert.Equal(t, escrow.CustomAdvancePaid, stored.Status)
	require.Len(t, stored.Participants, 2)
	a, err := stored.Participant(alice)
	require.NoError(t, err)
	assert.True(t, a.AdvancePaid)
	assert.False(t, a.BalancePaid)
	assert.Equal(t, "pi_a1", a.AdvanceTransactionID)
	assert.Equal(t, "600.00", a.ShareAmount.StringFixed(2))
	assert.Equal(t, "180.00", a.AdvanceShare.StringFixed(2))
	assert.Equal(t, 2, stored.Version-e.Version)
}
