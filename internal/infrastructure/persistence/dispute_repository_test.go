package persistence

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wholesale/backend/internal/domain/dispute"
	"github.com/wholesale/backend/internal/domain/shared"
)

func TestGormDisputeRepository_OnePerOrder(t *testing.T) {
	repo := NewGormDisputeRepository(newTestDB(t))
	ctx := context.Background()
	orderID, buyer, seller := uuid.New(), uuid.New(), uuid.New()

	d, err := dispute.NewDispute(orderID, buyer, seller, shared.NewActor(buyer, shared.RoleCustomer), "item damaged")
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, d))

	again, err := dispute.NewDispute(orderID, buyer, seller, shared.NewActor(seller, shared.RoleSeller), "buyer unreachable")
	require.NoError(t, err)
	assert.ErrorIs(t, repo.Create(ctx, again), dispute.ErrAlreadyDisputed)

	found, err := repo.FindByOrderID(ctx, orderID)
	require.NoError(t, err)
	assert.Equal(t, d.ID, found.ID)
	assert.Equal(t, dispute.StatusOpen, found.Status)
}

func TestGormDisputeRepository_AssignAndQueue(t *testing.T) {
	repo := NewGormDisputeRepository(newTestDB(t))
	ctx := context.Background()
	admin := shared.NewAdmin(uuid.New(), shared.AdminDisputeManager)

	var ids []uuid.UUID
	for range 3 {
		buyer := uuid.New()
		d, err := dispute.NewDispute(uuid.New(), buyer, uuid.New(), shared.NewActor(buyer, shared.RoleCustomer), "late")
		require.NoError(t, err)
		require.NoError(t, repo.Create(ctx, d))
		ids = append(ids, d.ID)
	}

	d, err := repo.FindByID(ctx, ids[0])
	require.NoError(t, err)
	require.NoError(t, d.Assign(admin, admin.ID))
	require.NoError(t, repo.SaveWithLock(ctx, d))

	stale, err := repo.FindByID(ctx, ids[0])
	require.NoError(t, err)
	stale.Version--
	assert.ErrorIs(t, repo.SaveWithLock(ctx, stale), shared.ErrConcurrencyConflict)

	open, total, err := repo.FindByStatus(ctx, dispute.StatusOpen, shared.DefaultFilter())
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, open, 2)

	f := shared.DefaultFilter()
	f.Filters["assigned_admin_id"] = admin.ID
	mine, total, err := repo.FindByStatus(ctx, dispute.StatusUnderReview, f)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, mine, 1)
	assert.Equal(t, admin.ID, *mine[0].AssignedAdminID)
}
