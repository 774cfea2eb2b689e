package collaboration

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
	"github.com/wholesale/backend/internal/domain/shared"
	"github.com/wholesale/backend/internal/infrastructure/persistence/models"
	"github.com/wholesale/backend/internal/testutil"
)

func newService(env *testutil.Env) *Service {
	return NewService(env.Scope, env.Eligibility, env.Gateway, "usd")
}

func createGroup(t *testing.T, svc *Service, creator shared.Actor, target int64) *GroupResponse {
	t.Helper()
	g, err := svc.CreateGroup(context.Background(), creator, CreateGroupRequest{
		Category:             "furniture",
		TargetQuantity:       target,
		RequiredDeliveryDate: time.Now().Add(14 * 24 * time.Hour),
	})
	require.NoError(t, err)
	return g
}

// openContributions inserts one PENDING contribution per joined participant
// the way a requested group order would
func openContributions(t *testing.T, env *testutil.Env, groupID uuid.UUID, price string) {
	t.Helper()
	ctx := context.Background()
	err := env.Scope.Execute(ctx, func(repos txn.Repositories) error {
		participants, err := repos.Groups().FindParticipants(ctx, groupID)
		if err != nil {
			return err
		}
		contributions, err := collaboration.BuildContributions(groupID, uuid.New(), participants, decimal.RequireFromString(price))
		if err != nil {
			return err
		}
		return repos.Contributions().CreateBatch(ctx, contributions)
	})
	require.NoError(t, err)
}

func TestService_JoinLocksGroupAtTarget(t *testing.T) {
	env := testutil.NewEnv(t)
	svc := newService(env)
	ctx := context.Background()
	creator := env.SeedSeller(t, true)
	g := createGroup(t, svc, creator, 100)
	assert.Equal(t, "CREATED", g.Status)

	m, err := svc.Join(ctx, creator, g.ID, JoinRequest{QuantityCommitment: 60})
	require.NoError(t, err)
	assert.Equal(t, "ACTIVE", m.Group.Status)

	_, err = svc.Join(ctx, creator, g.ID, JoinRequest{QuantityCommitment: 5})
	testutil.RequireKind(t, err, shared.KindDuplicate)

	second := env.SeedSeller(t, true)
	m, err = svc.Join(ctx, second, g.ID, JoinRequest{QuantityCommitment: 40})
	require.NoError(t, err)
	assert.Equal(t, "LOCKED", m.Group.Status)
	assert.Equal(t, int64(100), m.Group.CurrentQuantity)

	late := env.SeedSeller(t, true)
	_, err = svc.Join(ctx, late, g.ID, JoinRequest{QuantityCommitment: 1})
	testutil.RequireKind(t, err, shared.KindStateConflict)

	assert.Len(t, env.AuditEntries(t, audit.StreamGroup, g.ID), 3)
	assert.Equal(t, int64(1), env.Count(t, &models.OutboxEntryModel{}, "event_type = ?", collaboration.EventTypeGroupLocked))
}

func TestService_JoinEligibilityGates(t *testing.T) {
	env := testutil.NewEnv(t)
	svc := newService(env)
	ctx := context.Background()
	g := createGroup(t, svc, env.SeedSeller(t, true), 10)

	_, err := svc.Join(ctx, env.SeedSeller(t, false), g.ID, JoinRequest{QuantityCommitment: 1})
	assert.ErrorIs(t, err, collaboration.ErrNotEligible)

	unverified := env.SeedSeller(t, true)
	require.NoError(t, env.DB.Model(&models.SellerProfileModel{}).
		Where("seller_id = ?", unverified.ID).Update("verified", false).Error)
	_, err = svc.Join(ctx, unverified, g.ID, JoinRequest{QuantityCommitment: 1})
	assert.ErrorIs(t, err, collaboration.ErrNotVerified)

	_, err = svc.Join(ctx, testutil.Customer(), g.ID, JoinRequest{QuantityCommitment: 1})
	testutil.RequireKind(t, err, shared.KindAuthorization)
}

func TestService_MemberCeiling(t *testing.T) {
	env := testutil.NewEnv(t)
	svc := newService(env)
	ctx := context.Background()
	g := createGroup(t, svc, env.SeedSeller(t, true), 1000)

	for range collaboration.DefaultMaxMembers {
		_, err := svc.Join(ctx, env.SeedSeller(t, true), g.ID, JoinRequest{QuantityCommitment: 10})
		require.NoError(t, err)
	}
	_, err := svc.Join(ctx, env.SeedSeller(t, true), g.ID, JoinRequest{QuantityCommitment: 10})
	assert.ErrorIs(t, err, collaboration.ErrGroupFull)
}

func TestService_LeaveAndRejoin(t *testing.T) {
	env := testutil.NewEnv(t)
	svc := newService(env)
	ctx := context.Background()
	seller := env.SeedSeller(t, true)
	g := createGroup(t, svc, seller, 100)

	_, err := svc.Join(ctx, seller, g.ID, JoinRequest{QuantityCommitment: 30})
	require.NoError(t, err)
	m, err := svc.Leave(ctx, seller, g.ID)
	require.NoError(t, err)
	assert.Zero(t, m.Group.CurrentQuantity)
	assert.Equal(t, "LEFT", m.Participant.Status)

	m, err = svc.Join(ctx, seller, g.ID, JoinRequest{QuantityCommitment: 20})
	require.NoError(t, err)
	assert.Equal(t, int64(20), m.Group.CurrentQuantity)
	assert.Equal(t, int64(1), env.Count(t, &models.ParticipantModel{}, "group_id = ?", g.ID))
}

func TestService_InviteThenJoin(t *testing.T) {
	env := testutil.NewEnv(t)
	svc := newService(env)
	ctx := context.Background()
	creator := env.SeedSeller(t, true)
	g := createGroup(t, svc, creator, 100)
	invitee := env.SeedSeller(t, true)

	_, err := svc.Invite(ctx, invitee, g.ID, InviteRequest{SellerID: invitee.ID})
	assert.ErrorIs(t, err, collaboration.ErrNotCreator)

	p, err := svc.Invite(ctx, creator, g.ID, InviteRequest{SellerID: invitee.ID})
	require.NoError(t, err)
	assert.Equal(t, "INVITED", p.Status)

	m, err := svc.Join(ctx, invitee, g.ID, JoinRequest{QuantityCommitment: 25})
	require.NoError(t, err)
	assert.Equal(t, "JOINED", m.Participant.Status)

	participants, err := svc.Participants(ctx, g.ID)
	require.NoError(t, err)
	require.Len(t, participants, 1)
}

func TestService_PayContribution(t *testing.T) {
	env := testutil.NewEnv(t)
	svc := newService(env)
	ctx := context.Background()
	first, second := env.SeedSeller(t, true), env.SeedSeller(t, true)
	g := createGroup(t, svc, first, 10)
	_, err := svc.Join(ctx, first, g.ID, JoinRequest{QuantityCommitment: 3})
	require.NoError(t, err)
	_, err = svc.Join(ctx, second, g.ID, JoinRequest{QuantityCommitment: 7})
	require.NoError(t, err)
	openContributions(t, env, g.ID, "12.34")

	paid, err := svc.PayContribution(ctx, first, g.ID, PayContributionRequest{})
	require.NoError(t, err)
	assert.Equal(t, "PAID", paid.Status)
	assert.True(t, decimal.RequireFromString("37.02").Equal(paid.ContributionAmount))
	assert.NotEmpty(t, paid.TransactionID)

	_, err = svc.PayContribution(ctx, first, g.ID, PayContributionRequest{})
	testutil.RequireKind(t, err, shared.KindStateConflict)

	env.Gateway.Decline(second.ID)
	_, err = svc.PayContribution(ctx, second, g.ID, PayContributionRequest{})
	testutil.RequireKind(t, err, shared.KindValidation)

	summary, err := svc.Contributions(ctx, g.ID)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("123.40").Equal(summary.TotalAmount))
	assert.Equal(t, int64(10), summary.TotalQuantity)

	participants, err := svc.Participants(ctx, g.ID)
	require.NoError(t, err)
	statuses := map[uuid.UUID]string{}
	for _, p := range participants {
		statuses[p.SellerID] = p.PaymentStatus
	}
	assert.Equal(t, "PAID", statuses[first.ID])
	assert.Equal(t, "UNPAID", statuses[second.ID])
}

func TestService_ConcurrentContributionPaymentsKeepRecordedCapture(t *testing.T) {
	env := testutil.NewEnv(t)
	gateway := env.HookGateway()
	gateway.AfterCapture = testutil.CaptureBarrier(2)
	svc := NewService(env.Scope, env.Eligibility, gateway, "usd")
	ctx := context.Background()
	seller := env.SeedSeller(t, true)
	g := createGroup(t, svc, seller, 10)
	_, err := svc.Join(ctx, seller, g.ID, JoinRequest{QuantityCommitment: 4})
	require.NoError(t, err)
	openContributions(t, env, g.ID, "5")

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.PayContribution(ctx, seller, g.ID, PayContributionRequest{})
		}(i)
	}
	wg.Wait()

	failures := 0
	for _, err := range errs {
		if err != nil {
			testutil.RequireKind(t, err, shared.KindStateConflict)
			failures++
		}
	}
	assert.Equal(t, 1, failures)

	var c models.ContributionModel
	require.NoError(t, env.DB.First(&c, "group_id = ? AND seller_id = ?", g.ID, seller.ID).Error)
	assert.Equal(t, collaboration.ContributionPaid, c.Status)
	assert.True(t, env.Gateway.Refunded(c.TransactionID).IsZero(), "recorded contribution must stay captured")

	captures := gateway.Captures()
	require.Len(t, captures, 2)
	for _, id := range captures {
		if id != c.TransactionID {
			assert.True(t, decimal.NewFromInt(20).Equal(env.Gateway.Refunded(id)))
		}
	}
}

func TestService_ContributionRetryAfterReversedCaptureChargesAgain(t *testing.T) {
	env := testutil.NewEnv(t)
	gateway := env.HookGateway()
	svc := NewService(env.Scope, env.Eligibility, gateway, "usd")
	ctx := context.Background()
	seller := env.SeedSeller(t, true)
	g := createGroup(t, svc, seller, 10)
	_, err := svc.Join(ctx, seller, g.ID, JoinRequest{QuantityCommitment: 4})
	require.NoError(t, err)
	openContributions(t, env, g.ID, "5")

	setStatus := func(status collaboration.ContributionStatus) {
		require.NoError(t, env.DB.Model(&models.ContributionModel{}).
			Where("group_id = ? AND seller_id = ?", g.ID, seller.ID).Update("status", status).Error)
	}
	gateway.AfterCapture = func(*escrow.Capture) { setStatus(collaboration.ContributionRefunded) }
	_, err = svc.PayContribution(ctx, seller, g.ID, PayContributionRequest{})
	testutil.RequireKind(t, err, shared.KindStateConflict)

	gateway.AfterCapture = nil
	setStatus(collaboration.ContributionPending)
	paid, err := svc.PayContribution(ctx, seller, g.ID, PayContributionRequest{})
	require.NoError(t, err)

	captures := gateway.Captures()
	require.Len(t, captures, 2)
	assert.True(t, decimal.NewFromInt(20).Equal(env.Gateway.Refunded(captures[0])))
	assert.Equal(t, captures[1], paid.TransactionID)
	assert.True(t, env.Gateway.Refunded(paid.TransactionID).IsZero())
}

func TestService_CancelRefundsPaidContributions(t *testing.T) {
	env := testutil.NewEnv(t)
	svc := newService(env)
	ctx := context.Background()
	first, second := env.SeedSeller(t, true), env.SeedSeller(t, true)
	g := createGroup(t, svc, first, 10)
	_, err := svc.Join(ctx, first, g.ID, JoinRequest{QuantityCommitment: 5})
	require.NoError(t, err)
	_, err = svc.Join(ctx, second, g.ID, JoinRequest{QuantityCommitment: 5})
	require.NoError(t, err)
	openContributions(t, env, g.ID, "10")

	paid, err := svc.PayContribution(ctx, first, g.ID, PayContributionRequest{})
	require.NoError(t, err)

	_, err = svc.Cancel(ctx, second, g.ID)
	assert.ErrorIs(t, err, collaboration.ErrNotCreator)

	cancelled, err := svc.Cancel(ctx, first, g.ID)
	require.NoError(t, err)
	assert.Equal(t, "CANCELLED", cancelled.Status)
	assert.True(t, decimal.NewFromInt(50).Equal(env.Gateway.Refunded(paid.TransactionID)))
	assert.Equal(t, int64(2), env.Count(t, &models.ContributionModel{}, "group_id = ? AND status = ?", g.ID, collaboration.ContributionRefunded))

	_, err = svc.Cancel(ctx, first, g.ID)
	testutil.RequireKind(t, err, shared.KindStateConflict)
}

func TestService_AdminMayCancel(t *testing.T) {
	env := testutil.NewEnv(t)
	svc := newService(env)
	g := createGroup(t, svc, env.SeedSeller(t, true), 10)

	cancelled, err := svc.Cancel(context.Background(), testutil.Admin(shared.AdminSuper), g.ID)
	require.NoError(t, err)
	assert.Equal(t, "CANCELLED", cancelled.Status)
}
