package persistence

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wholesale/backend/internal/application/txn"
	"github.com/wholesale/backend/internal/domain/audit"
	"github.com/wholesale/backend/internal/domain/negotiation"
	"github.com/wholesale/backend/internal/infrastructure/event"
	"github.com/wholesale/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

func newTestScope(t *testing.T) (*GormTransactionScope, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)
	serializer := event.NewEventSerializer()
	event.RegisterAllEvents(serializer)
	return NewGormTransactionScope(db, event.NewOutboxPublisher(serializer), nil), db
}

func TestGormTransactionScope_CommitStagesEvents(t *testing.T) {
	scope, db := newTestScope(t)
	ctx := context.Background()

	n, err := negotiation.NewNegotiation(uuid.New(), uuid.New(), uuid.New(), 10, decimal.NewFromInt(50), nil)
	require.NoError(t, err)

	err = scope.Execute(ctx, func(repos txn.Repositories) error {
		if err := repos.Negotiations().Create(ctx, n); err != nil {
			return err
		}
		if err := txn.AppendAudit(ctx, repos, audit.StreamNegotiationMessages, n.ID, n.SellerID, "proposed", "", nil); err != nil {
			return err
		}
		return txn.StageFrom(ctx, repos, n)
	})
	require.NoError(t, err)
	assert.Empty(t, n.GetDomainEvents())

	var outbox, entries int64
	require.NoError(t, db.Model(&models.OutboxEntryModel{}).Count(&outbox).Error)
	require.NoError(t, db.Model(&models.AuditEntryModel{}).Count(&entries).Error)
	assert.Equal(t, int64(1), outbox)
	assert.Equal(t, int64(1), entries)
}

func TestGormTransactionScope_RollbackDiscardsEverything(t *testing.T) {
	scope, db := newTestScope(t)
	ctx := context.Background()
	boom := errors.New("boom")

	n, err := negotiation.NewNegotiation(uuid.New(), uuid.New(), uuid.New(), 10, decimal.NewFromInt(50), nil)
	require.NoError(t, err)

	err = scope.Execute(ctx, func(repos txn.Repositories) error {
		require.NoError(t, repos.Negotiations().Create(ctx, n))
		require.NoError(t, txn.StageFrom(ctx, repos, n))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	var negotiations, outbox int64
	require.NoError(t, db.Model(&models.NegotiationModel{}).Count(&negotiations).Error)
	require.NoError(t, db.Model(&models.OutboxEntryModel{}).Count(&outbox).Error)
	assert.Zero(t, negotiations)
	assert.Zero(t, outbox)
}
