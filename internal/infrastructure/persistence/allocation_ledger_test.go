package persistence

import (
	"context"
	"regexp"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wholesale/backend/internal/domain/allocation"
	"github.com/wholesale/backend/internal/domain/shared"
	"github.com/wholesale/backend/internal/infrastructure/persistence/models"
	"github.com/wholesale/backend/internal/infrastructure/telemetry"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newLedgerAllocation(t *testing.T, negotiationID, sellerID uuid.UUID, quantity int64) *allocation.Allocation {
	t.Helper()
	a, err := allocation.NewAllocation(allocation.Grant{
		NegotiationID:   &negotiationID,
		Type:            allocation.TypeIndividual,
		SellerID:        sellerID,
		ManufacturerID:  uuid.New(),
		ProductID:       uuid.New(),
		Quantity:        quantity,
		NegotiatedPrice: decimal.NewFromInt(900),
	})
	require.NoError(t, err)
	return a
}

func TestGormAllocationLedger_CreateAndFind(t *testing.T) {
	ledger := NewGormAllocationLedger(newTestDB(t), nil)
	ctx := context.Background()
	a := newLedgerAllocation(t, uuid.New(), uuid.New(), 50)
	require.NoError(t, ledger.Create(ctx, a))

	found, err := ledger.FindByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(50), found.RemainingQuantity)
	assert.Equal(t, "945.00", found.MinRetailPrice.StringFixed(2))
	assert.Equal(t, allocation.StatusActive, found.Status)

	byNegotiation, err := ledger.FindByNegotiation(ctx, *a.NegotiationID)
	require.NoError(t, err)
	assert.Len(t, byNegotiation, 1)

	bySeller, total, err := ledger.FindBySeller(ctx, a.SellerID, shared.DefaultFilter())
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Len(t, bySeller, 1)

	_, err = ledger.FindByID(ctx, uuid.New())
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestGormAllocationLedger_ConcurrentCreatesOneWins(t *testing.T) {
	ledger := NewGormAllocationLedger(newTestDB(t), nil)
	negotiationID, sellerID := uuid.New(), uuid.New()

	candidates := make([]*allocation.Allocation, 20)
	for i := range candidates {
		candidates[i] = newLedgerAllocation(t, negotiationID, sellerID, 10)
	}

	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		successes  int
		duplicates int
	)
	for _, a := range candidates {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := ledger.Create(context.Background(), a)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case shared.IsKind(err, shared.KindDuplicate):
				duplicates++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, 19, duplicates)
}

func TestGormAllocationLedger_ConcurrentConsumeNeverOversells(t *testing.T) {
	ledger := NewGormAllocationLedger(newTestDB(t), nil)
	ctx := context.Background()
	a := newLedgerAllocation(t, uuid.New(), uuid.New(), 50)
	require.NoError(t, ledger.Create(ctx, a))

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		capacity  int
	)
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := ledger.Consume(ctx, a.ID, 5)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case shared.IsKind(err, shared.KindCapacity):
				capacity++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, successes)
	assert.Equal(t, 90, capacity)

	final, err := ledger.FindByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), final.RemainingQuantity)
	assert.Equal(t, int64(50), final.SoldQuantity)
	assert.Equal(t, allocation.StatusDepleted, final.Status)
	assert.NoError(t, final.CheckInvariant())
}

func TestGormAllocationLedger_RestoreIsClamped(t *testing.T) {
	ledger := NewGormAllocationLedger(newTestDB(t), nil)
	ctx := context.Background()
	a := newLedgerAllocation(t, uuid.New(), uuid.New(), 20)
	require.NoError(t, ledger.Create(ctx, a))

	depleted, err := ledger.Consume(ctx, a.ID, 20)
	require.NoError(t, err)
	require.Equal(t, allocation.StatusDepleted, depleted.Status)

	restored, err := ledger.Restore(ctx, a.ID, 6)
	require.NoError(t, err)
	assert.Equal(t, allocation.StatusActive, restored.Status)
	assert.Equal(t, int64(14), restored.SoldQuantity)
	assert.Equal(t, int64(6), restored.RemainingQuantity)

	restored, err = ledger.Restore(ctx, a.ID, 1000)
	require.NoError(t, err)
	assert.Equal(t, int64(0), restored.SoldQuantity)
	assert.Equal(t, int64(20), restored.RemainingQuantity)
	assert.Greater(t, restored.Version, a.Version)
}

// unitsRestored reads the restored-units counter from reader
func unitsRestored(t *testing.T, reader *sdkmetric.ManualReader) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "marketplace.allocation.units_restored" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
		}
	}
	return total
}

func newLedgerMetrics(t *testing.T) (*telemetry.MarketplaceMetrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
	metrics, err := telemetry.NewMarketplaceMetrics(provider.Meter("test"))
	require.NoError(t, err)
	return metrics, reader
}

func TestGormAllocationLedger_RestoreCountsClampedUnits(t *testing.T) {
	metrics, reader := newLedgerMetrics(t)
	ledger := NewGormAllocationLedger(newTestDB(t), metrics)
	ctx := context.Background()
	a := newLedgerAllocation(t, uuid.New(), uuid.New(), 20)
	require.NoError(t, ledger.Create(ctx, a))
	_, err := ledger.Consume(ctx, a.ID, 12)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 6 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := ledger.Restore(ctx, a.ID, 5)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	final, err := ledger.FindByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), final.SoldQuantity)
	assert.Equal(t, int64(12), unitsRestored(t, reader))
}

func TestGormAllocationLedger_RestoreLocksRowBeforeUpdate(t *testing.T) {
	db, mock := newMockDB(t)
	metrics, reader := newLedgerMetrics(t)
	ledger := NewGormAllocationLedger(db, metrics)
	id := uuid.New()
	columns := []string{"id", "allocated_quantity", "sold_quantity", "remaining_quantity", "status", "version"}

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "allocations" WHERE id = .* FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows(columns).AddRow(id.String(), 10, 3, 7, string(allocation.StatusActive), 4))
	mock.ExpectExec(`UPDATE "allocations" SET .*"sold_quantity"=sold_quantity - CASE WHEN sold_quantity < `).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "allocations" WHERE id = $1`)).
		WillReturnRows(sqlmock.NewRows(columns).AddRow(id.String(), 10, 0, 10, string(allocation.StatusActive), 5))
	mock.ExpectCommit()

	restored, err := ledger.Restore(context.Background(), id, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(10), restored.RemainingQuantity)
	assert.Equal(t, int64(3), unitsRestored(t, reader))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormAllocationLedger_ConsumeRejections(t *testing.T) {
	ledger := NewGormAllocationLedger(newTestDB(t), nil)
	ctx := context.Background()
	a := newLedgerAllocation(t, uuid.New(), uuid.New(), 10)
	require.NoError(t, ledger.Create(ctx, a))

	_, err := ledger.Consume(ctx, a.ID, 0)
	assert.ErrorIs(t, err, allocation.ErrInvalidQty)

	_, err = ledger.Consume(ctx, a.ID, 11)
	assert.ErrorIs(t, err, shared.ErrInsufficientStock)

	_, err = ledger.Consume(ctx, uuid.New(), 1)
	assert.ErrorIs(t, err, shared.ErrNotFound)

	admin := shared.NewAdmin(uuid.New(), shared.AdminSuper)
	require.NoError(t, a.Revoke(admin, "counterfeit batch"))
	require.NoError(t, ledger.Revoke(ctx, a))

	_, err = ledger.Consume(ctx, a.ID, 1)
	assert.ErrorIs(t, err, allocation.ErrRevoked)

	stored, err := ledger.FindByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, allocation.StatusRevoked, stored.Status)
	assert.Equal(t, "counterfeit batch", stored.RevokedReason)

	// restoring stock on a revoked allocation keeps it revoked
	restored, err := ledger.Restore(ctx, a.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, allocation.StatusRevoked, restored.Status)

	assert.True(t, shared.IsKind(ledger.Revoke(ctx, a), shared.KindStateConflict))
}

func TestGormAllocationLedger_InvariantBreachRollsBack(t *testing.T) {
	db := newTestDB(t)
	ledger := NewGormAllocationLedger(db, nil)
	ctx := context.Background()
	a := newLedgerAllocation(t, uuid.New(), uuid.New(), 10)
	require.NoError(t, ledger.Create(ctx, a))

	// Corrupt the row behind the ledger's back
	require.NoError(t, db.Model(&models.AllocationModel{}).
		Where("id = ?", a.ID).
		Update("allocated_quantity", 12).Error)

	_, err := ledger.Consume(ctx, a.ID, 2)
	require.Error(t, err)
	assert.True(t, shared.IsKind(err, shared.KindIntegrity))

	var row models.AllocationModel
	require.NoError(t, db.First(&row, "id = ?", a.ID).Error)
	assert.Equal(t, int64(0), row.SoldQuantity, "consume must be rolled back")
}

func TestGormAllocationLedger_ConsumeIsOneConditionalUpdate(t *testing.T) {
	db, mock := newMockDB(t)
	ledger := NewGormAllocationLedger(db, nil)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "allocations" SET .*"sold_quantity"=sold_quantity \+ .* WHERE id = .* AND status = .* AND remaining_quantity >= `).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "allocations" WHERE id = $1`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "allocated_quantity", "sold_quantity", "remaining_quantity", "status", "version"}).
			AddRow(id.String(), 10, 8, 2, string(allocation.StatusActive), 3))
	mock.ExpectRollback()

	_, err := ledger.Consume(context.Background(), id, 5)
	var de *shared.DomainError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, shared.KindCapacity, de.Kind)
	assert.Equal(t, "Insufficient stock: 2 remaining, 5 requested", de.Message)
	assert.NoError(t, mock.ExpectationsWereMet())
}
