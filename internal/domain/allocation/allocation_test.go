package allocation

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wholesale/backend/internal/domain/shared"
	"pgregory.net/rapid"
)

type helperT interface {
	require.TestingT
	Helper()
}

func newTestAllocation(t helperT, quantity int64, price string) *Allocation {
	t.Helper()
	negotiationID := uuid.New()
	a, err := NewAllocation(Grant{
		NegotiationID:   &negotiationID,
		Type:            TypeIndividual,
		SellerID:        uuid.New(),
		ManufacturerID:  uuid.New(),
		ProductID:       uuid.New(),
		Quantity:        quantity,
		NegotiatedPrice: decimal.RequireFromString(price),
	})
	require.NoError(t, err)
	return a
}

func TestNewAllocation(t *testing.T) {
	a := newTestAllocation(t, 50, "900")

	assert.Equal(t, StatusActive, a.Status)
	assert.Equal(t, int64(50), a.AllocatedQuantity)
	assert.Equal(t, int64(0), a.SoldQuantity)
	assert.Equal(t, int64(50), a.RemainingQuantity)
	assert.Equal(t, "945.00", a.MinRetailPrice.StringFixed(2))
	assert.NoError(t, a.CheckInvariant())
	require.Len(t, a.GetDomainEvents(), 1)
	assert.Equal(t, EventTypeCreated, a.GetDomainEvents()[0].EventType())
}

func TestNewAllocation_Validation(t *testing.T) {
	negotiationID := uuid.New()
	base := Grant{
		NegotiationID:   &negotiationID,
		Type:            TypeIndividual,
		SellerID:        uuid.New(),
		ManufacturerID:  uuid.New(),
		ProductID:       uuid.New(),
		Quantity:        10,
		NegotiatedPrice: decimal.NewFromInt(10),
	}

	tests := []struct {
		name   string
		mutate func(g *Grant)
		code   string
	}{
		{"negative quantity", func(g *Grant) { g.Quantity = -5 }, "INVALID_QUANTITY"},
		{"zero price", func(g *Grant) { g.NegotiatedPrice = decimal.Zero }, "INVALID_PRICE"},
		{"unknown type", func(g *Grant) { g.Type = "LOAN" }, "INVALID_TYPE"},
		{"group without group id", func(g *Grant) { g.Type = TypeGroup }, "GROUP_REQUIRED"},
		{"individual without negotiation", func(g *Grant) { g.NegotiationID = nil }, "NEGOTIATION_REQUIRED"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := base
			tt.mutate(&g)
			_, err := NewAllocation(g)
			var de *shared.DomainError
			require.ErrorAs(t, err, &de)
			assert.Equal(t, tt.code, de.Code)
		})
	}

	t.Run("direct allocation needs no negotiation", func(t *testing.T) {
		g := base
		g.Type = TypeDirect
		g.NegotiationID = nil
		a, err := NewAllocation(g)
		require.NoError(t, err)
		assert.Nil(t, a.NegotiationID)
	})
}

func TestMinRetailPriceFor(t *testing.T) {
	assert.Equal(t, "945.00", MinRetailPriceFor(decimal.NewFromInt(900)).StringFixed(2))
	assert.Equal(t, "10.50", MinRetailPriceFor(decimal.NewFromInt(10)).StringFixed(2))
	assert.Equal(t, "1.04", MinRetailPriceFor(decimal.RequireFromString("0.99")).StringFixed(2))
}

func TestAllocation_ConsumeToDepletion(t *testing.T) {
	a := newTestAllocation(t, 50, "10")

	for range 10 {
		require.NoError(t, a.Consume(5))
	}
	assert.Equal(t, StatusDepleted, a.Status)
	assert.Equal(t, int64(0), a.RemainingQuantity)

	err := a.Consume(5)
	assert.ErrorIs(t, err, shared.ErrInsufficientStock)
	assert.True(t, shared.IsKind(err, shared.KindCapacity))
}

func TestAllocation_ConsumeMoreThanRemaining(t *testing.T) {
	a := newTestAllocation(t, 7, "10")
	err := a.Consume(8)
	assert.ErrorIs(t, err, shared.ErrInsufficientStock)
	assert.Equal(t, int64(0), a.SoldQuantity)
	assert.Equal(t, StatusActive, a.Status)
}

func TestAllocation_RestoreIsClamped(t *testing.T) {
	a := newTestAllocation(t, 20, "10")
	require.NoError(t, a.Consume(20))
	require.Equal(t, StatusDepleted, a.Status)

	restored, err := a.Restore(6)
	require.NoError(t, err)
	assert.Equal(t, int64(6), restored)
	assert.Equal(t, StatusActive, a.Status)

	restored, err = a.Restore(100)
	require.NoError(t, err)
	assert.Equal(t, int64(14), restored)
	assert.Equal(t, int64(0), a.SoldQuantity)
	assert.Equal(t, int64(20), a.RemainingQuantity)

	restored, err = a.Restore(3)
	require.NoError(t, err)
	assert.Equal(t, int64(0), restored)
	assert.Equal(t, int64(20), a.RemainingQuantity)
}

func TestAllocation_Revoke(t *testing.T) {
	a := newTestAllocation(t, 20, "10")
	seller := shared.NewActor(a.SellerID, shared.RoleSeller)
	otherMaker := shared.NewActor(uuid.New(), shared.RoleManufacturer)
	maker := shared.NewActor(a.ManufacturerID, shared.RoleManufacturer)

	assert.ErrorIs(t, a.Revoke(seller, "fraud"), ErrNotRevoker)
	assert.ErrorIs(t, a.Revoke(otherMaker, "fraud"), ErrNotRevoker)
	assert.ErrorIs(t, a.Revoke(maker, ""), ErrEmptyReason)

	require.NoError(t, a.Consume(4))
	require.NoError(t, a.Revoke(maker, "quality recall"))
	assert.Equal(t, StatusRevoked, a.Status)
	assert.Equal(t, "quality recall", a.RevokedReason)
	assert.NotNil(t, a.RevokedAt)
	assert.Equal(t, int64(4), a.SoldQuantity)

	assert.ErrorIs(t, a.Consume(1), ErrRevoked)
	assert.True(t, shared.IsKind(a.Revoke(maker, "again"), shared.KindStateConflict))
}

func TestAllocation_AdminMayRevoke(t *testing.T) {
	a := newTestAllocation(t, 20, "10")
	admin := shared.NewAdmin(uuid.New(), shared.AdminSuper)
	require.NoError(t, a.Revoke(admin, "policy breach"))
	assert.Equal(t, admin.ID, *a.RevokedBy)
}

func TestAllocation_CheckInvariantDetectsCorruption(t *testing.T) {
	a := newTestAllocation(t, 10, "10")
	a.SoldQuantity = 3
	err := a.CheckInvariant()
	assert.True(t, shared.IsKind(err, shared.KindIntegrity))

	a.RemainingQuantity = 7
	assert.NoError(t, a.CheckInvariant())

	a.SoldQuantity, a.RemainingQuantity = 11, -1
	assert.Error(t, a.CheckInvariant())
}

func TestAllocation_InvariantHoldsUnderAnySequence(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		allocated := rapid.Int64Range(1, 500).Draw(t, "allocated")
		a := newTestAllocation(t, allocated, "10")

		steps := rapid.IntRange(1, 60).Draw(t, "steps")
		for range steps {
			q := rapid.Int64Range(1, 80).Draw(t, "quantity")
			before := a.SoldQuantity
			if rapid.Bool().Draw(t, "consume") {
				err := a.Consume(q)
				if err == nil && a.SoldQuantity != before+q {
					t.Fatalf("consume(%d) moved sold from %d to %d", q, before, a.SoldQuantity)
				}
				if err != nil && a.SoldQuantity != before {
					t.Fatalf("failed consume changed sold from %d to %d", before, a.SoldQuantity)
				}
			} else {
				restored, err := a.Restore(q)
				if err != nil {
					t.Fatalf("restore: %v", err)
				}
				if restored > q || a.SoldQuantity != before-restored {
					t.Fatalf("restore(%d) restored %d, sold %d -> %d", q, restored, before, a.SoldQuantity)
				}
			}
			if err := a.CheckInvariant(); err != nil {
				t.Fatalf("invariant broken: %v", err)
			}
			if (a.RemainingQuantity == 0) != (a.Status == StatusDepleted) {
				t.Fatalf("status %s with remaining %d", a.Status, a.RemainingQuantity)
			}
		}
	})
}
