package listing

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wholesale/backend/internal/domain/allocation"
	"github.com/wholesale/backend/internal/domain/shared"
)

func newBackingAllocation(t *testing.T, quantity int64, price string) (*allocation.Allocation, shared.Actor) {
	t.Helper()
	negotiationID := uuid.New()
	a, err := allocation.NewAllocation(allocation.Grant{
		NegotiationID:   &negotiationID,
		Type:            allocation.TypeIndividual,
		SellerID:        uuid.New(),
		ManufacturerID:  uuid.New(),
		ProductID:       uuid.New(),
		Quantity:        quantity,
		NegotiatedPrice: decimal.RequireFromString(price),
	})
	require.NoError(t, err)
	return a, shared.NewActor(a.SellerID, shared.RoleSeller)
}

func TestNewListing_MinimumRetailPrice(t *testing.T) {
	a, seller := newBackingAllocation(t, 50, "900")

	tests := []struct {
		price   string
		wantErr bool
	}{
		{"930", true},
		{"944.99", true},
		{"945", false},
		{"1200", false},
	}
	for _, tt := range tests {
		t.Run(tt.price, func(t *testing.T) {
			l, err := NewListing(a, seller, decimal.RequireFromString(tt.price))
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrPriceTooLow)
				assert.True(t, shared.IsKind(err, shared.KindValidation))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, int64(50), l.AllocatedStock)
			assert.Equal(t, int64(50), l.RemainingQuantity)
			assert.Equal(t, AllocationApproved, l.AllocationStatus)
			assert.True(t, l.IsLive())
		})
	}
}

func TestNewListing_RequiresActiveOwnedAllocation(t *testing.T) {
	a, seller := newBackingAllocation(t, 10, "10")

	stranger := shared.NewActor(uuid.New(), shared.RoleSeller)
	_, err := NewListing(a, stranger, decimal.NewFromInt(20))
	assert.ErrorIs(t, err, ErrNotOwner)

	customer := shared.NewActor(a.SellerID, shared.RoleCustomer)
	_, err = NewListing(a, customer, decimal.NewFromInt(20))
	assert.True(t, shared.IsKind(err, shared.KindAuthorization))

	require.NoError(t, a.Consume(10))
	_, err = NewListing(a, seller, decimal.NewFromInt(20))
	assert.ErrorIs(t, err, ErrNoAllocation)
}

func TestListing_Relist(t *testing.T) {
	a, seller := newBackingAllocation(t, 40, "10")
	l, err := NewListing(a, seller, decimal.NewFromInt(11))
	require.NoError(t, err)

	require.NoError(t, a.Consume(15))
	l.SoldQuantity, l.RemainingQuantity = 15, 25
	require.NoError(t, l.Delist(seller))
	assert.False(t, l.IsLive())

	require.NoError(t, l.Relist(a, seller, decimal.NewFromInt(12)))
	assert.True(t, l.IsLive())
	assert.Equal(t, int64(40), l.AllocatedStock)
	assert.Equal(t, int64(25), l.RemainingQuantity)
	assert.NoError(t, l.CheckInvariant())
}

func TestNewOrder(t *testing.T) {
	a, seller := newBackingAllocation(t, 40, "10")
	l, err := NewListing(a, seller, decimal.RequireFromString("12.50"))
	require.NoError(t, err)
	buyer := shared.NewActor(uuid.New(), shared.RoleCustomer)

	o, err := NewOrder(l, buyer, 4, decimal.RequireFromString("5.00"))
	require.NoError(t, err)
	assert.Equal(t, "55.00", o.TotalAmount.StringFixed(2))
	assert.Equal(t, OrderPlaced, o.Status)
	assert.Equal(t, int64(4), o.OutstandingQuantity())

	_, err = NewOrder(l, seller, 1, decimal.Zero)
	assert.True(t, shared.IsKind(err, shared.KindValidation))

	_, err = NewOrder(l, buyer, -1, decimal.Zero)
	assert.True(t, shared.IsKind(err, shared.KindValidation))

	l.Active = false
	_, err = NewOrder(l, buyer, 1, decimal.Zero)
	assert.ErrorIs(t, err, ErrNotLive)
}

func TestOrder_CheckCancel(t *testing.T) {
	a, seller := newBackingAllocation(t, 40, "10")
	l, err := NewListing(a, seller, decimal.NewFromInt(20))
	require.NoError(t, err)
	buyer := shared.NewActor(uuid.New(), shared.RoleCustomer)
	o, err := NewOrder(l, buyer, 5, decimal.NewFromInt(10))
	require.NoError(t, err)

	assert.NoError(t, o.CheckCancel(buyer, 2))
	assert.NoError(t, o.CheckCancel(seller, 5))
	assert.True(t, shared.IsKind(o.CheckCancel(buyer, 6), shared.KindValidation))
	assert.True(t, shared.IsKind(o.CheckCancel(shared.NewActor(uuid.New(), shared.RoleCustomer), 1), shared.KindAuthorization))

	assert.Equal(t, "44.00", o.RefundAmountFor(2).StringFixed(2))
	assert.Equal(t, OrderPartiallyCancelled, StatusAfterCancelling(5, 2))
	assert.Equal(t, OrderCancelled, StatusAfterCancelling(5, 5))

	o.Status = OrderDelivered
	assert.True(t, shared.IsKind(o.CheckCancel(buyer, 1), shared.KindStateConflict))
}
