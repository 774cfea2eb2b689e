package negotiation

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wholesale/backend/internal/domain/shared"
)

type parties struct {
	seller       shared.Actor
	manufacturer shared.Actor
	outsider     shared.Actor
}

func newParties() parties {
	return parties{
		seller:       shared.NewActor(uuid.New(), shared.RoleSeller),
		manufacturer: shared.NewActor(uuid.New(), shared.RoleManufacturer),
		outsider:     shared.NewActor(uuid.New(), shared.RoleSeller),
	}
}

func newTestNegotiation(t *testing.T, p parties) *Negotiation {
	t.Helper()
	n, err := NewNegotiation(p.seller.ID, p.manufacturer.ID, uuid.New(), 100, decimal.NewFromInt(900), nil)
	require.NoError(t, err)
	return n
}

func TestNewNegotiation(t *testing.T) {
	seller, manufacturer, product := uuid.New(), uuid.New(), uuid.New()

	tests := []struct {
		name     string
		seller   uuid.UUID
		maker    uuid.UUID
		quantity int64
		price    decimal.Decimal
		code     string
	}{
		{"negative quantity", seller, manufacturer, -1, decimal.NewFromInt(10), "INVALID_QUANTITY"},
		{"zero quantity", seller, manufacturer, 0, decimal.NewFromInt(10), "INVALID_QUANTITY"},
		{"zero price", seller, manufacturer, 10, decimal.Zero, "INVALID_PRICE"},
		{"same party", seller, seller, 10, decimal.NewFromInt(10), "INVALID_PARTY"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewNegotiation(tt.seller, tt.maker, product, tt.quantity, tt.price, nil)
			var de *shared.DomainError
			require.ErrorAs(t, err, &de)
			assert.Equal(t, tt.code, de.Code)
			assert.Equal(t, shared.KindValidation, de.Kind)
		})
	}

	t.Run("opens with proposal event", func(t *testing.T) {
		n, err := NewNegotiation(seller, manufacturer, product, 10, decimal.RequireFromString("12.345"), nil)
		require.NoError(t, err)
		assert.Equal(t, StatusOpen, n.Status)
		assert.Equal(t, "12.35", n.CurrentOffer.StringFixed(2))
		assert.Equal(t, seller, n.LastOfferBy)
		require.Len(t, n.GetDomainEvents(), 1)
		assert.Equal(t, EventTypeProposed, n.GetDomainEvents()[0].EventType())
	})
}

func TestNegotiation_HappyPath(t *testing.T) {
	p := newParties()
	n := newTestNegotiation(t, p)

	price := decimal.NewFromInt(880)
	require.NoError(t, n.CounterOffer(p.manufacturer, &price, nil))
	assert.Equal(t, StatusOpen, n.Status)
	assert.True(t, price.Equal(n.CurrentOffer))
	assert.Equal(t, p.manufacturer.ID, n.LastOfferBy)

	require.NoError(t, n.Accept(p.seller))
	assert.NotNil(t, n.AcceptedAt)
	require.NoError(t, n.RequestOrder(p.seller))
	require.NoError(t, n.Fulfill(p.manufacturer))
	assert.Equal(t, StatusOrderFulfilled, n.Status)
	assert.NotNil(t, n.FulfilledAt)
	assert.True(t, n.Status.IsTerminal())
}

func TestNegotiation_AcceptAfterRejectFails(t *testing.T) {
	p := newParties()
	n := newTestNegotiation(t, p)
	require.NoError(t, n.Reject(p.manufacturer))

	err := n.Accept(p.seller)
	assert.True(t, shared.IsKind(err, shared.KindStateConflict))
	assert.Equal(t, StatusRejected, n.Status)
}

func TestNegotiation_OutsiderIsRejected(t *testing.T) {
	p := newParties()
	n := newTestNegotiation(t, p)

	for name, op := range map[string]func(shared.Actor) error{
		"accept": n.Accept,
		"reject": n.Reject,
		"counter": func(a shared.Actor) error {
			q := int64(5)
			return n.CounterOffer(a, nil, &q)
		},
	} {
		t.Run(name, func(t *testing.T) {
			err := op(p.outsider)
			assert.True(t, shared.IsKind(err, shared.KindAuthorization))
			assert.Equal(t, StatusOpen, n.Status)
		})
	}
}

func TestNegotiation_PendingAccountCannotAct(t *testing.T) {
	p := newParties()
	n := newTestNegotiation(t, p)
	p.seller.AccountStatus = shared.AccountPending

	err := n.Accept(p.seller)
	assert.ErrorIs(t, err, shared.ErrAccountInactive)
}

func TestNegotiation_CounterOfferValidation(t *testing.T) {
	p := newParties()
	n := newTestNegotiation(t, p)

	err := n.CounterOffer(p.seller, nil, nil)
	assert.True(t, shared.IsKind(err, shared.KindValidation))

	negative := int64(-4)
	err = n.CounterOffer(p.seller, nil, &negative)
	assert.True(t, shared.IsKind(err, shared.KindValidation))
	assert.Equal(t, int64(100), n.Quantity)

	require.NoError(t, n.Accept(p.manufacturer))
	q := int64(50)
	err = n.CounterOffer(p.seller, nil, &q)
	assert.True(t, shared.IsKind(err, shared.KindStateConflict))
}

func TestStatus_FulfillReachableOnlyThroughOrderRequested(t *testing.T) {
	all := []Status{StatusOpen, StatusAccepted, StatusRejected, StatusOrderRequested, StatusOrderFulfilled}
	for _, from := range all {
		assert.Equal(t, from == StatusOrderRequested, from.CanTransitionTo(StatusOrderFulfilled), "from %s", from)
	}
	for _, terminal := range []Status{StatusRejected, StatusOrderFulfilled} {
		for _, to := range all {
			assert.False(t, terminal.CanTransitionTo(to), "%s -> %s", terminal, to)
		}
	}
	assert.False(t, StatusAccepted.CanTransitionTo(StatusOpen))
	assert.False(t, StatusOpen.CanTransitionTo(StatusOrderRequested))
}

func TestNegotiation_SkippingStepsFails(t *testing.T) {
	p := newParties()
	n := newTestNegotiation(t, p)

	assert.True(t, shared.IsKind(n.Fulfill(p.manufacturer), shared.KindStateConflict))
	assert.True(t, shared.IsKind(n.RequestOrder(p.seller), shared.KindStateConflict))
	require.NoError(t, n.Accept(p.manufacturer))
	assert.True(t, shared.IsKind(n.Fulfill(p.manufacturer), shared.KindStateConflict))
}

func TestNegotiation_SetCommittedQuantity(t *testing.T) {
	p := newParties()
	n := newTestNegotiation(t, p)
	assert.Error(t, n.SetCommittedQuantity(40))

	groupID := uuid.New()
	g, err := NewNegotiation(p.seller.ID, p.manufacturer.ID, uuid.New(), 10, decimal.NewFromInt(5), &groupID)
	require.NoError(t, err)
	require.NoError(t, g.SetCommittedQuantity(40))
	assert.Equal(t, int64(40), g.Quantity)
	assert.True(t, g.IsGroup())
}
