package event

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wholesale/backend/internal/domain/shared"
	"go.uber.org/zap"
)

type testEvent struct {
	shared.BaseDomainEvent
	Data string `json:"data"`
}

func newTestEvent(eventType string, recipients ...uuid.UUID) *testEvent {
	return &testEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(eventType, "TestAggregate", uuid.New(), recipients...),
		Data:            "payload",
	}
}

type recordingHandler struct {
	mu      sync.Mutex
	types   []string
	handled []shared.DomainEvent
	err     error
	panics  bool
}

func (h *recordingHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	if h.panics {
		panic("boom")
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handled = append(h.handled, event)
	return h.err
}

func (h *recordingHandler) EventTypes() []string { return h.types }

func (h *recordingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.handled)
}

func TestInMemoryEventBus_RoutesByType(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	accepted := &recordingHandler{types: []string{"NegotiationAccepted"}}
	everything := &recordingHandler{}
	bus.Subscribe(accepted)
	bus.Subscribe(everything)

	ctx := context.Background()
	require.NoError(t, bus.Publish(ctx, newTestEvent("NegotiationAccepted"), newTestEvent("GroupJoined")))

	assert.Equal(t, 1, accepted.count())
	assert.Equal(t, 2, everything.count())

	bus.Unsubscribe(everything)
	require.NoError(t, bus.Publish(ctx, newTestEvent("NegotiationAccepted")))
	assert.Equal(t, 2, accepted.count())
	assert.Equal(t, 2, everything.count())
}

func TestInMemoryEventBus_FailuresDoNotStopOtherHandlers(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	failing := &recordingHandler{err: errors.New("redis down")}
	panicking := &recordingHandler{panics: true}
	healthy := &recordingHandler{}
	bus.Subscribe(failing)
	bus.Subscribe(panicking)
	bus.Subscribe(healthy)

	err := bus.Publish(context.Background(), newTestEvent("EscrowReleased"))
	require.Error(t, err)
	assert.ErrorContains(t, err, "redis down")
	assert.ErrorContains(t, err, "panicked")
	assert.Equal(t, 1, healthy.count())
}

func TestInMemoryEventBus_StoppedBusRejectsPublish(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	ctx := context.Background()
	require.NoError(t, bus.Stop(ctx))
	assert.ErrorIs(t, bus.Publish(ctx, newTestEvent("X")), ErrBusStopped)

	require.NoError(t, bus.Start(ctx))
	assert.NoError(t, bus.Publish(ctx, newTestEvent("X")))
}
