package event

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/wholesale/backend/internal/domain/shared"
	"github.com/wholesale/backend/internal/infrastructure/cache"
	"go.uber.org/zap"
)

type mockIdempotencyStore struct {
	mock.Mock
}

func (m *mockIdempotencyStore) MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, key, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *mockIdempotencyStore) IsProcessed(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

func (m *mockIdempotencyStore) Forget(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

func (m *mockIdempotencyStore) Close() error { return nil }

func TestIdempotentHandler_SkipsRedelivery(t *testing.T) {
	store := cache.NewInMemoryIdempotencyStore()
	defer store.Close()
	inner := &recordingHandler{}
	h := NewIdempotentHandler("notify", inner, store, zap.NewNop())

	event := newTestEvent("OrderPlaced", uuid.New())
	ctx := context.Background()
	require.NoError(t, h.Handle(ctx, event))
	require.NoError(t, h.Handle(ctx, event))

	assert.Equal(t, 1, inner.count())
	assert.Equal(t, IdempotencyStats{Processed: 1, Duplicate: 1}, h.Stats())
}

func TestIdempotentHandler_KeysAreScopedByName(t *testing.T) {
	store := cache.NewInMemoryIdempotencyStore()
	defer store.Close()
	first, second := &recordingHandler{}, &recordingHandler{}
	a := NewIdempotentHandler("notify", first, store, zap.NewNop())
	b := NewIdempotentHandler("audit-mirror", second, store, zap.NewNop())

	event := newTestEvent("OrderPlaced")
	require.NoError(t, a.Handle(context.Background(), event))
	require.NoError(t, b.Handle(context.Background(), event))
	assert.Equal(t, 1, first.count())
	assert.Equal(t, 1, second.count())
}

func TestIdempotentHandler_FailureReleasesKey(t *testing.T) {
	store := cache.NewInMemoryIdempotencyStore()
	defer store.Close()
	inner := &recordingHandler{err: errors.New("publish failed")}
	h := NewIdempotentHandler("notify", inner, store, zap.NewNop())
	event := newTestEvent("OrderPlaced")
	ctx := context.Background()

	assert.Error(t, h.Handle(ctx, event))
	inner.err = nil
	require.NoError(t, h.Handle(ctx, event))
	assert.Equal(t, 2, inner.count())
	assert.Equal(t, int64(1), h.Stats().Failed)
}

func TestIdempotentHandler_StoreErrorStillHandles(t *testing.T) {
	store := new(mockIdempotencyStore)
	store.On("MarkProcessed", mock.Anything, mock.Anything, mock.Anything).Return(false, errors.New("timeout"))
	inner := &recordingHandler{}
	h := NewIdempotentHandler("notify", inner, store, zap.NewNop())

	require.NoError(t, h.Handle(context.Background(), newTestEvent("OrderPlaced")))
	assert.Equal(t, 1, inner.count())
}

func TestIdempotentHandler_Disabled(t *testing.T) {
	store := new(mockIdempotencyStore)
	inner := &recordingHandler{}
	h := NewIdempotentHandler("notify", inner, store, zap.NewNop(),
		WithIdempotencyConfig(shared.IdempotencyConfig{Enabled: false}))

	event := newTestEvent("OrderPlaced")
	require.NoError(t, h.Handle(context.Background(), event))
	require.NoError(t, h.Handle(context.Background(), event))
	assert.Equal(t, 2, inner.count())
	store.AssertNotCalled(t, "MarkProcessed", mock.Anything, mock.Anything, mock.Anything)
}
