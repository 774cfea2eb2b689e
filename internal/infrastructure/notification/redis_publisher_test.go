package notification

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/wholesale/backend/internal/domain/dispute"
	"github.com/wholesale/backend/internal/domain/shared"
	"go.uber.org/zap"
)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, channel string, message any) *redis.IntCmd {
	args := m.Called(ctx, channel, message)
	cmd := redis.NewIntCmd(ctx)
	if err := args.Error(0); err != nil {
		cmd.SetErr(err)
	} else {
		cmd.SetVal(1)
	}
	return cmd
}

type sampleEvent struct {
	shared.BaseDomainEvent
	Note string `json:"note"`
}

func TestRedisPublisher_PublishesToRecipients(t *testing.T) {
	buyer, seller := uuid.New(), uuid.New()
	event := &sampleEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(dispute.EventTypeStatusChanged, dispute.AggregateTypeDispute, uuid.New(), buyer, seller, buyer),
		Note:            "under review",
	}

	client := new(mockPublisher)
	var published []byte
	client.On("Publish", mock.Anything, "custom.channel", mock.Anything).
		Run(func(args mock.Arguments) { published = args.Get(2).([]byte) }).
		Return(nil)

	p := NewRedisPublisher(client, "custom.channel", zap.NewNop())
	require.NoError(t, p.Handle(context.Background(), event))
	client.AssertExpectations(t)

	var msg Message
	require.NoError(t, json.Unmarshal(published, &msg))
	assert.Equal(t, event.EventID(), msg.EventID)
	assert.Equal(t, []uuid.UUID{buyer, seller}, msg.Recipients)
	assert.Contains(t, string(msg.Event), `"note":"under review"`)
}

func TestRedisPublisher_SkipsEventsWithoutRecipients(t *testing.T) {
	client := new(mockPublisher)
	p := NewRedisPublisher(client, "", zap.NewNop())

	event := &sampleEvent{BaseDomainEvent: shared.NewBaseDomainEvent("Silent", "Test", uuid.New())}
	require.NoError(t, p.Handle(context.Background(), event))
	client.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
	assert.Equal(t, DefaultChannel, p.channel)
}

func TestRedisPublisher_ReturnsPublishError(t *testing.T) {
	client := new(mockPublisher)
	client.On("Publish", mock.Anything, DefaultChannel, mock.Anything).Return(errors.New("connection refused"))
	p := NewRedisPublisher(client, "", zap.NewNop())

	event := &sampleEvent{BaseDomainEvent: shared.NewBaseDomainEvent("Loud", "Test", uuid.New(), uuid.New())}
	err := p.Handle(context.Background(), event)
	assert.ErrorContains(t, err, "connection refused")
}
