package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/quangdang46/talent-passport/services/sponsorship-proxy/internal/domain"
	"github.com/quangdang46/talent-passport/shared/contracts"
	"github.com/quangdang46/talent-passport/shared/logging"
)

type MockAMQPClient struct {
	mock.Mock
}

func (m *MockAMQPClient) Publish(ctx context.Context, message contracts.AMQPMessage) error {
	return m.Called(ctx, message).Error(0)
}

func (m *MockAMQPClient) Close() error {
	return m.Called().Error(0)
}

func TestPublishSponsorshipExecuted(t *testing.T) {
	client := new(MockAMQPClient)
	var published contracts.AMQPMessage
	client.On("Publish", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { published = args.Get(1).(contracts.AMQPMessage) }).
		Return(nil)

	publisher := NewEventPublisher(client, logging.NewNop())
	executedAt := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	err := publisher.PublishSponsorshipExecuted(context.Background(), &domain.SponsorshipExecutedEvent{
		Digest:        "D1",
		Network:       "testnet",
		CorrelationID: "corr-1",
		ExecutedAt:    executedAt,
	})
	require.NoError(t, err)

	assert.Equal(t, contracts.SponsorshipExchange, published.Exchange)
	assert.Equal(t, contracts.SponsorshipExecutedKey, published.RoutingKey)
	assert.Equal(t, "sponsorship.executed.v1", published.Headers["schema"])

	var body map[string]string
	require.NoError(t, json.Unmarshal(published.Body, &body))
	assert.Equal(t, "D1", body["digest"])
	assert.Equal(t, "testnet", body["network"])
	assert.Equal(t, "2026-10-01T12:00:00Z", body["executed_at"])
}

func TestPublishSponsorshipExecuted_WithoutBroker(t *testing.T) {
	publisher := NewEventPublisher(nil, logging.NewNop())
	err := publisher.PublishSponsorshipExecuted(context.Background(), &domain.SponsorshipExecutedEvent{Digest: "D1"})
	assert.NoError(t, err)
}
