package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/quangdang46/talent-passport/services/sponsorship-proxy/internal/domain"
	"github.com/quangdang46/talent-passport/shared/contracts"
	"github.com/quangdang46/talent-passport/shared/logging"
)

// EventPublisher publishes sponsorship events to AMQP
type EventPublisher struct {
	amqp   contracts.AMQPClient
	logger *logging.Logger
}

// NewEventPublisher accepts a nil client; events are then only logged
func NewEventPublisher(amqp contracts.AMQPClient, logger *logging.Logger) *EventPublisher {
	return &EventPublisher{amqp: amqp, logger: logger}
}

// PublishSponsorshipExecuted publishes a sponsorship.executed event
func (p *EventPublisher) PublishSponsorshipExecuted(ctx context.Context, event *domain.SponsorshipExecutedEvent) error {
	if p.amqp == nil {
		p.logger.WithContext(ctx).WithField("digest", event.Digest).Debug("AMQP not configured, skipping sponsorship.executed event")
		return nil
	}

	payload := map[string]interface{}{
		"digest":         event.Digest,
		"network":        event.Network,
		"correlation_id": event.CorrelationID,
		"executed_at":    event.ExecutedAt.Format(time.RFC3339),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal sponsorship.executed event: %w", err)
	}

	return p.amqp.Publish(ctx, contracts.AMQPMessage{
		Exchange:   contracts.SponsorshipExchange,
		RoutingKey: contracts.SponsorshipExecutedKey,
		Body:       body,
		Headers: map[string]interface{}{
			"event_type":   "sponsorship.executed",
			"schema":       "sponsorship.executed.v1",
			"published_at": time.Now().Format(time.RFC3339),
			"service":      "sponsorship-proxy",
		},
	})
}
