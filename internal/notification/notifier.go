package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"herald/internal/broker"
	"herald/internal/constants"
	"herald/pkg/models"
)

// RuleEventPublisher announces rule mutations on a broker topic.
type RuleEventPublisher struct {
	producer broker.Producer
	topic    string
}

func NewRuleEventPublisher(producer broker.Producer, topic string) *RuleEventPublisher {
	return &RuleEventPublisher{
		producer: producer,
		topic:    topic,
	}
}

func (p *RuleEventPublisher) PublishRuleEvent(ctx context.Context, action string, rule *Rule) error {
	if p == nil || p.producer == nil || p.topic == "" {
		return nil
	}

	event := models.RuleChangeEvent{
		EventType:   models.EventTypeNotificationRuleUpdated,
		RuleID:      rule.ID,
		RuleEventOn: rule.EventType,
		Action:      action,
		Timestamp:   time.Now(),
		Metadata: map[string]interface{}{
			"enabled":  rule.Enabled,
			"channels": len(rule.ChannelIDs),
		},
	}

	eventJSON, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal rule event: %w", err)
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(eventJSON, &payload); err != nil {
		return fmt.Errorf("failed to unmarshal rule event: %w", err)
	}

	envelope := models.NewMessageEnvelopeBuilder().
		WithSource(constants.ServiceName).
		WithPayload(payload).
		Build()

	return p.producer.Publish(ctx, p.topic, *envelope)
}
