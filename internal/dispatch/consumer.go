package dispatch

import (
	"context"
	"fmt"

	"herald/internal/logger"
	pkgerrors "herald/pkg/errors"
	"herald/pkg/models"
	"herald/pkg/retry"
)

// EventHandler feeds envelopes from the events topic into the dispatcher.
type EventHandler struct {
	service Service
	logger  logger.Logger
}

func NewEventHandler(service Service, log logger.Logger) *EventHandler {
	return &EventHandler{service: service, logger: log}
}

// HandleEvent dispatches one envelope. Envelopes that can never succeed are
// returned as fatal so the consumer routes them to the DLQ without retrying;
// storage failures are returned as is and retried.
func (h *EventHandler) HandleEvent(ctx context.Context, msg models.MessageEnvelope) error {
	eventType, data, err := parseEvent(msg)
	if err != nil {
		h.logger.WarnwCtx(ctx, "Rejecting malformed event",
			"message_id", msg.ID,
			"error", err,
		)
		return retry.NewFatalError(err)
	}

	result, err := h.service.SendNotification(ctx, eventType, data)
	if err != nil {
		if pkgerrors.IsValidation(err) {
			return retry.NewFatalError(err)
		}
		return err
	}

	h.logger.DebugwCtx(ctx, "Event consumed",
		"message_id", msg.ID,
		"event_type", eventType,
		"sent", result.Sent,
		"failed", result.Failed,
	)
	return nil
}

func parseEvent(msg models.MessageEnvelope) (string, map[string]interface{}, error) {
	eventType, ok := msg.Payload[models.PayloadKeyEventType].(string)
	if !ok || eventType == "" {
		return "", nil, fmt.Errorf("payload has no %s", models.PayloadKeyEventType)
	}

	raw, present := msg.Payload[models.PayloadKeyEventData]
	if !present || raw == nil {
		return eventType, map[string]interface{}{}, nil
	}
	data, ok := raw.(map[string]interface{})
	if !ok {
		return "", nil, fmt.Errorf("%s must be an object, got %T", models.PayloadKeyEventData, raw)
	}
	return eventType, data, nil
}
