package dispatch

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"herald/internal/gateway"
	"herald/internal/history"
	"herald/internal/logger"
	"herald/internal/notification"
	"herald/pkg/metrics"
	"herald/pkg/tracing"
)

const (
	tracerName = "herald-dispatch"

	// recordTimeout bounds the ledger and status writes that follow a send.
	recordTimeout = 5 * time.Second
)

type service struct {
	rules      RuleSource
	channels   ChannelStatusWriter
	ledger     Ledger
	gateway    gateway.Client
	conditions notification.ConditionEvaluator
	now        func() time.Time
	logger     logger.Logger
}

type ServiceOption func(*service)

func WithConditions(conditions notification.ConditionEvaluator) ServiceOption {
	return func(s *service) {
		s.conditions = conditions
	}
}

func WithClock(now func() time.Time) ServiceOption {
	return func(s *service) {
		s.now = now
	}
}

func WithLogger(log logger.Logger) ServiceOption {
	return func(s *service) {
		s.logger = log
	}
}

func NewService(rules RuleSource, channels ChannelStatusWriter, ledger Ledger, gw gateway.Client, opts ...ServiceOption) Service {
	s := &service{
		rules:    rules,
		channels: channels,
		ledger:   ledger,
		gateway:  gw,
		now:      time.Now,
		logger:   logger.NopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SendNotification delivers eventType to every channel of every matching rule,
// one send at a time. Per-channel failures are counted, never returned, and an
// unknown event type yields a zero Result. An error means the rules could not be loaded or ctx ended; deliveries made
// before that stay recorded.
func (s *service) SendNotification(ctx context.Context, eventType string, data map[string]interface{}) (result Result, err error) {
	ctx, span := tracing.StartSpan(ctx, tracerName, "dispatch.send_notification",
		attribute.String("event.type", eventType),
	)
	defer span.End()

	start := time.Now()
	defer func() {
		status := "success"
		if err != nil {
			status = "error"
			tracing.RecordError(span, err)
		}
		span.SetAttributes(
			attribute.Int("dispatch.sent", result.Sent),
			attribute.Int("dispatch.failed", result.Failed),
		)
		metrics.IncDispatchEvent(eventType, status)
		metrics.ObserveDispatchDuration(eventType, time.Since(start))
	}()

	if !notification.IsValidEventType(eventType) {
		s.logger.WarnwCtx(ctx, "Ignoring event with unknown type", "event_type", eventType)
		return result, nil
	}
	if data == nil {
		data = map[string]interface{}{}
	}

	rules, err := s.rules.GetMatchingEventType(ctx, eventType)
	if err != nil {
		s.logger.ErrorwCtx(ctx, "Failed to load matching rules",
			"event_type", eventType,
			"error", err,
		)
		return result, err
	}
	metrics.SetMatchingRules(eventType, len(rules))

	for _, rule := range rules {
		if !s.matches(ctx, rule, eventType, data) {
			continue
		}

		msg := notification.Render(rule, data)
		for _, channel := range rule.Channels {
			if err := ctx.Err(); err != nil {
				return result, err
			}

			if s.deliver(ctx, rule, channel, msg) {
				result.Sent++
			} else {
				result.Failed++
			}
		}
	}

	s.logger.InfowCtx(ctx, "Event dispatched",
		"event_type", eventType,
		"rules", len(rules),
		"sent", result.Sent,
		"failed", result.Failed,
	)
	return result, nil
}

func (s *service) matches(ctx context.Context, rule notification.Rule, eventType string, data map[string]interface{}) bool {
	if !notification.MatchesFilters(rule.Filters, data) {
		metrics.IncRuleEvaluation(eventType, "filtered")
		return false
	}

	if rule.Condition != "" && s.conditions != nil {
		ok, err := s.conditions.EvaluateCondition(ctx, rule.Condition, eventType, data)
		if err != nil {
			metrics.IncRuleEvaluation(eventType, "condition_error")
			s.logger.WarnwCtx(ctx, "Rule condition failed to evaluate, skipping rule",
				"rule_id", rule.ID,
				"error", err,
			)
			return false
		}
		if !ok {
			metrics.IncRuleEvaluation(eventType, "condition_false")
			return false
		}
	}

	metrics.IncRuleEvaluation(eventType, "matched")
	return true
}

// deliver sends msg to one channel and records the outcome. It reports
// whether the push server accepted the message.
func (s *service) deliver(ctx context.Context, rule notification.Rule, channel notification.Channel, msg notification.Message) bool {
	ctx, span := tracing.StartSpan(ctx, tracerName, "dispatch.deliver",
		attribute.String("rule.id", rule.ID),
		attribute.String("channel.id", channel.ID),
	)
	defer span.End()

	priority := rule.Priority
	res := s.gateway.SendMessage(ctx, channel.ServerURL, channel.Token, gateway.Message{
		Title:    msg.Title,
		Message:  msg.Body,
		Priority: &priority,
	})

	record := history.DeliveryRecord{
		ChannelID: channel.ID,
		RuleID:    rule.ID,
		Status:    history.StatusSent,
		Title:     msg.Title,
		Content:   msg.Body,
	}
	channelStatus := notification.ChannelStatusConnected
	if !res.Success {
		record.Status = history.StatusFailed
		record.Error = res.Error
		channelStatus = notification.ChannelStatusDisconnected
		span.SetAttributes(attribute.String("delivery.error", res.Error))

		s.logger.WarnwCtx(ctx, "Delivery failed",
			"rule_id", rule.ID,
			"channel_id", channel.ID,
			"error", res.Error,
		)
	}
	metrics.IncDelivery(rule.EventType, string(record.Status))

	// The attempt is recorded even when the caller has gone away mid-send.
	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()

	if _, err := s.ledger.LogDelivery(recordCtx, record); err != nil {
		metrics.IncLedgerWriteFailure("history")
		s.logger.ErrorwCtx(ctx, "Failed to record delivery",
			"rule_id", rule.ID,
			"channel_id", channel.ID,
			"status", record.Status,
			"error", err,
		)
	}

	if err := s.channels.UpdateChannelStatus(recordCtx, channel.ID, channelStatus, record.Error, s.now().UTC()); err != nil {
		metrics.IncLedgerWriteFailure("channel_status")
		s.logger.ErrorwCtx(ctx, "Failed to update channel status",
			"channel_id", channel.ID,
			"status", channelStatus,
			"error", err,
		)
	}

	return res.Success
}
