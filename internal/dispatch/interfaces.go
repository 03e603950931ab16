package dispatch

import (
	"context"
	"time"

	"herald/internal/history"
	"herald/internal/notification"
)

// RuleSource returns enabled rules for an event type, hydrated with their
// channels and filters, in dispatch order.
type RuleSource interface {
	GetMatchingEventType(ctx context.Context, eventType string) ([]notification.Rule, error)
}

type ChannelStatusWriter interface {
	UpdateChannelStatus(ctx context.Context, id string, status notification.ChannelStatus, lastError string, checkedAt time.Time) error
}

type Ledger interface {
	LogDelivery(ctx context.Context, record history.DeliveryRecord) (*history.Entry, error)
}

type Service interface {
	SendNotification(ctx context.Context, eventType string, data map[string]interface{}) (Result, error)
}
