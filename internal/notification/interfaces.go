package notification

import (
	"context"
	"time"
)

// Repository persists rules together with their filters and channel
// associations. Every read returns fully hydrated rules.
type Repository interface {
	CreateRule(ctx context.Context, rule *Rule) error
	GetRule(ctx context.Context, id string) (*Rule, error)
	ListRules(ctx context.Context) ([]Rule, error)
	// UpdateRule writes the rule row. Channel associations and filters are
	// replaced only when the matching flag is set.
	UpdateRule(ctx context.Context, rule *Rule, replaceChannels, replaceFilters bool) error
	DeleteRule(ctx context.Context, id string) error
	GetMatchingRules(ctx context.Context, eventType string) ([]Rule, error)
}

type ChannelRepository interface {
	CreateChannel(ctx context.Context, channel *Channel) error
	GetChannel(ctx context.Context, id string) (*Channel, error)
	ListChannels(ctx context.Context) ([]Channel, error)
	// MissingChannelIDs returns the ids that do not resolve to a channel.
	MissingChannelIDs(ctx context.Context, ids []string) ([]string, error)
	UpdateChannelStatus(ctx context.Context, id string, status ChannelStatus, lastError string, checkedAt time.Time) error
}

type Service interface {
	CreateRule(ctx context.Context, req CreateRuleRequest) (*Rule, error)
	GetRule(ctx context.Context, id string) (*Rule, error)
	ListRules(ctx context.Context) ([]Rule, error)
	UpdateRule(ctx context.Context, id string, req UpdateRuleRequest) (*Rule, error)
	DeleteRule(ctx context.Context, id string) (*Rule, error)
	ToggleRule(ctx context.Context, id string) (*Rule, error)
	GetMatchingEventType(ctx context.Context, eventType string) ([]Rule, error)
}
