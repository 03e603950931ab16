package notification

import (
	"errors"
	"time"
)

const (
	EventTypePackageUpdate    = "package_update"
	EventTypeSecurityUpdate   = "security_update"
	EventTypeHostStatusChange = "host_status_change"
	EventTypeAgentUpdate      = "agent_update"
)

// EventTypes lists the event types rules can subscribe to.
var EventTypes = []string{
	EventTypePackageUpdate,
	EventTypeSecurityUpdate,
	EventTypeHostStatusChange,
	EventTypeAgentUpdate,
}

func IsValidEventType(eventType string) bool {
	for _, t := range EventTypes {
		if t == eventType {
			return true
		}
	}
	return false
}

const (
	FilterTypeHostID      = "host_id"
	FilterTypeHostGroupID = "host_group_id"
)

func IsValidFilterType(filterType string) bool {
	return filterType == FilterTypeHostID || filterType == FilterTypeHostGroupID
}

type ChannelStatus string

const (
	ChannelStatusConnected    ChannelStatus = "connected"
	ChannelStatusDisconnected ChannelStatus = "disconnected"
)

var (
	ErrRuleNotFound    = errors.New("rule not found")
	ErrChannelNotFound = errors.New("channel not found")
)

// Channel is a push server destination. Token is a secret and is never
// serialized.
type Channel struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	ServerURL     string        `json:"server_url"`
	Token         string        `json:"-"`
	Priority      int           `json:"priority"`
	Status        ChannelStatus `json:"status"`
	LastError     string        `json:"last_error,omitempty"`
	LastCheckedAt *time.Time    `json:"last_checked_at,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

type Filter struct {
	FilterType  string `json:"filter_type"`
	FilterValue string `json:"filter_value"`
}

// Rule routes events of one type to an ordered list of channels. Channels and
// Filters are always hydrated by repositories.
type Rule struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Description     string    `json:"description,omitempty"`
	EventType       string    `json:"event_type"`
	Enabled         bool      `json:"enabled"`
	Priority        int       `json:"priority"`
	MessageTitle    string    `json:"message_title,omitempty"`
	MessageTemplate string    `json:"message_template,omitempty"`
	Condition       string    `json:"condition,omitempty"`
	ChannelIDs      []string  `json:"channel_ids"`
	Channels        []Channel `json:"channels"`
	Filters         []Filter  `json:"filters"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type CreateRuleRequest struct {
	Name            string   `json:"name"`
	Description     string   `json:"description"`
	EventType       string   `json:"event_type"`
	ChannelIDs      []string `json:"channel_ids"`
	Priority        *int     `json:"priority"`
	Enabled         *bool    `json:"enabled"`
	MessageTitle    string   `json:"message_title"`
	MessageTemplate string   `json:"message_template"`
	Condition       string   `json:"condition"`
	Filters         []Filter `json:"filters"`
}

// UpdateRuleRequest is a partial update. Nil fields are left unchanged; a
// non-nil ChannelIDs or Filters replaces the existing set.
type UpdateRuleRequest struct {
	Name            *string  `json:"name"`
	Description     *string  `json:"description"`
	EventType       *string  `json:"event_type"`
	ChannelIDs      []string `json:"channel_ids"`
	Priority        *int     `json:"priority"`
	Enabled         *bool    `json:"enabled"`
	MessageTitle    *string  `json:"message_title"`
	MessageTemplate *string  `json:"message_template"`
	Condition       *string  `json:"condition"`
	Filters         []Filter `json:"filters"`
}

type TestChannelRequest struct {
	ServerURL string `json:"server_url"`
	Token     string `json:"token"`
}

type ChannelInfo struct {
	ChannelID string `json:"channel_id"`
	Version   string `json:"version,omitempty"`
	Error     string `json:"error,omitempty"`
}
