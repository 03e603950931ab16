package models

import "time"

// RuleChangeEvent is published whenever a notification rule is mutated.
type RuleChangeEvent struct {
	EventType   string                 `json:"event_type"` // "notification_rule_updated"
	RuleID      string                 `json:"rule_id,omitempty"`
	RuleEventOn string                 `json:"rule_event_type,omitempty"` // event type the rule listens to
	Action      string                 `json:"action"`                    // "create", "update", "delete", "toggle"
	Timestamp   time.Time              `json:"timestamp"`
	ChangedBy   string                 `json:"changed_by,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

const (
	EventTypeNotificationRuleUpdated = "notification_rule_updated"
)

const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
	ActionToggle = "toggle"
)

const (
	PayloadKeyEventType = "event_type"
	PayloadKeyEventData = "event_data"
)
