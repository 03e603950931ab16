package history

import (
	"time"
)

type Status string

const (
	StatusSent   Status = "sent"
	StatusFailed Status = "failed"
)

func IsValidStatus(s string) bool {
	return s == string(StatusSent) || s == string(StatusFailed)
}

// Entry is one delivery attempt from a rule to a channel. Entries are written
// once and never modified. ErrorMessage is set iff Status is failed.
type Entry struct {
	ID             string    `json:"id" db:"id" bson:"_id"`
	ChannelID      string    `json:"channel_id" db:"channel_id" bson:"channel_id"`
	RuleID         string    `json:"rule_id" db:"rule_id" bson:"rule_id"`
	EventType      string    `json:"event_type" db:"event_type" bson:"event_type"`
	Status         Status    `json:"status" db:"status" bson:"status"`
	MessageTitle   string    `json:"message_title" db:"message_title" bson:"message_title"`
	MessageContent string    `json:"message_content" db:"message_content" bson:"message_content"`
	ErrorMessage   *string   `json:"error_message,omitempty" db:"error_message" bson:"error_message,omitempty"`
	SentAt         time.Time `json:"sent_at" db:"sent_at" bson:"sent_at"`
}

// DeliveryRecord is the outcome of one send as reported by the dispatcher.
type DeliveryRecord struct {
	ChannelID string
	RuleID    string
	Status    Status
	Title     string
	Content   string
	Error     string
}

// Filter selects history entries. Zero values mean "no constraint"; the date
// range is inclusive on both ends.
type Filter struct {
	StartDate *time.Time
	EndDate   *time.Time
	EventType string
	ChannelID string
	Status    Status
	Limit     int
	Offset    int
}

type Pagination struct {
	Total   int  `json:"total"`
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"hasMore"`
}

type Page struct {
	Data       []Entry    `json:"data"`
	Pagination Pagination `json:"pagination"`
}
