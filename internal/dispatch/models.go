package dispatch

// Result counts delivery outcomes for one event across every matching rule
// and channel.
type Result struct {
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
}

// EventRequest is the body accepted by the manual dispatch endpoint and the
// payload shape of envelopes on the events topic.
type EventRequest struct {
	EventType string                 `json:"event_type" binding:"required"`
	EventData map[string]interface{} `json:"event_data"`
}
