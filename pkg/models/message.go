package models

import "time"

type MessageEnvelope struct {
	ID        string                 `json:"id"`
	Source    string                 `json:"source"`
	Timestamp time.Time              `json:"timestamp"`
	Payload   map[string]interface{} `json:"payload"`  // Business data
	Metadata  Metadata               `json:"metadata"` // Trace id and DLQ annotations
}

type Metadata struct {
	TraceID string                 `json:"trace_id,omitempty"`
	Extra   map[string]interface{} `json:"extra,omitempty"`
}
