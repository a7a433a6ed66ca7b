package audit

import "encoding/json"

// Status classifies the outcome recorded by a log entry.
type Status string

const (
	StatusSuccess   Status = "success"
	StatusError     Status = "error"
	StatusException Status = "exception"
	// StatusFailed is part of the log schema but not produced by this
	// service; entries written by earlier tooling carry it and must round-trip
	// through the log blob unchanged.
	StatusFailed Status = "failed"
)

// Entry is one appended record. Entries are never mutated or removed by this
// service; operators may prune the blob externally.
type Entry struct {
	ID        string          `json:"id"`
	Timestamp string          `json:"timestamp"`
	Event     string          `json:"event"`
	Email     string          `json:"email"`
	Status    Status          `json:"status"`
	Changes   map[string]any  `json:"changes,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}
