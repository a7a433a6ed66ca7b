package webhook

import (
	"encoding/json"
	"fmt"

	"github.com/sambatesdesign/ChimpLink/internal/event"
)

// Order wraps the member a failed-order event nests.
type Order struct {
	Member *event.Member `json:"member"`
}

// Envelope is the decoded membership-platform event. Raw keeps the original
// bytes for logging and replay.
type Envelope struct {
	Event        string              `json:"event"`
	Member       *event.Member       `json:"member"`
	Subscription *event.Subscription `json:"subscription"`
	Order        *Order              `json:"order"`
	Changed      map[string]any      `json:"changed"`
	Raw          json.RawMessage     `json:"-"`
}

// DecodeEnvelope parses a raw webhook body. Only malformed JSON is an error;
// missing fields are presence-checked downstream.
func DecodeEnvelope(raw []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode webhook body: %w", err)
	}
	env.Raw = append(json.RawMessage(nil), raw...)
	return &env, nil
}
