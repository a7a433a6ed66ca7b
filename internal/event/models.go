package event

import (
	"bytes"
	"encoding/json"
)

// FlexString decodes a JSON string, number, or null into a string. Member ids
// arrive as numbers from the membership platform but are stringified for
// every lookup in this system.
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	*f = FlexString(data)
	return nil
}

// Member is the membership-platform person entity as carried by events. Only
// the id→email projection is ever persisted (in the identity cache).
type Member struct {
	ID        FlexString `json:"id"`
	Email     string     `json:"email"`
	FirstName string     `json:"first_name"`
	LastName  string     `json:"last_name"`
	// CreatedAt is either an ISO-8601 string or a unix timestamp.
	CreatedAt any `json:"created_at"`
	// Extra holds any additional payload attributes so configured mappings
	// beyond the fixed fields can flow through to the remote record.
	Extra map[string]any `json:"-"`
}

var memberKnownKeys = []string{"id", "email", "first_name", "last_name", "created_at"}

func (m *Member) UnmarshalJSON(data []byte) error {
	type plain Member
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for _, key := range memberKnownKeys {
		delete(raw, key)
	}
	*m = Member(p)
	if len(raw) > 0 {
		m.Extra = raw
	}
	return nil
}

// SubscriptionPlan is the nested plan object some subscription payloads use
// instead of a flat plan_name.
type SubscriptionPlan struct {
	Name string `json:"name"`
}

// Subscription is ephemeral: it exists for the duration of one sync call and
// is never cached. Active and Autorenew tolerate booleans or string forms;
// ExpiresAt tolerates ISO-8601 or unix timestamps.
type Subscription struct {
	PlanName         string           `json:"plan_name"`
	SubscriptionPlan SubscriptionPlan `json:"subscription_plan"`
	Active           any              `json:"active"`
	Autorenew        any              `json:"autorenew"`
	ExpiresAt        any              `json:"expires_at"`
	Member           *Member          `json:"member"`
}

// Plan returns the flat plan name, falling back to the nested plan object.
func (s *Subscription) Plan() string {
	if s.PlanName != "" {
		return s.PlanName
	}
	return s.SubscriptionPlan.Name
}
