package sync

import (
	"encoding/json"
	"strings"
	"time"
)

// FormatDate normalizes a date value from a webhook payload to YYYY-MM-DD.
// It accepts a unix timestamp (any numeric form) or an ISO-8601 string with
// or without a trailing Z. Anything unparsable yields "" rather than an
// error: a blank remote field beats a failed sync.
func FormatDate(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case float64:
		return time.Unix(int64(v), 0).UTC().Format("2006-01-02")
	case int64:
		return time.Unix(v, 0).UTC().Format("2006-01-02")
	case int:
		return time.Unix(int64(v), 0).UTC().Format("2006-01-02")
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return time.Unix(n, 0).UTC().Format("2006-01-02")
		}
		return ""
	case string:
		return formatDateString(v)
	default:
		return ""
	}
}

func formatDateString(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC().Format("2006-01-02")
		}
	}
	return ""
}

// YesNo renders a plan-active flag as the audience's Yes/No label. Accepts a
// real boolean or a case-insensitive "true" string.
func YesNo(value any) string {
	if truthy(value) {
		return "Yes"
	}
	return "No"
}

// OnOff renders an autorenew flag as the audience's On/Off label.
func OnOff(value any) string {
	if truthy(value) {
		return "On"
	}
	return "Off"
}

func truthy(value any) bool {
	switch v := value.(type) {
	case bool:
		return v
	case string:
		return strings.EqualFold(v, "true")
	default:
		return false
	}
}
