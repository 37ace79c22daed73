// Package event defines the tracking event record shared by the ingestion
// layer, the queue, and the batch dispatcher.
package event

import "time"

// Status identifies the kind of engagement signal an event carries.
type Status string

const (
	StatusSent  Status = "sent"
	StatusOpen  Status = "open"
	StatusClick Status = "click"
)

// SnippetLimit is the maximum stored length of a sent-event body snippet.
const SnippetLimit = 120

// TrackingEvent is one engagement signal. It is immutable once enqueued and
// carries everything a sink row needs, so no lookups happen at flush time.
type TrackingEvent struct {
	Timestamp     string `json:"ts"`
	Status        Status `json:"status"`
	TrackingID    string `json:"tracking_id"`
	RecipientID   string `json:"recipient_id"`
	RecipientName string `json:"recipient_name"`
	URL           string `json:"url,omitempty"`
	IPAddress     string `json:"ip_address,omitempty"`
	UserAgent     string `json:"user_agent,omitempty"`
	LinkID        string `json:"link_id,omitempty"`
	Subject       string `json:"subject,omitempty"`
	BodySnippet   string `json:"body_snippet,omitempty"`
}

// NowTimestamp returns the current UTC time in the second-precision
// ISO-8601 form the sinks expect, e.g. "2025-04-04T12:03:05Z".
func NowTimestamp() string {
	return time.Now().UTC().Truncate(time.Second).Format(time.RFC3339)
}

// TruncateSnippet caps a body snippet at SnippetLimit characters. Counted
// in runes, not bytes, so multibyte subject lines are never split mid-rune.
func TruncateSnippet(s string) string {
	r := []rune(s)
	if len(r) > SnippetLimit {
		return string(r[:SnippetLimit])
	}
	return s
}
