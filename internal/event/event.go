// Package event defines the source-agnostic event record emitted by watchers.
// An Event is fully formed when a watcher constructs it and is never mutated
// afterwards; everything downstream treats it as a value.
package event

import (
	"fmt"
	"time"
)

// Source identifiers. Each watcher owns exactly one.
const (
	SourceCalendar      = "calendar"
	SourceMail          = "mail"
	SourceMessages      = "messages"
	SourceNotifications = "notifications"
	SourceCodeReview    = "code_review"
)

// Event subtypes.
const (
	TypeNewEmail          = "new_email"
	TypeNewEvent          = "new_event"
	TypeUpcomingEvent     = "upcoming_event"
	TypeNewMessage        = "new_message"
	TypeNotification      = "notification"
	TypeCodeReviewRequest = "code_review_request"
)

// MaxBodyLen caps the body carried on an event. Watchers truncate before
// construction; New enforces the cap regardless.
const MaxBodyLen = 2000

// Event is a single observation from one source.
type Event struct {
	Source    string            `json:"source"`
	Type      string            `json:"type"`
	Subject   string            `json:"subject"`
	Sender    string            `json:"sender"`
	Body      string            `json:"body"`
	Timestamp time.Time         `json:"timestamp"`
	RawID     string            `json:"raw_id"`
	Meta      map[string]string `json:"metadata,omitempty"`
}

// New builds an event, truncating the body to MaxBodyLen.
func New(source, typ, subject, sender, body string, ts time.Time, rawID string, meta map[string]string) Event {
	return Event{
		Source:    source,
		Type:      typ,
		Subject:   subject,
		Sender:    sender,
		Body:      Truncate(body, MaxBodyLen),
		Timestamp: ts,
		RawID:     rawID,
		Meta:      meta,
	}
}

// Key returns a stable identifier for logging: source/type/rawID.
func (e Event) Key() string {
	return fmt.Sprintf("%s/%s/%s", e.Source, e.Type, e.RawID)
}

// Summary returns a short human-readable description of the event.
func (e Event) Summary() string {
	if e.Sender != "" {
		return fmt.Sprintf("%s from %s: %s", e.Type, e.Sender, e.Subject)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Subject)
}

// Truncate shortens s to at most n bytes, appending an ellipsis marker
// when anything was cut.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
