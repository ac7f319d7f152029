package event

import (
	"strings"
	"testing"
	"time"
)

func TestNewTruncatesBody(t *testing.T) {
	long := strings.Repeat("x", MaxBodyLen+500)
	ev := New(SourceMail, TypeNewEmail, "subject", "sender", long, time.Now(), "1", nil)

	if len(ev.Body) != MaxBodyLen+3 {
		t.Errorf("body length = %d, want %d", len(ev.Body), MaxBodyLen+3)
	}
	if !strings.HasSuffix(ev.Body, "...") {
		t.Error("truncated body should end with ellipsis marker")
	}
}

func TestNewKeepsShortBody(t *testing.T) {
	ev := New(SourceMail, TypeNewEmail, "subject", "sender", "short", time.Now(), "1", nil)
	if ev.Body != "short" {
		t.Errorf("body = %q, want %q", ev.Body, "short")
	}
}

func TestKey(t *testing.T) {
	ev := New(SourceCalendar, TypeUpcomingEvent, "standup", "", "", time.Now(), "uid-42", nil)
	if got := ev.Key(); got != "calendar/upcoming_event/uid-42" {
		t.Errorf("Key() = %q", got)
	}
}

func TestSummary(t *testing.T) {
	tests := []struct {
		name string
		ev   Event
		want string
	}{
		{
			name: "with sender",
			ev:   New(SourceMail, TypeNewEmail, "Hello", "alice@example.com", "", time.Now(), "1", nil),
			want: "new_email from alice@example.com: Hello",
		},
		{
			name: "without sender",
			ev:   New(SourceCalendar, TypeNewEvent, "Standup", "", "", time.Now(), "2", nil),
			want: "new_event: Standup",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.ev.Summary(); got != tt.want {
				t.Errorf("Summary() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"hello", 10, "hello"},
		{"hello", 5, "hello"},
		{"hello world", 5, "hello..."},
		{"", 5, ""},
	}

	for _, tt := range tests {
		if got := Truncate(tt.in, tt.n); got != tt.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}
