package route

import (
	"testing"
	"time"

	"github.com/pearcec/chandra/internal/event"
)

func TestClassifyFallback(t *testing.T) {
	tests := []struct {
		name         string
		subject      string
		body         string
		wantAction   string
		wantPriority string
	}{
		{
			name:         "urgent invoice",
			subject:      "URGENT: invoice due today",
			wantAction:   ActionCreateReminder,
			wantPriority: PriorityHigh,
		},
		{
			name:         "newsletter",
			subject:      "Weekly Newsletter",
			body:         "This week in tech...",
			wantAction:   ActionIgnore,
			wantPriority: PriorityLow,
		},
		{
			name:         "action keyword in body",
			subject:      "Contract",
			body:         "Please review the attached contract",
			wantAction:   ActionCreateReminder,
			wantPriority: PriorityMedium,
		},
		{
			name:         "deadline beats action keyword",
			subject:      "Please review before the deadline",
			wantAction:   ActionCreateReminder,
			wantPriority: PriorityHigh,
		},
		{
			name:         "case insensitive",
			subject:      "AsAp response needed",
			wantAction:   ActionCreateReminder,
			wantPriority: PriorityHigh,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := event.New(event.SourceMail, event.TypeNewEmail, tt.subject, "x@example.com",
				tt.body, time.Now(), "1", nil)
			c := classifyFallback(ev)
			if c.Action != tt.wantAction {
				t.Errorf("action = %q, want %q", c.Action, tt.wantAction)
			}
			if c.Priority != tt.wantPriority {
				t.Errorf("priority = %q, want %q", c.Priority, tt.wantPriority)
			}
		})
	}
}

func TestClassifyFallbackReviewRequests(t *testing.T) {
	ev := event.New(event.SourceCodeReview, event.TypeCodeReviewRequest, "Fix flaky test",
		"alice", "", time.Now(), "12", nil)
	c := classifyFallback(ev)
	if c.Action != ActionCreateReminder || c.Priority != PriorityMedium {
		t.Errorf("review request classified as %s/%s", c.Action, c.Priority)
	}
}

func TestClassifyFallbackUrgentReviewRequestIsHigh(t *testing.T) {
	ev := event.New(event.SourceCodeReview, event.TypeCodeReviewRequest, "URGENT: deadline today",
		"alice", "", time.Now(), "13", nil)
	c := classifyFallback(ev)
	if c.Priority != PriorityHigh {
		t.Errorf("priority = %q, want high; urgent keywords outrank the review default", c.Priority)
	}
	if c.Action != ActionCreateReminder {
		t.Errorf("action = %q", c.Action)
	}
}
