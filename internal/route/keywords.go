package route

import (
	"fmt"
	"strings"

	"github.com/pearcec/chandra/internal/event"
)

// Keyword tiers for the deterministic fallback classifier. Urgent terms win
// over action terms; anything matching neither is ignored.
var (
	urgentKeywords = []string{
		"urgent",
		"asap",
		"immediately",
		"deadline",
		"overdue",
		"past due",
		"final notice",
		"action required",
		"expires today",
		"due today",
	}

	actionKeywords = []string{
		"please review",
		"please respond",
		"please confirm",
		"invoice",
		"payment",
		"approval needed",
		"sign",
		"schedule",
		"reschedule",
		"follow up",
		"reply needed",
		"rsvp",
	}
)

// classifyFallback classifies an event from its subject and body alone.
// It is deliberately conservative: it only ever produces create_reminder or
// ignore, never schedules tasks or runs agents.
func classifyFallback(ev event.Event) Classification {
	text := strings.ToLower(ev.Subject + " " + ev.Body)

	for _, kw := range urgentKeywords {
		if strings.Contains(text, kw) {
			return Classification{
				Action:   ActionCreateReminder,
				Priority: PriorityHigh,
				Reason:   fmt.Sprintf("matched urgent keyword %q", kw),
				Title:    ev.Subject,
			}
		}
	}

	// Review requests without urgent markers still deserve a reminder.
	if ev.Type == event.TypeCodeReviewRequest {
		return Classification{
			Action:   ActionCreateReminder,
			Priority: PriorityMedium,
			Reason:   "review requested",
			Title:    fmt.Sprintf("Review: %s", ev.Subject),
		}
	}

	for _, kw := range actionKeywords {
		if strings.Contains(text, kw) {
			return Classification{
				Action:   ActionCreateReminder,
				Priority: PriorityMedium,
				Reason:   fmt.Sprintf("matched keyword %q", kw),
				Title:    ev.Subject,
			}
		}
	}
	return Classification{
		Action:   ActionIgnore,
		Priority: PriorityLow,
		Reason:   "no actionable keywords",
	}
}
