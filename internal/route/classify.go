package route

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/pearcec/chandra/internal/event"
)

// buildPrompt renders the classification request sent to the remote model.
// The model is asked for strict JSON; parseClassification tolerates the
// prose and code fences small models wrap it in anyway.
func buildPrompt(ev event.Event) string {
	var b strings.Builder
	b.WriteString("You triage events for a personal assistant. ")
	b.WriteString("Classify the event below and respond with ONLY a JSON object, no other text.\n\n")
	fmt.Fprintf(&b, "Source: %s\nType: %s\nTime: %s\nFrom: %s\nSubject: %s\n",
		ev.Source, ev.Type, ev.Timestamp.Format(time.RFC3339), ev.Sender, ev.Subject)
	if ev.Body != "" {
		fmt.Fprintf(&b, "Body: %s\n", event.Truncate(ev.Body, 1000))
	}
	b.WriteString(`
Respond with:
{"action": "create_reminder|schedule_task|complex_action|ignore", "priority": "high|medium|low", "reason": "one sentence", "title": "short reminder title", "due_date": "YYYY-MM-DD or empty"}
`)
	return b.String()
}

// parseClassification extracts a classification from a model response. The
// response may wrap the JSON in markdown fences or surrounding prose; the
// first balanced object wins. ok is false when no valid object with an
// action can be found.
func parseClassification(resp string) (Classification, bool) {
	raw := extractJSON(resp)
	if raw == "" {
		return Classification{}, false
	}
	var c Classification
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return Classification{}, false
	}
	if c.Action == "" {
		return Classification{}, false
	}
	c.Action = strings.ToLower(strings.TrimSpace(c.Action))
	c.Priority = strings.ToLower(strings.TrimSpace(c.Priority))
	if c.Priority == "" {
		c.Priority = PriorityMedium
	}
	return c, true
}

// extractJSON returns the first balanced {...} object in s, ignoring
// braces inside JSON strings.
func extractJSON(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}
