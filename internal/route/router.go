// Package route classifies events and dispatches them to the matching
// handler. Classification degrades gracefully: a remote model is consulted
// when configured, and a deterministic keyword classifier always stands
// behind it. A failure in one event never aborts the cycle.
// "Look Dave, I can see you're really upset about this."
package route

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/pearcec/chandra/internal/event"
	"github.com/pearcec/chandra/internal/taskstore"
)

// Classification actions.
const (
	ActionCreateReminder = "create_reminder"
	ActionScheduleTask   = "schedule_task"
	ActionComplexAction  = "complex_action"
	ActionIgnore         = "ignore"

	// ActionAlert is recorded for upcoming_event, which bypasses
	// classification entirely.
	ActionAlert = "alert"
)

// Priorities.
const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

// scheduledHour is the time-of-day a due date resolves to.
const scheduledHour = 9

// Classification is the transient result of classifying one event.
type Classification struct {
	Action   string `json:"action"`
	Priority string `json:"priority"`
	Reason   string `json:"reason"`
	Title    string `json:"title,omitempty"`
	DueDate  string `json:"due_date,omitempty"`
}

// Classifier is the remote classification backend. It must tolerate being
// absent or erroring; the router always falls back to the keyword
// classifier.
type Classifier interface {
	Classify(prompt string, maxTokens int) (string, error)
}

// ReminderClient creates a reminder and returns a result description.
type ReminderClient interface {
	Create(title, list, dueDate string) (string, error)
}

// TaskStore persists future-dated tasks.
type TaskStore interface {
	Save(t taskstore.Task) error
}

// AgentRunner executes a complex action described by a prompt.
type AgentRunner interface {
	Run(prompt string) (string, error)
}

// Entry is one action-log record: every processed event lands here,
// including ignored ones. The log is session-scoped and never persisted
// across restarts.
type Entry struct {
	Event  event.Event `json:"event"`
	Action string      `json:"action"`
	Result string      `json:"result"`
}

// Config wires the router's collaborators. Classifier, Tasks and Agent may
// be nil; the router degrades per the error-handling policy.
type Config struct {
	Classifier   Classifier
	Reminders    ReminderClient
	Tasks        TaskStore
	Agent        AgentRunner
	ReminderList string
	MaxTokens    int
	Location     *time.Location

	// JournalPath, when set, receives one JSON line per action-log entry
	// so other processes can inspect decisions.
	JournalPath string
}

// Router dispatches classified events.
type Router struct {
	cfg Config
	Now func() time.Time

	mu      sync.Mutex
	entries []Entry
}

// New creates a router. A nil reminder client is allowed but reduces every
// degrade path to a logged no-op.
func New(cfg Config) *Router {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 256
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.ReminderList == "" {
		cfg.ReminderList = "Reminders"
	}
	return &Router{cfg: cfg, Now: time.Now}
}

// Handle classifies ev and dispatches it. It never returns an error;
// every outcome is logged and recorded in the action log.
func (r *Router) Handle(ev event.Event) {
	// Upcoming alerts have fixed handling; do not spend a model call.
	if ev.Type == event.TypeUpcomingEvent {
		result := fmt.Sprintf("upcoming: %s (%s min)", ev.Subject, ev.Meta["minutes_until"])
		log.Printf("[router] Alert for %s: %s", ev.Key(), result)
		r.record(ev, ActionAlert, result)
		return
	}

	c := r.classify(ev)
	log.Printf("[router] %s -> %s/%s (%s)", ev.Key(), c.Action, c.Priority, c.Reason)

	switch c.Action {
	case ActionCreateReminder:
		r.record(ev, ActionCreateReminder, r.createReminder(ev, c))
	case ActionScheduleTask:
		r.record(ev, ActionScheduleTask, r.scheduleTask(ev, c))
	case ActionComplexAction:
		r.record(ev, ActionComplexAction, r.complexAction(ev, c))
	case ActionIgnore:
		r.record(ev, ActionIgnore, c.Reason)
	default:
		// Unrecognized actions are a no-op, not an error.
		log.Printf("[router] Unknown action %q for %s, ignoring", c.Action, ev.Key())
		r.record(ev, c.Action, "unknown action, ignored")
	}
}

// Preview classifies an event without dispatching. Used by the CLI to test
// the configured backend.
func (r *Router) Preview(ev event.Event) Classification {
	return r.classify(ev)
}

// classify is the two-stage classifier: remote backend first, deterministic
// keyword fallback when the backend is absent, errors, or returns something
// unparsable.
func (r *Router) classify(ev event.Event) Classification {
	if r.cfg.Classifier != nil {
		resp, err := r.cfg.Classifier.Classify(buildPrompt(ev), r.cfg.MaxTokens)
		if err != nil {
			log.Printf("[router] Classifier backend failed: %v, using fallback", err)
		} else if c, ok := parseClassification(resp); ok {
			return c
		} else {
			log.Printf("[router] Unparsable classifier response, using fallback")
		}
	}
	return classifyFallback(ev)
}

func (r *Router) createReminder(ev event.Event, c Classification) string {
	if r.cfg.Reminders == nil {
		log.Printf("[router] No reminder client configured, dropping %s", ev.Key())
		return "no reminder client configured"
	}

	title := c.Title
	if title == "" {
		title = ev.Subject
	}
	title = fmt.Sprintf("[%s] %s", priorityTag(c.Priority), title)

	result, err := r.cfg.Reminders.Create(title, r.cfg.ReminderList, c.DueDate)
	if err != nil {
		log.Printf("[router] Reminder creation failed for %s: %v", ev.Key(), err)
		return fmt.Sprintf("reminder failed: %v", err)
	}
	log.Printf("[router] Reminder created for %s: %s", ev.Key(), result)
	return result
}

func (r *Router) scheduleTask(ev event.Event, c Classification) string {
	if r.cfg.Tasks == nil {
		log.Printf("[router] No task store configured, degrading %s to reminder", ev.Key())
		return r.createReminder(ev, c)
	}

	nextRun := r.resolveDue(c.DueDate)

	payload, err := json.Marshal(ev)
	if err != nil {
		payload = []byte("{}")
	}

	name := c.Title
	if name == "" {
		name = ev.Subject
	}
	task := taskstore.NewTask(name, "process_event", "event_followup", nextRun, map[string]string{
		"event":    string(payload),
		"priority": c.Priority,
		"source":   ev.Source,
	})

	if err := r.cfg.Tasks.Save(task); err != nil {
		log.Printf("[router] Task save failed for %s: %v, degrading to reminder", ev.Key(), err)
		return r.createReminder(ev, c)
	}
	result := fmt.Sprintf("task %s scheduled for %s", task.ID, nextRun.Format(time.RFC3339))
	log.Printf("[router] %s", result)
	return result
}

func (r *Router) complexAction(ev event.Event, c Classification) string {
	if r.cfg.Agent == nil {
		log.Printf("[router] No agent runner configured, degrading %s to reminder", ev.Key())
		return r.createReminder(ev, c)
	}

	prompt := fmt.Sprintf(
		"Handle the following event for me.\n\nEvent: %s\nFrom: %s\nSubject: %s\nBody: %s\n\nWhy it needs attention: %s\n",
		ev.Summary(), ev.Sender, ev.Subject, event.Truncate(ev.Body, 1000), c.Reason)

	answer, err := r.cfg.Agent.Run(prompt)
	if err != nil {
		log.Printf("[router] Agent run failed for %s: %v", ev.Key(), err)
		return fmt.Sprintf("agent failed: %v", err)
	}
	return answer
}

// resolveDue parses a YYYY-MM-DD due date at the fixed scheduling hour in
// the configured location; a missing or unparsable date defaults to
// now + 1 day.
func (r *Router) resolveDue(due string) time.Time {
	if due != "" {
		if d, err := time.ParseInLocation("2006-01-02", due, r.cfg.Location); err == nil {
			return time.Date(d.Year(), d.Month(), d.Day(), scheduledHour, 0, 0, 0, r.cfg.Location)
		}
	}
	return r.Now().Add(24 * time.Hour)
}

func priorityTag(p string) string {
	switch p {
	case PriorityHigh:
		return "HIGH"
	case PriorityMedium:
		return "MED"
	default:
		return "LOW"
	}
}

// record appends an action-log entry and mirrors it to the journal file
// when one is configured.
func (r *Router) record(ev event.Event, action, result string) {
	entry := Entry{Event: ev, Action: action, Result: result}

	r.mu.Lock()
	r.entries = append(r.entries, entry)
	r.mu.Unlock()

	if r.cfg.JournalPath != "" {
		if err := appendJournal(r.cfg.JournalPath, entry); err != nil {
			log.Printf("[router] Journal write failed: %v", err)
		}
	}
}

// Entries returns a copy of the session action log.
func (r *Router) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Entry(nil), r.entries...)
}

// Clear empties the session action log.
func (r *Router) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = nil
}

func appendJournal(path string, entry Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write(append(data, '\n'))
	return err
}
