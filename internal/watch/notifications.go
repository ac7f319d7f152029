package watch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"log"
	"os/exec"
	"regexp"
	"runtime"
	"strconv"
	"time"

	"github.com/pearcec/chandra/internal/event"
	"github.com/pearcec/chandra/internal/state"
)

const (
	// notificationsFirstLookback keeps the very first poll from flooding
	// the router with the entire log history.
	notificationsFirstLookback = 60 * time.Second

	notificationsTimeout = 30 * time.Second

	logTimeFormat = "2006-01-02 15:04:05"
)

// notificationLinePattern is the fallback parser for the line-oriented log
// format: timestamp, noise columns, "process:" then the message.
var notificationLinePattern = regexp.MustCompile(
	`^(\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2})\S*\s+(?:\S+\s+)*?([\w.-]+)(?:\[\d+\])?:\s+(.+)$`)

// CommandRunner executes an external command and returns its stdout.
// Injected so tests can substitute canned output.
type CommandRunner func(name string, args []string, timeout time.Duration) (string, error)

// RunCommand is the default CommandRunner; the process is killed when the
// timeout expires.
func RunCommand(name string, args []string, timeout time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", fmt.Errorf("%s timed out after %s", name, timeout)
		}
		if stderr.Len() > 0 {
			return "", fmt.Errorf("%s failed: %s", name, bytes.TrimSpace(stderr.Bytes()))
		}
		return "", fmt.Errorf("%s failed: %w", name, err)
	}
	return stdout.String(), nil
}

// NotificationsWatcher tails the OS notification log. Its watermark is a
// single timestamp, last_check, which always advances to "now" whether or
// not the query succeeded; a transient failure must never cause re-scanning
// of an ever-growing window.
type NotificationsWatcher struct {
	Run CommandRunner
	Loc *time.Location
	Now func() time.Time
}

// NewNotificationsWatcher builds a notification-log watcher.
func NewNotificationsWatcher(loc *time.Location) *NotificationsWatcher {
	if loc == nil {
		loc = time.Local
	}
	return &NotificationsWatcher{Run: RunCommand, Loc: loc, Now: time.Now}
}

func (w *NotificationsWatcher) Name() string { return event.SourceNotifications }

func (w *NotificationsWatcher) Available() bool {
	if runtime.GOOS != "darwin" {
		return false
	}
	_, err := exec.LookPath("log")
	return err == nil
}

// logRecord is the structured form emitted by `log show --style json`.
type logRecord struct {
	Timestamp    string `json:"timestamp"`
	EventMessage string `json:"eventMessage"`
	Process      string `json:"process"`
	ProcessImage string `json:"processImagePath"`
}

func (w *NotificationsWatcher) Poll(st *state.Store) ([]event.Event, error) {
	now := w.Now()

	since := now.Add(-notificationsFirstLookback)
	if raw := st.GetString(w.Name(), "last_check", ""); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			since = t
		}
	}

	// Advance the checkpoint before anything can fail.
	st.Set(w.Name(), "last_check", now.Format(time.RFC3339))
	if err := st.Save(); err != nil {
		log.Printf("[watch/notifications] Failed to save state: %v", err)
	}

	args := []string{
		"show", "--style", "json",
		"--start", since.In(w.Loc).Format(logTimeFormat),
		"--end", now.In(w.Loc).Format(logTimeFormat),
		"--predicate", `subsystem == "com.apple.usernotifications" OR process == "usernotificationsd"`,
	}
	out, err := w.Run("log", args, notificationsTimeout)
	if err != nil {
		log.Printf("[watch/notifications] Query failed: %v", err)
		return nil, nil
	}

	records := w.parseStructured(out)
	if records == nil {
		records = w.parseLines(out)
	}

	// The underlying log can repeat identical lines; dedupe within the
	// poll on (process, message).
	seen := make(map[uint64]bool)
	var events []event.Event
	for _, r := range records {
		if r.EventMessage == "" {
			continue
		}
		key := dedupeKey(r.Process, r.EventMessage)
		if seen[key] {
			continue
		}
		seen[key] = true

		ts := now
		if t, ok := parseLogTime(r.Timestamp, w.Loc); ok {
			ts = t
		}
		events = append(events, event.New(
			event.SourceNotifications, event.TypeNotification,
			r.EventMessage, r.Process, "",
			ts, strconv.FormatUint(key, 16),
			map[string]string{"process": r.Process},
		))
	}

	return events, nil
}

// parseStructured decodes the record-per-entry JSON format. A nil return
// signals the caller to fall back to the line parser.
func (w *NotificationsWatcher) parseStructured(out string) []logRecord {
	var records []logRecord
	if err := json.Unmarshal([]byte(out), &records); err != nil {
		return nil
	}
	for i := range records {
		if records[i].Process == "" {
			records[i].Process = records[i].ProcessImage
		}
	}
	return records
}

// parseLines is the line-oriented fallback for when structured output is
// unavailable or fails to parse.
func (w *NotificationsWatcher) parseLines(out string) []logRecord {
	var records []logRecord
	for _, line := range bytes.Split([]byte(out), []byte("\n")) {
		m := notificationLinePattern.FindStringSubmatch(string(line))
		if m == nil {
			continue
		}
		records = append(records, logRecord{
			Timestamp:    m[1],
			Process:      m[2],
			EventMessage: m[3],
		})
	}
	return records
}

func parseLogTime(raw string, loc *time.Location) (time.Time, bool) {
	for _, layout := range []string{
		"2006-01-02 15:04:05.000000-0700",
		logTimeFormat,
	} {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func dedupeKey(process, message string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(process))
	h.Write([]byte{'|'})
	h.Write([]byte(message))
	return h.Sum64()
}
