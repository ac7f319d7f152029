package watch

import (
	"fmt"
	"log"
	"sort"
	"strconv"
	"time"

	"github.com/pearcec/chandra/internal/bridge"
	"github.com/pearcec/chandra/internal/event"
	"github.com/pearcec/chandra/internal/state"
)

const (
	// DefaultMailMaxScan bounds how many recent inbox messages one poll
	// inspects for new IDs.
	DefaultMailMaxScan = 30

	// DefaultMailMaxBodies bounds how many full bodies are fetched per
	// cycle; the remaining new messages are emitted with headers only.
	DefaultMailMaxBodies = 10

	mailListTimeout = 30 * time.Second
	mailBodyTimeout = 15 * time.Second
)

// mailListScript lists the most recent inbox messages, one per line:
// id, date, sender, subject.
const mailListScript = `
on pad(n)
	if n < 10 then return "0" & n
	return n as string
end pad

set output to ""
tell application "Mail"
	set inboxMessages to messages of inbox
	set maxCount to %d
	if (count of inboxMessages) < maxCount then set maxCount to (count of inboxMessages)
	repeat with i from 1 to maxCount
		set msg to item i of inboxMessages
		set d to date received of msg
		set dateStr to (year of d as string) & "-" & my pad(month of d as integer) & "-" & my pad(day of d) & " " & my pad(hours of d) & ":" & my pad(minutes of d) & ":" & my pad(seconds of d)
		set output to output & (id of msg) & tab & dateStr & tab & (sender of msg) & tab & (subject of msg) & linefeed
	end repeat
end tell
return output
`

// mailBodyScript fetches the content of one message by id.
const mailBodyScript = `
tell application "Mail"
	set matches to (messages of inbox whose id is %d)
	if (count of matches) is 0 then return ""
	return content of item 1 of matches
end tell
`

// MailWatcher reports new inbox messages. Its watermark is a single
// integer, last_message_id: only messages with a greater ID are new, and
// the watermark advances to the new maximum each cycle.
type MailWatcher struct {
	Runner    bridge.Runner
	MaxScan   int
	MaxBodies int
	Loc       *time.Location
}

// NewMailWatcher builds a mail watcher over the given script runner.
func NewMailWatcher(runner bridge.Runner, loc *time.Location) *MailWatcher {
	if loc == nil {
		loc = time.Local
	}
	return &MailWatcher{
		Runner:    runner,
		MaxScan:   DefaultMailMaxScan,
		MaxBodies: DefaultMailMaxBodies,
		Loc:       loc,
	}
}

func (w *MailWatcher) Name() string { return event.SourceMail }

func (w *MailWatcher) Available() bool { return bridge.Available() }

type mailEntry struct {
	id      int64
	date    time.Time
	sender  string
	subject string
}

func (w *MailWatcher) Poll(st *state.Store) ([]event.Event, error) {
	out, err := w.Runner.Run(fmt.Sprintf(mailListScript, w.MaxScan), mailListTimeout)
	if err != nil {
		log.Printf("[watch/mail] Query failed: %v", err)
		return nil, nil
	}

	last := st.GetInt(w.Name(), "last_message_id", 0)

	var fresh []mailEntry
	maxID := last
	for _, row := range bridge.ParseTSV(out, 4) {
		id, err := strconv.ParseInt(row[0], 10, 64)
		if err != nil || id <= last {
			continue
		}
		date, err := time.ParseInLocation("2006-01-02 15:04:05", row[1], w.Loc)
		if err != nil {
			date = time.Now()
		}
		fresh = append(fresh, mailEntry{id: id, date: date, sender: row[2], subject: row[3]})
		if id > maxID {
			maxID = id
		}
	}

	if len(fresh) == 0 {
		return nil, nil
	}

	sort.Slice(fresh, func(i, j int) bool { return fresh[i].id < fresh[j].id })

	events := make([]event.Event, 0, len(fresh))
	for i, m := range fresh {
		body := ""
		if i < w.MaxBodies {
			body = w.fetchBody(m.id)
		}
		events = append(events, event.New(
			event.SourceMail, event.TypeNewEmail,
			m.subject, m.sender, body,
			m.date, strconv.FormatInt(m.id, 10),
			map[string]string{"mailbox": "inbox"},
		))
	}

	st.Set(w.Name(), "last_message_id", maxID)
	if err := st.Save(); err != nil {
		log.Printf("[watch/mail] Failed to save state: %v", err)
	}

	return events, nil
}

// fetchBody retrieves one message body; a failure just yields an empty
// body, never a lost event.
func (w *MailWatcher) fetchBody(id int64) string {
	out, err := w.Runner.Run(fmt.Sprintf(mailBodyScript, id), mailBodyTimeout)
	if err != nil {
		log.Printf("[watch/mail] Body fetch for message %d failed: %v", id, err)
		return ""
	}
	return event.Truncate(out, event.MaxBodyLen)
}
