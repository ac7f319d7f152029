package watch

import (
	"log"
	"sort"
	"strconv"
	"time"

	"github.com/pearcec/chandra/internal/bridge"
	"github.com/pearcec/chandra/internal/event"
	"github.com/pearcec/chandra/internal/state"
)

// DefaultLookAhead is how far before an event's start time the upcoming
// alert fires.
const DefaultLookAhead = 15 * time.Minute

const calendarTimeout = 30 * time.Second

// calendarScript asks Calendar.app for every event starting in the next 24
// hours, one tab-separated line per event: uid, summary, start, end,
// calendar name. Dates are emitted as "YYYY-MM-DD HH:MM:SS" so parsing does
// not depend on the user's locale.
const calendarScript = `
on pad(n)
	if n < 10 then return "0" & n
	return n as string
end pad

on iso(d)
	return (year of d as string) & "-" & pad(month of d as integer) & "-" & pad(day of d) & " " & pad(hours of d) & ":" & pad(minutes of d) & ":" & pad(seconds of d)
end iso

set windowStart to current date
set windowEnd to windowStart + 1 * days
set output to ""
tell application "Calendar"
	repeat with cal in calendars
		set todaysEvents to (every event of cal whose start date is greater than or equal to windowStart and start date is less than windowEnd)
		repeat with ev in todaysEvents
			set output to output & (uid of ev) & tab & (summary of ev) & tab & my iso(start date of ev) & tab & my iso(end date of ev) & tab & (name of cal) & linefeed
		end repeat
	end repeat
end tell
return output
`

// CalendarWatcher reports calendar events in the current 24-hour window.
// It keeps two ID sets: seen_uids for events already reported as new, and
// alerted_uids for events already reported as upcoming. Both sets are
// pruned to the current query batch each cycle so they cannot grow without
// bound as old events roll out of the window.
type CalendarWatcher struct {
	Runner    bridge.Runner
	LookAhead time.Duration
	Loc       *time.Location
	Now       func() time.Time
}

// NewCalendarWatcher builds a calendar watcher over the given script runner.
func NewCalendarWatcher(runner bridge.Runner, lookAhead time.Duration, loc *time.Location) *CalendarWatcher {
	if lookAhead <= 0 {
		lookAhead = DefaultLookAhead
	}
	if loc == nil {
		loc = time.Local
	}
	return &CalendarWatcher{
		Runner:    runner,
		LookAhead: lookAhead,
		Loc:       loc,
		Now:       time.Now,
	}
}

func (w *CalendarWatcher) Name() string { return event.SourceCalendar }

func (w *CalendarWatcher) Available() bool { return bridge.Available() }

type calendarEntry struct {
	uid      string
	summary  string
	start    time.Time
	end      time.Time
	calendar string
}

func (w *CalendarWatcher) Poll(st *state.Store) ([]event.Event, error) {
	out, err := w.Runner.Run(calendarScript, calendarTimeout)
	if err != nil {
		// Permission denial or a missing Calendar.app is a skip, not a
		// failure; the next cycle retries.
		log.Printf("[watch/calendar] Query failed: %v", err)
		return nil, nil
	}

	entries := w.parseBatch(out)
	sort.Slice(entries, func(i, j int) bool { return entries[i].start.Before(entries[j].start) })

	seen := toSet(st.GetStringSlice(w.Name(), "seen_uids"))
	alerted := toSet(st.GetStringSlice(w.Name(), "alerted_uids"))

	now := w.Now()
	current := make(map[string]bool, len(entries))
	var events []event.Event

	for _, e := range entries {
		current[e.uid] = true

		if !seen[e.uid] {
			seen[e.uid] = true
			events = append(events, event.New(
				event.SourceCalendar, event.TypeNewEvent,
				e.summary, e.calendar, "",
				now, e.uid,
				map[string]string{
					"start":    e.start.Format(time.RFC3339),
					"end":      e.end.Format(time.RFC3339),
					"calendar": e.calendar,
				},
			))
		}

		// Upcoming alert fires once: the event must start inside the
		// look-ahead window, still be in the future, and not have alerted
		// before.
		if e.start.After(now) && e.start.Sub(now) <= w.LookAhead && !alerted[e.uid] {
			alerted[e.uid] = true
			minutes := int(e.start.Sub(now).Minutes())
			events = append(events, event.New(
				event.SourceCalendar, event.TypeUpcomingEvent,
				e.summary, e.calendar, "",
				now, e.uid,
				map[string]string{
					"start":         e.start.Format(time.RFC3339),
					"minutes_until": strconv.Itoa(minutes),
				},
			))
		}
	}

	// Prune both sets to UIDs still present in the 24h batch.
	st.Set(w.Name(), "seen_uids", intersect(seen, current))
	st.Set(w.Name(), "alerted_uids", intersect(alerted, current))
	if err := st.Save(); err != nil {
		log.Printf("[watch/calendar] Failed to save state: %v", err)
	}

	return events, nil
}

// parseBatch converts script output into calendar entries, dropping rows
// whose start time does not parse.
func (w *CalendarWatcher) parseBatch(out string) []calendarEntry {
	rows := bridge.ParseTSV(out, 5)
	entries := make([]calendarEntry, 0, len(rows))
	for _, row := range rows {
		start, err := time.ParseInLocation("2006-01-02 15:04:05", row[2], w.Loc)
		if err != nil {
			continue
		}
		end, err := time.ParseInLocation("2006-01-02 15:04:05", row[3], w.Loc)
		if err != nil {
			end = start
		}
		entries = append(entries, calendarEntry{
			uid:      row[0],
			summary:  row[1],
			start:    start,
			end:      end,
			calendar: row[4],
		})
	}
	return entries
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, item := range items {
		set[item] = true
	}
	return set
}

func intersect(set, keep map[string]bool) []string {
	var out []string
	for item := range set {
		if keep[item] {
			out = append(out, item)
		}
	}
	sort.Strings(out)
	if out == nil {
		out = []string{}
	}
	return out
}
