package watch

import (
	"errors"
	"testing"

	"github.com/pearcec/chandra/internal/event"
	"github.com/pearcec/chandra/internal/state"
)

var errTest = errors.New("boom")

// fakeWatcher is a scriptable watcher for listener tests.
type fakeWatcher struct {
	name      string
	available bool
	events    []event.Event
	err       error
	panics    bool
	polls     int
}

func (w *fakeWatcher) Name() string    { return w.name }
func (w *fakeWatcher) Available() bool { return w.available }

func (w *fakeWatcher) Poll(st *state.Store) ([]event.Event, error) {
	w.polls++
	if w.panics {
		panic("watcher exploded")
	}
	return w.events, w.err
}

// recordingRouter collects handled events and can panic on demand.
type recordingRouter struct {
	handled []event.Event
	panics  bool
}

func (r *recordingRouter) Handle(ev event.Event) {
	if r.panics {
		panic("router exploded")
	}
	r.handled = append(r.handled, ev)
}

func someEvent(id string) event.Event {
	return event.Event{Source: event.SourceMail, Type: event.TypeNewEmail, RawID: id}
}

func TestListenerSkipsUnavailableWatchers(t *testing.T) {
	router := &recordingRouter{}
	l := NewListener(newTestStore(t), router)

	l.Register(&fakeWatcher{name: "present", available: true})
	l.Register(&fakeWatcher{name: "absent", available: false})

	names := l.WatcherNames()
	if len(names) != 1 || names[0] != "present" {
		t.Errorf("WatcherNames() = %v, want [present]", names)
	}
}

func TestListenerForwardsEvents(t *testing.T) {
	router := &recordingRouter{}
	l := NewListener(newTestStore(t), router)
	l.Register(&fakeWatcher{
		name: "a", available: true,
		events: []event.Event{someEvent("1"), someEvent("2")},
	})

	l.Poll()

	if len(router.handled) != 2 {
		t.Fatalf("router handled %d events, want 2", len(router.handled))
	}
	stats := l.Stats()
	if stats.Cycles != 1 || stats.Events != 2 {
		t.Errorf("Stats() = %+v", stats)
	}
}

func TestListenerIsolatesWatcherFailures(t *testing.T) {
	router := &recordingRouter{}
	l := NewListener(newTestStore(t), router)

	panicking := &fakeWatcher{name: "panics", available: true, panics: true}
	failing := &fakeWatcher{name: "fails", available: true, err: errTest}
	healthy := &fakeWatcher{
		name: "works", available: true,
		events: []event.Event{someEvent("1")},
	}
	l.Register(panicking)
	l.Register(failing)
	l.Register(healthy)

	l.Poll()

	if healthy.polls != 1 {
		t.Error("healthy watcher did not run after earlier failures")
	}
	if len(router.handled) != 1 {
		t.Errorf("router handled %d events, want 1", len(router.handled))
	}
}

func TestListenerIsolatesRouterPanics(t *testing.T) {
	router := &recordingRouter{panics: true}
	l := NewListener(newTestStore(t), router)

	w := &fakeWatcher{
		name: "a", available: true,
		events: []event.Event{someEvent("1"), someEvent("2")},
	}
	l.Register(w)

	// Must not panic out of Poll.
	l.Poll()

	if w.polls != 1 {
		t.Errorf("watcher polled %d times, want 1", w.polls)
	}
}
