package watch

import (
	"log"
	"sync"

	"github.com/pearcec/chandra/internal/event"
	"github.com/pearcec/chandra/internal/state"
)

// Router receives every event a poll cycle produces.
type Router interface {
	Handle(ev event.Event)
}

// Stats is a snapshot of listener counters for observability.
type Stats struct {
	Cycles   int      `json:"cycles"`
	Events   int      `json:"events"`
	Watchers []string `json:"watchers"`
}

// Listener orchestrates the watcher set. Watchers run strictly sequentially
// within a cycle because they share one watermark store; a failure in one
// watcher or one event never prevents the rest of the cycle from running.
type Listener struct {
	store    *state.Store
	router   Router
	watchers []Watcher

	mu     sync.Mutex
	cycles int
	events int
}

// NewListener creates a listener over the given store and router.
func NewListener(store *state.Store, router Router) *Listener {
	return &Listener{store: store, router: router}
}

// Register adds a watcher if it reports itself available on this host.
// Unavailable watchers are logged and dropped permanently.
func (l *Listener) Register(w Watcher) {
	if !w.Available() {
		log.Printf("[listener] Watcher %s not available on this host, skipping", w.Name())
		return
	}
	l.watchers = append(l.watchers, w)
	log.Printf("[listener] Registered watcher: %s", w.Name())
}

// Poll runs one cycle: every registered watcher in turn, forwarding each
// event to the router. Callers must not overlap Poll invocations.
func (l *Listener) Poll() {
	l.mu.Lock()
	l.cycles++
	cycle := l.cycles
	l.mu.Unlock()

	total := 0
	for _, w := range l.watchers {
		events := l.pollWatcher(w)
		for _, ev := range events {
			l.handleEvent(ev)
		}
		total += len(events)
	}

	l.mu.Lock()
	l.events += total
	l.mu.Unlock()

	if total > 0 {
		log.Printf("[listener] Cycle %d complete: %d event(s)", cycle, total)
	}
}

// pollWatcher invokes a single watcher, converting errors and panics into
// an empty result so the remaining watchers still run this cycle.
func (l *Listener) pollWatcher(w Watcher) (events []event.Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[listener] Watcher %s panicked: %v", w.Name(), r)
			events = nil
		}
	}()

	events, err := w.Poll(l.store)
	if err != nil {
		log.Printf("[listener] Watcher %s failed: %v", w.Name(), err)
		return nil
	}
	return events
}

// handleEvent routes one event, isolating router failures per event.
func (l *Listener) handleEvent(ev event.Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[listener] Routing %s panicked: %v", ev.Key(), r)
		}
	}()
	l.router.Handle(ev)
}

// WatcherNames returns the names of all registered watchers, in
// registration order.
func (l *Listener) WatcherNames() []string {
	names := make([]string, 0, len(l.watchers))
	for _, w := range l.watchers {
		names = append(names, w.Name())
	}
	return names
}

// Stats returns the running totals for this listener.
func (l *Listener) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Stats{
		Cycles:   l.cycles,
		Events:   l.events,
		Watchers: l.WatcherNames(),
	}
}
