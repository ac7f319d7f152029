// Package watch implements the source watchers and the listener that runs
// them. Each watcher polls exactly one external source and, using the shared
// watermark store, emits only genuinely new events.
// "I am putting myself to the fullest possible use, which is all I think
// that any conscious entity can ever hope to do."
package watch

import (
	"github.com/pearcec/chandra/internal/event"
	"github.com/pearcec/chandra/internal/state"
)

// Watcher is the contract every source watcher implements. Available must
// be cheap (platform, binary or file existence checks only); it is evaluated
// once at registration and an unavailable watcher is never invoked again.
type Watcher interface {
	// Name identifies the watcher; it keys the watcher's entry in the
	// watermark store.
	Name() string

	// Available reports whether this host can query the source at all.
	Available() bool

	// Poll queries the source and returns events not seen before. The
	// watcher advances its watermarks in st and saves them after the new
	// events have been computed.
	Poll(st *state.Store) ([]event.Event, error)
}
