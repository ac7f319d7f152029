package watch

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pearcec/chandra/internal/event"
	"github.com/pearcec/chandra/internal/state"
)

const (
	// messagesBatchLimit caps rows read per cycle.
	messagesBatchLimit = 50

	messagesQueryTimeout = 15 * time.Second

	// appleEpoch is the Messages database reference date: seconds (or, in
	// newer schema versions, nanoseconds) since 2001-01-01 00:00:00 UTC.
	appleEpoch = 978307200
)

// MessagesWatcher reads the local message-store database directly; the
// source has no subscription API. Its watermark is last_row_id, the highest
// ROWID returned so far. Inbound, non-empty rows above the watermark are
// new.
type MessagesWatcher struct {
	DBPath string
}

// NewMessagesWatcher builds a watcher over the message database at path.
func NewMessagesWatcher(path string) *MessagesWatcher {
	return &MessagesWatcher{DBPath: path}
}

func (w *MessagesWatcher) Name() string { return event.SourceMessages }

// Available reports whether the message database file exists. Openability
// (locks, permissions) is checked per poll, not at registration.
func (w *MessagesWatcher) Available() bool {
	_, err := os.Stat(w.DBPath)
	return err == nil
}

func (w *MessagesWatcher) Poll(st *state.Store) ([]event.Event, error) {
	// Read-only, immutable open: never takes a write lock on a database
	// another process owns.
	dsn := fmt.Sprintf("file:%s?mode=ro&immutable=1", w.DBPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		log.Printf("[watch/messages] Cannot open %s: %v", w.DBPath, err)
		return nil, nil
	}
	defer db.Close()

	last := st.GetInt(w.Name(), "last_row_id", 0)

	ctx, cancel := context.WithTimeout(context.Background(), messagesQueryTimeout)
	defer cancel()

	rows, err := db.QueryContext(ctx, `
		SELECT m.ROWID, COALESCE(h.id, ''), COALESCE(m.text, ''), m.date
		FROM message m
		LEFT JOIN handle h ON m.handle_id = h.ROWID
		WHERE m.ROWID > ?
		  AND m.is_from_me = 0
		  AND m.text IS NOT NULL AND m.text != ''
		ORDER BY m.ROWID ASC
		LIMIT ?`, last, messagesBatchLimit)
	if err != nil {
		// Locked or permission-denied databases retry next cycle.
		log.Printf("[watch/messages] Query failed: %v", err)
		return nil, nil
	}
	defer rows.Close()

	var events []event.Event
	maxID := last
	for rows.Next() {
		var rowID, rawDate int64
		var handle, text string
		if err := rows.Scan(&rowID, &handle, &text, &rawDate); err != nil {
			log.Printf("[watch/messages] Scan failed: %v", err)
			continue
		}

		events = append(events, event.New(
			event.SourceMessages, event.TypeNewMessage,
			fmt.Sprintf("Message from %s", handle), handle, text,
			appleTime(rawDate), strconv.FormatInt(rowID, 10),
			nil,
		))
		if rowID > maxID {
			maxID = rowID
		}
	}
	if err := rows.Err(); err != nil {
		log.Printf("[watch/messages] Row iteration failed: %v", err)
	}

	if maxID > last {
		st.Set(w.Name(), "last_row_id", maxID)
		if err := st.Save(); err != nil {
			log.Printf("[watch/messages] Failed to save state: %v", err)
		}
	}

	return events, nil
}

// appleTime converts the database's custom epoch to an absolute time.
// Values larger than 1e12 are the nanosecond-scaled variant and are
// normalized down to seconds first.
func appleTime(v int64) time.Time {
	if v > 1e12 {
		v /= 1e9
	}
	return time.Unix(v+appleEpoch, 0)
}
