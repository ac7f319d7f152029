package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestReadJournal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "actions.jsonl")
	content := `{"event": {"source": "mail", "type": "new_email", "subject": "a", "sender": "", "body": "", "timestamp": "2026-03-10T12:00:00Z", "raw_id": "1"}, "action": "ignore", "result": "no actionable keywords"}
{"event": {"source": "mail", "type": "new_email", "subject": "b", "sender": "", "body": "", "timestamp": "2026-03-10T12:01:00Z", "raw_id": "2"}, "action": "create_reminder", "result": "created"}
this line is a torn write and must be skipped
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	entries, err := readJournal(path, 0)
	if err != nil {
		t.Fatalf("readJournal() error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].Event.Subject != "a" || entries[1].Action != "create_reminder" {
		t.Errorf("entries = %+v", entries)
	}
}

func TestReadJournalLimit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "actions.jsonl")
	content := `{"event": {"source": "mail", "raw_id": "1"}, "action": "ignore", "result": ""}
{"event": {"source": "mail", "raw_id": "2"}, "action": "ignore", "result": ""}
{"event": {"source": "mail", "raw_id": "3"}, "action": "ignore", "result": ""}
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	entries, err := readJournal(path, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	// Newest entries win.
	if entries[0].Event.RawID != "2" || entries[1].Event.RawID != "3" {
		t.Errorf("kept %s, %s; want 2, 3", entries[0].Event.RawID, entries[1].Event.RawID)
	}
}

func TestReadJournalMissingFile(t *testing.T) {
	entries, err := readJournal(filepath.Join(t.TempDir(), "nope.jsonl"), 10)
	if err != nil {
		t.Fatalf("readJournal() error: %v", err)
	}
	if entries != nil {
		t.Errorf("entries = %v, want nil", entries)
	}
}
