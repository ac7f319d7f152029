package taskstore

import (
	"path/filepath"
	"testing"
	"time"
)

func TestSaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.json")

	st := New(path)
	task := NewTask("Renew passport", "process_event", "event_followup",
		time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC), map[string]string{"source": "mail"})
	if err := st.Save(task); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	reloaded := New(path)
	tasks := reloaded.List()
	if len(tasks) != 1 {
		t.Fatalf("got %d tasks after reload, want 1", len(tasks))
	}
	got := tasks[0]
	if got.ID != task.ID || got.Name != "Renew passport" || got.Status != StatusPending {
		t.Errorf("reloaded task = %+v", got)
	}
	if got.Metadata["source"] != "mail" {
		t.Errorf("metadata = %v", got.Metadata)
	}
}

func TestNewTaskAssignsUniqueIDs(t *testing.T) {
	a := NewTask("a", "cmd", "type", time.Now(), nil)
	b := NewTask("b", "cmd", "type", time.Now(), nil)
	if a.ID == "" || a.ID == b.ID {
		t.Errorf("IDs not unique: %q vs %q", a.ID, b.ID)
	}
}

func TestListOrdersByNextRun(t *testing.T) {
	st := New(filepath.Join(t.TempDir(), "tasks.json"))
	later := NewTask("later", "cmd", "type", time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC), nil)
	sooner := NewTask("sooner", "cmd", "type", time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC), nil)
	st.Save(later)
	st.Save(sooner)

	tasks := st.List()
	if tasks[0].Name != "sooner" || tasks[1].Name != "later" {
		t.Errorf("order = %s, %s", tasks[0].Name, tasks[1].Name)
	}
}

func TestPending(t *testing.T) {
	st := New(filepath.Join(t.TempDir(), "tasks.json"))
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	due := NewTask("due", "cmd", "type", now.Add(-time.Hour), nil)
	future := NewTask("future", "cmd", "type", now.Add(time.Hour), nil)
	st.Save(due)
	st.Save(future)

	pending := st.Pending(now)
	if len(pending) != 1 || pending[0].Name != "due" {
		t.Errorf("Pending() = %+v, want only the due task", pending)
	}
}

func TestComplete(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.json")
	st := New(path)
	task := NewTask("t", "cmd", "type", time.Now().Add(-time.Hour), nil)
	st.Save(task)

	if err := st.Complete(task.ID); err != nil {
		t.Fatalf("Complete() failed: %v", err)
	}
	if got := st.Pending(time.Now()); len(got) != 0 {
		t.Errorf("completed task still pending: %+v", got)
	}

	reloaded := New(path)
	if reloaded.List()[0].Status != StatusDone {
		t.Error("completed status not persisted")
	}

	if err := st.Complete("no-such-id"); err == nil {
		t.Error("Complete() with unknown ID should fail")
	}
}

func TestMissingFileIsEmptyStore(t *testing.T) {
	st := New(filepath.Join(t.TempDir(), "tasks.json"))
	if tasks := st.List(); len(tasks) != 0 {
		t.Errorf("List() on empty store = %v", tasks)
	}
}
