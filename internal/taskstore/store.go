// Package taskstore persists future-dated tasks to a JSON file so that
// scheduled follow-ups survive restarts.
package taskstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Task statuses.
const (
	StatusPending = "pending"
	StatusDone    = "done"
)

// Task is one scheduled follow-up.
type Task struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Command   string            `json:"command"`
	Type      string            `json:"type"`
	NextRunAt time.Time         `json:"next_run_at"`
	Status    string            `json:"status"`
	CreatedAt time.Time         `json:"created_at"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// NewTask builds a pending task with a fresh ID.
func NewTask(name, command, taskType string, nextRun time.Time, metadata map[string]string) Task {
	return Task{
		ID:        uuid.New().String(),
		Name:      name,
		Command:   command,
		Type:      taskType,
		NextRunAt: nextRun,
		Status:    StatusPending,
		CreatedAt: time.Now(),
		Metadata:  metadata,
	}
}

// Store is a file-backed task list. All methods are safe for concurrent
// use within one process.
type Store struct {
	path string

	mu    sync.Mutex
	tasks []Task
}

// New loads the task store at path; a missing or malformed file yields an
// empty store rather than an error.
func New(path string) *Store {
	s := &Store{path: path}
	data, err := os.ReadFile(path)
	if err != nil {
		return s
	}
	if err := json.Unmarshal(data, &s.tasks); err != nil {
		s.tasks = nil
	}
	return s
}

// Save appends a task and persists the store.
func (s *Store) Save(t Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = append(s.tasks, t)
	return s.flush()
}

// List returns all tasks ordered by next run time.
func (s *Store) List() []Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]Task(nil), s.tasks...)
	sort.Slice(out, func(i, j int) bool { return out[i].NextRunAt.Before(out[j].NextRunAt) })
	return out
}

// Pending returns tasks whose run time has passed and are still pending.
func (s *Store) Pending(now time.Time) []Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Task
	for _, t := range s.tasks {
		if t.Status == StatusPending && !t.NextRunAt.After(now) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NextRunAt.Before(out[j].NextRunAt) })
	return out
}

// Complete marks a task done and persists the store.
func (s *Store) Complete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.tasks {
		if s.tasks[i].ID == id {
			s.tasks[i].Status = StatusDone
			return s.flush()
		}
	}
	return fmt.Errorf("task %s not found", id)
}

// Path returns the backing file path.
func (s *Store) Path() string { return s.path }

// flush writes the task list atomically: temp file in the same directory,
// then rename. Callers hold the lock.
func (s *Store) flush() error {
	data, err := json.MarshalIndent(s.tasks, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode tasks: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".tasks-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write tasks: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace %s: %w", s.path, err)
	}
	return nil
}
