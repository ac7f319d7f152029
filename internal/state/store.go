// Package state persists per-watcher watermarks: offsets, seen-ID sets and
// timestamps that decide which source records are new. The store is a single
// JSON document with one top-level entry per watcher plus a reserved "_meta"
// entry recording the last save time.
//
// The store does not interpret values; watchers pick their own keys. Saves
// are atomic (temp file in the same directory, then rename) so a crash can
// never leave a half-written document. There is no internal locking: a
// single listener owns the store for the duration of a poll cycle.
package state

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"
)

const metaKey = "_meta"

// Store holds watermark state for every watcher and knows how to persist it.
type Store struct {
	path string
	data map[string]map[string]interface{}
}

// New loads the watermark document at path. A missing file or malformed
// content is treated the same as "no state yet" and never fails.
func New(path string) *Store {
	s := &Store{
		path: path,
		data: make(map[string]map[string]interface{}),
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return s
	}

	var doc map[string]map[string]interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		log.Printf("[state] Ignoring malformed state file %s: %v", path, err)
		return s
	}
	// A literal "null" unmarshals cleanly into a nil map; treat it the
	// same as no state at all.
	if doc == nil {
		return s
	}
	s.data = doc
	return s
}

// Path returns the on-disk location of the document.
func (s *Store) Path() string {
	return s.path
}

// Get returns the value stored for watcher/key, or def when absent.
func (s *Store) Get(watcher, key string, def interface{}) interface{} {
	if m, ok := s.data[watcher]; ok {
		if v, ok := m[key]; ok {
			return v
		}
	}
	return def
}

// GetInt returns an integer watermark. JSON round-trips numbers as float64,
// so both forms are accepted.
func (s *Store) GetInt(watcher, key string, def int64) int64 {
	switch v := s.Get(watcher, key, nil).(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n
		}
	}
	return def
}

// GetString returns a string watermark, or def when absent or not a string.
func (s *Store) GetString(watcher, key, def string) string {
	if v, ok := s.Get(watcher, key, nil).(string); ok {
		return v
	}
	return def
}

// GetStringSlice returns a stored set of string IDs. Values written in this
// process are []string; values loaded from disk are []interface{}.
func (s *Store) GetStringSlice(watcher, key string) []string {
	switch v := s.Get(watcher, key, nil).(type) {
	case []string:
		return append([]string(nil), v...)
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if str, ok := item.(string); ok {
				out = append(out, str)
			}
		}
		return out
	}
	return nil
}

// GetIntSlice returns a stored list of integer IDs, coercing the float64
// form JSON produces on load.
func (s *Store) GetIntSlice(watcher, key string) []int64 {
	switch v := s.Get(watcher, key, nil).(type) {
	case []int64:
		return append([]int64(nil), v...)
	case []interface{}:
		out := make([]int64, 0, len(v))
		for _, item := range v {
			switch n := item.(type) {
			case float64:
				out = append(out, int64(n))
			case int64:
				out = append(out, n)
			case int:
				out = append(out, int64(n))
			}
		}
		return out
	}
	return nil
}

// Set records a value for watcher/key. The change is in-memory until Save.
func (s *Store) Set(watcher, key string, value interface{}) {
	m, ok := s.data[watcher]
	if !ok {
		m = make(map[string]interface{})
		s.data[watcher] = m
	}
	m[key] = value
}

// All returns a copy of every key/value pair stored for a watcher.
func (s *Store) All(watcher string) map[string]interface{} {
	out := make(map[string]interface{})
	for k, v := range s.data[watcher] {
		out[k] = v
	}
	return out
}

// Watchers returns the names of all watchers with stored state, excluding
// the reserved meta entry.
func (s *Store) Watchers() []string {
	var names []string
	for name := range s.data {
		if name != metaKey {
			names = append(names, name)
		}
	}
	return names
}

// Save writes the document atomically: serialize to a temp file in the same
// directory, then rename over the target. On failure the temp file is
// removed and the previous on-disk state is untouched.
func (s *Store) Save() error {
	s.Set(metaKey, "last_saved", time.Now().Format(time.RFC3339))

	data, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize state: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".watermarks-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp state file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close state file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace state file: %w", err)
	}
	return nil
}

// Reset clears all state for a single watcher. In-memory only until Save.
func (s *Store) Reset(watcher string) {
	delete(s.data, watcher)
}

// ResetAll clears every watcher's state and removes the on-disk document.
func (s *Store) ResetAll() error {
	s.data = make(map[string]map[string]interface{})
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
