package config

import (
	"bytes"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadFromPath(filepath.Join(t.TempDir(), "config.yaml"))
	if err != nil {
		t.Fatalf("LoadFromPath() error: %v", err)
	}
	if cfg.PollInterval.Std() != DefaultPollInterval {
		t.Errorf("poll interval = %v, want %v", cfg.PollInterval.Std(), DefaultPollInterval)
	}
	if !cfg.Calendar.Enabled || cfg.Calendar.LookAhead.Std() != 15*time.Minute {
		t.Errorf("calendar defaults = %+v", cfg.Calendar)
	}
	if cfg.Review.Label != "needs-review" {
		t.Errorf("review label = %q", cfg.Review.Label)
	}
	if cfg.Agent.Command != "claude" {
		t.Errorf("agent command = %q", cfg.Agent.Command)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `state_dir: /tmp/chandra-test
timezone: America/New_York
poll_interval: 30s
calendar:
  enabled: true
  look_ahead: 10m
mail:
  enabled: false
messages:
  enabled: true
  db_path: /tmp/chat.db
review:
  enabled: true
  label: please-review
classifier:
  url: http://localhost:8765
  max_tokens: 512
reminders:
  list: Inbox
agent:
  command: my-agent
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath() error: %v", err)
	}

	if cfg.StateDir != "/tmp/chandra-test" {
		t.Errorf("state_dir = %q", cfg.StateDir)
	}
	if cfg.PollInterval.Std() != 30*time.Second {
		t.Errorf("poll_interval = %v", cfg.PollInterval.Std())
	}
	if cfg.Calendar.LookAhead.Std() != 10*time.Minute {
		t.Errorf("look_ahead = %v", cfg.Calendar.LookAhead.Std())
	}
	if cfg.Mail.Enabled {
		t.Error("mail should be disabled")
	}
	// Untouched mail limits still default.
	if cfg.Mail.MaxScan != 30 || cfg.Mail.MaxBodies != 10 {
		t.Errorf("mail limits = %d/%d", cfg.Mail.MaxScan, cfg.Mail.MaxBodies)
	}
	if cfg.Messages.DBPath != "/tmp/chat.db" {
		t.Errorf("db_path = %q", cfg.Messages.DBPath)
	}
	if cfg.Review.Label != "please-review" {
		t.Errorf("label = %q", cfg.Review.Label)
	}
	if cfg.Classifier.URL != "http://localhost:8765" || cfg.Classifier.MaxTokens != 512 {
		t.Errorf("classifier = %+v", cfg.Classifier)
	}
	if cfg.Reminders.List != "Inbox" {
		t.Errorf("list = %q", cfg.Reminders.List)
	}
	if cfg.Agent.Command != "my-agent" {
		t.Errorf("agent command = %q", cfg.Agent.Command)
	}

	loc := cfg.Location()
	if loc.String() != "America/New_York" {
		t.Errorf("location = %v", loc)
	}
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("state_dir: [not: valid"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFromPath(path); err == nil {
		t.Error("expected error for malformed YAML")
	}
}

func TestLoadInvalidDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("poll_interval: soonish\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFromPath(path); err == nil {
		t.Error("expected error for invalid duration")
	}
}

func TestLocationFallsBackToLocal(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)

	cfg := Defaults()
	cfg.Timezone = "Mars/Olympus_Mons"
	if loc := cfg.Location(); loc != time.Local {
		t.Errorf("unknown zone resolved to %v, want local", loc)
	}
	if !strings.Contains(buf.String(), "Mars/Olympus_Mons") {
		t.Error("fallback to local zone was not logged")
	}
}

func TestExpandPath(t *testing.T) {
	home, _ := os.UserHomeDir()
	if got := ExpandPath("~/x/y"); got != filepath.Join(home, "x", "y") {
		t.Errorf("ExpandPath(~/x/y) = %q", got)
	}
	if got := ExpandPath("/abs/path"); got != "/abs/path" {
		t.Errorf("ExpandPath(/abs/path) = %q", got)
	}
}

func TestStatePath(t *testing.T) {
	cfg := Defaults()
	cfg.StateDir = "/var/lib/chandra"
	if got := cfg.StatePath("watermarks.json"); got != "/var/lib/chandra/watermarks.json" {
		t.Errorf("StatePath = %q", got)
	}
}
