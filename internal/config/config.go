// Package config provides configuration management for chandra.
// Configuration is loaded from ~/.config/chandra/config.yaml with sensible
// defaults; a missing file is not an error.
package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML strings like
// "60s" or "15m".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config holds the chandra configuration.
type Config struct {
	// StateDir holds watermarks, the task store and the action journal.
	StateDir string `yaml:"state_dir"`

	// Timezone names the IANA zone used for calendar windows and due
	// dates; empty means the host's local zone.
	Timezone string `yaml:"timezone"`

	// PollInterval is the watcher cycle period, e.g. "60s".
	PollInterval Duration `yaml:"poll_interval"`

	Calendar      CalendarConfig      `yaml:"calendar"`
	Mail          MailConfig          `yaml:"mail"`
	Messages      MessagesConfig      `yaml:"messages"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Review        ReviewConfig        `yaml:"review"`
	Classifier    ClassifierConfig    `yaml:"classifier"`
	Reminders     RemindersConfig     `yaml:"reminders"`
	Agent         AgentConfig         `yaml:"agent"`
}

// CalendarConfig tunes the calendar watcher.
type CalendarConfig struct {
	Enabled   bool     `yaml:"enabled"`
	LookAhead Duration `yaml:"look_ahead"`
}

// MailConfig tunes the mail watcher.
type MailConfig struct {
	Enabled   bool `yaml:"enabled"`
	MaxScan   int  `yaml:"max_scan"`
	MaxBodies int  `yaml:"max_bodies"`
}

// MessagesConfig tunes the message-database watcher.
type MessagesConfig struct {
	Enabled bool   `yaml:"enabled"`
	DBPath  string `yaml:"db_path"`
}

// NotificationsConfig tunes the notification-log watcher.
type NotificationsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// ReviewConfig tunes the code-review-queue watcher.
type ReviewConfig struct {
	Enabled bool   `yaml:"enabled"`
	Label   string `yaml:"label"`
}

// ClassifierConfig points at the local model server. An empty URL means
// keyword-only classification.
type ClassifierConfig struct {
	URL       string `yaml:"url"`
	MaxTokens int    `yaml:"max_tokens"`
}

// RemindersConfig names the target reminder list.
type RemindersConfig struct {
	List string `yaml:"list"`
}

// AgentConfig names the agent CLI for complex actions.
type AgentConfig struct {
	Command string `yaml:"command"`
}

var (
	globalConfig *Config
	configOnce   sync.Once
	configErr    error
)

const (
	// DefaultConfigPath is the default location for the config file.
	DefaultConfigPath = "~/.config/chandra/config.yaml"

	// DefaultStateDir is where state lives when no config is present.
	DefaultStateDir = "~/.local/state/chandra"

	// DefaultPollInterval is the watcher cycle period.
	DefaultPollInterval = 60 * time.Second
)

// Defaults returns the built-in configuration.
func Defaults() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		StateDir:     DefaultStateDir,
		PollInterval: Duration(DefaultPollInterval),
		Calendar: CalendarConfig{
			Enabled:   true,
			LookAhead: Duration(15 * time.Minute),
		},
		Mail: MailConfig{
			Enabled:   true,
			MaxScan:   30,
			MaxBodies: 10,
		},
		Messages: MessagesConfig{
			Enabled: true,
			DBPath:  filepath.Join(home, "Library", "Messages", "chat.db"),
		},
		Notifications: NotificationsConfig{Enabled: false},
		Review: ReviewConfig{
			Enabled: true,
			Label:   "needs-review",
		},
		Classifier: ClassifierConfig{
			URL:       "",
			MaxTokens: 256,
		},
		Reminders: RemindersConfig{List: "Reminders"},
		Agent:     AgentConfig{Command: "claude"},
	}
}

// Load loads the configuration from the default path.
// It returns the cached config on subsequent calls.
func Load() (*Config, error) {
	configOnce.Do(func() {
		globalConfig, configErr = LoadFromPath(DefaultConfigPath)
	})
	return globalConfig, configErr
}

// LoadFromPath loads configuration from a specific file path, filling in
// defaults for anything the file leaves unset.
func LoadFromPath(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(ExpandPath(path))
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.StateDir == "" {
		cfg.StateDir = DefaultStateDir
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = Duration(DefaultPollInterval)
	}
	if cfg.Calendar.LookAhead <= 0 {
		cfg.Calendar.LookAhead = Duration(15 * time.Minute)
	}
	if cfg.Mail.MaxScan <= 0 {
		cfg.Mail.MaxScan = 30
	}
	if cfg.Mail.MaxBodies <= 0 {
		cfg.Mail.MaxBodies = 10
	}
	if cfg.Review.Label == "" {
		cfg.Review.Label = "needs-review"
	}
	if cfg.Classifier.MaxTokens <= 0 {
		cfg.Classifier.MaxTokens = 256
	}
	if cfg.Reminders.List == "" {
		cfg.Reminders.List = "Reminders"
	}

	return cfg, nil
}

// Location resolves the configured timezone; an empty or unknown name
// falls back to the host's local zone.
func (c *Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		log.Printf("[config] Unknown timezone %q, falling back to local: %v", c.Timezone, err)
		return time.Local
	}
	return loc
}

// StatePath returns a file path inside the expanded state directory.
func (c *Config) StatePath(name string) string {
	return filepath.Join(ExpandPath(c.StateDir), name)
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}

// ResetForTesting resets the global config state. Only use in tests.
func ResetForTesting() {
	configOnce = sync.Once{}
	globalConfig = nil
	configErr = nil
}
