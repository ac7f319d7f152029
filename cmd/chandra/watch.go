package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/pearcec/chandra/internal/agent"
	"github.com/pearcec/chandra/internal/bridge"
	"github.com/pearcec/chandra/internal/classify"
	"github.com/pearcec/chandra/internal/config"
	"github.com/pearcec/chandra/internal/remind"
	"github.com/pearcec/chandra/internal/route"
	"github.com/pearcec/chandra/internal/state"
	"github.com/pearcec/chandra/internal/taskstore"
	"github.com/pearcec/chandra/internal/watch"
)

var (
	watchDaemon     bool
	watchJSONOut    bool
	watchConfigPath string
	watchInterval   time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Manage the event watcher daemon",
	Long: `The watcher daemon polls your event sources on a fixed interval and
routes anything new through classification.

Commands:
  start     Start the watcher daemon
  stop      Stop the running daemon
  status    Check daemon status
  once      Run a single poll cycle and exit`,
}

var watchStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the watcher daemon",
	Long: `Start the watcher daemon. By default runs in foreground.
Use --daemon to run in background.

Examples:
  chandra watch start           # Run in foreground
  chandra watch start --daemon  # Run in background`,
	RunE: runWatchStart,
}

var watchStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the watcher daemon",
	Long:  `Stop the running watcher daemon by sending SIGTERM.`,
	RunE:  runWatchStop,
}

var watchStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check watcher daemon status",
	Long:  `Check if the watcher daemon is running and show its PID.`,
	RunE:  runWatchStatus,
}

var watchOnceCmd = &cobra.Command{
	Use:   "once",
	Short: "Run a single poll cycle",
	Long: `Poll every available watcher once, dispatch whatever turned up, and
exit. Useful for testing configuration before starting the daemon.`,
	RunE: runWatchOnce,
}

func init() {
	watchStartCmd.Flags().BoolVar(&watchDaemon, "daemon", false, "Run in background as daemon")
	watchStartCmd.Flags().DurationVar(&watchInterval, "interval", 0, "Override the configured poll interval")

	watchCmd.PersistentFlags().BoolVar(&watchJSONOut, "json", false, "Output as JSON")
	watchCmd.PersistentFlags().StringVar(&watchConfigPath, "config", "", "Override default config file location")

	watchCmd.AddCommand(watchStartCmd)
	watchCmd.AddCommand(watchStopCmd)
	watchCmd.AddCommand(watchStatusCmd)
	watchCmd.AddCommand(watchOnceCmd)
}

// Config and path helpers

func loadWatchConfig() (*config.Config, error) {
	if watchConfigPath != "" {
		return config.LoadFromPath(watchConfigPath)
	}
	return config.Load()
}

func pidPath(cfg *config.Config) string { return cfg.StatePath("chandra.pid") }
func logPath(cfg *config.Config) string { return cfg.StatePath("chandra.log") }

// journalPath is where the router appends one JSON line per handled event;
// the events subcommand reads it back.
func journalPath(cfg *config.Config) string { return cfg.StatePath("actions.jsonl") }

// PID file management

func writePID(cfg *config.Config, pid int) error {
	path := pidPath(cfg)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(pid)), 0644)
}

func readPID(cfg *config.Config) (int, error) {
	data, err := os.ReadFile(pidPath(cfg))
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePID(cfg *config.Config) error {
	return os.Remove(pidPath(cfg))
}

func isProcessRunning(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// On Unix, FindProcess always succeeds; we need to send signal 0 to check
	err = process.Signal(syscall.Signal(0))
	return err == nil
}

// buildPipeline wires the store, watchers and router from configuration.
// Unavailable collaborators are left nil; the router degrades accordingly.
func buildPipeline(cfg *config.Config) (*watch.Listener, *route.Router) {
	st := state.New(cfg.StatePath("watermarks.json"))
	runner := bridge.Osascript{}
	loc := cfg.Location()

	var cls route.Classifier
	if cfg.Classifier.URL != "" {
		cls = classify.New(cfg.Classifier.URL)
	}

	var reminders route.ReminderClient
	if rem := remind.New(runner); rem.Available() {
		reminders = rem
	} else {
		log.Printf("[watch] Reminder client unavailable on this host")
	}

	var tasks route.TaskStore = taskstore.New(cfg.StatePath("tasks.json"))

	var agentRunner route.AgentRunner
	if ag := agent.New(cfg.Agent.Command); ag.Available() {
		agentRunner = ag
	} else {
		log.Printf("[watch] Agent CLI %q not found, complex actions degrade to reminders", cfg.Agent.Command)
	}

	router := route.New(route.Config{
		Classifier:   cls,
		Reminders:    reminders,
		Tasks:        tasks,
		Agent:        agentRunner,
		ReminderList: cfg.Reminders.List,
		MaxTokens:    cfg.Classifier.MaxTokens,
		Location:     loc,
		JournalPath:  journalPath(cfg),
	})

	listener := watch.NewListener(st, router)
	if cfg.Calendar.Enabled {
		listener.Register(watch.NewCalendarWatcher(runner, cfg.Calendar.LookAhead.Std(), loc))
	}
	if cfg.Mail.Enabled {
		mw := watch.NewMailWatcher(runner, loc)
		mw.MaxScan = cfg.Mail.MaxScan
		mw.MaxBodies = cfg.Mail.MaxBodies
		listener.Register(mw)
	}
	if cfg.Messages.Enabled {
		listener.Register(watch.NewMessagesWatcher(cfg.Messages.DBPath))
	}
	if cfg.Notifications.Enabled {
		listener.Register(watch.NewNotificationsWatcher(loc))
	}
	if cfg.Review.Enabled {
		listener.Register(watch.NewReviewWatcher(cfg.Review.Label))
	}

	return listener, router
}

// Command implementations

func runWatchStart(cmd *cobra.Command, args []string) error {
	cfg, err := loadWatchConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if watchInterval > 0 {
		cfg.PollInterval = config.Duration(watchInterval)
	}

	// Check if already running
	if pid, err := readPID(cfg); err == nil && isProcessRunning(pid) {
		return fmt.Errorf("watcher already running (PID %d)", pid)
	}

	if watchDaemon {
		// Fork to background
		execPath, err := os.Executable()
		if err != nil {
			return fmt.Errorf("failed to get executable path: %w", err)
		}

		// Build command args (without --daemon to avoid infinite loop)
		cmdArgs := []string{"watch", "start"}
		if watchConfigPath != "" {
			cmdArgs = append(cmdArgs, "--config", watchConfigPath)
		}
		if watchInterval > 0 {
			cmdArgs = append(cmdArgs, "--interval", watchInterval.String())
		}

		daemonCmd := exec.Command(execPath, cmdArgs...)
		daemonCmd.Stdout = nil
		daemonCmd.Stderr = nil
		daemonCmd.Stdin = nil

		// Detach from parent process
		daemonCmd.SysProcAttr = &syscall.SysProcAttr{
			Setsid: true,
		}

		if err := daemonCmd.Start(); err != nil {
			return fmt.Errorf("failed to start daemon: %w", err)
		}

		fmt.Printf("Watcher started in background (PID %d)\n", daemonCmd.Process.Pid)
		return nil
	}

	return runWatchForeground(cfg)
}

func runWatchForeground(cfg *config.Config) error {
	if err := writePID(cfg, os.Getpid()); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}
	defer removePID(cfg)

	logFile, err := os.OpenFile(logPath(cfg), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer logFile.Close()

	// Log to both stdout and the log file
	multiWriter := io.MultiWriter(os.Stdout, logFile)
	log.SetOutput(multiWriter)
	log.SetFlags(log.Ldate | log.Ltime)

	log.Println("[watch] Watcher daemon starting...")
	log.Printf("[watch] State: %s", config.ExpandPath(cfg.StateDir))
	log.Printf("[watch] Poll interval: %s", cfg.PollInterval.Std())
	log.Printf("[watch] PID: %d", os.Getpid())

	listener, _ := buildPipeline(cfg)
	log.Printf("[watch] Active watchers: %s", strings.Join(listener.WatcherNames(), ", "))

	// An overrunning cycle skips the next tick rather than stacking polls.
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	spec := fmt.Sprintf("@every %s", cfg.PollInterval.Std())
	if _, err := c.AddFunc(spec, listener.Poll); err != nil {
		return fmt.Errorf("failed to schedule polling: %w", err)
	}

	// First cycle runs immediately; cron waits a full interval otherwise.
	listener.Poll()
	c.Start()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	for {
		sig := <-sigCh
		switch sig {
		case syscall.SIGHUP:
			log.Println("[watch] Received SIGHUP, reloading config...")
			newCfg, err := loadConfigAgain()
			if err != nil {
				log.Printf("[watch] Reload failed: %v", err)
				continue
			}
			c.Stop()
			cfg = newCfg
			listener, _ = buildPipeline(cfg)
			c = cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
			spec := fmt.Sprintf("@every %s", cfg.PollInterval.Std())
			if _, err := c.AddFunc(spec, listener.Poll); err != nil {
				log.Printf("[watch] Failed to reschedule polling: %v", err)
				continue
			}
			c.Start()
			log.Printf("[watch] Reload complete, watchers: %s", strings.Join(listener.WatcherNames(), ", "))

		case syscall.SIGINT, syscall.SIGTERM:
			log.Println("[watch] Received shutdown signal, stopping...")
			c.Stop()
			log.Println("[watch] Watcher stopped")
			return nil
		}
	}
}

// loadConfigAgain bypasses the config cache on SIGHUP.
func loadConfigAgain() (*config.Config, error) {
	path := watchConfigPath
	if path == "" {
		path = config.DefaultConfigPath
	}
	return config.LoadFromPath(path)
}

func runWatchOnce(cmd *cobra.Command, args []string) error {
	cfg, err := loadWatchConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log.SetFlags(log.Ldate | log.Ltime)
	listener, router := buildPipeline(cfg)
	listener.Poll()

	stats := listener.Stats()
	if watchJSONOut {
		out := map[string]interface{}{
			"stats":   stats,
			"actions": router.Entries(),
		}
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	fmt.Printf("Polled %d watcher(s), %d event(s) handled\n", len(stats.Watchers), stats.Events)
	for _, e := range router.Entries() {
		fmt.Printf("  %-18s %-16s %s\n", e.Event.Key(), e.Action, e.Result)
	}
	return nil
}

func runWatchStop(cmd *cobra.Command, args []string) error {
	cfg, err := loadWatchConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	pid, err := readPID(cfg)
	if err != nil {
		return fmt.Errorf("watcher not running (no PID file)")
	}

	if !isProcessRunning(pid) {
		removePID(cfg)
		return fmt.Errorf("watcher not running (stale PID file removed)")
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("failed to find process: %w", err)
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("failed to stop watcher: %w", err)
	}

	fmt.Printf("Watcher stopped (PID %d)\n", pid)
	return nil
}

func runWatchStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadWatchConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	pid, err := readPID(cfg)
	if err != nil {
		if watchJSONOut {
			fmt.Println(`{"running": false}`)
		} else {
			fmt.Println("Watcher is not running")
		}
		return nil
	}

	running := isProcessRunning(pid)
	if !running {
		removePID(cfg)
	}

	if watchJSONOut {
		status := map[string]interface{}{
			"running": running,
			"pid":     pid,
		}
		data, _ := json.MarshalIndent(status, "", "  ")
		fmt.Println(string(data))
	} else {
		if running {
			fmt.Printf("Watcher is running (PID %d)\n", pid)
		} else {
			fmt.Println("Watcher is not running (stale PID file removed)")
		}
	}
	return nil
}
