package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/pearcec/chandra/internal/config"
	"github.com/pearcec/chandra/internal/route"
)

var (
	eventsJSONOut bool
	eventsLimit   int
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Inspect the action log of handled events",
	Long: `Every event the watcher handles is journaled with the action taken and
its result, including ignored events.

Commands:
  list      Show recent action-log entries
  clear     Delete the action log`,
}

var eventsListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show recent action-log entries",
	Long: `Show the most recent entries from the action log.

Examples:
  chandra events list
  chandra events list --limit=100
  chandra events list --json`,
	RunE: runEventsList,
}

var eventsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete the action log",
	RunE:  runEventsClear,
}

func init() {
	eventsCmd.PersistentFlags().BoolVar(&eventsJSONOut, "json", false, "Output as JSON")
	eventsListCmd.Flags().IntVar(&eventsLimit, "limit", 50, "Number of entries to show")

	eventsCmd.AddCommand(eventsListCmd)
	eventsCmd.AddCommand(eventsClearCmd)
}

// readJournal loads the newest entries from the action journal. Lines that
// fail to parse are skipped; a partial final line from a crashed writer
// must not hide the rest of the log.
func readJournal(path string, limit int) ([]route.Entry, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer file.Close()

	var entries []route.Entry
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var e route.Entry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			continue
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	return entries, nil
}

func runEventsList(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	entries, err := readJournal(journalPath(cfg), eventsLimit)
	if err != nil {
		return fmt.Errorf("failed to read action log: %w", err)
	}

	if eventsJSONOut {
		data, err := json.MarshalIndent(entries, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	if len(entries) == 0 {
		fmt.Println("No events handled yet.")
		return nil
	}

	renderEventsTable(entries)
	return nil
}

func renderEventsTable(entries []route.Entry) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Time", "Source", "Type", "Subject", "Action", "Result"})

	for _, e := range entries {
		t.AppendRow(table.Row{
			e.Event.Timestamp.Format("01-02 15:04"),
			e.Event.Source,
			e.Event.Type,
			e.Event.Subject,
			e.Action,
			e.Result,
		})
	}

	if isatty.IsTerminal(os.Stdout.Fd()) {
		t.SetStyle(table.StyleRounded)
		width := determineWidth()
		t.SetColumnConfigs([]table.ColumnConfig{
			{Name: "Subject", WidthMax: width / 4, WidthMaxEnforcer: text.Trim},
			{Name: "Result", WidthMax: width / 3, WidthMaxEnforcer: text.Trim},
		})
	} else {
		t.SetStyle(table.StyleDefault)
		t.Style().Options.DrawBorder = false
		t.Style().Options.SeparateColumns = false
	}
	t.Render()
}

// determineWidth returns the terminal width, defaulting when stdout is not
// a terminal or the size cannot be read.
func determineWidth() int {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || w <= 0 {
		return 120
	}
	return w
}

func runEventsClear(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := os.Remove(journalPath(cfg)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to clear action log: %w", err)
	}
	fmt.Println("Action log cleared.")
	return nil
}
