package main

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/pearcec/chandra/internal/config"
	"github.com/pearcec/chandra/internal/state"
)

var stateResetAll bool

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Show or reset watcher watermarks",
	Long: `Watchers remember where they left off in a watermark file. Resetting a
watcher makes its next poll treat the current source contents as the
baseline.

Commands:
  show      Show all stored watermarks
  reset     Reset one watcher's watermarks, or all with --all`,
}

var stateShowCmd = &cobra.Command{
	Use:   "show [watcher]",
	Short: "Show stored watermarks",
	Long: `Show the stored watermarks for every watcher, or just one.

Examples:
  chandra state show
  chandra state show mail`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStateShow,
}

var stateResetCmd = &cobra.Command{
	Use:   "reset [watcher]",
	Short: "Reset watcher watermarks",
	Long: `Reset the stored watermarks for one watcher, or every watcher with
--all.

Examples:
  chandra state reset mail
  chandra state reset --all`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStateReset,
}

func init() {
	stateResetCmd.Flags().BoolVar(&stateResetAll, "all", false, "Reset every watcher")

	stateCmd.AddCommand(stateShowCmd)
	stateCmd.AddCommand(stateResetCmd)
}

func openStore() (*state.Store, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return state.New(cfg.StatePath("watermarks.json")), nil
}

func runStateShow(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}

	names := st.Watchers()
	if len(args) == 1 {
		names = nil
		for _, name := range st.Watchers() {
			if name == args[0] {
				names = []string{name}
			}
		}
		if len(names) == 0 {
			return fmt.Errorf("no state recorded for watcher %q", args[0])
		}
	}
	if len(names) == 0 {
		fmt.Println("No watcher state recorded yet.")
		fmt.Printf("\nState file: %s\n", st.Path())
		return nil
	}
	sort.Strings(names)

	doc := make(map[string]map[string]interface{}, len(names))
	for _, name := range names {
		doc[name] = st.All(name)
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func runStateReset(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}

	if stateResetAll {
		if err := st.ResetAll(); err != nil {
			return fmt.Errorf("failed to reset state: %w", err)
		}
		fmt.Println("All watcher state reset.")
		return nil
	}

	if len(args) != 1 {
		return fmt.Errorf("name a watcher to reset, or pass --all")
	}
	watcher := args[0]

	found := false
	for _, name := range st.Watchers() {
		if name == watcher {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("no state recorded for watcher %q", watcher)
	}

	st.Reset(watcher)
	if err := st.Save(); err != nil {
		return fmt.Errorf("failed to save state: %w", err)
	}
	fmt.Printf("Watcher %s reset.\n", watcher)
	return nil
}
