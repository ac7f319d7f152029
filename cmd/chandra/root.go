package main

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "chandra",
	Short: "Dr. Chandra's attentive assistant. I watch, so you don't have to.",
	Long: `I watch your inboxes, calendars and queues, and decide what deserves
your attention. Named for Dr. Chandra, who taught a computer to pay
attention in the first place.

I can help you with:

  watch     Run the event watchers (foreground, daemon, or one cycle)
  events    Inspect the action log of handled events
  state     Show or reset watcher watermarks
  classify  Classify a piece of text through the triage pipeline

Events flow from watchers through classification to reminders, scheduled
tasks, or an agent run. Nothing is ever silently dropped.`,
}

func init() {
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(eventsCmd)
	rootCmd.AddCommand(stateCmd)
	rootCmd.AddCommand(classifyCmd)
}
