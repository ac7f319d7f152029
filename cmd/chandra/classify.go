package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pearcec/chandra/internal/classify"
	"github.com/pearcec/chandra/internal/config"
	"github.com/pearcec/chandra/internal/event"
	"github.com/pearcec/chandra/internal/route"
)

var (
	classifyBody   string
	classifySender string
	classifySource string
	classifyCheck  bool
)

var classifyCmd = &cobra.Command{
	Use:   "classify <subject>",
	Short: "Classify a piece of text through the triage pipeline",
	Long: `Run a synthetic event through the same classification the watcher uses
and print the decision without dispatching it. With --check, probe the
configured model server instead.

Examples:
  chandra classify "URGENT: invoice due today"
  chandra classify "Lunch plans?" --body="Want to grab lunch tomorrow?"
  chandra classify --check`,
	RunE: runClassify,
}

func init() {
	classifyCmd.Flags().StringVar(&classifyBody, "body", "", "Event body text")
	classifyCmd.Flags().StringVar(&classifySender, "sender", "", "Event sender")
	classifyCmd.Flags().StringVar(&classifySource, "source", event.SourceMail, "Event source")
	classifyCmd.Flags().BoolVar(&classifyCheck, "check", false, "Check model server health")
}

func runClassify(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if classifyCheck {
		if cfg.Classifier.URL == "" {
			fmt.Println("No model server configured; classification is keyword-only.")
			return nil
		}
		if err := classify.New(cfg.Classifier.URL).Health(); err != nil {
			return fmt.Errorf("model server at %s is unhealthy: %w", cfg.Classifier.URL, err)
		}
		fmt.Printf("Model server at %s is healthy.\n", cfg.Classifier.URL)
		return nil
	}

	if len(args) == 0 {
		return fmt.Errorf("provide a subject to classify, or --check")
	}
	subject := strings.Join(args, " ")

	var cls route.Classifier
	if cfg.Classifier.URL != "" {
		cls = classify.New(cfg.Classifier.URL)
	}
	router := route.New(route.Config{
		Classifier: cls,
		MaxTokens:  cfg.Classifier.MaxTokens,
		Location:   cfg.Location(),
	})

	ev := event.New(classifySource, event.TypeNewEmail, subject, classifySender, classifyBody,
		time.Now(), "cli", nil)
	result := router.Preview(ev)

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
