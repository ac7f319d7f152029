package watch

import (
	"encoding/json"
	"log"
	"os/exec"
	"sort"
	"strconv"
	"time"

	"github.com/pearcec/chandra/internal/event"
	"github.com/pearcec/chandra/internal/state"
)

const (
	// DefaultReviewLabel selects which open items the queue watcher
	// reports.
	DefaultReviewLabel = "needs-review"

	// reviewSeenCap bounds the persisted seen set to the most recent
	// identifiers.
	reviewSeenCap = 500

	reviewTimeout = 30 * time.Second
)

// ReviewWatcher polls the code-review queue for open items carrying a
// label. Its watermark is the set of item numbers already reported, capped
// to the most recent 500.
type ReviewWatcher struct {
	Label string
	Run   CommandRunner
}

// NewReviewWatcher builds a review-queue watcher for the given label.
func NewReviewWatcher(label string) *ReviewWatcher {
	if label == "" {
		label = DefaultReviewLabel
	}
	return &ReviewWatcher{Label: label, Run: RunCommand}
}

func (w *ReviewWatcher) Name() string { return event.SourceCodeReview }

func (w *ReviewWatcher) Available() bool {
	_, err := exec.LookPath("gh")
	return err == nil
}

type reviewItem struct {
	Number int    `json:"number"`
	Title  string `json:"title"`
	URL    string `json:"url"`
	Author struct {
		Login string `json:"login"`
	} `json:"author"`
}

func (w *ReviewWatcher) Poll(st *state.Store) ([]event.Event, error) {
	args := []string{
		"pr", "list",
		"--label", w.Label,
		"--state", "open",
		"--json", "number,title,author,url",
	}
	out, err := w.Run("gh", args, reviewTimeout)
	if err != nil {
		log.Printf("[watch/review] Query failed: %v", err)
		return nil, nil
	}

	var items []reviewItem
	if err := json.Unmarshal([]byte(out), &items); err != nil {
		log.Printf("[watch/review] Unparsable queue listing: %v", err)
		return nil, nil
	}

	seen := st.GetIntSlice(w.Name(), "seen_prs")
	seenSet := make(map[int64]bool, len(seen))
	for _, n := range seen {
		seenSet[n] = true
	}

	sort.Slice(items, func(i, j int) bool { return items[i].Number < items[j].Number })

	now := time.Now()
	var events []event.Event
	for _, item := range items {
		n := int64(item.Number)
		if seenSet[n] {
			continue
		}
		seenSet[n] = true
		seen = append(seen, n)
		events = append(events, event.New(
			event.SourceCodeReview, event.TypeCodeReviewRequest,
			item.Title, item.Author.Login, "",
			now, strconv.FormatInt(n, 10),
			map[string]string{
				"pr_number": strconv.FormatInt(n, 10),
				"pr_url":    item.URL,
				"label":     w.Label,
			},
		))
	}

	// Save only when something new turned up; the set is otherwise
	// unchanged.
	if len(events) > 0 {
		if len(seen) > reviewSeenCap {
			seen = seen[len(seen)-reviewSeenCap:]
		}
		st.Set(w.Name(), "seen_prs", seen)
		if err := st.Save(); err != nil {
			log.Printf("[watch/review] Failed to save state: %v", err)
		}
	}

	return events, nil
}
