// Package remind creates entries in the system Reminders app.
package remind

import (
	"fmt"
	"time"

	"github.com/pearcec/chandra/internal/bridge"
)

const createTimeout = 15 * time.Second

// Client creates reminders through the scripting bridge.
type Client struct {
	Runner bridge.Runner
}

// New creates a reminder client over the given script runner.
func New(runner bridge.Runner) *Client {
	return &Client{Runner: runner}
}

// Available reports whether the scripting bridge is usable on this host.
func (c *Client) Available() bool { return bridge.Available() }

// Create adds a reminder with the given title to list. dueDate, when
// non-empty, must be YYYY-MM-DD; an unparsable date creates an undated
// reminder rather than failing. Dated reminders fire at 09:00.
func (c *Client) Create(title, list, dueDate string) (string, error) {
	props := fmt.Sprintf("{name:\"%s\"}", bridge.EscapeString(title))
	dateSetup := ""
	if d, err := time.Parse("2006-01-02", dueDate); err == nil {
		// Dates are built field by field to stay locale-independent.
		dateSetup = fmt.Sprintf(`set due to (current date)
set year of due to %d
set month of due to %d
set day of due to %d
set time of due to (9 * hours)
`, d.Year(), int(d.Month()), d.Day())
		props = fmt.Sprintf("{name:\"%s\", due date:due}", bridge.EscapeString(title))
	}

	script := fmt.Sprintf(`%stell application "Reminders"
	set targetList to list "%s"
	make new reminder at end of reminders of targetList with properties %s
end tell
return "ok"`, dateSetup, bridge.EscapeString(list), props)

	if _, err := c.Runner.Run(script, createTimeout); err != nil {
		return "", fmt.Errorf("failed to create reminder: %w", err)
	}
	return fmt.Sprintf("reminder %q added to %s", title, list), nil
}
