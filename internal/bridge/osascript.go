// Package bridge runs AppleScript against desktop applications and parses
// the tab-separated output the scripts produce. Every invocation carries an
// explicit timeout with process-kill semantics so one unresponsive
// application cannot stall a whole poll cycle.
package bridge

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"time"
)

// Runner executes a script and returns its stdout.
type Runner interface {
	Run(script string, timeout time.Duration) (string, error)
}

// Osascript runs scripts through the macOS osascript binary.
type Osascript struct{}

// Run executes script with the given timeout. The underlying process is
// killed when the deadline expires. A non-zero exit returns an error
// carrying stderr.
func (Osascript) Run(script string, timeout time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "osascript", "-e", script)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", fmt.Errorf("osascript timed out after %s", timeout)
		}
		if stderr.Len() > 0 {
			return "", fmt.Errorf("osascript failed: %s", strings.TrimSpace(stderr.String()))
		}
		return "", fmt.Errorf("osascript failed: %w", err)
	}

	return stdout.String(), nil
}

// Available reports whether the scripting bridge can run on this host.
func Available() bool {
	if runtime.GOOS != "darwin" {
		return false
	}
	_, err := exec.LookPath("osascript")
	return err == nil
}

// EscapeString makes s safe to embed inside a double-quoted AppleScript
// string literal.
func EscapeString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	return s
}

// ParseTSV splits script output into records: one line per record, fields
// separated by tabs. Lines with fewer than min fields are skipped, so a
// stray diagnostic line cannot poison a batch.
func ParseTSV(out string, min int) [][]string {
	var rows [][]string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < min {
			continue
		}
		for i := range fields {
			fields[i] = strings.TrimSpace(fields[i])
		}
		rows = append(rows, fields)
	}
	return rows
}
