// Package agent shells out to a coding-agent CLI for multi-step actions
// that a single reminder or scheduled task cannot express.
package agent

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

const runTimeout = 120 * time.Second

// DefaultCommand is the agent CLI invoked when none is configured.
const DefaultCommand = "claude"

// Runner executes prompts through an external agent CLI.
type Runner struct {
	Command string
}

// New creates a runner for the given agent command; empty means the
// default.
func New(command string) *Runner {
	if command == "" {
		command = DefaultCommand
	}
	return &Runner{Command: command}
}

// Available reports whether the agent CLI is on PATH.
func (r *Runner) Available() bool {
	_, err := exec.LookPath(r.Command)
	return err == nil
}

// Run executes one prompt and returns the agent's final answer. Runs are
// killed after a fixed deadline; an agent that hangs must not stall the
// poll loop forever.
func (r *Runner) Run(prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, r.Command, "-p", prompt)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", fmt.Errorf("agent timed out after %s", runTimeout)
		}
		if stderr.Len() > 0 {
			return "", fmt.Errorf("agent failed: %s", bytes.TrimSpace(stderr.Bytes()))
		}
		return "", fmt.Errorf("agent failed: %w", err)
	}
	return strings.TrimSpace(stdout.String()), nil
}
