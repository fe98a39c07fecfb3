// Package execx abstracts external process execution so packages that
// shell out (audio conversion, whisper inference) stay testable.
package execx

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
)

// Result is one command execution response.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// CommandRunner runs one external command to completion.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) (Result, error)
}

// Runner executes commands via os/exec.
type Runner struct{}

// Run executes one command and captures stdout/stderr and exit code.
func (r *Runner) Run(ctx context.Context, name string, args ...string) (Result, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: 0,
	}
	if err != nil {
		result.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		}
		return result, err
	}

	return result, nil
}
