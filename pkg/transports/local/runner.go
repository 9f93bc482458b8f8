package local

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"time"

	"github.com/rs/zerolog/log"
)

// ShellRunner runs processes with os/exec.
type ShellRunner struct{}

// NewShellRunner creates a runner for the local machine.
func NewShellRunner() *ShellRunner {
	return &ShellRunner{}
}

// Run implements Runner.
func (r *ShellRunner) Run(ctx context.Context, c Command) (*Result, error) {
	if c.Name == "" {
		return nil, fmt.Errorf("command name is required")
	}

	log.Debug().
		Str("command", c.String()).
		Str("dir", c.Dir).
		Msg("Executing command")

	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	if c.Dir != "" {
		cmd.Dir = c.Dir
	}
	if len(c.Env) > 0 {
		env := os.Environ()
		for k, v := range c.Env {
			env = append(env, fmt.Sprintf("%s=%s", k, v))
		}
		cmd.Env = env
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()

	result := &Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			log.Debug().
				Str("command", c.Name).
				Int("exit_code", result.ExitCode).
				Dur("duration", result.Duration).
				Msg("Command failed")
			return result, &ExitError{Command: c.Name, ExitCode: result.ExitCode, Stderr: result.Stderr}
		}
		return nil, fmt.Errorf("failed to execute %s: %w", c.Name, err)
	}

	log.Debug().
		Str("command", c.Name).
		Dur("duration", result.Duration).
		Msg("Command completed")

	return result, nil
}

// ShellCommand wraps script text in the platform shell.
func ShellCommand(script string) Command {
	if runtime.GOOS == "windows" {
		return Command{Name: "powershell.exe", Args: []string{"-NoProfile", "-NonInteractive", "-Command", script}}
	}
	return Command{Name: "/bin/sh", Args: []string{"-c", script}}
}
