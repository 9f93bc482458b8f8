package engine

import (
	"fmt"
	"time"

	"github.com/openfroyo/installer/pkg/workflow"
)

// RunStatus is the overall status of a workflow run.
type RunStatus string

const (
	// RunStatusRunning indicates the run is executing.
	RunStatusRunning RunStatus = "running"

	// RunStatusSucceeded indicates every eligible step completed.
	RunStatusSucceeded RunStatus = "succeeded"

	// RunStatusFailed indicates the run stopped at a fatal error.
	RunStatusFailed RunStatus = "failed"
)

// IsTerminal returns true if the run status represents a final state.
func (s RunStatus) IsTerminal() bool {
	return s == RunStatusSucceeded || s == RunStatusFailed
}

// Validate checks if the run status is valid.
func (s RunStatus) Validate() error {
	switch s {
	case RunStatusRunning, RunStatusSucceeded, RunStatusFailed:
		return nil
	default:
		return fmt.Errorf("invalid run status: %s", s)
	}
}

// Phase names the part of a run an error or event belongs to.
type Phase string

const (
	PhaseValidation   Phase = "validation"
	PhaseDependencies Phase = "dependencies"
	PhaseSteps        Phase = "steps"
)

// StepResult is the outcome of one executed step.
type StepResult struct {
	Stage    string                   `json:"stage"`
	Job      string                   `json:"job"`
	Step     string                   `json:"step"`
	Kind     string                   `json:"kind"`
	Status   workflow.ExecutionStatus `json:"status"`
	Duration time.Duration            `json:"duration"`
	Error    string                   `json:"error,omitempty"`
}

// DependencyResult is the outcome of one dependency check.
type DependencyResult struct {
	Name  string `json:"name"`
	Range string `json:"range"`

	// AlreadyInstalled is true when no acquisition was needed.
	AlreadyInstalled bool `json:"already_installed"`

	// Method describes the acquisition method used, if any.
	Method string `json:"method,omitempty"`
}

// RunResult summarises a run.
type RunResult struct {
	RunID        string             `json:"run_id"`
	Workflow     string             `json:"workflow"`
	Tag          workflow.Tag       `json:"tag"`
	DryRun       bool               `json:"dry_run"`
	Status       RunStatus          `json:"status"`
	Phase        Phase              `json:"phase"`
	StartedAt    time.Time          `json:"started_at"`
	FinishedAt   time.Time          `json:"finished_at"`
	Steps        []StepResult       `json:"steps"`
	Dependencies []DependencyResult `json:"dependencies,omitempty"`

	// Skipped counts steps that were not eligible for the platform and tag.
	Skipped int `json:"skipped"`
}

// Duration returns the wall time of the run, or zero while it is running.
func (r *RunResult) Duration() time.Duration {
	if !r.Status.IsTerminal() || r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Executed returns the names of the steps that ran, in order.
func (r *RunResult) Executed() []string {
	names := make([]string, 0, len(r.Steps))
	for _, s := range r.Steps {
		names = append(names, s.Step)
	}
	return names
}
