package workflow

import (
	"fmt"
	"strings"
	"time"
)

// ExecutionStatus is the lifecycle state of a step.
type ExecutionStatus string

const (
	// StatusNotStarted indicates the step has not been reached.
	StatusNotStarted ExecutionStatus = "not_started"

	// StatusStarted indicates the step's task is running.
	StatusStarted ExecutionStatus = "started"

	// StatusCompleted indicates the task returned without error.
	StatusCompleted ExecutionStatus = "completed"

	// StatusError indicates the task failed.
	StatusError ExecutionStatus = "error"
)

// IsTerminal returns true if the status is final.
func (s ExecutionStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusError
}

// Validate checks if the status is valid.
func (s ExecutionStatus) Validate() error {
	switch s {
	case StatusNotStarted, StatusStarted, StatusCompleted, StatusError:
		return nil
	default:
		return fmt.Errorf("invalid execution status: %s", s)
	}
}

// ExecutionInformation tracks one step across a run. Only the engine
// mutates it, and it is never reset.
type ExecutionInformation struct {
	// Status is the current lifecycle state.
	Status ExecutionStatus `json:"status"`

	// StartedAt is when the task was invoked.
	StartedAt time.Time `json:"started_at,omitempty"`

	// StoppedAt is when the task returned.
	StoppedAt time.Time `json:"stopped_at,omitempty"`
}

// NewExecutionInformation returns a record in the NotStarted state.
func NewExecutionInformation() ExecutionInformation {
	return ExecutionInformation{Status: StatusNotStarted}
}

// Start marks the step as running.
func (e *ExecutionInformation) Start(now time.Time) {
	e.Status = StatusStarted
	e.StartedAt = now
}

// Complete marks the step as finished successfully.
func (e *ExecutionInformation) Complete(now time.Time) {
	e.Status = StatusCompleted
	e.StoppedAt = now
}

// Fail marks the step as failed.
func (e *ExecutionInformation) Fail(now time.Time) {
	e.Status = StatusError
	e.StoppedAt = now
}

// Duration is the time between start and stop, or zero while unfinished.
func (e ExecutionInformation) Duration() time.Duration {
	if !e.Status.IsTerminal() || e.StartedAt.IsZero() {
		return 0
	}
	return e.StoppedAt.Sub(e.StartedAt)
}

// Tag selects which steps run for an invocation.
type Tag string

const (
	TagInstall   Tag = "install"
	TagUninstall Tag = "uninstall"
	TagModify    Tag = "modify"
	TagRepair    Tag = "repair"
)

// Tags lists every tag.
var Tags = []Tag{TagInstall, TagUninstall, TagModify, TagRepair}

// ParseTag converts a name into a Tag.
func ParseTag(name string) (Tag, error) {
	t := Tag(strings.ToLower(strings.TrimSpace(name)))
	if err := t.Validate(); err != nil {
		return "", err
	}
	return t, nil
}

// Validate checks if the tag is valid.
func (t Tag) Validate() error {
	switch t {
	case TagInstall, TagUninstall, TagModify, TagRepair:
		return nil
	default:
		return fmt.Errorf("invalid tag: %q", string(t))
	}
}
