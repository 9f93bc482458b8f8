package engine

import (
	"context"
	"time"

	"github.com/openfroyo/installer/pkg/workflow"
)

// RunRecord describes a run for the history store.
type RunRecord struct {
	ID         string       `json:"id"`
	Workflow   string       `json:"workflow"`
	Tag        workflow.Tag `json:"tag"`
	DryRun     bool         `json:"dry_run"`
	Platform   string       `json:"platform"`
	Status     RunStatus    `json:"status"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt *time.Time   `json:"finished_at,omitempty"`
	Error      string       `json:"error,omitempty"`
}

// StepRecord describes one finished step.
type StepRecord struct {
	RunID     string                   `json:"run_id"`
	Stage     string                   `json:"stage"`
	Job       string                   `json:"job"`
	Step      string                   `json:"step"`
	Kind      string                   `json:"kind"`
	Status    workflow.ExecutionStatus `json:"status"`
	StartedAt time.Time                `json:"started_at"`
	StoppedAt time.Time                `json:"stopped_at"`
	Error     string                   `json:"error,omitempty"`
}

// EventLevel is the severity of a run event.
type EventLevel string

const (
	EventLevelInfo    EventLevel = "info"
	EventLevelWarning EventLevel = "warning"
	EventLevelError   EventLevel = "error"
)

// EventRecord is a notable moment of a run that is not a step, such as a
// dependency acquisition or a skipped stage.
type EventRecord struct {
	RunID     string     `json:"run_id"`
	Phase     Phase      `json:"phase"`
	Level     EventLevel `json:"level"`
	Message   string     `json:"message"`
	Timestamp time.Time  `json:"timestamp"`
}

// Recorder keeps the history of runs. Recording failures are logged by the
// engine and never fail a run.
type Recorder interface {
	RunStarted(ctx context.Context, run *RunRecord) error
	StepFinished(ctx context.Context, step *StepRecord) error
	Event(ctx context.Context, event *EventRecord) error
	RunFinished(ctx context.Context, run *RunRecord) error
}

type nopRecorder struct{}

func (nopRecorder) RunStarted(context.Context, *RunRecord) error    { return nil }
func (nopRecorder) StepFinished(context.Context, *StepRecord) error { return nil }
func (nopRecorder) Event(context.Context, *EventRecord) error       { return nil }
func (nopRecorder) RunFinished(context.Context, *RunRecord) error   { return nil }
