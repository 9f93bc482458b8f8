package stores

import (
	"context"
	"errors"
	"time"

	"github.com/openfroyo/installer/pkg/engine"
)

// ErrRunNotFound is returned when a run ID is not in the store.
var ErrRunNotFound = errors.New("run not found")

// RunSummary is a stored run with its step counts.
type RunSummary struct {
	engine.RunRecord

	// Steps is the number of steps that ran.
	Steps int `json:"steps"`

	// FailedSteps is the number of steps that ended in error.
	FailedSteps int `json:"failed_steps"`
}

// StepExecution is a stored step outcome.
type StepExecution struct {
	ID int64 `json:"id"`
	engine.StepRecord
}

// Duration returns how long the step ran.
func (s *StepExecution) Duration() time.Duration {
	return s.StoppedAt.Sub(s.StartedAt)
}

// Event is a stored run event.
type Event struct {
	ID int64 `json:"id"`
	engine.EventRecord
}

// RunFilter narrows ListRuns. Zero fields match everything.
type RunFilter struct {
	Workflow string
	Status   engine.RunStatus
	Limit    int
	Offset   int
}

// Store keeps the installer's run history.
type Store interface {
	engine.Recorder

	// Lifecycle
	Init(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error

	// Queries
	GetRun(ctx context.Context, id string) (*RunSummary, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]*RunSummary, error)
	ListSteps(ctx context.Context, runID string) ([]*StepExecution, error)
	ListEvents(ctx context.Context, runID string) ([]*Event, error)

	// Maintenance
	PruneRuns(ctx context.Context, before time.Time) (int64, error)
}
