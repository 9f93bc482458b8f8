// Package tasks binds task configurations to the code that performs them and
// provides the built-in tasks.
package tasks

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/openfroyo/installer/pkg/journal"
	"github.com/openfroyo/installer/pkg/platform"
	"github.com/openfroyo/installer/pkg/transports/local"
	"github.com/openfroyo/installer/pkg/variables"
	"github.com/openfroyo/installer/pkg/workflow"
)

// Task performs one step.
type Task interface {
	// Execute runs the task to completion. The step's configuration has
	// already been resolved and validated.
	Execute(ctx context.Context, tc *Context) error
}

// Context is the per-step view of a run.
type Context struct {
	Workflow *workflow.Workflow
	Stage    *workflow.Stage
	Job      *workflow.Job
	Step     *workflow.Step

	// Variables holds ad-hoc values set by earlier steps. It is shared by
	// every step of the run.
	Variables *variables.Map

	// Journal receives the reversible side effects of the step.
	Journal journal.Journal

	Platform platform.Info
	Runner   local.Runner

	// DryRun tasks must not change the machine.
	DryRun bool

	// Logger carries the stage, job and step fields.
	Logger zerolog.Logger
}

// SetVariable makes value available to later steps as {name}.
func (c *Context) SetVariable(name, value string) {
	c.Variables.Set(name, value)
	c.Logger.Debug().Str("variable", name).Msg("Context variable set")
}

// Record adds a reversible side effect to the journal.
func (c *Context) Record(kind journal.Kind, value string) {
	c.Journal.AddEntry(kind, value)
}
