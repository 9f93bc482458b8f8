package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/openfroyo/installer/pkg/errdefs"
	"github.com/openfroyo/installer/pkg/journal"
	"github.com/openfroyo/installer/pkg/tasks"
	"github.com/openfroyo/installer/pkg/telemetry"
	"github.com/openfroyo/installer/pkg/variables"
	"github.com/openfroyo/installer/pkg/workflow"
)

// runState is the mutable state shared by the executors during one run.
// Execution is sequential, so nothing here is locked.
type runState struct {
	id      string
	wf      *workflow.Workflow
	tag     workflow.Tag
	dryRun  bool
	journal journal.Journal
	logger  zerolog.Logger
	result  *RunResult

	// merged is the validated workflow variable set.
	merged *variables.Map

	// context holds variables set by tasks during the run.
	context *variables.Map

	// deferred names outputs that a dry run never produces.
	deferred []string
}

func (rs *runState) flush() error {
	if rs.dryRun {
		return nil
	}
	if err := rs.journal.Flush(); err != nil {
		return errdefs.NewJournalError("failed to flush uninstall journal", err)
	}
	return nil
}

// StageExecutor runs the jobs of a stage in order.
type StageExecutor struct {
	engine *Engine
	jobs   *JobExecutor
}

// Execute runs stage, or skips it when none of its steps is eligible.
func (s *StageExecutor) Execute(ctx context.Context, rs *runState, stage *workflow.Stage) (err error) {
	if !s.engine.hasEligibleStep(rs, stage) {
		skipped := 0
		for _, job := range stage.Jobs {
			skipped += len(job.Steps)
		}
		rs.result.Skipped += skipped
		for range skipped {
			s.engine.metrics.RecordStepSkipped(string(rs.tag))
		}
		rs.logger.Info().Str("stage", stage.Name).Msg("No eligible step, skipping stage")
		s.engine.event(ctx, rs, PhaseSteps, EventLevelInfo, fmt.Sprintf("stage %s skipped", stage.Name))
		return nil
	}

	ctx, span := s.engine.tracer.StartStageSpan(ctx, stage.Name)
	defer func() { telemetry.EndSpan(span, err) }()

	rs.logger.Info().Str("stage", stage.Name).Msg("Stage started")
	for _, job := range stage.Jobs {
		if err := s.jobs.Execute(ctx, rs, stage, job); err != nil {
			return err
		}
	}
	return nil
}

// JobExecutor runs the eligible steps of a job in order.
type JobExecutor struct {
	engine *Engine
	steps  *StepExecutor
}

// Execute runs every eligible step of job and stops at the first failure.
func (j *JobExecutor) Execute(ctx context.Context, rs *runState, stage *workflow.Stage, job *workflow.Job) (err error) {
	ctx, span := j.engine.tracer.StartJobSpan(ctx, job.Name)
	defer func() { telemetry.EndSpan(span, err) }()

	for _, step := range job.Steps {
		if !j.engine.eligible(rs, step) {
			rs.result.Skipped++
			j.engine.metrics.RecordStepSkipped(string(rs.tag))
			rs.logger.Debug().
				Str("stage", stage.Name).
				Str("job", job.Name).
				Str("step", step.Name).
				Str("os", string(step.Configuration.OS)).
				Msg("Step not eligible, skipping")
			continue
		}
		if err := j.steps.Execute(ctx, rs, stage, job, step); err != nil {
			return err
		}
	}
	return nil
}

// StepExecutor binds a step to its task and runs it.
type StepExecutor struct {
	engine *Engine
}

// Execute resolves the step's configuration against its own fields, the
// run's context variables and the workflow variables, re-validates it and
// runs the task. The journal is flushed whether the task succeeds or not.
func (s *StepExecutor) Execute(ctx context.Context, rs *runState, stage *workflow.Stage, job *workflow.Job, step *workflow.Step) (err error) {
	kind := step.Task.Kind()
	logger := rs.logger.With().
		Str("stage", stage.Name).
		Str("job", job.Name).
		Str("step", step.Name).
		Str("kind", kind).
		Logger()

	ctx, span := s.engine.tracer.StartStepSpan(ctx, step.Name, kind)
	defer func() { telemetry.EndSpan(span, err) }()

	task, err := s.engine.registry.TaskFor(step.Task)
	if err != nil {
		return errdefs.NewConfigurationError("cannot bind step to a task", err).WithStep(step.Name)
	}

	r := stepResolver(step.Task, rs.context, rs.merged, variables.Env(), variables.Deferred(rs.deferred...))
	if err := step.Task.Substitute(r); err != nil {
		return withStep(err, step.Name)
	}
	if err := step.Task.Validate(); err != nil {
		report := &errdefs.ValidationReport{}
		report.AddError(stepSource(stage, job, step), err)
		return withStep(report.Err(), step.Name)
	}

	tc := &tasks.Context{
		Workflow:  rs.wf,
		Stage:     stage,
		Job:       job,
		Step:      step,
		Variables: rs.context,
		Journal:   rs.journal,
		Platform:  s.engine.platform,
		Runner:    s.engine.runner,
		DryRun:    rs.dryRun,
		Logger:    logger,
	}

	step.Execution.Start(s.engine.now())
	logger.Info().Msg("Step started")

	execErr := task.Execute(ctx, tc)
	flushErr := rs.flush()

	now := s.engine.now()
	switch {
	case execErr != nil:
		step.Execution.Fail(now)
		s.finish(ctx, rs, stage, job, step, execErr, logger)
		taskErr := errdefs.NewTaskExecutionError("step failed", execErr).
			WithStep(step.Name).
			WithDetail("stage", stage.Name).
			WithDetail("job", job.Name)
		if flushErr != nil {
			return errors.Join(taskErr, withStep(flushErr, step.Name))
		}
		return taskErr
	case flushErr != nil:
		step.Execution.Fail(now)
		s.finish(ctx, rs, stage, job, step, flushErr, logger)
		return withStep(flushErr, step.Name)
	}

	step.Execution.Complete(now)
	s.finish(ctx, rs, stage, job, step, nil, logger)
	return nil
}

func (s *StepExecutor) finish(ctx context.Context, rs *runState, stage *workflow.Stage, job *workflow.Job, step *workflow.Step, stepErr error, logger zerolog.Logger) {
	res := StepResult{
		Stage:    stage.Name,
		Job:      job.Name,
		Step:     step.Name,
		Kind:     step.Task.Kind(),
		Status:   step.Execution.Status,
		Duration: step.Execution.Duration(),
	}
	if stepErr != nil {
		res.Error = stepErr.Error()
		logger.Error().Err(stepErr).Dur("duration", res.Duration).Msg("Step failed")
	} else {
		logger.Info().Dur("duration", res.Duration).Msg("Step completed")
	}
	rs.result.Steps = append(rs.result.Steps, res)

	s.engine.metrics.RecordStep(res.Kind, string(res.Status), res.Duration)

	record := &StepRecord{
		RunID:     rs.id,
		Stage:     stage.Name,
		Job:       job.Name,
		Step:      step.Name,
		Kind:      res.Kind,
		Status:    res.Status,
		StartedAt: step.Execution.StartedAt,
		StoppedAt: step.Execution.StoppedAt,
		Error:     res.Error,
	}
	if err := s.engine.recorder.StepFinished(ctx, record); err != nil {
		logger.Warn().Err(err).Msg("Failed to record step")
	}
}

// withStep attaches the step name to an InstallError that lacks one.
func withStep(err error, step string) error {
	var ie *errdefs.InstallError
	if errors.As(err, &ie) && ie.Step == "" {
		ie.Step = step
	}
	return err
}
