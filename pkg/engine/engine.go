package engine

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/openfroyo/installer/pkg/dependencies"
	"github.com/openfroyo/installer/pkg/errdefs"
	"github.com/openfroyo/installer/pkg/journal"
	"github.com/openfroyo/installer/pkg/platform"
	"github.com/openfroyo/installer/pkg/tasks"
	"github.com/openfroyo/installer/pkg/telemetry"
	"github.com/openfroyo/installer/pkg/transports/local"
	"github.com/openfroyo/installer/pkg/variables"
	"github.com/openfroyo/installer/pkg/workflow"
)

// Engine runs workflows on the local machine.
type Engine struct {
	registry   *tasks.Registry
	platform   platform.Info
	runner     local.Runner
	downloader local.Downloader
	recorder   Recorder
	tracer     *telemetry.Tracer
	metrics    *telemetry.Metrics
	logger     zerolog.Logger
	now        func() time.Time
	newID      func() string
}

// Option configures an Engine.
type Option func(*Engine)

// WithRunner replaces the shell runner used by tasks and dependency checks.
func WithRunner(r local.Runner) Option {
	return func(e *Engine) { e.runner = r }
}

// WithDownloader replaces the downloader used by acquisitions.
func WithDownloader(d local.Downloader) Option {
	return func(e *Engine) { e.downloader = d }
}

// WithRecorder stores run history through r.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// WithTracer emits spans through t.
func WithTracer(t *telemetry.Tracer) Option {
	return func(e *Engine) { e.tracer = t }
}

// WithMetrics records run metrics into m.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithLogger replaces the global zerolog logger.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithIDGenerator replaces the run ID generator.
func WithIDGenerator(newID func() string) Option {
	return func(e *Engine) { e.newID = newID }
}

// New creates an engine. Without options it runs commands through the
// system shell, downloads over HTTP and keeps no history.
func New(registry *tasks.Registry, p platform.Info, opts ...Option) *Engine {
	e := &Engine{
		registry: registry,
		platform: p,
		recorder: nopRecorder{},
		logger:   log.Logger,
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.runner == nil {
		e.runner = local.NewShellRunner()
	}
	if e.downloader == nil {
		e.downloader = local.NewHTTPDownloader("", nil)
	}
	return e
}

// RunOptions select what a run does.
type RunOptions struct {
	// Tag selects the eligible steps.
	Tag workflow.Tag

	// DryRun validates and walks the workflow without changing the machine.
	DryRun bool

	// Journal records the run's reversible side effects. Uninstall runs
	// pass a read-only journal.
	Journal journal.Journal
}

// Validate resolves and validates wf without running anything and returns
// the merged workflow variables.
func (e *Engine) Validate(wf *workflow.Workflow) (*variables.Map, error) {
	return NewValidator(e.registry, e.platform).Validate(wf)
}

// Run executes wf: validation, then dependency installation when the tag is
// install, then every eligible step in order. The first failure stops the
// run; nothing is retried or rolled back.
func (e *Engine) Run(ctx context.Context, wf *workflow.Workflow, opts RunOptions) (*RunResult, error) {
	if err := opts.Tag.Validate(); err != nil {
		return nil, errdefs.NewConfigurationError("invalid run tag", err)
	}
	if opts.Journal == nil {
		return nil, errdefs.NewConfigurationError("a run needs an uninstall journal", nil)
	}

	id := e.newID()
	rs := &runState{
		id:      id,
		wf:      wf,
		tag:     opts.Tag,
		dryRun:  opts.DryRun,
		journal: opts.Journal,
		context: variables.NewMap(nil),
		logger: e.logger.With().
			Str("run_id", id).
			Str("workflow", wf.Name).
			Str("tag", string(opts.Tag)).
			Bool("dry_run", opts.DryRun).
			Logger(),
		result: &RunResult{
			RunID:     id,
			Workflow:  wf.Name,
			Tag:       opts.Tag,
			DryRun:    opts.DryRun,
			Status:    RunStatusRunning,
			StartedAt: e.now(),
		},
	}
	if opts.DryRun {
		rs.deferred = declaredOutputs(wf)
	}

	ctx, span := e.tracer.StartRunSpan(ctx, id, wf.Name, string(opts.Tag), opts.DryRun)
	e.metrics.RecordRunStarted(string(opts.Tag))

	record := &RunRecord{
		ID:        id,
		Workflow:  wf.Name,
		Tag:       opts.Tag,
		DryRun:    opts.DryRun,
		Platform:  e.platform.String(),
		Status:    RunStatusRunning,
		StartedAt: rs.result.StartedAt,
	}
	if err := e.recorder.RunStarted(ctx, record); err != nil {
		rs.logger.Warn().Err(err).Msg("Failed to record run start")
	}
	rs.logger.Info().
		Int("steps", wf.StepCount()).
		Str("platform", e.platform.String()).
		Str("trace_id", telemetry.TraceID(ctx)).
		Msg("Run started")

	err := e.execute(ctx, rs)

	result := rs.result
	result.FinishedAt = e.now()
	result.Status = RunStatusSucceeded
	if err != nil {
		result.Status = RunStatusFailed
	}

	telemetry.EndSpan(span, err)
	e.metrics.RecordRunCompleted(string(opts.Tag), string(result.Status), result.Duration())
	for _, kind := range journal.Kinds {
		e.metrics.SetJournalEntries(string(kind), len(opts.Journal.ReadEntries(kind)))
	}

	record.Status = result.Status
	record.FinishedAt = &result.FinishedAt
	if err != nil {
		record.Error = err.Error()
	}
	if recErr := e.recorder.RunFinished(ctx, record); recErr != nil {
		rs.logger.Warn().Err(recErr).Msg("Failed to record run result")
	}

	if err != nil {
		rs.logger.Error().Err(err).Str("phase", string(result.Phase)).Msg("Run failed")
	} else {
		rs.logger.Info().
			Int("executed", len(result.Steps)).
			Int("skipped", result.Skipped).
			Dur("duration", result.Duration()).
			Msg("Run completed")
	}
	return result, err
}

func (e *Engine) execute(ctx context.Context, rs *runState) error {
	rs.result.Phase = PhaseValidation
	merged, err := e.Validate(rs.wf)
	if err != nil {
		return err
	}
	rs.merged = merged

	policy, _ := rs.wf.Configuration("policy")
	installPolicy, _ := policy.(*workflow.InstallPolicy)
	if installPolicy != nil && installPolicy.RequireAdministrator && !e.platform.Elevated {
		return errdefs.NewConfigurationError("the install policy requires administrator rights", nil).
			WithDetail("platform", e.platform.String())
	}

	if rs.tag == workflow.TagInstall && len(rs.wf.Dependencies) > 0 {
		rs.result.Phase = PhaseDependencies
		if installPolicy != nil && installPolicy.SkipDependencies {
			rs.logger.Info().Msg("Dependency installation disabled by the install policy")
		} else {
			installer := &DependencyInstaller{
				engine: e,
				services: dependencies.Services{
					Platform:   e.platform,
					Runner:     e.runner,
					Downloader: e.downloader,
				},
			}
			if err := installer.Install(ctx, rs, rs.wf.Dependencies); err != nil {
				return err
			}
		}
	}

	rs.result.Phase = PhaseSteps
	stages := &StageExecutor{
		engine: e,
		jobs:   &JobExecutor{engine: e, steps: &StepExecutor{engine: e}},
	}
	for _, stage := range rs.wf.Stages {
		if err := stages.Execute(ctx, rs, stage); err != nil {
			return err
		}
	}
	return nil
}

// eligible is the step filter: the step's OS must be the current OS and its
// tags must include the run's tag.
func (e *Engine) eligible(rs *runState, step *workflow.Step) bool {
	return step.Configuration.Matches(e.platform.OS, rs.tag)
}

func (e *Engine) hasEligibleStep(rs *runState, stage *workflow.Stage) bool {
	for _, job := range stage.Jobs {
		for _, step := range job.Steps {
			if e.eligible(rs, step) {
				return true
			}
		}
	}
	return false
}

func (e *Engine) event(ctx context.Context, rs *runState, phase Phase, level EventLevel, message string) {
	ev := &EventRecord{
		RunID:     rs.id,
		Phase:     phase,
		Level:     level,
		Message:   message,
		Timestamp: e.now(),
	}
	if err := e.recorder.Event(ctx, ev); err != nil {
		rs.logger.Warn().Err(err).Msg("Failed to record event")
	}
}

func declaredOutputs(wf *workflow.Workflow) []string {
	var names []string
	for step := range wf.EnumerateSteps() {
		if od, ok := step.Task.(workflow.OutputDeclarer); ok {
			names = append(names, od.OutputVariables()...)
		}
	}
	return names
}
