package workflow

import (
	"errors"
	"fmt"
	"slices"

	"github.com/openfroyo/installer/pkg/dependencies"
	"github.com/openfroyo/installer/pkg/errdefs"
	"github.com/openfroyo/installer/pkg/platform"
	"github.com/openfroyo/installer/pkg/variables"
)

// Builder assembles a Workflow in order: stage, then its jobs, then their
// steps. Mistakes are collected and reported together by Build.
type Builder struct {
	platform platform.Info
	wf       *Workflow
	stage    *Stage
	job      *Job
	errs     []error
	built    bool
}

// StageOption customizes a stage.
type StageOption func(*Stage)

// JobOption customizes a job.
type JobOption func(*Job)

// StepOption customizes a step.
type StepOption func(*stepSpec)

type stepSpec struct {
	config *StepConfiguration
	os     *platform.OS
	tags   []Tag
}

// WithStageDefaults sets the step configuration inherited by the stage's jobs.
func WithStageDefaults(c StepConfiguration) StageOption {
	return func(s *Stage) {
		cfg := c.clone()
		s.DefaultStepConfiguration = &cfg
	}
}

// WithJobDefaults sets the step configuration inherited by the job's steps.
func WithJobDefaults(c StepConfiguration) JobOption {
	return func(j *Job) {
		cfg := c.clone()
		j.DefaultStepConfiguration = &cfg
	}
}

// WithStepConfiguration replaces the inherited configuration.
func WithStepConfiguration(c StepConfiguration) StepOption {
	return func(s *stepSpec) {
		cfg := c.clone()
		s.config = &cfg
	}
}

// WithOS overrides only the OS of the inherited configuration.
func WithOS(os platform.OS) StepOption {
	return func(s *stepSpec) { s.os = &os }
}

// WithTags overrides only the tags of the inherited configuration.
func WithTags(tags ...Tag) StepOption {
	return func(s *stepSpec) { s.tags = tags }
}

// NewBuilder starts a workflow for the given platform. The platform supplies
// the fallback step configuration and narrows "any" to a concrete OS.
func NewBuilder(name string, p platform.Info) *Builder {
	return &Builder{
		platform: p,
		wf: &Workflow{
			Name:      name,
			Variables: variables.NewMap(nil),
		},
	}
}

// AddStage appends a stage and makes it current.
func (b *Builder) AddStage(name string, opts ...StageOption) *Builder {
	if name == "" {
		b.fail(fmt.Errorf("stage %d: name is required", len(b.wf.Stages)+1))
	}
	if name == DefaultName && slices.ContainsFunc(b.wf.Stages, func(s *Stage) bool { return s.Name == DefaultName }) {
		b.fail(fmt.Errorf("only one stage may be named %q", DefaultName))
	}

	stage := &Stage{Name: name}
	for _, opt := range opts {
		opt(stage)
	}
	b.wf.Stages = append(b.wf.Stages, stage)
	b.stage = stage
	b.job = nil
	return b
}

// AddJob appends a job to the current stage, creating the default stage
// when none exists yet.
func (b *Builder) AddJob(name string, opts ...JobOption) *Builder {
	if b.stage == nil {
		b.AddStage(DefaultName)
	}
	if name == "" {
		b.fail(fmt.Errorf("stage %q job %d: name is required", b.stage.Name, len(b.stage.Jobs)+1))
	}
	if name == DefaultName && slices.ContainsFunc(b.stage.Jobs, func(j *Job) bool { return j.Name == DefaultName }) {
		b.fail(fmt.Errorf("stage %q: only one job may be named %q", b.stage.Name, DefaultName))
	}

	job := &Job{Name: name}
	if b.stage.DefaultStepConfiguration != nil {
		cfg := b.stage.DefaultStepConfiguration.clone()
		job.DefaultStepConfiguration = &cfg
	}
	for _, opt := range opts {
		opt(job)
	}
	b.stage.Jobs = append(b.stage.Jobs, job)
	b.job = job
	return b
}

// AddStep appends a step to the current job, creating the default job when
// none exists yet.
func (b *Builder) AddStep(name string, task TaskConfiguration, opts ...StepOption) *Builder {
	if b.job == nil {
		b.AddJob(DefaultName)
	}
	if name == "" {
		b.fail(fmt.Errorf("job %q step %d: name is required", b.job.Name, len(b.job.Steps)+1))
	}
	if task == nil {
		b.fail(fmt.Errorf("step %q: task is required", name))
	}

	var spec stepSpec
	for _, opt := range opts {
		opt(&spec)
	}

	var cfg StepConfiguration
	switch {
	case spec.config != nil:
		cfg = *spec.config
	case b.job.DefaultStepConfiguration != nil:
		cfg = b.job.DefaultStepConfiguration.clone()
	default:
		cfg = DefaultStepConfiguration(b.platform)
	}
	if spec.os != nil {
		cfg.OS = *spec.os
	}
	if spec.tags != nil {
		cfg.Tags = slices.Clone(spec.tags)
	}
	if cfg.OS == platform.Any || cfg.OS == "" {
		cfg.OS = b.platform.OS
	}

	if err := cfg.OS.Validate(); err != nil {
		b.fail(fmt.Errorf("step %q: %w", name, err))
	}
	for _, tag := range cfg.Tags {
		if err := tag.Validate(); err != nil {
			b.fail(fmt.Errorf("step %q: %w", name, err))
		}
	}

	b.job.Steps = append(b.job.Steps, &Step{
		Name:          name,
		Task:          task,
		Configuration: cfg,
		Execution:     NewExecutionInformation(),
	})
	return b
}

// AddDependency appends a dependency. Order is preserved.
func (b *Builder) AddDependency(dep dependencies.Dependency) *Builder {
	if dep == nil {
		b.fail(errors.New("dependency is nil"))
		return b
	}
	b.wf.Dependencies = append(b.wf.Dependencies, dep)
	return b
}

// SetVariable defines a workflow variable.
func (b *Builder) SetVariable(name, value string) *Builder {
	if name == "" {
		b.fail(errors.New("variable name is required"))
		return b
	}
	b.wf.Variables.Set(name, value)
	return b
}

// AddConfiguration adds a configuration block. Block names are unique.
func (b *Builder) AddConfiguration(c Configuration) *Builder {
	if c == nil {
		b.fail(errors.New("configuration is nil"))
		return b
	}
	if _, exists := b.wf.Configuration(c.Name()); exists {
		b.fail(fmt.Errorf("configuration %q defined twice", c.Name()))
		return b
	}
	b.wf.Configurations = append(b.wf.Configurations, c)
	return b
}

// Build returns the workflow, or every construction error at once.
func (b *Builder) Build() (*Workflow, error) {
	if b.built {
		return nil, errdefs.NewConfigurationError("builder already used", nil)
	}
	if b.wf.Name == "" {
		b.fail(errors.New("workflow name is required"))
	}
	if len(b.errs) > 0 {
		return nil, errdefs.NewConfigurationError(
			fmt.Sprintf("invalid workflow %q", b.wf.Name), errors.Join(b.errs...))
	}
	b.built = true
	return b.wf, nil
}

func (b *Builder) fail(err error) {
	b.errs = append(b.errs, err)
}
