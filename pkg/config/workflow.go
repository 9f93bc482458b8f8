package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/openfroyo/installer/pkg/dependencies"
	"github.com/openfroyo/installer/pkg/errdefs"
	"github.com/openfroyo/installer/pkg/platform"
	"github.com/openfroyo/installer/pkg/tasks"
	"github.com/openfroyo/installer/pkg/workflow"
)

// WorkflowFile is the YAML form of a workflow.
type WorkflowFile struct {
	Name         string                    `yaml:"name" validate:"required"`
	Variables    map[string]string         `yaml:"variables"`
	Application  *workflow.ApplicationInfo `yaml:"application" validate:"-"`
	Policy       *workflow.InstallPolicy   `yaml:"policy" validate:"-"`
	Dependencies []DependencySpec          `yaml:"dependencies" validate:"dive"`
	Stages       []StageSpec               `yaml:"stages" validate:"dive"`

	// Steps is shorthand for a single default stage and job.
	Steps []StepSpec `yaml:"steps" validate:"dive"`
}

// StepDefaults is a partial step configuration. Empty fields are inherited.
type StepDefaults struct {
	OS   string   `yaml:"os"`
	Tags []string `yaml:"tags"`
}

// StageSpec is a stage in a workflow file.
type StageSpec struct {
	Name     string        `yaml:"name" validate:"required"`
	Defaults *StepDefaults `yaml:"defaults"`
	Jobs     []JobSpec     `yaml:"jobs" validate:"dive"`

	// Steps is shorthand for a single default job.
	Steps []StepSpec `yaml:"steps" validate:"dive"`
}

// JobSpec is a job in a workflow file.
type JobSpec struct {
	Name     string        `yaml:"name" validate:"required"`
	Defaults *StepDefaults `yaml:"defaults"`
	Steps    []StepSpec    `yaml:"steps" validate:"dive"`
}

// StepSpec is a step in a workflow file. With holds the task block, decoded
// by the registry according to Task.
type StepSpec struct {
	Name string    `yaml:"name" validate:"required"`
	Task string    `yaml:"task" validate:"required"`
	OS   string    `yaml:"os"`
	Tags []string  `yaml:"tags"`
	With yaml.Node `yaml:"with" validate:"-"`
}

// DependencyType selects the concrete dependency a spec decodes to.
type DependencyType string

const (
	DependencyRuntime DependencyType = "runtime"
	DependencyTool    DependencyType = "tool"
)

// DependencySpec is a dependency in a workflow file.
type DependencySpec struct {
	Name  string         `yaml:"name" validate:"required"`
	Type  DependencyType `yaml:"type" validate:"required,oneof=runtime tool"`
	Range string         `yaml:"range" validate:"required"`

	// Runtime dependencies
	Flavor    dependencies.Flavor             `yaml:"flavor"`
	Downloads []dependencies.PlatformDownload `yaml:"downloads"`

	// Tool dependencies
	Command        string                    `yaml:"command" validate:"required_if=Type tool"`
	VersionArgs    []string                  `yaml:"version_args"`
	VersionPattern string                    `yaml:"version_pattern"`
	Sources        []dependencies.ToolSource `yaml:"sources"`
}

// LoadWorkflow reads and builds the workflow at path.
func LoadWorkflow(path string, registry *tasks.Registry, p platform.Info) (*workflow.Workflow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errdefs.NewConfigurationError("failed to read workflow", err).WithDetail("path", path)
	}
	b, err := ParseWorkflow(data, registry, p)
	if err != nil {
		return nil, err
	}
	return b.Build()
}

// ParseWorkflow decodes a workflow file into a builder, so callers can add
// to it before building.
func ParseWorkflow(data []byte, registry *tasks.Registry, p platform.Info) (*workflow.Builder, error) {
	var file WorkflowFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, errdefs.NewConfigurationError("failed to parse workflow", err)
	}
	if err := validate.Struct(&file); err != nil {
		return nil, errdefs.NewConfigurationError("invalid workflow file", err)
	}
	if len(file.Steps) > 0 && len(file.Stages) > 0 {
		return nil, errdefs.NewConfigurationError("a workflow declares either steps or stages, not both", nil)
	}

	l := &loader{registry: registry, platform: p, b: workflow.NewBuilder(file.Name, p)}

	names := make([]string, 0, len(file.Variables))
	for name := range file.Variables {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		l.b.SetVariable(name, file.Variables[name])
	}

	if file.Application != nil {
		l.b.AddConfiguration(file.Application)
	}
	if file.Policy != nil {
		l.b.AddConfiguration(file.Policy)
	}

	for i, spec := range file.Dependencies {
		dep, err := spec.Dependency()
		if err != nil {
			l.fail(fmt.Errorf("dependency %d: %w", i+1, err))
			continue
		}
		l.b.AddDependency(dep)
	}

	if len(file.Steps) > 0 {
		l.stage(StageSpec{Name: workflow.DefaultName, Steps: file.Steps})
	}
	for _, stage := range file.Stages {
		l.stage(stage)
	}

	if len(l.errs) > 0 {
		return nil, errdefs.NewConfigurationError(fmt.Sprintf("invalid workflow %q", file.Name), errors.Join(l.errs...))
	}
	return l.b, nil
}

type loader struct {
	registry *tasks.Registry
	platform platform.Info
	b        *workflow.Builder
	errs     []error
}

func (l *loader) fail(err error) {
	l.errs = append(l.errs, err)
}

func (l *loader) stage(spec StageSpec) {
	parent := workflow.DefaultStepConfiguration(l.platform)
	defaults, err := l.defaults(spec.Defaults, parent)
	if err != nil {
		l.fail(fmt.Errorf("stage %q: %w", spec.Name, err))
	}

	var opts []workflow.StageOption
	if spec.Defaults != nil {
		opts = append(opts, workflow.WithStageDefaults(defaults))
	}
	l.b.AddStage(spec.Name, opts...)

	if len(spec.Steps) > 0 {
		if len(spec.Jobs) > 0 {
			l.fail(fmt.Errorf("stage %q declares either steps or jobs, not both", spec.Name))
			return
		}
		spec.Jobs = []JobSpec{{Name: workflow.DefaultName, Steps: spec.Steps}}
	}

	for _, job := range spec.Jobs {
		jobDefaults, err := l.defaults(job.Defaults, defaults)
		if err != nil {
			l.fail(fmt.Errorf("job %q: %w", job.Name, err))
		}
		var jobOpts []workflow.JobOption
		if job.Defaults != nil {
			jobOpts = append(jobOpts, workflow.WithJobDefaults(jobDefaults))
		}
		l.b.AddJob(job.Name, jobOpts...)

		for _, step := range job.Steps {
			l.step(step)
		}
	}
}

func (l *loader) step(spec StepSpec) {
	var with *yaml.Node
	if spec.With.Kind != 0 {
		with = &spec.With
	}
	task, err := l.registry.Decode(spec.Task, with)
	if err != nil {
		l.fail(fmt.Errorf("step %q: %w", spec.Name, err))
		return
	}

	var opts []workflow.StepOption
	if spec.OS != "" {
		target, err := platform.ParseOS(spec.OS)
		if err != nil {
			l.fail(fmt.Errorf("step %q: %w", spec.Name, err))
			return
		}
		opts = append(opts, workflow.WithOS(target))
	}
	if len(spec.Tags) > 0 {
		tags, err := parseTags(spec.Tags)
		if err != nil {
			l.fail(fmt.Errorf("step %q: %w", spec.Name, err))
			return
		}
		opts = append(opts, workflow.WithTags(tags...))
	}
	l.b.AddStep(spec.Name, task, opts...)
}

// defaults overlays d on parent.
func (l *loader) defaults(d *StepDefaults, parent workflow.StepConfiguration) (workflow.StepConfiguration, error) {
	cfg := workflow.StepConfiguration{OS: parent.OS, Tags: slices.Clone(parent.Tags)}
	if d == nil {
		return cfg, nil
	}
	if d.OS != "" {
		target, err := platform.ParseOS(d.OS)
		if err != nil {
			return cfg, err
		}
		cfg.OS = target
	}
	if len(d.Tags) > 0 {
		tags, err := parseTags(d.Tags)
		if err != nil {
			return cfg, err
		}
		cfg.Tags = tags
	}
	return cfg, nil
}

func parseTags(names []string) ([]workflow.Tag, error) {
	tags := make([]workflow.Tag, 0, len(names))
	for _, name := range names {
		tag, err := workflow.ParseTag(name)
		if err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	return tags, nil
}

// Dependency builds the concrete dependency the spec describes.
func (d *DependencySpec) Dependency() (dependencies.Dependency, error) {
	switch d.Type {
	case DependencyRuntime:
		flavor := d.Flavor
		if flavor == "" {
			flavor = dependencies.FlavorRuntime
		}
		return dependencies.NewRuntimeDependency(d.Name, d.Range, flavor, d.Downloads...)

	case DependencyTool:
		var opts []dependencies.ToolOption
		if len(d.VersionArgs) > 0 {
			opts = append(opts, dependencies.WithVersionArgs(d.VersionArgs...))
		}
		if d.VersionPattern != "" {
			re, err := regexp.Compile(d.VersionPattern)
			if err != nil {
				return nil, fmt.Errorf("invalid version pattern for %s: %w", d.Name, err)
			}
			if re.NumSubexp() < 1 {
				return nil, fmt.Errorf("version pattern for %s needs a capture group", d.Name)
			}
			opts = append(opts, dependencies.WithVersionPattern(re))
		}
		if len(d.Sources) > 0 {
			opts = append(opts, dependencies.WithSources(d.Sources...))
		}
		return dependencies.NewToolDependency(d.Name, d.Range, d.Command, opts...)

	default:
		return nil, fmt.Errorf("unknown dependency type %q", d.Type)
	}
}
