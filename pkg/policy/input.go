package policy

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/openfroyo/installer/pkg/platform"
	"github.com/openfroyo/installer/pkg/workflow"
)

// NewInput describes wf for a run with the given tag on p. Only steps that
// would run are included. Task and configuration blocks appear under their
// YAML field names, with placeholders unresolved.
func NewInput(wf *workflow.Workflow, p platform.Info, tag workflow.Tag, dryRun bool) (*Input, error) {
	in := &Input{
		Workflow: WorkflowInput{
			Name:           wf.Name,
			Variables:      wf.ExtractAllVariables(p).Values(),
			Steps:          []StepInput{},
			Dependencies:   []DependencyInput{},
			Configurations: make(map[string]map[string]any, len(wf.Configurations)),
		},
		Platform: PlatformInput{
			OS:           string(p.OS),
			Arch:         p.Arch,
			Distribution: p.Distribution,
			Version:      p.Version,
			Elevated:     p.Elevated,
		},
		Tag:    string(tag),
		DryRun: dryRun,
	}

	for _, stage := range wf.Stages {
		for _, job := range stage.Jobs {
			for _, step := range job.Steps {
				if !step.Configuration.Matches(p.OS, tag) {
					continue
				}
				cfg, err := toMap(step.Task)
				if err != nil {
					return nil, fmt.Errorf("step %s: %w", step.Name, err)
				}
				tags := make([]string, len(step.Configuration.Tags))
				for i, t := range step.Configuration.Tags {
					tags[i] = string(t)
				}
				in.Workflow.Steps = append(in.Workflow.Steps, StepInput{
					Stage:  stage.Name,
					Job:    job.Name,
					Name:   step.Name,
					Kind:   step.Task.Kind(),
					OS:     string(step.Configuration.OS),
					Tags:   tags,
					Config: cfg,
				})
			}
		}
	}

	for _, dep := range wf.Dependencies {
		in.Workflow.Dependencies = append(in.Workflow.Dependencies, DependencyInput{Name: dep.Name(), Range: dep.Range()})
	}

	for _, cfg := range wf.Configurations {
		m, err := toMap(cfg)
		if err != nil {
			return nil, fmt.Errorf("configuration %s: %w", cfg.Name(), err)
		}
		in.Workflow.Configurations[cfg.Name()] = m
	}

	return in, nil
}

// toMap turns a YAML-tagged struct into a generic map.
func toMap(v any) (map[string]any, error) {
	data, err := yaml.Marshal(v)
	if err != nil {
		return nil, err
	}
	m := map[string]any{}
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}
