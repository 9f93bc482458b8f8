package engine

import (
	"fmt"

	"github.com/openfroyo/installer/pkg/errdefs"
	"github.com/openfroyo/installer/pkg/platform"
	"github.com/openfroyo/installer/pkg/tasks"
	"github.com/openfroyo/installer/pkg/variables"
	"github.com/openfroyo/installer/pkg/workflow"
)

// Validator checks a whole workflow before anything runs.
type Validator struct {
	registry *tasks.Registry
	platform platform.Info
}

// NewValidator creates a validator for the given platform.
func NewValidator(registry *tasks.Registry, p platform.Info) *Validator {
	return &Validator{registry: registry, platform: p}
}

// Validate resolves and validates every configuration block and every step,
// collecting all failures into one report. Configuration blocks are rewritten
// in place. Step configurations are resolved on clones, because outputs of
// earlier steps only exist at run time; such placeholders are kept verbatim.
//
// The returned map is the merged workflow variable set used by the run.
func (v *Validator) Validate(wf *workflow.Workflow) (*variables.Map, error) {
	report := &errdefs.ValidationReport{}

	base := wf.ConfigurationResolver(v.platform)
	for _, cfg := range wf.Configurations {
		if err := cfg.Substitute(base); err != nil {
			report.AddError(cfg.Name(), err)
			continue
		}
		report.AddError(cfg.Name(), cfg.Validate())
	}

	// Recomputed so block variables carry their substituted values.
	merged := wf.ExtractAllVariables(v.platform)

	var outputs []string
	for _, stage := range wf.Stages {
		for _, job := range stage.Jobs {
			for _, step := range job.Steps {
				source := stepSource(stage, job, step)

				if !v.registry.Has(step.Task.Kind()) {
					report.Add(source, "", fmt.Sprintf("no task registered for kind %q", step.Task.Kind()))
				}
				if !step.Configuration.OS.IsConcrete() {
					report.Add(source, "os", fmt.Sprintf("%q is not a concrete operating system", step.Configuration.OS))
				}

				clone := step.Task.Clone()
				r := stepResolver(clone, merged, variables.Env(), variables.Deferred(outputs...))
				if err := clone.Substitute(r); err != nil {
					report.AddError(source, err)
				} else {
					report.AddError(source, clone.Validate())
				}

				if od, ok := step.Task.(workflow.OutputDeclarer); ok {
					outputs = append(outputs, od.OutputVariables()...)
				}
			}
		}
	}

	return merged, report.Err()
}

// stepResolver consults the task's own fields, then the given sources.
func stepResolver(cfg workflow.TaskConfiguration, sources ...variables.Lookup) *variables.Resolver {
	r := variables.NewResolver(sources...)
	if vs, ok := cfg.(workflow.VariableSource); ok {
		r = r.With(variables.NewMap(vs.Variables()))
	}
	return r
}

func stepSource(stage *workflow.Stage, job *workflow.Job, step *workflow.Step) string {
	return fmt.Sprintf("%s/%s/%s", stage.Name, job.Name, step.Name)
}
