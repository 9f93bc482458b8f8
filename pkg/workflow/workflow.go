// Package workflow defines the install program: a workflow of stages, each
// holding jobs, each holding steps bound to a task configuration.
package workflow

import (
	"iter"
	"slices"
	"strings"

	"github.com/openfroyo/installer/pkg/dependencies"
	"github.com/openfroyo/installer/pkg/platform"
	"github.com/openfroyo/installer/pkg/variables"
)

// DefaultName is the reserved name of the implicit stage and job.
const DefaultName = "default"

// TaskConfiguration is the typed input of one task kind.
type TaskConfiguration interface {
	// Kind names the task that consumes the configuration.
	Kind() string

	// Validate checks the configuration's own rules. It is run after
	// variable substitution since only then are values final.
	Validate() error

	// Substitute resolves placeholders in every string field in place.
	Substitute(r *variables.Resolver) error

	// Clone returns an independent copy.
	Clone() TaskConfiguration
}

// OutputDeclarer is implemented by configurations whose task sets context
// variables for later steps.
type OutputDeclarer interface {
	OutputVariables() []string
}

// VariableSource is implemented by configurations that expose their own
// fields as variables to their placeholders.
type VariableSource interface {
	Variables() map[string]string
}

// StepConfiguration gates a step by operating system and tag.
type StepConfiguration struct {
	OS   platform.OS `json:"os" yaml:"os"`
	Tags []Tag       `json:"tags" yaml:"tags"`
}

// DefaultStepConfiguration targets the current OS for install and uninstall.
func DefaultStepConfiguration(p platform.Info) StepConfiguration {
	return StepConfiguration{OS: p.OS, Tags: []Tag{TagInstall, TagUninstall}}
}

// HasTag reports whether tag is in the set.
func (c StepConfiguration) HasTag(tag Tag) bool {
	return slices.Contains(c.Tags, tag)
}

// Matches is the eligibility predicate: the OS must equal os and the tag
// set must contain tag.
func (c StepConfiguration) Matches(os platform.OS, tag Tag) bool {
	return c.OS == os && c.HasTag(tag)
}

func (c StepConfiguration) clone() StepConfiguration {
	return StepConfiguration{OS: c.OS, Tags: slices.Clone(c.Tags)}
}

// Step pairs a task configuration with its gate.
type Step struct {
	Name          string
	Task          TaskConfiguration
	Configuration StepConfiguration
	Execution     ExecutionInformation
}

// Job is an ordered list of steps.
type Job struct {
	Name  string
	Steps []*Step

	// DefaultStepConfiguration is inherited by steps without their own.
	DefaultStepConfiguration *StepConfiguration
}

// Stage is an ordered list of jobs.
type Stage struct {
	Name string
	Jobs []*Job

	// DefaultStepConfiguration is inherited by jobs without their own.
	DefaultStepConfiguration *StepConfiguration
}

// Workflow is the root of an install program.
type Workflow struct {
	Name           string
	Stages         []*Stage
	Dependencies   []dependencies.Dependency
	Variables      *variables.Map
	Configurations []Configuration
}

// Reverse reverses the order of stages, of jobs within every stage and of
// steps within every job. Step contents are untouched.
func (w *Workflow) Reverse() {
	slices.Reverse(w.Stages)
	for _, stage := range w.Stages {
		slices.Reverse(stage.Jobs)
		for _, job := range stage.Jobs {
			slices.Reverse(job.Steps)
		}
	}
}

// ExtractAllVariables merges platform variables, configuration block
// variables and workflow variables, later layers overwriting earlier ones.
func (w *Workflow) ExtractAllVariables(p platform.Info) *variables.Map {
	merged := variables.NewMap(p.Variables())
	for _, cfg := range w.Configurations {
		merged.MergeValues(cfg.Variables())
	}
	if w.Variables != nil {
		merged.Merge(w.Variables)
	}
	return merged
}

// ConfigurationResolver resolves placeholders in configuration blocks
// against the merged variables: workflow variables, then the variables the
// blocks contribute, then platform variables and the environment. Block
// values are resolved on lookup, so one block may refer to another. Names in
// a reference cycle stay unresolved.
func (w *Workflow) ConfigurationResolver(p platform.Info) *variables.Resolver {
	blocks := variables.NewMap(nil)
	for _, cfg := range w.Configurations {
		blocks.MergeValues(cfg.Variables())
	}
	l := &blockLookup{blocks: blocks, active: make(map[string]bool)}
	l.resolver = variables.NewResolver(w.Variables, l, variables.NewMap(p.Variables()), variables.Env())
	return l.resolver
}

// blockLookup serves configuration block variables with their own
// placeholders resolved.
type blockLookup struct {
	blocks   *variables.Map
	resolver *variables.Resolver
	active   map[string]bool
}

func (l *blockLookup) Lookup(name string) (string, bool) {
	raw, ok := l.blocks.Get(name)
	if !ok {
		return "", false
	}
	key := strings.ToLower(name)
	if l.active[key] {
		return "", false
	}
	l.active[key] = true
	defer delete(l.active, key)

	value, err := l.resolver.String(raw)
	if err != nil {
		return "", false
	}
	return value, true
}

// EnumerateSteps yields every step in execution order. Each call walks the
// current tree again.
func (w *Workflow) EnumerateSteps() iter.Seq[*Step] {
	return func(yield func(*Step) bool) {
		for _, stage := range w.Stages {
			for _, job := range stage.Jobs {
				for _, step := range job.Steps {
					if !yield(step) {
						return
					}
				}
			}
		}
	}
}

// Configuration returns the first configuration block with the given name.
func (w *Workflow) Configuration(name string) (Configuration, bool) {
	for _, c := range w.Configurations {
		if c.Name() == name {
			return c, true
		}
	}
	return nil, false
}

// StepCount returns the number of steps across all stages.
func (w *Workflow) StepCount() int {
	n := 0
	for range w.EnumerateSteps() {
		n++
	}
	return n
}
