package tasks

import (
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/openfroyo/installer/pkg/errdefs"
	"github.com/openfroyo/installer/pkg/workflow"
)

// Constructor builds the task for a configuration.
type Constructor func(cfg workflow.TaskConfiguration) (Task, error)

// Decoder reads a configuration of one kind from YAML.
type Decoder func(node *yaml.Node) (workflow.TaskConfiguration, error)

// Registry maps configuration kinds to tasks. It is filled once at startup.
type Registry struct {
	constructors map[string]Constructor
	decoders     map[string]Decoder
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		constructors: make(map[string]Constructor),
		decoders:     make(map[string]Decoder),
	}
}

// Register binds kind to newTask. C is the configuration's pointer type; the
// constructor asserts it, so a mismatched configuration fails loudly instead
// of reaching a task that cannot use it.
func Register[T any, C interface {
	*T
	workflow.TaskConfiguration
}](r *Registry, kind string, newTask func(C) Task) {
	if _, exists := r.constructors[kind]; exists {
		panic(fmt.Sprintf("task kind %q registered twice", kind))
	}

	r.constructors[kind] = func(cfg workflow.TaskConfiguration) (Task, error) {
		typed, ok := cfg.(C)
		if !ok {
			return nil, fmt.Errorf("task %q cannot run configuration of type %T", kind, cfg)
		}
		return newTask(typed), nil
	}
	r.decoders[kind] = func(node *yaml.Node) (workflow.TaskConfiguration, error) {
		cfg := C(new(T))
		if node != nil {
			if err := node.Decode(cfg); err != nil {
				return nil, fmt.Errorf("failed to decode %s task: %w", kind, err)
			}
		}
		return cfg, nil
	}
}

// TaskFor returns the task bound to cfg's kind.
func (r *Registry) TaskFor(cfg workflow.TaskConfiguration) (Task, error) {
	ctor, ok := r.constructors[cfg.Kind()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", errdefs.ErrNoTaskForKind, cfg.Kind())
	}
	return ctor(cfg)
}

// Decode builds a configuration of the given kind from YAML.
func (r *Registry) Decode(kind string, node *yaml.Node) (workflow.TaskConfiguration, error) {
	dec, ok := r.decoders[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s (known kinds: %s)", errdefs.ErrNoTaskForKind, kind, strings.Join(r.Kinds(), ", "))
	}
	return dec(node)
}

// Has reports whether kind is registered.
func (r *Registry) Has(kind string) bool {
	_, ok := r.constructors[kind]
	return ok
}

// Kinds lists registered kinds in sorted order.
func (r *Registry) Kinds() []string {
	kinds := make([]string, 0, len(r.constructors))
	for k := range r.constructors {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// DefaultRegistry returns a registry holding the built-in tasks.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	Register(r, KindScript, newScriptTask)
	Register(r, KindWriteFile, newWriteFileTask)
	Register(r, KindCreateDirectory, newCreateDirectoryTask)
	Register(r, KindRegistryValue, newRegistryValueTask)
	Register(r, KindRemoveRecorded, newRemoveRecordedTask)
	return r
}
