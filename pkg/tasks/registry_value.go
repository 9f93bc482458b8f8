package tasks

import (
	"context"
	"strings"

	"github.com/openfroyo/installer/pkg/journal"
	"github.com/openfroyo/installer/pkg/variables"
	"github.com/openfroyo/installer/pkg/workflow"
)

// KindRegistryValue sets a Windows registry value.
const KindRegistryValue = "registry_value"

// RegistryValueConfig is the input of the registry_value task.
type RegistryValueConfig struct {
	// Key is the full key path, e.g. HKCU\Software\Acme\Tool.
	Key string `yaml:"key" validate:"required,startswith=HK"`

	// Name is the value name. Empty sets the key's default value.
	Name string `yaml:"name"`

	Value string `yaml:"value"`

	Type string `yaml:"type" validate:"omitempty,oneof=string expand_string dword qword"`
}

func (c *RegistryValueConfig) Kind() string    { return KindRegistryValue }
func (c *RegistryValueConfig) Validate() error { return validate.Struct(c) }

func (c *RegistryValueConfig) Substitute(r *variables.Resolver) error {
	return r.Fields(&c.Key, &c.Name, &c.Value)
}

func (c *RegistryValueConfig) Clone() workflow.TaskConfiguration {
	clone := *c
	return &clone
}

// Variables implements workflow.VariableSource.
func (c *RegistryValueConfig) Variables() map[string]string {
	return map[string]string{"Task.Key": c.Key, "Task.Name": c.Name}
}

// RegistryValueEntry is the journal form of a registry value: key and name
// joined by a backslash.
func RegistryValueEntry(key, name string) string {
	return strings.TrimRight(key, `\`) + `\` + name
}

// SplitRegistryValueEntry reverses RegistryValueEntry.
func SplitRegistryValueEntry(entry string) (key, name string) {
	i := strings.LastIndex(entry, `\`)
	if i < 0 {
		return entry, ""
	}
	return entry[:i], entry[i+1:]
}

type registryValueTask struct {
	cfg *RegistryValueConfig
}

func newRegistryValueTask(cfg *RegistryValueConfig) Task {
	return &registryValueTask{cfg: cfg}
}

func (t *registryValueTask) Execute(_ context.Context, tc *Context) error {
	if tc.DryRun {
		tc.Logger.Info().Str("key", t.cfg.Key).Str("name", t.cfg.Name).Msg("Dry run: registry value not set")
		return nil
	}

	typ := t.cfg.Type
	if typ == "" {
		typ = "string"
	}

	createdKey, err := setRegistryValue(t.cfg.Key, t.cfg.Name, typ, t.cfg.Value)
	if err != nil {
		return err
	}
	if createdKey {
		tc.Record(journal.RegistryKey, t.cfg.Key)
	}
	tc.Record(journal.RegistryValue, RegistryValueEntry(t.cfg.Key, t.cfg.Name))

	tc.Logger.Info().Str("key", t.cfg.Key).Str("name", t.cfg.Name).Msg("Registry value set")
	return nil
}
