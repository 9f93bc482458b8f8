package tasks

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"sort"
	"strings"

	"github.com/openfroyo/installer/pkg/journal"
	"github.com/openfroyo/installer/pkg/variables"
	"github.com/openfroyo/installer/pkg/workflow"
)

// KindRemoveRecorded removes everything the journal recorded.
const KindRemoveRecorded = "remove_recorded"

// RemoveRecordedConfig is the input of the remove_recorded task.
type RemoveRecordedConfig struct {
	// Kinds limits removal to these journal kinds, matched case-insensitively.
	// Empty means all.
	Kinds []string `yaml:"kinds"`

	// KeepNonEmptyDirectories leaves directories holding unrecorded files
	// in place instead of failing.
	KeepNonEmptyDirectories bool `yaml:"keep_non_empty_directories"`
}

func (c *RemoveRecordedConfig) Kind() string    { return KindRemoveRecorded }

func (c *RemoveRecordedConfig) Validate() error {
	for _, name := range c.Kinds {
		if _, err := journal.ParseKind(name); err != nil {
			return err
		}
	}
	return nil
}

func (c *RemoveRecordedConfig) Substitute(r *variables.Resolver) error {
	return r.Slice(c.Kinds)
}

func (c *RemoveRecordedConfig) Clone() workflow.TaskConfiguration {
	clone := *c
	clone.Kinds = slices.Clone(c.Kinds)
	return &clone
}

func (c *RemoveRecordedConfig) includes(kind journal.Kind) bool {
	if len(c.Kinds) == 0 {
		return true
	}
	return slices.ContainsFunc(c.Kinds, func(name string) bool {
		k, err := journal.ParseKind(name)
		return err == nil && k == kind
	})
}

type removeRecordedTask struct {
	cfg *RemoveRecordedConfig
}

func newRemoveRecordedTask(cfg *RemoveRecordedConfig) Task {
	return &removeRecordedTask{cfg: cfg}
}

// Execute removes values first, then files, then directories deepest first,
// then registry keys deepest first.
func (t *removeRecordedTask) Execute(_ context.Context, tc *Context) error {
	var errs []error

	if t.cfg.includes(journal.RegistryValue) {
		for _, entry := range tc.Journal.ReadEntries(journal.RegistryValue) {
			key, name := SplitRegistryValueEntry(entry)
			if tc.DryRun {
				tc.Logger.Info().Str("value", entry).Msg("Dry run: registry value kept")
				continue
			}
			if err := deleteRegistryValue(key, name); err != nil {
				errs = append(errs, err)
			}
		}
	}

	if t.cfg.includes(journal.File) {
		for _, path := range tc.Journal.ReadEntries(journal.File) {
			if tc.DryRun {
				tc.Logger.Info().Str("path", path).Msg("Dry run: file kept")
				continue
			}
			if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
				errs = append(errs, fmt.Errorf("failed to remove %s: %w", path, err))
				continue
			}
			tc.Logger.Debug().Str("path", path).Msg("File removed")
		}
	}

	if t.cfg.includes(journal.Directory) {
		for _, dir := range deepestFirst(tc.Journal.ReadEntries(journal.Directory)) {
			if tc.DryRun {
				tc.Logger.Info().Str("path", dir).Msg("Dry run: directory kept")
				continue
			}
			if err := os.Remove(dir); err != nil && !errors.Is(err, os.ErrNotExist) {
				if t.cfg.KeepNonEmptyDirectories && isNotEmpty(dir) {
					tc.Logger.Warn().Str("path", dir).Msg("Directory not empty, keeping it")
					continue
				}
				errs = append(errs, fmt.Errorf("failed to remove %s: %w", dir, err))
				continue
			}
			tc.Logger.Debug().Str("path", dir).Msg("Directory removed")
		}
	}

	if t.cfg.includes(journal.RegistryKey) {
		for _, key := range deepestFirst(tc.Journal.ReadEntries(journal.RegistryKey)) {
			if tc.DryRun {
				tc.Logger.Info().Str("key", key).Msg("Dry run: registry key kept")
				continue
			}
			if err := deleteRegistryKey(key); err != nil {
				errs = append(errs, err)
			}
		}
	}

	return errors.Join(errs...)
}

// deepestFirst orders paths so children come before their parents.
func deepestFirst(paths []string) []string {
	out := slices.Clone(paths)
	sort.SliceStable(out, func(i, j int) bool {
		di := strings.Count(out[i], "/") + strings.Count(out[i], `\`)
		dj := strings.Count(out[j], "/") + strings.Count(out[j], `\`)
		if di != dj {
			return di > dj
		}
		return out[i] > out[j]
	})
	return out
}

func isNotEmpty(dir string) bool {
	entries, err := os.ReadDir(dir)
	return err == nil && len(entries) > 0
}
