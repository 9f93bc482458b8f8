package tasks

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/openfroyo/installer/pkg/journal"
	"github.com/openfroyo/installer/pkg/variables"
	"github.com/openfroyo/installer/pkg/workflow"
)

var validate = validator.New()

const (
	// KindWriteFile writes a file.
	KindWriteFile = "write_file"

	// KindCreateDirectory creates a directory tree.
	KindCreateDirectory = "create_directory"
)

// WriteFileConfig is the input of the write_file task.
type WriteFileConfig struct {
	Path    string `yaml:"path" validate:"required"`
	Content string `yaml:"content"`

	// Mode is an octal permission string such as "0644".
	Mode string `yaml:"mode" validate:"omitempty,octal_mode"`
}

func (c *WriteFileConfig) Kind() string    { return KindWriteFile }
func (c *WriteFileConfig) Validate() error { return validate.Struct(c) }

func (c *WriteFileConfig) Substitute(r *variables.Resolver) error {
	return r.Fields(&c.Path, &c.Content, &c.Mode)
}

func (c *WriteFileConfig) Clone() workflow.TaskConfiguration {
	clone := *c
	return &clone
}

// Variables implements workflow.VariableSource.
func (c *WriteFileConfig) Variables() map[string]string {
	return map[string]string{
		"Task.Path":      c.Path,
		"Task.Directory": filepath.Dir(c.Path),
		"Task.FileName":  filepath.Base(c.Path),
	}
}

func (c *WriteFileConfig) fileMode() os.FileMode {
	if c.Mode == "" {
		return 0o644
	}
	m, _ := strconv.ParseUint(c.Mode, 8, 32)
	return os.FileMode(m)
}

type writeFileTask struct {
	cfg *WriteFileConfig
}

func newWriteFileTask(cfg *WriteFileConfig) Task {
	return &writeFileTask{cfg: cfg}
}

func (t *writeFileTask) Execute(_ context.Context, tc *Context) error {
	path := filepath.Clean(t.cfg.Path)
	if tc.DryRun {
		tc.Logger.Info().Str("path", path).Int("bytes", len(t.cfg.Content)).Msg("Dry run: file not written")
		return nil
	}

	if err := ensureDirectory(tc, filepath.Dir(path)); err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(t.cfg.Content), t.cfg.fileMode()); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	tc.Record(journal.File, path)

	tc.Logger.Info().Str("path", path).Msg("File written")
	return nil
}

// CreateDirectoryConfig is the input of the create_directory task.
type CreateDirectoryConfig struct {
	Path string `yaml:"path" validate:"required"`
}

func (c *CreateDirectoryConfig) Kind() string    { return KindCreateDirectory }
func (c *CreateDirectoryConfig) Validate() error { return validate.Struct(c) }

func (c *CreateDirectoryConfig) Substitute(r *variables.Resolver) error {
	return r.Fields(&c.Path)
}

func (c *CreateDirectoryConfig) Clone() workflow.TaskConfiguration {
	clone := *c
	return &clone
}

// Variables implements workflow.VariableSource.
func (c *CreateDirectoryConfig) Variables() map[string]string {
	return map[string]string{"Task.Path": c.Path}
}

type createDirectoryTask struct {
	cfg *CreateDirectoryConfig
}

func newCreateDirectoryTask(cfg *CreateDirectoryConfig) Task {
	return &createDirectoryTask{cfg: cfg}
}

func (t *createDirectoryTask) Execute(_ context.Context, tc *Context) error {
	path := filepath.Clean(t.cfg.Path)
	if tc.DryRun {
		tc.Logger.Info().Str("path", path).Msg("Dry run: directory not created")
		return nil
	}
	return ensureDirectory(tc, path)
}

// ensureDirectory creates dir and its missing parents, recording each
// directory it created. Directories that already existed are not recorded,
// so an uninstall never removes something the installer did not make.
func ensureDirectory(tc *Context, dir string) error {
	var missing []string
	for d := dir; ; d = filepath.Dir(d) {
		_, err := os.Stat(d)
		if err == nil {
			break
		}
		if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to inspect %s: %w", d, err)
		}
		missing = append(missing, d)
		if parent := filepath.Dir(d); parent == d {
			break
		}
	}

	if len(missing) == 0 {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	for _, d := range missing {
		tc.Record(journal.Directory, d)
	}
	tc.Logger.Info().Str("path", dir).Int("created", len(missing)).Msg("Directory created")
	return nil
}

func init() {
	_ = validate.RegisterValidation("octal_mode", func(fl validator.FieldLevel) bool {
		v, err := strconv.ParseUint(fl.Field().String(), 8, 32)
		return err == nil && v <= 0o7777
	})
}
