package tasks

import (
	"context"
	"strings"

	"github.com/openfroyo/installer/pkg/transports/local"
	"github.com/openfroyo/installer/pkg/variables"
	"github.com/openfroyo/installer/pkg/workflow"
)

// KindScript runs a shell script.
const KindScript = "script"

// ScriptConfig is the input of the script task.
type ScriptConfig struct {
	// Script is passed to the platform shell.
	Script string `yaml:"script" validate:"required"`

	// WorkingDirectory is where the script runs.
	WorkingDirectory string `yaml:"working_directory"`

	// Environment is added to the process environment.
	Environment map[string]string `yaml:"environment"`

	// OutputVariable receives the trimmed standard output.
	OutputVariable string `yaml:"output_variable" validate:"omitempty,excludesall={}"`
}

func (c *ScriptConfig) Kind() string { return KindScript }

func (c *ScriptConfig) Validate() error { return validate.Struct(c) }

func (c *ScriptConfig) Substitute(r *variables.Resolver) error {
	if err := r.Fields(&c.Script, &c.WorkingDirectory); err != nil {
		return err
	}
	for k, v := range c.Environment {
		resolved, err := r.String(v)
		if err != nil {
			return err
		}
		c.Environment[k] = resolved
	}
	return nil
}

func (c *ScriptConfig) Clone() workflow.TaskConfiguration {
	clone := *c
	if c.Environment != nil {
		clone.Environment = make(map[string]string, len(c.Environment))
		for k, v := range c.Environment {
			clone.Environment[k] = v
		}
	}
	return &clone
}

// OutputVariables implements workflow.OutputDeclarer.
func (c *ScriptConfig) OutputVariables() []string {
	if c.OutputVariable == "" {
		return nil
	}
	return []string{c.OutputVariable}
}

// Variables implements workflow.VariableSource.
func (c *ScriptConfig) Variables() map[string]string {
	return map[string]string{"Task.WorkingDirectory": c.WorkingDirectory}
}

type scriptTask struct {
	cfg *ScriptConfig
}

func newScriptTask(cfg *ScriptConfig) Task {
	return &scriptTask{cfg: cfg}
}

func (t *scriptTask) Execute(ctx context.Context, tc *Context) error {
	if tc.DryRun {
		tc.Logger.Info().Str("script", t.cfg.Script).Msg("Dry run: script not executed")
		return nil
	}

	cmd := local.ShellCommand(t.cfg.Script)
	cmd.Dir = t.cfg.WorkingDirectory
	cmd.Env = t.cfg.Environment

	res, err := tc.Runner.Run(ctx, cmd)
	if err != nil {
		return err
	}
	tc.Logger.Debug().Str("stdout", res.Stdout).Dur("duration", res.Duration).Msg("Script finished")

	if t.cfg.OutputVariable != "" {
		tc.SetVariable(t.cfg.OutputVariable, strings.TrimSpace(res.Stdout))
	}
	return nil
}
