package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openfroyo/installer/pkg/telemetry"
)

var (
	// Global flags
	workflowPath string
	configPath   string
	dryRun       bool
	verbosity    string
	jsonOutput   bool
)

var errNoCommand = errors.New("no command given")

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "installer",
		Short: "froyo installer - cross-platform application installer",
		Long: `The froyo installer runs declarative install workflows on the local machine.

A workflow is a YAML file of stages, jobs and steps. Each step runs a task
on the operating systems and for the actions (install, uninstall, modify,
repair) it is tagged with. Required runtimes and tools are checked and
acquired before an install. Every file, directory and registry entry the
install creates is recorded in an uninstall journal, so uninstall can
remove exactly what was installed.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Usage is for argument mistakes, not for failed runs.
			cmd.SilenceUsage = true
			if verbosity == "" {
				return nil
			}
			_, err := telemetry.VerbosityLevel(verbosity)
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = cmd.Help()
			return errNoCommand
		},
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().StringVarP(&workflowPath, "workflow", "w", "", "workflow file path")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "settings file path")
	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "validate and report without changing the machine")
	rootCmd.PersistentFlags().StringVar(&verbosity, "verbosity", "", "quiet, minimal, normal, detailed or diagnostic")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	// Add subcommands
	rootCmd.AddCommand(newInstallCommand())
	rootCmd.AddCommand(newUninstallCommand())
	rootCmd.AddCommand(newModifyCommand())
	rootCmd.AddCommand(newRepairCommand())
	rootCmd.AddCommand(newValidateCommand())
	rootCmd.AddCommand(newHistoryCommand())

	return rootCmd
}
