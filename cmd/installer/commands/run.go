package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/openfroyo/installer/pkg/engine"
	"github.com/openfroyo/installer/pkg/journal"
	"github.com/openfroyo/installer/pkg/workflow"
)

func newInstallCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "install",
		Short: "Install the application",
		Long: `Install the application described by the workflow.

The workflow is validated as a whole first. Missing dependencies are then
acquired, and every step tagged install for this operating system runs in
order. Created files, directories and registry entries are recorded in the
uninstall journal after each step. The first failure stops the install.`,
		Example: `  # Install
  installer install -w app.yaml

  # Show what would happen
  installer install -w app.yaml --dry-run

  # Install with diagnostic logging
  installer install -w app.yaml --verbosity diagnostic`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorkflow(cmd, workflow.TagInstall)
		},
	}
}

func newUninstallCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "uninstall",
		Short: "Uninstall the application",
		Long: `Uninstall the application described by the workflow.

Steps tagged uninstall run in reverse order: stages, jobs and steps are all
reversed. The uninstall journal written by the install is read but never
modified while uninstalling, and is deleted once the uninstall succeeds.`,
		Example: `  # Uninstall
  installer uninstall -w app.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorkflow(cmd, workflow.TagUninstall)
		},
	}
}

func newModifyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "modify",
		Short: "Modify an existing installation",
		Long: `Run the steps tagged modify, for example to change installed features.
New side effects are added to the existing uninstall journal.`,
		Example: `  installer modify -w app.yaml`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorkflow(cmd, workflow.TagModify)
		},
	}
}

func newRepairCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "repair",
		Short: "Repair an existing installation",
		Long: `Run the steps tagged repair, for example to restore damaged files.
New side effects are added to the existing uninstall journal.`,
		Example: `  installer repair -w app.yaml`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorkflow(cmd, workflow.TagRepair)
		},
	}
}

func runWorkflow(cmd *cobra.Command, tag workflow.Tag) error {
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := a.Close(ctx); closeErr != nil {
			log.Warn().Err(closeErr).Msg("Failed to shut down cleanly")
		}
	}()

	wf, err := a.loadWorkflow()
	if err != nil {
		return err
	}
	if tag == workflow.TagUninstall {
		wf.Reverse()
	}
	if _, err := a.admit(ctx, wf, tag); err != nil {
		return err
	}

	path, err := a.journalPath(wf)
	if err != nil {
		return err
	}
	j, cleanup, err := openJournal(path, tag)
	if err != nil {
		return err
	}
	defer cleanup()

	var runJournal journal.Journal = j
	if tag == workflow.TagUninstall {
		runJournal = journal.ReadOnly(j)
	}

	a.logger.Info().
		Str("workflow", wf.Name).
		Str("tag", string(tag)).
		Str("journal", j.Path()).
		Int("entries", j.Len()).
		Interface("recorded", recordedCounts(j)).
		Bool("dry_run", dryRun).
		Msg("Starting installer run")

	res, runErr := a.engine().Run(ctx, wf, engine.RunOptions{Tag: tag, DryRun: dryRun, Journal: runJournal})
	if res != nil {
		if err := printResult(cmd, res); err != nil {
			return err
		}
	}
	if runErr != nil {
		return runErr
	}

	if tag == workflow.TagUninstall && !dryRun {
		if err := os.Remove(j.Path()); err != nil && !errors.Is(err, fs.ErrNotExist) {
			a.logger.Warn().Err(err).Str("path", j.Path()).Msg("Failed to delete uninstall journal")
		}
	}

	a.pruneHistory(cmd)
	return nil
}

// openJournal opens the journal at path. When the file is missing, uninstall
// and dry runs get a throwaway journal so neither leaves a file behind.
// recordedCounts reports how many entries of each kind j holds.
func recordedCounts(j *journal.FileJournal) map[journal.Kind]int {
	counts := make(map[journal.Kind]int, len(journal.Kinds))
	for kind, entries := range j.Entries() {
		counts[kind] = len(entries)
	}
	return counts
}

func openJournal(path string, tag workflow.Tag) (*journal.FileJournal, func(), error) {
	noop := func() {}

	_, statErr := os.Stat(path)
	missing := errors.Is(statErr, fs.ErrNotExist)

	if missing && tag == workflow.TagUninstall {
		log.Warn().Str("path", path).Msg("No uninstall journal found, recorded side effects cannot be removed")
	}

	if missing && (dryRun || tag == workflow.TagUninstall) {
		dir, err := os.MkdirTemp("", "froyo-journal-")
		if err != nil {
			return nil, noop, err
		}
		j, err := journal.CreateOrRead(filepath.Join(dir, filepath.Base(path)))
		if err != nil {
			_ = os.RemoveAll(dir)
			return nil, noop, err
		}
		return j, func() { _ = os.RemoveAll(dir) }, nil
	}

	j, err := journal.CreateOrRead(path)
	if err != nil {
		return nil, noop, err
	}
	return j, noop, nil
}

func (a *app) pruneHistory(cmd *cobra.Command) {
	if a.settings.HistoryRetention <= 0 {
		return
	}
	n, err := a.store.PruneRuns(cmd.Context(), time.Now().Add(-a.settings.HistoryRetention))
	if err != nil {
		a.logger.Warn().Err(err).Msg("Failed to prune run history")
		return
	}
	if n > 0 {
		a.logger.Debug().Int64("runs", n).Msg("Pruned run history")
	}
}

func printResult(cmd *cobra.Command, res *engine.RunResult) error {
	out := cmd.OutOrStdout()
	if jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	mode := ""
	if res.DryRun {
		mode = " (dry run)"
	}
	fmt.Fprintf(out, "%s %s%s: %s in %s\n", res.Tag, res.Workflow, mode, res.Status, res.Duration().Round(time.Millisecond))
	for _, dep := range res.Dependencies {
		switch {
		case dep.AlreadyInstalled:
			fmt.Fprintf(out, "  dependency %s %s: already installed\n", dep.Name, dep.Range)
		default:
			fmt.Fprintf(out, "  dependency %s %s: %s\n", dep.Name, dep.Range, dep.Method)
		}
	}
	for _, step := range res.Steps {
		fmt.Fprintf(out, "  %s/%s/%s [%s] %s %s\n", step.Stage, step.Job, step.Step, step.Kind, step.Status, step.Duration.Round(time.Millisecond))
		if step.Error != "" {
			fmt.Fprintf(out, "    %s\n", step.Error)
		}
	}
	fmt.Fprintf(out, "  %d executed, %d skipped (run %s)\n", len(res.Steps), res.Skipped, res.RunID)
	return nil
}
