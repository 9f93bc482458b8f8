package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/openfroyo/installer/pkg/engine"
	"github.com/openfroyo/installer/pkg/stores"
)

func newHistoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect past installer runs",
		Long: `Inspect the run history kept in the state database.

Every run records its workflow, action, platform and outcome, each step that
ran and notable events such as dependency acquisitions and skipped stages.`,
	}

	cmd.AddCommand(newHistoryListCommand())
	cmd.AddCommand(newHistoryShowCommand())
	cmd.AddCommand(newHistoryPruneCommand())

	return cmd
}

// withStore runs fn against an initialized app and closes it afterwards.
func withStore(cmd *cobra.Command, fn func(a *app) error) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(ctx); err != nil {
			log.Warn().Err(err).Msg("Failed to shut down cleanly")
		}
	}()
	return fn(a)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newHistoryListCommand() *cobra.Command {
	var (
		workflowName string
		status       string
		limit        int
		offset       int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent runs",
		Example: `  # Last 20 runs
  installer history list

  # Failed runs of one workflow
  installer history list --workflow sample --status failed`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := stores.RunFilter{
				Workflow: workflowName,
				Status:   engine.RunStatus(status),
				Limit:    limit,
				Offset:   offset,
			}
			if status != "" {
				if err := filter.Status.Validate(); err != nil {
					return err
				}
			}

			return withStore(cmd, func(a *app) error {
				runs, err := a.store.ListRuns(cmd.Context(), filter)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if jsonOutput {
					return writeJSON(out, runs)
				}

				tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "RUN\tWORKFLOW\tACTION\tSTATUS\tSTEPS\tSTARTED\tDURATION")
				for _, r := range runs {
					tag := string(r.Tag)
					if r.DryRun {
						tag += " (dry run)"
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d/%d\t%s\t%s\n",
						r.ID, r.Workflow, tag, r.Status,
						r.Steps-r.FailedSteps, r.Steps,
						r.StartedAt.Local().Format(time.DateTime),
						runDuration(&r.RunRecord))
				}
				return tw.Flush()
			})
		},
	}

	cmd.Flags().StringVar(&workflowName, "workflow", "", "only runs of this workflow")
	cmd.Flags().StringVar(&status, "status", "", "only runs with this status (running, succeeded, failed)")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of runs")
	cmd.Flags().IntVar(&offset, "offset", 0, "number of runs to skip")

	return cmd
}

func newHistoryShowCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show the steps and events of a run",
		Example: `  installer history show 6f1c2a4e-0d3b-4f7a-9f5e-2b8d1c7e9a10`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(a *app) error {
				ctx := cmd.Context()
				run, err := a.store.GetRun(ctx, args[0])
				if err != nil {
					return err
				}
				steps, err := a.store.ListSteps(ctx, run.ID)
				if err != nil {
					return err
				}
				events, err := a.store.ListEvents(ctx, run.ID)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if jsonOutput {
					return writeJSON(out, struct {
						Run    *stores.RunSummary      `json:"run"`
						Steps  []*stores.StepExecution `json:"steps"`
						Events []*stores.Event         `json:"events"`
					}{run, steps, events})
				}

				fmt.Fprintf(out, "Run:      %s\n", run.ID)
				fmt.Fprintf(out, "Workflow: %s (%s)\n", run.Workflow, run.Tag)
				fmt.Fprintf(out, "Platform: %s\n", run.Platform)
				fmt.Fprintf(out, "Status:   %s after %s\n", run.Status, runDuration(&run.RunRecord))
				if run.Error != "" {
					fmt.Fprintf(out, "Error:    %s\n", run.Error)
				}

				tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "\nSTEP\tKIND\tSTATUS\tDURATION")
				for _, s := range steps {
					fmt.Fprintf(tw, "%s/%s/%s\t%s\t%s\t%s\n", s.Stage, s.Job, s.Step, s.Kind, s.Status, s.Duration().Round(time.Millisecond))
				}
				if err := tw.Flush(); err != nil {
					return err
				}

				if len(events) > 0 {
					fmt.Fprintln(out, "\nEvents:")
					for _, e := range events {
						fmt.Fprintf(out, "  %s [%s/%s] %s\n", e.Timestamp.Local().Format(time.TimeOnly), e.Phase, e.Level, e.Message)
					}
				}
				return nil
			})
		},
	}

	return cmd
}

func newHistoryPruneCommand() *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete old finished runs",
		Example: `  # Keep one week of history
  installer history prune --older-than 168h`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if olderThan <= 0 {
				return fmt.Errorf("--older-than must be positive")
			}
			return withStore(cmd, func(a *app) error {
				n, err := a.store.PruneRuns(cmd.Context(), time.Now().Add(-olderThan))
				if err != nil {
					return err
				}
				log.Info().Int64("runs", n).Dur("older_than", olderThan).Msg("Pruned run history")
				return nil
			})
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "delete runs started before this age")

	return cmd
}

func runDuration(r *engine.RunRecord) string {
	if r.FinishedAt == nil {
		return "-"
	}
	return r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond).String()
}
