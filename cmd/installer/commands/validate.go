package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/openfroyo/installer/pkg/errdefs"
	"github.com/openfroyo/installer/pkg/workflow"
)

func newValidateCommand() *cobra.Command {
	var (
		showVariables bool
		listPolicies  bool
		action        string
	)

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a workflow without running it",
		Long: `Validate the workflow for this machine.

This command checks:
  - Workflow file syntax and structure
  - Task kinds and their configuration
  - Variable references, including outputs of earlier steps
  - Configuration blocks (application, install policy)
  - Admission policies, built-in and from the configured policy paths

Every failure is reported, not only the first one.`,
		Example: `  # Validate a workflow
  installer validate -w app.yaml

  # Also print the resolved workflow variables
  installer validate -w app.yaml --variables

  # Check the uninstall against the admission policies
  installer validate -w app.yaml --action uninstall

  # List the admission policies in effect
  installer validate --list-policies`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tag, err := workflow.ParseTag(action)
			if err != nil {
				return err
			}

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

			if listPolicies {
				return a.printPolicies(ctx, cmd.OutOrStdout())
			}

			wf, err := a.loadWorkflow()
			if err != nil {
				return err
			}

			log.Info().
				Str("workflow", wf.Name).
				Int("steps", wf.StepCount()).
				Int("dependencies", len(wf.Dependencies)).
				Msg("Validating workflow")

			out := cmd.OutOrStdout()

			// Policies see the workflow as written, before Validate substitutes
			// configuration blocks.
			res, err := a.admit(ctx, wf, tag)
			if res != nil {
				for _, v := range slices.Concat(res.Violations, res.Warnings) {
					fmt.Fprintf(out, "  %s\n", v)
				}
			}
			if err != nil {
				return err
			}

			merged, err := a.engine().Validate(wf)
			if err != nil {
				var report *errdefs.ValidationReport
				if errors.As(err, &report) {
					for _, f := range report.Failures {
						fmt.Fprintf(out, "  %s\n", f)
					}
				}
				return err
			}

			if !showVariables {
				fmt.Fprintf(out, "%s is valid for %s\n", wf.Name, a.platform)
				return nil
			}

			if jsonOutput {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(merged.Values())
			}
			for _, name := range merged.Keys() {
				value, _ := merged.Get(name)
				fmt.Fprintf(out, "%s=%s\n", name, value)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&showVariables, "variables", false, "print the merged workflow variables")
	cmd.Flags().BoolVar(&listPolicies, "list-policies", false, "list the admission policies in effect and exit")
	cmd.Flags().StringVar(&action, "action", string(workflow.TagInstall), "action checked by the admission policies (install, uninstall, modify, repair)")

	return cmd
}

// printPolicies writes the loaded admission policies, one per line, or as
// JSON with --json.
func (a *app) printPolicies(ctx context.Context, out io.Writer) error {
	eng, err := a.policyEngine(ctx)
	if err != nil {
		return err
	}
	policies := eng.ListPolicies()

	if jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(policies)
	}
	for _, p := range policies {
		state := "enabled"
		if !p.Enabled {
			state = "disabled"
		}
		source := p.Source
		if source == "" {
			source = "builtin"
		}
		fmt.Fprintf(out, "%-28s %-9s %-9s %s\n", p.Name, p.Severity, state, source)
	}
	return nil
}
