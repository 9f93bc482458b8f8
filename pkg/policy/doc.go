// Package policy admits or rejects workflows before they run, using Open
// Policy Agent.
//
// Each policy is a Rego module whose deny set holds violations. An element
// is either a message string or an object:
//
//	deny contains violation if {
//		some step in input.workflow.steps
//		step.kind == "script"
//		contains(step.config.script, "rm -rf /")
//		violation := {"message": "script removes the root directory", "step": step.name}
//	}
//
// The input document is built by NewInput. It holds the workflow name and
// merged variables, the steps selected for the platform and action, the
// declared dependencies and the configuration blocks, all keyed by their
// YAML field names with placeholders unresolved. The detected platform, the
// action tag and the dry-run flag sit beside it.
//
// Violations of severity error or critical reject the workflow. Info and
// warning findings are reported but do not block.
//
// # Loading policies
//
// The engine starts with the built-in policies:
//
//   - script-download-pipe: scripts that pipe curl or wget into a shell
//   - machine-scope-elevation: machine-wide installs without require_administrator
//   - user-scope-machine-hive: per-user installs writing HKLM
//   - unbounded-dependency: dependency ranges without an upper bound
//   - uninstall-cleanup: uninstalls with no remove_recorded step
//
// LoadPolicies adds .rego files, named after the file, and .json files
// holding a Policy. Leading comments of a .rego file become its description
// and a "# severity: warning" comment sets its default severity, which is
// error otherwise. A loaded policy replaces a built-in one of the same name.
//
//	eng, err := policy.NewEngine(ctx, logger, policy.WithData(data))
//	if err != nil {
//		return err
//	}
//	if err := eng.LoadPolicies(ctx, []string{"/etc/froyo/policies"}); err != nil {
//		return err
//	}
//	in, err := policy.NewInput(wf, info, workflow.TagInstall, false)
//	if err != nil {
//		return err
//	}
//	res, err := eng.Evaluate(ctx, in)
package policy
