// Package engine runs installer workflows on the local machine.
//
// # Overview
//
// A run takes a built workflow, a tag and an uninstall journal and moves
// through three phases:
//
//  1. Validation - every configuration block and every step is resolved
//     and validated (Validator). All failures are reported together.
//  2. Dependencies - for install runs, each declared dependency is checked
//     and, when missing, acquired with the first method whose offered
//     version satisfies the dependency's range (DependencyInstaller).
//  3. Steps - stages, jobs and steps run in declaration order (StageExecutor,
//     JobExecutor, StepExecutor). Steps whose OS or tags do not match the
//     run are skipped. A stage with no eligible step is skipped as a whole.
//
// Execution is sequential. The first failure stops the run and is returned
// as an *errdefs.InstallError; nothing is retried or rolled back. The
// uninstall journal is flushed after every step, failed or not, so an
// interrupted install can still be uninstalled.
//
// # Variables
//
// A step configuration is resolved just before its task runs, against its
// own fields, the variables set by earlier steps, the workflow variables and
// the process environment. During validation the outputs of earlier steps
// do not exist yet, so placeholders naming them are left untouched.
//
// # Usage
//
//	eng := engine.New(tasks.DefaultRegistry(), info,
//		engine.WithRecorder(store),
//		engine.WithTracer(tel.Tracer),
//		engine.WithMetrics(tel.Metrics),
//	)
//	res, err := eng.Run(ctx, wf, engine.RunOptions{
//		Tag:     workflow.TagInstall,
//		Journal: j,
//	})
//
// # History
//
// Runs, finished steps and notable events are reported to a Recorder. The
// stores package persists them in SQLite. Recorder failures are logged and
// never fail a run.
package engine
