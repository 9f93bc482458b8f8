// Package telemetry carries the observability of an installer run:
// zerolog structured logging, OpenTelemetry spans for runs, stages, jobs,
// steps and dependency acquisition, and Prometheus counters written to a
// node-exporter textfile when the run ends.
//
// Every component tolerates being disabled. A nil *Tracer hands out no-op
// spans and a nil *Metrics drops observations, so the engine instruments
// unconditionally.
//
//	tel, err := telemetry.New(telemetry.DefaultConfig())
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
//	ctx, span := tel.Tracer.StartRunSpan(ctx, runID, "my-app", "install", false)
//	defer telemetry.EndSpan(span, err)
package telemetry
