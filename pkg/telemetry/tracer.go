package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc/credentials/insecure"
)

// Span attribute keys.
var (
	AttrRunID        = attribute.Key("run.id")
	AttrWorkflow     = attribute.Key("workflow.name")
	AttrTag          = attribute.Key("workflow.tag")
	AttrDryRun       = attribute.Key("run.dry_run")
	AttrStage        = attribute.Key("stage.name")
	AttrJob          = attribute.Key("job.name")
	AttrStep         = attribute.Key("step.name")
	AttrTaskKind     = attribute.Key("task.kind")
	AttrDependency   = attribute.Key("dependency.name")
	AttrVersionRange = attribute.Key("dependency.range")
	AttrMethod       = attribute.Key("dependency.method")
)

// Tracer wraps an OpenTelemetry tracer with installer span helpers.
// A nil *Tracer is valid and produces no-op spans.
type Tracer struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
	config   TracingConfig
}

// NewTracer creates a tracer. When tracing is disabled the tracer hands out
// no-op spans and nothing is registered globally.
func NewTracer(cfg TracingConfig, serviceName, serviceVersion, environment string) (*Tracer, error) {
	if !cfg.Enabled {
		return &Tracer{
			tracer: noop.NewTracerProvider().Tracer(serviceName),
			config: cfg,
		}, nil
	}

	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(serviceName),
			semconv.ServiceVersionKey.String(serviceVersion),
			attribute.String("environment", environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace resource: %w", err)
	}

	var exporter sdktrace.SpanExporter
	switch cfg.Exporter {
	case "otlp":
		exporter, err = newOTLPExporter(cfg)
	case "stdout":
		exporter, err = stdouttrace.New(stdouttrace.WithPrettyPrint())
	case "none":
	default:
		return nil, fmt.Errorf("unsupported trace exporter: %s", cfg.Exporter)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SamplingRate))),
	}
	if exporter != nil {
		// A run is a single short process, so spans are exported synchronously
		// and nothing is lost on exit.
		opts = append(opts, sdktrace.WithSyncer(exporter))
	}
	provider := sdktrace.NewTracerProvider(opts...)

	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &Tracer{
		provider: provider,
		tracer:   provider.Tracer(serviceName),
		config:   cfg,
	}, nil
}

func newOTLPExporter(cfg TracingConfig) (sdktrace.SpanExporter, error) {
	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
	}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithTLSCredentials(insecure.NewCredentials()))
	}
	if len(cfg.Headers) > 0 {
		opts = append(opts, otlptracegrpc.WithHeaders(cfg.Headers))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, otlptracegrpc.WithTimeout(cfg.Timeout))
	}
	return otlptracegrpc.New(context.Background(), opts...)
}

// StartSpan starts a span with the given attributes.
func (t *Tracer) StartSpan(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if t == nil {
		return ctx, trace.SpanFromContext(context.Background())
	}
	return t.tracer.Start(ctx, operation, trace.WithAttributes(attrs...))
}

// StartRunSpan starts the root span of a workflow run.
func (t *Tracer) StartRunSpan(ctx context.Context, runID, workflow, tag string, dryRun bool) (context.Context, trace.Span) {
	return t.StartSpan(ctx, "workflow.run",
		AttrRunID.String(runID),
		AttrWorkflow.String(workflow),
		AttrTag.String(tag),
		AttrDryRun.Bool(dryRun),
	)
}

// StartStageSpan starts a span for one stage.
func (t *Tracer) StartStageSpan(ctx context.Context, stage string) (context.Context, trace.Span) {
	return t.StartSpan(ctx, "stage.execute", AttrStage.String(stage))
}

// StartJobSpan starts a span for one job.
func (t *Tracer) StartJobSpan(ctx context.Context, job string) (context.Context, trace.Span) {
	return t.StartSpan(ctx, "job.execute", AttrJob.String(job))
}

// StartStepSpan starts a span for one step.
func (t *Tracer) StartStepSpan(ctx context.Context, step, kind string) (context.Context, trace.Span) {
	return t.StartSpan(ctx, "step.execute",
		AttrStep.String(step),
		AttrTaskKind.String(kind),
	)
}

// StartDependencySpan starts a span covering the check and acquisition of a dependency.
func (t *Tracer) StartDependencySpan(ctx context.Context, name, versionRange string) (context.Context, trace.Span) {
	return t.StartSpan(ctx, "dependency.ensure",
		AttrDependency.String(name),
		AttrVersionRange.String(versionRange),
	)
}

// Shutdown flushes and stops the provider.
func (t *Tracer) Shutdown(ctx context.Context) error {
	if t == nil || t.provider == nil {
		return nil
	}
	return t.provider.Shutdown(ctx)
}

// EndSpan records the outcome on the span and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// TraceID returns the trace ID of the current span in the context.
func TraceID(ctx context.Context) string {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return ""
	}
	return sc.TraceID().String()
}
