// Tracing instrumentation for agent runs.
package executor

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vinayprograms/tagforge/internal/telemetry"
)

// startRunSpan opens a span covering one workflow run.
func startRunSpan(ctx context.Context, mode, model, dataset string) (context.Context, trace.Span) {
	ctx, span := telemetry.Tracer().Start(ctx, "run."+mode)
	span.SetAttributes(
		attribute.String("run.mode", mode),
		attribute.String("run.model", model),
		attribute.String("run.dataset", dataset),
	)
	return ctx, span
}

// endRunSpan closes the run span with its outcome.
func endRunSpan(span trace.Span, status string, usage int64, err error) {
	span.SetAttributes(
		attribute.String("run.status", status),
		attribute.Int64("run.tokens", usage),
	)
	if err != nil {
		span.RecordError(err)
	}
	span.End()
}

// startStepSpan opens a span for one model call within a run.
func startStepSpan(ctx context.Context, step int) (context.Context, trace.Span) {
	ctx, span := telemetry.Tracer().Start(ctx, fmt.Sprintf("step.%d", step))
	span.SetAttributes(attribute.Int("step.number", step))
	return ctx, span
}

// endStepSpan closes a step span.
func endStepSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
	}
	span.End()
}
