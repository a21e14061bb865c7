package tracing

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const workerTracerName = "kast-playground-worker"

// TraceWorkerCall starts a span for one correlated round trip to a worker.
// The caller ends the span.
func TraceWorkerCall(ctx context.Context, kind, sessionID string) (context.Context, trace.Span) {
	ctx, span := Tracer(workerTracerName).Start(ctx, "worker."+kind,
		trace.WithSpanKind(trace.SpanKindClient),
	)
	span.SetAttributes(
		attribute.String("worker.kind", kind),
		attribute.String("session_id", sessionID),
	)
	return ctx, span
}

// TraceRunState records a run slot transition as a single span event.
func TraceRunState(ctx context.Context, managerID, state string) {
	_, span := Tracer(workerTracerName).Start(ctx, "run.state."+state,
		trace.WithSpanKind(trace.SpanKindInternal),
	)
	defer span.End()
	span.SetAttributes(
		attribute.String("run.manager_id", managerID),
		attribute.String("run.state", state),
	)
}

// EndSpan records err, if any, and ends the span.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
