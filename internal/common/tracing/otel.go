// Package tracing initializes OpenTelemetry for the playground.
//
// Spans are exported only when OTEL_EXPORTER_OTLP_ENDPOINT is set; otherwise a
// no-op provider is used. The exported resource names the engine version and
// how workers are run, so traces from an in-process coordinator and one that
// spawns child workers can be told apart.
package tracing

import (
	"context"
	"os"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const serviceName = "kast-playground"

// Options describe the process being traced.
type Options struct {
	// Role is "coordinator" or "worker".
	Role          string
	EngineVersion string
	WorkerMode    string
	Codec         string
}

var (
	mu             sync.Mutex
	opts           Options
	initialized    bool
	tracerProvider trace.TracerProvider = noop.NewTracerProvider()
	sdkProvider    *sdktrace.TracerProvider
)

// Configure records o for the resource. It has no effect once the first
// tracer has been handed out.
func Configure(o Options) {
	mu.Lock()
	defer mu.Unlock()
	if !initialized {
		opts = o
	}
}

func initTracing() {
	endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if endpoint == "" {
		return
	}
	ctx := context.Background()

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(endpointHost(endpoint)),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return
	}

	res, err := resource.New(ctx,
		resource.WithHost(),
		resource.WithAttributes(resourceAttributes(opts)...),
	)
	if err != nil {
		res = resource.Default()
	}

	sdkProvider = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	tracerProvider = sdkProvider
	otel.SetTracerProvider(tracerProvider)
}

func resourceAttributes(o Options) []attribute.KeyValue {
	attrs := []attribute.KeyValue{semconv.ServiceName(serviceName)}
	if o.EngineVersion != "" {
		attrs = append(attrs, semconv.ServiceVersion(o.EngineVersion))
	}
	if o.Role != "" {
		attrs = append(attrs, attribute.String("playground.role", o.Role))
	}
	if o.WorkerMode != "" {
		attrs = append(attrs, attribute.String("playground.worker.mode", o.WorkerMode))
	}
	if o.Codec != "" {
		attrs = append(attrs, attribute.String("playground.worker.codec", o.Codec))
	}
	return attrs
}

// endpointHost strips the scheme; otlptracehttp wants host[:port].
func endpointHost(endpoint string) string {
	for _, prefix := range []string{"https://", "http://"} {
		if rest, ok := strings.CutPrefix(endpoint, prefix); ok {
			return strings.TrimSuffix(rest, "/")
		}
	}
	return strings.TrimSuffix(endpoint, "/")
}

// Tracer returns a named tracer. No-op when tracing is disabled.
func Tracer(name string) trace.Tracer {
	mu.Lock()
	if !initialized {
		initialized = true
		initTracing()
	}
	tp := tracerProvider
	mu.Unlock()
	return tp.Tracer(name)
}

// Shutdown flushes pending spans.
func Shutdown(ctx context.Context) error {
	mu.Lock()
	p := sdkProvider
	mu.Unlock()
	if p != nil {
		return p.Shutdown(ctx)
	}
	return nil
}
