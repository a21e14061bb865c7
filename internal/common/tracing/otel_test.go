package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
)

func TestEndpointHost(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "strips http prefix", input: "http://localhost:4318", expected: "localhost:4318"},
		{name: "strips https prefix", input: "https://otel.example.com:4318", expected: "otel.example.com:4318"},
		{name: "no scheme", input: "localhost:4318", expected: "localhost:4318"},
		{name: "trailing slash", input: "http://collector:4318/", expected: "collector:4318"},
		{name: "empty", input: "", expected: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, endpointHost(tt.input))
		})
	}
}

func TestSpansWithoutExporter(t *testing.T) {
	ctx, span := TraceWorkerCall(context.Background(), "hover", "s-1")
	assert.NotNil(t, ctx)
	EndSpan(span, errors.New("worker exited"))
	TraceRunState(context.Background(), "m-1", "running")
	assert.NoError(t, Shutdown(context.Background()))
}

func TestResourceAttributes(t *testing.T) {
	attrs := resourceAttributes(Options{Role: "coordinator", EngineVersion: "kast-lite 0.1", WorkerMode: "process", Codec: "msgpack"})
	set := attribute.NewSet(attrs...)

	for key, want := range map[string]string{
		"service.name":            "kast-playground",
		"service.version":         "kast-lite 0.1",
		"playground.role":         "coordinator",
		"playground.worker.mode":  "process",
		"playground.worker.codec": "msgpack",
	} {
		v, ok := set.Value(attribute.Key(key))
		if assert.True(t, ok, key) {
			assert.Equal(t, want, v.AsString(), key)
		}
	}

	bare := resourceAttributes(Options{})
	assert.Len(t, bare, 1, "only the service name")
}
