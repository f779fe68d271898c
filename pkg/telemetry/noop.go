package telemetry

import (
	"context"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// disabledTracerProvider backs the server when trace.enabled is false.
// Spans record nothing and carry the span context of their parent.
type disabledTracerProvider struct {
	noop.TracerProvider
}

// Noop returns the TracerProvider installed when tracing is disabled.
func Noop() TracerProvider {
	return disabledTracerProvider{TracerProvider: noop.NewTracerProvider()}
}

// Close has nothing to flush.
func (disabledTracerProvider) Close(context.Context) error {
	return nil
}

// RegisterSpanProcessor ignores p since no span is ever recorded.
func (disabledTracerProvider) RegisterSpanProcessor(sdktrace.SpanProcessor) {}
