package telemetry

import (
	"context"
	"time"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

var _ sdktrace.SpanExporter = (*slowTraceExporter)(nil)

type slowTraceExporter struct {
	next      sdktrace.SpanExporter
	threshold time.Duration
}

// NewSlowTraceExporter forwards to next the spans of traces whose root span
// lasted at least threshold. Spans of a batch without their root are dropped.
func NewSlowTraceExporter(next sdktrace.SpanExporter, threshold time.Duration) sdktrace.SpanExporter {
	return &slowTraceExporter{next: next, threshold: threshold}
}

func (e *slowTraceExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	slow := make(map[trace.TraceID]struct{})
	for _, span := range spans {
		if span.Parent().IsValid() {
			continue
		}
		if span.EndTime().Sub(span.StartTime()) >= e.threshold {
			slow[span.SpanContext().TraceID()] = struct{}{}
		}
	}
	if len(slow) == 0 {
		return nil
	}

	selected := make([]sdktrace.ReadOnlySpan, 0, len(spans))
	for _, span := range spans {
		if _, ok := slow[span.SpanContext().TraceID()]; ok {
			selected = append(selected, span)
		}
	}
	return e.next.ExportSpans(ctx, selected)
}

func (e *slowTraceExporter) Shutdown(ctx context.Context) error {
	return e.next.Shutdown(ctx)
}
