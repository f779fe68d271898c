package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func TestTracing(t *testing.T) {
	tp := MustNewTracerProvider(
		WithServiceName("genea-test"),
		WithAttributes(attribute.String("deployment.environment", "test")),
		WithSamplingRatio(1),
	)
	t.Cleanup(func() {
		require.NoError(t, tp.Close(context.Background()))
	})

	spanRecorder := tracetest.NewSpanRecorder()
	tp.RegisterSpanProcessor(spanRecorder)

	_, span := tp.Tracer("").Start(context.Background(), "test")
	TraceError(span, errors.New("boom"))
	span.End()

	spans := spanRecorder.Ended()
	require.Len(t, spans, 1)
	require.Equal(t, "test", spans[0].Name())
	require.Equal(t, codes.Error, spans[0].Status().Code)
	require.Equal(t, "boom", spans[0].Status().Description)
	require.Contains(t, spans[0].Resource().Attributes(), attribute.String("service.name", "genea-test"))
}

func TestNoop(t *testing.T) {
	tp := Noop()
	tp.RegisterSpanProcessor(tracetest.NewSpanRecorder())

	_, span := tp.Tracer("").Start(context.Background(), "test")
	span.End()
	require.False(t, span.SpanContext().IsValid())
	require.False(t, span.IsRecording())

	t.Run("keeps_parent_span_context", func(t *testing.T) {
		parent := trace.NewSpanContext(trace.SpanContextConfig{TraceID: trace.TraceID{7}, SpanID: trace.SpanID{9}})
		ctx := trace.ContextWithSpanContext(context.Background(), parent)

		_, span := tp.Tracer("genea").Start(ctx, "ListPersons")
		defer span.End()
		require.Equal(t, parent.TraceID(), span.SpanContext().TraceID())
		require.False(t, span.IsRecording())
	})

	require.NoError(t, tp.Close(context.Background()))
}

func TestSlowTraceExporter(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	fastTrace := trace.TraceID{1}
	slowTrace := trace.TraceID{2}

	stub := func(name string, traceID trace.TraceID, parent bool, d time.Duration) tracetest.SpanStub {
		s := tracetest.SpanStub{
			Name:        name,
			SpanContext: trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: trace.SpanID{byte(len(name))}}),
			StartTime:   start,
			EndTime:     start.Add(d),
		}
		if parent {
			s.Parent = trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: trace.SpanID{9}})
		}
		return s
	}

	spans := tracetest.SpanStubs{
		stub("fast", fastTrace, false, 10*time.Millisecond),
		stub("fast-child", fastTrace, true, 5*time.Millisecond),
		stub("slow", slowTrace, false, 2*time.Second),
		stub("slow-child", slowTrace, true, time.Millisecond),
	}.Snapshots()

	recorder := tracetest.NewInMemoryExporter()
	exporter := NewSlowTraceExporter(recorder, time.Second)
	require.NoError(t, exporter.ExportSpans(context.Background(), spans))

	var names []string
	for _, s := range recorder.GetSpans() {
		names = append(names, s.Name)
	}
	require.Equal(t, []string{"slow", "slow-child"}, names)

	recorder.Reset()
	require.NoError(t, exporter.ExportSpans(context.Background(), spans[:2]))
	require.Empty(t, recorder.GetSpans())

	require.NoError(t, exporter.Shutdown(context.Background()))
}
