package telemetry_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"fuzztest/pkg/telemetry"
)

func newRecordingFactory(t *testing.T) (*telemetry.TracerFactory, *tracetest.SpanRecorder) {
	t.Helper()

	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	tel := telemetry.NewStatic(provider.Tracer("test"), nil)
	return telemetry.NewTracerFactory(telemetry.TracerFactoryParams{Telemetry: tel}), recorder
}

func attrMap(kvs []attribute.KeyValue) map[string]string {
	m := make(map[string]string, len(kvs))
	for _, kv := range kvs {
		m[string(kv.Key)] = kv.Value.Emit()
	}
	return m
}

func TestTracerFactory_WithoutTelemetry(t *testing.T) {
	t.Parallel()

	factory := telemetry.NewTracerFactory(telemetry.TracerFactoryParams{})
	tracer := factory.NewTracer(context.Background(), "span")
	assert.IsType(t, &telemetry.DummyTracer{}, tracer)

	var nilFactory *telemetry.TracerFactory
	assert.IsType(t, &telemetry.DummyTracer{}, nilFactory.NewTracer(context.Background(), "span"))
}

func TestTelemetryTracer_RecordsSpan(t *testing.T) {
	t.Parallel()

	factory, recorder := newRecordingFactory(t)

	tracer := factory.NewTracer(context.Background(), "S.T")
	tracer.WithAttributes(telemetry.NewSpanAttributes(telemetry.Reproducing).
		WithTestName("S.T").
		WithCaseName("S.T/replay/x").
		WithReplayInput("/db/S.T/crashing/x"))
	tracer.Start()
	tracer.AddEvent("failed", telemetry.NewEventAttributes(map[string]string{"error": "boom"}))
	tracer.SetStatus(codes.Error, "boom")
	tracer.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	span := spans[0]

	assert.Equal(t, "S.T", span.Name())
	assert.Equal(t, codes.Error, span.Status().Code)
	require.Len(t, span.Events(), 1)
	assert.Equal(t, "failed", span.Events()[0].Name)

	attrs := attrMap(span.Attributes())
	assert.Equal(t, "reproducing", attrs["fuzztest.action.category"])
	assert.Equal(t, "S.T", attrs["fuzztest.test.name"])
	assert.Equal(t, "S.T/replay/x", attrs["fuzztest.case.name"])
	assert.Equal(t, "/db/S.T/crashing/x", attrs["fuzztest.replay.input"])
	assert.Equal(t, "S.T", attrs["fuzztest.action.name"])
}

func TestTelemetryTracer_SpawnInheritsParent(t *testing.T) {
	t.Parallel()

	factory, recorder := newRecordingFactory(t)

	parent := factory.NewTracer(context.Background(), "session")
	parent.WithAttributes(telemetry.NewSpanAttributes(telemetry.Testing).WithSessionID("abc"))
	parent.Start()

	child := parent.Spawn("case")
	child.Start()
	child.End()
	parent.End()

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "case", spans[0].Name())
	assert.Equal(t, spans[1].SpanContext().SpanID(), spans[0].Parent().SpanID())
	assert.Equal(t, "abc", attrMap(spans[0].Attributes())["fuzztest.session.id"])
}

func TestTracerFactory_ContinueTracer(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	factory, recorder := newRecordingFactory(t)

	session := factory.NewTracer(context.Background(), "session")
	session.Start()
	exported := session.Export()
	require.NotEmpty(t, exported)

	finding := factory.ContinueTracer(context.Background(), exported, "finding")
	finding.Start()
	finding.End()
	session.End()

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "finding", spans[0].Name())
	assert.Equal(t, spans[1].SpanContext().TraceID(), spans[0].SpanContext().TraceID())
	assert.Equal(t, spans[1].SpanContext().SpanID(), spans[0].Parent().SpanID())
}

func TestTracerFactory_ContinueTracerWithoutExport(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	factory, recorder := newRecordingFactory(t)

	for _, exported := range []string{"", "not json", "{}"} {
		tracer := factory.ContinueTracer(context.Background(), exported, "finding")
		tracer.Start()
		tracer.End()
	}

	spans := recorder.Ended()
	require.Len(t, spans, 3)
	for _, span := range spans {
		assert.False(t, span.Parent().IsValid(), "expected a root span")
	}

	var nilFactory *telemetry.TracerFactory
	assert.IsType(t, &telemetry.DummyTracer{}, nilFactory.ContinueTracer(context.Background(), "{}", "finding"))
}

func TestTelemetryTracer_EndWithoutStart(t *testing.T) {
	t.Parallel()

	factory, recorder := newRecordingFactory(t)

	tracer := factory.NewTracer(context.Background(), "never")
	tracer.SetStatus(codes.Ok, "")
	tracer.End()

	assert.Empty(t, recorder.Ended())
}

func TestSpanAttributes_Merge(t *testing.T) {
	t.Parallel()

	base := telemetry.EmptySpanAttributes().WithTestName("kept").WithExtraAttribute("k", "base")
	base.Merge(telemetry.NewSpanAttributes(telemetry.Fuzzing).
		WithTestName("ignored").
		WithRunMode("fuzz").
		WithExtraAttributes(map[string]any{"k": "other", "n": 3}))

	attrs := attrMap(base.Attributes())
	assert.Equal(t, "fuzzing", attrs["fuzztest.action.category"])
	assert.Equal(t, "kept", attrs["fuzztest.test.name"])
	assert.Equal(t, "fuzz", attrs["fuzztest.run_mode"])
	assert.Equal(t, "base", attrs["k"])
	assert.Equal(t, "3", attrs["n"])
}
