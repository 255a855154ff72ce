package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
)

type Tracer interface {
	Start()
	WithAttributes(attributes *SpanAttributes) Tracer
	AddEvent(name string, attributes EventAttributes)
	SetStatus(code codes.Code, message string)
	Spawn(spanName string) Tracer
	Export() string
	End()
}

type TracerFactory struct {
	telemetry Telemetry
}

type TracerFactoryParams struct {
	fx.In
	Telemetry Telemetry `optional:"true"`
}

func NewTracerFactory(p TracerFactoryParams) *TracerFactory {
	return &TracerFactory{telemetry: p.Telemetry}
}

// otelTracer is nil when telemetry is disabled. A nil factory is valid.
func (t *TracerFactory) otelTracer() trace.Tracer {
	if t == nil || t.telemetry == nil {
		return nil
	}
	return t.telemetry.GetTracer()
}

// NewTracer returns a tracer for one span, or a DummyTracer when telemetry is
// disabled.
func (t *TracerFactory) NewTracer(ctx context.Context, spanName string) Tracer {
	tracer := t.otelTracer()
	if tracer == nil {
		return &DummyTracer{}
	}
	return NewTelemetryTracer(ctx, tracer, spanName)
}

// ContinueTracer returns a tracer whose span is a child of the span exported
// by Export, possibly in another process. An empty or unreadable export
// starts a root span instead.
func (t *TracerFactory) ContinueTracer(ctx context.Context, exported string, spanName string) Tracer {
	tracer := t.otelTracer()
	if tracer == nil {
		return &DummyTracer{}
	}
	parent, err := ImportTelemetryTracer(ctx, tracer, exported)
	if err != nil {
		return NewTelemetryTracer(ctx, tracer, spanName)
	}
	return parent.Spawn(spanName)
}

// DummyTracer does nothing. It stands in when telemetry is disabled.
type DummyTracer struct{}

func (t *DummyTracer) Start()                                           {}
func (t *DummyTracer) WithAttributes(attributes *SpanAttributes) Tracer { return t }
func (t *DummyTracer) AddEvent(name string, attributes EventAttributes) {}
func (t *DummyTracer) SetStatus(code codes.Code, message string)        {}
func (t *DummyTracer) Spawn(spanName string) Tracer                     { return t }
func (t *DummyTracer) Export() string                                   { return "" }
func (t *DummyTracer) End()                                             {}
