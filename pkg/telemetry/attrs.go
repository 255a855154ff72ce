package telemetry

import (
	"fmt"
	"maps"

	"go.opentelemetry.io/otel/attribute"
)

type SpanAttributes struct {
	ActionCategory string

	TestName    optional[string] // fuzztest.test.name
	CaseName    optional[string] // fuzztest.case.name
	RunMode     optional[string] // fuzztest.run_mode
	ReplayInput optional[string] // fuzztest.replay.input
	CodeFile    optional[string] // fuzztest.code.file
	SessionID   optional[string] // fuzztest.session.id

	extraAttributes map[string]any
}

func NewSpanAttributes(actionCategory ActionCategory) *SpanAttributes {
	return &SpanAttributes{
		ActionCategory:  actionCategory.String(),
		extraAttributes: make(map[string]any),
	}
}

// EmptySpanAttributes has no action category; it is populated later.
func EmptySpanAttributes() *SpanAttributes {
	return &SpanAttributes{
		extraAttributes: make(map[string]any),
	}
}

// Merge copies the values set in other that are not set here. The action
// category is always taken from other when present.
func (o *SpanAttributes) Merge(other *SpanAttributes) {
	if other == nil {
		return
	}

	if other.ActionCategory != "" {
		o.ActionCategory = other.ActionCategory
	}

	mergeOptional(&o.TestName, &other.TestName)
	mergeOptional(&o.CaseName, &other.CaseName)
	mergeOptional(&o.RunMode, &other.RunMode)
	mergeOptional(&o.ReplayInput, &other.ReplayInput)
	mergeOptional(&o.CodeFile, &other.CodeFile)
	mergeOptional(&o.SessionID, &other.SessionID)

	if o.extraAttributes == nil {
		o.extraAttributes = make(map[string]any)
	}
	for k, v := range other.extraAttributes {
		if _, exists := o.extraAttributes[k]; !exists {
			o.extraAttributes[k] = v
		}
	}
}

func (o *SpanAttributes) WithTestName(val string) *SpanAttributes {
	o.TestName.Set(val)
	return o
}

func (o *SpanAttributes) WithCaseName(val string) *SpanAttributes {
	o.CaseName.Set(val)
	return o
}

func (o *SpanAttributes) WithRunMode(val string) *SpanAttributes {
	o.RunMode.Set(val)
	return o
}

func (o *SpanAttributes) WithReplayInput(val string) *SpanAttributes {
	o.ReplayInput.Set(val)
	return o
}

func (o *SpanAttributes) WithCodeFile(val string) *SpanAttributes {
	o.CodeFile.Set(val)
	return o
}

func (o *SpanAttributes) WithSessionID(val string) *SpanAttributes {
	o.SessionID.Set(val)
	return o
}

func (o *SpanAttributes) WithExtraAttribute(key string, val any) *SpanAttributes {
	if o.extraAttributes == nil {
		o.extraAttributes = make(map[string]any)
	}
	o.extraAttributes[key] = val
	return o
}

func (o *SpanAttributes) WithExtraAttributes(attrs map[string]any) *SpanAttributes {
	if o.extraAttributes == nil {
		o.extraAttributes = make(map[string]any)
	}
	maps.Copy(o.extraAttributes, attrs)
	return o
}

func (o SpanAttributes) Attributes() []attribute.KeyValue {
	var attrs []attribute.KeyValue
	attrs = append(attrs, attribute.String("fuzztest.action.category", o.ActionCategory))
	if o.TestName.set {
		attrs = append(attrs, attribute.String("fuzztest.test.name", o.TestName.val))
	}
	if o.CaseName.set {
		attrs = append(attrs, attribute.String("fuzztest.case.name", o.CaseName.val))
	}
	if o.RunMode.set {
		attrs = append(attrs, attribute.String("fuzztest.run_mode", o.RunMode.val))
	}
	if o.ReplayInput.set {
		attrs = append(attrs, attribute.String("fuzztest.replay.input", o.ReplayInput.val))
	}
	if o.CodeFile.set {
		attrs = append(attrs, attribute.String("fuzztest.code.file", o.CodeFile.val))
	}
	if o.SessionID.set {
		attrs = append(attrs, attribute.String("fuzztest.session.id", o.SessionID.val))
	}

	for k, v := range o.extraAttributes {
		switch val := v.(type) {
		case string:
			attrs = append(attrs, attribute.String(k, val))
		case int:
			attrs = append(attrs, attribute.Int(k, val))
		case int64:
			attrs = append(attrs, attribute.Int64(k, val))
		case float64:
			attrs = append(attrs, attribute.Float64(k, val))
		case bool:
			attrs = append(attrs, attribute.Bool(k, val))
		default:
			attrs = append(attrs, attribute.String(k, fmt.Sprintf("%v", val)))
		}
	}

	return attrs
}

type EventAttributes []attribute.KeyValue

func NewEventAttributes(attributes map[string]string) EventAttributes {
	attrs := make(EventAttributes, 0, len(attributes))
	for k, v := range attributes {
		attrs = append(attrs, attribute.String(k, v))
	}
	return attrs
}

type optional[T any] struct {
	val T
	set bool
}

func (o *optional[T]) Set(val T) { o.val = val; o.set = true }

func mergeOptional[T any](target, source *optional[T]) {
	if !target.set && source.set {
		target.val = source.val
		target.set = true
	}
}
