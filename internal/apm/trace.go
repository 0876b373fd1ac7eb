package apm

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

type Tracer interface {
	// StartSpanFromCarrier continues a trace propagated in carrier, such
	// as incoming HTTP headers.
	StartSpanFromCarrier(ctx context.Context, carrier propagation.TextMapCarrier, spanName string, opts ...trace.SpanStartOption) (context.Context, Span)
	StartSpanFromContext(ctx context.Context, spanName string, opts ...trace.SpanStartOption) (context.Context, Span)
}

type openTracer struct {
	tracer trace.Tracer
}

func NewTracer(name string) Tracer {
	return &openTracer{otel.Tracer(name)}
}

func (t *openTracer) StartSpanFromCarrier(
	ctx context.Context, carrier propagation.TextMapCarrier, name string, opts ...trace.SpanStartOption,
) (context.Context, Span) {
	ctx = otel.GetTextMapPropagator().Extract(ctx, carrier)
	return t.StartSpanFromContext(ctx, name, opts...)
}

func (t *openTracer) StartSpanFromContext(
	ctx context.Context, name string, opts ...trace.SpanStartOption,
) (context.Context, Span) {
	ctx, span := t.tracer.Start(ctx, name, opts...)
	return ctx, NewSpan(span)
}
