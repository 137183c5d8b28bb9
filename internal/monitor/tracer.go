package monitor

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName = "submission-grader"
	spanPrefix = "grader."
)

// Span attribute keys.
var (
	AttrBatchID  = attribute.Key("grader.batch.id")
	AttrStudent  = attribute.Key("grader.student")
	AttrStep     = attribute.Key("grader.step")
	AttrState    = attribute.Key("grader.state")
	AttrExitCode = attribute.Key("grader.exit_code")
	AttrTest     = attribute.Key("grader.test")
)

// Tracer opens spans for grading batches, submissions and pipeline steps.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer returns a Tracer backed by tp, or by the global provider when tp
// is nil. Without an installed provider every span is a no-op.
func NewTracer(tp trace.TracerProvider) *Tracer {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &Tracer{tracer: tp.Tracer(tracerName)}
}

// StartSpan starts "grader.<name>" as a child of any span in ctx.
func (t *Tracer) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, spanPrefix+name, trace.WithAttributes(attrs...))
}

// EndSpan marks span failed when err is non-nil, then ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

func SpanFromContext(ctx context.Context) trace.Span {
	return trace.SpanFromContext(ctx)
}
