package khroma

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/papercomputeco/khroma/pkg/utils"
)

const instrumentationName = "github.com/papercomputeco/khroma"

type tracer struct {
	t trace.Tracer
}

type span struct {
	s trace.Span
}

func newTracer(tp trace.TracerProvider) *tracer {
	if tp == nil {
		tp = noop.NewTracerProvider()
	}
	return &tracer{t: tp.Tracer(instrumentationName, trace.WithInstrumentationVersion(utils.Version))}
}

func (t *tracer) start(ctx context.Context, c call) (context.Context, span) {
	ctx, s := t.t.Start(ctx, "khroma."+c.op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("khroma.op", c.op),
			attribute.String("http.request.method", c.method),
		),
	)
	return ctx, span{s: s}
}

func (s span) finish(status int, err error) {
	if status != 0 {
		s.s.SetAttributes(attribute.Int("http.response.status_code", status))
	}
	if err != nil {
		s.s.RecordError(err)
		s.s.SetStatus(codes.Error, err.Error())
		if e, ok := AsError(err); ok {
			s.s.SetAttributes(attribute.String("khroma.error.kind", e.Kind.String()))
		}
	}
	s.s.End()
}
