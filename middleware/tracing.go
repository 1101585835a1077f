package middleware

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/shrek82/simplejorm/core"
)

const instrumentationName = "github.com/shrek82/simplejorm/middleware"

// TracingMiddleware opens an OpenTelemetry span around each store
// operation. Spans of one top-level call share the simplejorm.query_id
// attribute.
type TracingMiddleware struct {
	Tracer trace.Tracer

	provider trace.TracerProvider
}

func NewTracing() *TracingMiddleware {
	return &TracingMiddleware{}
}

// NewTracingWithProvider traces with tp and shuts tp down with the DB
// when it supports that.
func NewTracingWithProvider(tp trace.TracerProvider) *TracingMiddleware {
	return &TracingMiddleware{Tracer: tp.Tracer(instrumentationName), provider: tp}
}

func (m *TracingMiddleware) Name() string {
	return "Tracing"
}

func (m *TracingMiddleware) Init(db *core.DB) error {
	if m.Tracer == nil {
		m.Tracer = otel.GetTracerProvider().Tracer(instrumentationName)
	}
	return nil
}

func (m *TracingMiddleware) Shutdown() error {
	if sd, ok := m.provider.(interface{ Shutdown(context.Context) error }); ok {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return sd.Shutdown(ctx)
	}
	return nil
}

func (m *TracingMiddleware) Process(ctx context.Context, op *core.Operation, next core.QueryFunc) (*core.Result, error) {
	if m.Tracer == nil {
		return next(ctx, op)
	}

	spanName := "simplejorm." + op.Kind.String() + " " + op.Entity
	ctx, span := m.Tracer.Start(ctx, spanName, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		attribute.String("simplejorm.entity", op.Entity),
		attribute.String("simplejorm.query_id", op.QueryID),
		attribute.String("simplejorm.kind", op.Kind.String()),
	)
	if op.Relation != "" {
		span.SetAttributes(attribute.String("simplejorm.relation", op.Relation))
	}

	res, err := next(ctx, op)

	span.SetAttributes(attribute.String("db.statement", op.Stmt.SQL))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return res, err
	}
	if res != nil {
		span.SetAttributes(
			attribute.Int("simplejorm.rows", len(res.Records)),
			attribute.Bool("simplejorm.cached", res.Cached),
		)
	}
	return res, err
}
