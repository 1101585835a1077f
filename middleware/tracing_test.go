package middleware

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newRecordingTracing(t *testing.T) (*TracingMiddleware, *tracetest.SpanRecorder) {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { tp.Shutdown(context.Background()) })

	m := &TracingMiddleware{Tracer: tp.Tracer("test")}
	require.NoError(t, m.Init(nil))
	return m, sr
}

func attrs(span sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	out := map[attribute.Key]attribute.Value{}
	for _, kv := range span.Attributes() {
		out[kv.Key] = kv.Value
	}
	return out
}

func TestTracing(t *testing.T) {
	m, sr := newRecordingTracing(t)

	_, err := m.Process(context.Background(), selectOp("users"), (&counter{rows: sampleRows()}).next)
	require.NoError(t, err)

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "simplejorm.select users", spans[0].Name())

	a := attrs(spans[0])
	assert.Equal(t, "users", a["simplejorm.entity"].AsString())
	assert.Equal(t, "q-1", a["simplejorm.query_id"].AsString())
	assert.Equal(t, "SELECT * FROM `users` WHERE (`id` = ?)", a["db.statement"].AsString())
	assert.Equal(t, int64(1), a["simplejorm.rows"].AsInt64())
	assert.NotEqual(t, codes.Error, spans[0].Status().Code)
}

func TestTracing_Error(t *testing.T) {
	m, sr := newRecordingTracing(t)

	_, err := m.Process(context.Background(), countOp("users"), (&counter{err: errBackend}).next)
	assert.ErrorIs(t, err, errBackend)

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "simplejorm.count users", spans[0].Name())
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "backend down", spans[0].Status().Description)
	require.NotEmpty(t, spans[0].Events())
}

func TestTracing_SharedQueryID(t *testing.T) {
	db, _ := setupDB(t)
	m, sr := newRecordingTracing(t)
	require.NoError(t, db.Use(m))

	_, err := db.Entity("users").With("posts").Get()
	require.NoError(t, err)

	spans := sr.Ended()
	require.Len(t, spans, 2)
	first, second := attrs(spans[0]), attrs(spans[1])
	assert.NotEmpty(t, first["simplejorm.query_id"].AsString())
	assert.Equal(t, first["simplejorm.query_id"], second["simplejorm.query_id"])
	assert.Equal(t, "posts", second["simplejorm.relation"].AsString())
}

func TestTracing_ProviderShutdown(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	m := NewTracingWithProvider(tp)
	require.NoError(t, m.Init(nil))

	_, err := m.Process(context.Background(), selectOp("users"), (&counter{}).next)
	require.NoError(t, err)
	require.NoError(t, m.Shutdown())
	assert.Len(t, sr.Ended(), 1)

	// Spans started after shutdown are dropped.
	_, err = m.Process(context.Background(), selectOp("users"), (&counter{}).next)
	require.NoError(t, err)
	assert.Len(t, sr.Ended(), 1)
}
