package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// recordSpans installs an in-memory span recorder as the global provider.
func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	otel.SetTracerProvider(provider)
	t.Cleanup(func() {
		_ = provider.Shutdown(context.Background())
	})
	return recorder
}

func attrs(span sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	out := make(map[attribute.Key]attribute.Value)
	for _, kv := range span.Attributes() {
		out[kv.Key] = kv.Value
	}
	return out
}

func TestInitTracing_NoEndpoint(t *testing.T) {
	ctx := context.Background()
	tp, err := InitTracing(ctx, TracingConfig{})
	require.NoError(t, err)
	require.NotNil(t, tp)

	assert.NotNil(t, tp.Tracer())
	assert.False(t, tp.Enabled())
	assert.NoError(t, tp.Shutdown(ctx))
}

func TestSampler(t *testing.T) {
	assert.Equal(t, sdktrace.AlwaysSample().Description(), Sampler(1).Description())
	assert.Equal(t, sdktrace.AlwaysSample().Description(), Sampler(2).Description())
	assert.Equal(t, sdktrace.NeverSample().Description(), Sampler(0).Description())
	assert.Equal(t, sdktrace.TraceIDRatioBased(0.25).Description(), Sampler(0.25).Description())
}

func TestPipelineAndStageSpans(t *testing.T) {
	recorder := recordSpans(t)

	ctx, root := StartPipelineSpan(context.Background(), "ingest", attribute.String("kb.path", "/docs/a.pdf"))
	_, stage := StartStageSpan(ctx, "embed", attribute.Int("kb.chunks", 3))
	stage.End()
	root.End()

	spans := recorder.Ended()
	require.Len(t, spans, 2)

	assert.Equal(t, "stage.embed", spans[0].Name())
	assert.Equal(t, spans[1].SpanContext().SpanID(), spans[0].Parent().SpanID())
	stageAttrs := attrs(spans[0])
	assert.Equal(t, "embed", stageAttrs["kb.stage"].AsString())
	assert.Equal(t, int64(3), stageAttrs["kb.chunks"].AsInt64())

	assert.Equal(t, "ingest", spans[1].Name())
	rootAttrs := attrs(spans[1])
	assert.Equal(t, SpanKindPipeline, rootAttrs["kb.span.kind"].AsString())
	assert.Equal(t, "/docs/a.pdf", rootAttrs["kb.path"].AsString())
}

func TestClientSpan(t *testing.T) {
	recorder := recordSpans(t)

	_, span := StartClientSpan(context.Background(), "azure_search", "search")
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "azure_search.search", spans[0].Name())
	assert.Equal(t, "azure_search", attrs(spans[0])["kb.service"].AsString())
}

func TestEnd_RecordsError(t *testing.T) {
	recorder := recordSpans(t)

	func() (err error) {
		_, span := StartStageSpan(context.Background(), "upsert")
		defer End(span, &err)
		return errors.New("index unavailable")
	}()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "index unavailable", spans[0].Status().Description)
	require.Len(t, spans[0].Events(), 1)
	assert.Equal(t, "exception", spans[0].Events()[0].Name)
}

func TestEnd_Success(t *testing.T) {
	recorder := recordSpans(t)

	func() (err error) {
		_, span := StartStageSpan(context.Background(), "chunk")
		defer End(span, &err)
		return nil
	}()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Unset, spans[0].Status().Code)
}
