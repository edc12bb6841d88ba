package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// setupTracer 设置测试用的 OpenTelemetry Tracer。
func setupTracer() (trace.Tracer, *sdktrace.TracerProvider) {
	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return tp.Tracer("test"), tp
}

func TestInjectTraceContext_WithSpan(t *testing.T) {
	tracer, tp := setupTracer()
	defer func() { _ = tp.Shutdown(context.Background()) }()

	client := NewClient(nil)

	ctx, span := tracer.Start(context.Background(), "retrieve")
	defer span.End()

	req := httptest.NewRequest(http.MethodPost, "http://example.com/api/v1/pipelines/p/retrieve", nil)
	req = req.WithContext(ctx)
	client.injectTraceContext(req)

	// version-trace_id-parent_id-trace_flags
	traceparent := req.Header.Get("traceparent")
	assert.GreaterOrEqual(t, len(traceparent), 55)
	assert.Contains(t, traceparent, span.SpanContext().TraceID().String())
}

func TestInjectTraceContext_WithoutSpan(t *testing.T) {
	_, tp := setupTracer()
	defer func() { _ = tp.Shutdown(context.Background()) }()

	client := NewClient(nil)
	req := httptest.NewRequest(http.MethodGet, "http://example.com/", nil)
	client.injectTraceContext(req)

	assert.Empty(t, req.Header.Get("traceparent"))
}

func TestDo_PropagatesTraceparentUpstream(t *testing.T) {
	tracer, tp := setupTracer()
	defer func() { _ = tp.Shutdown(context.Background()) }()

	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("traceparent")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	ctx, span := tracer.Start(context.Background(), "dispatch")
	defer span.End()

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	resp, err := NewClient(nil).Do(req)
	if assert.NoError(t, err) {
		_ = resp.Body.Close()
	}
	assert.NotEmpty(t, got)
}
