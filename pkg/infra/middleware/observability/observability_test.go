package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/overlordausritter/beastgpt/pkg/infra/tracing"
	mwopts "github.com/overlordausritter/beastgpt/pkg/options/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func withRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prevTP, prevProp := otel.GetTracerProvider(), otel.GetTextMapPropagator()
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() {
		otel.SetTracerProvider(prevTP)
		otel.SetTextMapPropagator(prevProp)
	})
	return recorder
}

func TestTracingCreatesServerSpan(t *testing.T) {
	recorder := withRecorder(t)

	var traceID string
	r := gin.New()
	r.Use(TracingWithOptions(*mwopts.NewTracingOptions()))
	r.POST("/llamaquery", func(c *gin.Context) {
		traceID = tracing.TraceIDFromContext(c.Request.Context())
		c.Status(http.StatusInternalServerError)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/llamaquery", nil))

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "POST /llamaquery", spans[0].Name())
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Contains(t, spans[0].Attributes(), attribute.Int(tracing.HTTPStatusCode, 500))
	assert.Equal(t, traceID, w.Header().Get(HeaderTraceID))
}

func TestTracingContinuesIncomingTrace(t *testing.T) {
	recorder := withRecorder(t)

	r := gin.New()
	r.Use(TracingWithOptions(*mwopts.NewTracingOptions()))
	r.POST("/llamaquery", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodPost, "/llamaquery", nil)
	req.Header.Set("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
	r.ServeHTTP(httptest.NewRecorder(), req)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", spans[0].SpanContext().TraceID().String())
}

func TestTracingSkipsHealthPaths(t *testing.T) {
	recorder := withRecorder(t)

	r := gin.New()
	r.Use(TracingWithOptions(*mwopts.NewTracingOptions()))
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Empty(t, recorder.Ended())
}

func TestLoggerPassesThrough(t *testing.T) {
	r := gin.New()
	r.Use(LoggerWithOptions(*mwopts.NewLoggerOptions()))
	r.GET("/x", func(c *gin.Context) {
		_ = c.Error(context.Canceled)
		c.String(http.StatusTeapot, "short")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusTeapot, w.Code)
	assert.Equal(t, "short", w.Body.String())
}
