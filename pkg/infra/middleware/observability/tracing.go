package observability

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/overlordausritter/beastgpt/pkg/infra/middleware/requestutil"
	"github.com/overlordausritter/beastgpt/pkg/infra/tracing"
	mwopts "github.com/overlordausritter/beastgpt/pkg/options/middleware"
)

// HeaderTraceID is the response header carrying the trace ID.
const HeaderTraceID = "X-Trace-ID"

// TracingWithOptions 返回 HTTP 追踪中间件。
// 从请求头提取 W3C Trace Context，为每个请求创建 server span。
func TracingWithOptions(opts mwopts.TracingOptions) gin.HandlerFunc {
	skip := make(map[string]struct{}, len(opts.SkipPaths))
	for _, p := range opts.SkipPaths {
		skip[p] = struct{}{}
	}

	return func(c *gin.Context) {
		req := c.Request
		if _, ok := skip[req.URL.Path]; ok {
			c.Next()
			return
		}

		propagator := otel.GetTextMapPropagator()
		ctx := propagator.Extract(req.Context(), propagation.HeaderCarrier(req.Header))

		route := c.FullPath()
		if route == "" {
			route = req.URL.Path
		}

		ctx, span := otel.Tracer(tracing.InstrumentationName).Start(ctx,
			fmt.Sprintf("%s %s", req.Method, route),
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				semconv.HTTPMethod(req.Method),
				semconv.HTTPTarget(req.URL.Path),
				attribute.String(tracing.HTTPRoute, route),
				semconv.UserAgentOriginal(req.UserAgent()),
			),
		)
		defer span.End()

		if id := requestutil.GetRequestID(ctx); id != "" {
			span.SetAttributes(attribute.String(tracing.HTTPRequestID, id))
		}
		if sc := span.SpanContext(); sc.IsValid() {
			c.Header(HeaderTraceID, sc.TraceID().String())
		}

		c.Request = req.WithContext(ctx)
		c.Next()

		status := c.Writer.Status()
		span.SetAttributes(attribute.Int(tracing.HTTPStatusCode, status))
		if status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(status))
		}
		if len(c.Errors) > 0 {
			span.RecordError(c.Errors.Last())
		}
	}
}
