package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentationName is the tracer name used by the query pipeline.
const InstrumentationName = "github.com/overlordausritter/beastgpt"

// Span attribute keys for query handling.
const (
	HTTPMethod     = "http.method"
	HTTPRoute      = "http.route"
	HTTPStatusCode = "http.status_code"
	HTTPRequestID  = "http.request_id"

	QueryStrategy  = "llamaquery.strategy"
	QueryIndex     = "llamaquery.index"
	QueryAttempt   = "llamaquery.attempt"
	QueryNodes     = "llamaquery.nodes"
	QueryTruncated = "llamaquery.truncated"
)

// StartSpan starts a span on the global tracer provider.
func StartSpan(ctx context.Context, spanName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(InstrumentationName).Start(ctx, spanName, trace.WithAttributes(attrs...))
}

// RecordError records err on the span in ctx and marks the span failed.
func RecordError(ctx context.Context, err error) {
	if err == nil {
		return
	}
	span := trace.SpanFromContext(ctx)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// TraceIDFromContext extracts the trace ID from the context.
// Returns an empty string if no trace is active.
func TraceIDFromContext(ctx context.Context) string {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return ""
	}
	return sc.TraceID().String()
}

// SpanIDFromContext extracts the span ID from the context.
func SpanIDFromContext(ctx context.Context) string {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return ""
	}
	return sc.SpanID().String()
}
