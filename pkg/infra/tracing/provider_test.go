package tracing

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestNewOptions(t *testing.T) {
	opts := NewOptions()

	if opts.Enabled {
		t.Error("Expected tracing to be disabled by default")
	}
	if opts.ServiceName != "the-beast-api" {
		t.Errorf("Expected service name to be 'the-beast-api', got %s", opts.ServiceName)
	}
	if opts.ExporterType != ExporterOTLPGRPC {
		t.Errorf("Expected exporter type to be OTLP gRPC, got %s", opts.ExporterType)
	}
	if opts.SamplerType != SamplerParentBased {
		t.Errorf("Expected sampler type to be parent-based, got %s", opts.SamplerType)
	}
}

func TestOptionsValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(o *Options)
		wantErr bool
	}{
		{name: "disabled tracing is valid", mutate: func(o *Options) { o.ExporterType = "bogus" }},
		{name: "enabled defaults are valid", mutate: func(o *Options) { o.Enabled = true }},
		{
			name:    "missing endpoint",
			mutate:  func(o *Options) { o.Enabled = true; o.Endpoint = "" },
			wantErr: true,
		},
		{
			name:   "stdout needs no endpoint",
			mutate: func(o *Options) { o.Enabled = true; o.Endpoint = ""; o.ExporterType = ExporterStdout },
		},
		{
			name:    "invalid exporter",
			mutate:  func(o *Options) { o.Enabled = true; o.ExporterType = "kafka" },
			wantErr: true,
		},
		{
			name:    "invalid sampler",
			mutate:  func(o *Options) { o.Enabled = true; o.SamplerType = "sometimes" },
			wantErr: true,
		},
		{
			name:    "ratio out of range",
			mutate:  func(o *Options) { o.Enabled = true; o.SamplerRatio = 1.5 },
			wantErr: true,
		},
		{
			name:    "non-positive batch timeout",
			mutate:  func(o *Options) { o.Enabled = true; o.BatchTimeout = 0 },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := NewOptions()
			tt.mutate(opts)
			errs := opts.Validate()
			if (len(errs) > 0) != tt.wantErr {
				t.Errorf("Validate() errs = %v, wantErr %v", errs, tt.wantErr)
			}
		})
	}
}

func TestNewProvider_Disabled(t *testing.T) {
	p, err := NewProvider(context.Background(), nil)
	if err != nil {
		t.Fatalf("NewProvider() error = %v", err)
	}
	defer func() { _ = p.Shutdown(context.Background()) }()

	if p.Enabled() {
		t.Error("Expected provider to be disabled")
	}

	_, span := p.Tracer("test").Start(context.Background(), "op")
	defer span.End()
	if span.IsRecording() {
		t.Error("Expected disabled provider to produce non-recording spans")
	}
}

func TestNewProvider_NoopExporter(t *testing.T) {
	opts := NewOptions()
	opts.Enabled = true
	opts.ExporterType = ExporterNoop
	opts.SamplerType = SamplerAlwaysOn

	p, err := NewProvider(context.Background(), opts)
	if err != nil {
		t.Fatalf("NewProvider() error = %v", err)
	}

	ctx, span := StartSpan(context.Background(), "query", attribute.String(QueryStrategy, "single"))
	if TraceIDFromContext(ctx) == "" || SpanIDFromContext(ctx) == "" {
		t.Error("Expected trace and span IDs on a sampled span")
	}
	span.End()

	if err := p.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}

func TestNewProvider_InvalidOptions(t *testing.T) {
	opts := NewOptions()
	opts.Enabled = true
	opts.ExporterType = "kafka"

	if _, err := NewProvider(context.Background(), opts); err == nil {
		t.Error("Expected error for invalid exporter")
	}
}

func TestRecordError(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	defer otel.SetTracerProvider(prev)

	ctx, span := StartSpan(context.Background(), "retrieve")
	RecordError(ctx, nil)
	RecordError(ctx, errors.New("read timeout"))
	span.End()

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("Expected 1 span, got %d", len(spans))
	}
	if got := spans[0].Status().Description; got != "read timeout" {
		t.Errorf("Expected status description 'read timeout', got %q", got)
	}
	if len(spans[0].Events()) != 1 {
		t.Errorf("Expected 1 error event, got %d", len(spans[0].Events()))
	}
}

func TestTraceIDFromContext_NoSpan(t *testing.T) {
	if id := TraceIDFromContext(context.Background()); id != "" {
		t.Errorf("Expected empty trace ID, got %s", id)
	}
}
